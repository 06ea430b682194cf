package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRecord_ValidPasses(t *testing.T) {
	assert.True(t, ValidateRecord(Record{Text: "本剤の成分に対し過敏症の既往歴のある患者", Category: Contraindications}))
}

func TestValidateRecord_EmptyText(t *testing.T) {
	assert.False(t, ValidateRecord(Record{Text: "", Category: Dosage}))
}

func TestValidateRecord_UntrimmedText(t *testing.T) {
	assert.False(t, ValidateRecord(Record{Text: " 頭痛", Category: SideEffects}))
	assert.False(t, ValidateRecord(Record{Text: "頭痛\n", Category: SideEffects}))
}

func TestValidateRecord_UnknownCategory(t *testing.T) {
	assert.False(t, ValidateRecord(Record{Text: "頭痛", Category: "vectors"}))
}

func TestValidateRecord_InvalidUTF8(t *testing.T) {
	assert.False(t, ValidateRecord(Record{Text: string([]byte{0xff, 0xfe}), Category: Dosage}))
}

func TestIsCompositionText(t *testing.T) {
	assert.True(t, IsCompositionText("組成：1錠中 アムロジピン 5mg"))
	assert.False(t, IsCompositionText("本剤の成分に対し過敏症の既往歴のある患者"))
	assert.False(t, IsCompositionText("組成"))
	assert.False(t, IsCompositionText("組成に関するアレルギー"))
}

func TestDedupe_KeepsFirstOccurrence(t *testing.T) {
	in := []Record{
		{Text: "本剤の成分に対し過敏症の既往歴のある患者", Category: Contraindications},
		{Text: "妊婦又は妊娠している可能性のある女性", Category: Contraindications},
		{Text: "本剤の成分に対し過敏症の既往歴のある患者", Category: Contraindications},
	}
	out := Dedupe(in)
	assert.Equal(t, []string{"本剤の成分に対し過敏症の既往歴のある患者", "妊婦又は妊娠している可能性のある女性"}, Texts(out))
}

func TestDedupe_Idempotent(t *testing.T) {
	in := []Record{{Text: "a"}, {Text: "b"}, {Text: "a"}, {Text: "c"}, {Text: "b"}}
	once := Dedupe(in)
	assert.Equal(t, once, Dedupe(once))
}

func TestDedupe_NearDuplicatesKept(t *testing.T) {
	out := Dedupe([]Record{{Text: "頭痛、めまい"}, {Text: "頭痛, めまい"}})
	assert.Len(t, out, 2)
}

func TestQualifier_Bracketed(t *testing.T) {
	assert.Equal(t, "高血圧症", Qualifier("〈高血圧症〉"))
	assert.Equal(t, "", Qualifier("〈小児〉"), "bracketed qualifiers need more than two characters")
	assert.Equal(t, "成人 高血圧症", Qualifier("〈成人 高血圧症〉"))
}

func TestQualifier_Plain(t *testing.T) {
	assert.Equal(t, "ショック", Qualifier("ショック"))
	assert.Equal(t, "", Qualifier("a"))
	assert.Equal(t, "", Qualifier(strings.Repeat("長", 200)))
	assert.Equal(t, strings.Repeat("長", 199), Qualifier(strings.Repeat("長", 199)))
	assert.Equal(t, "", Qualifier("   "))
}

func TestCondition_WithDoesNotAlias(t *testing.T) {
	base := Condition{"成人"}
	a := base.With("高血圧症")
	b := base.With("狭心症")
	assert.Equal(t, "成人:高血圧症", a.String())
	assert.Equal(t, "成人:狭心症", b.String())
	assert.Equal(t, "成人", base.String())
	assert.Equal(t, base, base.With(""))
}

func TestCombine(t *testing.T) {
	assert.Equal(t, "A:B", Combine("A", "B"))
	assert.Equal(t, "A", Combine("A", ""))
	assert.Equal(t, "B", Combine("", "B"))
	assert.Equal(t, "", Combine("", ""))
	assert.Equal(t, "非重篤:高血圧症:減量を検討すること", render(NonSerious, Condition{"高血圧症"}, "減量を検討すること"))
}

func TestParseAdditive(t *testing.T) {
	name, amount := ParseAdditive("人血清アルブミン 100mg")
	assert.Equal(t, "人血清アルブミン", name)
	assert.Equal(t, "100mg", amount)

	name, amount = ParseAdditive("pH調節剤 0.5mg/mL")
	assert.Equal(t, "pH調節剤", name)
	assert.Equal(t, "0.5mg/mL", amount)

	name, amount = ParseAdditive("乳糖水和物")
	assert.Equal(t, "乳糖水和物", name)
	assert.Equal(t, "", amount)
}
