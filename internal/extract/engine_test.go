package extract

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEngine_OneMedicinePerBrand(t *testing.T) {
	doc := load(t, twoBrands+`<AdverseEvents><SeriousAdverseEvents><SimpleList>`+
		item("ショック", "呼吸困難等が現れることがある", "")+
		`</SimpleList></SeriousAdverseEvents></AdverseEvents>`)

	var layouts []Layout
	e := NewEngine(quietLogger(), Options{}, Hooks{Layout: func(l Layout) { layouts = append(layouts, l) }})
	meds := e.Extract(doc, "amlo.xml")

	require.Len(t, meds, 2)
	assert.Equal(t, []Layout{LayoutList}, layouts)

	first, second := meds[0], meds[1]
	assert.Equal(t, "2171022F1020", first.ProductCode)
	assert.Equal(t, "アムロ錠2.5mg", first.ProductName)
	assert.Equal(t, "錠剤", first.Form)
	assert.Equal(t, "amlo.xml", first.SourceFilename)
	assert.Equal(t, "2171022F2026", second.ProductCode)

	assert.Equal(t, []string{"重篤:ショック:呼吸困難等が現れることがある"}, first.ClinicalInfo.SideEffects)
	assert.Equal(t, first.ClinicalInfo.SideEffects, second.ClinicalInfo.SideEffects)

	assert.Contains(t, first.ClinicalInfo.Compositions, "アムロジピンベシル酸塩: 3.47mg")
	assert.NotContains(t, first.ClinicalInfo.Compositions, "アムロジピンベシル酸塩: 6.93mg")
	assert.Equal(t, []string{"アムロジピンベシル酸塩: 6.93mg", "添付溶解液: 注射用水 1mL"}, second.ClinicalInfo.Compositions)

	assert.Equal(t, 4, first.ClinicalInfo.Count(Compositions))
	assert.Equal(t, 0, first.ClinicalInfo.Count(ActiveIngredients))
	assert.Nil(t, first.ClinicalInfo.Dosage)
}

func TestEngine_NoBrandYieldsSingleMedicine(t *testing.T) {
	doc := load(t, `<ContraIndications><SimpleList>`+item("", "妊婦又は妊娠している可能性のある女性", "")+`</SimpleList></ContraIndications>`)

	meds := NewEngine(quietLogger(), Options{}, Hooks{}).Extract(doc, "x.xml")
	require.Len(t, meds, 1)
	assert.Empty(t, meds[0].ProductCode)
	assert.Equal(t, []string{"妊婦又は妊娠している可能性のある女性"}, meds[0].ClinicalInfo.Contraindications)
}

func TestEngine_FallbackAppendsOutsideSections(t *testing.T) {
	body := `<Remarks>
<Detail>` + ja("相互作用の項を参照すること") + `</Detail>
<Detail>` + ja("組成の詳細は別紙を参照すること") + `</Detail>
<Detail>` + ja("本剤の組成に対し過敏症の既往歴のある患者") + `</Detail>
</Remarks>
<DrugInteractions><SimpleList>` + item("", "相互作用の項を参照すること", "") + item("", "CYP3A4で代謝される", "") + `</SimpleList></DrugInteractions>
<ContraIndications><SimpleList>` + item("", "併用禁忌の薬剤がある", "") + `</SimpleList></ContraIndications>`
	doc := load(t, body)

	added := make(map[Category]int)
	e := NewEngine(quietLogger(), DefaultOptions(), Hooks{Fallback: func(c Category, n int) { added[c] += n }})
	meds := e.Extract(doc, "f.xml")
	require.Len(t, meds, 1)
	info := meds[0].ClinicalInfo

	// The interaction note is already structured, so it is not appended again.
	assert.Equal(t, []string{"相互作用の項を参照すること", "CYP3A4で代謝される"}, info.Interactions)
	assert.Equal(t, []string{"組成の詳細は別紙を参照すること"}, info.Compositions)
	// Hits inside the structured contraindication section are ignored.
	assert.Equal(t, []string{"併用禁忌の薬剤がある"}, info.Contraindications)

	assert.Equal(t, map[Category]int{Compositions: 1}, added)
}

func TestEngine_FallbackDisabled(t *testing.T) {
	doc := load(t, `<Remarks><Detail>`+ja("組成の詳細は別紙を参照すること")+`</Detail></Remarks>`)

	called := false
	e := NewEngine(quietLogger(), Options{FallbackScan: false}, Hooks{Fallback: func(Category, int) { called = true }})
	meds := e.Extract(doc, "f.xml")
	require.Len(t, meds, 1)
	assert.Nil(t, meds[0].ClinicalInfo.Compositions)
	assert.False(t, called)
}

func TestGuard_RecoversPanic(t *testing.T) {
	var failed []Category
	e := NewEngine(quietLogger(), Options{}, Hooks{Failure: func(c Category) { failed = append(failed, c) }})

	got := guard(e, e.log, Dosage, func() []Record { panic("boom") })
	assert.Nil(t, got)
	assert.Equal(t, []Category{Dosage}, failed)

	ok := guard(e, e.log, Warnings, func() []Record { return []Record{{Text: "a", Category: Warnings}} })
	assert.Len(t, ok, 1)
	assert.Len(t, failed, 1)
}

func TestEngine_DepthCapOption(t *testing.T) {
	nested := item("第三階層", "深い記述", "")
	nested = item("第二階層", "", nested)
	nested = item("第一階層", "", nested)
	doc := load(t, `<Warnings><SimpleList>`+nested+`</SimpleList></Warnings>`)

	meds := NewEngine(quietLogger(), Options{MaxDepth: 2}, Hooks{}).Extract(doc, "deep.xml")
	require.Len(t, meds, 1)
	assert.Nil(t, meds[0].ClinicalInfo.Warnings)

	meds = NewEngine(quietLogger(), Options{}, Hooks{}).Extract(doc, "deep.xml")
	assert.Equal(t, []string{"第一階層:第二階層:第三階層:深い記述"}, meds[0].ClinicalInfo.Warnings)
}

func TestClinicalInfo_Texts(t *testing.T) {
	info := ClinicalInfo{Dosage: []string{"1日1回"}, Warnings: []string{"注意"}}
	assert.Equal(t, []string{"1日1回"}, info.Texts(Dosage))
	assert.Equal(t, []string{"注意"}, info.Texts(Warnings))
	assert.Nil(t, info.Texts(ActiveIngredients))
	assert.Equal(t, 1, info.Count(Dosage))
}
