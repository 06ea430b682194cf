package doctree

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wrap(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<PackageInsert xmlns="` + Namespace + `">` + body + `</PackageInsert>`
}

func mustLoad(t *testing.T, body string) *Document {
	t.Helper()
	doc, err := Load(strings.NewReader(wrap(body)))
	require.NoError(t, err)
	return doc
}

func TestLoad_KeepsBreakInstruction(t *testing.T) {
	doc := mustLoad(t, `<ListOfAdditives><Lang xml:lang="ja">乳糖<?enter?>ステアリン酸Mg</Lang></ListOfAdditives>`)

	lang := doc.FindFirst(".//ListOfAdditives/Lang", nil)
	require.NotNil(t, lang)
	require.Len(t, lang.Children, 3)
	assert.Equal(t, TextNode, lang.Children[0].Kind)
	assert.Equal(t, BreakNode, lang.Children[1].Kind)
	assert.Equal(t, "ステアリン酸Mg", lang.Children[2].Data)
	assert.Equal(t, "ja", lang.Lang())
}

func TestLoad_IgnoresOtherInstructionsAndComments(t *testing.T) {
	doc := mustLoad(t, `<Detail><Lang xml:lang="ja">A<?other x?><!-- note -->B</Lang></Detail>`)
	lang := doc.FindFirst(".//Lang", nil)
	require.NotNil(t, lang)
	assert.Equal(t, "AB", lang.Text())
}

func TestLoad_RejectsForeignNamespace(t *testing.T) {
	_, err := Load(strings.NewReader(`<root xmlns="urn:other"><a/></root>`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotPackageInsert))
}

func TestLoad_EmptyInput(t *testing.T) {
	_, err := Load(strings.NewReader(`<?xml version="1.0"?>`))
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestLoad_ShiftJIS(t *testing.T) {
	// "薬" in Shift_JIS is 0x96 0xf2.
	raw := []byte(`<?xml version="1.0" encoding="Shift_JIS"?><PackageInsert xmlns="` + Namespace + `"><Lang xml:lang="ja">`)
	raw = append(raw, 0x96, 0xf2)
	raw = append(raw, []byte(`</Lang></PackageInsert>`)...)

	doc, err := LoadBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, "薬", doc.LeafText(doc.FindFirst("Lang", nil)))
}

func TestFindAll_DocumentOrder(t *testing.T) {
	doc := mustLoad(t, `
<Section>
  <Item id="1"><SimpleList><Item id="2"/></SimpleList></Item>
  <Item id="3"/>
</Section>`)

	var ids []string
	for _, n := range doc.FindAll(".//Item", nil) {
		ids = append(ids, n.ID())
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)
}

func TestFindAll_ChildStepsFromNestedContextsStaySorted(t *testing.T) {
	doc := mustLoad(t, `
<A id="outer">
  <X id="x1"/>
  <A id="inner"><X id="x2"/></A>
  <X id="x3"/>
</A>`)

	var ids []string
	for _, n := range doc.FindAll(".//A/X", nil) {
		ids = append(ids, n.ID())
	}
	assert.Equal(t, []string{"x1", "x2", "x3"}, ids)
}

func TestFindAll_Predicates(t *testing.T) {
	doc := mustLoad(t, `
<CompositionForBrand ref="BRD_Drug1"><CompositionTable id="t1"/></CompositionForBrand>
<CompositionForBrand ref="BRD_Drug2"><CompositionTable id="t2"/></CompositionForBrand>
<Header><Lang xml:lang="en">Shock</Lang><Lang xml:lang="ja">ショック</Lang></Header>`)

	tables := doc.FindAll(".//CompositionForBrand[@ref='BRD_Drug2']//CompositionTable", nil)
	require.Len(t, tables, 1)
	assert.Equal(t, "t2", tables[0].ID())

	ja := doc.FindFirst(`./Header/Lang[@xml:lang="ja"]`, nil)
	require.NotNil(t, ja)
	assert.Equal(t, "ショック", ja.Text())
}

func TestFindAll_DirectChildOnly(t *testing.T) {
	doc := mustLoad(t, `<Item><Header/><SimpleList><Item><Header/></Item></SimpleList></Item>`)
	item := doc.FindFirst("Item", nil)
	require.NotNil(t, item)
	assert.Len(t, doc.FindAll("./Header", item), 1)
	assert.Len(t, doc.FindAll(".//Header", item), 2)
}

func TestFindAll_WrongNamespaceNeverMatches(t *testing.T) {
	doc := mustLoad(t, `<x:Item xmlns:x="urn:other"/>`)
	assert.Empty(t, doc.FindAll(".//Item", nil))
}

func TestFindFirst_MissingReturnsNil(t *testing.T) {
	doc := mustLoad(t, `<Item/>`)
	assert.Nil(t, doc.FindFirst(".//ContraIndications", nil))
	assert.Empty(t, doc.FindAll(".//ContraIndications/Item", nil))
}

func TestCompile_Malformed(t *testing.T) {
	for _, expr := range []string{"", ".", "Item[@id='1'", "Item[text()]", "Item[@id=1]", "Item[@foo:bar='x']"} {
		_, err := Compile(expr)
		assert.Error(t, err, expr)
	}
	assert.Panics(t, func() { MustCompile("Item[") })
}

func TestCompile_PrefixedSteps(t *testing.T) {
	doc := mustLoad(t, `<Detail><Lang xml:lang="ja">本文</Lang></Detail>`)
	n := doc.FindFirst(".//pmda:Detail/pmda:Lang[@xml:lang='ja']", nil)
	require.NotNil(t, n)
	assert.Equal(t, "本文", doc.LeafText(n))
}

func TestLeafText_OnlyJapanese(t *testing.T) {
	doc := mustLoad(t, `<Lang xml:lang="en">Shock</Lang><Lang xml:lang="ja">ショック</Lang><Name>ショック</Name>`)
	langs := doc.FindAll("Lang", nil)
	require.Len(t, langs, 2)
	assert.Equal(t, "", doc.LeafText(langs[0]))
	assert.Equal(t, "ショック", doc.LeafText(langs[1]))
	assert.Equal(t, "", doc.LeafText(doc.FindFirst("Name", nil)))
}

func TestLeaves(t *testing.T) {
	doc := mustLoad(t, `
<A><Lang xml:lang="ja">一</Lang><Lang xml:lang="en">one</Lang></A>
<B><Lang xml:lang="ja">二</Lang></B>`)
	leaves := doc.Leaves(nil)
	require.Len(t, leaves, 2)
	assert.Equal(t, "一", leaves[0].Text())
	assert.Equal(t, "二", leaves[1].Text())
}

func TestOutermost(t *testing.T) {
	doc := mustLoad(t, `
<Section>
  <Item id="1"><SimpleList><Item id="1.1"/></SimpleList></Item>
  <Wrapper><Item id="2"/></Wrapper>
</Section>`)
	section := doc.FindFirst("Section", nil)

	var ids []string
	for _, n := range doc.Outermost(section, "Item") {
		ids = append(ids, n.ID())
	}
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestContainsAndBefore(t *testing.T) {
	doc := mustLoad(t, `<A><B/></A><C/>`)
	a, b, c := doc.FindFirst("A", nil), doc.FindFirst(".//B", nil), doc.FindFirst("C", nil)
	assert.True(t, Contains(a, b))
	assert.False(t, Contains(a, c))
	assert.True(t, Before(a, c))
	assert.True(t, Before(b, c))
	assert.False(t, Before(c, a))
}
