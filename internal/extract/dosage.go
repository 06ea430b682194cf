package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"

	"github.com/dgallion1/pmdaparse/internal/doctree"
	"github.com/dgallion1/pmdaparse/internal/textnorm"
)

// Layout is the dosage-section shape of a document. It is decided once
// per document by ClassifyDosage and then drives the dosage extractor.
type Layout int

const (
	// LayoutList is the common shape: nested Items with Header/Detail.
	LayoutList Layout = iota
	// LayoutTable has a single procedure- or drug-keyed dosage table.
	LayoutTable
	// LayoutComplex uses lettered methods (A法, B法, ...) with
	// body-surface-area dose tables.
	LayoutComplex
)

func (l Layout) String() string {
	switch l {
	case LayoutTable:
		return "table"
	case LayoutComplex:
		return "complex"
	default:
		return "list"
	}
}

// methodLabel matches a method label (A法：) in half- or full-width form.
var methodLabel = regexp.MustCompile(`([A-FＡ-Ｆ])法[：:]`)

// methodName folds a matched label letter to its canonical "A法" form.
func methodName(letter string) string {
	return width.Fold.String(letter) + "法"
}

// dosageLeaves returns the Japanese Detail leaves under root.
func (s *scope) dosageLeaves(root *doctree.Node) []*doctree.Node {
	return s.doc.FindAll(".//Detail/Lang[@xml:lang='ja']", root)
}

// ClassifyDosage decides the dosage layout of doc. Two or more distinct
// method labels, or two or more table blocks, make a document complex.
// Adding a label never makes a complex document standard again.
func ClassifyDosage(doc *doctree.Document) Layout {
	return newScope(doc, 0).classifyDosage()
}

func (s *scope) classifyDosage() Layout {
	labels := make(map[string]struct{})
	tables := 0
	for _, section := range s.sections(".//InfoDoseAdmin") {
		for _, leaf := range s.dosageLeaves(section) {
			for _, m := range methodLabel.FindAllStringSubmatch(textnorm.Flatten(leaf), -1) {
				labels[methodName(m[1])] = struct{}{}
			}
		}
		tables += len(s.doc.FindAll(".//TblBlock", section))
	}

	switch {
	case len(labels) >= 2 || tables >= 2:
		return LayoutComplex
	case tables == 1:
		return LayoutTable
	default:
		return LayoutList
	}
}

// dosage extracts dosage records using the layout decided for the document.
func (s *scope) dosage(layout Layout) []Record {
	out := &emitter{cat: Dosage}
	if layout == LayoutComplex {
		if section := s.doc.FindFirst(".//InfoDoseAdmin", nil); section != nil {
			for _, t := range s.complexDosage(section) {
				out.add(t)
			}
		}
		return Dedupe(out.records)
	}

	for _, doseAdmin := range s.sections(".//InfoDoseAdmin//DoseAdmin") {
		items := s.doc.FindAll("./SimpleList/Item", doseAdmin)
		for _, item := range items {
			s.walkItem(item, nil, "", 0, out)
		}

		var blocks []*doctree.Node
		if layout == LayoutTable {
			blocks = s.doc.FindAll(".//TblBlock", doseAdmin)
		}

		if len(items) == 0 {
			cond := Condition(nil).With(s.qualifier(doseAdmin))
			for _, leaf := range s.dosageLeaves(doseAdmin) {
				if insideAny(leaf, blocks) {
					continue
				}
				out.add(render("", cond, textnorm.Flatten(leaf)))
			}
		}

		for _, block := range blocks {
			if table := s.simpleTable(block); table != nil {
				for _, t := range s.tableRecords(table, "") {
					out.add(t)
				}
			}
		}
	}
	return Dedupe(out.records)
}

func insideAny(n *doctree.Node, roots []*doctree.Node) bool {
	for _, r := range roots {
		if doctree.Contains(r, n) {
			return true
		}
	}
	return false
}

// Method is one decoded administration method of a complex dosage section.
type Method struct {
	Label    string
	Schedule string
	Entries  []DoseEntry

	anchor *doctree.Node // Detail leaf holding the label
}

// Render formats the method as "label:schedule/体表面積range:dose、...".
func (m Method) Render() string {
	head := m.Label + Separator + m.Schedule
	if len(m.Entries) == 0 {
		return head
	}
	parts := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		parts[i] = e.String()
	}
	return head + "/体表面積" + strings.Join(parts, entrySeparator)
}

// complexDosage decodes a lettered-method dosage section into a premise
// record followed by one record per method.
func (s *scope) complexDosage(section *doctree.Node) []string {
	var out []string

	if doseAdmin := s.doc.FindFirst(".//DoseAdmin", section); doseAdmin != nil {
		if first := s.doc.FindFirst("./Detail/Lang[@xml:lang='ja']", doseAdmin); first != nil {
			if premise := textnorm.FirstLine(first); premise != "" && !startsWithLabel(premise) {
				out = append(out, premise)
			}
		}
	}

	blocks := s.doc.FindAll(".//TblBlock", section)
	methods := s.methods(section)
	if len(methods) == 0 {
		// Flagged by table count alone; decode the tables generically.
		for _, block := range blocks {
			if table := s.simpleTable(block); table != nil {
				out = append(out, s.tableRecords(table, "")...)
			}
		}
		return out
	}

	s.assignTables(methods, blocks)
	for _, m := range methods {
		out = append(out, m.Render())
	}
	return out
}

func startsWithLabel(s string) bool {
	loc := methodLabel.FindStringIndex(s)
	return loc != nil && loc[0] == 0
}

// methods splits the dosage Detail text on method labels. Each method's
// schedule runs from its label to the first soft break.
func (s *scope) methods(section *doctree.Node) []Method {
	type span struct {
		start int
		leaf  *doctree.Node
	}
	var (
		b     strings.Builder
		spans []span
	)
	for _, leaf := range s.dosageLeaves(section) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		spans = append(spans, span{start: b.Len(), leaf: leaf})
		b.WriteString(textnorm.Collect(leaf, textnorm.Options{Breaks: textnorm.KeepBreaks}))
	}
	all := b.String()

	leafAt := func(pos int) *doctree.Node {
		var n *doctree.Node
		for _, sp := range spans {
			if sp.start > pos {
				break
			}
			n = sp.leaf
		}
		return n
	}

	matches := methodLabel.FindAllStringSubmatchIndex(all, -1)
	methods := make([]Method, 0, len(matches))
	for i, m := range matches {
		end := len(all)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := all[m[1]:end]
		schedule, _, _ := strings.Cut(body, "\n")
		methods = append(methods, Method{
			Label:    methodName(all[m[2]:m[3]]),
			Schedule: textnorm.Clean(schedule),
			anchor:   leafAt(m[0]),
		})
	}
	return methods
}

// assignTables pairs each method with a dose table. A table belongs to
// the nearest method label before it when that pairing is one-to-one;
// remaining methods fall back to the table at their letter's ordinal.
func (s *scope) assignTables(methods []Method, blocks []*doctree.Node) {
	shared := make(map[*doctree.Node]int)
	for _, m := range methods {
		shared[m.anchor]++
	}

	owner := make([]int, len(blocks))
	owned := make([]int, len(methods))
	for j, block := range blocks {
		owner[j] = -1
		for i, m := range methods {
			if m.anchor != nil && doctree.Before(m.anchor, block) {
				owner[j] = i
			}
		}
		if owner[j] >= 0 {
			owned[owner[j]]++
		}
	}

	claimed := make([]bool, len(blocks))
	pick := make([]int, len(methods))
	for i := range pick {
		pick[i] = -1
	}
	for j, i := range owner {
		if i < 0 || owned[i] != 1 || shared[methods[i].anchor] != 1 {
			continue
		}
		pick[i], claimed[j] = j, true
	}

	for i, m := range methods {
		if pick[i] >= 0 {
			continue
		}
		ord := int(m.Label[0] - 'A')
		if ord >= 0 && ord < len(blocks) && !claimed[ord] {
			pick[i], claimed[ord] = ord, true
		}
	}

	for i := range methods {
		if pick[i] < 0 {
			continue
		}
		if table := s.simpleTable(blocks[pick[i]]); table != nil {
			methods[i].Entries = s.doseEntries(table)
		}
	}
}
