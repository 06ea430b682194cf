package extract

import (
	"github.com/dgallion1/pmdaparse/internal/doctree"
	"github.com/dgallion1/pmdaparse/internal/textnorm"
)

// DefaultMaxDepth caps Item recursion for untrusted input.
const DefaultMaxDepth = 32

// scope carries the read-only state shared by the extractors for one
// document.
type scope struct {
	doc      *doctree.Document
	maxDepth int

	// truncated counts subtrees skipped by the depth cap.
	truncated int
}

func newScope(doc *doctree.Document, maxDepth int) *scope {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &scope{doc: doc, maxDepth: maxDepth}
}

// emitter accumulates records of one category.
type emitter struct {
	cat     Category
	records []Record
}

func (e *emitter) add(text string) {
	if text == "" {
		return
	}
	e.records = append(e.records, Record{Text: text, Category: e.cat})
}

// sections returns every element matched by any of the paths, in path order.
func (s *scope) sections(paths ...string) []*doctree.Node {
	var out []*doctree.Node
	for _, p := range paths {
		out = append(out, s.doc.FindAll(p, nil)...)
	}
	return out
}

// texts flattens every Japanese leaf matched by path under root.
func (s *scope) texts(path string, root *doctree.Node) []string {
	var out []string
	for _, n := range s.doc.FindAll(path, root) {
		if t := textnorm.Flatten(n); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// text flattens the first Japanese leaf matched by path.
func (s *scope) text(path string, root *doctree.Node) string {
	for _, n := range s.doc.FindAll(path, root) {
		if t := textnorm.Flatten(n); t != "" {
			return t
		}
	}
	return ""
}

// directDetails returns the texts of root's own Detail children.
func (s *scope) directDetails(root *doctree.Node) []string {
	return s.texts("./Detail/Lang[@xml:lang='ja']", root)
}

// walkSection runs the nested item walk over every outermost Item of
// section.
func (s *scope) walkSection(section *doctree.Node, severity string, out *emitter) {
	for _, item := range s.doc.Outermost(section, "Item") {
		s.walkItem(item, nil, severity, 0, out)
	}
}

// walkItem emits the records of one Item and recurses into its nested
// Items with the combined condition. A container Item is not emitted.
func (s *scope) walkItem(item *doctree.Node, parent Condition, severity string, depth int, out *emitter) {
	if depth >= s.maxDepth {
		s.truncated++
		return
	}

	own := s.qualifier(item)
	cond := parent.With(own)

	details := s.directDetails(item)
	for _, d := range details {
		out.add(render(severity, cond, d))
	}

	nested := s.doc.Outermost(item, "Item")
	if len(details) == 0 && len(nested) == 0 {
		if own != "" {
			out.add(render(severity, cond))
		} else if header := s.headerText(item); header != "" {
			out.add(render(severity, parent, header))
		}
	}

	for _, child := range nested {
		s.walkItem(child, cond, severity, depth+1, out)
	}
}
