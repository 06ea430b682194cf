package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/pmdaparse/internal/doctree"
	"github.com/dgallion1/pmdaparse/internal/textnorm"
)

// Separator joins severity, condition qualifiers and text.
const Separator = ":"

// Condition is the chain of header qualifiers from the section down to
// the current Item, ancestor first. A Condition is never modified in
// place; With returns a new value.
type Condition []string

// With returns c extended by q. An empty qualifier leaves c unchanged.
func (c Condition) With(q string) Condition {
	if q == "" {
		return c
	}
	out := make(Condition, len(c), len(c)+1)
	copy(out, c)
	return append(out, q)
}

// String renders the condition as a single prefix.
func (c Condition) String() string {
	return Combine(c...)
}

// Combine joins the non-empty parts with Separator.
func Combine(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(p)
	}
	return b.String()
}

// render builds "severity:cond...:text..." skipping empty parts.
func render(severity string, cond Condition, text ...string) string {
	parts := make([]string, 0, 1+len(cond)+len(text))
	parts = append(parts, severity)
	parts = append(parts, cond...)
	parts = append(parts, text...)
	return Combine(parts...)
}

const (
	openBracket  = "〈"
	closeBracket = "〉"

	// A bracketed qualifier must be longer than this to count.
	minBracketed = 2
	// A plain header qualifier must be strictly between these lengths.
	minPlain = 1
	maxPlain = 200
)

// Qualifier extracts the condition qualifier from a header text, or "" if
// the header is noise.
func Qualifier(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if strings.Contains(header, openBracket) && strings.Contains(header, closeBracket) {
		q := strings.TrimSpace(strings.NewReplacer(openBracket, "", closeBracket, "").Replace(header))
		if utf8.RuneCountInString(q) > minBracketed {
			return q
		}
		return ""
	}
	if n := utf8.RuneCountInString(header); n > minPlain && n < maxPlain {
		return header
	}
	return ""
}

// qualifier resolves the qualifier of n from its direct Header children
// only; headers further down belong to nested items.
func (s *scope) qualifier(n *doctree.Node) string {
	for _, h := range s.doc.FindAll("./Header/Lang[@xml:lang='ja']", n) {
		if q := Qualifier(textnorm.Flatten(h)); q != "" {
			return q
		}
	}
	return ""
}

// headerText returns the first non-empty direct header text of n.
func (s *scope) headerText(n *doctree.Node) string {
	for _, h := range s.doc.FindAll("./Header/Lang[@xml:lang='ja']", n) {
		if text := textnorm.Flatten(h); text != "" {
			return text
		}
	}
	return ""
}
