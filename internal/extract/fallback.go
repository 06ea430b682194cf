package extract

import (
	"strings"

	"github.com/dgallion1/pmdaparse/internal/textnorm"
)

// fallback scans every Japanese leaf outside the category's structured
// sections for the category label. Only texts not already present in
// have are returned; the structured records are never replaced.
func (s *scope) fallback(cat Category, have []Record) []Record {
	info, ok := CategoryMap[cat]
	if !ok {
		return nil
	}
	excluded := s.sections(info.Sections...)

	seen := make(map[string]struct{}, len(have))
	for _, r := range have {
		seen[r.Text] = struct{}{}
	}

	var extra []Record
	for _, leaf := range s.doc.Leaves(nil) {
		if insideAny(leaf, excluded) {
			continue
		}
		text := textnorm.Flatten(leaf)
		if !strings.Contains(text, info.Label) {
			continue
		}
		if cat == Compositions && !IsCompositionText(text) {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		extra = append(extra, Record{Text: text, Category: cat})
	}
	return extra
}
