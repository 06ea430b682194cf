package extract

import (
	"regexp"
	"strings"

	"github.com/dgallion1/pmdaparse/internal/doctree"
	"github.com/dgallion1/pmdaparse/internal/textnorm"
)

const additivePrefix = "添加物"

// additiveAmount splits "name amount" where amount is a number with a
// known unit and an optional per-unit suffix (人血清アルブミン 100mg).
var additiveAmount = regexp.MustCompile(
	`^(.+?)\s+([\d.]+(?:mg|g|mL|L|％|%|単位|国際単位|IU)(?:/[\p{L}\p{N}_.]+)?)\s*$`,
)

// ParseAdditive splits an additive list entry into name and amount. An
// entry without a recognizable amount is returned whole as the name.
func ParseAdditive(item string) (name, amount string) {
	item = strings.TrimSpace(item)
	if m := additiveAmount.FindStringSubmatch(item); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return item, ""
}

// composition renders the ingredients, additives and other components of
// the brand's composition tables, in that order.
func (s *scope) composition(brandID string) []Record {
	var actives, additives, others []string

	addAdditive := func(name, amount string) {
		if name == "" {
			return
		}
		additives = append(additives, joinFields(additivePrefix, name, amount))
	}

	for _, table := range s.compositionTables(brandID) {
		for _, ca := range s.doc.FindAll(".//ContainedAmount", table) {
			name := s.text(".//ActiveIngredientName/Lang[@xml:lang='ja']", ca)
			if name == "" {
				continue
			}
			actives = append(actives, joinFields(name, s.text(".//ValueAndUnit/Lang[@xml:lang='ja']", ca)))
		}

		for _, info := range s.doc.FindAll(".//InfoIndividualAdditive", table) {
			addAdditive(
				s.text("./IndividualAdditive/Lang[@xml:lang='ja']", info),
				s.text("./ValueAndUnit/Lang[@xml:lang='ja']", info),
			)
		}

		// The list is one leaf whose entries are separated by soft breaks.
		for _, list := range s.doc.FindAll(".//ListOfAdditives/Lang[@xml:lang='ja']", table) {
			for _, line := range textnorm.Lines(list) {
				addAdditive(ParseAdditive(line))
			}
		}

		for _, oc := range s.doc.FindAll(".//OtherComposition", table) {
			if t := s.otherComposition(oc); t != "" {
				others = append(others, t)
			}
		}
	}

	out := &emitter{cat: Compositions}
	for _, group := range [][]string{actives, additives, others} {
		for _, t := range group {
			out.add(t)
		}
	}
	return Dedupe(out.records)
}

// otherComposition renders "category: title[: detail]". The detail is
// promoted to title when the title is missing.
func (s *scope) otherComposition(oc *doctree.Node) string {
	titleNode := s.doc.FindFirst(".//ContentTitle/Lang[@xml:lang='ja']", oc)
	detailNode := s.doc.FindFirst(".//ContentDetail/Lang[@xml:lang='ja']", oc)
	if titleNode == nil && detailNode == nil {
		return ""
	}
	category := s.text(".//CategoryName/Lang[@xml:lang='ja']", oc)
	title := textnorm.Flatten(titleNode)
	detail := textnorm.Flatten(detailNode)
	if title == "" {
		title, detail = detail, ""
	}
	if title == "" {
		return ""
	}
	return joinFields(category, title, detail)
}

// joinFields joins the non-empty fields with ": ".
func joinFields(fields ...string) string {
	var kept []string
	for _, f := range fields {
		if f != "" {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, ": ")
}
