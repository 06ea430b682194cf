package extract

import (
	"strings"

	"github.com/dgallion1/pmdaparse/internal/doctree"
	"github.com/dgallion1/pmdaparse/internal/textnorm"
)

// ActiveIngredient holds the physicochemical properties of one active
// ingredient.
type ActiveIngredient struct {
	GeneralName             string `json:"general_name,omitempty"`
	ChemicalName            string `json:"chemical_name,omitempty"`
	MolecularFormula        string `json:"molecular_formula,omitempty"`
	MolecularWeight         string `json:"molecular_weight,omitempty"`
	Nature                  string `json:"nature,omitempty"`
	Description             string `json:"description,omitempty"`
	Solubility              string `json:"solubility,omitempty"`
	DistributionCoefficient string `json:"distribution_coefficient,omitempty"`
	PKa                     string `json:"pka,omitempty"`
}

// IsZero reports whether no property was found.
func (a ActiveIngredient) IsZero() bool {
	return a == ActiveIngredient{}
}

// fieldText joins the lines of a property leaf with spaces.
func (s *scope) fieldText(section *doctree.Node, element string) string {
	n := s.doc.FindFirst(".//"+element+"/Detail/Lang[@xml:lang='ja']", section)
	if n == nil {
		return ""
	}
	return strings.Join(textnorm.Lines(n), " ")
}

// activeIngredients reads every physicochemical section. With a brand
// id, sections are narrowed to the ingredients named in that brand's
// composition when any of them match.
func (s *scope) activeIngredients(brandID string) []ActiveIngredient {
	var all []ActiveIngredient
	for _, section := range s.sections(".//PhyschemOfActIngredientsSection") {
		a := ActiveIngredient{
			GeneralName:             s.fieldText(section, "GeneralName"),
			ChemicalName:            s.fieldText(section, "ChemicalName"),
			MolecularFormula:        s.fieldText(section, "MolecularFormula"),
			MolecularWeight:         s.fieldText(section, "MolecularWeight"),
			Nature:                  s.fieldText(section, "Nature"),
			Description:             s.fieldText(section, "DescriptionOfActiveIngredients"),
			Solubility:              s.fieldText(section, "Solubility"),
			DistributionCoefficient: s.fieldText(section, "DistributionCoefficient"),
			PKa:                     s.fieldText(section, "pKa"),
		}
		if !a.IsZero() {
			all = append(all, a)
		}
	}
	if brandID == "" || len(all) < 2 {
		return all
	}

	var names []string
	for _, table := range s.compositionTables(brandID) {
		names = append(names, s.texts(".//ActiveIngredientName/Lang[@xml:lang='ja']", table)...)
	}
	var scoped []ActiveIngredient
	for _, a := range all {
		if a.GeneralName != "" && mentions(names, a.GeneralName) {
			scoped = append(scoped, a)
		}
	}
	if len(scoped) == 0 {
		return all
	}
	return scoped
}

func mentions(names []string, general string) bool {
	for _, n := range names {
		if strings.Contains(n, general) || strings.Contains(general, n) {
			return true
		}
	}
	return false
}
