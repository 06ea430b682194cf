package extract

import (
	"strings"

	"github.com/dgallion1/pmdaparse/internal/doctree"
)

// Product is the document-level header information shared by every
// brand of a package insert.
type Product struct {
	TherapeuticClassification string
	Form                      string
	ManufacturerCode          string
	ManufacturerName          string
	PackageInsertNo           string
}

// ProductInfo reads the header fields of doc.
func ProductInfo(doc *doctree.Document) Product {
	s := newScope(doc, 0)
	p := Product{
		TherapeuticClassification: s.text(".//TherapeuticClassification/Detail/Lang[@xml:lang='ja']", nil),
		ManufacturerCode:          doc.FindFirst(".//CompanyIdentifier", nil).Text(),
		ManufacturerName:          s.text(".//NameAddressManufact/Manufacturer//Name/Lang[@xml:lang='ja']", nil),
		PackageInsertNo:           doc.FindFirst(".//PackageInsertNo", nil).Text(),
	}
	p.Form = s.form(p.TherapeuticClassification)
	return p
}

// form picks the most descriptive dosage-form text available, falling
// back to the therapeutic classification.
func (s *scope) form(classification string) string {
	for _, table := range s.sections(".//Property//PropertyTable") {
		formulation := s.text("./Formulation/Lang[@xml:lang='ja']", table)
		color := s.text("./ColorTone/Lang[@xml:lang='ja']", table)
		if f := Combine(formulation, color); f != "" {
			return f
		}
	}

	if f := s.otherProperty(".//PropertyForConstituentUnits//OtherProperty", "外観", "性状"); f != "" {
		return f
	}
	if f := s.otherProperty(".//Property//PropertyTable/OtherProperty", "剤形"); f != "" {
		return f
	}

	if brand := s.doc.FindFirst(".//DetailBrandName", nil); brand != nil {
		if f := s.text("./DosageForm/Lang[@xml:lang='ja']", brand); f != "" {
			return f
		}
	}
	return classification
}

// otherProperty returns the content detail of the first OtherProperty
// whose category mentions any of the keywords.
func (s *scope) otherProperty(path string, keywords ...string) string {
	for _, prop := range s.sections(path) {
		category := s.text("./CategoryName/Lang[@xml:lang='ja']", prop)
		if !containsAny(category, keywords) {
			continue
		}
		if detail := s.text("./Content/ContentDetail/Lang[@xml:lang='ja']", prop); detail != "" {
			return detail
		}
	}
	return ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
