package extract

import (
	"github.com/dgallion1/pmdaparse/internal/doctree"
	"github.com/dgallion1/pmdaparse/internal/textnorm"
)

// Brand is one product described by a package insert.
type Brand struct {
	ID          string `json:"id,omitempty"`
	ProductName string `json:"product_name"`
	ProductCode string `json:"product_code"`
}

// Brands lists the products of doc in document order. Entries with
// neither a name nor a code are skipped.
func Brands(doc *doctree.Document) []Brand {
	var out []Brand
	for _, n := range doc.FindAll(".//DetailBrandName", nil) {
		b := Brand{
			ID:          n.ID(),
			ProductName: textnorm.Flatten(doc.FindFirst("./ApprovalBrandName/Lang[@xml:lang='ja']", n)),
			ProductCode: doc.FindFirst("./BrandCode/YJCode", n).Text(),
		}
		if b.ProductName == "" && b.ProductCode == "" {
			continue
		}
		out = append(out, b)
	}
	return out
}

// ResolveBrandID returns the id of the brand whose YJ code equals
// productCode, or "" when no brand matches.
func ResolveBrandID(doc *doctree.Document, productCode string) string {
	if productCode == "" {
		return ""
	}
	for _, n := range doc.FindAll(".//DetailBrandName", nil) {
		for _, code := range doc.FindAll(".//YJCode", n) {
			if code.Text() == productCode {
				return n.ID()
			}
		}
	}
	return ""
}

// compositionTables returns the composition tables of the brand, or of
// the whole document when brandID is empty or has no brand-scoped tables.
func (s *scope) compositionTables(brandID string) []*doctree.Node {
	if brandID != "" {
		var scoped []*doctree.Node
		for _, n := range s.doc.FindAll(".//CompositionForBrand", nil) {
			if n.AttrValue("", "ref") == brandID {
				scoped = append(scoped, s.doc.FindAll(".//CompositionTable", n)...)
			}
		}
		if len(scoped) > 0 {
			return scoped
		}
	}
	return s.doc.FindAll(".//CompositionAndProperty//CompositionTable", nil)
}
