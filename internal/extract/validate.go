package extract

import (
	"strings"
	"unicode/utf8"
)

// Category names one clinical-information field of a medicine record.
type Category string

const (
	Indications       Category = "indications"
	Dosage            Category = "dosage"
	Contraindications Category = "contraindications"
	Warnings          Category = "warnings"
	SideEffects       Category = "side_effects"
	Interactions      Category = "interactions"
	Compositions      Category = "compositions"
	ActiveIngredients Category = "active_ingredients"
)

// Record is a single normalized clinical statement.
type Record struct {
	Text     string   `json:"text"`
	Category Category `json:"category"`
}

// CategoryInfo describes how a category is labelled and scanned.
type CategoryInfo struct {
	Label    string   // Japanese field label, also the fallback scan needle
	Sections []string // structured sections; fallback hits inside them are ignored
}

// CategoryMap holds the label and structured sections of every text category.
var CategoryMap = map[Category]CategoryInfo{
	Indications:       {Label: "効能・効果", Sections: []string{".//IndicationsOrEfficacy", ".//TherapeuticClassification"}},
	Dosage:            {Label: "用法・用量", Sections: []string{".//InfoDoseAdmin"}},
	Contraindications: {Label: "禁忌", Sections: []string{".//ContraIndications", ".//ContraIndicatedCombinations"}},
	Warnings: {Label: "警告", Sections: []string{
		".//Warnings", ".//ImportantPrecautions", ".//UseInSpecificPopulations",
		".//PrecautionsForApplication", ".//PrecautionsForHandling",
	}},
	SideEffects:  {Label: "副作用", Sections: []string{".//AdverseEvents", ".//SeriousAdverseEvents", ".//OtherAdverseEvents"}},
	Interactions: {Label: "相互作用", Sections: []string{".//PrecautionsCombinations", ".//DrugInteractions"}},
	Compositions: {Label: "組成", Sections: []string{".//CompositionAndProperty"}},
}

// TextCategories lists the categories rendered as plain text, in output order.
var TextCategories = []Category{
	Indications, Dosage, Contraindications, Warnings, SideEffects, Interactions, Compositions,
}

// Labels maps every category, active ingredients included, to its
// Japanese display name.
var Labels = map[Category]string{
	Indications:       "効能・効果",
	Dosage:            "用法・用量",
	Compositions:      "成分・含量",
	ActiveIngredients: "有効成分",
	Contraindications: "禁忌",
	SideEffects:       "副作用",
	Interactions:      "相互作用",
	Warnings:          "警告・注意",
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	_, ok := Labels[c]
	return ok
}

// ValidateRecord checks that a record carries non-empty trimmed text and a
// known category.
func ValidateRecord(r Record) bool {
	if r.Text == "" || strings.TrimSpace(r.Text) != r.Text {
		return false
	}
	if !utf8.ValidString(r.Text) {
		return false
	}
	return ValidCategory(r.Category)
}

// Phrases that mark an allergy or contraindication statement. Leaves
// holding one never count as composition text.
var contraindicationPhrases = []string{
	"過敏症の既往歴", "過敏症既往歴", "アレルギー", "ショックの既往歴",
	"投与しないこと", "投与禁忌", "使用禁忌", "禁忌", "に対し過敏症",
	"の成分に対し", "本剤の成分", "既往歴のある患者", "既往歴のある者",
}

// IsCompositionText reports whether text may be reported as composition.
func IsCompositionText(text string) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < 3 {
		return false
	}
	for _, p := range contraindicationPhrases {
		if strings.Contains(text, p) {
			return false
		}
	}
	return true
}

// Dedupe keeps the first occurrence of every rendered text, preserving
// order. Near-duplicates are not merged.
func Dedupe(records []Record) []Record {
	if len(records) == 0 {
		return records
	}
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.Text]; ok {
			continue
		}
		seen[r.Text] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Texts returns the text of each record.
func Texts(records []Record) []string {
	if len(records) == 0 {
		return nil
	}
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Text
	}
	return out
}
