// Package report summarizes a batch run for people: Markdown for the
// CLI, sanitized HTML for the API.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dgallion1/pmdaparse/internal/extract"
)

// Summary aggregates the outcome of a batch.
type Summary struct {
	Files      int                      `json:"files"`
	Duplicates int                      `json:"duplicates"`
	Skipped    int                      `json:"skipped"`
	Failed     int                      `json:"failed"`
	Medicines  int                      `json:"medicines"`
	Records    map[extract.Category]int `json:"records"`
	Failures   []string                 `json:"failures,omitempty"`
	Elapsed    time.Duration            `json:"elapsed_ns"`
}

// AddMedicines counts the medicines and their records per category.
func (s *Summary) AddMedicines(meds []extract.Medicine) {
	if s.Records == nil {
		s.Records = make(map[extract.Category]int)
	}
	s.Medicines += len(meds)
	for _, m := range meds {
		for _, cat := range categories {
			s.Records[cat] += m.ClinicalInfo.Count(cat)
		}
	}
}

// AddFailure records a document that produced zero records.
func (s *Summary) AddFailure(name string, err error) {
	s.Failed++
	s.Failures = append(s.Failures, fmt.Sprintf("%s: %v", name, err))
}

// TotalRecords sums the per-category counts.
func (s Summary) TotalRecords() int {
	n := 0
	for _, c := range s.Records {
		n += c
	}
	return n
}

var categories = append(append([]extract.Category{}, extract.TextCategories...), extract.ActiveIngredients)

// Markdown renders the summary as a GitHub-flavored Markdown document.
func (s Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("# Extraction summary\n\n")
	b.WriteString("| | |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Files | %d |\n", s.Files)
	fmt.Fprintf(&b, "| Duplicates | %d |\n", s.Duplicates)
	fmt.Fprintf(&b, "| Already stored | %d |\n", s.Skipped)
	fmt.Fprintf(&b, "| Failed | %d |\n", s.Failed)
	fmt.Fprintf(&b, "| Medicines | %d |\n", s.Medicines)
	fmt.Fprintf(&b, "| Records | %d |\n", s.TotalRecords())
	fmt.Fprintf(&b, "| Elapsed | %s |\n", s.Elapsed.Round(time.Millisecond))

	b.WriteString("\n## Records by category\n\n")
	b.WriteString("| Category | Label | Records |\n|---|---|---:|\n")
	for _, cat := range categories {
		fmt.Fprintf(&b, "| %s | %s | %d |\n", cat, extract.Labels[cat], s.Records[cat])
	}

	if len(s.Failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "- %s\n", escape(f))
		}
	}
	return b.String()
}

// escape keeps file names and error text from being read as markup.
func escape(s string) string {
	return strings.NewReplacer(
		`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`,
		"[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;", "|", `\|`,
	).Replace(s)
}

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.Table))
	policy   = bluemonday.UGCPolicy()
)

// HTML renders the Markdown summary to sanitized HTML.
func (s Summary) HTML() (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(s.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}
