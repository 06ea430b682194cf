package extract

import (
	"strings"

	"github.com/dgallion1/pmdaparse/internal/doctree"
	"github.com/dgallion1/pmdaparse/internal/textnorm"
)

// entrySeparator joins the entries decoded from one table.
const entrySeparator = "、"

// placeholders are cell values that mean "no data".
var placeholders = map[string]bool{
	"-":       true,
	"－":       true,
	"―":       true,
	"—":       true,
	"‐":       true,
	"データなし":   true,
	"該当データなし": true,
}

// DoseEntry is one decoded (range, dose) row of a body-surface-area table.
type DoseEntry struct {
	Range string
	Dose  string
}

func (e DoseEntry) String() string { return e.Range + Separator + e.Dose }

// cellText returns the text of a table cell. Every Japanese Lang in the
// cell contributes, with squared superscripts rendered as "²".
func (s *scope) cellText(cell *doctree.Node) string {
	langs := s.doc.FindAll(".//Lang[@xml:lang='ja']", cell)
	if len(langs) == 0 {
		return textnorm.FlattenSup(cell)
	}
	var b strings.Builder
	for _, l := range langs {
		b.WriteString(textnorm.Collect(l, textnorm.Options{SquareSup: true}))
	}
	return textnorm.Clean(b.String())
}

func (s *scope) rows(table *doctree.Node) [][]string {
	var out [][]string
	for _, row := range s.doc.FindAll(".//SimpTblRow", table) {
		cells := s.doc.FindAll("./SimpTblCell", row)
		texts := make([]string, len(cells))
		for i, c := range cells {
			texts[i] = s.cellText(c)
		}
		out = append(out, texts)
	}
	return out
}

// doseEntries decodes a body-surface-area table: the header row is
// skipped and the first two cells of every other row are read as range
// and dose.
func (s *scope) doseEntries(table *doctree.Node) []DoseEntry {
	rows := s.rows(table)
	if len(rows) < 2 {
		return nil
	}
	var out []DoseEntry
	for _, row := range rows[1:] {
		if len(row) < 2 || row[0] == "" || row[1] == "" {
			continue
		}
		out = append(out, DoseEntry{Range: row[0], Dose: row[1]})
	}
	return out
}

// tableRecords decodes a table keyed by its first column (a procedure,
// drug or organ class). Each data row becomes "name:col value、..." with
// placeholder cells skipped.
func (s *scope) tableRecords(table *doctree.Node, severity string) []string {
	rows := s.rows(table)
	if len(rows) < 2 {
		return nil
	}
	header := rows[0]

	var out []string
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		name := row[0]
		if name == "" || placeholders[name] {
			continue
		}
		var entries []string
		for j := 1; j < len(row); j++ {
			v := row[j]
			if v == "" || placeholders[v] {
				continue
			}
			if j < len(header) && header[j] != "" && !placeholders[header[j]] {
				v = header[j] + " " + v
			}
			entries = append(entries, v)
		}
		if len(entries) == 0 {
			continue
		}
		out = append(out, render(severity, nil, name, strings.Join(entries, entrySeparator)))
	}
	return out
}

// simpleTable returns the SimpleTable inside a TblBlock, or the block
// itself when it is already a table.
func (s *scope) simpleTable(block *doctree.Node) *doctree.Node {
	if block.Local() == "SimpleTable" {
		return block
	}
	return s.doc.FindFirst(".//SimpleTable", block)
}
