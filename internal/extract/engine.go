// Package extract turns a loaded package insert into flat clinical
// records, one medicine per brand.
package extract

import (
	"log/slog"

	"github.com/dgallion1/pmdaparse/internal/doctree"
)

// Options controls the engine.
type Options struct {
	FallbackScan bool // run the document-wide label scan per category
	MaxDepth     int  // Item recursion cap
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{FallbackScan: true, MaxDepth: DefaultMaxDepth}
}

// Hooks observe engine decisions. Any hook may be nil.
type Hooks struct {
	Layout   func(Layout)
	Fallback func(cat Category, added int)
	Failure  func(cat Category)
}

// ClinicalInfo holds the extracted records of one medicine.
type ClinicalInfo struct {
	Indications       []string           `json:"indications,omitempty"`
	Dosage            []string           `json:"dosage,omitempty"`
	Contraindications []string           `json:"contraindications,omitempty"`
	Warnings          []string           `json:"warnings,omitempty"`
	SideEffects       []string           `json:"side_effects,omitempty"`
	Interactions      []string           `json:"interactions,omitempty"`
	Compositions      []string           `json:"compositions,omitempty"`
	ActiveIngredients []ActiveIngredient `json:"active_ingredients,omitempty"`
}

// Texts returns the records of a text category.
func (c ClinicalInfo) Texts(cat Category) []string {
	switch cat {
	case Indications:
		return c.Indications
	case Dosage:
		return c.Dosage
	case Contraindications:
		return c.Contraindications
	case Warnings:
		return c.Warnings
	case SideEffects:
		return c.SideEffects
	case Interactions:
		return c.Interactions
	case Compositions:
		return c.Compositions
	}
	return nil
}

// Count returns the number of records in a category.
func (c ClinicalInfo) Count(cat Category) int {
	if cat == ActiveIngredients {
		return len(c.ActiveIngredients)
	}
	return len(c.Texts(cat))
}

func (c *ClinicalInfo) set(cat Category, texts []string) {
	switch cat {
	case Indications:
		c.Indications = texts
	case Dosage:
		c.Dosage = texts
	case Contraindications:
		c.Contraindications = texts
	case Warnings:
		c.Warnings = texts
	case SideEffects:
		c.SideEffects = texts
	case Interactions:
		c.Interactions = texts
	case Compositions:
		c.Compositions = texts
	}
}

// Medicine is the output record for one brand of a document.
type Medicine struct {
	ProductCode               string       `json:"product_code"`
	TherapeuticClassification string       `json:"therapeutic_classification"`
	ProductName               string       `json:"product_name"`
	Form                      string       `json:"form"`
	ManufacturerCode          string       `json:"manufacturer_code"`
	ManufacturerName          string       `json:"manufacturer_name"`
	PackageInsertNo           string       `json:"package_insert_no,omitempty"`
	SourceFilename            string       `json:"source_filename"`
	ClinicalInfo              ClinicalInfo `json:"clinical_info"`
}

// Engine extracts medicines from loaded documents. It keeps no state
// between documents and is safe for concurrent use.
type Engine struct {
	log   *slog.Logger
	opts  Options
	hooks Hooks
}

// NewEngine creates an engine.
func NewEngine(log *slog.Logger, opts Options, hooks Hooks) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Engine{log: log, opts: opts, hooks: hooks}
}

// Extract returns one medicine per brand of doc, or a single medicine
// when the document names no brand. It never fails: an extractor that
// breaks yields an empty category.
func (e *Engine) Extract(doc *doctree.Document, sourceFilename string) []Medicine {
	log := e.log.With("file", sourceFilename)
	s := newScope(doc, e.opts.MaxDepth)

	layout := guard(e, log, Dosage, s.classifyDosage)
	if e.hooks.Layout != nil {
		e.hooks.Layout(layout)
	}
	log.Debug("dosage layout classified", "layout", layout.String())

	var shared ClinicalInfo
	extractors := []struct {
		cat Category
		fn  func() []Record
	}{
		{Indications, s.indications},
		{Dosage, func() []Record { return s.dosage(layout) }},
		{Contraindications, s.contraindications},
		{Warnings, s.warnings},
		{SideEffects, s.sideEffects},
		{Interactions, s.interactions},
	}
	for _, x := range extractors {
		shared.set(x.cat, e.category(log, s, x.cat, x.fn))
	}

	product := guard(e, log, "", func() Product { return ProductInfo(doc) })
	brands := guard(e, log, "", func() []Brand { return Brands(doc) })
	if len(brands) == 0 {
		brands = []Brand{{}}
	}

	type scoped struct {
		compositions []string
		ingredients  []ActiveIngredient
	}
	byBrand := make(map[string]scoped)

	medicines := make([]Medicine, 0, len(brands))
	for _, b := range brands {
		brandID := ResolveBrandID(doc, b.ProductCode)
		sc, ok := byBrand[brandID]
		if !ok {
			sc.compositions = e.category(log, s, Compositions, func() []Record { return s.composition(brandID) })
			sc.ingredients = guard(e, log, ActiveIngredients, func() []ActiveIngredient { return s.activeIngredients(brandID) })
			byBrand[brandID] = sc
		}

		info := shared
		info.Compositions = sc.compositions
		info.ActiveIngredients = sc.ingredients

		medicines = append(medicines, Medicine{
			ProductCode:               b.ProductCode,
			TherapeuticClassification: product.TherapeuticClassification,
			ProductName:               b.ProductName,
			Form:                      product.Form,
			ManufacturerCode:          product.ManufacturerCode,
			ManufacturerName:          product.ManufacturerName,
			PackageInsertNo:           product.PackageInsertNo,
			SourceFilename:            sourceFilename,
			ClinicalInfo:              info,
		})
	}

	if s.truncated > 0 {
		log.Warn("item nesting exceeded depth cap", "skipped_subtrees", s.truncated, "max_depth", e.opts.MaxDepth)
	}
	return medicines
}

// category runs one extractor behind the failure boundary, appends the
// fallback scan's new records and drops anything that fails validation.
func (e *Engine) category(log *slog.Logger, s *scope, cat Category, fn func() []Record) []string {
	records := guard(e, log, cat, fn)

	if e.opts.FallbackScan {
		extra := guard(e, log, cat, func() []Record { return s.fallback(cat, records) })
		if len(extra) > 0 {
			log.Info("fallback scan contributed records", "category", string(cat), "count", len(extra))
			if e.hooks.Fallback != nil {
				e.hooks.Fallback(cat, len(extra))
			}
			records = append(records, extra...)
		}
	}

	texts := make([]string, 0, len(records))
	for _, r := range records {
		if ValidateRecord(r) {
			texts = append(texts, r.Text)
		}
	}
	log.Debug("category extracted", "category", string(cat), "records", len(texts))
	if len(texts) == 0 {
		return nil
	}
	return texts
}

// guard converts a panic inside fn into the zero value and a warning.
func guard[T any](e *Engine, log *slog.Logger, cat Category, fn func() T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("extractor failed", "category", string(cat), "panic", r)
			if e.hooks.Failure != nil {
				e.hooks.Failure(cat)
			}
			var zero T
			out = zero
		}
	}()
	return fn()
}
