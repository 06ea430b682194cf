// Package metrics exposes Prometheus collectors for extraction runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/pmdaparse/internal/extract"
	"github.com/dgallion1/pmdaparse/internal/pipeline"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	documents *prometheus.CounterVec
	records   *prometheus.CounterVec
	layouts   *prometheus.CounterVec
	fallback  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmdaparse_documents_total",
			Help: "Documents processed, by outcome.",
		}, []string{"outcome"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmdaparse_records_total",
			Help: "Records extracted, by category.",
		}, []string{"category"}),
		layouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmdaparse_dosage_layout_total",
			Help: "Dosage layouts classified.",
		}, []string{"layout"}),
		fallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmdaparse_fallback_records_total",
			Help: "Records contributed by the document-wide fallback scan.",
		}, []string{"category"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmdaparse_extractor_failures_total",
			Help: "Extractors that panicked and yielded an empty category.",
		}, []string{"category"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pmdaparse_document_duration_seconds",
			Help:    "Per-document processing time.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	m.registry.MustRegister(
		m.documents, m.records, m.layouts, m.fallback, m.failures, m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Hooks returns engine hooks that feed the collectors.
func (m *Metrics) Hooks() extract.Hooks {
	return extract.Hooks{
		Layout: func(l extract.Layout) {
			m.layouts.WithLabelValues(l.String()).Inc()
		},
		Fallback: func(cat extract.Category, added int) {
			m.fallback.WithLabelValues(string(cat)).Add(float64(added))
		},
		Failure: func(cat extract.Category) {
			label := string(cat)
			if label == "" {
				label = "product"
			}
			m.failures.WithLabelValues(label).Inc()
		},
	}
}

// ObserveResult records one processed document. It fits Worker.OnResult.
func (m *Metrics) ObserveResult(r pipeline.Result) {
	switch {
	case r.Err != nil:
		m.documents.WithLabelValues("failed").Inc()
	case r.Skipped:
		m.documents.WithLabelValues("skipped").Inc()
		return
	default:
		m.documents.WithLabelValues("ok").Inc()
	}
	m.duration.Observe(r.Duration.Seconds())
	for _, med := range r.Medicines {
		for _, cat := range extract.TextCategories {
			if n := med.ClinicalInfo.Count(cat); n > 0 {
				m.records.WithLabelValues(string(cat)).Add(float64(n))
			}
		}
		if n := med.ClinicalInfo.Count(extract.ActiveIngredients); n > 0 {
			m.records.WithLabelValues(string(extract.ActiveIngredients)).Add(float64(n))
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
