package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pmdaparse/internal/extract"
	"github.com/dgallion1/pmdaparse/internal/pipeline"
)

func TestHooks(t *testing.T) {
	m := New()
	h := m.Hooks()
	h.Layout(extract.LayoutComplex)
	h.Layout(extract.LayoutComplex)
	h.Fallback(extract.Compositions, 3)
	h.Failure(extract.Dosage)
	h.Failure("")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.layouts.WithLabelValues("complex")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.fallback.WithLabelValues("compositions")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("dosage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("product")))
}

func TestObserveResult(t *testing.T) {
	m := New()
	m.ObserveResult(pipeline.Result{
		Duration: 20 * time.Millisecond,
		Medicines: []extract.Medicine{{ClinicalInfo: extract.ClinicalInfo{
			Dosage:            []string{"a", "b"},
			ActiveIngredients: []extract.ActiveIngredient{{GeneralName: "x"}},
		}}},
	})
	m.ObserveResult(pipeline.Result{Err: errors.New("bad")})
	m.ObserveResult(pipeline.Result{Skipped: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.documents.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documents.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documents.WithLabelValues("skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.records.WithLabelValues("dosage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("active_ingredients")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Hooks().Layout(extract.LayoutTable)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pmdaparse_dosage_layout_total{layout="table"} 1`)
}
