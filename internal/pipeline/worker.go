package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgallion1/pmdaparse/internal/doctree"
	"github.com/dgallion1/pmdaparse/internal/extract"
)

// Sink persists extracted medicines. It is implemented by the record
// store; a nil Sink disables persistence.
type Sink interface {
	HasDocument(ctx context.Context, contentHash string) (bool, error)
	SaveDocument(ctx context.Context, contentHash, filename string, medicines []extract.Medicine) error
}

// Result is the outcome of processing one document.
type Result struct {
	Name        string             `json:"filename"`
	ContentHash string             `json:"content_hash"`
	Medicines   []extract.Medicine `json:"medicines,omitempty"`
	Skipped     bool               `json:"skipped,omitempty"`
	Duration    time.Duration      `json:"duration_ns"`
	Err         error              `json:"-"`
}

// Failed reports whether the document produced zero records.
func (r Result) Failed() bool { return r.Err != nil }

// Worker processes single documents.
type Worker struct {
	engine *extract.Engine
	sink   Sink
	stats  *LatencyStats
	log    *slog.Logger

	// OnResult, when set, observes every processed document.
	OnResult func(Result)
}

func NewWorker(engine *extract.Engine, sink Sink, stats *LatencyStats, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{engine: engine, sink: sink, stats: stats, log: log}
}

// Stats returns the latency tracker, or nil.
func (w *Worker) Stats() *LatencyStats { return w.stats }

// Process loads, extracts and optionally stores one document. A document
// that cannot be read or parsed yields a Result with Err set; the error
// never aborts a batch.
func (w *Worker) Process(ctx context.Context, in Input) Result {
	start := time.Now()
	res := w.process(ctx, in)
	res.Duration = time.Since(start)
	if w.stats != nil && !res.Skipped {
		w.stats.Observe(res.Duration)
	}
	if w.OnResult != nil {
		w.OnResult(res)
	}
	return res
}

func (w *Worker) process(ctx context.Context, in Input) Result {
	log := w.log.With("file", in.Name)
	res := Result{Name: in.Name, ContentHash: in.ContentHash}

	data := in.Data
	if data == nil {
		var err error
		data, err = os.ReadFile(in.Path)
		if err != nil {
			log.Error("file produced zero records", "error", err)
			res.Err = fmt.Errorf("read %s: %w", in.Name, err)
			return res
		}
	}
	if res.ContentHash == "" {
		res.ContentHash = ContentHashHex(data)
	}

	if w.sink != nil {
		exists, err := w.sink.HasDocument(ctx, res.ContentHash)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if exists {
			log.Info("document already stored, skipping", "content_hash", res.ContentHash)
			res.Skipped = true
			return res
		}
	}

	doc, err := doctree.LoadBytes(data)
	if err != nil {
		log.Error("file produced zero records", "error", err)
		res.Err = fmt.Errorf("load %s: %w", in.Name, err)
		return res
	}

	res.Medicines = w.engine.Extract(doc, in.Name)
	log.Debug("document extracted", "medicines", len(res.Medicines))

	if w.sink != nil {
		if err := w.sink.SaveDocument(ctx, res.ContentHash, in.Name, res.Medicines); err != nil {
			log.Error("store failed", "error", err)
			res.Err = fmt.Errorf("store %s: %w", in.Name, err)
		}
	}
	return res
}
