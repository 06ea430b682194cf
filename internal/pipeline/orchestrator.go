package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/pmdaparse/internal/report"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("pipeline is stopped")

// Config sizes the orchestrator.
type Config struct {
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration
}

// Orchestrator runs batches of documents, either synchronously with Run
// or as queued jobs processed in the background.
type Orchestrator struct {
	worker *Worker
	jobs   *JobStore
	queue  chan *Job
	log    *slog.Logger
	cfg    Config

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex // guards stopped and the queue close
	stopped bool
}

// NewOrchestrator creates the pipeline. Call Start before Submit.
func NewOrchestrator(cfg Config, worker *Worker, log *slog.Logger) *Orchestrator {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 1
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		worker: worker,
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		log:    log,
		cfg:    cfg,
	}
}

// Run processes inputs with at most WorkerCount documents in flight.
// Results are returned in input order. progress, when set, is called
// once per document from the worker goroutine that finished it. A failed
// document never stops the batch; only context cancellation does, and
// the documents it prevented are reported as failed.
func (o *Orchestrator) Run(ctx context.Context, inputs []Input, progress func(Result)) ([]Result, error) {
	results := make([]Result, len(inputs))
	done := make([]bool, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.WorkerCount)

	var mu sync.Mutex
	for i, in := range inputs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = o.worker.Process(gctx, in)
			done[i] = true
			if progress != nil {
				mu.Lock()
				progress(results[i])
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		return results, nil
	}
	for i, in := range inputs {
		if !done[i] {
			results[i] = Result{Name: in.Name, ContentHash: in.ContentHash, Err: fmt.Errorf("not processed: %w", err)}
		}
	}
	return results, fmt.Errorf("run batch: %w", err)
}

// Summarize folds batch results into a report summary.
func Summarize(results []Result, duplicates int, elapsed time.Duration) report.Summary {
	s := report.Summary{Files: len(results), Duplicates: duplicates, Elapsed: elapsed}
	s.AddMedicines(nil) // allocates Records
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.AddFailure(r.Name, r.Err)
		case r.Skipped:
			s.Skipped++
		default:
			s.AddMedicines(r.Medicines)
		}
	}
	return s
}

// Start launches the background job workers and the job cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case <-workerCtx.Done():
				return
			case job, ok := <-o.queue:
				if !ok {
					return
				}
				o.process(workerCtx, job)
			}
		}
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// process runs one queued job; the batch itself is parallel.
func (o *Orchestrator) process(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID)
	job.SetStatus(StatusProcessing, "processing")
	start := time.Now()

	results, err := o.Run(ctx, job.Inputs(), job.Observe)
	if err != nil {
		log.Error("batch interrupted", "error", err)
		job.AddError(err.Error())
	}
	summary := Summarize(results, 0, time.Since(start))
	job.Finish(summary)
	log.Info("batch complete", "files", summary.Files, "medicines", summary.Medicines, "failed", summary.Failed)
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "stopped")
		return ErrStopped
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Worker returns the document worker for synchronous single-document use.
func (o *Orchestrator) Worker() *Worker {
	return o.worker
}
