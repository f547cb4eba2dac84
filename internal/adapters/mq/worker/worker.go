// Package worker loads, scores and stores student transcripts taken off the
// job queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/gradevec/internal/adapters/source"
	"github.com/okian/gradevec/internal/domain/model"
	"github.com/okian/gradevec/pkg/logger"
	"github.com/okian/gradevec/pkg/metrics"
)

// Skip reasons used as metric labels.
const (
	ReasonMissingColumns = "missing_columns"
	ReasonUnreadable     = "unreadable"
	ReasonLoadError      = "load_error"
	ReasonNoValidEntries = "no_valid_entries"
)

// Job abstracts what workers read off the queue.
type Job = model.Job

// Loader reads the transcript behind a job.
type Loader interface {
	Load(ctx context.Context, path string) (model.Transcript, error)
}

// Scorer turns a transcript into scored entries.
type Scorer interface {
	ScoreStudent(t model.Transcript) ([]model.ScoredEntry, model.StudentStats)
}

// Recorder stores the outcome of each job.
type Recorder interface {
	Put(ctx context.Context, studentID string, entries []model.ScoredEntry, stats model.StudentStats) error
	RecordSkip(ctx context.Context, skip model.Skip)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs until the queue drains.
type Worker interface {
	// Run starts the worker loop until the queue closes or ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in progress.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	loader   Loader
	scorer   Scorer
	recorder Recorder
	name     string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, loader Loader, scorer Scorer, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		loader:   loader,
		scorer:   scorer,
		recorder: recorder,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.With(logger.String("worker", w.name))
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing student", logger.String("student", job.StudentID), logger.Error(err))
			}
		}
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob handles a single student. Load failures skip the student and
// are not returned as errors.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordStudentLatency(float64(time.Since(start).Milliseconds()))
	}()

	t, err := w.loader.Load(ctx, job.Path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reason := SkipReason(err)
		metrics.RecordStudentSkipped(reason)
		w.recorder.RecordSkip(ctx, model.Skip{StudentID: job.StudentID, Path: job.Path, Err: err})
		w.logger.Warn(ctx, "student skipped",
			logger.String("student", job.StudentID),
			logger.String("reason", reason),
			logger.Error(err),
		)
		return nil
	}
	t.StudentID = job.StudentID

	entries, stats := w.scorer.ScoreStudent(t)
	metrics.RecordDecodeOutcomes(stats.Numeric, stats.Exempt, stats.NoValue)
	metrics.RecordExemptOnlyCourses(len(stats.ExemptOnly))
	if len(stats.ExemptOnly) > 0 {
		w.logger.Debug(ctx, "exempt course collapsed to sentinel",
			logger.String("student", job.StudentID),
			logger.Strings("courses", stats.ExemptOnly),
		)
	}

	if err := w.recorder.Put(ctx, job.StudentID, entries, stats); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("store student %s: %w", job.StudentID, err)
	}

	if len(entries) == 0 {
		metrics.RecordStudentSkipped(ReasonNoValidEntries)
		w.logger.Debug(ctx, "student has no valid entries",
			logger.String("student", job.StudentID),
			logger.Int("rows", stats.Rows),
		)
		return nil
	}

	metrics.RecordStudentProcessed()
	w.logger.Debug(ctx, "student scored",
		logger.String("student", job.StudentID),
		logger.Int("courses", len(entries)),
		logger.Int("rows", stats.Rows),
	)
	return nil
}

// SkipReason maps a load error to its metric label.
func SkipReason(err error) string {
	switch {
	case errors.Is(err, source.ErrMissingColumns):
		return ReasonMissingColumns
	case errors.Is(err, source.ErrUnreadableSource):
		return ReasonUnreadable
	default:
		return ReasonLoadError
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	logger  logger.Logger
}

// NewPool creates a new worker pool. A count below one uses one worker per CPU.
func NewPool(workerCount int, queue Queue, loader Loader, scorer Scorer, recorder Recorder) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			loader,
			scorer,
			recorder,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Wait blocks until every worker has returned, which happens once the queue
// is closed and drained or ctx is canceled.
func (p *Pool) Wait() {
	for _, worker := range p.workers {
		<-worker.done
	}
	metrics.UpdateWorkerCount(0)
}

// Shutdown stops every worker, giving up when ctx expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	var errs []error
	for i, worker := range p.workers {
		if err := worker.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, err)
		}
	}
	metrics.UpdateWorkerCount(0)
	return errors.Join(errs...)
}
