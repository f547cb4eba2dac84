// Package service wires discovery, the job queue, the worker pool and the
// entry store into the matrix build and verification runs.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	jobqueue "github.com/okian/gradevec/internal/adapters/mq/queue"
	workerpool "github.com/okian/gradevec/internal/adapters/mq/worker"
	"github.com/okian/gradevec/internal/adapters/repository"
	"github.com/okian/gradevec/internal/adapters/source"
	"github.com/okian/gradevec/internal/domain/dedupe"
	"github.com/okian/gradevec/internal/domain/matrix"
	"github.com/okian/gradevec/internal/domain/model"
	"github.com/okian/gradevec/internal/domain/pipeline"
	"github.com/okian/gradevec/internal/domain/verify"
	"github.com/okian/gradevec/pkg/logger"
	"github.com/okian/gradevec/pkg/metrics"
)

const (
	defaultQueueSize       = 256
	defaultShutdownTimeout = 30 * time.Second
)

// BuildResult describes one matrix generation run.
type BuildResult struct {
	RunID    uuid.UUID
	Matrix   *matrix.FeatureMatrix
	Students int // transcripts loaded, with or without valid entries
	Skipped  []model.Skip
	Records  RecordTotals
	// Duplicates are source files ignored because another file already
	// provided the same student id.
	Duplicates []string
	Duration   time.Duration
}

// RecordTotals sums the decode statistics of the loaded students.
type RecordTotals struct {
	Rows       int
	Numeric    int
	Exempt     int
	NoValue    int
	NoCourse   int
	ExemptOnly int // courses collapsed to the sentinel
}

func (r *RecordTotals) add(st model.StudentStats) {
	r.Rows += st.Rows
	r.Numeric += st.Numeric
	r.Exempt += st.Exempt
	r.NoValue += st.NoValue
	r.NoCourse += st.NoCourse
	r.ExemptOnly += len(st.ExemptOnly)
}

// VerifyResult describes one verification run.
type VerifyResult struct {
	RunID    uuid.UUID
	Summary  verify.Summary
	Skipped  []model.Skip
	// NotFound lists requested students without a loadable transcript.
	NotFound []string
}

// Consistent reports whether every checked student matched and every
// requested student was found.
func (r VerifyResult) Consistent() bool {
	return r.Summary.Consistent() && len(r.NotFound) == 0
}

// Service runs matrix builds and verifications.
type Service struct {
	pipeline    *pipeline.Pipeline
	loader      workerpool.Loader
	workerCount int
	queueSize   int
	tolerance   float64
	shutdown    time.Duration

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPipeline sets the scoring configuration shared by build and verify.
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(s *Service) {
		if p != nil {
			s.pipeline = p
		}
	}
}

// WithLoader sets how transcripts are read.
func WithLoader(l workerpool.Loader) Option {
	return func(s *Service) {
		if l != nil {
			s.loader = l
		}
	}
}

// WithTolerance sets the verification tolerance.
func WithTolerance(tol float64) Option {
	return func(s *Service) {
		if tol >= 0 {
			s.tolerance = tol
		}
	}
}

// WithShutdownTimeout bounds how long a cancelled build waits for workers
// to finish the job in progress.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdown = d
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		pipeline:    pipeline.New(),
		loader:      source.NewFileLoader(),
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		tolerance:   verify.DefaultTolerance,
		shutdown:    defaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	return s
}

// Build discovers every transcript in dataDir matching glob, scores them on
// the worker pool and assembles the feature matrix.
func (s *Service) Build(ctx context.Context, dataDir, glob string) (*BuildResult, error) {
	start := time.Now()
	res := &BuildResult{RunID: uuid.New()}
	log := s.logger.With(logger.String("run_id", res.RunID.String()))

	paths, err := source.Discover(dataDir, glob)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "building feature matrix",
		logger.String("data_dir", dataDir),
		logger.Int("files", len(paths)),
		logger.Int("workers", s.workerCount),
		logger.String("formula", s.pipeline.Scorer().Name()),
	)

	store := repository.NewMemoryStore()
	deduper := dedupe.NewInMemoryDeduper()
	queue := jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	pool := workerpool.NewPool(s.workerCount, queue, s.loader, s.pipeline, store)
	pool.Start(ctx)

	var (
		enqueueErr error
		accepted   []string
	)
	for _, path := range paths {
		id := source.StudentID(path)
		if deduper.SeenAndRecord(ctx, id) {
			res.Duplicates = append(res.Duplicates, path)
			log.Warn(ctx, "duplicate student source ignored",
				logger.String("student", id),
				logger.String("file", path),
			)
			continue
		}
		if enqueueErr = queue.Enqueue(ctx, model.Job{StudentID: id, Path: path}); enqueueErr != nil {
			break
		}
		accepted = append(accepted, id)
	}
	log.Debug(ctx, "students queued",
		logger.Int("students", int(deduper.Size())),
		logger.Int("pending", queue.Len(ctx)),
	)
	_ = queue.Close()
	if err := s.drain(ctx, pool); err != nil {
		log.Warn(ctx, "workers did not stop in time", logger.Error(err))
	}

	if enqueueErr != nil {
		return nil, fmt.Errorf("enqueue: %w", enqueueErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Students = store.Count(ctx)
	res.Skipped = store.Skips(ctx)
	for _, id := range accepted {
		st, err := store.Stats(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		res.Records.add(st)
	}

	res.Matrix, err = pipeline.Assemble(store.Entries(ctx))
	if err != nil {
		return nil, err
	}
	rows, cols := res.Matrix.Shape()
	metrics.UpdateMatrixShape(rows, cols)
	res.Duration = time.Since(start)

	log.Info(ctx, "feature matrix built",
		logger.Int("rows", rows),
		logger.Int("columns", cols),
		logger.Int("skipped", len(res.Skipped)),
		logger.Int("duplicates", len(res.Duplicates)),
		logger.Int("exempt_only_courses", res.Records.ExemptOnly),
		logger.Duration("elapsed", res.Duration),
	)
	return res, nil
}

// drain waits for the pool to finish. On cancellation it stops the workers,
// giving the jobs in progress up to the shutdown timeout.
func (s *Service) drain(ctx context.Context, pool *workerpool.Pool) error {
	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "stopping workers", logger.Duration("timeout", s.shutdown))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	return pool.Shutdown(shutdownCtx)
}

// Verify recomputes the students of dataDir and compares them with m. When
// studentIDs is non-empty only those students are checked.
func (s *Service) Verify(ctx context.Context, m *matrix.FeatureMatrix, dataDir, glob string, studentIDs []string) (*VerifyResult, error) {
	res := &VerifyResult{RunID: uuid.New()}
	log := s.logger.With(logger.String("run_id", res.RunID.String()))

	paths, err := source.Discover(dataDir, glob)
	if err != nil {
		return nil, err
	}

	filtered := len(studentIDs) > 0
	wanted := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		wanted[norm.NFC.String(id)] = false
	}

	deduper := dedupe.NewInMemoryDeduper()
	var transcripts []model.Transcript
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := source.StudentID(path)
		if _, ok := wanted[id]; filtered && !ok {
			continue
		}
		if deduper.SeenAndRecord(ctx, id) {
			continue
		}

		t, err := s.loader.Load(ctx, path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			res.Skipped = append(res.Skipped, model.Skip{StudentID: id, Path: path, Err: err})
			metrics.RecordStudentSkipped(workerpool.SkipReason(err))
			log.Warn(ctx, "student skipped", logger.String("student", id), logger.Error(err))
			continue
		}
		t.StudentID = id
		transcripts = append(transcripts, t)
		if filtered {
			wanted[id] = true
		}
	}

	for _, id := range studentIDs {
		if !wanted[norm.NFC.String(id)] {
			res.NotFound = append(res.NotFound, id)
		}
	}

	v := verify.New(s.pipeline, verify.WithTolerance(s.tolerance))
	if filtered {
		res.Summary = v.Students(m, transcripts)
	} else {
		res.Summary = v.All(m, transcripts)
	}

	for _, r := range res.Summary.Reports {
		metrics.RecordVerification(r.Consistent(), len(r.Mismatches), len(r.Ghosts))
		if !r.Consistent() {
			log.Warn(ctx, "student inconsistent",
				logger.String("student", r.StudentID),
				logger.Bool("missing_row", r.MissingRow),
				logger.Int("mismatches", len(r.Mismatches)),
				logger.Int("ghosts", len(r.Ghosts)),
				logger.Strings("missing_columns", r.MissingColumns),
			)
		}
	}

	log.Info(ctx, "verification finished",
		logger.Int("checked", len(res.Summary.Reports)),
		logger.Int("inconsistent", len(res.Summary.Inconsistent())),
		logger.Int("skipped", len(res.Skipped)),
		logger.Int("not_found", len(res.NotFound)),
	)
	return res, nil
}
