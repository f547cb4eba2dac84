package main

import (
	"github.com/okian/gradevec/internal/adapters/source"
	service "github.com/okian/gradevec/internal/app"
	"github.com/okian/gradevec/internal/config"
	"github.com/okian/gradevec/internal/domain/grade"
	"github.com/okian/gradevec/internal/domain/pipeline"
	"github.com/okian/gradevec/internal/domain/scoring"
	"github.com/okian/gradevec/pkg/logger"
)

// newPipeline builds the scoring configuration shared by build and verify.
func newPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	scorer, err := scoring.New(cfg.Formula,
		scoring.WithShrinkStep(cfg.ShrinkStep),
		scoring.WithShrinkFloor(cfg.ShrinkFloor),
		scoring.WithMinCredit(cfg.MinCredit),
	)
	if err != nil {
		return nil, err
	}
	return pipeline.New(
		pipeline.WithDecoder(grade.NewDecoder(grade.Scale(cfg.GradeScale))),
		pipeline.WithScorer(scorer),
	), nil
}

func newService(cfg *config.Config, log logger.Logger) (*service.Service, error) {
	p, err := newPipeline(cfg)
	if err != nil {
		return nil, err
	}
	return service.New(
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithPipeline(p),
		service.WithLoader(source.NewFileLoader(source.WithSheet(cfg.Sheet))),
		service.WithTolerance(cfg.Tolerance),
		service.WithShutdownTimeout(shutdownTimeout),
	), nil
}
