package main

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/alishhde/Couriers-Planning-Problem/internal/config"
	"github.com/alishhde/Couriers-Planning-Problem/internal/events"
	"github.com/alishhde/Couriers-Planning-Problem/internal/mzn"
	"github.com/alishhde/Couriers-Planning-Problem/internal/pipeline"
	"github.com/alishhde/Couriers-Planning-Problem/internal/store"
)

// openStore builds the configured result backend. close releases it.
func openStore(cfg *config.Config) (st store.Store, closeFn func(), err error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case "memory":
		return store.NewMemory(), func() {}, nil
	case "sql":
		s, err := store.Open(cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open result database: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		s, err := store.NewFile(cfg.Paths.ResultsDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

// openBroker returns a Redis broker when configured, otherwise an in-process one.
func openBroker(cfg *config.Config, log *zap.Logger) (events.EventBroker, func()) {
	if cfg.Redis.URL == "" {
		return events.NewBroker(), func() {}
	}
	rb, err := events.NewRedisBroker(cfg.Redis.URL, log)
	if err != nil {
		log.Warn("redis broker unavailable, using in-process events", zap.Error(err))
		return events.NewBroker(), func() {}
	}
	return rb, func() { _ = rb.Close() }
}

func newSolver(cfg *config.Config, log *zap.Logger) *mzn.CLISolver {
	s := mzn.NewCLISolver(cfg.Solver.Binary, log)
	s.Grace = cfg.GraceOrDefault()
	s.ExtraArgs = cfg.Solver.ExtraArgs
	return s
}

func pipelineConfig(cfg *config.Config) (pipeline.Config, error) {
	budget, err := cfg.TimeLimit()
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		DznDir:        cfg.Paths.DznDir,
		ModelsDir:     cfg.Paths.ModelsDir,
		Budget:        budget,
		DefaultSolver: cfg.Solver.Default,
	}, nil
}
