// Package pipeline drives one or many (instance, model) solves from bound data to a
// persisted result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alishhde/Couriers-Planning-Problem/internal/decode"
	"github.com/alishhde/Couriers-Planning-Problem/internal/evaluate"
	"github.com/alishhde/Couriers-Planning-Problem/internal/events"
	"github.com/alishhde/Couriers-Planning-Problem/internal/metrics"
	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
	"github.com/alishhde/Couriers-Planning-Problem/internal/mzn"
	"github.com/alishhde/Couriers-Planning-Problem/internal/result"
	"github.com/alishhde/Couriers-Planning-Problem/internal/store"
	"github.com/alishhde/Couriers-Planning-Problem/internal/sysinfo"
)

// Config is the part of the application configuration a run needs.
type Config struct {
	DznDir        string
	ModelsDir     string
	Budget        time.Duration
	DefaultSolver string
}

type Pipeline struct {
	cfg     Config
	binder  mzn.Binder
	solver  mzn.Solver
	store   store.Store
	events  events.Publisher
	metrics metrics.Recorder
	log     *zap.Logger
}

type Option func(*Pipeline)

func WithEvents(p events.Publisher) Option { return func(pl *Pipeline) { pl.events = p } }

func WithMetrics(r metrics.Recorder) Option { return func(pl *Pipeline) { pl.metrics = r } }

func WithLogger(l *zap.Logger) Option { return func(pl *Pipeline) { pl.log = l } }

func New(cfg Config, solver mzn.Solver, st store.Store, opts ...Option) *Pipeline {
	if cfg.Budget <= 0 {
		cfg.Budget = mzn.DefaultTimeBudget
	}
	p := &Pipeline{
		cfg:     cfg,
		binder:  mzn.Binder{DefaultSolver: cfg.DefaultSolver},
		solver:  solver,
		store:   st,
		events:  events.Discard{},
		metrics: metrics.Nop{},
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pipeline) Config() Config { return p.cfg }

// Instances lists the transcoded instance files; instance key N is the N-th entry.
func (p *Pipeline) Instances() ([]string, error) {
	entries, err := os.ReadDir(p.cfg.DznDir)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, filepath.Join(p.cfg.DznDir, e.Name()))
	}
	// ReadDir is already sorted by name
	return out, nil
}

// Catalog lists the models available for selection.
func (p *Pipeline) Catalog() (*mzn.Catalog, error) { return mzn.LoadCatalog(p.cfg.ModelsDir) }

func (p *Pipeline) instancePath(key string) (string, error) {
	n, err := strconv.Atoi(key)
	if err != nil || n < 1 {
		return "", fmt.Errorf("instance key %q is not a positive number", key)
	}
	files, err := p.Instances()
	if err != nil {
		return "", err
	}
	if n > len(files) {
		return "", fmt.Errorf("instance %d not found: %s holds %d instances", n, p.cfg.DznDir, len(files))
	}
	return files[n-1], nil
}

// Run solves instance key with the model at modelPath and persists the record.
// With merge, results of other models already stored for key are kept.
func (p *Pipeline) Run(ctx context.Context, key, modelPath string, merge bool) (model.ResultRecord, error) {
	runID := uuid.NewString()
	label := mzn.Label(modelPath)
	log := p.log.With(zap.String("run", runID), zap.String("instance", key), zap.String("model", label))

	rec, err := p.run(ctx, runID, key, modelPath, merge, log)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		p.events.Publish(key, events.New(events.TypeRunFailed, runID, key, label, map[string]any{"error": err.Error()}))
		return model.ResultRecord{}, err
	}
	return rec, nil
}

func (p *Pipeline) run(ctx context.Context, runID, key, modelPath string, merge bool, log *zap.Logger) (model.ResultRecord, error) {
	path, err := p.instancePath(key)
	if err != nil {
		return model.ResultRecord{}, err
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return model.ResultRecord{}, fmt.Errorf("read instance %s: %w", key, err)
	}
	b, err := p.binder.BindText(modelPath, string(text))
	if err != nil {
		return model.ResultRecord{}, err
	}
	log = log.With(zap.String("solver", b.SolverID), zap.Stringer("family", b.Family))
	log.Debug("bound", zap.Int("couriers", b.Couriers()), zap.Int("points", b.DistributionPoints()), zap.String("model", b.ModelPath))
	p.events.Publish(key, events.New(events.TypeInstanceBound, runID, key, b.Label, map[string]any{
		"couriers": b.Couriers(), "items": b.Instance.NumItem, "solver": b.SolverID, "family": b.Family.String(),
	}))

	p.events.Publish(key, events.New(events.TypeSolveStarted, runID, key, b.Label, map[string]any{
		"budgetSec": int(p.cfg.Budget.Seconds()),
	}))
	out, err := p.solver.Solve(ctx, b, p.cfg.Budget)
	if err != nil {
		p.metrics.SolveFinished(b.SolverID, "ERROR", out.Elapsed)
		return model.ResultRecord{}, err
	}
	p.metrics.SolveFinished(b.SolverID, string(out.Status), out.Elapsed)
	log.Info("solve finished", zap.String("status", string(out.Status)), zap.Duration("elapsed", out.Elapsed))
	p.events.Publish(key, events.New(events.TypeSolveFinished, runID, key, b.Label, map[string]any{
		"status": string(out.Status), "elapsedMs": out.Elapsed.Milliseconds(),
	}))

	rec, err := result.Classify(out, b, p.cfg.Budget)
	if err != nil {
		var de *decode.DecodingError
		if errors.As(err, &de) {
			p.metrics.DecodeFailed(b.Family.String())
		}
		return model.ResultRecord{}, err
	}
	p.check(b, rec, log)

	if err := p.store.Save(ctx, key, rec, merge); err != nil {
		return model.ResultRecord{}, fmt.Errorf("persist %s/%s: %w", key, rec.Label, err)
	}
	p.metrics.ResultPersisted(rec.Optimal)
	host := sysinfo.Current()
	p.events.Publish(key, events.New(events.TypeResultPersisted, runID, key, rec.Label, map[string]any{
		"time": rec.Time, "optimal": rec.Optimal, "obj": rec.Objective.String(), "sol": rec.Routes,
		"host": host,
	}))
	log.Info("result persisted", zap.Int("time", rec.Time), zap.Bool("optimal", rec.Optimal), zap.Stringer("obj", rec.Objective))
	return rec, nil
}

// check recomputes route costs; disagreements are logged, never fatal.
func (p *Pipeline) check(b mzn.Binding, rec model.ResultRecord, log *zap.Logger) {
	if len(rec.Routes) == 0 {
		return
	}
	rep, err := evaluate.Routes(b.Instance, rec.Routes)
	if err != nil {
		log.Warn("routes do not fit instance", zap.Error(err))
		return
	}
	if rec.Objective.Valid && !rep.Matches(rec.Objective) {
		log.Warn("objective differs from recomputed max distance",
			zap.Stringer("obj", rec.Objective), zap.Int("recomputed", rep.MaxDistance))
	}
	if over := rep.Overloaded(); len(over) > 0 {
		log.Warn("couriers over capacity", zap.Ints("couriers", over))
	}
	if len(rep.Uncovered) > 0 {
		log.Warn("items not delivered", zap.Ints("items", rep.Uncovered))
	}
	if rec.Optimal {
		return
	}
	for _, c := range rep.Couriers {
		if _, d := evaluate.Improve2Opt(b.Instance.Distances, b.Instance.Depot(), c.Route, 20); d < c.Distance {
			log.Debug("route can be shortened", zap.Int("courier", c.Courier), zap.Int("distance", c.Distance), zap.Int("improved", d))
		}
	}
}

// RunOutcome is the result of one (instance, model) pair in a batch.
type RunOutcome struct {
	Instance string
	Model    string
	Record   model.ResultRecord
	Err      error
}

// RunJob expands job against the available instances and models and solves each pair
// in turn, model-major. Failures are collected and do not stop the batch; a cancelled
// context does.
func (p *Pipeline) RunJob(ctx context.Context, job Job, merge bool) ([]RunOutcome, error) {
	files, err := p.Instances()
	if err != nil {
		return nil, err
	}
	instances, err := ParseInstances(job.Instances, len(files))
	if err != nil {
		return nil, err
	}
	cat, err := p.Catalog()
	if err != nil {
		return nil, err
	}
	var models []string
	if strings.EqualFold(job.Model, All) {
		models = cat.Paths()
	} else {
		m, err := cat.Resolve(job.Model)
		if err != nil {
			return nil, err
		}
		models = []string{m}
	}

	var (
		outcomes []RunOutcome
		errs     []error
	)
	for _, m := range models {
		for _, n := range instances {
			if err := ctx.Err(); err != nil {
				return outcomes, err
			}
			key := strconv.Itoa(n)
			rec, err := p.Run(ctx, key, m, merge)
			outcomes = append(outcomes, RunOutcome{Instance: key, Model: mzn.Label(m), Record: rec, Err: err})
			if err != nil {
				errs = append(errs, fmt.Errorf("instance %s, model %s: %w", key, mzn.Label(m), err))
			}
		}
	}
	return outcomes, errors.Join(errs...)
}
