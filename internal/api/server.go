package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alishhde/Couriers-Planning-Problem/internal/auth"
	"github.com/alishhde/Couriers-Planning-Problem/internal/events"
	"github.com/alishhde/Couriers-Planning-Problem/internal/pipeline"
	"github.com/alishhde/Couriers-Planning-Problem/internal/store"
)

type Server struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store
	Broker   events.EventBroker
	Limiter  *rate.Limiter
	Auth     *auth.Verifier
	Log      *zap.Logger
	// Settings is echoed on /debug; it must not hold secrets.
	Settings map[string]any

	// runs outlive the request that started them
	baseCtx context.Context

	mu      sync.Mutex
	current *RunStatus
	last    *RunStatus
	wg      sync.WaitGroup
}

// RunStatus describes the batch started by POST /v1/runs.
type RunStatus struct {
	Job        string     `json:"job"`
	Overwrite  bool       `json:"overwrite"`
	By         string     `json:"by,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Solved     int        `json:"solved"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
}

type Options struct {
	RunsPerMinute float64
	RunsBurst     int
	// AuthSecret, when set, requires an HS256 bearer token on POST /v1/runs.
	AuthSecret string
	Settings   map[string]any
}

// NewServer wires handlers around a pipeline. ctx bounds background runs.
func NewServer(ctx context.Context, p *pipeline.Pipeline, st store.Store, broker events.EventBroker, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if broker == nil {
		broker = events.NewBroker()
	}
	limit := rate.Inf
	if opts.RunsPerMinute > 0 {
		limit = rate.Limit(opts.RunsPerMinute / 60)
	}
	burst := opts.RunsBurst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		Pipeline: p,
		Store:    st,
		Broker:   broker,
		Limiter:  rate.NewLimiter(limit, burst),
		Auth:     auth.NewVerifier(opts.AuthSecret),
		Log:      log,
		Settings: opts.Settings,
		baseCtx:  ctx,
	}
}

// Routes returns the HTTP handler with logging and metrics middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Results
	mux.HandleFunc("GET /v1/results", s.ResultsIndexHandler)
	mux.HandleFunc("GET /v1/results/{key}", s.ResultByKeyHandler)
	mux.HandleFunc("GET /v1/report", s.ReportHandler)

	// Runs
	mux.HandleFunc("POST /v1/runs", s.CreateRunHandler)
	mux.HandleFunc("GET /v1/runs", s.RunStatusHandler)

	// Events
	mux.HandleFunc("GET /v1/events/ws", s.EventsWSHandler)

	// Health and admin
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.Handle("GET /metrics", metricsHandler())
	mux.HandleFunc("GET /debug", s.DebugJSON)

	return s.middleware(mux)
}

// Wait blocks until background runs finish.
func (s *Server) Wait() { s.wg.Wait() }
