package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry served on /metrics
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Solves counts finished solver invocations by solver and terminal status
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cpp_solves_total", Help: "Solver invocations by solver and status."},
		[]string{"solver", "status"},
	)
	// SolveSeconds is the wall-clock time of a solver invocation
	SolveSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "cpp_solve_seconds", Help: "Solver wall-clock time in seconds.", Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600}},
		[]string{"solver"},
	)
	// DecodeFailures counts solutions that could not be turned into routes
	DecodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cpp_decode_failures_total", Help: "Solution decoding failures by model family."},
		[]string{"family"},
	)
	// ResultsPersisted counts result records written by optimality
	ResultsPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cpp_results_persisted_total", Help: "Result records written."},
		[]string{"optimal"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(Solves, SolveSeconds, DecodeFailures, ResultsPersisted)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// Recorder receives pipeline measurements.
type Recorder interface {
	SolveFinished(solver, status string, elapsed time.Duration)
	DecodeFailed(family string)
	ResultPersisted(optimal bool)
}

// Prometheus records into the package collectors.
type Prometheus struct{}

func (Prometheus) SolveFinished(solver, status string, elapsed time.Duration) {
	Solves.WithLabelValues(solver, status).Inc()
	SolveSeconds.WithLabelValues(solver).Observe(elapsed.Seconds())
}

func (Prometheus) DecodeFailed(family string) { DecodeFailures.WithLabelValues(family).Inc() }

func (Prometheus) ResultPersisted(optimal bool) {
	label := "false"
	if optimal {
		label = "true"
	}
	ResultsPersisted.WithLabelValues(label).Inc()
}

// Nop discards measurements.
type Nop struct{}

func (Nop) SolveFinished(string, string, time.Duration) {}
func (Nop) DecodeFailed(string)                         {}
func (Nop) ResultPersisted(bool)                        {}
