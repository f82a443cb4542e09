package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/alishhde/Couriers-Planning-Problem/internal/metrics"
)

type Worker struct {
	Queue       *Queue
	HTTP        *http.Client
	MaxAttempts int
	Interval    time.Duration
	Log         *zap.Logger
}

func NewWorker(q *Queue, maxAttempts int, log *zap.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{Queue: q, HTTP: &http.Client{Timeout: 5 * time.Second}, MaxAttempts: maxAttempts, Interval: time.Second, Log: log}
}

// Run delivers due items every Interval until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOnce(ctx)
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) {
	items := w.Queue.Due(time.Now(), 50)
	for _, it := range items {
		code, latency, err := w.deliver(ctx, it)
		success := err == nil && code >= 200 && code < 300
		status := "ok"
		if !success {
			status = "retry"
			if it.Attempts+1 >= w.MaxAttempts {
				status = "failed"
			}
		}
		metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
		metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency.Milliseconds()))
		if success {
			continue
		}
		fields := []zap.Field{zap.String("delivery", it.ID), zap.String("url", it.URL), zap.Int("code", code), zap.Int("attempt", it.Attempts+1)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		if status == "failed" {
			w.Log.Warn("webhook delivery abandoned", fields...)
			continue
		}
		w.Log.Debug("webhook delivery failed", fields...)
		it.NextAt = time.Now().Add(nextBackoff(it.Attempts))
		it.Attempts++
		w.Queue.Enqueue(it)
	}
}

func (w *Worker) deliver(ctx context.Context, it *Delivery) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", it.EventType)
	req.Header.Set("X-Delivery-Attempt", strconv.Itoa(it.Attempts+1))
	if it.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(it.Secret, it.Payload))
	}
	start := time.Now()
	resp, err := w.HTTP.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, latency, nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
