package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alishhde/Couriers-Planning-Problem/internal/api"
	"github.com/alishhde/Couriers-Planning-Problem/internal/events"
	"github.com/alishhde/Couriers-Planning-Problem/internal/metrics"
	"github.com/alishhde/Couriers-Planning-Problem/internal/pipeline"
	"github.com/alishhde/Couriers-Planning-Problem/internal/webhooks"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve results, runs and live events over HTTP",
	Long: `Starts the HTTP API: stored results and the report table, run submission,
a WebSocket event stream, Prometheus metrics and health probes.
Configured webhook subscriptions receive signed event deliveries.`,
	Args: exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		pcfg, err := pipelineConfig(cfg)
		if err != nil {
			return &exitError{code: ExitConfigError, err: err}
		}
		st, closeStore, err := openStore(cfg)
		if err != nil {
			return &exitError{code: ExitConfigError, err: err}
		}
		defer closeStore()
		broker, closeBroker := openBroker(cfg, logger)
		defer closeBroker()

		ctx, cancel := signalContext()
		defer cancel()

		var pub events.Publisher = broker
		if len(cfg.Webhooks.Subscriptions) > 0 {
			q := &webhooks.Queue{}
			pub = events.Multi{broker, webhooks.NewNotifier(cfg.Webhooks.Subscriptions, q, logger)}
			worker := webhooks.NewWorker(q, cfg.Webhooks.MaxAttempts, logger)
			go worker.Run(ctx)
			logger.Info("webhook delivery enabled", zap.Int("subscriptions", len(cfg.Webhooks.Subscriptions)))
		}

		p := pipeline.New(pcfg, newSolver(cfg, logger), st,
			pipeline.WithEvents(pub), pipeline.WithMetrics(metrics.Prometheus{}), pipeline.WithLogger(logger))
		s := api.NewServer(ctx, p, st, broker, logger, api.Options{
			RunsPerMinute: cfg.Server.RunsPerMinute,
			RunsBurst:     cfg.Server.RunsBurst,
			AuthSecret:    cfg.Server.AuthSecret,
			Settings: map[string]any{
				"store":      cfg.Store.Backend,
				"solver":     cfg.Solver.Binary,
				"redis":      cfg.Redis.URL != "",
				"auth":       cfg.Server.AuthSecret != "",
				"webhooks":   len(cfg.Webhooks.Subscriptions),
				"modelsDir":  cfg.Paths.ModelsDir,
				"dznDir":     cfg.Paths.DznDir,
				"resultsDir": cfg.Paths.ResultsDir,
			},
		})

		srv := &http.Server{
			Addr:              addr,
			Handler:           s.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			logger.Info("API listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		// background runs observe ctx and stop their solver
		s.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
}
