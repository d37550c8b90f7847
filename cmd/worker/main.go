package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/felixgeelhaar/cadence/internal/app"
	"github.com/felixgeelhaar/cadence/internal/reminders/application/workers"
	"github.com/felixgeelhaar/cadence/pkg/config"
	"github.com/felixgeelhaar/cadence/pkg/observability"
)

func main() {
	configPath := flag.String("config", "", "YAML config file overlaid on the environment")
	flag.Parse()

	logger := observability.LoggerFromEnv()
	logger.Info("starting cadence worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	metrics := observability.NewInMemoryMetrics()
	container, err := app.NewContainer(ctx, cfg, logger, app.WithMetrics(metrics))
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	if err := container.Sweeper.Start(ctx); err != nil {
		logger.Error("failed to start sweeper", "error", err)
		os.Exit(1)
	}
	if err := container.Dispatcher.Start(ctx); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	if cfg.WorkerHealthAddr != "" {
		healthSrv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           healthRouter(container),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown error", "error", err)
			}
		}()
	}

	statsTicker := time.NewTicker(time.Minute)
	defer statsTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down worker")
			return
		case <-statsTicker.C:
			logStats(logger, container.Dispatcher.GetStats())
		}
	}
}

func healthRouter(c *app.Container) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := c.Dispatcher.GetStats()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":              "ok",
			"running":             stats.IsRunning,
			"claimed":             stats.ClaimedCount,
			"sent":                stats.SentCount,
			"retried":             stats.RetriedCount,
			"failed":              stats.FailedCount,
			"skipped":             stats.SkippedCount,
			"cancelled_in_flight": stats.CancelledInFlight,
			"lag_seconds":         stats.LagSeconds,
			"last_processed_at":   stats.LastProcessedAt,
			"last_error_at":       stats.LastErrorAt,
			"last_error":          stats.LastError,
		})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		health := c.Health.Check(checkCtx)
		status := http.StatusOK
		if health.Status == observability.HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health)
	})
	return r
}

func logStats(logger *slog.Logger, stats workers.Stats) {
	logger.Info("dispatcher stats",
		"running", stats.IsRunning,
		"sent", stats.SentCount,
		"retried", stats.RetriedCount,
		"failed", stats.FailedCount,
		"cancelled_in_flight", stats.CancelledInFlight,
		"lag_seconds", stats.LagSeconds,
		"last_error", stats.LastError,
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
