// Package main is the entrypoint for the climate risk API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/climaterisk/internal/api"
	"github.com/kiranshivaraju/climaterisk/internal/api/handler"
	mw "github.com/kiranshivaraju/climaterisk/internal/api/middleware"
	"github.com/kiranshivaraju/climaterisk/internal/api/response"
	"github.com/kiranshivaraju/climaterisk/internal/batch"
	"github.com/kiranshivaraju/climaterisk/internal/cache"
	"github.com/kiranshivaraju/climaterisk/internal/config"
	"github.com/kiranshivaraju/climaterisk/internal/events"
	"github.com/kiranshivaraju/climaterisk/internal/jobs"
	"github.com/kiranshivaraju/climaterisk/internal/observability"
	"github.com/kiranshivaraju/climaterisk/internal/store"
	"github.com/kiranshivaraju/climaterisk/internal/upstream"
	"github.com/kiranshivaraju/climaterisk/internal/worker"
)

const (
	shutdownTimeout    = 30 * time.Second
	healthCheckTimeout = 3 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"upstream", cfg.Upstream.BaseURL,
		"worker_enabled", cfg.Worker.Enabled,
		"kafka_enabled", len(cfg.Kafka.Brokers) > 0,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Upstream client, event publisher and domain services
	metrics := observability.NewMetrics()
	pgStore := store.NewPostgresStore(pool)
	up := upstream.WithMetrics(
		upstream.NewHTTPClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, cfg.Upstream.Timeout, cfg.Upstream.MaxResponseBytes),
		metrics,
	)

	publisher := events.New(cfg.Kafka, slog.Default())
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Warn("closing event publisher", "error", err)
		}
	}()

	registry := jobs.NewRegistry(pgStore, up, redisCache, metrics, jobs.WithEvents(publisher))
	validate := handler.NewValidator()
	tracker := batch.NewTracker(pgStore, up, redisCache, validate, metrics, slog.Default())

	// 6. Maintenance worker
	if cfg.Worker.Enabled {
		w, err := worker.New(cfg.Redis.URL, cfg.Worker, registry, slog.Default())
		if err != nil {
			return fmt.Errorf("create worker: %w", err)
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
		defer w.Shutdown()
	}

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore, slog.Default()),
		RateLimit: mw.NewRateLimit(redisCache, cfg.RateLimit.PerMinute, slog.Default()),
		Metrics:   metrics,
		Logger:    slog.Default(),

		HealthHandler: healthHandler(pgStore, redisCache, up),

		CreateSite:    handler.NewCreateSiteHandler(registry, validate),
		GetSite:       handler.NewGetSiteHandler(registry),
		StartAnalysis: handler.NewStartAnalysisHandler(registry, validate),
		JobStatus:     handler.NewJobStatusHandler(registry),
		Callback:      handler.NewCallbackHandler(registry, validate),
		RiskScores:    handler.NewRiskScoresHandler(registry),
		AAL:           handler.NewAALHandler(registry),
		HazardSummary: handler.NewHazardSummaryHandler(registry),
		HazardTypes:   handler.NewHazardTypesHandler(),
		SiteTypes:     handler.NewSiteTypeHandler(),
		StartBatch:    handler.NewStartBatchHandler(tracker),
		BatchProgress: handler.NewBatchProgressHandler(tracker),
		BatchResult:   handler.NewBatchResultHandler(tracker),
		BatchGeoJSON:  handler.NewBatchGeoJSONHandler(tracker),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Upstream.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

type readier interface {
	Ready(ctx context.Context) error
}

// healthHandler checks database and cache connectivity and reports upstream
// readiness. An unreachable upstream is reported but does not fail the check:
// sites and cached results are still served.
func healthHandler(db, c pinger, up readier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
			"upstream": "ok",
		}

		if err := db.Ping(ctx); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(ctx); err != nil {
			checks["cache"] = "degraded"
		}
		if err := up.Ready(ctx); err != nil {
			slog.Warn("upstream not ready", "error", err)
			checks["upstream"] = "degraded"
		}

		if checks["database"] != "ok" || checks["cache"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
