// Package main is the entrypoint for the Datatops API server.
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

	"github.com/datatops/datatops/internal/api"
	"github.com/datatops/datatops/internal/api/handler"
	mw "github.com/datatops/datatops/internal/api/middleware"
	"github.com/datatops/datatops/internal/api/response"
	"github.com/datatops/datatops/internal/backup"
	"github.com/datatops/datatops/internal/cache"
	"github.com/datatops/datatops/internal/config"
	"github.com/datatops/datatops/internal/events"
	"github.com/datatops/datatops/internal/keygen"
	"github.com/datatops/datatops/internal/registry"
	"github.com/datatops/datatops/internal/store"
)

const (
	version         = "0.1.0"
	shutdownTimeout = 30 * time.Second
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
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "backend", cfg.Storage.Backend, "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open the storage backend
	st, err := store.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	slog.Info("store ready", "backend", cfg.Storage.Backend)

	// 3. Project registry
	reg := registry.New(st, keygen.Generator{}, cfg.Server.CreationSecret)

	// 4. Redis-backed rate limiting, only when configured
	var rateLimit *mw.RateLimit
	var healthCache cache.Cache
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer rc.Close()

		if err := rc.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		rateLimit = mw.NewRateLimit(rc, cfg.Server.RateLimitPerMinute)
		healthCache = rc
		slog.Info("redis connected", "rate_limit_per_minute", cfg.Server.RateLimitPerMinute)
	}

	// 5. NATS event publisher, only when configured
	var pub events.Publisher = &events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		np, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer np.Close()
		pub = np
		slog.Info("nats connected")
	}

	// 6. Scheduled S3 backups, only when configured
	if cfg.Backup.Schedule != "" {
		dest, err := backup.NewS3Destination(ctx, cfg.Backup.S3Bucket, cfg.Backup.Region, cfg.Backup.S3Endpoint)
		if err != nil {
			return fmt.Errorf("create backup destination: %w", err)
		}
		sched := backup.NewScheduler(st, dest, cfg.Backup.S3Prefix, slog.Default())
		if err := sched.Start(cfg.Backup.Schedule); err != nil {
			return fmt.Errorf("start backup scheduler: %w", err)
		}
		defer sched.Stop()
		slog.Info("backup scheduler started", "schedule", cfg.Backup.Schedule, "bucket", cfg.Backup.S3Bucket)
	}

	// 7. Build router with dependencies
	deps := api.Dependencies{
		RateLimit: rateLimit,

		StatusHandler: statusHandler(),
		HealthHandler: healthHandler(st, healthCache),
		ProjectPost: handler.NewProjectPostHandler(
			handler.NewCreateProjectHandler(reg, cfg.Server.BaseURL, pub),
			handler.NewStoreRecordHandler(reg, st, pub),
		),
		ProjectGet: handler.NewListRecordsHandler(reg, st),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// statusHandler serves the public landing response.
func statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, map[string]any{
			"status":      "ok",
			"version":     version,
			"message":     "Welcome to the Datatops API!",
			"server_time": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// healthHandler checks store connectivity, and cache connectivity when a
// cache is configured. c must be nil, not a typed-nil interface, when Redis
// is absent.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"store": "ok",
		}
		if err := s.Ping(r.Context()); err != nil {
			checks["store"] = "degraded"
		}
		if c != nil {
			checks["cache"] = "ok"
			if err := c.Ping(r.Context()); err != nil {
				checks["cache"] = "degraded"
			}
		}

		for _, v := range checks {
			if v != "ok" {
				response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
					"One or more services degraded", checks)
				return
			}
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
