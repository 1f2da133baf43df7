// Package main is the entry point for the tidewatch API server.
//
// It loads configuration, connects the readings store and model registry,
// restores persisted models into the prediction pipeline, builds the HTTP
// server with the core chassis (middleware, routing, health checks), and
// starts listening for requests.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
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

	"github.com/go-chi/chi/v5"

	"tidewatch/internal/api/handlers"
	"tidewatch/internal/config"
	"tidewatch/internal/core"
	"tidewatch/internal/forecast"
	"tidewatch/internal/observability"
	"tidewatch/internal/pipeline"
	"tidewatch/internal/readings"
	"tidewatch/internal/registry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("tidewatch API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.HTTP.Port,
	)

	ctx := context.Background()

	pool, err := readings.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting readings store: %w", err)
	}
	repo := readings.NewRepo(pool)

	store, err := registry.NewStore(cfg.Registry.Dir)
	if err != nil {
		return fmt.Errorf("opening model registry: %w", err)
	}

	service := pipeline.New(store, pipeline.Options{
		Forecast:         forecast.Options{ClampOutliers: cfg.Models.ClampOutliers},
		RiskHorizonHours: cfg.Models.RiskHorizonHours,
	})
	loaded := service.LoadModels(ctx)
	logger.Info("model registry restored", "models_loaded", loaded, "dir", cfg.Registry.Dir)

	// Build the server.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	metrics := observability.NewMetrics()
	srv.Metrics = metrics

	srv.Closers = append(srv.Closers, func(context.Context) error {
		pool.Close()
		return nil
	})

	// Critical dependencies checked by GET /health.
	srv.HealthProbes = append(srv.HealthProbes,
		core.ProbeFunc{
			ProbeName: "database",
			Fn:        pool.Ping,
		},
		core.ProbeFunc{
			ProbeName: "model_registry",
			Fn: func(ctx context.Context) error {
				_, err := store.List(ctx)
				return err
			},
		},
	)

	modelsHandler := handlers.NewModelsHandler(
		service,
		srv.Validator,
		logger,
		metrics,
		cfg.Registry.CleanupMaxAge,
	)
	predictionsHandler := handlers.NewPredictionsHandler(service, logger, metrics)
	readingsHandler := handlers.NewReadingsHandler(repo, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { modelsHandler.RegisterRoutes(r) },
		func(r chi.Router) { predictionsHandler.RegisterRoutes(r) },
		func(r chi.Router) { readingsHandler.RegisterRoutes(r) },
	)

	// Mount all routes (middleware chain + versioned endpoints + health).
	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.HTTP.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to capture server errors from ListenAndServe.
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with a 10-second deadline.
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Shutdown server resources (DB pool, etc.).
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
