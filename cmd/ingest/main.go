// Package main is the entrypoint for the Kafka ingest worker.
//
// The worker consumes sensor readings from the configured topic, validates
// them, and upserts them into the readings store in batches. Offsets are
// committed only after a batch is stored, so a crash re-delivers rather than
// drops readings. It runs until SIGINT or SIGTERM.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tidewatch/internal/config"
	"tidewatch/internal/ingest"
	"tidewatch/internal/observability"
	"tidewatch/internal/readings"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("tidewatch ingest worker starting",
		"environment", cfg.Environment,
		"brokers", cfg.Kafka.Brokers,
		"topic", cfg.Kafka.Topic,
		"group_id", cfg.Kafka.GroupID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := readings.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting readings store: %w", err)
	}
	defer pool.Close()

	reader := ingest.NewReader(cfg.Kafka)
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Error("closing kafka reader", "error", err)
		}
	}()

	metrics := observability.NewMetrics()

	// Expose ingest counters for scraping; the worker has no other HTTP
	// surface.
	metricsServer := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer metricsServer.Close()

	consumer := ingest.NewConsumer(ingest.ConsumerConfig{
		Fetcher:       reader,
		Store:         readings.NewRepo(pool),
		Logger:        logger,
		Metrics:       metrics,
		BatchSize:     cfg.Kafka.BatchSize,
		FlushInterval: cfg.Kafka.FlushInterval,
	})

	if err := consumer.Run(ctx); err != nil {
		return fmt.Errorf("consumer stopped: %w", err)
	}

	logger.Info("ingest worker stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
