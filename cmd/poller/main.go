// Package main is the entrypoint for the gauge-feed poller.
//
// The poller periodically pulls new observations from the upstream gauge
// feed and upserts them into the readings store, resuming from the newest
// stored timestamp per sensor type. It runs until SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tidewatch/internal/config"
	"tidewatch/internal/feed"
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
	if cfg.Feed.BaseURL == "" {
		return fmt.Errorf("FEED_BASE_URL is required for the poller")
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("tidewatch gauge poller starting",
		"environment", cfg.Environment,
		"feed_url", cfg.Feed.BaseURL,
		"interval", cfg.Feed.PollInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := readings.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting readings store: %w", err)
	}
	defer pool.Close()

	gauge := feed.NewGaugeClient(
		&http.Client{Timeout: cfg.Feed.Timeout},
		feed.GaugeClientConfig{
			BaseURL: cfg.Feed.BaseURL,
			APIKey:  cfg.Feed.APIKey.Unmask(),
			Station: cfg.Feed.Station,
			Logger:  logger,
		},
	)

	poller := feed.NewPoller(feed.PollerConfig{
		Feed:       gauge,
		Store:      readings.NewRepo(pool),
		Logger:     logger,
		Interval:   cfg.Feed.PollInterval,
		Lookback:   cfg.Feed.Lookback,
		FetchLimit: cfg.Feed.FetchLimit,
	})

	if err := poller.Run(ctx); err != nil {
		return fmt.Errorf("poller stopped: %w", err)
	}

	logger.Info("gauge poller stopped cleanly")
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
