// Package main is the entrypoint for the batch trainer.
//
// The trainer is a one-shot job: it pulls the configured history window from
// the readings store for every sensor type, retrains the forecasters and the
// pooled anomaly detector, bootstraps the threat classifier if none is
// stored, prints a JSON run summary to stdout, and exits. A scheduler (cron,
// Kubernetes CronJob) provides the cadence.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tidewatch/internal/config"
	"tidewatch/internal/forecast"
	"tidewatch/internal/pipeline"
	"tidewatch/internal/readings"
	"tidewatch/internal/registry"
	"tidewatch/internal/types"
)

// runSummary is the JSON document printed after a training run.
type runSummary struct {
	StartedAt    time.Time                       `json:"started_at"`
	Duration     string                          `json:"duration"`
	HistoryDays  int                             `json:"history_days"`
	ReadingCount map[types.SensorType]int        `json:"reading_count"`
	Training     *pipeline.TrainReport           `json:"training,omitempty"`
	Classifier   *types.ClassifierTrainingReport `json:"classifier,omitempty"`
}

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
	logger.Info("tidewatch trainer starting",
		"environment", cfg.Environment,
		"history_days", cfg.Trainer.HistoryDays,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := readings.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting readings store: %w", err)
	}
	defer pool.Close()
	repo := readings.NewRepo(pool)

	store, err := registry.NewStore(cfg.Registry.Dir)
	if err != nil {
		return fmt.Errorf("opening model registry: %w", err)
	}

	service := pipeline.New(store, pipeline.Options{
		Forecast:         forecast.Options{ClampOutliers: cfg.Models.ClampOutliers},
		RiskHorizonHours: cfg.Models.RiskHorizonHours,
	})
	service.LoadModels(ctx)

	start := time.Now().UTC()
	end := start
	windowStart := end.AddDate(0, 0, -cfg.Trainer.HistoryDays)

	// Pull the history window per sensor type. A sensor with no stored
	// readings is skipped rather than failing the run; the others still
	// train.
	bySensor := make(map[types.SensorType][]types.RawReading)
	counts := make(map[types.SensorType]int)
	for _, sensor := range types.AllSensorTypes {
		stored, err := repo.Range(ctx, sensor, windowStart, end)
		if err != nil {
			return fmt.Errorf("fetching %s history: %w", sensor, err)
		}
		counts[sensor] = len(stored)
		if len(stored) == 0 {
			logger.Warn("no stored readings, skipping sensor", "sensor_type", sensor)
			continue
		}
		raw := make([]types.RawReading, len(stored))
		for i, r := range stored {
			raw[i] = r.Raw()
		}
		bySensor[sensor] = raw
	}
	if len(bySensor) == 0 {
		return fmt.Errorf("no stored readings for any sensor type in the last %d days", cfg.Trainer.HistoryDays)
	}

	summary := runSummary{
		StartedAt:    start,
		HistoryDays:  cfg.Trainer.HistoryDays,
		ReadingCount: counts,
	}

	report, err := service.Train(ctx, bySensor)
	if err != nil {
		return fmt.Errorf("training: %w", err)
	}
	summary.Training = report

	// Bootstrap the classifier when the registry has none, so a fresh
	// deployment serves threat classifications after its first run.
	status, err := service.Status(ctx)
	if err != nil {
		return fmt.Errorf("reading model status: %w", err)
	}
	if status.ClassifierState == types.ClassifierUntrained {
		classifierReport, err := service.TrainClassifier(ctx, nil)
		if err != nil {
			return fmt.Errorf("bootstrapping classifier: %w", err)
		}
		summary.Classifier = classifierReport
	}

	summary.Duration = time.Since(start).Round(time.Millisecond).String()
	logger.Info("training run complete", "duration", summary.Duration)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
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
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
