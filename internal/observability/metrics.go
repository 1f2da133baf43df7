// Package observability holds the Prometheus instrumentation for the
// tidewatch service: HTTP request telemetry consumed by the core chassis,
// plus pipeline-level counters for training runs, predictions, anomaly
// detection, and readings ingest.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// prediction service.
type Metrics struct {
	// HTTP request telemetry, recorded by the core metrics middleware.
	RequestDuration *prometheus.HistogramVec // labels: method, endpoint, status
	RequestCount    *prometheus.CounterVec   // labels: method, endpoint, status

	// Pipeline telemetry.
	TrainingRuns     *prometheus.CounterVec // labels: kind, outcome={trained,skipped,error,rejected}
	TrainingDuration *prometheus.HistogramVec
	Predictions      *prometheus.CounterVec // labels: operation={forecast,flood_risk,classify}, outcome
	AnomaliesFound   prometheus.Counter
	ReadingsChecked  prometheus.Counter

	// Ingest telemetry.
	ReadingsIngested prometheus.Counter
	IngestRejected   prometheus.Counter
	IngestRunning    prometheus.Gauge
}

// NewMetrics creates all service metrics and registers them with the default
// Prometheus registry. Call once per process.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RequestDuration,
		m.RequestCount,
		m.TrainingRuns,
		m.TrainingDuration,
		m.Predictions,
		m.AnomaliesFound,
		m.ReadingsChecked,
		m.ReadingsIngested,
		m.IngestRejected,
		m.IngestRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so parallel
// tests never hit "already registered" panics on the default registry.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tidewatch",
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by method, endpoint, and status.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "endpoint", "status"}),
		RequestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tidewatch",
			Name:      "http_requests_total",
			Help:      "Total API requests by method, endpoint, and status.",
		}, []string{"method", "endpoint", "status"}),
		TrainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tidewatch",
			Name:      "training_runs_total",
			Help:      "Training runs by artifact kind and outcome.",
		}, []string{"kind", "outcome"}),
		TrainingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tidewatch",
			Name:      "training_duration_seconds",
			Help:      "Duration of a training run by artifact kind.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tidewatch",
			Name:      "predictions_total",
			Help:      "Prediction operations by type and outcome.",
		}, []string{"operation", "outcome"}),
		AnomaliesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tidewatch",
			Name:      "anomalies_found_total",
			Help:      "Readings flagged as anomalous.",
		}),
		ReadingsChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tidewatch",
			Name:      "readings_checked_total",
			Help:      "Readings scored by the anomaly detector.",
		}),
		ReadingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tidewatch",
			Name:      "readings_ingested_total",
			Help:      "Validated readings stored by the ingest worker.",
		}),
		IngestRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tidewatch",
			Name:      "ingest_rejected_total",
			Help:      "Ingest messages dropped for failing validation.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tidewatch",
			Name:      "ingest_running",
			Help:      "1 when the ingest consumer loop is active, 0 when shut down.",
		}),
	}
}

// RecordRequest implements the core chassis MetricsCollector interface.
func (m *Metrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.RequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
	m.RequestCount.WithLabelValues(method, endpoint, status).Inc()
}

// RecordTraining records one training run's outcome, and its duration when
// the run actually fitted a model.
func (m *Metrics) RecordTraining(kind, outcome string, duration time.Duration) {
	m.TrainingRuns.WithLabelValues(kind, outcome).Inc()
	if outcome == "trained" {
		m.TrainingDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// RecordPrediction records one prediction operation's outcome.
func (m *Metrics) RecordPrediction(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.Predictions.WithLabelValues(operation, outcome).Inc()
}

// RecordDetection records one anomaly-detection batch.
func (m *Metrics) RecordDetection(checked, flagged int) {
	m.ReadingsChecked.Add(float64(checked))
	m.AnomaliesFound.Add(float64(flagged))
}
