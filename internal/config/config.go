// Package config defines the global configuration structure for the tidewatch
// service. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"time"

	"tidewatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the tidewatch service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"tidewatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	HTTP     HTTPConfig
	Database DatabaseConfig
	Registry RegistryConfig
	Models   ModelsConfig
	Feed     FeedConfig
	Kafka    KafkaConfig
	Trainer  TrainerConfig

	// Build Metadata (injected via ldflags, not Env)
	Build BuildInfo
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"29s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds readings-store connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RegistryConfig holds model-registry storage settings.
type RegistryConfig struct {
	Dir string `envconfig:"MODEL_DIR" default:"./models"`
	// CleanupMaxAge is the default age threshold for the cleanup endpoint
	// when the request does not specify one.
	CleanupMaxAge time.Duration `envconfig:"MODEL_CLEANUP_MAX_AGE" default:"720h"`
}

// ModelsConfig tunes the prediction pipeline.
type ModelsConfig struct {
	// RiskHorizonHours is the water-level forecast span used by flood-risk
	// assessments.
	RiskHorizonHours int `envconfig:"RISK_HORIZON_HOURS" default:"24" validate:"min=1,max=168"`
	// ClampOutliers applies an IQR fence to training series before fitting.
	ClampOutliers bool `envconfig:"FORECAST_CLAMP_OUTLIERS" default:"true"`
}

// FeedConfig holds the upstream gauge-feed client and poller settings.
type FeedConfig struct {
	BaseURL      string        `envconfig:"FEED_BASE_URL"`
	APIKey       SecretString  `envconfig:"FEED_API_KEY"`
	Station      string        `envconfig:"FEED_STATION"`
	Timeout      time.Duration `envconfig:"FEED_TIMEOUT" default:"15s"`
	PollInterval time.Duration `envconfig:"FEED_POLL_INTERVAL" default:"15m"`
	Lookback     time.Duration `envconfig:"FEED_LOOKBACK" default:"24h"`
	FetchLimit   int           `envconfig:"FEED_FETCH_LIMIT" default:"1000"`
}

// KafkaConfig holds the ingest topic settings.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_READINGS_TOPIC" default:"sensor-readings"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"tidewatch-ingest"`
	// BatchSize is the number of readings buffered before a store flush.
	BatchSize int `envconfig:"INGEST_BATCH_SIZE" default:"100"`
	// FlushInterval bounds how long a partial batch may wait.
	FlushInterval time.Duration `envconfig:"INGEST_FLUSH_INTERVAL" default:"5s"`
}

// TrainerConfig holds batch-training job settings.
type TrainerConfig struct {
	// HistoryDays is the readings window fetched per sensor type.
	HistoryDays int `envconfig:"TRAINER_HISTORY_DAYS" default:"30" validate:"min=1"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
