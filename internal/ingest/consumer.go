// Package ingest consumes raw sensor observations from the readings topic,
// validates them, and stores them in batches. Delivery is at-least-once:
// offsets are committed only after a batch is stored, and the store's upsert
// keyed on (sensor_type, timestamp) makes redelivery harmless.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"tidewatch/internal/config"
	"tidewatch/internal/features"
	"tidewatch/internal/observability"
	"tidewatch/internal/types"
)

// Fetcher abstracts the Kafka reader so tests can drive the loop without a
// broker. *kafka.Reader satisfies it.
type Fetcher interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ReadingStore persists validated readings. The readings repository
// satisfies it.
type ReadingStore interface {
	Upsert(ctx context.Context, batch []types.SensorReading) (int, error)
}

// NewReader creates the Kafka consumer for the configured readings topic.
func NewReader(cfg config.KafkaConfig) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
}

// Consumer drives the fetch-validate-store loop.
type Consumer struct {
	fetcher Fetcher
	store   ReadingStore
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock

	batchSize     int
	flushInterval time.Duration
}

// ConsumerConfig holds the dependencies for creating a Consumer.
type ConsumerConfig struct {
	Fetcher Fetcher
	Store   ReadingStore
	Logger  *slog.Logger
	Metrics *observability.Metrics // optional
	Clock   clockwork.Clock        // optional; defaults to the real clock

	BatchSize     int           // readings buffered before a store flush; default 100
	FlushInterval time.Duration // upper bound on how long a partial batch waits; default 5s
}

// NewConsumer creates a Consumer with the given configuration.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Consumer{
		fetcher:       cfg.Fetcher,
		store:         cfg.Store,
		logger:        logger,
		metrics:       cfg.Metrics,
		clock:         clock,
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

// Run consumes until the context is cancelled. Each fetch waits at most the
// flush interval, so a partial batch is stored even when the topic goes
// quiet. Returns nil on context cancellation; any other fetch error is
// returned after a final flush attempt.
func (c *Consumer) Run(ctx context.Context) error {
	if c.metrics != nil {
		c.metrics.IngestRunning.Set(1)
		defer c.metrics.IngestRunning.Set(0)
	}
	c.logger.Info("ingest consumer started",
		"batch_size", c.batchSize, "flush_interval", c.flushInterval)

	var (
		batch   []types.SensorReading
		pending []kafkago.Message
	)

	for {
		fetchCtx, cancel := context.WithTimeout(ctx, c.flushInterval)
		msg, err := c.fetcher.FetchMessage(fetchCtx)
		cancel()

		switch {
		case err == nil:
			if reading, ok := c.decode(msg); ok {
				batch = append(batch, reading)
			}
			// Rejected messages are still committed so they are not
			// redelivered forever.
			pending = append(pending, msg)

		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			// Quiet topic: fall through to flush whatever is buffered.

		case ctx.Err() != nil:
			c.flush(context.Background(), &batch, &pending)
			c.logger.Info("ingest consumer stopped")
			return nil

		default:
			c.flush(context.Background(), &batch, &pending)
			return err
		}

		if len(batch) >= c.batchSize || (len(pending) > 0 && err != nil) {
			c.flush(ctx, &batch, &pending)
		}
	}
}

// decode parses and validates one message. Invalid messages are logged and
// counted, never fatal.
func (c *Consumer) decode(msg kafkago.Message) (types.SensorReading, bool) {
	var envelope types.ReadingMessage
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		c.reject(msg, "undecodable message on readings topic", err)
		return types.SensorReading{}, false
	}

	reading, err := features.ValidateReading(envelope.Raw())
	if err != nil {
		c.reject(msg, "invalid reading on readings topic", err)
		return types.SensorReading{}, false
	}
	return reading, true
}

func (c *Consumer) reject(msg kafkago.Message, reason string, err error) {
	c.logger.Warn(reason,
		"error", err,
		"partition", msg.Partition,
		"offset", msg.Offset,
	)
	if c.metrics != nil {
		c.metrics.IngestRejected.Inc()
	}
}

// flush stores the buffered batch and commits its offsets. On store failure
// nothing is committed, so the batch is redelivered.
func (c *Consumer) flush(ctx context.Context, batch *[]types.SensorReading, pending *[]kafkago.Message) {
	if len(*pending) == 0 {
		return
	}

	if len(*batch) > 0 {
		stored, err := c.store.Upsert(ctx, *batch)
		if err != nil {
			c.logger.Error("failed to store readings batch; offsets not committed",
				"error", err, "batch_size", len(*batch))
			return
		}
		if c.metrics != nil {
			c.metrics.ReadingsIngested.Add(float64(stored))
		}
		c.logger.Debug("readings batch stored", "count", stored)
	}

	if err := c.fetcher.CommitMessages(ctx, *pending...); err != nil {
		// The batch is stored; redelivery after a commit failure is
		// absorbed by the upsert.
		c.logger.Error("failed to commit offsets", "error", err)
	}

	*batch = (*batch)[:0]
	*pending = (*pending)[:0]
}
