package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"tidewatch/internal/features"
	"tidewatch/internal/types"
)

// Default poller cadence and first-run lookback window.
const (
	DefaultPollInterval = 15 * time.Minute
	DefaultLookback     = 24 * time.Hour
	DefaultFetchLimit   = 1000
)

// GaugeFeed abstracts the upstream observation fetch. GaugeHTTPClient is the
// production implementation.
type GaugeFeed interface {
	FetchSince(ctx context.Context, sensorType types.SensorType, since time.Time, limit int) ([]types.RawReading, error)
}

// ReadingStore abstracts the persistence operations the poller needs from the
// readings repository.
type ReadingStore interface {
	Upsert(ctx context.Context, batch []types.SensorReading) (int, error)
	LatestTimestamp(ctx context.Context, sensorType types.SensorType) (*time.Time, error)
}

// Poller periodically pulls new observations from the gauge feed into the
// readings store, one sensor type at a time. Sensor types are independent: a
// failing fetch is logged and the cycle continues with the others.
type Poller struct {
	feed     GaugeFeed
	store    ReadingStore
	clock    clockwork.Clock
	logger   *slog.Logger
	interval time.Duration
	lookback time.Duration
	limit    int
}

// PollerConfig holds the configuration for creating a Poller.
type PollerConfig struct {
	Feed       GaugeFeed
	Store      ReadingStore
	Clock      clockwork.Clock
	Logger     *slog.Logger
	Interval   time.Duration // cycle cadence; default 15m
	Lookback   time.Duration // first-run fetch window; default 24h
	FetchLimit int           // per-request row cap; default 1000
}

// NewPoller creates a Poller with the given configuration.
func NewPoller(cfg PollerConfig) *Poller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	limit := cfg.FetchLimit
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	return &Poller{
		feed:     cfg.Feed,
		store:    cfg.Store,
		clock:    clock,
		logger:   logger,
		interval: interval,
		lookback: lookback,
		limit:    limit,
	}
}

// Poll runs one fetch-and-store cycle over every sensor type and returns the
// number of readings stored. Per-sensor failures are logged and skipped; the
// only returned error is context cancellation mid-cycle.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	total := 0
	for _, sensorType := range types.AllSensorTypes {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		stored, err := p.pollSensor(ctx, sensorType)
		if err != nil {
			p.logger.ErrorContext(ctx, "sensor poll failed",
				"sensor_type", string(sensorType),
				"error", err,
			)
			continue
		}
		total += stored
	}

	p.logger.InfoContext(ctx, "poll cycle complete",
		"stored", total,
	)
	return total, nil
}

// Run polls immediately and then on every interval tick until the context is
// cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "feed poller started",
		"interval", p.interval.String(),
		"lookback", p.lookback.String(),
	)

	if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
		p.logger.ErrorContext(ctx, "poll cycle failed", "error", err)
	}

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "feed poller stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.logger.ErrorContext(ctx, "poll cycle failed", "error", err)
			}
		}
	}
}

// pollSensor fetches new observations for one sensor type and upserts the
// rows that validate. Invalid rows are skipped with a warning so one bad
// record never blocks the rest of the pull.
func (p *Poller) pollSensor(ctx context.Context, sensorType types.SensorType) (int, error) {
	since, err := p.sinceTime(ctx, sensorType)
	if err != nil {
		return 0, err
	}

	rows, err := p.feed.FetchSince(ctx, sensorType, since, p.limit)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	batch := make([]types.SensorReading, 0, len(rows))
	for _, row := range rows {
		reading, err := features.ValidateReading(row)
		if err != nil {
			p.logger.WarnContext(ctx, "skipping invalid feed row",
				"sensor_type", string(sensorType),
				"timestamp", row.Timestamp,
				"error", err,
			)
			continue
		}
		batch = append(batch, reading)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	stored, err := p.store.Upsert(ctx, batch)
	if err != nil {
		return stored, err
	}

	p.logger.InfoContext(ctx, "stored feed observations",
		"sensor_type", string(sensorType),
		"fetched", len(rows),
		"stored", stored,
	)
	return stored, nil
}

// sinceTime picks the resume point for one sensor type: the newest stored
// timestamp, or now minus the lookback window when the store is empty.
func (p *Poller) sinceTime(ctx context.Context, sensorType types.SensorType) (time.Time, error) {
	latest, err := p.store.LatestTimestamp(ctx, sensorType)
	if err != nil {
		return time.Time{}, err
	}
	if latest != nil {
		return *latest, nil
	}
	return p.clock.Now().UTC().Add(-p.lookback), nil
}
