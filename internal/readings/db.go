// Package readings stores validated sensor readings in PostgreSQL and serves
// the history windows that training and scoring consume. Rows are keyed by
// (sensor_type, ts), so a re-delivered feed batch overwrites in place instead
// of duplicating.
//
// Expected schema:
//
//	CREATE TABLE sensor_readings (
//	    sensor_type TEXT             NOT NULL,
//	    ts          TIMESTAMPTZ      NOT NULL,
//	    value       DOUBLE PRECISION NOT NULL,
//	    location    TEXT             NOT NULL DEFAULT '',
//	    PRIMARY KEY (sensor_type, ts)
//	);
package readings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tidewatch/internal/config"
)

// DBTX is the subset of pgx the repository needs. Both *pgxpool.Pool and
// pgx.Tx satisfy it, so the same repository code runs against the pool or
// inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// NewPool opens a pgx connection pool with the configured tuning and
// verifies connectivity with a ping before returning.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}
