package readings

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"tidewatch/internal/features"
	"tidewatch/internal/types"
)

// Repo provides data access for the sensor_readings table.
type Repo struct {
	db DBTX
}

// NewRepo creates a new Repo backed by the given database connection
// (pool or transaction).
func NewRepo(db DBTX) *Repo {
	return &Repo{db: db}
}

// Upsert writes a batch of readings, overwriting any row that already exists
// for the same (sensor_type, ts). Feeds re-send corrected values for a
// timestamp; the last write wins. Returns the number of rows written, which
// on a partial failure is the count written before the failing row.
func (r *Repo) Upsert(ctx context.Context, batch []types.SensorReading) (int, error) {
	stored := 0
	for _, reading := range batch {
		_, err := r.db.Exec(ctx,
			`INSERT INTO sensor_readings (sensor_type, ts, value, location)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (sensor_type, ts)
			 DO UPDATE SET value = EXCLUDED.value, location = EXCLUDED.location`,
			reading.SensorType,
			reading.Timestamp,
			reading.Value,
			reading.Location,
		)
		if err != nil {
			return stored, types.NewAppError(types.ErrCodeInternalDB, "failed to upsert sensor reading", err)
		}
		stored++
	}
	return stored, nil
}

// Range returns readings for one sensor type with start <= ts < end, oldest
// first.
func (r *Repo) Range(ctx context.Context, sensorType types.SensorType, start, end time.Time) ([]types.SensorReading, error) {
	rows, err := r.db.Query(ctx,
		`SELECT sensor_type, ts, value, location
		 FROM sensor_readings
		 WHERE sensor_type = $1 AND ts >= $2 AND ts < $3
		 ORDER BY ts ASC`,
		sensorType, start, end,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query sensor readings", err)
	}
	defer rows.Close()

	return scanReadings(rows)
}

// Recent returns up to limit of the newest readings for one sensor type,
// reordered oldest first so callers can feed them straight into the feature
// builders.
func (r *Repo) Recent(ctx context.Context, sensorType types.SensorType, limit int) ([]types.SensorReading, error) {
	rows, err := r.db.Query(ctx,
		`SELECT sensor_type, ts, value, location
		 FROM (SELECT sensor_type, ts, value, location
		       FROM sensor_readings
		       WHERE sensor_type = $1
		       ORDER BY ts DESC
		       LIMIT $2) newest
		 ORDER BY ts ASC`,
		sensorType, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query recent sensor readings", err)
	}
	defer rows.Close()

	return scanReadings(rows)
}

// LatestTimestamp returns the newest stored timestamp for one sensor type,
// or nil if no readings exist. The feed poller uses it as the resume point.
func (r *Repo) LatestTimestamp(ctx context.Context, sensorType types.SensorType) (*time.Time, error) {
	var latest *time.Time
	err := r.db.QueryRow(ctx,
		`SELECT MAX(ts) FROM sensor_readings WHERE sensor_type = $1`,
		sensorType,
	).Scan(&latest)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query latest reading timestamp", err)
	}
	return latest, nil
}

// Stats summarizes every sensor type present in the table: whole-history
// aggregates computed by PostgreSQL, plus trailing statistics over the newest
// recentWindow readings. Results are ordered by sensor type.
func (r *Repo) Stats(ctx context.Context, recentWindow int) ([]types.ReadingStats, error) {
	rows, err := r.db.Query(ctx,
		`SELECT sensor_type,
		        COUNT(*),
		        AVG(value),
		        STDDEV_POP(value),
		        MIN(value),
		        MAX(value),
		        MIN(ts),
		        MAX(ts)
		 FROM sensor_readings
		 GROUP BY sensor_type
		 ORDER BY sensor_type ASC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query reading stats", err)
	}
	defer rows.Close()

	var stats []types.ReadingStats
	for rows.Next() {
		var st types.ReadingStats
		if err := rows.Scan(
			&st.SensorType,
			&st.Count,
			&st.Mean,
			&st.StdDev,
			&st.Min,
			&st.Max,
			&st.First,
			&st.Last,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reading stats row", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating reading stats rows", err)
	}

	for i := range stats {
		recent, err := r.Recent(ctx, stats[i].SensorType, recentWindow)
		if err != nil {
			return nil, err
		}
		fillRecent(&stats[i], recent)
	}

	return stats, nil
}

// fillRecent computes the trailing-window fields from the newest readings.
// The rolling helpers expand their window during warm-up, so the final
// position covers exactly the readings fetched.
func fillRecent(st *types.ReadingStats, recent []types.SensorReading) {
	if len(recent) == 0 {
		return
	}
	values := make([]float64, len(recent))
	for i, reading := range recent {
		values[i] = reading.Value
	}
	window := len(values)
	last := len(values) - 1
	st.RecentMean = features.RollingMean(values, window)[last]
	st.RecentStd = features.RollingStd(values, window)[last]
	st.RecentMin = features.RollingMin(values, window)[last]
	st.RecentMax = features.RollingMax(values, window)[last]
}

func scanReadings(rows pgx.Rows) ([]types.SensorReading, error) {
	var out []types.SensorReading
	for rows.Next() {
		var reading types.SensorReading
		if err := rows.Scan(
			&reading.SensorType,
			&reading.Timestamp,
			&reading.Value,
			&reading.Location,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan sensor reading row", err)
		}
		out = append(out, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating sensor reading rows", err)
	}
	return out, nil
}
