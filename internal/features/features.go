// Package features turns raw sensor records into the representations the
// model components consume: a cleaned time/value series for the forecaster,
// a five-column numeric matrix for the anomaly detector, and lag/rolling
// statistics for the readings summary surface. Feature vectors are never
// persisted; they are recomputed on demand from readings.
package features

import (
	"time"

	"tidewatch/internal/types"
)

// timestampLayouts are the wire formats accepted at the pipeline boundary.
// Bare layouts parse as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a reading timestamp in any accepted layout and
// normalizes it to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// ValidateReading promotes one wire-shape reading to a stored observation.
// The sensor type must be known, the timestamp parseable, and the value
// present. Used by the ingestion paths, which skip (rather than reject
// wholesale) rows that fail here.
func ValidateReading(r types.RawReading) (types.SensorReading, error) {
	st := types.SensorType(r.SensorType)
	if !st.Valid() {
		return types.SensorReading{}, types.NewAppErrorWithDetails(types.ErrCodeDataMalformed,
			"unknown sensor type", nil,
			map[string]any{"field": "sensor_type", "value": r.SensorType})
	}
	if r.Timestamp == "" {
		return types.SensorReading{}, types.NewAppErrorWithDetails(types.ErrCodeDataMissingField,
			"reading is missing a 'timestamp' field", nil,
			map[string]any{"field": "timestamp"})
	}
	ts, err := ParseTimestamp(r.Timestamp)
	if err != nil {
		return types.SensorReading{}, types.NewAppErrorWithDetails(types.ErrCodeDataMalformed,
			"unparseable timestamp", err,
			map[string]any{"field": "timestamp", "value": r.Timestamp})
	}
	if r.Value == nil {
		return types.SensorReading{}, types.NewAppErrorWithDetails(types.ErrCodeDataMissingField,
			"reading is missing a 'value' field", nil,
			map[string]any{"field": "value"})
	}
	return types.SensorReading{
		SensorType: st,
		Timestamp:  ts,
		Value:      *r.Value,
		Location:   r.Location,
	}, nil
}

// mondayWeekday maps a timestamp to a Monday-indexed weekday in [0,6].
func mondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DetectionFeatures derives the anomaly feature vector for one reading:
// {value, hour [0,23], day_of_week [0,6] Monday-first, month [1,12],
// sensor type code}. The caller must have validated the sensor type; the
// column order is part of the fitted scaler's contract and must not change.
func DetectionFeatures(r types.SensorReading) []float64 {
	code, _ := r.SensorType.Code()
	return []float64{
		r.Value,
		float64(r.Timestamp.Hour()),
		float64(mondayWeekday(r.Timestamp)),
		float64(r.Timestamp.Month()),
		float64(code),
	}
}
