package features

import (
	"slices"
	"time"

	"tidewatch/internal/ml"
	"tidewatch/internal/types"
)

// SeriesPoint is one observation on the forecaster's time axis.
type SeriesPoint struct {
	Timestamp time.Time
	Value     float64
}

// BuildSeries prepares raw train-request points for forecaster fitting.
// It requires the timestamp and value fields to be present somewhere in the
// input, parses and sorts timestamps ascending, deduplicates equal
// timestamps keeping the last occurrence, and drops rows without a value.
// Minimum-count enforcement is the caller's concern.
func BuildSeries(points []types.RawReading) ([]SeriesPoint, error) {
	if len(points) == 0 {
		return nil, nil
	}

	hasTimestamp, hasValue := false, false
	for _, p := range points {
		if p.Timestamp != "" {
			hasTimestamp = true
		}
		if p.Value != nil {
			hasValue = true
		}
	}
	if !hasTimestamp {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeDataMissingField,
			"data must contain a 'timestamp' field", nil,
			map[string]any{"field": "timestamp"})
	}
	if !hasValue {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeDataMissingField,
			"data must contain a 'value' field", nil,
			map[string]any{"field": "value"})
	}

	type rawRow struct {
		ts    time.Time
		value *float64
	}
	rows := make([]rawRow, 0, len(points))
	for i, p := range points {
		if p.Timestamp == "" {
			continue
		}
		ts, err := ParseTimestamp(p.Timestamp)
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeDataMalformed,
				"unparseable timestamp", err,
				map[string]any{"field": "timestamp", "value": p.Timestamp, "row": i})
		}
		rows = append(rows, rawRow{ts: ts, value: p.Value})
	}

	// Stable sort keeps input order within equal timestamps, so the last
	// element of each run is the last occurrence. Valueless rows take part
	// in deduplication before being dropped, shadowing earlier duplicates.
	slices.SortStableFunc(rows, func(a, b rawRow) int {
		return a.ts.Compare(b.ts)
	})

	out := make([]SeriesPoint, 0, len(rows))
	for i, r := range rows {
		if i+1 < len(rows) && rows[i+1].ts.Equal(r.ts) {
			continue
		}
		if r.value == nil {
			continue
		}
		out = append(out, SeriesPoint{Timestamp: r.ts, Value: *r.value})
	}
	return out, nil
}

// ClampOutliers limits values to [Q1 - t*IQR, Q3 + t*IQR], the interquartile
// fence used to keep single bad gauge readings from skewing a fitted trend.
// Returns a new slice; the input is not modified.
func ClampOutliers(values []float64, threshold float64) []float64 {
	if len(values) < 4 {
		return slices.Clone(values)
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	q1 := ml.Quantile(sorted, 0.25)
	q3 := ml.Quantile(sorted, 0.75)
	iqr := q3 - q1
	lower := q1 - threshold*iqr
	upper := q3 + threshold*iqr

	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case v < lower:
			out[i] = lower
		case v > upper:
			out[i] = upper
		default:
			out[i] = v
		}
	}
	return out
}
