// Package anomaly flags sensor readings that score as outliers against the
// pooled behavior of every sensor type. A single detector serves all types:
// readings are combined into one training matrix, with the sensor type
// carried as an encoded feature, so a value is judged in the context of when
// it occurred and what kind of sensor produced it.
package anomaly

import (
	"context"
	"fmt"
	"time"

	"tidewatch/internal/features"
	"tidewatch/internal/ml"
	"tidewatch/internal/types"
)

const (
	// MinTrainingPoints is the floor below which training is skipped with a
	// warning instead of failing. Checked against the pooled raw batch and
	// again against the rows surviving feature derivation.
	MinTrainingPoints = 50

	// severeScore grades an outlier as high severity when its raw decision
	// score falls below this cutoff.
	severeScore = -0.5
)

// Detector couples the fitted feature scaler with the isolation forest it
// feeds. The scaler is persisted as its own registry artifact and reattached
// at load, so it is excluded from the detector's JSON payload. The pair must
// only ever be swapped in together: scoring through a scaler fitted for a
// different forest silently corrupts every score.
type Detector struct {
	Scaler      *ml.StandardScaler  `json:"-"`
	Forest      *ml.IsolationForest `json:"forest"`
	SampleCount int                 `json:"sample_count"`
	TrainedAt   time.Time           `json:"trained_at"`
}

// Train fits a new detector on readings pooled across every sensor type.
// With fewer than MinTrainingPoints usable rows it logs a warning and
// returns nil without an error, so callers keep whatever detector they
// already hold. This is the one training path that degrades silently.
func Train(ctx context.Context, bySensor map[string][]types.RawReading) (*Detector, error) {
	log := types.LoggerFromContext(ctx)

	pooled := features.PoolReadings(bySensor)
	if len(pooled) < MinTrainingPoints {
		log.Warn("insufficient data for anomaly detector training",
			"pooled_points", len(pooled),
			"required", MinTrainingPoints)
		return nil, nil
	}

	rows := features.BuildDetectionRows(pooled)
	if len(rows) < MinTrainingPoints {
		log.Warn("insufficient usable features for anomaly detector training",
			"usable_rows", len(rows),
			"pooled_points", len(pooled),
			"required", MinTrainingPoints)
		return nil, nil
	}

	matrix := features.Matrix(rows)
	scaler, err := ml.FitScaler(matrix)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "fitting anomaly feature scaler", err)
	}
	scaled, err := scaler.Transform(matrix)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "scaling anomaly training features", err)
	}
	forest, err := ml.FitIsolationForest(scaled, ml.DefaultIsolationForestConfig())
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "fitting isolation forest", err)
	}

	log.Info("anomaly detector trained",
		"usable_rows", len(rows),
		"pooled_points", len(pooled))

	return &Detector{
		Scaler:      scaler,
		Forest:      forest,
		SampleCount: len(rows),
		TrainedAt:   time.Now().UTC(),
	}, nil
}

// Detect scores a batch of readings and returns records for the rows the
// forest flags as outliers. Rows that cannot produce a feature vector are
// excluded from scoring rather than failing the batch. The result is always
// non-nil; an empty batch or an all-inlier batch yields an empty slice.
func (d *Detector) Detect(readings []types.RawReading) ([]types.AnomalyRecord, error) {
	if d == nil || d.Scaler == nil || d.Forest == nil {
		return nil, types.NewAppError(types.ErrCodeModelNotReady,
			"anomaly detector has not been trained", nil)
	}

	anomalies := []types.AnomalyRecord{}
	for _, row := range features.BuildDetectionRows(readings) {
		scaled, err := d.Scaler.TransformRow(row.Features)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "scaling detection features", err)
		}
		score, err := d.Forest.DecisionFunction(scaled)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "scoring detection features", err)
		}
		// Negative decision values are the forest's outlier convention.
		if score >= 0 {
			continue
		}
		anomalies = append(anomalies, newRecord(row.Reading, score))
	}
	return anomalies, nil
}

// newRecord builds the outlier record for one flagged reading. Severity is
// graded on the raw score before display rounding: a score of -0.5004 is
// high even though it rounds to the cutoff value.
func newRecord(r types.SensorReading, score float64) types.AnomalyRecord {
	severity := types.SeverityMedium
	if score < severeScore {
		severity = types.SeverityHigh
	}
	location := r.Location
	if location == "" {
		location = "unknown"
	}
	return types.AnomalyRecord{
		Timestamp:    r.Timestamp,
		SensorType:   r.SensorType,
		Value:        r.Value,
		AnomalyScore: ml.Round(score, 3),
		Severity:     severity,
		Location:     location,
		Description:  fmt.Sprintf("Anomalous %s reading: %g", r.SensorType, r.Value),
	}
}

// Trained reports whether the detector holds a complete fitted state.
func (d *Detector) Trained() bool {
	return d != nil && d.Scaler != nil && d.Forest != nil
}
