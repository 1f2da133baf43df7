// Package risk holds the deterministic scoring logic at the end of the
// pipeline: the flood tier derived from a water-level forecast, the
// auxiliary factors derived from raw current conditions, and the aggregated
// assessment combining both. Everything here is a pure function; nothing is
// fitted or persisted.
package risk

import (
	"tidewatch/internal/ml"
	"tidewatch/internal/types"
)

// Flood tier thresholds in meters. A value exactly at a boundary maps to
// that tier, not the one below.
const (
	ThresholdLow      = 0.8
	ThresholdMedium   = 1.2
	ThresholdHigh     = 1.5
	ThresholdCritical = 2.0
)

// ScoreFlood maps a water-level forecast to its discrete risk tier using
// the maximum predicted value across all points. An empty forecast scores
// unknown with zero confidence. ThresholdExceeded is strictly greater-than
// the lowest threshold, unlike the >= tier boundaries.
func ScoreFlood(points []types.ForecastPoint) types.FloodRisk {
	if len(points) == 0 {
		return types.FloodRisk{RiskLevel: types.RiskUnknown, Confidence: 0}
	}

	max := points[0].Predicted
	for _, p := range points[1:] {
		if p.Predicted > max {
			max = p.Predicted
		}
	}

	var (
		level      types.RiskLevel
		confidence float64
	)
	switch {
	case max >= ThresholdCritical:
		level, confidence = types.RiskCritical, 95
	case max >= ThresholdHigh:
		level, confidence = types.RiskHigh, 85
	case max >= ThresholdMedium:
		level, confidence = types.RiskMedium, 70
	case max >= ThresholdLow:
		level, confidence = types.RiskLow, 60
	default:
		// Below every threshold. The 90 here outranking low's 60 is
		// longstanding observed behavior; see DESIGN.md before changing it.
		level, confidence = types.RiskMinimal, 90
	}

	return types.FloodRisk{
		RiskLevel:         level,
		Confidence:        confidence,
		MaxPredictedLevel: ml.Round(max, 3),
		ThresholdExceeded: max > ThresholdLow,
	}
}
