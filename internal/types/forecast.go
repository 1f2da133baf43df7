package types

import "time"

// ForecastPoint is one step of a forecast. Bounds always satisfy
// Lower <= Predicted <= Upper.
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Predicted float64   `json:"predicted_value"`
	Lower     float64   `json:"lower_bound"`
	Upper     float64   `json:"upper_bound"`
}

// DateRange is the inclusive span of observations a model was fitted on.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TrainingSummary reports the outcome of a forecaster training run.
type TrainingSummary struct {
	Status     string    `json:"status"`
	PointCount int       `json:"point_count"`
	DateRange  DateRange `json:"date_range"`

	// Metrics holds hold-out evaluation results when the history was long
	// enough to reserve a validation tail; nil otherwise.
	Metrics *EvaluationMetrics `json:"metrics,omitempty"`
}

// EvaluationMetrics are hold-out regression metrics computed during training.
type EvaluationMetrics struct {
	RMSE        float64 `json:"rmse"`
	MAE         float64 `json:"mae"`
	R2          float64 `json:"r2_score"`
	MAPE        float64 `json:"mape"`
	SMAPE       float64 `json:"smape"`
	Correlation float64 `json:"correlation"`
	SampleCount int     `json:"n_samples"`
}

// FloodRisk is the discrete tier derived from a water-level forecast.
// ThresholdExceeded is strictly greater-than the lowest threshold, which
// differs from the >= comparison used for tier boundaries.
type FloodRisk struct {
	RiskLevel         RiskLevel `json:"risk_level"`
	Confidence        float64   `json:"confidence"`
	MaxPredictedLevel float64   `json:"max_predicted_level"`
	ThresholdExceeded bool      `json:"threshold_exceeded"`
}
