package pipeline

import (
	"context"

	"tidewatch/internal/risk"
	"tidewatch/internal/types"
)

// WaterLevelForecast is the water-level prediction API payload.
type WaterLevelForecast struct {
	Predictions     []types.ForecastPoint `json:"predictions"`
	FloodRisk       types.FloodRisk       `json:"flood_risk"`
	PredictionHours int                   `json:"prediction_hours"`
	ModelConfidence types.ModelConfidence `json:"model_confidence"`
}

// FloodRiskReport is the flood-risk assessment API payload. Assessment is the
// aggregated verdict; WaterLevel is the raw forecast-derived tier it builds
// on.
type FloodRiskReport struct {
	Assessment   types.RiskAssessment `json:"assessment"`
	WaterLevel   types.FloodRisk      `json:"water_level_risk"`
	HorizonHours int                  `json:"horizon_hours"`
}

// PredictWaterLevels forecasts water level for the requested horizon and
// grades the result for flood risk.
func (s *Service) PredictWaterLevels(ctx context.Context, horizonHours int) (*WaterLevelForecast, error) {
	model := s.forecasters[types.SensorWaterLevel].get()
	if model == nil {
		return nil, types.NewAppError(types.ErrCodeModelNotReady,
			"water level forecaster has not been trained", nil)
	}
	points, err := model.Forecast(horizonHours)
	if err != nil {
		return nil, err
	}

	confidence := types.ModelConfidenceLow
	if len(points) > 0 {
		confidence = types.ModelConfidenceHigh
	}
	return &WaterLevelForecast{
		Predictions:     points,
		FloodRisk:       risk.ScoreFlood(points),
		PredictionHours: horizonHours,
		ModelConfidence: confidence,
	}, nil
}

// AssessFloodRisk forecasts water level over the configured risk horizon,
// grades it, derives auxiliary factors from the reported current conditions,
// and aggregates everything into the final assessment.
func (s *Service) AssessFloodRisk(ctx context.Context, current types.CurrentConditions) (*FloodRiskReport, error) {
	model := s.forecasters[types.SensorWaterLevel].get()
	if model == nil {
		return nil, types.NewAppError(types.ErrCodeModelNotReady,
			"water level forecaster has not been trained", nil)
	}
	points, err := model.Forecast(s.opts.RiskHorizonHours)
	if err != nil {
		return nil, err
	}

	flood := risk.ScoreFlood(points)
	factors := risk.DeriveFactors(current)
	return &FloodRiskReport{
		Assessment:   risk.Aggregate(flood, factors),
		WaterLevel:   flood,
		HorizonHours: s.opts.RiskHorizonHours,
	}, nil
}

// DetectAnomalies scores a batch of raw readings against the installed
// detector. Rows that cannot be cleaned into feature vectors are skipped by
// the detector rather than failing the batch.
func (s *Service) DetectAnomalies(ctx context.Context, readings []types.RawReading) ([]types.AnomalyRecord, error) {
	return s.anomaly.get().Detect(readings)
}

// ClassifyThreat classifies one set of conditions, bootstrapping the
// classifier from synthetic data on first use. Only an explicit
// TrainClassifier call with real examples reaches the trained state.
func (s *Service) ClassifyThreat(ctx context.Context, input types.ConditionsInput) (*types.ThreatClassification, error) {
	clf := s.classifier.get()
	if !clf.Ready() {
		var err error
		clf, err = s.bootstrapClassifier(ctx)
		if err != nil {
			return nil, err
		}
	}
	return clf.Classify(input.WithDefaults())
}
