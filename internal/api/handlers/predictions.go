package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tidewatch/internal/core"
	"tidewatch/internal/observability"
	"tidewatch/internal/pipeline"
	"tidewatch/internal/types"
)

// Forecast horizon bounds, in hours (one week).
const (
	minHorizonHours = 1
	maxHorizonHours = 168
)

// PredictionService defines the prediction operations the handler depends
// on. The pipeline service satisfies it.
type PredictionService interface {
	PredictWaterLevels(ctx context.Context, horizonHours int) (*pipeline.WaterLevelForecast, error)
	AssessFloodRisk(ctx context.Context, current types.CurrentConditions) (*pipeline.FloodRiskReport, error)
	DetectAnomalies(ctx context.Context, readings []types.RawReading) ([]types.AnomalyRecord, error)
	ClassifyThreat(ctx context.Context, input types.ConditionsInput) (*types.ThreatClassification, error)
}

// PredictionsHandler serves forecasting, flood-risk assessment, anomaly
// detection, and threat classification.
type PredictionsHandler struct {
	service PredictionService
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPredictionsHandler creates a PredictionsHandler. metrics may be nil.
func NewPredictionsHandler(svc PredictionService, logger *slog.Logger, metrics *observability.Metrics) *PredictionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictionsHandler{
		service: svc,
		logger:  logger,
		metrics: metrics,
	}
}

// RegisterRoutes mounts the prediction endpoints onto the mux.
func (h *PredictionsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/predict", func(r chi.Router) {
		r.Post("/water-levels", h.HandlePredictWaterLevels)
		r.Post("/flood-risk", h.HandleAssessFloodRisk)
	})
	r.Post("/detect/anomalies", h.HandleDetectAnomalies)
	r.Post("/classify/threat", h.HandleClassifyThreat)
}

// forecastRequest is the wire shape of a water-level forecast request.
type forecastRequest struct {
	HorizonHours int `json:"horizon_hours"`
}

// HandlePredictWaterLevels handles POST /v1/predict/water-levels.
// The horizon is validated at the boundary so an out-of-range request never
// reaches the model, trained or not.
func (h *PredictionsHandler) HandlePredictWaterLevels(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.HorizonHours < minHorizonHours || req.HorizonHours > maxHorizonHours {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationHorizonRange,
			"horizon_hours must be between 1 and 168",
			nil,
			map[string]any{"horizon_hours": req.HorizonHours},
		))
		return
	}

	forecast, err := h.service.PredictWaterLevels(r.Context(), req.HorizonHours)
	if h.metrics != nil {
		h.metrics.RecordPrediction("forecast", err)
	}
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: forecast})
}

// HandleAssessFloodRisk handles POST /v1/predict/flood-risk.
// The body carries observed current conditions; absent fields simply
// contribute no auxiliary risk factor.
func (h *PredictionsHandler) HandleAssessFloodRisk(w http.ResponseWriter, r *http.Request) {
	var req types.CurrentConditions
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	report, err := h.service.AssessFloodRisk(r.Context(), req)
	if h.metrics != nil {
		h.metrics.RecordPrediction("flood_risk", err)
	}
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}

// detectRequest is the wire shape of an anomaly-detection request.
type detectRequest struct {
	Readings []types.RawReading `json:"readings"`
}

// detectResponse pairs the anomaly records with batch counts.
type detectResponse struct {
	Anomalies      []types.AnomalyRecord `json:"anomalies"`
	TotalChecked   int                   `json:"total_checked"`
	AnomaliesFound int                   `json:"anomalies_found"`
}

// HandleDetectAnomalies handles POST /v1/detect/anomalies.
func (h *PredictionsHandler) HandleDetectAnomalies(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if len(req.Readings) == 0 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"detection request must contain at least one reading",
			nil,
		))
		return
	}

	records, err := h.service.DetectAnomalies(r.Context(), req.Readings)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordDetection(len(req.Readings), len(records))
	}

	if records == nil {
		records = []types.AnomalyRecord{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: detectResponse{
		Anomalies:      records,
		TotalChecked:   len(req.Readings),
		AnomaliesFound: len(records),
	}})
}

// HandleClassifyThreat handles POST /v1/classify/threat.
// All condition fields are optional; the classifier substitutes its
// documented defaults for absent ones.
func (h *PredictionsHandler) HandleClassifyThreat(w http.ResponseWriter, r *http.Request) {
	var req types.ConditionsInput
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	classification, err := h.service.ClassifyThreat(r.Context(), req)
	if h.metrics != nil {
		h.metrics.RecordPrediction("classify", err)
	}
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: classification})
}
