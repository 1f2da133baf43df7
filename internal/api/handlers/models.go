// Package handlers contains the HTTP handler implementations for the
// tidewatch API. Each handler maps requests to a locally-defined service
// interface, keeping the HTTP layer decoupled from the pipeline package's
// concrete types for testability.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tidewatch/internal/core"
	"tidewatch/internal/observability"
	"tidewatch/internal/pipeline"
	"tidewatch/internal/types"
)

// ModelService defines the training and lifecycle operations the models
// handler depends on. The pipeline service satisfies it.
type ModelService interface {
	Train(ctx context.Context, bySensor map[types.SensorType][]types.RawReading) (*pipeline.TrainReport, error)
	TrainClassifier(ctx context.Context, examples []types.LabeledExample) (*types.ClassifierTrainingReport, error)
	Status(ctx context.Context) (*pipeline.StatusReport, error)
	Cleanup(ctx context.Context, maxAge time.Duration, keepBest bool) (int, error)
}

// ModelsHandler serves model training, status, and registry maintenance.
type ModelsHandler struct {
	service       ModelService
	validator     *core.Validator
	logger        *slog.Logger
	metrics       *observability.Metrics
	cleanupMaxAge time.Duration
}

// NewModelsHandler creates a ModelsHandler. cleanupMaxAge is the default age
// threshold applied when a cleanup request does not specify one; metrics may
// be nil.
func NewModelsHandler(
	svc ModelService,
	val *core.Validator,
	logger *slog.Logger,
	metrics *observability.Metrics,
	cleanupMaxAge time.Duration,
) *ModelsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelsHandler{
		service:       svc,
		validator:     val,
		logger:        logger,
		metrics:       metrics,
		cleanupMaxAge: cleanupMaxAge,
	}
}

// RegisterRoutes mounts the model endpoints onto the mux.
func (h *ModelsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/models", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Post("/train", h.HandleTrain)
		r.Post("/classifier/train", h.HandleTrainClassifier)
		r.Post("/cleanup", h.HandleCleanup)
	})
}

// trainRequest is the wire shape of a training request: sensor type to its
// raw readings.
type trainRequest map[string][]types.RawReading

// HandleTrain handles POST /v1/models/train.
//
// The request body maps sensor types to reading sequences. With
// ?background=true the run is started asynchronously and a 202 is returned
// immediately; collisions with an in-flight run still surface synchronously
// on the next request as conflict_training_in_progress.
func (h *ModelsHandler) HandleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if len(req) == 0 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"training request must contain at least one sensor type",
			nil,
		))
		return
	}

	bySensor := make(map[types.SensorType][]types.RawReading, len(req))
	for key, rows := range req {
		sensor := types.SensorType(key)
		if !sensor.Valid() {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidParameter,
				"unknown sensor type in training request",
				nil,
				map[string]any{"sensor_type": key},
			))
			return
		}
		bySensor[sensor] = rows
	}

	if r.URL.Query().Get("background") == "true" {
		// Detach from the request context so the run survives the response.
		ctx := context.WithoutCancel(r.Context())
		go func() {
			start := time.Now()
			report, err := h.service.Train(ctx, bySensor)
			if err != nil {
				h.logger.Error("background training failed", "error", err)
				return
			}
			h.recordTrainReport(report, time.Since(start))
			h.logger.Info("background training completed",
				"duration", time.Since(start))
		}()

		core.JSON(w, r, http.StatusAccepted, core.APIResponse{
			Data: map[string]any{"status": "training_started"},
		})
		return
	}

	start := time.Now()
	report, err := h.service.Train(r.Context(), bySensor)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.recordTrainReport(report, time.Since(start))

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}

// recordTrainReport feeds per-kind training outcomes into the metrics.
func (h *ModelsHandler) recordTrainReport(report *pipeline.TrainReport, elapsed time.Duration) {
	if h.metrics == nil || report == nil {
		return
	}
	for sensor, outcome := range report.Forecasters {
		kind, ok := types.ForecasterArtifact(sensor)
		if !ok {
			continue
		}
		result := "trained"
		if outcome.Error != "" {
			result = "error"
		}
		h.metrics.RecordTraining(string(kind), result, elapsed)
	}
	h.metrics.RecordTraining(string(types.ArtifactAnomalyDetector), report.Anomaly.Status, elapsed)
}

// classifierTrainRequest is the wire shape of a classifier training request.
type classifierTrainRequest struct {
	Examples []types.LabeledExample `json:"examples"`
}

// HandleTrainClassifier handles POST /v1/models/classifier/train.
// Fewer than 20 examples (including none) triggers the synthetic bootstrap.
func (h *ModelsHandler) HandleTrainClassifier(w http.ResponseWriter, r *http.Request) {
	var req classifierTrainRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	start := time.Now()
	report, err := h.service.TrainClassifier(r.Context(), req.Examples)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordTraining(string(types.ArtifactClassifier), "error", 0)
		}
		core.Error(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordTraining(string(types.ArtifactClassifier), "trained", time.Since(start))
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}

// HandleStatus handles GET /v1/models/status.
func (h *ModelsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Status(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}

// cleanupRequest is the wire shape of a registry cleanup request.
type cleanupRequest struct {
	MaxAgeHours int  `json:"max_age_hours" validate:"min=0"`
	KeepBest    bool `json:"keep_best"`
}

// cleanupResponse reports how many artifacts were removed.
type cleanupResponse struct {
	Removed     int  `json:"removed"`
	MaxAgeHours int  `json:"max_age_hours"`
	KeepBest    bool `json:"keep_best"`
}

// HandleCleanup handles POST /v1/models/cleanup. A zero or absent
// max_age_hours falls back to the configured default.
func (h *ModelsHandler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	maxAge := time.Duration(req.MaxAgeHours) * time.Hour
	if maxAge <= 0 {
		maxAge = h.cleanupMaxAge
	}

	removed, err := h.service.Cleanup(r.Context(), maxAge, req.KeepBest)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: cleanupResponse{
		Removed:     removed,
		MaxAgeHours: int(maxAge / time.Hour),
		KeepBest:    req.KeepBest,
	}})
}
