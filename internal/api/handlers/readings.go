package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tidewatch/internal/core"
	"tidewatch/internal/types"
)

// defaultRecentWindow is the trailing-window size for the recent_* rolling
// statistics when the request does not specify one.
const defaultRecentWindow = 24

// ReadingStatsSource defines the store operation the readings handler
// depends on. The readings repository satisfies it.
type ReadingStatsSource interface {
	Stats(ctx context.Context, recentWindow int) ([]types.ReadingStats, error)
}

// ReadingsHandler serves readings-store summaries.
type ReadingsHandler struct {
	source ReadingStatsSource
	logger *slog.Logger
}

// NewReadingsHandler creates a ReadingsHandler.
func NewReadingsHandler(source ReadingStatsSource, logger *slog.Logger) *ReadingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingsHandler{source: source, logger: logger}
}

// RegisterRoutes mounts the readings endpoints onto the mux.
func (h *ReadingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/readings/stats", h.HandleStats)
}

// statsResponse wraps per-type statistics with the window they were
// computed over.
type statsResponse struct {
	Sensors      []types.ReadingStats `json:"sensors"`
	RecentWindow int                  `json:"recent_window"`
}

// HandleStats handles GET /v1/readings/stats. The optional recent_window
// query parameter sizes the trailing rolling-statistics window.
func (h *ReadingsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	window := defaultRecentWindow
	if raw := r.URL.Query().Get("recent_window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidParameter,
				"recent_window must be a positive integer",
				err,
			))
			return
		}
		window = parsed
	}

	stats, err := h.source.Stats(r.Context(), window)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if stats == nil {
		stats = []types.ReadingStats{}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: statsResponse{
		Sensors:      stats,
		RecentWindow: window,
	}})
}
