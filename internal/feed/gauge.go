package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tidewatch/internal/types"
)

// GaugeClientConfig holds the configuration for creating a GaugeHTTPClient.
type GaugeClientConfig struct {
	BaseURL string
	APIKey  string // optional; sent as X-Api-Key when set
	Station string // default location stamped on readings without one
	Logger  *slog.Logger
}

// gaugeObservation is one row in the feed's observation payload. The feed
// reports timestamps as strings in RFC3339 or bare layouts; parsing happens
// downstream so a single bad row never fails the fetch.
type gaugeObservation struct {
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value"`
	Location  string   `json:"location,omitempty"`
}

// gaugeObservationsResponse is the envelope returned by the observations
// endpoint.
type gaugeObservationsResponse struct {
	Station      string             `json:"station,omitempty"`
	Observations []gaugeObservation `json:"observations"`
}

// GaugeHTTPClient fetches sensor observations from an upstream gauge feed
// through BaseClient, so every pull inherits circuit breaking, retries, and
// error mapping.
type GaugeHTTPClient struct {
	base    *BaseClient
	baseURL string
	apiKey  string
	station string
	logger  *slog.Logger
}

// NewGaugeClient creates a new GaugeHTTPClient. The httpClient timeout should
// be set appropriately for the feed (e.g., 30 seconds).
func NewGaugeClient(httpClient *http.Client, cfg GaugeClientConfig) *GaugeHTTPClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"gauge-feed",
		DefaultRetryPolicy(),
		"tidewatch/1.0",
	)

	return &GaugeHTTPClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		station: cfg.Station,
		logger:  logger,
	}
}

// NewGaugeClientWithBase creates a GaugeHTTPClient with a pre-configured
// BaseClient. This is useful for testing when you want to control the
// BaseClient configuration (e.g., disable retries).
func NewGaugeClientWithBase(base *BaseClient, cfg GaugeClientConfig) *GaugeHTTPClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GaugeHTTPClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		station: cfg.Station,
		logger:  logger,
	}
}

// FetchSince retrieves observations for one sensor type recorded after the
// given time, oldest first, up to limit rows (0 means the feed's default
// page size). The returned readings carry the requested sensor type and the
// configured station as a fallback location.
func (c *GaugeHTTPClient) FetchSince(ctx context.Context, sensorType types.SensorType, since time.Time, limit int) ([]types.RawReading, error) {
	if !sensorType.Valid() {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidParameter,
			"unknown sensor type",
			nil,
			map[string]any{"sensor_type": string(sensorType)},
		)
	}

	query := url.Values{}
	query.Set("sensor_type", string(sensorType))
	query.Set("since", since.UTC().Format(time.RFC3339))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	fetchURL := fmt.Sprintf("%s/v1/observations?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create gauge feed request",
			err,
		)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, c.wrapError("FetchSince", err)
	}
	defer resp.Body.Close()

	// Handle non-2xx responses that made it past the BaseClient retry logic.
	// BaseClient returns 4xx responses (other than 429) as-is without error.
	if resp.StatusCode >= 400 {
		return nil, c.handleErrorResponse(resp, "FetchSince")
	}

	var payload gaugeObservationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode gauge feed response",
			err,
		)
	}

	station := payload.Station
	if station == "" {
		station = c.station
	}

	readings := make([]types.RawReading, 0, len(payload.Observations))
	for _, obs := range payload.Observations {
		location := obs.Location
		if location == "" {
			location = station
		}
		readings = append(readings, types.RawReading{
			Timestamp:  obs.Timestamp,
			SensorType: string(sensorType),
			Value:      obs.Value,
			Location:   location,
		})
	}

	c.logger.InfoContext(ctx, "fetched gauge observations",
		"sensor_type", string(sensorType),
		"since", since.UTC().Format(time.RFC3339),
		"count", len(readings),
	)

	return readings, nil
}

// handleErrorResponse reads and logs the error body from a non-2xx response,
// then returns an appropriate AppError.
func (c *GaugeHTTPClient) handleErrorResponse(resp *http.Response, operation string) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	bodyStr := string(bodyBytes)

	c.logger.Error("gauge feed API error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"response_body", bodyStr,
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return types.NewAppError(
			types.ErrCodeUpstreamFeed,
			"gauge feed authentication failed (401)",
			fmt.Errorf("gauge feed %s returned 401: %s", operation, bodyStr),
		)
	case resp.StatusCode == http.StatusNotFound:
		return types.NewAppError(
			types.ErrCodeUpstreamFeed,
			fmt.Sprintf("gauge feed resource not found (404): %s", operation),
			fmt.Errorf("gauge feed %s returned 404: %s", operation, bodyStr),
		)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return types.NewAppError(
			types.ErrCodeUpstreamFeed,
			fmt.Sprintf("gauge feed client error (%d): %s", resp.StatusCode, operation),
			fmt.Errorf("gauge feed %s returned %d: %s", operation, resp.StatusCode, bodyStr),
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamFeed,
			fmt.Sprintf("gauge feed server error (%d): %s", resp.StatusCode, operation),
			fmt.Errorf("gauge feed %s returned %d: %s", operation, resp.StatusCode, bodyStr),
		)
	}
}

// wrapError converts errors from BaseClient.Do into feed-scoped errors,
// preserving the code of an existing AppError.
func (c *GaugeHTTPClient) wrapError(operation string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("gauge feed %s: %s", operation, appErr.Message),
			appErr.Err,
		)
	}

	return types.NewAppError(
		types.ErrCodeUpstreamFeed,
		fmt.Sprintf("gauge feed %s failed", operation),
		err,
	)
}

// Compile-time interface compliance check.
var _ GaugeFeed = (*GaugeHTTPClient)(nil)
