package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"tidewatch/internal/types"
)

func fptr(v float64) *float64 { return &v }

// tidalSeries builds n hourly readings with a rising trend and a strong
// multiplicative daily cycle peaking at 06:00 and bottoming at 18:00.
func tidalSeries(n int) []types.RawReading {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	raw := make([]types.RawReading, n)
	for k := 0; k < n; k++ {
		ts := start.Add(time.Duration(k) * time.Hour)
		level := (10 + 0.01*float64(k)) * (1 + 0.3*math.Sin(2*math.Pi*float64(ts.Hour())/24))
		raw[k] = types.RawReading{
			Timestamp: ts.Format(time.RFC3339),
			Value:     fptr(level),
		}
	}
	return raw
}

func TestTrain_ProducesSummary(t *testing.T) {
	raw := tidalSeries(240)

	model, summary, err := Train(context.Background(), types.SensorWaterLevel, raw, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model == nil {
		t.Fatal("expected a fitted model")
	}

	if summary.Status != "trained" {
		t.Errorf("status = %q, want %q", summary.Status, "trained")
	}
	if summary.PointCount != 240 {
		t.Errorf("point_count = %d, want 240", summary.PointCount)
	}

	wantStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := wantStart.Add(239 * time.Hour)
	if !summary.DateRange.Start.Equal(wantStart) || !summary.DateRange.End.Equal(wantEnd) {
		t.Errorf("date_range = %v..%v, want %v..%v",
			summary.DateRange.Start, summary.DateRange.End, wantStart, wantEnd)
	}

	if summary.Metrics == nil {
		t.Fatal("expected holdout metrics for a 240-point series")
	}
	if summary.Metrics.SampleCount != 48 {
		t.Errorf("metrics sample count = %d, want 48", summary.Metrics.SampleCount)
	}
}

// TestForecast_HorizonContract checks the exact-count, chronological-order
// and bound-ordering guarantees across representative horizons.
func TestForecast_HorizonContract(t *testing.T) {
	model, _, err := Train(context.Background(), types.SensorWaterLevel, tidalSeries(240), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, h := range []int{1, 24, 168} {
		points, err := model.Forecast(h)
		if err != nil {
			t.Fatalf("horizon %d: unexpected error: %v", h, err)
		}
		if len(points) != h {
			t.Fatalf("horizon %d: got %d points", h, len(points))
		}

		for i, p := range points {
			wantTs := model.RangeEnd.Add(time.Duration(i+1) * time.Hour)
			if !p.Timestamp.Equal(wantTs) {
				t.Errorf("horizon %d point %d: timestamp %v, want %v", h, i, p.Timestamp, wantTs)
			}
			if p.Lower > p.Predicted || p.Predicted > p.Upper {
				t.Errorf("horizon %d point %d: bounds %v <= %v <= %v violated",
					h, i, p.Lower, p.Predicted, p.Upper)
			}
		}
	}
}

func TestForecast_HorizonValidation(t *testing.T) {
	model, _, err := Train(context.Background(), types.SensorWaterLevel, tidalSeries(48), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, h := range []int{0, -5, 169, 200} {
		_, err := model.Forecast(h)
		if !types.IsCode(err, types.ErrCodeValidationHorizonRange) {
			t.Errorf("horizon %d: expected horizon-range error, got %v", h, err)
		}
	}
}

func TestTrain_InsufficientData(t *testing.T) {
	_, _, err := Train(context.Background(), types.SensorWind, tidalSeries(5), Options{})
	if !types.IsCode(err, types.ErrCodeDataInsufficient) {
		t.Fatalf("expected insufficient-data error, got %v", err)
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Details["required"] != MinTrainingPoints || appErr.Details["actual"] != 5 {
		t.Errorf("unexpected details: %v", appErr.Details)
	}
}

func TestTrain_PropagatesDataErrors(t *testing.T) {
	raw := tidalSeries(20)
	raw[3].Timestamp = "three days ago"

	_, _, err := Train(context.Background(), types.SensorWaterLevel, raw, Options{})
	if !types.IsCode(err, types.ErrCodeDataMalformed) {
		t.Fatalf("expected malformed-data error, got %v", err)
	}
}

// TestTrain_Deterministic guards the retraining contract: the same series
// must refit to a model that forecasts identically.
func TestTrain_Deterministic(t *testing.T) {
	raw := tidalSeries(120)

	m1, _, err := Train(context.Background(), types.SensorWaterLevel, raw, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m2, _, err := Train(context.Background(), types.SensorWaterLevel, raw, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p1, _ := m1.Forecast(24)
	p2, _ := m2.Forecast(24)
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Errorf("point %d differs across identical trainings: %+v vs %+v", i, p1[i], p2[i])
		}
	}
}

// TestForecast_MultiplicativeSeasonality verifies the daily cycle survives
// into the forecast: the 06:00 peak must sit well above the 18:00 trough.
func TestForecast_MultiplicativeSeasonality(t *testing.T) {
	model, _, err := Train(context.Background(), types.SensorWaterLevel, tidalSeries(240), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	points, err := model.Forecast(24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var peak, trough *types.ForecastPoint
	for i := range points {
		switch points[i].Timestamp.Hour() {
		case 6:
			peak = &points[i]
		case 18:
			trough = &points[i]
		}
	}
	if peak == nil || trough == nil {
		t.Fatal("24-hour forecast must cover both 06:00 and 18:00")
	}
	if peak.Predicted <= trough.Predicted {
		t.Errorf("peak %v not above trough %v; seasonal indexes not learned",
			peak.Predicted, trough.Predicted)
	}
}

func TestTrain_OutlierClampShrinksBand(t *testing.T) {
	raw := tidalSeries(120)
	raw[60].Value = fptr(1000)

	plain, _, err := Train(context.Background(), types.SensorWaterLevel, raw, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clamped, _, err := Train(context.Background(), types.SensorWaterLevel, raw, Options{ClampOutliers: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if clamped.ResidualStd >= plain.ResidualStd {
		t.Errorf("clamped residual std %v not below unclamped %v",
			clamped.ResidualStd, plain.ResidualStd)
	}
}

// TestSeasonalModel_JSONRoundTrip checks that a persisted model forecasts
// identically after reload, which the artifact registry relies on.
func TestSeasonalModel_JSONRoundTrip(t *testing.T) {
	model, _, err := Train(context.Background(), types.SensorWaterLevel, tidalSeries(120), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := json.Marshal(model)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restored SeasonalModel
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want, _ := model.Forecast(48)
	got, err := restored.Forecast(48)
	if err != nil {
		t.Fatalf("restored forecast: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d: restored %+v, original %+v", i, got[i], want[i])
		}
	}
}
