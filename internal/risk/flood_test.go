package risk

import (
	"testing"
	"time"

	"tidewatch/internal/types"
)

func forecastWith(levels ...float64) []types.ForecastPoint {
	origin := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	points := make([]types.ForecastPoint, len(levels))
	for i, v := range levels {
		points[i] = types.ForecastPoint{
			Timestamp: origin.Add(time.Duration(i+1) * time.Hour),
			Predicted: v,
			Lower:     v - 0.2,
			Upper:     v + 0.2,
		}
	}
	return points
}

func TestScoreFloodTiers(t *testing.T) {
	tests := []struct {
		name       string
		max        float64
		level      types.RiskLevel
		confidence float64
		exceeded   bool
	}{
		{"well below threshold", 0.3, types.RiskMinimal, 90, false},
		{"just below low", 0.79, types.RiskMinimal, 90, false},
		{"exactly low boundary", 0.8, types.RiskLow, 60, false},
		{"just above low", 0.81, types.RiskLow, 60, true},
		{"exactly medium boundary", 1.2, types.RiskMedium, 70, true},
		{"between medium and high", 1.4, types.RiskMedium, 70, true},
		{"exactly high boundary", 1.5, types.RiskHigh, 85, true},
		{"exactly critical boundary", 2.0, types.RiskCritical, 95, true},
		{"far above critical", 3.7, types.RiskCritical, 95, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreFlood(forecastWith(tt.max-0.3, tt.max, tt.max-0.5))
			if got.RiskLevel != tt.level {
				t.Errorf("risk level = %q, want %q", got.RiskLevel, tt.level)
			}
			if got.Confidence != tt.confidence {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.confidence)
			}
			if got.ThresholdExceeded != tt.exceeded {
				t.Errorf("threshold exceeded = %v, want %v", got.ThresholdExceeded, tt.exceeded)
			}
			if got.MaxPredictedLevel != tt.max {
				t.Errorf("max predicted level = %v, want %v", got.MaxPredictedLevel, tt.max)
			}
		})
	}
}

func TestScoreFloodEmptyForecast(t *testing.T) {
	got := ScoreFlood(nil)
	if got.RiskLevel != types.RiskUnknown {
		t.Errorf("risk level = %q, want %q", got.RiskLevel, types.RiskUnknown)
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", got.Confidence)
	}
	if got.MaxPredictedLevel != 0 {
		t.Errorf("max predicted level = %v, want 0", got.MaxPredictedLevel)
	}
	if got.ThresholdExceeded {
		t.Error("threshold exceeded = true, want false")
	}
}

func TestScoreFloodUsesPredictedNotBounds(t *testing.T) {
	// Upper bounds cross the critical threshold but predictions stay low.
	points := forecastWith(0.5, 0.6)
	points[1].Upper = 2.5
	got := ScoreFlood(points)
	if got.RiskLevel != types.RiskMinimal {
		t.Errorf("risk level = %q, want %q", got.RiskLevel, types.RiskMinimal)
	}
	if got.MaxPredictedLevel != 0.6 {
		t.Errorf("max predicted level = %v, want 0.6", got.MaxPredictedLevel)
	}
}

func TestScoreFloodRoundsMaxLevel(t *testing.T) {
	got := ScoreFlood(forecastWith(1.23456))
	if got.MaxPredictedLevel != 1.235 {
		t.Errorf("max predicted level = %v, want 1.235", got.MaxPredictedLevel)
	}
}

func TestScoreFloodMonotoneInMaxLevel(t *testing.T) {
	maxes := []float64{0.1, 0.5, 0.79, 0.8, 1.0, 1.19, 1.2, 1.49, 1.5, 1.99, 2.0, 4.0}
	prev := -1
	for _, max := range maxes {
		rank := ScoreFlood(forecastWith(max)).RiskLevel.Rank()
		if rank < prev {
			t.Fatalf("rank decreased at max level %v: %d -> %d", max, prev, rank)
		}
		prev = rank
	}
}
