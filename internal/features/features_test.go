package features

import (
	"math"
	"testing"
	"time"

	"tidewatch/internal/types"
)

func fptr(v float64) *float64 { return &v }

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339", "2024-01-01T14:30:00Z", time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)},
		{"rfc3339 fractional", "2024-01-01T14:30:00.250Z", time.Date(2024, 1, 1, 14, 30, 0, 250000000, time.UTC)},
		{"rfc3339 offset", "2024-01-01T14:30:00+02:00", time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)},
		{"bare datetime", "2024-01-01T14:30:00", time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)},
		{"space datetime", "2024-01-01 14:30:00", time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)},
		{"bare date", "2024-01-01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("ParseTimestamp(%q) not normalized to UTC", tt.input)
			}
		})
	}

	if _, err := ParseTimestamp("not-a-time"); err == nil {
		t.Error("expected error for garbage input")
	}
	if _, err := ParseTimestamp("14:30:00"); err == nil {
		t.Error("expected error for time without date")
	}
}

// TestDetectionFeatures pins the feature column order the fitted scaler
// depends on: {value, hour, day_of_week, month, type_code}.
func TestDetectionFeatures(t *testing.T) {
	// 2024-01-01 was a Monday; day_of_week is Monday-indexed.
	monday := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	got := DetectionFeatures(types.SensorReading{
		SensorType: types.SensorWaterLevel,
		Timestamp:  monday,
		Value:      2.5,
	})
	want := []float64{2.5, 14, 0, 1, 0}
	assertVector(t, got, want)

	// 2024-01-07 was a Sunday, the last weekday index.
	sunday := time.Date(2024, 1, 7, 3, 0, 0, 0, time.UTC)
	got = DetectionFeatures(types.SensorReading{
		SensorType: types.SensorRainfall,
		Timestamp:  sunday,
		Value:      12.0,
	})
	want = []float64{12.0, 3, 6, 1, 2}
	assertVector(t, got, want)
}

func assertVector(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("vector length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("feature[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestValidateReading(t *testing.T) {
	got, err := ValidateReading(types.RawReading{
		Timestamp:  "2024-03-01T06:00:00Z",
		SensorType: "water_level",
		Value:      fptr(1.42),
		Location:   "north pier",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := types.SensorReading{
		SensorType: types.SensorWaterLevel,
		Timestamp:  time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC),
		Value:      1.42,
		Location:   "north pier",
	}
	if got != want {
		t.Errorf("ValidateReading = %+v, want %+v", got, want)
	}

	invalid := []struct {
		name string
		in   types.RawReading
		code types.ErrorCode
	}{
		{"unknown type", types.RawReading{Timestamp: "2024-03-01T06:00:00Z", SensorType: "seismic", Value: fptr(1)}, types.ErrCodeDataMalformed},
		{"missing timestamp", types.RawReading{SensorType: "wind", Value: fptr(1)}, types.ErrCodeDataMissingField},
		{"bad timestamp", types.RawReading{Timestamp: "yesterday", SensorType: "wind", Value: fptr(1)}, types.ErrCodeDataMalformed},
		{"missing value", types.RawReading{Timestamp: "2024-03-01T06:00:00Z", SensorType: "wind"}, types.ErrCodeDataMissingField},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateReading(tt.in); !types.IsCode(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestBuildDetectionRows_ExcludesInvalidRows(t *testing.T) {
	raw := []types.RawReading{
		{Timestamp: "2024-01-01T10:00:00Z", SensorType: "water_level", Value: fptr(1.2), Location: "harbor"},
		{Timestamp: "2024-01-01T11:00:00Z", SensorType: "seismic", Value: fptr(0.4)},    // unknown type
		{Timestamp: "2024-01-01T12:00:00Z", SensorType: "wind", Value: nil},             // missing value
		{Timestamp: "garbage", SensorType: "wind", Value: fptr(9.9)},                    // bad timestamp
		{Timestamp: "", SensorType: "rainfall", Value: fptr(3.3)},                       // missing timestamp
		{Timestamp: "2024-01-01T13:00:00Z", SensorType: "wind", Value: fptr(18.0)},
	}

	rows := BuildDetectionRows(raw)
	if len(rows) != 2 {
		t.Fatalf("expected 2 valid rows, got %d", len(rows))
	}

	first := rows[0]
	if first.Reading.SensorType != types.SensorWaterLevel || first.Reading.Location != "harbor" {
		t.Errorf("unexpected first reading: %+v", first.Reading)
	}
	if first.Features[0] != 1.2 || first.Features[4] != 0 {
		t.Errorf("unexpected first features: %v", first.Features)
	}

	second := rows[1]
	if second.Reading.SensorType != types.SensorWind {
		t.Errorf("unexpected second reading: %+v", second.Reading)
	}
	if second.Features[4] != 1 {
		t.Errorf("wind type code = %v, want 1", second.Features[4])
	}
}

func TestPoolReadings(t *testing.T) {
	bySensor := map[string][]types.RawReading{
		"water_level": {
			{Timestamp: "2024-01-01T10:00:00Z", Value: fptr(1.0)},
			{Timestamp: "2024-01-01T11:00:00Z", Value: fptr(1.1)},
		},
		"wind": {
			{Timestamp: "2024-01-01T10:00:00Z", Value: fptr(7.0)},
		},
	}

	pooled := PoolReadings(bySensor)
	if len(pooled) != 3 {
		t.Fatalf("expected 3 pooled readings, got %d", len(pooled))
	}

	// Sorted by sensor type, per-type order preserved.
	wantTypes := []string{"water_level", "water_level", "wind"}
	for i, p := range pooled {
		if p.SensorType != wantTypes[i] {
			t.Errorf("pooled[%d].SensorType = %q, want %q", i, p.SensorType, wantTypes[i])
		}
	}
	if *pooled[0].Value != 1.0 || *pooled[1].Value != 1.1 {
		t.Errorf("per-type order not preserved: %v, %v", *pooled[0].Value, *pooled[1].Value)
	}
}

func TestMatrix(t *testing.T) {
	raw := []types.RawReading{
		{Timestamp: "2024-01-01T10:00:00Z", SensorType: "water_level", Value: fptr(1.2)},
		{Timestamp: "2024-01-01T11:00:00Z", SensorType: "wind", Value: fptr(8.0)},
	}
	m := Matrix(BuildDetectionRows(raw))
	if len(m) != 2 || len(m[0]) != 5 {
		t.Fatalf("unexpected matrix shape: %dx%d", len(m), len(m[0]))
	}
	if m[1][0] != 8.0 {
		t.Errorf("matrix[1][0] = %v, want 8.0", m[1][0])
	}
}
