package ml

import (
	"math"
	"testing"
)

func TestFitScaler_MeanAndStd(t *testing.T) {
	rows := [][]float64{
		{1, 10},
		{3, 10},
		{5, 10},
	}

	s, err := FitScaler(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !floatsClose(s.Mean[0], 3) || !floatsClose(s.Mean[1], 10) {
		t.Errorf("mean = %v, want [3 10]", s.Mean)
	}
	if !floatsClose(s.Std[0], math.Sqrt(8.0/3.0)) {
		t.Errorf("std[0] = %v, want %v", s.Std[0], math.Sqrt(8.0/3.0))
	}
	// Zero-variance column scales by 1 instead of dividing by zero.
	if s.Std[1] != 1 {
		t.Errorf("std[1] = %v, want 1 for constant column", s.Std[1])
	}
	if s.NumFeatures() != 2 {
		t.Errorf("NumFeatures = %d, want 2", s.NumFeatures())
	}
}

func TestTransformRow(t *testing.T) {
	s, err := FitScaler([][]float64{{1, 10}, {3, 10}, {5, 10}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := s.TransformRow([]float64{3, 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !floatsClose(out[0], 0) || !floatsClose(out[1], 0) {
		t.Errorf("centered row = %v, want [0 0]", out)
	}

	out, err = s.TransformRow([]float64{5, 12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantFirst := 2.0 / math.Sqrt(8.0/3.0)
	if !floatsClose(out[0], wantFirst) {
		t.Errorf("out[0] = %v, want %v", out[0], wantFirst)
	}
	// Constant column passes through centered, scaled by 1.
	if !floatsClose(out[1], 2) {
		t.Errorf("out[1] = %v, want 2", out[1])
	}

	if _, err := s.TransformRow([]float64{1}); err == nil {
		t.Error("expected width mismatch error")
	}
}

func TestTransform_Batch(t *testing.T) {
	s, err := FitScaler([][]float64{{0}, {10}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := s.Transform([][]float64{{0}, {5}, {10}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(out))
	}
	if !floatsClose(out[1][0], 0) {
		t.Errorf("midpoint should scale to 0, got %v", out[1][0])
	}

	if _, err := s.Transform([][]float64{{1, 2}}); err == nil {
		t.Error("expected width mismatch error for batch")
	}
}

func TestFitScaler_Errors(t *testing.T) {
	if _, err := FitScaler(nil); err == nil {
		t.Error("expected error for no rows")
	}
	if _, err := FitScaler([][]float64{{}}); err == nil {
		t.Error("expected error for zero-width rows")
	}
	if _, err := FitScaler([][]float64{{1, 2}, {3}}); err == nil {
		t.Error("expected error for ragged rows")
	}
}
