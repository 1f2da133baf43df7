package ml

import (
	"math"
	"testing"
)

func TestAccuracy(t *testing.T) {
	got, err := Accuracy([]int{0, 1, 2, 1}, []int{0, 1, 1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0.75 {
		t.Errorf("Accuracy = %v, want 0.75", got)
	}

	if _, err := Accuracy(nil, nil); err == nil {
		t.Error("expected error for empty inputs")
	}
	if _, err := Accuracy([]int{1}, []int{1, 2}); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

func TestEvaluate_PerfectPrediction(t *testing.T) {
	actual := []float64{1, 2, 3, 4}

	m, err := Evaluate(actual, actual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.RMSE != 0 || m.MAE != 0 {
		t.Errorf("RMSE=%v MAE=%v, want 0 for perfect prediction", m.RMSE, m.MAE)
	}
	if m.R2 != 1 {
		t.Errorf("R2 = %v, want 1", m.R2)
	}
	if m.MAPE != 0 || m.SMAPE != 0 {
		t.Errorf("MAPE=%v SMAPE=%v, want 0", m.MAPE, m.SMAPE)
	}
	if math.Abs(m.Correlation-1) > 1e-9 {
		t.Errorf("Correlation = %v, want 1", m.Correlation)
	}
	if m.SampleCount != 4 {
		t.Errorf("SampleCount = %d, want 4", m.SampleCount)
	}
}

// TestEvaluate_KnownValues pins each metric against hand-computed numbers
// for a constant prediction over [1,2,3].
func TestEvaluate_KnownValues(t *testing.T) {
	m, err := Evaluate([]float64{1, 2, 3}, []float64{2, 2, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.RMSE != 0.8165 {
		t.Errorf("RMSE = %v, want 0.8165", m.RMSE)
	}
	if m.MAE != 0.6667 {
		t.Errorf("MAE = %v, want 0.6667", m.MAE)
	}
	if m.R2 != 0 {
		t.Errorf("R2 = %v, want 0 (constant prediction explains nothing)", m.R2)
	}
	if m.MAPE != 44.44 {
		t.Errorf("MAPE = %v, want 44.44", m.MAPE)
	}
	if m.SMAPE != 35.56 {
		t.Errorf("SMAPE = %v, want 35.56", m.SMAPE)
	}
	// Constant prediction has no variance, so correlation degenerates to 0.
	if m.Correlation != 0 {
		t.Errorf("Correlation = %v, want 0", m.Correlation)
	}
}

func TestEvaluate_SkipsZeroActualsInMAPE(t *testing.T) {
	m, err := Evaluate([]float64{0, 2}, []float64{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Only the second pair counts toward MAPE and it is exact.
	if m.MAPE != 0 {
		t.Errorf("MAPE = %v, want 0", m.MAPE)
	}
	// sMAPE still counts the first pair via the symmetric denominator.
	if m.SMAPE != 100 {
		t.Errorf("SMAPE = %v, want 100", m.SMAPE)
	}
}

func TestEvaluate_ConstantActuals(t *testing.T) {
	m, err := Evaluate([]float64{5, 5, 5}, []float64{4, 5, 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.R2 != 0 {
		t.Errorf("R2 = %v, want 0 when actuals have no variance", m.R2)
	}
	if m.Correlation != 0 {
		t.Errorf("Correlation = %v, want 0 when actuals have no variance", m.Correlation)
	}
}

func TestCorrelation(t *testing.T) {
	if got := Correlation([]float64{1, 2, 3}, []float64{2, 4, 6}); math.Abs(got-1) > 1e-9 {
		t.Errorf("Correlation = %v, want 1 for a positive linear relation", got)
	}
	if got := Correlation([]float64{1, 2, 3}, []float64{3, 2, 1}); math.Abs(got+1) > 1e-9 {
		t.Errorf("Correlation = %v, want -1 for a negative linear relation", got)
	}
	if got := Correlation([]float64{1}, []float64{1}); got != 0 {
		t.Errorf("Correlation = %v, want 0 for a single point", got)
	}
}

func TestEvaluate_Errors(t *testing.T) {
	if _, err := Evaluate(nil, nil); err == nil {
		t.Error("expected error for empty inputs")
	}
	if _, err := Evaluate([]float64{1}, []float64{1, 2}); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}
