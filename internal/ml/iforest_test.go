package ml

import (
	"encoding/json"
	"math/rand"
	"testing"
)

// clusterRows generates n points jittered uniformly around (cx, cy).
func clusterRows(n int, cx, cy, spread float64, rng *rand.Rand) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = []float64{
			cx + (rng.Float64()-0.5)*2*spread,
			cy + (rng.Float64()-0.5)*2*spread,
		}
	}
	return rows
}

// trainingSet is a dense cluster plus a handful of far-away points, the
// shape the detector sees when a sensor misbehaves.
func trainingSet() [][]float64 {
	rng := rand.New(rand.NewSource(7))
	rows := clusterRows(95, 0.5, 0.5, 0.05, rng)
	rows = append(rows, clusterRows(5, 10, 10, 0.05, rng)...)
	return rows
}

func TestIsolationForest_SeparatesOutliers(t *testing.T) {
	f, err := FitIsolationForest(trainingSet(), DefaultIsolationForestConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	center := []float64{0.5, 0.5}
	extreme := []float64{10, 10}

	centerScore, err := f.DecisionFunction(center)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	extremeScore, err := f.DecisionFunction(extreme)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if extremeScore >= centerScore {
		t.Errorf("extreme point scored %v, center %v; extreme must score lower", extremeScore, centerScore)
	}
	if centerScore <= 0 {
		t.Errorf("cluster center scored %v, want positive (inlier)", centerScore)
	}

	if pred, _ := f.Predict(center); pred != 1 {
		t.Errorf("Predict(center) = %d, want 1", pred)
	}
	if pred, _ := f.Predict(extreme); pred != -1 {
		t.Errorf("Predict(extreme) = %d, want -1", pred)
	}
}

// TestIsolationForest_Deterministic guards the retraining contract: the
// same data and seed must rebuild the identical model.
func TestIsolationForest_Deterministic(t *testing.T) {
	rows := trainingSet()
	cfg := DefaultIsolationForestConfig()

	f1, err := FitIsolationForest(rows, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f2, err := FitIsolationForest(rows, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	probes := [][]float64{{0.5, 0.5}, {10, 10}, {2, 2}}
	for _, p := range probes {
		s1, _ := f1.DecisionFunction(p)
		s2, _ := f2.DecisionFunction(p)
		if s1 != s2 {
			t.Errorf("probe %v scored %v then %v across identical fits", p, s1, s2)
		}
	}
}

// TestIsolationForest_JSONRoundTrip checks that a persisted model scores
// identically after reload, which the artifact registry relies on.
func TestIsolationForest_JSONRoundTrip(t *testing.T) {
	f, err := FitIsolationForest(trainingSet(), DefaultIsolationForestConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored IsolationForest
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	probes := [][]float64{{0.5, 0.5}, {10, 10}, {0.4, 0.6}}
	for _, p := range probes {
		want, _ := f.DecisionFunction(p)
		got, err := restored.DecisionFunction(p)
		if err != nil {
			t.Fatalf("restored DecisionFunction: %v", err)
		}
		if got != want {
			t.Errorf("probe %v: restored score %v, original %v", p, got, want)
		}
	}
}

func TestFitIsolationForest_Errors(t *testing.T) {
	if _, err := FitIsolationForest(nil, DefaultIsolationForestConfig()); err == nil {
		t.Error("expected error for no rows")
	}
	if _, err := FitIsolationForest([][]float64{{1, 2}, {3}}, DefaultIsolationForestConfig()); err == nil {
		t.Error("expected error for ragged rows")
	}

	cfg := DefaultIsolationForestConfig()
	cfg.NumTrees = 0
	if _, err := FitIsolationForest([][]float64{{1}, {2}}, cfg); err == nil {
		t.Error("expected error for zero trees")
	}
}

func TestIsolationForest_WidthMismatch(t *testing.T) {
	f, err := FitIsolationForest(trainingSet(), DefaultIsolationForestConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.DecisionFunction([]float64{1}); err == nil {
		t.Error("expected width mismatch error")
	}
	if _, err := f.Predict([]float64{1, 2, 3}); err == nil {
		t.Error("expected width mismatch error from Predict")
	}
}
