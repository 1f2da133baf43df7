package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"tidewatch/internal/types"
)

// fittedStub is a minimal JSON-serializable stand-in for fitted model state.
type fittedStub struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

var stubState = fittedStub{Weights: []float64{0.25, -1.5, 3.75}, Bias: 0.125}

var testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *clockwork.FakeClock) {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	fc := clockwork.NewFakeClockAt(testEpoch)
	s.clock = fc
	return s, fc
}

// TestSaveLoadVerifyRoundTrip covers the core contract: a saved artifact
// loads back byte-identical and verifies clean.
func TestSaveLoadVerifyRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	info, err := s.Save(ctx, types.ArtifactClassifier, stubState)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if info.Kind != types.ArtifactClassifier {
		t.Errorf("info.Kind = %q, want %q", info.Kind, types.ArtifactClassifier)
	}
	if len(info.ContentHash) != 64 {
		t.Errorf("ContentHash length = %d, want 64 hex chars", len(info.ContentHash))
	}
	if info.SizeBytes <= 0 {
		t.Errorf("SizeBytes = %d, want > 0", info.SizeBytes)
	}
	if !info.CreatedAt.Equal(testEpoch) {
		t.Errorf("CreatedAt = %v, want %v", info.CreatedAt, testEpoch)
	}

	art, err := s.Load(ctx, types.ArtifactClassifier)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if art.ContentHash != info.ContentHash {
		t.Errorf("loaded hash %q, want %q", art.ContentHash, info.ContentHash)
	}
	if !art.CreatedAt.Equal(info.CreatedAt) {
		t.Errorf("loaded CreatedAt %v, want %v", art.CreatedAt, info.CreatedAt)
	}
	if art.SizeBytes != info.SizeBytes {
		t.Errorf("loaded SizeBytes %d, want %d", art.SizeBytes, info.SizeBytes)
	}

	var restored fittedStub
	if err := json.Unmarshal(art.FittedState, &restored); err != nil {
		t.Fatalf("unmarshal fitted state: %v", err)
	}
	if !reflect.DeepEqual(restored, stubState) {
		t.Errorf("restored state = %+v, want %+v", restored, stubState)
	}

	ok, err := s.Verify(ctx, types.ArtifactClassifier)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("Verify = false for an untouched artifact, want true")
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Save(ctx, types.ArtifactAnomalyDetector, stubState); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := s.payloadPath(types.ArtifactAnomalyDetector)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	data[len(data)/2] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write corrupted payload: %v", err)
	}

	ok, err := s.Verify(ctx, types.ArtifactAnomalyDetector)
	if err != nil {
		t.Fatalf("Verify after corruption: %v", err)
	}
	if ok {
		t.Error("Verify = true for a corrupted payload, want false")
	}
}

func TestVerifyMissingPieces(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// Nothing stored at all.
	if ok, err := s.Verify(ctx, types.ArtifactClassifier); err != nil || ok {
		t.Errorf("Verify with nothing stored = (%v, %v), want (false, nil)", ok, err)
	}

	// Payload present, sidecar gone.
	if _, err := s.Save(ctx, types.ArtifactClassifier, stubState); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(s.infoPath(types.ArtifactClassifier)); err != nil {
		t.Fatalf("remove sidecar: %v", err)
	}
	if ok, err := s.Verify(ctx, types.ArtifactClassifier); err != nil || ok {
		t.Errorf("Verify without sidecar = (%v, %v), want (false, nil)", ok, err)
	}

	// Sidecar present, payload gone.
	if _, err := s.Save(ctx, types.ArtifactAnomalyScaler, stubState); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(s.payloadPath(types.ArtifactAnomalyScaler)); err != nil {
		t.Fatalf("remove payload: %v", err)
	}
	if ok, err := s.Verify(ctx, types.ArtifactAnomalyScaler); err != nil || ok {
		t.Errorf("Verify without payload = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestLoadNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Load(context.Background(), types.ArtifactForecasterWaterLevel)
	if !types.IsCode(err, types.ErrCodeNotFoundArtifact) {
		t.Errorf("Load with nothing stored: got %v, want %s", err, types.ErrCodeNotFoundArtifact)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	bogus := types.ArtifactKind("sandcastle")

	if _, err := s.Save(ctx, bogus, stubState); !types.IsCode(err, types.ErrCodeValidationInvalidParameter) {
		t.Errorf("Save with unknown kind: got %v, want %s", err, types.ErrCodeValidationInvalidParameter)
	}
	if _, err := s.Load(ctx, bogus); !types.IsCode(err, types.ErrCodeValidationInvalidParameter) {
		t.Errorf("Load with unknown kind: got %v, want %s", err, types.ErrCodeValidationInvalidParameter)
	}
	if _, err := s.Verify(ctx, bogus); !types.IsCode(err, types.ErrCodeValidationInvalidParameter) {
		t.Errorf("Verify with unknown kind: got %v, want %s", err, types.ErrCodeValidationInvalidParameter)
	}
}

func TestSaveOverwritesPrevious(t *testing.T) {
	s, fc := newTestStore(t)
	ctx := context.Background()

	first, err := s.Save(ctx, types.ArtifactForecasterRainfall, fittedStub{Weights: []float64{1}, Bias: 1})
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}

	fc.Advance(time.Hour)
	replacement := fittedStub{Weights: []float64{2, 3}, Bias: -4}
	second, err := s.Save(ctx, types.ArtifactForecasterRainfall, replacement)
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if !second.CreatedAt.After(first.CreatedAt) {
		t.Errorf("second CreatedAt %v not after first %v", second.CreatedAt, first.CreatedAt)
	}

	art, err := s.Load(ctx, types.ArtifactForecasterRainfall)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var restored fittedStub
	if err := json.Unmarshal(art.FittedState, &restored); err != nil {
		t.Fatalf("unmarshal fitted state: %v", err)
	}
	if !reflect.DeepEqual(restored, replacement) {
		t.Errorf("restored state = %+v, want the replacement %+v", restored, replacement)
	}
	if art.ContentHash != second.ContentHash {
		t.Errorf("loaded hash %q, want the replacement's %q", art.ContentHash, second.ContentHash)
	}

	if ok, err := s.Verify(ctx, types.ArtifactForecasterRainfall); err != nil || !ok {
		t.Errorf("Verify after overwrite = (%v, %v), want (true, nil)", ok, err)
	}

	infos, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("List returned %d artifacts after overwrite, want 1", len(infos))
	}
}

func TestLoadWithoutSidecarFallsBack(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, types.ArtifactClassifierScaler, stubState)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(s.infoPath(types.ArtifactClassifierScaler)); err != nil {
		t.Fatalf("remove sidecar: %v", err)
	}

	art, err := s.Load(ctx, types.ArtifactClassifierScaler)
	if err != nil {
		t.Fatalf("Load without sidecar: %v", err)
	}
	var restored fittedStub
	if err := json.Unmarshal(art.FittedState, &restored); err != nil {
		t.Fatalf("unmarshal fitted state: %v", err)
	}
	if !reflect.DeepEqual(restored, stubState) {
		t.Errorf("restored state = %+v, want %+v", restored, stubState)
	}
	if art.ContentHash != saved.ContentHash {
		t.Errorf("recomputed hash %q, want the stored payload's %q", art.ContentHash, saved.ContentHash)
	}
	if art.CreatedAt.IsZero() {
		t.Error("CreatedAt should fall back to the payload file time")
	}
}

func TestListOrdersByKind(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, kind := range []types.ArtifactKind{
		types.ArtifactAnomalyScaler,
		types.ArtifactClassifier,
		types.ArtifactForecasterWind,
	} {
		if _, err := s.Save(ctx, kind, stubState); err != nil {
			t.Fatalf("Save(%s): %v", kind, err)
		}
	}
	// Unrelated files must not show up as artifacts.
	for _, name := range []string{"notes.txt", "bogus.json.zst"} {
		if err := os.WriteFile(filepath.Join(s.dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	infos, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []types.ArtifactKind{
		types.ArtifactClassifier,
		types.ArtifactForecasterWind,
		types.ArtifactAnomalyScaler,
	}
	if len(infos) != len(want) {
		t.Fatalf("List returned %d artifacts, want %d", len(infos), len(want))
	}
	for i, kind := range want {
		if infos[i].Kind != kind {
			t.Errorf("infos[%d].Kind = %q, want %q", i, infos[i].Kind, kind)
		}
		if infos[i].ContentHash == "" || infos[i].SizeBytes <= 0 {
			t.Errorf("infos[%d] metadata incomplete: %+v", i, infos[i])
		}
	}
}

func TestCleanupRemovesStaleArtifacts(t *testing.T) {
	s, fc := newTestStore(t)
	ctx := context.Background()

	for _, kind := range []types.ArtifactKind{types.ArtifactClassifier, types.ArtifactAnomalyScaler} {
		if _, err := s.Save(ctx, kind, stubState); err != nil {
			t.Fatalf("Save(%s): %v", kind, err)
		}
	}
	fc.Advance(72 * time.Hour)
	if _, err := s.Save(ctx, types.ArtifactForecasterWind, stubState); err != nil {
		t.Fatalf("Save(forecaster_wind): %v", err)
	}
	fc.Advance(7 * 24 * time.Hour)

	// classifier and scaler are 10 days old; the wind forecaster is exactly
	// at maxAge, and "older than" is strict, so it stays.
	removed, err := s.Cleanup(ctx, 7*24*time.Hour, true)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 2 {
		t.Errorf("Cleanup removed %d artifacts, want 2", removed)
	}

	if _, err := s.Load(ctx, types.ArtifactClassifier); !types.IsCode(err, types.ErrCodeNotFoundArtifact) {
		t.Errorf("classifier should be gone, Load returned %v", err)
	}
	if _, statErr := os.Stat(s.infoPath(types.ArtifactClassifier)); !os.IsNotExist(statErr) {
		t.Error("classifier sidecar should be removed with its payload")
	}
	if _, err := s.Load(ctx, types.ArtifactForecasterWind); err != nil {
		t.Errorf("wind forecaster at exactly maxAge should survive, Load returned %v", err)
	}
}

func TestCleanupKeepsSoleSurvivor(t *testing.T) {
	s, fc := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Save(ctx, types.ArtifactClassifier, stubState); err != nil {
		t.Fatalf("Save: %v", err)
	}
	fc.Advance(30 * 24 * time.Hour)

	removed, err := s.Cleanup(ctx, 24*time.Hour, true)
	if err != nil {
		t.Fatalf("Cleanup with keepBest: %v", err)
	}
	if removed != 0 {
		t.Errorf("Cleanup removed %d artifacts, want 0 (sole candidate is kept)", removed)
	}
	if _, err := s.Load(ctx, types.ArtifactClassifier); err != nil {
		t.Errorf("sole survivor should still load, got %v", err)
	}

	removed, err = s.Cleanup(ctx, 24*time.Hour, false)
	if err != nil {
		t.Fatalf("Cleanup without keepBest: %v", err)
	}
	if removed != 1 {
		t.Errorf("Cleanup removed %d artifacts, want 1", removed)
	}
	if _, err := s.Load(ctx, types.ArtifactClassifier); !types.IsCode(err, types.ErrCodeNotFoundArtifact) {
		t.Errorf("artifact should be gone without keepBest, Load returned %v", err)
	}
}

func TestNewStoreSweepsTempFiles(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "classifier.json.zst.tmp")
	if err := os.WriteFile(tmp, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	if _, err := NewStore(dir); err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("stale temp file survived NewStore")
	}
}
