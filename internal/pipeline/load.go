package pipeline

import (
	"context"
	"encoding/json"

	"tidewatch/internal/anomaly"
	"tidewatch/internal/classify"
	"tidewatch/internal/forecast"
	"tidewatch/internal/ml"
	"tidewatch/internal/types"
)

// LoadModels restores persisted model state from the registry into the
// in-process slots. Missing artifacts are normal on a first boot; integrity
// and decode failures are logged and leave that kind untrained, and boot
// continues either way. Paired artifacts (detector+scaler,
// classifier+scaler) install only when both halves load, never mixed.
// Returns the number of models restored.
func (s *Service) LoadModels(ctx context.Context) int {
	log := types.LoggerFromContext(ctx)
	restored := 0

	for _, sensor := range types.AllSensorTypes {
		kind, _ := types.ForecasterArtifact(sensor)
		var model forecast.SeasonalModel
		if !s.loadArtifact(ctx, kind, &model) {
			continue
		}
		s.forecasters[sensor].set(&model)
		restored++
	}

	var detector anomaly.Detector
	var detectorScaler ml.StandardScaler
	if s.loadArtifact(ctx, types.ArtifactAnomalyDetector, &detector) &&
		s.loadArtifact(ctx, types.ArtifactAnomalyScaler, &detectorScaler) {
		detector.Scaler = &detectorScaler
		s.anomaly.set(&detector)
		restored++
	}

	var clf classify.Classifier
	var clfScaler ml.StandardScaler
	if s.loadArtifact(ctx, types.ArtifactClassifier, &clf) &&
		s.loadArtifact(ctx, types.ArtifactClassifierScaler, &clfScaler) {
		clf.Scaler = &clfScaler
		s.classifier.set(&clf)
		restored++
	}

	log.Info("model state restored", "models", restored)
	return restored
}

// loadArtifact fetches, verifies, and decodes one artifact into dst,
// reporting whether dst now holds a usable state.
func (s *Service) loadArtifact(ctx context.Context, kind types.ArtifactKind, dst any) bool {
	log := types.LoggerFromContext(ctx)

	art, err := s.store.Load(ctx, kind)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundArtifact) {
			log.Info("no stored artifact", "kind", string(kind))
		} else {
			log.Error("artifact load failed", "kind", string(kind), "error", err)
		}
		return false
	}

	ok, err := s.store.Verify(ctx, kind)
	if err != nil {
		log.Error("artifact verification errored", "kind", string(kind), "error", err)
		return false
	}
	if !ok {
		log.Warn("artifact failed integrity check, starting untrained",
			"kind", string(kind))
		return false
	}

	if err := json.Unmarshal(art.FittedState, dst); err != nil {
		log.Error("artifact payload decode failed", "kind", string(kind), "error", err)
		return false
	}
	return true
}
