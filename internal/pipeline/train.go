package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"tidewatch/internal/anomaly"
	"tidewatch/internal/classify"
	"tidewatch/internal/forecast"
	"tidewatch/internal/types"
)

// TrainReport summarizes one pipeline training run.
type TrainReport struct {
	Forecasters map[types.SensorType]ForecastOutcome `json:"forecasters"`
	Anomaly     AnomalyOutcome                       `json:"anomaly_detector"`
}

// ForecastOutcome is one sensor type's training result. Exactly one of
// Summary and Error is set; a failed sensor never disturbs the others.
type ForecastOutcome struct {
	Summary *types.TrainingSummary `json:"summary,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// AnomalyOutcome reports the pooled detector's training result. Status is
// "trained", "skipped" (below the pooled minimum, previous state kept), or
// "error".
type AnomalyOutcome struct {
	Status      string `json:"status"`
	SampleCount int    `json:"sample_count,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Train fits a forecaster for every sensor type present in the request and
// retrains the pooled anomaly detector, in parallel. Each kind swaps
// all-or-nothing and is persisted to the registry on success. Training guards
// for every affected kind are acquired up front; if any kind already has a
// run in flight the whole call is rejected, so a caller never observes half
// of its request training.
func (s *Service) Train(ctx context.Context, bySensor map[types.SensorType][]types.RawReading) (*TrainReport, error) {
	if len(bySensor) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField,
			"training request contains no sensor data", nil)
	}

	// Canonical order keeps lock acquisition and reporting deterministic.
	sensors := make([]types.SensorType, 0, len(bySensor))
	for _, sensor := range types.AllSensorTypes {
		if _, ok := bySensor[sensor]; ok {
			sensors = append(sensors, sensor)
		}
	}
	if len(sensors) != len(bySensor) {
		for sensor := range bySensor {
			if !sensor.Valid() {
				return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidParameter,
					"unknown sensor type in training request", nil,
					map[string]any{"sensor_type": string(sensor)})
			}
		}
	}

	var held []*sync.Mutex
	release := func() {
		for _, mu := range held {
			mu.Unlock()
		}
	}
	for _, sensor := range sensors {
		slot := s.forecasters[sensor]
		if !slot.training.TryLock() {
			release()
			kind, _ := types.ForecasterArtifact(sensor)
			return nil, trainingInProgress(kind)
		}
		held = append(held, &slot.training)
	}
	if !s.anomaly.training.TryLock() {
		release()
		return nil, trainingInProgress(types.ArtifactAnomalyDetector)
	}
	held = append(held, &s.anomaly.training)
	defer release()

	pooled := make(map[string][]types.RawReading, len(sensors))
	for _, sensor := range sensors {
		pooled[string(sensor)] = bySensor[sensor]
	}

	g, gctx := errgroup.WithContext(ctx)
	outcomes := make([]ForecastOutcome, len(sensors))
	for i, sensor := range sensors {
		g.Go(func() error {
			outcomes[i] = s.trainForecaster(gctx, sensor, bySensor[sensor])
			return nil
		})
	}
	var anomalyOutcome AnomalyOutcome
	g.Go(func() error {
		anomalyOutcome = s.trainDetector(gctx, pooled)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &TrainReport{
		Forecasters: make(map[types.SensorType]ForecastOutcome, len(sensors)),
		Anomaly:     anomalyOutcome,
	}
	for i, sensor := range sensors {
		report.Forecasters[sensor] = outcomes[i]
	}
	return report, nil
}

// trainForecaster fits and installs one sensor type's model. Failures are
// reported in the outcome, not returned: the caller aggregates per-sensor
// results and the previous model stays installed.
func (s *Service) trainForecaster(ctx context.Context, sensor types.SensorType, rows []types.RawReading) ForecastOutcome {
	log := types.LoggerFromContext(ctx)

	model, summary, err := forecast.Train(ctx, sensor, rows, s.opts.Forecast)
	if err != nil {
		log.Warn("forecaster training failed",
			"sensor_type", string(sensor), "error", err)
		return ForecastOutcome{Error: err.Error()}
	}

	s.forecasters[sensor].set(model)

	kind, _ := types.ForecasterArtifact(sensor)
	if _, err := s.store.Save(ctx, kind, model); err != nil {
		log.Error("failed to persist forecaster artifact",
			"kind", string(kind), "error", err)
	}
	return ForecastOutcome{Summary: summary}
}

// trainDetector retrains the pooled anomaly detector. A nil detector with no
// error is the documented insufficient-data no-op: warn (inside the trainer)
// and keep whatever was installed before.
func (s *Service) trainDetector(ctx context.Context, pooled map[string][]types.RawReading) AnomalyOutcome {
	log := types.LoggerFromContext(ctx)

	detector, err := anomaly.Train(ctx, pooled)
	if err != nil {
		log.Warn("anomaly detector training failed", "error", err)
		return AnomalyOutcome{Status: "error", Error: err.Error()}
	}
	if detector == nil {
		return AnomalyOutcome{Status: "skipped"}
	}

	s.anomaly.set(detector)
	s.persistDetector(ctx, detector)
	return AnomalyOutcome{Status: "trained", SampleCount: detector.SampleCount}
}

// TrainClassifier fits the threat classifier from labeled examples, with the
// synthetic bootstrap substituting below the real-data minimum. The
// classifier and its scaler swap and persist as a matched pair.
func (s *Service) TrainClassifier(ctx context.Context, examples []types.LabeledExample) (*types.ClassifierTrainingReport, error) {
	if !s.classifier.training.TryLock() {
		return nil, trainingInProgress(types.ArtifactClassifier)
	}
	defer s.classifier.training.Unlock()

	clf, report, err := classify.Train(ctx, examples)
	if err != nil {
		return nil, err
	}

	s.classifier.set(clf)
	s.persistClassifier(ctx, clf)
	return report, nil
}

// bootstrapClassifier runs the implicit synthetic-only training triggered by
// classifying before any explicit train. It waits for an in-flight classifier
// training instead of rejecting, then re-checks: whoever got there first has
// already installed a usable pair.
func (s *Service) bootstrapClassifier(ctx context.Context) (*classify.Classifier, error) {
	s.classifier.training.Lock()
	defer s.classifier.training.Unlock()

	if clf := s.classifier.get(); clf.Ready() {
		return clf, nil
	}

	log := types.LoggerFromContext(ctx)
	log.Info("bootstrapping threat classifier from synthetic data")

	clf, _, err := classify.Train(ctx, nil)
	if err != nil {
		return nil, err
	}

	s.classifier.set(clf)
	s.persistClassifier(ctx, clf)
	return clf, nil
}

// persistDetector writes the detector pair. If the detector itself cannot be
// saved the scaler write is skipped, so the stored pair is never mixed
// between two training runs.
func (s *Service) persistDetector(ctx context.Context, detector *anomaly.Detector) {
	log := types.LoggerFromContext(ctx)
	if _, err := s.store.Save(ctx, types.ArtifactAnomalyDetector, detector); err != nil {
		log.Error("failed to persist anomaly detector artifact", "error", err)
		return
	}
	if _, err := s.store.Save(ctx, types.ArtifactAnomalyScaler, detector.Scaler); err != nil {
		log.Error("failed to persist anomaly scaler artifact", "error", err)
	}
}

func (s *Service) persistClassifier(ctx context.Context, clf *classify.Classifier) {
	log := types.LoggerFromContext(ctx)
	if _, err := s.store.Save(ctx, types.ArtifactClassifier, clf); err != nil {
		log.Error("failed to persist classifier artifact", "error", err)
		return
	}
	if _, err := s.store.Save(ctx, types.ArtifactClassifierScaler, clf.Scaler); err != nil {
		log.Error("failed to persist classifier scaler artifact", "error", err)
	}
}

func trainingInProgress(kind types.ArtifactKind) *types.AppError {
	return types.NewAppErrorWithDetails(types.ErrCodeTrainingInProgress,
		"training already in progress", nil,
		map[string]any{"kind": string(kind)})
}
