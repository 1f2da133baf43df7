// Package pipeline owns the process-wide fitted models: one forecaster per
// sensor type, the pooled anomaly detector, and the threat classifier. Each
// kind pairs a read-write lock over the current state with a separate
// training guard, so predictions keep serving the last-known-good model while
// a retrain computes its replacement, and at most one training run per kind
// is ever in flight. Installed models are immutable; a failed training run
// leaves the previous state untouched.
package pipeline

import (
	"context"
	"sync"
	"time"

	"tidewatch/internal/anomaly"
	"tidewatch/internal/classify"
	"tidewatch/internal/forecast"
	"tidewatch/internal/registry"
	"tidewatch/internal/types"
)

// DefaultRiskHorizonHours is the water-level forecast span flood-risk
// assessments are computed over when no horizon is configured.
const DefaultRiskHorizonHours = 24

// Options tune the pipeline. The zero value is usable.
type Options struct {
	// Forecast is passed through to every forecaster training run.
	Forecast forecast.Options

	// RiskHorizonHours is the forecast span used by flood-risk assessments.
	// Zero means DefaultRiskHorizonHours.
	RiskHorizonHours int
}

// forecasterSlot guards one sensor type's current model. The training mutex
// is held for the duration of a training run; the state lock only for the
// pointer swap, so readers are never blocked behind a long fit. Models are
// immutable once installed, making a snapshot taken under the read lock safe
// to use after release.
type forecasterSlot struct {
	training sync.Mutex
	mu       sync.RWMutex
	model    *forecast.SeasonalModel
}

func (sl *forecasterSlot) get() *forecast.SeasonalModel {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.model
}

func (sl *forecasterSlot) set(m *forecast.SeasonalModel) {
	sl.mu.Lock()
	sl.model = m
	sl.mu.Unlock()
}

// anomalySlot guards the pooled detector and its scaler, which swap together.
type anomalySlot struct {
	training sync.Mutex
	mu       sync.RWMutex
	detector *anomaly.Detector
}

func (sl *anomalySlot) get() *anomaly.Detector {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.detector
}

func (sl *anomalySlot) set(d *anomaly.Detector) {
	sl.mu.Lock()
	sl.detector = d
	sl.mu.Unlock()
}

// classifierSlot guards the threat classifier and its matched scaler.
type classifierSlot struct {
	training sync.Mutex
	mu       sync.RWMutex
	clf      *classify.Classifier
}

func (sl *classifierSlot) get() *classify.Classifier {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.clf
}

func (sl *classifierSlot) set(c *classify.Classifier) {
	sl.mu.Lock()
	sl.clf = c
	sl.mu.Unlock()
}

// Service is the prediction pipeline facade the API and batch binaries run
// against. All model state lives here; the registry is consulted at startup
// and after training, never on the request path.
type Service struct {
	store *registry.Store
	opts  Options

	forecasters map[types.SensorType]*forecasterSlot
	anomaly     anomalySlot
	classifier  classifierSlot
}

// New creates a pipeline service with empty model slots. Call LoadModels to
// restore persisted state before serving.
func New(store *registry.Store, opts Options) *Service {
	if opts.RiskHorizonHours <= 0 {
		opts.RiskHorizonHours = DefaultRiskHorizonHours
	}
	s := &Service{
		store:       store,
		opts:        opts,
		forecasters: make(map[types.SensorType]*forecasterSlot, len(types.AllSensorTypes)),
	}
	for _, sensor := range types.AllSensorTypes {
		s.forecasters[sensor] = &forecasterSlot{}
	}
	return s
}

// StatusReport is the model-status API payload: in-memory availability per
// artifact kind, the classifier lifecycle state, and the registry inventory.
type StatusReport struct {
	Models          []types.ModelStatus   `json:"models"`
	ClassifierState types.ClassifierState `json:"classifier_state"`
	Artifacts       []types.ArtifactInfo  `json:"artifacts"`
}

// Status reports availability for every artifact kind. Available reflects
// the in-process state; created_at and hash come from the stored artifact
// when one exists, so a kind can show available with no stored artifact
// (persistence failed) or the reverse (stored but failed verification at
// boot).
func (s *Service) Status(ctx context.Context) (*StatusReport, error) {
	infos, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	byKind := make(map[types.ArtifactKind]types.ArtifactInfo, len(infos))
	for _, info := range infos {
		byKind[info.Kind] = info
	}

	models := make([]types.ModelStatus, 0, len(types.AllArtifactKinds))
	add := func(kind types.ArtifactKind, available bool) {
		status := types.ModelStatus{Kind: kind, Available: available}
		if info, ok := byKind[kind]; ok {
			created := info.CreatedAt
			status.CreatedAt = &created
			status.Hash = info.ContentHash
		}
		models = append(models, status)
	}

	for _, sensor := range types.AllSensorTypes {
		kind, _ := types.ForecasterArtifact(sensor)
		add(kind, s.forecasters[sensor].get() != nil)
	}
	detector := s.anomaly.get()
	add(types.ArtifactAnomalyDetector, detector.Trained())
	add(types.ArtifactAnomalyScaler, detector.Trained())
	clf := s.classifier.get()
	add(types.ArtifactClassifier, clf.Ready())
	add(types.ArtifactClassifierScaler, clf.Ready())

	return &StatusReport{
		Models:          models,
		ClassifierState: clf.CurrentState(),
		Artifacts:       infos,
	}, nil
}

// Cleanup removes stored artifacts older than maxAge, honoring the
// keep-the-sole-survivor rule when keepBest is set. In-memory models are
// unaffected.
func (s *Service) Cleanup(ctx context.Context, maxAge time.Duration, keepBest bool) (int, error) {
	return s.store.Cleanup(ctx, maxAge, keepBest)
}
