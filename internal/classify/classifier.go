// Package classify grades threat severity from five numeric conditions:
// water level, wind speed, rainfall, temperature, and pressure. The model is
// a random forest over scaled features; when real labeled data is scarce it
// is bootstrapped from a deterministic synthetic dataset, so the service can
// always produce a verdict.
package classify

import (
	"context"
	"slices"
	"time"

	"tidewatch/internal/ml"
	"tidewatch/internal/types"
)

const (
	// MinRealExamples is the labeled-example floor below which training
	// substitutes the synthetic dataset.
	MinRealExamples = 20

	// testFraction and splitSeed fix the held-out evaluation split.
	testFraction = 0.2
	splitSeed    = 42
)

// FeatureNames lists the model inputs in canonical order. This order is
// baked into every persisted scaler and forest.
var FeatureNames = []string{"water_level", "wind_speed", "rainfall", "temperature", "pressure"}

// Classifier is a fitted threat model. State records how it was fitted:
// "trained" only ever means real labeled examples; a synthetic-only fit is
// "bootstrapped" no matter how it was triggered.
type Classifier struct {
	Forest    *ml.RandomForest      `json:"forest"`
	State     types.ClassifierState `json:"state"`
	Accuracy  float64               `json:"accuracy"`
	TrainedAt time.Time             `json:"trained_at"`

	// Scaler is persisted separately as the matched scaler artifact and
	// reattached at load; it never travels inside the classifier payload.
	// The pair must be swapped together.
	Scaler *ml.StandardScaler `json:"-"`
}

// Train fits a new classifier. Fewer than MinRealExamples labeled examples
// substitutes the synthetic dataset and marks the result bootstrapped.
// Training data is split 80/20 stratified by label; the scaler is fitted on
// the training split only and accuracy is measured on the held-out split.
func Train(ctx context.Context, examples []types.LabeledExample) (*Classifier, *types.ClassifierTrainingReport, error) {
	log := types.LoggerFromContext(ctx)

	state := types.ClassifierTrained
	if len(examples) < MinRealExamples {
		log.Info("substituting synthetic classifier training data",
			"real_examples", len(examples),
			"required", MinRealExamples)
		examples = syntheticExamples()
		state = types.ClassifierBootstrapped
	}

	rows := make([][]float64, len(examples))
	labels := make([]int, len(examples))
	for i, ex := range examples {
		idx, ok := ex.Level.Index()
		if !ok {
			return nil, nil, types.NewAppErrorWithDetails(types.ErrCodeDataMalformed,
				"unknown threat level in labeled example", nil,
				map[string]any{"field": "threat_level", "value": string(ex.Level), "row": i})
		}
		rows[i] = ex.Vector()
		labels[i] = idx
	}

	trainIdx, testIdx, err := ml.StratifiedSplit(labels, testFraction, splitSeed)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalUnexpected, "splitting classifier training data", err)
	}
	trainRows, trainLabels := ml.Subset(rows, labels, trainIdx)
	testRows, testLabels := ml.Subset(rows, labels, testIdx)

	scaler, err := ml.FitScaler(trainRows)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalUnexpected, "fitting classifier scaler", err)
	}
	scaledTrain, err := scaler.Transform(trainRows)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalUnexpected, "scaling classifier training split", err)
	}

	forest, err := ml.FitRandomForest(scaledTrain, trainLabels, ml.DefaultForestConfig(len(types.ThreatLevels)))
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalUnexpected, "fitting threat classifier", err)
	}

	predictions := make([]int, len(testRows))
	for i, row := range testRows {
		scaled, err := scaler.TransformRow(row)
		if err != nil {
			return nil, nil, types.NewAppError(types.ErrCodeInternalUnexpected, "scaling classifier test split", err)
		}
		predictions[i], err = forest.Predict(scaled)
		if err != nil {
			return nil, nil, types.NewAppError(types.ErrCodeInternalUnexpected, "evaluating threat classifier", err)
		}
	}
	accuracy, err := ml.Accuracy(testLabels, predictions)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalUnexpected, "computing classifier accuracy", err)
	}
	accuracy = ml.Round(accuracy, 3)

	log.Info("threat classifier trained",
		"state", string(state),
		"accuracy", accuracy,
		"training_samples", len(trainRows),
		"test_samples", len(testRows))

	classifier := &Classifier{
		Forest:    forest,
		State:     state,
		Accuracy:  accuracy,
		TrainedAt: time.Now().UTC(),
		Scaler:    scaler,
	}
	report := &types.ClassifierTrainingReport{
		Status:          string(state),
		Accuracy:        accuracy,
		TrainingSamples: len(trainRows),
		TestSamples:     len(testRows),
		Features:        slices.Clone(FeatureNames),
	}
	return classifier, report, nil
}

// Classify grades one set of conditions. The caller resolves request
// defaults before calling; this method sees final feature values only.
func (c *Classifier) Classify(conditions types.Conditions) (*types.ThreatClassification, error) {
	if !c.Ready() {
		return nil, types.NewAppError(types.ErrCodeModelNotReady,
			"threat classifier has not been trained", nil)
	}

	scaled, err := c.Scaler.TransformRow(conditions.Vector())
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "scaling classify input", err)
	}
	proba, err := c.Forest.PredictProba(scaled)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "scoring classify input", err)
	}

	// Argmax with lowest-index tie-break, same rule the forest itself uses.
	predicted := 0
	for i, p := range proba {
		if p > proba[predicted] {
			predicted = i
		}
	}

	probabilities := make(map[types.ThreatLevel]float64, len(types.ThreatLevels))
	for i, level := range types.ThreatLevels {
		probabilities[level] = ml.Round(proba[i], 3)
	}

	return &types.ThreatClassification{
		PredictedLevel: types.ThreatLevels[predicted],
		Confidence:     ml.Round(proba[predicted]*100, 1),
		Probabilities:  probabilities,
		InputFeatures:  conditions,
		Explanation:    Explain(conditions),
	}, nil
}

// Ready reports whether the classifier holds a complete fitted pair.
func (c *Classifier) Ready() bool {
	return c != nil && c.Forest != nil && c.Scaler != nil
}

// CurrentState is the nil-safe lifecycle query: an absent classifier is
// untrained.
func (c *Classifier) CurrentState() types.ClassifierState {
	if c == nil {
		return types.ClassifierUntrained
	}
	return c.State
}
