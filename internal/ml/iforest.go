package ml

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
)

// eulerGamma is the Euler-Mascheroni constant used in the average
// unsuccessful-search path length of a binary search tree.
const eulerGamma = 0.5772156649

// IsolationForestConfig controls ensemble size and the outlier cutoff.
type IsolationForestConfig struct {
	NumTrees      int     `json:"num_trees"`
	SampleSize    int     `json:"sample_size"`
	Contamination float64 `json:"contamination"`
	Seed          int64   `json:"seed"`
}

// DefaultIsolationForestConfig mirrors the ensemble shape the detector has
// always been trained with. Changing these invalidates score thresholds
// baked into severity grading.
func DefaultIsolationForestConfig() IsolationForestConfig {
	return IsolationForestConfig{
		NumTrees:      100,
		SampleSize:    256,
		Contamination: 0.1,
		Seed:          42,
	}
}

// isoNode is one node of an isolation tree. External nodes have Feature -1
// and carry the count of samples that terminated there.
type isoNode struct {
	Feature int      `json:"feature"`
	Split   float64  `json:"split"`
	Left    *isoNode `json:"left,omitempty"`
	Right   *isoNode `json:"right,omitempty"`
	Size    int      `json:"size,omitempty"`
}

// IsolationForest is an unsupervised outlier scorer. Points that isolate in
// few random splits score as anomalies. Offset is the contamination
// quantile of the training scores: decision values below zero mark
// outliers, mirroring the usual decision_function convention where more
// negative means more anomalous.
type IsolationForest struct {
	Config      IsolationForestConfig `json:"config"`
	NumFeatures int                   `json:"num_features"`
	HeightLimit int                   `json:"height_limit"`
	Trees       []*isoNode            `json:"trees"`
	Offset      float64               `json:"offset"`
}

// FitIsolationForest trains the ensemble on the given feature rows.
// Deterministic for a fixed config seed.
func FitIsolationForest(rows [][]float64, cfg IsolationForestConfig) (*IsolationForest, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("isolation forest: no rows to fit")
	}
	width := len(rows[0])
	if width == 0 {
		return nil, fmt.Errorf("isolation forest: rows have no features")
	}
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("isolation forest: ragged input at row %d", i)
		}
	}
	if cfg.NumTrees <= 0 || cfg.SampleSize <= 0 {
		return nil, fmt.Errorf("isolation forest: invalid config %+v", cfg)
	}

	sampleSize := cfg.SampleSize
	if sampleSize > len(rows) {
		sampleSize = len(rows)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(sampleSize))))
	if heightLimit < 1 {
		heightLimit = 1
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	forest := &IsolationForest{
		Config:      cfg,
		NumFeatures: width,
		HeightLimit: heightLimit,
		Trees:       make([]*isoNode, 0, cfg.NumTrees),
	}

	for t := 0; t < cfg.NumTrees; t++ {
		perm := rng.Perm(len(rows))
		sample := make([][]float64, sampleSize)
		for i := 0; i < sampleSize; i++ {
			sample[i] = rows[perm[i]]
		}
		forest.Trees = append(forest.Trees, buildIsoTree(sample, 0, heightLimit, rng))
	}

	// The decision threshold is the contamination quantile of the training
	// scores, so roughly that fraction of the training set lands below zero.
	scores := make([]float64, len(rows))
	for i, row := range rows {
		scores[i] = forest.scoreSample(row)
	}
	slices.Sort(scores)
	forest.Offset = Quantile(scores, cfg.Contamination)

	return forest, nil
}

func buildIsoTree(sample [][]float64, depth, heightLimit int, rng *rand.Rand) *isoNode {
	if depth >= heightLimit || len(sample) <= 1 {
		return &isoNode{Feature: -1, Size: len(sample)}
	}

	// Only features that still vary within this partition can split it.
	width := len(sample[0])
	varying := make([]int, 0, width)
	for j := 0; j < width; j++ {
		min, max := sample[0][j], sample[0][j]
		for _, row := range sample[1:] {
			if row[j] < min {
				min = row[j]
			}
			if row[j] > max {
				max = row[j]
			}
		}
		if max > min {
			varying = append(varying, j)
		}
	}
	if len(varying) == 0 {
		return &isoNode{Feature: -1, Size: len(sample)}
	}

	feature := varying[rng.Intn(len(varying))]
	col := make([]float64, len(sample))
	for i, row := range sample {
		col[i] = row[feature]
	}
	min, max := MinMax(col)
	split := min + rng.Float64()*(max-min)

	var left, right [][]float64
	for _, row := range sample {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	// A degenerate random split keeps everything on one side; isolate there.
	if len(left) == 0 || len(right) == 0 {
		return &isoNode{Feature: -1, Size: len(sample)}
	}

	return &isoNode{
		Feature: feature,
		Split:   split,
		Left:    buildIsoTree(left, depth+1, heightLimit, rng),
		Right:   buildIsoTree(right, depth+1, heightLimit, rng),
	}
}

// avgPathLength is the expected path length of an unsuccessful search in a
// binary search tree over n points, used both to extrapolate truncated
// branches and to normalize raw path lengths.
func avgPathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		f := float64(n)
		return 2*(math.Log(f-1)+eulerGamma) - 2*(f-1)/f
	}
}

func pathLength(node *isoNode, row []float64, depth int) float64 {
	if node.Feature < 0 {
		return float64(depth) + avgPathLength(node.Size)
	}
	if row[node.Feature] < node.Split {
		return pathLength(node.Left, row, depth+1)
	}
	return pathLength(node.Right, row, depth+1)
}

// scoreSample returns the negated anomaly score in (-1, 0): values near -1
// are strongly anomalous, values near -0.5 and above are ordinary.
func (f *IsolationForest) scoreSample(row []float64) float64 {
	var total float64
	for _, tree := range f.Trees {
		total += pathLength(tree, row, 0)
	}
	sampleSize := f.Config.SampleSize
	if sampleSize > 0 {
		// Normalizer uses the subsample size each tree was grown on.
		mean := total / float64(len(f.Trees))
		norm := avgPathLength(sampleSize)
		if norm == 0 {
			return -1
		}
		return -math.Pow(2, -mean/norm)
	}
	return -1
}

// DecisionFunction returns the shifted anomaly score for one feature row.
// Negative values mark outliers; below roughly -0.5 is an extreme outlier.
func (f *IsolationForest) DecisionFunction(row []float64) (float64, error) {
	if len(row) != f.NumFeatures {
		return 0, fmt.Errorf("isolation forest: want %d features, got %d", f.NumFeatures, len(row))
	}
	return f.scoreSample(row) - f.Offset, nil
}

// Predict returns -1 for outliers and 1 for inliers.
func (f *IsolationForest) Predict(row []float64) (int, error) {
	score, err := f.DecisionFunction(row)
	if err != nil {
		return 0, err
	}
	if score < 0 {
		return -1, nil
	}
	return 1, nil
}
