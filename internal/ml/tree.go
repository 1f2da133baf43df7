package ml

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
)

// ForestConfig controls the random-forest classifier shape.
type ForestConfig struct {
	NumTrees        int   `json:"num_trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	NumClasses      int   `json:"num_classes"`
	Seed            int64 `json:"seed"`
}

// DefaultForestConfig returns the shape the threat classifier is trained
// with. The seed makes synthetic-bootstrap training reproducible.
func DefaultForestConfig(numClasses int) ForestConfig {
	return ForestConfig{
		NumTrees:        100,
		MaxDepth:        10,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		NumClasses:      numClasses,
		Seed:            42,
	}
}

// treeNode is one node of a CART tree. Leaves have Feature -1 and carry the
// per-class sample counts reaching them, from which class probabilities are
// derived.
type treeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
	Counts    []int     `json:"counts,omitempty"`
}

// RandomForest is a bagged ensemble of Gini-split CART trees. Probabilities
// are the average of per-tree leaf class distributions, so they always sum
// to one.
type RandomForest struct {
	Config      ForestConfig `json:"config"`
	NumFeatures int          `json:"num_features"`
	Trees       []*treeNode  `json:"trees"`
}

// FitRandomForest trains the ensemble. Each tree sees a bootstrap resample
// of the rows and considers a sqrt-sized random feature subset per split.
// Deterministic for a fixed config seed.
func FitRandomForest(rows [][]float64, labels []int, cfg ForestConfig) (*RandomForest, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("random forest: no rows to fit")
	}
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("random forest: %d rows but %d labels", len(rows), len(labels))
	}
	width := len(rows[0])
	if width == 0 {
		return nil, fmt.Errorf("random forest: rows have no features")
	}
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("random forest: ragged input at row %d", i)
		}
	}
	if cfg.NumClasses < 2 {
		return nil, fmt.Errorf("random forest: need at least 2 classes, got %d", cfg.NumClasses)
	}
	for i, y := range labels {
		if y < 0 || y >= cfg.NumClasses {
			return nil, fmt.Errorf("random forest: label %d out of range at row %d", y, i)
		}
	}
	if cfg.NumTrees <= 0 {
		return nil, fmt.Errorf("random forest: invalid config %+v", cfg)
	}

	featuresPerSplit := int(math.Sqrt(float64(width)))
	if featuresPerSplit < 1 {
		featuresPerSplit = 1
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	forest := &RandomForest{
		Config:      cfg,
		NumFeatures: width,
		Trees:       make([]*treeNode, 0, cfg.NumTrees),
	}

	b := treeBuilder{
		rows:             rows,
		labels:           labels,
		cfg:              cfg,
		featuresPerSplit: featuresPerSplit,
		rng:              rng,
	}

	n := len(rows)
	for t := 0; t < cfg.NumTrees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		forest.Trees = append(forest.Trees, b.build(sample, 0))
	}

	return forest, nil
}

type treeBuilder struct {
	rows             [][]float64
	labels           []int
	cfg              ForestConfig
	featuresPerSplit int
	rng              *rand.Rand
}

func (b *treeBuilder) classCounts(idx []int) []int {
	counts := make([]int, b.cfg.NumClasses)
	for _, i := range idx {
		counts[b.labels[i]]++
	}
	return counts
}

// gini returns the Gini impurity of a class count vector over total samples.
func gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		impurity -= p * p
	}
	return impurity
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func (b *treeBuilder) build(idx []int, depth int) *treeNode {
	counts := b.classCounts(idx)
	if depth >= b.cfg.MaxDepth || len(idx) < b.cfg.MinSamplesSplit || isPure(counts) {
		return &treeNode{Feature: -1, Counts: counts}
	}

	feature, threshold, ok := b.bestSplit(idx, counts)
	if !ok {
		return &treeNode{Feature: -1, Counts: counts}
	}

	var left, right []int
	for _, i := range idx {
		if b.rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      b.build(left, depth+1),
		Right:     b.build(right, depth+1),
	}
}

// bestSplit scans a random feature subset for the threshold with the lowest
// weighted Gini impurity, honoring the minimum leaf size. Returns ok=false
// when no candidate improves on the unsplit node.
func (b *treeBuilder) bestSplit(idx []int, parentCounts []int) (int, float64, bool) {
	total := len(idx)
	parentImpurity := gini(parentCounts, total)

	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := parentImpurity

	width := len(b.rows[0])
	features := b.rng.Perm(width)[:b.featuresPerSplit]
	slices.Sort(features)

	sorted := make([]int, len(idx))
	leftCounts := make([]int, b.cfg.NumClasses)

	for _, f := range features {
		copy(sorted, idx)
		slices.SortFunc(sorted, func(a, c int) int {
			va, vc := b.rows[a][f], b.rows[c][f]
			switch {
			case va < vc:
				return -1
			case va > vc:
				return 1
			default:
				return 0
			}
		})

		for i := range leftCounts {
			leftCounts[i] = 0
		}

		// Sweep left to right; a split after position i puts i+1 samples on
		// the left. Only boundaries between distinct values are candidates.
		for i := 0; i < total-1; i++ {
			leftCounts[b.labels[sorted[i]]]++

			v, next := b.rows[sorted[i]][f], b.rows[sorted[i+1]][f]
			if v == next {
				continue
			}
			nLeft := i + 1
			nRight := total - nLeft
			if nLeft < b.cfg.MinSamplesLeaf || nRight < b.cfg.MinSamplesLeaf {
				continue
			}

			leftImp := gini(leftCounts, nLeft)
			rightImp := giniComplement(parentCounts, leftCounts, nRight)
			weighted := (float64(nLeft)*leftImp + float64(nRight)*rightImp) / float64(total)

			if weighted < bestImpurity {
				bestImpurity = weighted
				bestFeature = f
				bestThreshold = v + (next-v)/2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

// giniComplement computes the impurity of the right partition from the
// parent and left count vectors without materializing it.
func giniComplement(parent, left []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for i := range parent {
		p := float64(parent[i]-left[i]) / float64(total)
		impurity -= p * p
	}
	return impurity
}

// PredictProba returns the class probability distribution for one row,
// averaged over all trees.
func (rf *RandomForest) PredictProba(row []float64) ([]float64, error) {
	if len(row) != rf.NumFeatures {
		return nil, fmt.Errorf("random forest: expected %d features, got %d", rf.NumFeatures, len(row))
	}
	probs := make([]float64, rf.Config.NumClasses)
	for _, tree := range rf.Trees {
		leaf := tree
		for leaf.Feature >= 0 {
			if row[leaf.Feature] <= leaf.Threshold {
				leaf = leaf.Left
			} else {
				leaf = leaf.Right
			}
		}
		leafTotal := 0
		for _, c := range leaf.Counts {
			leafTotal += c
		}
		if leafTotal == 0 {
			continue
		}
		for i, c := range leaf.Counts {
			probs[i] += float64(c) / float64(leafTotal)
		}
	}
	for i := range probs {
		probs[i] /= float64(len(rf.Trees))
	}
	return probs, nil
}

// Predict returns the most probable class index for one row. Ties resolve
// to the lowest index.
func (rf *RandomForest) Predict(row []float64) (int, error) {
	probs, err := rf.PredictProba(row)
	if err != nil {
		return 0, err
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return best, nil
}
