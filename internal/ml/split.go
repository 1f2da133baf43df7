package ml

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
)

// StratifiedSplit partitions row indexes into train and test sets while
// preserving the per-class label proportions. Classes are processed in
// ascending label order with a single seeded source, so the same inputs
// always yield the same split.
func StratifiedSplit(labels []int, testFraction float64, seed int64) (train, test []int, err error) {
	if len(labels) == 0 {
		return nil, nil, fmt.Errorf("stratified split: no labels")
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("stratified split: test fraction %v out of (0,1)", testFraction)
	}

	byClass := make(map[int][]int)
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	classes := make([]int, 0, len(byClass))
	for y := range byClass {
		classes = append(classes, y)
	}
	slices.Sort(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, y := range classes {
		idx := byClass[y]
		rng.Shuffle(len(idx), func(a, b int) {
			idx[a], idx[b] = idx[b], idx[a]
		})

		nTest := int(math.Round(float64(len(idx)) * testFraction))
		if nTest >= len(idx) {
			nTest = len(idx) - 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}

	if len(train) == 0 {
		return nil, nil, fmt.Errorf("stratified split: empty train partition")
	}
	return train, test, nil
}

// Subset gathers the rows and labels at the given indexes.
func Subset(rows [][]float64, labels []int, idx []int) ([][]float64, []int) {
	outRows := make([][]float64, len(idx))
	outLabels := make([]int, len(idx))
	for i, j := range idx {
		outRows[i] = rows[j]
		outLabels[i] = labels[j]
	}
	return outRows, outLabels
}
