package ml

import (
	"fmt"
	"math"

	"tidewatch/internal/types"
)

// Accuracy returns the fraction of matching prediction/label pairs.
func Accuracy(actual, predicted []int) (float64, error) {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return 0, fmt.Errorf("accuracy: mismatched inputs (%d actual, %d predicted)", len(actual), len(predicted))
	}
	hits := 0
	for i := range actual {
		if actual[i] == predicted[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(actual)), nil
}

// Evaluate computes hold-out regression metrics for a forecast against
// observed values. Percentage errors skip pairs their denominator would
// zero out; degenerate inputs yield zero rather than NaN so the metrics
// stay JSON-safe.
func Evaluate(actual, predicted []float64) (*types.EvaluationMetrics, error) {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return nil, fmt.Errorf("evaluate: mismatched inputs (%d actual, %d predicted)", len(actual), len(predicted))
	}

	n := float64(len(actual))
	var sumSq, sumAbs float64
	for i := range actual {
		d := actual[i] - predicted[i]
		sumSq += d * d
		sumAbs += math.Abs(d)
	}

	meanActual := Mean(actual)
	var totalVar float64
	for _, v := range actual {
		d := v - meanActual
		totalVar += d * d
	}
	r2 := 0.0
	if totalVar > 0 {
		r2 = 1 - sumSq/totalVar
	}

	var mape float64
	mapeCount := 0
	for i := range actual {
		if actual[i] == 0 {
			continue
		}
		mape += math.Abs((actual[i] - predicted[i]) / actual[i])
		mapeCount++
	}
	if mapeCount > 0 {
		mape = mape / float64(mapeCount) * 100
	}

	var smape float64
	smapeCount := 0
	for i := range actual {
		denom := (math.Abs(actual[i]) + math.Abs(predicted[i])) / 2
		if denom == 0 {
			continue
		}
		smape += math.Abs(actual[i]-predicted[i]) / denom
		smapeCount++
	}
	if smapeCount > 0 {
		smape = smape / float64(smapeCount) * 100
	}

	return &types.EvaluationMetrics{
		RMSE:        Round(math.Sqrt(sumSq/n), 4),
		MAE:         Round(sumAbs/n, 4),
		R2:          Round(r2, 4),
		MAPE:        Round(mape, 2),
		SMAPE:       Round(smape, 2),
		Correlation: Round(Correlation(actual, predicted), 4),
		SampleCount: len(actual),
	}, nil
}

// Correlation is the Pearson coefficient of two equal-length series, zero
// when either side has no variance.
func Correlation(x, y []float64) float64 {
	n := len(x)
	if n < 2 {
		return 0
	}
	mx, my := Mean(x), Mean(y)
	var cov, vx, vy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}
