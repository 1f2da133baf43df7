package features

import (
	"tidewatch/internal/ml"
)

// windowAt returns the trailing window ending at position i, expanding
// during warm-up so every position has a defined statistic.
func windowAt(values []float64, window, i int) []float64 {
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	return values[start : i+1]
}

// RollingMean returns the trailing-window mean at each position.
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		out[i] = ml.Mean(windowAt(values, window, i))
	}
	return out
}

// RollingStd returns the trailing-window population standard deviation at
// each position.
func RollingStd(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		out[i] = ml.StdDev(windowAt(values, window, i))
	}
	return out
}

// RollingMin returns the trailing-window minimum at each position.
func RollingMin(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		min, _ := ml.MinMax(windowAt(values, window, i))
		out[i] = min
	}
	return out
}

// RollingMax returns the trailing-window maximum at each position.
func RollingMax(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		_, max := ml.MinMax(windowAt(values, window, i))
		out[i] = max
	}
	return out
}

// LagCorrelation returns the Pearson autocorrelation of the series at the
// given lag, or 0 when the series is too short or degenerate. The forecaster
// logs this over training residuals as an underfit signal.
func LagCorrelation(values []float64, lag int) float64 {
	if lag <= 0 || len(values) <= lag+1 {
		return 0
	}
	return ml.Correlation(values[lag:], values[:len(values)-lag])
}
