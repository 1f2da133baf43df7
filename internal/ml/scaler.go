package ml

import (
	"fmt"
	"math"
)

// StandardScaler centers each feature column to zero mean and unit variance.
// Columns with zero variance scale by 1 so constant features pass through
// centered rather than producing NaNs. Fields are exported for artifact
// serialization; a scaler must only ever be applied alongside the model it
// was co-trained with.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-column mean and population standard deviation.
// All rows must have the same width.
func FitScaler(rows [][]float64) (*StandardScaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("scaler: no rows to fit")
	}
	width := len(rows[0])
	if width == 0 {
		return nil, fmt.Errorf("scaler: rows have no features")
	}

	mean := make([]float64, width)
	std := make([]float64, width)

	for _, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("scaler: ragged input, want width %d got %d", width, len(row))
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(rows))
	for j := range mean {
		mean[j] /= n
	}

	for _, row := range rows {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		if std[j] == 0 {
			std[j] = 1
		}
	}

	return &StandardScaler{Mean: mean, Std: std}, nil
}

// NumFeatures returns the column count the scaler was fitted on.
func (s *StandardScaler) NumFeatures() int { return len(s.Mean) }

// TransformRow scales a single feature vector.
func (s *StandardScaler) TransformRow(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("scaler: want %d features, got %d", len(s.Mean), len(row))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}

// Transform scales a batch of feature vectors.
func (s *StandardScaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}
