// Package forecast implements the per-sensor time-series model: a linear
// trend fitted by ordinary least squares, multiplied by hour-of-day,
// day-of-week and month-of-year seasonal indexes, with an additive residual
// band for interval bounds. Seasonality is multiplicative on purpose: flood
// thresholds are absolute water levels, and tidal amplitude scales with the
// trend level rather than adding to it.
package forecast

import (
	"context"
	"math"
	"time"

	"github.com/sajari/regression"

	"tidewatch/internal/features"
	"tidewatch/internal/ml"
	"tidewatch/internal/types"
)

const (
	// MinTrainingPoints is the cleaned-series floor below which training
	// fails with an insufficient-data error.
	MinTrainingPoints = 10

	// MaxHorizonHours caps forecast requests at one week.
	MaxHorizonHours = 168

	// minTrendLevel is the smallest trend value a usable seasonal ratio can
	// be computed against.
	minTrendLevel = 1e-9

	// intervalZ sizes the residual band at roughly 95% coverage.
	intervalZ = 1.96
)

// Options tune the training pass. The zero value trains on the series as-is.
type Options struct {
	// ClampOutliers applies an interquartile fence to the series values
	// before fitting, so a single bad gauge reading cannot skew the trend.
	ClampOutliers bool
	// ClampThreshold is the IQR multiplier; 0 means 3.0.
	ClampThreshold float64
}

// SeasonalModel is one sensor type's fitted forecaster state. All fields are
// exported for registry persistence; a loaded model forecasts identically to
// the one that was saved.
type SeasonalModel struct {
	SensorType     types.SensorType `json:"sensor_type"`
	Origin         time.Time        `json:"origin"`
	TrendIntercept float64          `json:"trend_intercept"`
	TrendSlope     float64          `json:"trend_slope"`
	HourIndex      [24]float64      `json:"hour_index"`
	WeekdayIndex   [7]float64       `json:"weekday_index"`
	MonthIndex     [12]float64      `json:"month_index"`
	ResidualStd    float64          `json:"residual_std"`
	PointCount     int              `json:"point_count"`
	RangeStart     time.Time        `json:"range_start"`
	RangeEnd       time.Time        `json:"range_end"`
	TrainedAt      time.Time        `json:"trained_at"`
}

// Train fits a seasonal model for one sensor type from raw request points.
// The input is cleaned by the feature builder (sorted, deduplicated keeping
// the last occurrence, valueless rows dropped); fewer than MinTrainingPoints
// surviving points is an insufficient-data error. On success the returned
// summary carries hold-out metrics when the series is long enough to spare
// an evaluation tail.
func Train(ctx context.Context, sensorType types.SensorType, raw []types.RawReading, opts Options) (*SeasonalModel, *types.TrainingSummary, error) {
	log := types.LoggerFromContext(ctx)

	series, err := features.BuildSeries(raw)
	if err != nil {
		return nil, nil, err
	}
	if len(series) < MinTrainingPoints {
		return nil, nil, types.NewAppErrorWithDetails(types.ErrCodeDataInsufficient,
			"insufficient data to train forecaster", nil,
			map[string]any{
				"sensor_type": string(sensorType),
				"required":    MinTrainingPoints,
				"actual":      len(series),
			})
	}

	// Hold-out metrics: refit on the leading 80% and score predictions at
	// the held-out tail's timestamps, then fit the final model on all data.
	var metrics *types.EvaluationMetrics
	if holdout := len(series) / 5; holdout >= 4 {
		trainPart := series[:len(series)-holdout]
		testPart := series[len(series)-holdout:]
		if sub, err := fit(sensorType, trainPart, opts); err == nil {
			actual := make([]float64, len(testPart))
			predicted := make([]float64, len(testPart))
			for i, p := range testPart {
				actual[i] = p.Value
				predicted[i] = sub.predictAt(p.Timestamp)
			}
			if m, err := ml.Evaluate(actual, predicted); err == nil {
				metrics = m
			}
		} else {
			log.Warn("holdout evaluation skipped",
				"sensor_type", string(sensorType), "error", err)
		}
	}

	model, err := fit(sensorType, series, opts)
	if err != nil {
		return nil, nil, err
	}

	residuals := make([]float64, len(series))
	for i, p := range series {
		residuals[i] = p.Value - model.predictAt(p.Timestamp)
	}
	log.Info("forecaster trained",
		"sensor_type", string(sensorType),
		"points", model.PointCount,
		"residual_std", model.ResidualStd,
		"residual_lag1_autocorr", features.LagCorrelation(residuals, 1),
	)

	summary := &types.TrainingSummary{
		Status:     "trained",
		PointCount: model.PointCount,
		DateRange: types.DateRange{
			Start: model.RangeStart,
			End:   model.RangeEnd,
		},
		Metrics: metrics,
	}
	return model, summary, nil
}

// fit runs the decomposition on a cleaned series: OLS trend, multiplicative
// seasonal indexes from detrended ratios, residual spread for the band.
func fit(sensorType types.SensorType, series []features.SeriesPoint, opts Options) (*SeasonalModel, error) {
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}
	if opts.ClampOutliers {
		threshold := opts.ClampThreshold
		if threshold == 0 {
			threshold = 3.0
		}
		values = features.ClampOutliers(values, threshold)
	}

	origin := series[0].Timestamp

	var r regression.Regression
	r.SetObserved("value")
	r.SetVar(0, "hours")
	for i, p := range series {
		r.Train(regression.DataPoint(values[i], []float64{p.Timestamp.Sub(origin).Hours()}))
	}
	if err := r.Run(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "trend regression failed", err)
	}
	coeffs := r.GetCoeffs()
	if len(coeffs) < 2 {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "trend regression returned no coefficients", nil)
	}

	model := &SeasonalModel{
		SensorType:     sensorType,
		Origin:         origin,
		TrendIntercept: coeffs[0],
		TrendSlope:     coeffs[1],
		PointCount:     len(series),
		RangeStart:     series[0].Timestamp,
		RangeEnd:       series[len(series)-1].Timestamp,
		TrainedAt:      time.Now().UTC(),
	}

	model.fitSeasonalIndexes(series, values)

	var residuals []float64
	for i, p := range series {
		residuals = append(residuals, values[i]-model.predictAt(p.Timestamp))
	}
	model.ResidualStd = ml.StdDev(residuals)

	return model, nil
}

// fitSeasonalIndexes computes the three multiplicative index families from
// value/trend ratios. Buckets never observed stay at 1, and if fewer than
// half the points sit at a usable trend level (for example a rainfall series
// hovering at zero) all indexes stay at 1 and the model degrades to pure
// trend plus band.
func (m *SeasonalModel) fitSeasonalIndexes(series []features.SeriesPoint, values []float64) {
	for i := range m.HourIndex {
		m.HourIndex[i] = 1
	}
	for i := range m.WeekdayIndex {
		m.WeekdayIndex[i] = 1
	}
	for i := range m.MonthIndex {
		m.MonthIndex[i] = 1
	}

	var (
		hourSum      [24]float64
		hourCount    [24]int
		weekdaySum   [7]float64
		weekdayCount [7]int
		monthSum     [12]float64
		monthCount   [12]int
	)

	usable := 0
	for i, p := range series {
		trend := m.trendAt(p.Timestamp)
		if trend <= minTrendLevel {
			continue
		}
		ratio := values[i] / trend
		if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
			continue
		}
		usable++

		h := p.Timestamp.Hour()
		hourSum[h] += ratio
		hourCount[h]++

		w := int(p.Timestamp.Weekday())
		weekdaySum[w] += ratio
		weekdayCount[w]++

		mo := int(p.Timestamp.Month()) - 1
		monthSum[mo] += ratio
		monthCount[mo]++
	}
	if usable < len(series)/2 {
		return
	}

	normalizeIndexes(m.HourIndex[:], hourSum[:], hourCount[:])
	normalizeIndexes(m.WeekdayIndex[:], weekdaySum[:], weekdayCount[:])
	normalizeIndexes(m.MonthIndex[:], monthSum[:], monthCount[:])
}

// normalizeIndexes sets each observed bucket to its mean ratio, rescaled so
// the observed buckets average to 1; unobserved buckets stay at 1.
func normalizeIndexes(idx, sums []float64, counts []int) {
	total := 0.0
	observed := 0
	for i := range idx {
		if counts[i] == 0 {
			continue
		}
		idx[i] = sums[i] / float64(counts[i])
		total += idx[i]
		observed++
	}
	if observed == 0 || total <= 0 {
		for i := range idx {
			idx[i] = 1
		}
		return
	}
	mean := total / float64(observed)
	for i := range idx {
		if counts[i] > 0 {
			idx[i] /= mean
		}
	}
}

func (m *SeasonalModel) trendAt(t time.Time) float64 {
	return m.TrendIntercept + m.TrendSlope*t.Sub(m.Origin).Hours()
}

// predictAt evaluates the fitted model at one instant, without rounding.
func (m *SeasonalModel) predictAt(t time.Time) float64 {
	seasonal := m.HourIndex[t.Hour()] *
		m.WeekdayIndex[int(t.Weekday())] *
		m.MonthIndex[int(t.Month())-1]
	return m.trendAt(t) * seasonal
}

// Forecast produces exactly horizonHours hourly points after the end of the
// training range, in chronological order. Bounds are the point forecast plus
// and minus the residual band, so lower <= predicted <= upper always holds.
func (m *SeasonalModel) Forecast(horizonHours int) ([]types.ForecastPoint, error) {
	if horizonHours < 1 || horizonHours > MaxHorizonHours {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationHorizonRange,
			"horizon_hours must be between 1 and 168", nil,
			map[string]any{"horizon_hours": horizonHours})
	}

	band := intervalZ * m.ResidualStd
	points := make([]types.ForecastPoint, horizonHours)
	for k := 1; k <= horizonHours; k++ {
		ts := m.RangeEnd.Add(time.Duration(k) * time.Hour)
		predicted := m.predictAt(ts)
		points[k-1] = types.ForecastPoint{
			Timestamp: ts,
			Predicted: ml.Round(predicted, 3),
			Lower:     ml.Round(predicted-band, 3),
			Upper:     ml.Round(predicted+band, 3),
		}
	}
	return points, nil
}
