package classify

import (
	"math/rand"

	"tidewatch/internal/ml"
	"tidewatch/internal/types"
)

const (
	// SamplesPerClass is the synthetic dataset size per threat level.
	SamplesPerClass = 100

	// syntheticSeed fixes the generator so repeated bootstrap trainings
	// produce the same dataset and therefore the same fitted model.
	syntheticSeed = 42
)

// classRanges are the uniform sampling bounds for one threat level, in
// canonical feature order.
type classRanges struct {
	waterLevel  [2]float64
	windSpeed   [2]float64
	rainfall    [2]float64
	temperature [2]float64
	pressure    [2]float64
}

// syntheticRanges encode the domain knowledge the bootstrap rests on:
// adjacent classes deliberately overlap so the fitted model learns soft
// boundaries instead of memorizing clean cutoffs.
var syntheticRanges = map[types.ThreatLevel]classRanges{
	types.ThreatLow: {
		waterLevel:  [2]float64{0.1, 0.7},
		windSpeed:   [2]float64{1, 15},
		rainfall:    [2]float64{0, 10},
		temperature: [2]float64{20, 30},
		pressure:    [2]float64{1010, 1020},
	},
	types.ThreatMedium: {
		waterLevel:  [2]float64{0.6, 1.1},
		windSpeed:   [2]float64{10, 25},
		rainfall:    [2]float64{5, 40},
		temperature: [2]float64{18, 32},
		pressure:    [2]float64{1005, 1015},
	},
	types.ThreatHigh: {
		waterLevel:  [2]float64{1.0, 1.6},
		windSpeed:   [2]float64{20, 35},
		rainfall:    [2]float64{30, 80},
		temperature: [2]float64{15, 35},
		pressure:    [2]float64{995, 1010},
	},
	types.ThreatCritical: {
		waterLevel:  [2]float64{1.5, 3.0},
		windSpeed:   [2]float64{30, 60},
		rainfall:    [2]float64{60, 150},
		temperature: [2]float64{10, 40},
		pressure:    [2]float64{980, 1000},
	},
}

// syntheticExamples generates the deterministic bootstrap dataset: 100
// labeled examples per class in canonical class order. Water level is kept
// at centimeter precision, the other features at one decimal.
func syntheticExamples() []types.LabeledExample {
	rng := rand.New(rand.NewSource(syntheticSeed))
	out := make([]types.LabeledExample, 0, SamplesPerClass*len(types.ThreatLevels))
	for _, level := range types.ThreatLevels {
		r := syntheticRanges[level]
		for i := 0; i < SamplesPerClass; i++ {
			out = append(out, types.LabeledExample{
				Conditions: types.Conditions{
					WaterLevel:  ml.Round(uniform(rng, r.waterLevel), 2),
					WindSpeed:   ml.Round(uniform(rng, r.windSpeed), 1),
					Rainfall:    ml.Round(uniform(rng, r.rainfall), 1),
					Temperature: ml.Round(uniform(rng, r.temperature), 1),
					Pressure:    ml.Round(uniform(rng, r.pressure), 1),
				},
				Level: level,
			})
		}
	}
	return out
}

func uniform(rng *rand.Rand, bounds [2]float64) float64 {
	return bounds[0] + rng.Float64()*(bounds[1]-bounds[0])
}
