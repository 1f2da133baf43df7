package types

// Conditions are the five numeric inputs the threat classifier consumes.
// Field order here is the canonical feature order for the model.
type Conditions struct {
	WaterLevel  float64 `json:"water_level"`
	WindSpeed   float64 `json:"wind_speed"`
	Rainfall    float64 `json:"rainfall"`
	Temperature float64 `json:"temperature"`
	Pressure    float64 `json:"pressure"`
}

// DefaultConditions are the values substituted for fields absent from a
// classify request.
func DefaultConditions() Conditions {
	return Conditions{
		WaterLevel:  0.5,
		WindSpeed:   5.0,
		Rainfall:    0.0,
		Temperature: 25.0,
		Pressure:    1013.0,
	}
}

// Vector returns the features in canonical order:
// water_level, wind_speed, rainfall, temperature, pressure.
func (c Conditions) Vector() []float64 {
	return []float64{c.WaterLevel, c.WindSpeed, c.Rainfall, c.Temperature, c.Pressure}
}

// ConditionsInput is the wire shape of a classify request. Every field is
// optional; nil fields take the documented defaults.
type ConditionsInput struct {
	WaterLevel  *float64 `json:"water_level"`
	WindSpeed   *float64 `json:"wind_speed"`
	Rainfall    *float64 `json:"rainfall"`
	Temperature *float64 `json:"temperature"`
	Pressure    *float64 `json:"pressure"`
}

// WithDefaults resolves the input against the default conditions.
func (c ConditionsInput) WithDefaults() Conditions {
	out := DefaultConditions()
	if c.WaterLevel != nil {
		out.WaterLevel = *c.WaterLevel
	}
	if c.WindSpeed != nil {
		out.WindSpeed = *c.WindSpeed
	}
	if c.Rainfall != nil {
		out.Rainfall = *c.Rainfall
	}
	if c.Temperature != nil {
		out.Temperature = *c.Temperature
	}
	if c.Pressure != nil {
		out.Pressure = *c.Pressure
	}
	return out
}

// LabeledExample is one supervised training row for the threat classifier.
// Absent feature fields decode to zero, matching how sparse labeled uploads
// are interpreted at training time (classify-time defaults do not apply).
type LabeledExample struct {
	Conditions
	Level ThreatLevel `json:"threat_level"`
}

// ClassifierTrainingReport summarizes one classifier training run. Status is
// the resulting lifecycle state: "trained" for a run fed real labeled
// examples, "bootstrapped" when synthetic data was substituted. Accuracy is
// measured on the held-out split.
type ClassifierTrainingReport struct {
	Status          string   `json:"status"`
	Accuracy        float64  `json:"accuracy"`
	TrainingSamples int      `json:"training_samples"`
	TestSamples     int      `json:"test_samples"`
	Features        []string `json:"features"`
}

// CurrentConditions are raw observed values the risk aggregator derives
// auxiliary factors from. Pointer fields distinguish absent from zero: an
// absent reading contributes no factor, a zero reading is a real
// observation.
type CurrentConditions struct {
	Rainfall *float64 `json:"rainfall,omitempty"`
	Wind     *float64 `json:"wind,omitempty"`
}
