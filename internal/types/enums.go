package types

// SensorType identifies the physical quantity a reading measures.
type SensorType string

const (
	SensorWaterLevel SensorType = "water_level"
	SensorWind       SensorType = "wind"
	SensorRainfall   SensorType = "rainfall"
)

// AllSensorTypes lists every sensor type a forecaster is maintained for,
// in canonical order.
var AllSensorTypes = []SensorType{SensorWaterLevel, SensorWind, SensorRainfall}

// Code returns the fixed integer encoding used as a model feature.
// Unknown sensor types return ok=false; callers must drop the row rather
// than encode it as an existing category.
func (s SensorType) Code() (int, bool) {
	switch s {
	case SensorWaterLevel:
		return 0, true
	case SensorWind:
		return 1, true
	case SensorRainfall:
		return 2, true
	default:
		return 0, false
	}
}

// Valid reports whether s is a known sensor type.
func (s SensorType) Valid() bool {
	_, ok := s.Code()
	return ok
}

// RiskLevel is the overall severity tier of a flood risk or aggregated
// assessment. "unknown" is reserved for assessments computed from an empty
// forecast.
type RiskLevel string

const (
	RiskUnknown  RiskLevel = "unknown"
	RiskMinimal  RiskLevel = "minimal"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskRank orders levels for monotonicity checks. "unknown" ranks lowest.
var riskRank = map[RiskLevel]int{
	RiskUnknown:  0,
	RiskMinimal:  1,
	RiskLow:      2,
	RiskMedium:   3,
	RiskHigh:     4,
	RiskCritical: 5,
}

// Rank returns the ordinal position of the level, for comparisons only.
// The aggregation base score is a separate fixed map owned by the risk package.
func (l RiskLevel) Rank() int { return riskRank[l] }

// ThreatLevel is the class label produced by the threat classifier.
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// ThreatLevels lists the classifier classes in canonical order. Class index
// in this slice is the integer label used internally by the model, so the
// order must never change once artifacts have been persisted.
var ThreatLevels = []ThreatLevel{ThreatLow, ThreatMedium, ThreatHigh, ThreatCritical}

// Index returns the integer class label for a threat level. Unknown levels
// return ok=false; training rows carrying them must be rejected, not
// coerced onto an existing class.
func (l ThreatLevel) Index() (int, bool) {
	for i, known := range ThreatLevels {
		if l == known {
			return i, true
		}
	}
	return 0, false
}

// Severity grades an anomaly record or an auxiliary risk factor.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ArtifactKind identifies a persisted model artifact in the registry.
type ArtifactKind string

const (
	ArtifactForecasterWaterLevel ArtifactKind = "forecaster_water_level"
	ArtifactForecasterWind       ArtifactKind = "forecaster_wind"
	ArtifactForecasterRainfall   ArtifactKind = "forecaster_rainfall"
	ArtifactAnomalyScaler        ArtifactKind = "scaler"
	ArtifactAnomalyDetector      ArtifactKind = "anomaly_detector"
	ArtifactClassifier           ArtifactKind = "classifier"
	ArtifactClassifierScaler     ArtifactKind = "classifier_scaler"
)

// AllArtifactKinds lists every artifact kind the registry manages.
var AllArtifactKinds = []ArtifactKind{
	ArtifactForecasterWaterLevel,
	ArtifactForecasterWind,
	ArtifactForecasterRainfall,
	ArtifactAnomalyScaler,
	ArtifactAnomalyDetector,
	ArtifactClassifier,
	ArtifactClassifierScaler,
}

// ForecasterArtifact maps a sensor type to its forecaster artifact kind.
func ForecasterArtifact(s SensorType) (ArtifactKind, bool) {
	switch s {
	case SensorWaterLevel:
		return ArtifactForecasterWaterLevel, true
	case SensorWind:
		return ArtifactForecasterWind, true
	case SensorRainfall:
		return ArtifactForecasterRainfall, true
	default:
		return "", false
	}
}

// Valid reports whether k is a known artifact kind.
func (k ArtifactKind) Valid() bool {
	for _, known := range AllArtifactKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ClassifierState is the lifecycle state of the threat classifier.
// Classify on an untrained classifier bootstraps it from synthetic data;
// only an explicit train call with real labeled examples reaches "trained".
type ClassifierState string

const (
	ClassifierUntrained    ClassifierState = "untrained"
	ClassifierBootstrapped ClassifierState = "bootstrapped"
	ClassifierTrained      ClassifierState = "trained"
)

// ModelConfidence is the coarse availability grade reported with forecasts.
type ModelConfidence string

const (
	ModelConfidenceHigh ModelConfidence = "high"
	ModelConfidenceLow  ModelConfidence = "low"
)
