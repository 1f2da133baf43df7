package types

import (
	"time"
)

// SensorReading is a single validated observation from a coastal sensor.
// Immutable once recorded. Duplicate (sensor_type, timestamp) pairs are
// deduplicated keeping the last occurrence, both in the store and in the
// feature builder.
type SensorReading struct {
	SensorType SensorType `json:"sensor_type" db:"sensor_type"`
	Timestamp  time.Time  `json:"timestamp" db:"ts"`
	Value      float64    `json:"value" db:"value"`
	Location   string     `json:"location,omitempty" db:"location"`
}

// Raw converts a stored reading back to its wire shape, for feeding stored
// history into training.
func (s SensorReading) Raw() RawReading {
	v := s.Value
	return RawReading{
		Timestamp:  s.Timestamp.UTC().Format(time.RFC3339),
		SensorType: string(s.SensorType),
		Value:      &v,
		Location:   s.Location,
	}
}

// RawReading is the wire shape of a reading before validation. Pointer
// fields distinguish "absent" from zero so the feature builder can report
// the missing field by name.
type RawReading struct {
	Timestamp  string   `json:"timestamp"`
	SensorType string   `json:"sensor_type,omitempty"`
	Value      *float64 `json:"value"`
	Location   string   `json:"location,omitempty"`
}

// AnomalyRecord flags one reading scored as an outlier. Severity is high
// iff the anomaly score is below -0.5, medium otherwise.
type AnomalyRecord struct {
	Timestamp    time.Time  `json:"timestamp"`
	SensorType   SensorType `json:"sensor_type"`
	Value        float64    `json:"value"`
	AnomalyScore float64    `json:"anomaly_score"`
	Severity     Severity   `json:"severity"`
	Location     string     `json:"location"`
	Description  string     `json:"description"`
}

// ThreatClassification is the classifier's verdict for one set of conditions.
// Probabilities cover every class and sum to 1. Explanation is an ordered
// list of human-readable rules re-evaluated against the input features,
// independent of the model's internal decision path.
type ThreatClassification struct {
	PredictedLevel ThreatLevel             `json:"predicted_level"`
	Confidence     float64                 `json:"confidence"`
	Probabilities  map[ThreatLevel]float64 `json:"probabilities"`
	InputFeatures  Conditions              `json:"input_features"`
	Explanation    []string                `json:"explanation"`
}

// RiskFactor is an auxiliary contributor to the aggregated assessment,
// derived from raw current conditions rather than from any model.
type RiskFactor struct {
	Factor      string   `json:"factor"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// RiskAssessment is the final aggregated verdict. Derived, never persisted;
// recomputed per request.
type RiskAssessment struct {
	Level               RiskLevel    `json:"level"`
	Score               int          `json:"score"`
	Confidence          float64      `json:"confidence"`
	ContributingFactors []RiskFactor `json:"contributing_factors"`
	Recommendations     []string     `json:"recommendations"`
}

// ModelArtifact is a persisted fitted state, addressable by kind and
// verifiable by content hash. Owned exclusively by the model registry:
// created on successful training, overwritten atomically on retrain,
// never mutated in place.
type ModelArtifact struct {
	Kind        ArtifactKind `json:"kind"`
	FittedState []byte       `json:"-"`
	CreatedAt   time.Time    `json:"created_at"`
	ContentHash string       `json:"content_hash"`
	SizeBytes   int64        `json:"size_bytes"`
}

// ArtifactInfo is the metadata view of a stored artifact, without its payload.
type ArtifactInfo struct {
	Kind        ArtifactKind `json:"kind"`
	CreatedAt   time.Time    `json:"created_at"`
	ContentHash string       `json:"content_hash"`
	SizeBytes   int64        `json:"size_bytes"`
}

// ModelStatus describes one artifact kind's availability for the status API.
type ModelStatus struct {
	Kind      ArtifactKind `json:"kind"`
	Available bool         `json:"available"`
	CreatedAt *time.Time   `json:"created_at,omitempty"`
	Hash      string       `json:"content_hash,omitempty"`
}

// ReadingStats summarizes stored readings for one sensor type. The recent_*
// fields are trailing rolling-window statistics over the newest readings.
type ReadingStats struct {
	SensorType SensorType `json:"sensor_type"`
	Count      int        `json:"count"`
	Mean       float64    `json:"mean"`
	StdDev     float64    `json:"std_dev"`
	Min        float64    `json:"min"`
	Max        float64    `json:"max"`
	RecentMean float64    `json:"recent_mean"`
	RecentStd  float64    `json:"recent_std"`
	RecentMin  float64    `json:"recent_min"`
	RecentMax  float64    `json:"recent_max"`
	First      time.Time  `json:"first"`
	Last       time.Time  `json:"last"`
}
