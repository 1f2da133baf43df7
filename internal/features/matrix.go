package features

import (
	"slices"

	"tidewatch/internal/types"
)

// DetectionRow pairs one validated reading with its derived feature vector.
type DetectionRow struct {
	Reading  types.SensorReading
	Features []float64
}

// BuildDetectionRows derives the anomaly feature matrix from raw readings.
// Rows with an unparseable or missing timestamp, a missing value, or a
// sensor type that has no integer encoding are excluded rather than failing
// the batch: an unknown type must never be conflated with a real category.
func BuildDetectionRows(raw []types.RawReading) []DetectionRow {
	rows := make([]DetectionRow, 0, len(raw))
	for _, p := range raw {
		if p.Timestamp == "" || p.Value == nil {
			continue
		}
		sensorType := types.SensorType(p.SensorType)
		if _, ok := sensorType.Code(); !ok {
			continue
		}
		ts, err := ParseTimestamp(p.Timestamp)
		if err != nil {
			continue
		}
		reading := types.SensorReading{
			SensorType: sensorType,
			Timestamp:  ts,
			Value:      *p.Value,
			Location:   p.Location,
		}
		rows = append(rows, DetectionRow{
			Reading:  reading,
			Features: DetectionFeatures(reading),
		})
	}
	return rows
}

// PoolReadings flattens a train request's sensor_type → points map into one
// combined raw batch, stamping each point with its map key. Sensor types are
// visited in sorted order so identical requests pool identical row orders;
// downstream model fitting samples rows by index and must stay reproducible.
func PoolReadings(bySensor map[string][]types.RawReading) []types.RawReading {
	sensorTypes := make([]string, 0, len(bySensor))
	for sensorType := range bySensor {
		sensorTypes = append(sensorTypes, sensorType)
	}
	slices.Sort(sensorTypes)

	var pooled []types.RawReading
	for _, sensorType := range sensorTypes {
		for _, p := range bySensor[sensorType] {
			p.SensorType = sensorType
			pooled = append(pooled, p)
		}
	}
	return pooled
}

// Matrix extracts just the feature vectors from detection rows, in order.
func Matrix(rows []DetectionRow) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Features
	}
	return out
}
