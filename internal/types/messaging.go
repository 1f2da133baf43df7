package types

// ReadingMessage is the transport envelope for one raw sensor observation
// on the ingest topic. Produced by the gauge-feed poller and by field
// gateways; consumed by the ingest worker. JSON tags use snake_case to
// match the upstream publishers.
type ReadingMessage struct {
	SensorType string   `json:"sensor_type"`
	Timestamp  string   `json:"timestamp"`
	Value      *float64 `json:"value"`
	Location   string   `json:"location,omitempty"`
	Station    string   `json:"station,omitempty"`

	// IngestedAt is stamped by the producer for end-to-end lag tracking.
	IngestedAt string `json:"ingested_at,omitempty"`
}

// Raw converts the message to the validation shape shared with the HTTP
// boundary. Station is preferred over Location when both are set.
func (m ReadingMessage) Raw() RawReading {
	loc := m.Location
	if m.Station != "" {
		loc = m.Station
	}
	return RawReading{
		Timestamp:  m.Timestamp,
		SensorType: m.SensorType,
		Value:      m.Value,
		Location:   loc,
	}
}
