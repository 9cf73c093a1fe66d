package models

import "time"

// Observation is a single wind-direction reading fetched from the EDR API.
// Direction is a compass bearing in degrees [0, 360), the direction the wind
// blows FROM. Direction and MeasuredAt are either both set or both nil; both
// nil means no usable sample existed in the lookback window.
type Observation struct {
	Direction   *float64   `json:"direction,omitempty"`
	MeasuredAt  *time.Time `json:"measuredAt,omitempty"`
	RetrievedAt time.Time  `json:"retrievedAt"`
}

// HasReading reports whether the observation carries a usable sample.
func (o Observation) HasReading() bool {
	return o.Direction != nil && o.MeasuredAt != nil
}

// StationStatus is the evaluated state for one station: the latest
// observation plus the mask decision derived from it. The decision is
// recomputed on every evaluation and never stored.
type StationStatus struct {
	StationID    string      `json:"stationId"`
	StationName  string      `json:"stationName"`
	Observation  Observation `json:"observation"`
	MaskRequired bool        `json:"maskRequired"`
	MinDegrees   float64     `json:"minDegrees"`
	MaxDegrees   float64     `json:"maxDegrees"`
}
