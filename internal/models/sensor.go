package models

import "time"

// SensorSnapshot is one merged reading from the sensor endpoint. Fields are
// pointers because a missing or null value means "no data", not zero.
type SensorSnapshot struct {
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	CO2         *float64  `json:"co2,omitempty"`
	PH          *float64  `json:"ph,omitempty"`
	EC          *float64  `json:"ec,omitempty"`
	Stale       bool      `json:"stale"`
	Timestamp   time.Time `json:"timestamp"`
}

// Float returns a pointer for literal values in snapshots and tests.
func Float(v float64) *float64 { return &v }
