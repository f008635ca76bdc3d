package models

import "time"

// Event types appended to the log.
const (
	EventWatering  = "WATERING"
	EventCO2       = "CO2"
	EventLighting  = "LIGHTING"
	EventDosing    = "DOSING"
	EventEnvEquip  = "ENVIRONMENT"
	EventEmergency = "EMERGENCY"
	EventError     = "ERROR"
	EventSystem    = "SYSTEM"
)

// Event is a single log entry.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
