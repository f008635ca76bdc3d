package models

import "time"

// WateringStatus reports the cycle controller's runtime state.
type WateringStatus struct {
	PumpOn            bool          `json:"pump_on"`
	ManualMode        bool          `json:"manual_mode"`
	ManualUntil       time.Time     `json:"manual_until,omitempty"`
	DailyRunMinutes   float64       `json:"daily_run_minutes"`
	EmergencyShutdown bool          `json:"emergency_shutdown"`
	LastStateChange   time.Time     `json:"last_state_change"`
	Settings          CycleSettings `json:"settings"`
}

// CO2Status reports the threshold controller's runtime state.
type CO2Status struct {
	ValveOpen  bool      `json:"valve_open"`
	Mode       string    `json:"mode"`
	CurrentPPM *float64  `json:"current_ppm,omitempty"`
	TargetPPM  float64   `json:"target_ppm"`
	Daytime    bool      `json:"daytime"`
	LastUpdate time.Time `json:"last_update"`
}

// ClimateStatus reports fan bank and AC state.
type ClimateStatus struct {
	FanMode      string  `json:"fan_mode"`
	FansOn       bool    `json:"fans_on"`
	ACOn         bool    `json:"ac_on"`
	ACTemp       int     `json:"ac_temp"`
	ACMode       string  `json:"ac_mode"`
	ACFanSpeed   string  `json:"ac_fan_speed"`
	TempSetpoint float64 `json:"temp_setpoint"`
}

// LightingStatus reports per-zone relay state and the schedule verdict.
type LightingStatus struct {
	ZoneStates  map[int]bool `json:"zone_states"`
	ScheduledOn bool         `json:"scheduled_on"`
	Schedules   int          `json:"schedules"`
}

// DosingPump is runtime bookkeeping for one peristaltic pump.
type DosingPump struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DailyTotalML float64   `json:"daily_total_ml"`
	LastDose     time.Time `json:"last_dose,omitempty"`
}

// DosingStatus reports the dosing controller's runtime state.
type DosingStatus struct {
	Dosing        bool                  `json:"dosing"`
	ActivePump    string                `json:"active_pump,omitempty"`
	CooldownUntil time.Time             `json:"cooldown_until,omitempty"`
	Pumps         map[string]DosingPump `json:"pumps"`
	Settings      DosingSettings        `json:"settings"`
}

// HardwareStatus reports link health of the external devices.
type HardwareStatus struct {
	RelayConnected  bool `json:"relay_connected"`
	RelaySimulated  bool `json:"relay_simulated"`
	SensorLinkOpen  bool `json:"sensor_link_open"`
	SensorFailures  int  `json:"sensor_failures"`
	IRBridgeReached bool `json:"ir_bridge_reached"`
}

// SystemStatus is the merged snapshot served by /status and the websocket
// stream. It is always constructible, hardware down or not.
type SystemStatus struct {
	Sensors   SensorSnapshot `json:"sensors"`
	Watering  WateringStatus `json:"watering"`
	CO2       CO2Status      `json:"co2"`
	Climate   ClimateStatus  `json:"climate"`
	Lighting  LightingStatus `json:"lighting"`
	Dosing    DosingStatus   `json:"dosing"`
	Hardware  HardwareStatus `json:"hardware"`
	Timestamp time.Time      `json:"timestamp"`
}
