package models

// Watering cycle modes derived from the lighting schedule.
const (
	MinPumpOnSeconds = 15
)

// CycleSettings configures the watering cycle controller.
type CycleSettings struct {
	Enabled           bool    `json:"enabled"`
	DayOnSeconds      int     `json:"day_on_seconds"`
	DayOffSeconds     int     `json:"day_off_seconds"`
	NightOnSeconds    int     `json:"night_on_seconds"`
	NightOffSeconds   int     `json:"night_off_seconds"`
	ActiveStartHour   int     `json:"active_start_hour"`
	ActiveEndHour     int     `json:"active_end_hour"`
	DailyLimitMinutes float64 `json:"daily_limit_minutes"`
}

// Normalize clamps on-times below the hardware minimum. A zero or negative
// off-time means continuous watering while the window is active, so it is
// left untouched.
func (s *CycleSettings) Normalize() {
	if s.DayOnSeconds > 0 && s.DayOnSeconds < MinPumpOnSeconds {
		s.DayOnSeconds = MinPumpOnSeconds
	}
	if s.NightOnSeconds > 0 && s.NightOnSeconds < MinPumpOnSeconds {
		s.NightOnSeconds = MinPumpOnSeconds
	}
	if s.DailyLimitMinutes < 0 {
		s.DailyLimitMinutes = 0
	}
}

// CO2 control modes.
const (
	CO2ModeAuto      = "auto"
	CO2ModeManualOn  = "manual_on"
	CO2ModeManualOff = "manual_off"
)

// CO2Settings configures the CO2 threshold controller.
type CO2Settings struct {
	Mode           string  `json:"mode"`
	DayTargetPPM   float64 `json:"day_target_ppm"`
	NightTargetPPM float64 `json:"night_target_ppm"`
	TolerancePPM   float64 `json:"tolerance_ppm"`
	DayStartHour   int     `json:"day_start_hour"`
	DayEndHour     int     `json:"day_end_hour"`
}

// Fan bank modes.
const (
	FanModeOff          = "off"
	FanModeContinuous   = "continuous"
	FanModeIntermittent = "intermittent"
)

// LightSchedule is one on/off window applied to a set of zones.
// Off before on means the window wraps past midnight.
type LightSchedule struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	OnHour        int    `json:"on_hour"`
	OnMinute      int    `json:"on_minute"`
	OffHour       int    `json:"off_hour"`
	OffMinute     int    `json:"off_minute"`
	Enabled       bool   `json:"enabled"`
	AffectedZones []int  `json:"affected_zones"`
}

// DosingSettings configures the nutrient/pH correction policy.
type DosingSettings struct {
	ECTarget    float64 `json:"ec_target"`
	ECTolerance float64 `json:"ec_tolerance"`
	PHTarget    float64 `json:"ph_target"`
	PHTolerance float64 `json:"ph_tolerance"`
	AutoEC      bool    `json:"auto_ec"`
	AutoPH      bool    `json:"auto_ph"`
}
