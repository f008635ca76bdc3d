package service

import (
	"context"
	"time"

	"growbox/internal/hardware"
	"growbox/internal/logger"
	"growbox/internal/models"
	"growbox/internal/notify"
	"growbox/internal/repository"
)

// Watering exposes the cycle controller.
type Watering interface {
	Update(ctx context.Context)
	ManualControl(ctx context.Context, on bool, duration time.Duration) error
	UpdateSettings(ctx context.Context, cfg models.CycleSettings) error
	CycleSettings() models.CycleSettings
	Status() models.WateringStatus
}

// Environment exposes CO2 control and the climate equipment.
type Environment interface {
	Update(ctx context.Context, snap models.SensorSnapshot)
	UpdateFans(ctx context.Context)
	SetCO2Mode(ctx context.Context, mode string) error
	UpdateCO2Settings(ctx context.Context, cfg models.CO2Settings) error
	CO2Settings() models.CO2Settings
	SetFanMode(ctx context.Context, mode string, onMinutes, offMinutes int) error
	SetACPower(ctx context.Context, on bool) error
	SetACTemperature(ctx context.Context, temp int) error
	SetACMode(ctx context.Context, mode string) error
	SetACFanSpeed(ctx context.Context, speed string) error
	Status() (models.CO2Status, models.ClimateStatus)
}

// Lighting exposes the schedule engine and manual zone control.
type Lighting interface {
	Update(ctx context.Context, now time.Time, force bool)
	LightsOn(now time.Time) bool
	Schedules(ctx context.Context) ([]models.LightSchedule, error)
	SaveSchedule(ctx context.Context, sched models.LightSchedule) (int, error)
	DeleteSchedule(ctx context.Context, id int) error
	SetZone(ctx context.Context, zone int, on bool) error
	SetAll(ctx context.Context, on bool) error
	Status() models.LightingStatus
}

// Dosing exposes the nutrient/pH controller.
type Dosing interface {
	Update(ctx context.Context, snap models.SensorSnapshot)
	Dose(ctx context.Context, pumpID string, amountML float64) error
	ManualDose(ctx context.Context, pumpID string, seconds float64) error
	Abort(ctx context.Context) error
	ResetDailyTotals(ctx context.Context)
	UpdateSettings(ctx context.Context, cfg models.DosingSettings) error
	DosingSettings() models.DosingSettings
	Status() models.DosingStatus
}

// Monitoring exposes the merged read-only snapshot.
type Monitoring interface {
	GetStatus(ctx context.Context) (models.SystemStatus, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.Event, error)
}

// Scheduler runs the background control loop.
// Stop via context cancellation in main() for graceful shutdown.
type Scheduler interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates all sub-services.
type Service struct {
	Watering
	Environment
	Lighting
	Dosing
	Monitoring
	EventLog
	Scheduler
}

// Deps carries everything NewService needs to wire the controllers.
type Deps struct {
	Repos    *repository.Repository
	Gateway  hardware.Gateway
	Relay    *hardware.ModbusRelay
	Arduino  *hardware.ArduinoClient
	IR       *hardware.IRBridge
	Notifier notify.Notifier
	Log      *logger.Logger
}

// NewService wires the repository and hardware layers into the concrete
// services. Lighting is built first: watering and environment key their
// day/night decisions off its schedule.
func NewService(d Deps) *Service {
	lighting := NewLightingService(d.Gateway, d.Repos.Schedules, d.Repos.Events, d.Notifier, d.Log)
	watering := NewWateringService(d.Gateway, d.Arduino, d.Repos.Settings, d.Repos.Events, d.Notifier, lighting, d.Log)
	environment := NewEnvironmentService(d.Arduino, d.Gateway, d.IR, d.Repos.Settings, d.Repos.Events, d.Notifier, lighting, d.Log)
	dosing := NewDosingService(d.Arduino, d.Repos.Settings, d.Repos.Events, d.Notifier, d.Log)

	return &Service{
		Watering:    watering,
		Environment: environment,
		Lighting:    lighting,
		Dosing:      dosing,
		Monitoring:  NewMonitoringService(d.Arduino, watering, environment, lighting, dosing, d.Relay, d.Arduino.Breaker(), d.IR),
		EventLog:    NewEventLogService(d.Repos.Events),
		Scheduler:   NewSchedulerService(d.Arduino, watering, environment, lighting, dosing, d.Log),
	}
}
