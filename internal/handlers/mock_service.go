package handlers

import (
	"context"
	"time"

	"growbox/internal/models"
	"growbox/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockWatering struct {
	settings models.CycleSettings
	status   models.WateringStatus

	updateSettingsErr error
	manualErr         error

	lastSettings     models.CycleSettings
	lastManualOn     bool
	lastManualFor    time.Duration
	manualCalls      int
	updateSettCalls  int
	updateLoopCalls  int
}

func (m *mockWatering) Update(ctx context.Context) { m.updateLoopCalls++ }
func (m *mockWatering) ManualControl(ctx context.Context, on bool, duration time.Duration) error {
	m.manualCalls++
	m.lastManualOn = on
	m.lastManualFor = duration
	return m.manualErr
}
func (m *mockWatering) UpdateSettings(ctx context.Context, cfg models.CycleSettings) error {
	m.updateSettCalls++
	m.lastSettings = cfg
	return m.updateSettingsErr
}
func (m *mockWatering) CycleSettings() models.CycleSettings { return m.settings }
func (m *mockWatering) Status() models.WateringStatus       { return m.status }

type mockEnvironment struct {
	co2Settings models.CO2Settings
	co2Status   models.CO2Status
	climate     models.ClimateStatus

	co2ModeErr  error
	co2SettErr  error
	fanModeErr  error
	acErr       error

	lastCO2Mode  string
	lastFanMode  string
	lastFanOn    int
	lastFanOff   int
	lastACTemp   int
	lastACMode   string
	lastACFan    string
	lastACPower  bool
	acPowerCalls int
}

func (m *mockEnvironment) Update(ctx context.Context, snap models.SensorSnapshot) {}
func (m *mockEnvironment) UpdateFans(ctx context.Context)                         {}
func (m *mockEnvironment) SetCO2Mode(ctx context.Context, mode string) error {
	m.lastCO2Mode = mode
	return m.co2ModeErr
}
func (m *mockEnvironment) UpdateCO2Settings(ctx context.Context, cfg models.CO2Settings) error {
	m.co2Settings = cfg
	return m.co2SettErr
}
func (m *mockEnvironment) CO2Settings() models.CO2Settings { return m.co2Settings }
func (m *mockEnvironment) SetFanMode(ctx context.Context, mode string, onMinutes, offMinutes int) error {
	m.lastFanMode = mode
	m.lastFanOn = onMinutes
	m.lastFanOff = offMinutes
	return m.fanModeErr
}
func (m *mockEnvironment) SetACPower(ctx context.Context, on bool) error {
	m.acPowerCalls++
	m.lastACPower = on
	return m.acErr
}
func (m *mockEnvironment) SetACTemperature(ctx context.Context, temp int) error {
	m.lastACTemp = temp
	return m.acErr
}
func (m *mockEnvironment) SetACMode(ctx context.Context, mode string) error {
	m.lastACMode = mode
	return m.acErr
}
func (m *mockEnvironment) SetACFanSpeed(ctx context.Context, speed string) error {
	m.lastACFan = speed
	return m.acErr
}
func (m *mockEnvironment) Status() (models.CO2Status, models.ClimateStatus) {
	return m.co2Status, m.climate
}

type mockLighting struct {
	schedules []models.LightSchedule
	status    models.LightingStatus

	saveID    int
	saveErr   error
	deleteErr error
	zoneErr   error

	lastSaved   models.LightSchedule
	lastDeleted int
	lastZone    int
	lastZoneOn  bool
	allCalls    int
	lastAllOn   bool
}

func (m *mockLighting) Update(ctx context.Context, now time.Time, force bool) {}
func (m *mockLighting) LightsOn(now time.Time) bool                           { return false }
func (m *mockLighting) Schedules(ctx context.Context) ([]models.LightSchedule, error) {
	return m.schedules, nil
}
func (m *mockLighting) SaveSchedule(ctx context.Context, sched models.LightSchedule) (int, error) {
	m.lastSaved = sched
	return m.saveID, m.saveErr
}
func (m *mockLighting) DeleteSchedule(ctx context.Context, id int) error {
	m.lastDeleted = id
	return m.deleteErr
}
func (m *mockLighting) SetZone(ctx context.Context, zone int, on bool) error {
	m.lastZone = zone
	m.lastZoneOn = on
	return m.zoneErr
}
func (m *mockLighting) SetAll(ctx context.Context, on bool) error {
	m.allCalls++
	m.lastAllOn = on
	return m.zoneErr
}
func (m *mockLighting) Status() models.LightingStatus { return m.status }

type mockDosing struct {
	settings models.DosingSettings
	status   models.DosingStatus

	doseErr   error
	manualErr error
	settErr   error

	lastPump    string
	lastAmount  float64
	lastSeconds float64
	abortCalls  int
	resetCalls  int
}

func (m *mockDosing) Update(ctx context.Context, snap models.SensorSnapshot) {}
func (m *mockDosing) Dose(ctx context.Context, pumpID string, amountML float64) error {
	m.lastPump = pumpID
	m.lastAmount = amountML
	return m.doseErr
}
func (m *mockDosing) ManualDose(ctx context.Context, pumpID string, seconds float64) error {
	m.lastPump = pumpID
	m.lastSeconds = seconds
	return m.manualErr
}
func (m *mockDosing) Abort(ctx context.Context) error {
	m.abortCalls++
	return nil
}
func (m *mockDosing) ResetDailyTotals(ctx context.Context) { m.resetCalls++ }
func (m *mockDosing) UpdateSettings(ctx context.Context, cfg models.DosingSettings) error {
	m.settings = cfg
	return m.settErr
}
func (m *mockDosing) DosingSettings() models.DosingSettings { return m.settings }
func (m *mockDosing) Status() models.DosingStatus           { return m.status }

type mockMonitoring struct {
	status models.SystemStatus
	err    error
}

func (m *mockMonitoring) GetStatus(ctx context.Context) (models.SystemStatus, error) {
	return m.status, m.err
}

type mockEventLog struct {
	resp     []models.Event
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.Event, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
