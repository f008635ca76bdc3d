package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"growbox/internal/hardware"
	"growbox/internal/logger"
	"growbox/internal/models"
	"growbox/internal/notify"
	"growbox/internal/repository"
)

// CO2 valve, AC and fan bank wiring.
var (
	co2Channels = []int{1, 2}
	fanChannels = []int{17, 18, 19, 20, 21, 22, 23, 24}
)

const (
	acChannel = 15

	co2UpdateInterval = 15 * time.Second
	emergencyBand     = 3 // multiples of tolerance that bypass the throttle
)

var (
	errInvalidCO2Mode = errors.New("invalid co2 mode: auto, manual_on or manual_off")
	errInvalidFanMode = errors.New("invalid fan mode: off, continuous or intermittent")
	errInvalidACMode  = errors.New("invalid ac mode: auto, cool, heat, dry or fan")
	errInvalidACFan   = errors.New("invalid ac fan speed: auto, low, medium or high")
)

func defaultCO2Settings() models.CO2Settings {
	return models.CO2Settings{
		Mode:           models.CO2ModeAuto,
		DayTargetPPM:   1200,
		NightTargetPPM: 800,
		TolerancePPM:   25,
		DayStartHour:   6,
		DayEndHour:     22,
	}
}

// valveDriver commands the sensor endpoint's relay outputs (CO2 valve).
type valveDriver interface {
	SetRelay(ctx context.Context, channel int, on bool) error
}

// acRemote is the IR side of the AC.
type acRemote interface {
	SetACPower(ctx context.Context, on bool) error
	SetACTemperature(ctx context.Context, temp int) error
	SetACMode(ctx context.Context, mode string) error
	SetACFanSpeed(ctx context.Context, speed string) error
}

// EnvironmentService runs CO2 bang-bang control and the climate
// equipment (circulation fan bank, AC).
//
// CO2 state is committed pessimistically: the valve state only changes
// in the controller's view once at least one hardware channel took the
// command.
type EnvironmentService struct {
	valve    valveDriver
	gateway  hardware.Gateway
	ir       acRemote
	settings repository.SettingsRepo
	events   repository.EventRepo
	notifier notify.Notifier
	daynight dayNight
	log      *logger.Logger

	now func() time.Time

	mu            sync.Mutex
	cfg           models.CO2Settings
	co2On         bool
	lastCO2Update time.Time
	lastPPM       *float64

	fanMode       string
	fanOnMinutes  int
	fanOffMinutes int
	fansOn        bool
	lastFanToggle time.Time

	acOn   bool
	acTemp int
	acMode string
	acFan  string
}

func NewEnvironmentService(valve valveDriver, gateway hardware.Gateway, ir acRemote, settings repository.SettingsRepo, events repository.EventRepo, notifier notify.Notifier, daynight dayNight, log *logger.Logger) *EnvironmentService {
	s := &EnvironmentService{
		valve:         valve,
		gateway:       gateway,
		ir:            ir,
		settings:      settings,
		events:        events,
		notifier:      notifier,
		daynight:      daynight,
		log:           log,
		now:           time.Now,
		cfg:           defaultCO2Settings(),
		fanMode:       models.FanModeOff,
		fanOnMinutes:  5,
		fanOffMinutes: 10,
		acTemp:        24,
		acMode:        "cool",
		acFan:         "medium",
	}

	if stored, err := settings.LoadCO2(context.Background()); err != nil {
		log.Warnw("co2 settings unavailable, using defaults", "err", err)
	} else if stored != nil {
		s.cfg = *stored
	}
	return s
}

// Update consumes one sensor snapshot and applies CO2 control.
// No CO2 reading means no decision.
func (s *EnvironmentService) Update(ctx context.Context, snap models.SensorSnapshot) {
	if snap.CO2 == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ppm := *snap.CO2
	s.lastPPM = &ppm

	target := s.targetPPM(now)
	tol := s.cfg.TolerancePPM

	emergency := ppm < target-emergencyBand*tol || ppm > target+emergencyBand*tol
	if emergency {
		s.log.Warnw("co2 far outside band, bypassing throttle", "ppm", ppm, "target", target)
	} else if !s.lastCO2Update.IsZero() && now.Sub(s.lastCO2Update) < co2UpdateInterval {
		return
	}

	switch s.cfg.Mode {
	case models.CO2ModeAuto:
		// Quarter tolerance for switching, floored to whole ppm; inside
		// the fine band the valve holds whatever it was doing.
		fastTol := math.Floor(tol / 4)
		if fastTol < 1 {
			fastTol = 1
		}

		desired := s.co2On
		if ppm < target-fastTol {
			desired = true
		} else if ppm > target+fastTol {
			desired = false
		}

		if desired != s.co2On {
			s.applyValve(ctx, now, desired, ppm, target)
		}

	case models.CO2ModeManualOn:
		if !s.co2On {
			s.applyValve(ctx, now, true, ppm, target)
		}
	case models.CO2ModeManualOff:
		if s.co2On {
			s.applyValve(ctx, now, false, ppm, target)
		}
	}
}

// applyValve drives both valve channels and commits the state only when
// at least one channel accepted. Caller holds s.mu.
func (s *EnvironmentService) applyValve(ctx context.Context, now time.Time, on bool, ppm, target float64) {
	ok := 0
	for _, ch := range co2Channels {
		if err := s.valve.SetRelay(ctx, ch, on); err != nil {
			s.log.Warnw("co2 valve channel failed", "channel", ch, "err", err)
		} else {
			ok++
		}
	}

	if ok == 0 {
		s.log.Warnw("co2 command failed on every channel, state unchanged", "wanted", on)
		return
	}
	if ok < len(co2Channels) {
		s.log.Warnw("co2 command partial success", "channels_ok", ok)
	}

	s.co2On = on
	s.lastCO2Update = now
	s.log.Infow("co2 valve switched", "state", onOff(on), "ppm", ppm, "target", target)
	s.appendEvent(ctx, models.EventCO2, "valve switched "+onOff(on), map[string]any{
		"ppm":    ppm,
		"target": target,
		"mode":   s.cfg.Mode,
	})
	s.notifier.Emit("co2_change", map[string]any{"state": on, "ppm": ppm, "target": target})
}

// targetPPM picks the day or night target. Caller holds s.mu.
func (s *EnvironmentService) targetPPM(now time.Time) float64 {
	if s.isDaytime(now) {
		return s.cfg.DayTargetPPM
	}
	return s.cfg.NightTargetPPM
}

func (s *EnvironmentService) isDaytime(now time.Time) bool {
	if s.daynight != nil && s.daynight.HasEnabledSchedules() {
		return s.daynight.LightsOn(now)
	}
	h := now.Hour()
	if s.cfg.DayStartHour == s.cfg.DayEndHour {
		return true
	}
	if s.cfg.DayStartHour < s.cfg.DayEndHour {
		return h >= s.cfg.DayStartHour && h < s.cfg.DayEndHour
	}
	return h >= s.cfg.DayStartHour || h < s.cfg.DayEndHour
}

// UpdateFans runs the fan bank timer. Driven from the loop's slow task.
func (s *EnvironmentService) UpdateFans(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	switch s.fanMode {
	case models.FanModeOff:
		if s.fansOn {
			s.driveFans(ctx, false)
		}
	case models.FanModeContinuous:
		if !s.fansOn {
			s.driveFans(ctx, true)
		}
	case models.FanModeIntermittent:
		if s.fansOn && now.Sub(s.lastFanToggle) >= time.Duration(s.fanOnMinutes)*time.Minute {
			s.driveFans(ctx, false)
			s.lastFanToggle = now
		} else if !s.fansOn && now.Sub(s.lastFanToggle) >= time.Duration(s.fanOffMinutes)*time.Minute {
			s.driveFans(ctx, true)
			s.lastFanToggle = now
		}
	}
}

// driveFans switches the whole bank. Caller holds s.mu.
func (s *EnvironmentService) driveFans(ctx context.Context, on bool) {
	for _, ch := range fanChannels {
		if err := s.gateway.SetChannel(ctx, ch, on); err != nil {
			s.log.Warnw("fan channel failed", "channel", ch, "err", err)
		}
	}
	s.fansOn = on
	s.log.Infow("circulation fans switched", "state", onOff(on), "mode", s.fanMode)
	s.appendEvent(ctx, models.EventEnvEquip, "circulation fans "+onOff(on), map[string]any{"mode": s.fanMode})
}

// SetFanMode switches the bank mode and applies it immediately.
func (s *EnvironmentService) SetFanMode(ctx context.Context, mode string, onMinutes, offMinutes int) error {
	switch mode {
	case models.FanModeOff, models.FanModeContinuous, models.FanModeIntermittent:
	default:
		return errInvalidFanMode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fanMode = mode
	if onMinutes > 0 {
		s.fanOnMinutes = onMinutes
	}
	if offMinutes > 0 {
		s.fanOffMinutes = offMinutes
	}
	s.lastFanToggle = s.now()

	switch mode {
	case models.FanModeOff:
		s.driveFans(ctx, false)
	case models.FanModeContinuous:
		s.driveFans(ctx, true)
	case models.FanModeIntermittent:
		// Intermittent starts with an ON phase.
		s.driveFans(ctx, true)
	}
	return nil
}

// SetACPower drives the AC power relay, then mirrors the state over IR.
// The relay is the hard dependency; a failed IR transmission only costs
// the remote's bookkeeping.
func (s *EnvironmentService) SetACPower(ctx context.Context, on bool) error {
	if err := s.gateway.SetChannel(ctx, acChannel, on); err != nil {
		return fmt.Errorf("ac power relay: %w", err)
	}

	s.mu.Lock()
	s.acOn = on
	s.mu.Unlock()

	if s.ir != nil {
		if err := s.ir.SetACPower(ctx, on); err != nil {
			s.log.Warnw("ac ir power command failed, relay state holds", "err", err)
		}
	}

	s.appendEvent(ctx, models.EventEnvEquip, "ac power "+onOff(on), nil)
	s.notifier.Emit("ac_change", map[string]any{"power": on})
	return nil
}

// SetACTemperature moves the setpoint over IR.
func (s *EnvironmentService) SetACTemperature(ctx context.Context, temp int) error {
	if s.ir == nil {
		return errors.New("ac ir control not configured")
	}
	if err := s.ir.SetACTemperature(ctx, temp); err != nil {
		return err
	}
	s.mu.Lock()
	s.acTemp = temp
	s.mu.Unlock()
	s.appendEvent(ctx, models.EventEnvEquip, fmt.Sprintf("ac setpoint %d°C", temp), nil)
	return nil
}

// SetACMode switches the AC operating mode over IR.
func (s *EnvironmentService) SetACMode(ctx context.Context, mode string) error {
	switch mode {
	case "auto", "cool", "heat", "dry", "fan":
	default:
		return errInvalidACMode
	}
	if s.ir == nil {
		return errors.New("ac ir control not configured")
	}
	if err := s.ir.SetACMode(ctx, mode); err != nil {
		return err
	}
	s.mu.Lock()
	s.acMode = mode
	s.mu.Unlock()
	s.appendEvent(ctx, models.EventEnvEquip, "ac mode "+mode, nil)
	return nil
}

// SetACFanSpeed switches the AC fan speed over IR.
func (s *EnvironmentService) SetACFanSpeed(ctx context.Context, speed string) error {
	switch speed {
	case "auto", "low", "medium", "high":
	default:
		return errInvalidACFan
	}
	if s.ir == nil {
		return errors.New("ac ir control not configured")
	}
	if err := s.ir.SetACFanSpeed(ctx, speed); err != nil {
		return err
	}
	s.mu.Lock()
	s.acFan = speed
	s.mu.Unlock()
	s.appendEvent(ctx, models.EventEnvEquip, "ac fan "+speed, nil)
	return nil
}

// SetCO2Mode switches control mode and applies manual modes at once.
func (s *EnvironmentService) SetCO2Mode(ctx context.Context, mode string) error {
	switch mode {
	case models.CO2ModeAuto, models.CO2ModeManualOn, models.CO2ModeManualOff:
	default:
		return errInvalidCO2Mode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.cfg.Mode = mode

	var ppm, target float64
	if s.lastPPM != nil {
		ppm = *s.lastPPM
	}
	target = s.targetPPM(now)

	switch mode {
	case models.CO2ModeManualOn:
		if !s.co2On {
			s.applyValve(ctx, now, true, ppm, target)
		}
	case models.CO2ModeManualOff:
		if s.co2On {
			s.applyValve(ctx, now, false, ppm, target)
		}
	case models.CO2ModeAuto:
		s.lastCO2Update = time.Time{} // re-evaluate on next snapshot
	}

	if err := s.settings.SaveCO2(ctx, s.cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrSettingsPersistence, err)
	}
	return nil
}

// UpdateCO2Settings validates, persists and applies new CO2 settings.
func (s *EnvironmentService) UpdateCO2Settings(ctx context.Context, cfg models.CO2Settings) error {
	switch cfg.Mode {
	case models.CO2ModeAuto, models.CO2ModeManualOn, models.CO2ModeManualOff:
	default:
		return errInvalidCO2Mode
	}
	if cfg.TolerancePPM <= 0 {
		return errors.New("invalid co2 settings: tolerance must be > 0")
	}
	if cfg.DayStartHour < 0 || cfg.DayStartHour > 23 || cfg.DayEndHour < 0 || cfg.DayEndHour > 23 {
		return errors.New("invalid co2 settings: day hours must be 0-23")
	}

	s.mu.Lock()
	persistErr := s.settings.SaveCO2(ctx, cfg)
	s.cfg = cfg
	s.lastCO2Update = time.Time{} // apply on next snapshot
	s.mu.Unlock()

	s.appendEvent(ctx, models.EventCO2, "settings updated", map[string]any{
		"mode":       cfg.Mode,
		"day_ppm":    cfg.DayTargetPPM,
		"night_ppm":  cfg.NightTargetPPM,
		"tolerance":  cfg.TolerancePPM,
		"persisted":  persistErr == nil,
	})

	if persistErr != nil {
		return fmt.Errorf("%w: %v", ErrSettingsPersistence, persistErr)
	}
	return nil
}

// CO2Settings returns the active settings.
func (s *EnvironmentService) CO2Settings() models.CO2Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Status reports the CO2 and climate equipment view.
func (s *EnvironmentService) Status() (models.CO2Status, models.ClimateStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	co2 := models.CO2Status{
		ValveOpen:  s.co2On,
		Mode:       s.cfg.Mode,
		CurrentPPM: s.lastPPM,
		TargetPPM:  s.targetPPM(now),
		Daytime:    s.isDaytime(now),
		LastUpdate: s.lastCO2Update,
	}
	climate := models.ClimateStatus{
		FanMode:      s.fanMode,
		FansOn:       s.fansOn,
		ACOn:         s.acOn,
		ACTemp:       s.acTemp,
		ACMode:       s.acMode,
		ACFanSpeed:   s.acFan,
		TempSetpoint: float64(s.acTemp),
	}
	return co2, climate
}

func (s *EnvironmentService) appendEvent(ctx context.Context, typ, msg string, meta map[string]any) {
	if err := s.events.Append(ctx, models.Event{Type: typ, Description: msg, Metadata: meta}); err != nil {
		s.log.Warnw("environment event not recorded", "err", err)
	}
}
