package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"growbox/internal/hardware"
	"growbox/internal/logger"
	"growbox/internal/models"
	"growbox/internal/notify"
	"growbox/internal/repository"
)

// Watering pump wiring and safety limits.
const (
	pumpChannel = 16

	wateringUpdateThrottle = 5 * time.Second
	pumpVerifyInterval     = 30 * time.Second
	minToggleInterval      = 10 * time.Second
	maxContinuousOn        = 30 * time.Minute
	emergencyQuarantine    = 5 * time.Minute
	forceOffRetrySpacing   = 60 * time.Second
	verifyAttempts         = 3
	verifyRetryPause       = 200 * time.Millisecond

	// Fixed day window used when no lighting schedule exists.
	fallbackDayStart = 6
	fallbackDayEnd   = 22

	defaultManualDuration = 30 * time.Minute
)

// ErrSettingsPersistence marks settings that were applied in memory but
// could not be written to the store.
var ErrSettingsPersistence = errors.New("settings not persisted")

var (
	errEmergencyActive = errors.New("watering locked out: emergency shutdown active")
	errDailyLimit      = errors.New("watering daily limit reached")
)

// defaultCycleSettings is the baseline before anything is stored.
func defaultCycleSettings() models.CycleSettings {
	return models.CycleSettings{
		Enabled:           false,
		DayOnSeconds:      120,
		DayOffSeconds:     600,
		NightOnSeconds:    60,
		NightOffSeconds:   1800,
		ActiveStartHour:   0,
		ActiveEndHour:     0, // start == end: active around the clock
		DailyLimitMinutes: 120,
	}
}

// relayFallback is the secondary force-off path, independent of the
// Modbus link.
type relayFallback interface {
	SetRelay(ctx context.Context, channel int, on bool) error
}

// dayNight is the lighting schedule's verdict used to pick the day or
// night cycle.
type dayNight interface {
	LightsOn(now time.Time) bool
	HasEnabledSchedules() bool
}

// WateringService runs the deterministic watering cycle. All pump state
// here is the commanded state: hardware failures are logged but the
// controller keeps its view, so recovery converges on the next write.
type WateringService struct {
	gateway  hardware.Gateway
	fallback relayFallback
	settings repository.SettingsRepo
	events   repository.EventRepo
	notifier notify.Notifier
	daynight dayNight
	log      *logger.Logger

	now func() time.Time

	mu           sync.Mutex
	cfg          models.CycleSettings
	pumpOn       bool
	pumpOnSince  time.Time
	lastChange   time.Time
	lastUpdate   time.Time
	lastVerify   time.Time
	dailyRunMin  float64
	resetDay     int
	manualMode   bool
	manualUntil  time.Time
	emergency    bool
	emergencyAt  time.Time
	lastForceOff time.Time
}

func NewWateringService(gateway hardware.Gateway, fallback relayFallback, settings repository.SettingsRepo, events repository.EventRepo, notifier notify.Notifier, daynight dayNight, log *logger.Logger) *WateringService {
	s := &WateringService{
		gateway:  gateway,
		fallback: fallback,
		settings: settings,
		events:   events,
		notifier: notifier,
		daynight: daynight,
		log:      log,
		now:      time.Now,
		cfg:      defaultCycleSettings(),
	}
	s.resetDay = s.now().Day()

	if stored, err := settings.LoadCycle(context.Background()); err != nil {
		log.Warnw("watering settings unavailable, using defaults", "err", err)
	} else if stored != nil {
		stored.Normalize()
		s.cfg = *stored
	}
	return s
}

// Update is the per-tick entry point. Throttled so a fast loop cannot
// hammer the relay.
func (s *WateringService) Update(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.lastUpdate.IsZero() && now.Sub(s.lastUpdate) < wateringUpdateThrottle {
		return
	}
	s.lastUpdate = now

	// Daily runtime resets once per calendar day.
	if now.Day() != s.resetDay {
		s.log.Infow("watering daily runtime reset", "previous_minutes", s.dailyRunMin)
		s.dailyRunMin = 0
		s.resetDay = now.Day()
	}

	// Absolute runtime ceiling, independent of settings.
	if s.pumpOn && now.Sub(s.pumpOnSince) >= maxContinuousOn {
		s.triggerEmergency(ctx, now)
		return
	}

	if s.emergency {
		if now.Sub(s.emergencyAt) >= emergencyQuarantine {
			s.emergency = false
			s.log.Infow("watering emergency quarantine over, resuming control")
		} else {
			// Keep hammering the pump off, but not more than once a minute.
			if s.pumpOn && now.Sub(s.lastForceOff) >= forceOffRetrySpacing {
				s.forceOff(ctx, now, "emergency retry")
			}
			return
		}
	}

	if s.manualMode {
		if now.After(s.manualUntil) {
			s.manualMode = false
			s.log.Infow("manual watering expired, back to schedule")
		} else {
			// Manual holds the commanded state, but never past the limit.
			if s.pumpOn && s.dailyLimitReached(now) {
				s.manualMode = false
				s.forceOff(ctx, now, "daily limit during manual run")
			}
			return
		}
	}

	desired := s.shouldBeOn(now)
	if desired != s.pumpOn {
		s.setPump(ctx, now, desired, false)
	}

	if now.Sub(s.lastVerify) >= pumpVerifyInterval {
		s.lastVerify = now
		if actual := s.gateway.GetChannel(pumpChannel); actual != s.pumpOn {
			s.log.Warnw("pump relay out of line, re-driving", "commanded", s.pumpOn, "relay", actual)
			if err := s.gateway.SetChannel(ctx, pumpChannel, s.pumpOn); err != nil {
				s.log.Warnw("pump re-drive failed", "err", err)
			}
		}
	}
}

// shouldBeOn is the deterministic cycle function. Caller holds s.mu.
func (s *WateringService) shouldBeOn(now time.Time) bool {
	if !s.cfg.Enabled {
		return false
	}
	if !s.withinActiveHours(now) {
		return false
	}
	if s.dailyLimitReached(now) {
		return false
	}

	onSec, offSec := s.cycleFor(now)
	if onSec <= 0 {
		return false
	}
	if offSec <= 0 {
		return true // continuous mode while the window is active
	}

	pos := (now.Minute()*60 + now.Second()) % (onSec + offSec)
	return pos < onSec
}

// withinActiveHours handles windows that wrap midnight; equal bounds mean
// always active.
func (s *WateringService) withinActiveHours(now time.Time) bool {
	start, end := s.cfg.ActiveStartHour, s.cfg.ActiveEndHour
	if start == end {
		return true
	}
	h := now.Hour()
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}

// cycleFor picks the day or night on/off pair.
func (s *WateringService) cycleFor(now time.Time) (onSec, offSec int) {
	if s.isDaytime(now) {
		return s.cfg.DayOnSeconds, s.cfg.DayOffSeconds
	}
	return s.cfg.NightOnSeconds, s.cfg.NightOffSeconds
}

// isDaytime follows the lighting schedule when one exists, otherwise the
// fixed fallback window.
func (s *WateringService) isDaytime(now time.Time) bool {
	if s.daynight != nil && s.daynight.HasEnabledSchedules() {
		return s.daynight.LightsOn(now)
	}
	h := now.Hour()
	return h >= fallbackDayStart && h < fallbackDayEnd
}

// dailyLimitReached counts finished runtime plus the current session.
func (s *WateringService) dailyLimitReached(now time.Time) bool {
	if s.cfg.DailyLimitMinutes <= 0 {
		return false
	}
	return s.runMinutes(now) >= s.cfg.DailyLimitMinutes
}

func (s *WateringService) runMinutes(now time.Time) float64 {
	total := s.dailyRunMin
	if s.pumpOn {
		total += now.Sub(s.pumpOnSince).Minutes()
	}
	return total
}

// setPump commands the pump relay. Transitions are rate limited unless
// forced; the controller state is updated before the hardware call.
func (s *WateringService) setPump(ctx context.Context, now time.Time, on, force bool) {
	if on == s.pumpOn && !force {
		return
	}
	if !force && !s.lastChange.IsZero() && now.Sub(s.lastChange) < minToggleInterval {
		return
	}

	if s.pumpOn && !on {
		s.dailyRunMin += now.Sub(s.pumpOnSince).Minutes()
	}
	if !s.pumpOn && on {
		s.pumpOnSince = now
	}
	changed := s.pumpOn != on
	s.pumpOn = on
	s.lastChange = now

	if err := s.gateway.SetChannel(ctx, pumpChannel, on); err != nil {
		s.log.Warnw("pump relay command failed, keeping commanded state", "state", on, "err", err)
	}

	if changed {
		s.log.Infow("watering pump switched", "state", onOff(on), "daily_minutes", fmt.Sprintf("%.1f", s.dailyRunMin))
		s.appendEvent(ctx, models.EventWatering, "pump switched "+onOff(on), map[string]any{
			"state":         on,
			"daily_minutes": s.dailyRunMin,
		})
		s.notifier.Emit("watering_change", map[string]any{"state": on})
	}
}

// forceOff bypasses the rate limit and tries both shutoff paths: the
// relay board first, then the sensor endpoint's own relay output.
func (s *WateringService) forceOff(ctx context.Context, now time.Time, reason string) {
	s.lastForceOff = now

	if s.pumpOn {
		s.dailyRunMin += now.Sub(s.pumpOnSince).Minutes()
	}
	s.pumpOn = false
	s.lastChange = now

	errPrimary := s.gateway.SetChannel(ctx, pumpChannel, false)
	if errPrimary != nil {
		s.log.Errorw("primary pump shutoff failed", "reason", reason, "err", errPrimary)
		if s.fallback != nil {
			if err := s.fallback.SetRelay(ctx, pumpChannel, false); err != nil {
				s.log.Errorw("fallback pump shutoff failed too", "err", err)
			} else {
				s.log.Infow("pump stopped via fallback path")
			}
		}
	}

	s.appendEvent(ctx, models.EventWatering, "pump force-off: "+reason, map[string]any{
		"primary_ok": errPrimary == nil,
	})
}

// triggerEmergency latches the quarantine and stops the pump.
func (s *WateringService) triggerEmergency(ctx context.Context, now time.Time) {
	s.emergency = true
	s.emergencyAt = now
	s.log.Errorw("watering emergency: pump exceeded continuous runtime ceiling",
		"ceiling_min", maxContinuousOn.Minutes())

	s.forceOff(ctx, now, "continuous runtime ceiling")

	s.appendEvent(ctx, models.EventEmergency, "watering emergency shutdown", map[string]any{
		"on_since":    s.pumpOnSince,
		"ceiling_min": maxContinuousOn.Minutes(),
	})
	s.notifier.Emit("watering_emergency", map[string]any{"quarantine_min": emergencyQuarantine.Minutes()})
}

// ManualControl holds the pump in one state for a limited time.
func (s *WateringService) ManualControl(ctx context.Context, on bool, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.emergency {
		return errEmergencyActive
	}
	if on && s.dailyLimitReached(now) {
		return errDailyLimit
	}
	if duration <= 0 {
		duration = defaultManualDuration
	}

	s.manualMode = true
	s.manualUntil = now.Add(duration)
	s.setPump(ctx, now, on, true)

	s.appendEvent(ctx, models.EventWatering, "manual watering "+onOff(on), map[string]any{
		"until": s.manualUntil,
	})
	return nil
}

// UpdateSettings validates, persists and applies new settings in one
// motion: pump off, cycle recomputed, relay re-driven, then verified.
// A persistence failure still applies the settings and is reported via
// ErrSettingsPersistence.
func (s *WateringService) UpdateSettings(ctx context.Context, cfg models.CycleSettings) error {
	if err := validateCycleSettings(cfg); err != nil {
		return err
	}
	cfg.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	persistErr := s.settings.SaveCycle(ctx, cfg)
	s.cfg = cfg

	s.manualMode = false
	s.forceOff(ctx, now, "settings update")

	desired := s.shouldBeOn(now)
	if desired {
		s.setPump(ctx, now, true, true)
	}
	s.verifyAndCorrect(ctx, desired)

	s.appendEvent(ctx, models.EventWatering, "settings updated", map[string]any{
		"enabled":     cfg.Enabled,
		"day_on_s":    cfg.DayOnSeconds,
		"day_off_s":   cfg.DayOffSeconds,
		"night_on_s":  cfg.NightOnSeconds,
		"night_off_s": cfg.NightOffSeconds,
		"persisted":   persistErr == nil,
	})

	if persistErr != nil {
		return fmt.Errorf("%w: %v", ErrSettingsPersistence, persistErr)
	}
	return nil
}

// verifyAndCorrect reads the relay back a few times and re-issues the
// command until it agrees.
func (s *WateringService) verifyAndCorrect(ctx context.Context, expected bool) {
	for attempt := 1; attempt <= verifyAttempts; attempt++ {
		if s.gateway.GetChannel(pumpChannel) == expected {
			return
		}
		s.log.Warnw("pump state verification mismatch", "attempt", attempt, "expected", expected)
		if err := s.gateway.SetChannel(ctx, pumpChannel, expected); err != nil {
			s.log.Warnw("pump correction failed", "attempt", attempt, "err", err)
		}
		time.Sleep(verifyRetryPause)
	}
}

func validateCycleSettings(cfg models.CycleSettings) error {
	if cfg.ActiveStartHour < 0 || cfg.ActiveStartHour > 23 || cfg.ActiveEndHour < 0 || cfg.ActiveEndHour > 23 {
		return errors.New("invalid watering settings: active hours must be 0-23")
	}
	if cfg.DayOnSeconds < 0 || cfg.NightOnSeconds < 0 {
		return errors.New("invalid watering settings: on-times must be >= 0")
	}
	return nil
}

// CycleSettings returns the active settings.
func (s *WateringService) CycleSettings() models.CycleSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Status reports the controller's runtime view.
func (s *WateringService) Status() models.WateringStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.WateringStatus{
		PumpOn:            s.pumpOn,
		ManualMode:        s.manualMode,
		ManualUntil:       s.manualUntil,
		DailyRunMinutes:   s.runMinutes(s.now()),
		EmergencyShutdown: s.emergency,
		LastStateChange:   s.lastChange,
		Settings:          s.cfg,
	}
}

func (s *WateringService) appendEvent(ctx context.Context, typ, msg string, meta map[string]any) {
	if err := s.events.Append(ctx, models.Event{Type: typ, Description: msg, Metadata: meta}); err != nil {
		s.log.Warnw("watering event not recorded", "err", err)
	}
}
