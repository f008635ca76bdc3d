package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"growbox/internal/logger"
	"growbox/internal/models"
	"growbox/internal/notify"
	"growbox/internal/repository"
)

// Peristaltic pump characteristics and policy constants.
const (
	pumpFlowMLPerSec = 1.75
	nutrientDoseML   = 10.0
	maxPHDoseML      = 5.0
	phDoseMLPerUnit  = 3.0

	dosingCooldown        = 5 * time.Minute
	completionFactor      = 1.2
	completionRecheck     = time.Second
	maxCompletionRechecks = 5
	ecHighWarnSpacing     = 30 * time.Minute

	defaultManualDoseSeconds = 5
)

// ErrAlreadyDosing is returned when a dose is requested while another
// pump is running. Callers retry on a later tick, they never queue.
var ErrAlreadyDosing = errors.New("another dose is already running")

var errUnknownPump = errors.New("unknown dosing pump")

var pumpNames = map[string]string{
	"nutrient_a": "Nutrient A",
	"nutrient_b": "Nutrient B",
	"ph_up":      "pH Up",
	"ph_down":    "pH Down",
}

func defaultDosingSettings() models.DosingSettings {
	return models.DosingSettings{
		ECTarget:    1.8,
		ECTolerance: 0.2,
		PHTarget:    6.0,
		PHTolerance: 0.3,
		AutoEC:      false,
		AutoPH:      false,
	}
}

// pumpDriver is the hardware side of dosing.
type pumpDriver interface {
	DosePump(ctx context.Context, pumpID string, durationMs int, amountML float64) error
	PumpState(ctx context.Context, pumpID string) (string, error)
	Available() bool
}

// DosingService owns the four dosing pumps. Exactly one pump doses at a
// time; daily totals are committed only after the hardware accepts the
// start command.
type DosingService struct {
	pumpsHW  pumpDriver
	settings repository.SettingsRepo
	events   repository.EventRepo
	notifier notify.Notifier
	log      *logger.Logger

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu         sync.Mutex
	cfg        models.DosingSettings
	pumps      map[string]*models.DosingPump
	dosing     bool
	activePump string
	pendingID  string
	pendingML  float64
	lastDose   time.Time
	lastECWarn time.Time
	rechecks   int
}

func NewDosingService(pumpsHW pumpDriver, settings repository.SettingsRepo, events repository.EventRepo, notifier notify.Notifier, log *logger.Logger) *DosingService {
	s := &DosingService{
		pumpsHW:   pumpsHW,
		settings:  settings,
		events:    events,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
		afterFunc: time.AfterFunc,
		cfg:       defaultDosingSettings(),
		pumps:     make(map[string]*models.DosingPump, len(pumpNames)),
	}
	for id, name := range pumpNames {
		s.pumps[id] = &models.DosingPump{ID: id, Name: name}
	}

	if stored, err := settings.LoadDosing(context.Background()); err != nil {
		log.Warnw("dosing settings unavailable, using defaults", "err", err)
	} else if stored != nil {
		s.cfg = *stored
	}
	return s
}

// Update runs the correction policy against one sensor snapshot.
// Stale snapshots never trigger automatic dosing.
func (s *DosingService) Update(ctx context.Context, snap models.SensorSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.dosing {
		return
	}
	if !s.lastDose.IsZero() && now.Sub(s.lastDose) < dosingCooldown {
		return
	}
	if snap.Stale || snap.EC == nil || snap.PH == nil {
		return
	}
	if !s.pumpsHW.Available() {
		return
	}

	ec, ph := *snap.EC, *snap.PH

	if s.cfg.AutoEC {
		switch {
		case ec < s.cfg.ECTarget-s.cfg.ECTolerance:
			// Two-part feed: B follows automatically once A completes.
			if err := s.doseLocked(ctx, "nutrient_a", nutrientDoseML, "nutrient_b", nutrientDoseML); err != nil {
				s.log.Warnw("nutrient dose failed", "err", err)
			}
			return
		case ec > s.cfg.ECTarget+s.cfg.ECTolerance:
			if now.Sub(s.lastECWarn) >= ecHighWarnSpacing {
				s.lastECWarn = now
				s.log.Warnw("ec above target, dilution needed", "ec", ec, "target", s.cfg.ECTarget)
				s.appendEvent(ctx, "EC too high, manual dilution required", map[string]any{"ec": ec, "target": s.cfg.ECTarget})
				s.notifier.Emit("nutrient_warning", map[string]any{"type": "ec_high", "ec": ec})
			}
		}
	}

	if s.cfg.AutoPH && ph > s.cfg.PHTarget+s.cfg.PHTolerance {
		amount := (ph - s.cfg.PHTarget) * phDoseMLPerUnit
		if amount > maxPHDoseML {
			amount = maxPHDoseML
		}
		if err := s.doseLocked(ctx, "ph_down", amount, "", 0); err != nil {
			s.log.Warnw("ph dose failed", "err", err)
		}
	}
}

// Dose starts one dose. Nutrient pumps always use the fixed dose size.
func (s *DosingService) Dose(ctx context.Context, pumpID string, amountML float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doseLocked(ctx, pumpID, amountML, "", 0)
}

// ManualDose runs a pump for a duration; the amount follows from the
// flow rate.
func (s *DosingService) ManualDose(ctx context.Context, pumpID string, seconds float64) error {
	if seconds <= 0 {
		seconds = defaultManualDoseSeconds
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doseLocked(ctx, pumpID, seconds*pumpFlowMLPerSec, "", 0)
}

// doseLocked performs the precheck, sends the start command and, only on
// acceptance, commits totals and schedules the completion poll.
// Caller holds s.mu.
func (s *DosingService) doseLocked(ctx context.Context, pumpID string, amountML float64, followUpID string, followUpML float64) error {
	pump, ok := s.pumps[pumpID]
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownPump, pumpID)
	}
	if pumpID == "nutrient_a" || pumpID == "nutrient_b" {
		amountML = nutrientDoseML
	}
	if amountML <= 0 {
		return errors.New("dose amount must be > 0")
	}
	if s.dosing {
		return ErrAlreadyDosing
	}

	now := s.now()
	s.dosing = true
	s.activePump = pumpID

	// Observers see every attempt, including ones the precheck kills.
	s.notifier.Emit("dosing_attempt", map[string]any{"pump": pumpID, "amount_ml": amountML})

	// Offline precheck: no point committing anything if the link is down.
	if !s.pumpsHW.Available() {
		s.dosing = false
		s.activePump = ""
		s.pendingID = ""
		return fmt.Errorf("pump %s: sensor endpoint offline", pumpID)
	}

	duration := time.Duration(amountML/pumpFlowMLPerSec*1000) * time.Millisecond
	if err := s.pumpsHW.DosePump(ctx, pumpID, int(duration.Milliseconds()), amountML); err != nil {
		s.dosing = false
		s.activePump = ""
		s.pendingID = ""
		return err
	}

	// Command accepted: commit.
	pump.DailyTotalML += amountML
	pump.LastDose = now
	s.lastDose = now
	s.pendingID = followUpID
	s.pendingML = followUpML
	s.rechecks = 0

	s.log.Infow("dose started", "pump", pumpID, "amount_ml", amountML, "duration", duration)
	s.appendEvent(ctx, fmt.Sprintf("%s dosing %.1f ml", pump.Name, amountML), map[string]any{
		"pump":      pumpID,
		"amount_ml": amountML,
	})
	s.notifier.Emit("dosing_started", map[string]any{"pump": pumpID, "amount_ml": amountML})

	wait := time.Duration(float64(duration) * completionFactor)
	s.afterFunc(wait, func() { s.completeDose(pumpID) })
	return nil
}

// completeDose polls the pump once the expected runtime has passed.
// A failed poll assumes the dose finished; a pump still running gets a
// few short rechecks before the flag is cleared anyway.
func (s *DosingService) completeDose(pumpID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	state, err := s.pumpsHW.PumpState(ctx, pumpID)

	s.mu.Lock()
	if !s.dosing || s.activePump != pumpID {
		s.mu.Unlock()
		return // aborted meanwhile
	}

	if err == nil && state == "running" && s.rechecks < maxCompletionRechecks {
		s.rechecks++
		s.afterFunc(completionRecheck, func() { s.completeDose(pumpID) })
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.log.Debugw("completion poll failed, assuming dose finished", "pump", pumpID, "err", err)
	}

	s.dosing = false
	s.activePump = ""
	pending, pendingML := s.pendingID, s.pendingML
	s.pendingID = ""

	if pending != "" && s.pumpsHW.Available() {
		if err := s.doseLocked(ctx, pending, pendingML, "", 0); err != nil {
			s.log.Warnw("follow-up dose failed", "pump", pending, "err", err)
		}
	}
	s.mu.Unlock()
}

// Abort clears the dosing state and drops any queued follow-up.
// The pumps are fire-and-forget with their own run timers, so there is
// nothing to stop on the wire.
func (s *DosingService) Abort(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dosing = false
	s.activePump = ""
	s.pendingID = ""

	s.log.Warnw("dosing aborted")
	s.appendEvent(ctx, "dosing aborted", nil)
	s.notifier.Emit("dosing_aborted", nil)
	return nil
}

// ResetDailyTotals zeroes every pump's counter. Run by the midnight task.
func (s *DosingService) ResetDailyTotals(ctx context.Context) {
	s.mu.Lock()
	for _, p := range s.pumps {
		p.DailyTotalML = 0
	}
	s.mu.Unlock()

	s.log.Infow("daily dosing totals reset")
	s.appendEvent(ctx, "daily totals reset", nil)
}

// UpdateSettings validates, persists and applies new dosing settings.
func (s *DosingService) UpdateSettings(ctx context.Context, cfg models.DosingSettings) error {
	if cfg.ECTarget <= 0 || cfg.ECTolerance <= 0 {
		return errors.New("invalid dosing settings: ec target and tolerance must be > 0")
	}
	if cfg.PHTarget <= 0 || cfg.PHTolerance <= 0 {
		return errors.New("invalid dosing settings: ph target and tolerance must be > 0")
	}

	s.mu.Lock()
	persistErr := s.settings.SaveDosing(ctx, cfg)
	s.cfg = cfg
	s.mu.Unlock()

	s.appendEvent(ctx, "settings updated", map[string]any{
		"ec_target": cfg.ECTarget,
		"ph_target": cfg.PHTarget,
		"auto_ec":   cfg.AutoEC,
		"auto_ph":   cfg.AutoPH,
		"persisted": persistErr == nil,
	})

	if persistErr != nil {
		return fmt.Errorf("%w: %v", ErrSettingsPersistence, persistErr)
	}
	return nil
}

// DosingSettings returns the active settings.
func (s *DosingService) DosingSettings() models.DosingSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Status reports the dosing controller's runtime view.
func (s *DosingService) Status() models.DosingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	pumps := make(map[string]models.DosingPump, len(s.pumps))
	for id, p := range s.pumps {
		pumps[id] = *p
	}

	var cooldownUntil time.Time
	if !s.lastDose.IsZero() {
		cooldownUntil = s.lastDose.Add(dosingCooldown)
	}

	return models.DosingStatus{
		Dosing:        s.dosing,
		ActivePump:    s.activePump,
		CooldownUntil: cooldownUntil,
		Pumps:         pumps,
		Settings:      s.cfg,
	}
}

func (s *DosingService) appendEvent(ctx context.Context, msg string, meta map[string]any) {
	if err := s.events.Append(ctx, models.Event{Type: models.EventDosing, Description: msg, Metadata: meta}); err != nil {
		s.log.Warnw("dosing event not recorded", "err", err)
	}
}
