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

// zoneChannels maps the seven lighting zones to their relay channel pairs.
// Each zone drives two ballasts wired to adjacent channels.
var zoneChannels = map[int][2]int{
	1: {1, 2},
	2: {3, 4},
	3: {5, 6},
	4: {7, 8},
	5: {9, 10},
	6: {11, 12},
	7: {13, 14},
}

const lightCheckInterval = 30 * time.Second

var errInvalidZone = errors.New("invalid lighting zone: must be 1-7")

type LightingService struct {
	gateway  hardware.Gateway
	repo     repository.ScheduleRepo
	events   repository.EventRepo
	notifier notify.Notifier
	log      *logger.Logger

	mu         sync.Mutex
	schedules  []models.LightSchedule
	zoneStates map[int]bool
	lastCheck  time.Time
}

func NewLightingService(gateway hardware.Gateway, repo repository.ScheduleRepo, events repository.EventRepo, notifier notify.Notifier, log *logger.Logger) *LightingService {
	s := &LightingService{
		gateway:    gateway,
		repo:       repo,
		events:     events,
		notifier:   notifier,
		log:        log,
		zoneStates: make(map[int]bool, len(zoneChannels)),
	}
	for z := range zoneChannels {
		s.zoneStates[z] = false
	}
	if err := s.reload(context.Background()); err != nil {
		log.Warnw("lighting schedules unavailable at startup", "err", err)
	}
	return s
}

// reload replaces the in-memory schedule set from the repository.
func (s *LightingService) reload(ctx context.Context) error {
	schedules, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.schedules = schedules
	s.lastCheck = time.Time{} // force re-evaluation on next tick
	s.mu.Unlock()
	return nil
}

// scheduleActive reports whether a window covers the given wall-clock time.
// Off before on means the window wraps past midnight.
func scheduleActive(sched models.LightSchedule, now time.Time) bool {
	cur := now.Hour()*60 + now.Minute()
	on := sched.OnHour*60 + sched.OnMinute
	off := sched.OffHour*60 + sched.OffMinute

	if on == off {
		return false // zero-length window
	}
	if on < off {
		return cur >= on && cur < off
	}
	return cur >= on || cur < off
}

// coversZone reports whether a schedule applies to a zone. An empty zone
// list means all zones.
func coversZone(sched models.LightSchedule, zone int) bool {
	if len(sched.AffectedZones) == 0 {
		return true
	}
	for _, z := range sched.AffectedZones {
		if z == zone {
			return true
		}
	}
	return false
}

// LightsOn is the pure day/night verdict other controllers key off:
// true when any enabled schedule window is active.
func (s *LightingService) LightsOn(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sched := range s.schedules {
		if sched.Enabled && scheduleActive(sched, now) {
			return true
		}
	}
	return false
}

// HasEnabledSchedules tells callers whether LightsOn carries any signal
// or they should fall back to fixed hours.
func (s *LightingService) HasEnabledSchedules() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sched := range s.schedules {
		if sched.Enabled {
			return true
		}
	}
	return false
}

// desiredZoneState ORs every enabled schedule covering the zone.
// Caller holds s.mu.
func (s *LightingService) desiredZoneState(zone int, now time.Time) bool {
	for _, sched := range s.schedules {
		if sched.Enabled && coversZone(sched, zone) && scheduleActive(sched, now) {
			return true
		}
	}
	return false
}

// Update applies the schedule to the relays. Checks are throttled unless
// forced; when any zone is out of line, every zone is re-driven in the
// same pass so the banks never end up half-switched.
func (s *LightingService) Update(ctx context.Context, now time.Time, force bool) {
	s.mu.Lock()
	if !force && !s.lastCheck.IsZero() && now.Sub(s.lastCheck) < lightCheckInterval {
		s.mu.Unlock()
		return
	}
	s.lastCheck = now

	desired := make(map[int]bool, len(zoneChannels))
	diverged := false
	for z := range zoneChannels {
		desired[z] = s.desiredZoneState(z, now)
		if desired[z] != s.zoneStates[z] {
			diverged = true
		}
	}
	s.mu.Unlock()

	if !diverged && !force {
		return
	}

	changed := 0
	for z := 1; z <= len(zoneChannels); z++ {
		prev := s.getZoneState(z)
		if err := s.driveZone(ctx, z, desired[z]); err != nil {
			s.log.Warnw("lighting zone drive failed", "zone", z, "err", err)
		}
		if prev != desired[z] {
			changed++
		}
	}

	if changed > 0 {
		s.log.Infow("lighting schedule applied", "changed_zones", changed)
		s.appendEvent(ctx, fmt.Sprintf("schedule applied, %d zone(s) switched", changed), map[string]any{
			"zones": s.Status().ZoneStates,
		})
		s.notifier.Emit("lighting_change", map[string]any{"changed_zones": changed})
	}
}

// driveZone commands both relay channels of a zone and records the
// commanded state.
func (s *LightingService) driveZone(ctx context.Context, zone int, on bool) error {
	pair, ok := zoneChannels[zone]
	if !ok {
		return errInvalidZone
	}

	var firstErr error
	for _, ch := range pair {
		if err := s.gateway.SetChannel(ctx, ch, on); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.mu.Lock()
	s.zoneStates[zone] = on
	s.mu.Unlock()
	return firstErr
}

func (s *LightingService) getZoneState(zone int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoneStates[zone]
}

// SetZone is the manual override for a single zone.
func (s *LightingService) SetZone(ctx context.Context, zone int, on bool) error {
	if _, ok := zoneChannels[zone]; !ok {
		return errInvalidZone
	}
	if err := s.driveZone(ctx, zone, on); err != nil {
		return err
	}
	s.appendEvent(ctx, fmt.Sprintf("zone %d manually switched %s", zone, onOff(on)), map[string]any{"zone": zone, "state": on})
	return nil
}

// SetAll drives every zone to one state.
func (s *LightingService) SetAll(ctx context.Context, on bool) error {
	var firstErr error
	for z := 1; z <= len(zoneChannels); z++ {
		if err := s.driveZone(ctx, z, on); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.appendEvent(ctx, "all zones manually switched "+onOff(on), map[string]any{"state": on})
	return firstErr
}

// Schedules returns the loaded schedule set.
func (s *LightingService) Schedules(ctx context.Context) ([]models.LightSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LightSchedule, len(s.schedules))
	copy(out, s.schedules)
	return out, nil
}

// SaveSchedule persists a schedule and reapplies the set immediately.
func (s *LightingService) SaveSchedule(ctx context.Context, sched models.LightSchedule) (int, error) {
	if err := validateSchedule(sched); err != nil {
		return 0, err
	}
	id, err := s.repo.Save(ctx, sched)
	if err != nil {
		return 0, err
	}
	if err := s.reload(ctx); err != nil {
		return id, err
	}
	s.Update(ctx, time.Now(), true)
	return id, nil
}

// DeleteSchedule removes a schedule and reapplies the set immediately.
func (s *LightingService) DeleteSchedule(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.reload(ctx); err != nil {
		return err
	}
	s.Update(ctx, time.Now(), true)
	return nil
}

func validateSchedule(sched models.LightSchedule) error {
	if sched.OnHour < 0 || sched.OnHour > 23 || sched.OffHour < 0 || sched.OffHour > 23 {
		return errors.New("invalid schedule: hours must be 0-23")
	}
	if sched.OnMinute < 0 || sched.OnMinute > 59 || sched.OffMinute < 0 || sched.OffMinute > 59 {
		return errors.New("invalid schedule: minutes must be 0-59")
	}
	for _, z := range sched.AffectedZones {
		if _, ok := zoneChannels[z]; !ok {
			return fmt.Errorf("invalid schedule: %w (%d)", errInvalidZone, z)
		}
	}
	return nil
}

// Status reports zone states and the current schedule verdict.
func (s *LightingService) Status() models.LightingStatus {
	now := time.Now()
	scheduledOn := s.LightsOn(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	states := make(map[int]bool, len(s.zoneStates))
	for z, on := range s.zoneStates {
		states[z] = on
	}
	return models.LightingStatus{
		ZoneStates:  states,
		ScheduledOn: scheduledOn,
		Schedules:   len(s.schedules),
	}
}

func (s *LightingService) appendEvent(ctx context.Context, msg string, meta map[string]any) {
	err := s.events.Append(ctx, models.Event{
		Type:        models.EventLighting,
		Description: msg,
		Metadata:    meta,
	})
	if err != nil {
		s.log.Warnw("lighting event not recorded", "err", err)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
