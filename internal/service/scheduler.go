package service

import (
	"context"
	"time"

	"growbox/internal/hardware"
	"growbox/internal/logger"
)

// Loop timing.
const (
	DefaultTick = 3 * time.Second

	lightingForceInterval = 60 * time.Second
	fanTimerInterval      = 60 * time.Second
)

// intervalTask is a slow job piggybacking on the main loop.
type intervalTask struct {
	name     string
	interval time.Duration
	lastRun  time.Time
	fn       func(ctx context.Context)
}

// SchedulerService drives the whole control plane from one goroutine:
// one sensor read per tick, handed to the sensor-consuming controllers,
// then the time-driven controllers, then the slow interval tasks.
type SchedulerService struct {
	sensors     hardware.SensorSource
	watering    *WateringService
	environment *EnvironmentService
	lighting    *LightingService
	dosing      *DosingService
	log         *logger.Logger

	tasks        []*intervalTask
	lastResetDay int
}

func NewSchedulerService(sensors hardware.SensorSource, watering *WateringService, environment *EnvironmentService, lighting *LightingService, dosing *DosingService, log *logger.Logger) *SchedulerService {
	s := &SchedulerService{
		sensors:      sensors,
		watering:     watering,
		environment:  environment,
		lighting:     lighting,
		dosing:       dosing,
		log:          log,
		lastResetDay: time.Now().Day(),
	}

	s.AddTask("lighting_force_check", lightingForceInterval, func(ctx context.Context) {
		s.lighting.Update(ctx, time.Now(), true)
	})
	s.AddTask("fan_timer", fanTimerInterval, func(ctx context.Context) {
		s.environment.UpdateFans(ctx)
	})
	return s
}

// AddTask registers a job run at most once per interval.
func (s *SchedulerService) AddTask(name string, interval time.Duration, fn func(ctx context.Context)) {
	s.tasks = append(s.tasks, &intervalTask{name: name, interval: interval, fn: fn})
}

// Run blocks until ctx is cancelled. At startup the lights are driven to
// their scheduled state before the first tick.
func (s *SchedulerService) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = DefaultTick
	}

	s.log.Infow("control loop starting", "tick", tick)
	s.lighting.Update(ctx, time.Now(), true)

	t := time.NewTicker(tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Infow("control loop stopped")
			return
		case <-t.C:
			s.step(ctx)
		}
	}
}

// step is one loop pass. The sensor read happens before any controller
// update so every consumer sees the same snapshot.
func (s *SchedulerService) step(ctx context.Context) {
	now := time.Now()

	snap, err := s.sensors.ReadSensors(ctx)
	if err != nil {
		s.log.Debugw("sensor read degraded", "stale", snap.Stale, "err", err)
	}

	s.environment.Update(ctx, snap)
	s.dosing.Update(ctx, snap)

	s.lighting.Update(ctx, now, false)
	s.watering.Update(ctx)

	// Daily totals reset shortly after midnight, once per day.
	if now.Hour() == 0 && now.Day() != s.lastResetDay {
		s.lastResetDay = now.Day()
		s.dosing.ResetDailyTotals(ctx)
	}

	for _, task := range s.tasks {
		if now.Sub(task.lastRun) < task.interval {
			continue
		}
		task.lastRun = now
		task.fn(ctx)
	}
}
