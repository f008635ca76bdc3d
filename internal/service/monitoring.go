package service

import (
	"context"
	"time"

	"growbox/internal/hardware"
	"growbox/internal/models"
)

// relayHealth and irHealth are the link-status slices of the concrete
// hardware clients.
type relayHealth interface {
	Connected() bool
	Simulated() bool
}

type irHealth interface {
	Reached() bool
}

// MonitoringService merges everything into one snapshot. It always
// answers: a dead sensor link degrades the snapshot, it never blocks it.
type MonitoringService struct {
	sensors     hardware.SensorSource
	watering    *WateringService
	environment *EnvironmentService
	lighting    *LightingService
	dosing      *DosingService
	relay       relayHealth
	link        *hardware.CircuitBreaker
	ir          irHealth
}

func NewMonitoringService(sensors hardware.SensorSource, watering *WateringService, environment *EnvironmentService, lighting *LightingService, dosing *DosingService, relay relayHealth, link *hardware.CircuitBreaker, ir irHealth) *MonitoringService {
	return &MonitoringService{
		sensors:     sensors,
		watering:    watering,
		environment: environment,
		lighting:    lighting,
		dosing:      dosing,
		relay:       relay,
		link:        link,
		ir:          ir,
	}
}

// GetStatus returns the merged system snapshot.
func (s *MonitoringService) GetStatus(ctx context.Context) (models.SystemStatus, error) {
	snap, _ := s.sensors.ReadSensors(ctx) // degraded snapshots are still snapshots

	co2, climate := s.environment.Status()

	hw := models.HardwareStatus{}
	if s.relay != nil {
		hw.RelayConnected = s.relay.Connected()
		hw.RelaySimulated = s.relay.Simulated()
	}
	if s.link != nil {
		hw.SensorLinkOpen = s.link.IsOpen()
		hw.SensorFailures = s.link.Failures()
	}
	if s.ir != nil {
		hw.IRBridgeReached = s.ir.Reached()
	}

	return models.SystemStatus{
		Sensors:   snap,
		Watering:  s.watering.Status(),
		CO2:       co2,
		Climate:   climate,
		Lighting:  s.lighting.Status(),
		Dosing:    s.dosing.Status(),
		Hardware:  hw,
		Timestamp: time.Now().UTC(),
	}, nil
}
