package hardware

import (
	"context"
	"errors"

	"growbox/internal/models"
)

// Sentinel errors shared by the device clients.
var (
	ErrInvalidChannel      = errors.New("relay channel out of range")
	ErrCircuitOpen         = errors.New("circuit breaker open")
	ErrHardwareUnreachable = errors.New("hardware unreachable")
	ErrHardwareRejected    = errors.New("hardware rejected command")
)

// Gateway is the relay board abstraction the controllers drive.
// GetChannel reports the last commanded state, not a hardware read-back.
type Gateway interface {
	SetChannel(ctx context.Context, channel int, state bool) error
	GetChannel(channel int) bool
	ChannelCount() int
}

// SensorSource produces merged sensor snapshots. Implementations must
// always return a usable snapshot, stale or inert-default if need be,
// alongside any error.
type SensorSource interface {
	ReadSensors(ctx context.Context) (models.SensorSnapshot, error)
}
