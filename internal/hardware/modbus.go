package hardware

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"growbox/internal/logger"
)

// ModbusRelay defaults.
const (
	defaultRelayChannels = 30
	defaultUnitID        = 0x01
	relayDialTimeout     = 1 * time.Second
	relayRetryTimeout    = 500 * time.Millisecond
	relayWriteSettle     = 100 * time.Millisecond

	funcWriteSingleCoil = 0x05
)

// ModbusConfig configures the relay board client.
type ModbusConfig struct {
	Host       string
	Port       int
	UnitID     byte
	Channels   int
	Simulation bool
}

// ModbusRelay drives a multi-channel relay board over a raw TCP socket
// carrying Modbus-RTU frames. Channels are numbered 1..Channels matching
// the board's silk-screen labels; the wire frame uses 0-based coil
// addresses, hence the -1 offset in the frame builder.
//
// The state cache is updated before the hardware write, so GetChannel
// always reflects the last commanded state even when the board is down.
type ModbusRelay struct {
	addr       string
	unitID     byte
	channels   int
	simulation bool
	log        *logger.Logger

	// onChange fires when a channel's commanded state flips.
	onChange func(channel int, state bool)

	// breaker is the single source of truth for board reachability.
	breaker *CircuitBreaker

	mu     sync.Mutex
	states []bool
}

func NewModbusRelay(cfg ModbusConfig, log *logger.Logger) *ModbusRelay {
	if cfg.Channels <= 0 {
		cfg.Channels = defaultRelayChannels
	}
	if cfg.UnitID == 0 {
		cfg.UnitID = defaultUnitID
	}
	return &ModbusRelay{
		addr:       fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		unitID:     cfg.UnitID,
		channels:   cfg.Channels,
		simulation: cfg.Simulation,
		log:        log,
		breaker:    NewCircuitBreaker(0, 0),
		states:     make([]bool, cfg.Channels),
	}
}

// OnStateChange registers a callback fired when a channel's commanded
// state flips. Must be set before the relay is shared across goroutines.
func (r *ModbusRelay) OnStateChange(fn func(channel int, state bool)) {
	r.onChange = fn
}

// SetChannel commands one relay channel. The cache is updated first;
// a hardware failure leaves the cache at the commanded value and returns
// an error wrapping ErrHardwareUnreachable.
func (r *ModbusRelay) SetChannel(ctx context.Context, channel int, state bool) error {
	if channel < 1 || channel > r.channels {
		return fmt.Errorf("channel %d: %w", channel, ErrInvalidChannel)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	changed := r.states[channel-1] != state
	r.states[channel-1] = state
	if changed && r.onChange != nil {
		r.onChange(channel, state)
	}

	if r.simulation {
		if changed {
			r.log.Debugw("relay simulated", "channel", channel, "state", state)
		}
		return nil
	}

	if r.breaker.IsOpen() {
		return fmt.Errorf("relay %s: %w", r.addr, ErrCircuitOpen)
	}

	if err := r.writeCoil(ctx, channel, state); err != nil {
		if r.breaker.RecordFailure() {
			r.log.Warnw("relay link circuit opened", "addr", r.addr)
		}
		r.log.Warnw("relay write failed", "channel", channel, "err", err)
		return fmt.Errorf("write coil %d: %w", channel, err)
	}

	r.breaker.RecordSuccess()
	return nil
}

// GetChannel returns the last commanded state. Out-of-range reads are false.
func (r *ModbusRelay) GetChannel(channel int) bool {
	if channel < 1 || channel > r.channels {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[channel-1]
}

func (r *ModbusRelay) ChannelCount() int { return r.channels }

// Connected reports whether writes would currently be attempted.
// Simulation mode always reports connected.
func (r *ModbusRelay) Connected() bool {
	if r.simulation {
		return true
	}
	return !r.breaker.IsOpen()
}

// Breaker exposes the link breaker for monitoring.
func (r *ModbusRelay) Breaker() *CircuitBreaker { return r.breaker }

func (r *ModbusRelay) Simulated() bool { return r.simulation }

// writeCoil sends one write-single-coil frame, one fast attempt then one
// slower retry. Each attempt opens a fresh socket; the board drops idle
// connections anyway.
func (r *ModbusRelay) writeCoil(ctx context.Context, channel int, state bool) error {
	frame := r.coilFrame(channel, state)

	if err := r.sendFrame(ctx, frame, relayDialTimeout); err == nil {
		return nil
	}
	if err := r.sendFrame(ctx, frame, relayRetryTimeout); err != nil {
		return fmt.Errorf("%s: %v: %w", r.addr, err, ErrHardwareUnreachable)
	}
	return nil
}

func (r *ModbusRelay) sendFrame(ctx context.Context, frame []byte, timeout time.Duration) error {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if _, err := conn.Write(frame); err != nil {
		return err
	}
	// Let the board latch before the socket closes.
	time.Sleep(relayWriteSettle)
	return nil
}

// coilFrame builds the Modbus-RTU write-single-coil request for a
// 1-based channel number.
func (r *ModbusRelay) coilFrame(channel int, state bool) []byte {
	value := byte(0x00)
	if state {
		value = 0xFF
	}
	frame := []byte{r.unitID, funcWriteSingleCoil, 0x00, byte(channel - 1), value, 0x00}
	crc := crc16(frame)
	return append(frame, byte(crc&0xFF), byte(crc>>8))
}

// crc16 is the Modbus CRC-16 (poly 0xA001, init 0xFFFF), appended
// low byte first.
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
