package hardware

import (
	"context"
	"errors"
	"testing"
	"time"

	"growbox/internal/logger"
)

func newSimRelay() *ModbusRelay {
	return NewModbusRelay(ModbusConfig{
		Host:       "127.0.0.1",
		Port:       4196,
		Channels:   30,
		Simulation: true,
	}, logger.Get(logger.ErrorLevel))
}

func TestCRC16_KnownFrames(t *testing.T) {
	cases := []struct {
		frame []byte
		want  uint16
	}{
		// Classic write-single-coil examples.
		{[]byte{0x01, 0x05, 0x00, 0x00, 0xFF, 0x00}, 0x3A8C},
		{[]byte{0x01, 0x05, 0x00, 0x0F, 0xFF, 0x00}, 0x39BC},
		{[]byte{0x01, 0x05, 0x00, 0x0F, 0x00, 0x00}, 0xC9FD},
	}
	for _, c := range cases {
		if got := crc16(c.frame); got != c.want {
			t.Fatalf("crc16(% X) = %#04x, want %#04x", c.frame, got, c.want)
		}
	}
}

func TestCoilFrame_ChannelOffsetAndCRC(t *testing.T) {
	r := newSimRelay()

	// Software channel 16 (the pump) addresses coil 0x0F on the wire.
	frame := r.coilFrame(16, true)
	want := []byte{0x01, 0x05, 0x00, 0x0F, 0xFF, 0x00, 0xBC, 0x39}
	if len(frame) != len(want) {
		t.Fatalf("frame length = %d, want %d", len(frame), len(want))
	}
	for i := range want {
		if frame[i] != want[i] {
			t.Fatalf("frame[%d] = %#02x, want %#02x (frame % X)", i, frame[i], want[i], frame)
		}
	}

	off := r.coilFrame(16, false)
	if off[4] != 0x00 || off[6] != 0xFD || off[7] != 0xC9 {
		t.Fatalf("off frame mismatch: % X", off)
	}
}

func TestSetChannel_RejectsOutOfRange(t *testing.T) {
	r := newSimRelay()

	for _, ch := range []int{0, -1, 31} {
		err := r.SetChannel(context.Background(), ch, true)
		if !errors.Is(err, ErrInvalidChannel) {
			t.Fatalf("SetChannel(%d) err = %v, want ErrInvalidChannel", ch, err)
		}
	}
	for ch := 1; ch <= 30; ch++ {
		if r.GetChannel(ch) {
			t.Fatalf("channel %d flipped by rejected write", ch)
		}
	}
}

func TestSetChannel_CacheAndIdempotence(t *testing.T) {
	r := newSimRelay()

	var changes int
	r.OnStateChange(func(channel int, state bool) { changes++ })

	if err := r.SetChannel(context.Background(), 5, true); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
	if !r.GetChannel(5) {
		t.Fatalf("GetChannel(5) = false after on command")
	}

	// Same command again: no state-change notification.
	if err := r.SetChannel(context.Background(), 5, true); err != nil {
		t.Fatalf("SetChannel repeat: %v", err)
	}
	if changes != 1 {
		t.Fatalf("changes = %d after duplicate command, want 1", changes)
	}

	if err := r.SetChannel(context.Background(), 5, false); err != nil {
		t.Fatalf("SetChannel off: %v", err)
	}
	if r.GetChannel(5) {
		t.Fatalf("GetChannel(5) = true after off command")
	}
	if changes != 2 {
		t.Fatalf("changes = %d, want 2", changes)
	}
}

func TestSetChannel_OptimisticCacheWhenBoardDown(t *testing.T) {
	// Real mode pointed at a closed port: write fails, cache still holds
	// the commanded state.
	r := NewModbusRelay(ModbusConfig{Host: "127.0.0.1", Port: 1, Channels: 30}, logger.Get(logger.ErrorLevel))

	err := r.SetChannel(context.Background(), 3, true)
	if err == nil {
		t.Fatalf("expected error against closed port")
	}
	if !errors.Is(err, ErrHardwareUnreachable) {
		t.Fatalf("err = %v, want ErrHardwareUnreachable", err)
	}
	if !r.GetChannel(3) {
		t.Fatalf("cache lost commanded state on hardware failure")
	}
	// A single failure is below the breaker threshold; the link still counts
	// as up and the next write is attempted.
	if !r.Connected() {
		t.Fatalf("Connected() = false after one failed write")
	}
}

func TestSetChannel_BreakerOpensAfterFailureRun(t *testing.T) {
	r := NewModbusRelay(ModbusConfig{Host: "127.0.0.1", Port: 1, Channels: 30}, logger.Get(logger.ErrorLevel))

	for i := 0; i < defaultFailureThreshold; i++ {
		if err := r.SetChannel(context.Background(), 3, true); !errors.Is(err, ErrHardwareUnreachable) {
			t.Fatalf("write %d err = %v, want ErrHardwareUnreachable", i, err)
		}
	}
	if r.Connected() {
		t.Fatalf("Connected() = true with the breaker open")
	}

	// An open breaker short-circuits before the socket; the cache still
	// tracks the commanded state.
	if err := r.SetChannel(context.Background(), 3, false); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if r.GetChannel(3) {
		t.Fatalf("cache lost the off command issued while open")
	}
}

func TestRelayWriteAttemptBudget(t *testing.T) {
	// A dead board costs one fast dial plus one short retry per write.
	// Both together must stay well inside a single control tick.
	if relayRetryTimeout > 500*time.Millisecond {
		t.Fatalf("retry timeout = %v, want <= 500ms", relayRetryTimeout)
	}
	if total := relayDialTimeout + relayRetryTimeout; total > 1500*time.Millisecond {
		t.Fatalf("worst-case write attempts take %v, want <= 1.5s", total)
	}
}
