package hardware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"growbox/internal/logger"
)

func newTestBridge(url string) *IRBridge {
	b := NewIRBridge(IRBridgeConfig{Host: "127.0.0.1", Port: 1}, logger.Get(logger.ErrorLevel))
	b.baseURL = url
	return b
}

func TestIRBridge_SendUnknownActionFailsBeforeNetwork(t *testing.T) {
	b := newTestBridge("http://127.0.0.1:1")

	err := b.Send(context.Background(), "airfel_ac", "defrost")
	if !errors.Is(err, ErrHardwareRejected) {
		t.Fatalf("err = %v, want ErrHardwareRejected", err)
	}
}

func TestIRBridge_PowerToggleOnlyWhenStateDiffers(t *testing.T) {
	sent := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sent++
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	defer srv.Close()

	b := newTestBridge(srv.URL)

	if err := b.SetACPower(context.Background(), true); err != nil {
		t.Fatalf("SetACPower on: %v", err)
	}
	// Already on: no transmission.
	if err := b.SetACPower(context.Background(), true); err != nil {
		t.Fatalf("SetACPower repeat: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}

	on, _, _, _ := b.State()
	if !on {
		t.Fatalf("tracked power state not updated")
	}
}

func TestIRBridge_TemperatureStepsIssueDeltaCommands(t *testing.T) {
	var commands []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Device  string `json:"device"`
			Command string `json:"command"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		commands = append(commands, body.Command)
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	defer srv.Close()

	b := newTestBridge(srv.URL) // tracked setpoint starts at 24

	if err := b.SetACTemperature(context.Background(), 21); err != nil {
		t.Fatalf("SetACTemperature: %v", err)
	}
	if len(commands) != 3 {
		t.Fatalf("commands = %d, want 3 steps", len(commands))
	}
	for _, cmd := range commands {
		if cmd != "AIRFEL_TEMP_DOWN" {
			t.Fatalf("unexpected command %s", cmd)
		}
	}

	_, temp, _, _ := b.State()
	if temp != 21 {
		t.Fatalf("tracked temp = %d, want 21", temp)
	}
}

func TestIRBridge_TemperatureClampsToRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	defer srv.Close()

	b := newTestBridge(srv.URL)

	if err := b.SetACTemperature(context.Background(), 99); err != nil {
		t.Fatalf("SetACTemperature: %v", err)
	}
	_, temp, _, _ := b.State()
	if temp != acMaxTemp {
		t.Fatalf("tracked temp = %d, want clamp at %d", temp, acMaxTemp)
	}
}

func TestIRBridge_RejectedReplySurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "error", "message": "no such code"}`))
	}))
	defer srv.Close()

	b := newTestBridge(srv.URL)

	err := b.SetACMode(context.Background(), "heat")
	if !errors.Is(err, ErrHardwareRejected) {
		t.Fatalf("err = %v, want ErrHardwareRejected", err)
	}
	// Rejected commands must not be committed to tracked state.
	_, _, mode, _ := b.State()
	if mode == "heat" {
		t.Fatalf("rejected mode was committed")
	}
	if err := b.SetACFanSpeed(context.Background(), "high"); !errors.Is(err, ErrHardwareRejected) {
		t.Fatalf("fan err = %v, want ErrHardwareRejected", err)
	}
	_, _, _, fan := b.State()
	if fan == "high" {
		t.Fatalf("rejected fan speed was committed")
	}
}
