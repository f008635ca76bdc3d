package hardware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"growbox/internal/logger"
)

// AC temperature limits and IR pacing.
const (
	acMinTemp = 16
	acMaxTemp = 30

	irSendTimeout = 3 * time.Second
	irStepPause   = 200 * time.Millisecond
)

// airfelCommands maps logical actions to the codes the bridge knows for
// the Airfel unit.
var airfelCommands = map[string]string{
	"power":      "AIRFEL_POWER",
	"temp_up":    "AIRFEL_TEMP_UP",
	"temp_down":  "AIRFEL_TEMP_DOWN",
	"mode_auto":  "AIRFEL_MODE_AUTO",
	"mode_cool":  "AIRFEL_MODE_COOL",
	"mode_heat":  "AIRFEL_MODE_HEAT",
	"mode_dry":   "AIRFEL_MODE_DRY",
	"mode_fan":   "AIRFEL_MODE_FAN",
	"fan_auto":   "AIRFEL_FAN_AUTO",
	"fan_low":    "AIRFEL_FAN_LOW",
	"fan_medium": "AIRFEL_FAN_MED",
	"fan_high":   "AIRFEL_FAN_HIGH",
}

// IRBridgeConfig configures the ESP32 IR transmitter client.
type IRBridgeConfig struct {
	Host string
	Port int
}

// IRBridge drives an IR-controlled AC unit through an ESP32 transmitter.
// The AC has no feedback channel, so the bridge tracks the state it has
// commanded and moves temperature by repeated step codes.
type IRBridge struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger

	mu      sync.Mutex
	powerOn bool
	temp    int
	mode    string
	fan     string
	reached bool
}

func NewIRBridge(cfg IRBridgeConfig, log *logger.Logger) *IRBridge {
	return &IRBridge{
		baseURL: fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		http:    &http.Client{},
		log:     log,
		temp:    24,
		mode:    "cool",
		fan:     "auto",
	}
}

// Send transmits one logical action for a device. Unknown actions fail
// before any network traffic.
func (b *IRBridge) Send(ctx context.Context, device, action string) error {
	code, ok := airfelCommands[action]
	if !ok {
		return fmt.Errorf("ir action %q: %w", action, ErrHardwareRejected)
	}

	body, _ := json.Marshal(map[string]string{
		"device":  device,
		"command": code,
	})

	rctx, cancel := context.WithTimeout(ctx, irSendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodPost, b.baseURL+"/ir/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		b.setReached(false)
		return fmt.Errorf("ir send %s: %v: %w", action, err, ErrHardwareUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.setReached(false)
		return fmt.Errorf("ir send %s: status %d: %w", action, resp.StatusCode, ErrHardwareUnreachable)
	}

	var reply struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("ir send %s: decode: %w", action, err)
	}
	b.setReached(true)

	if reply.Status != "ok" && reply.Status != "success" {
		return fmt.Errorf("ir send %s: %s: %w", action, reply.Message, ErrHardwareRejected)
	}
	return nil
}

// SetACPower toggles power only when the tracked state differs.
func (b *IRBridge) SetACPower(ctx context.Context, on bool) error {
	b.mu.Lock()
	if b.powerOn == on {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := b.Send(ctx, "airfel_ac", "power"); err != nil {
		return err
	}
	b.mu.Lock()
	b.powerOn = on
	b.mu.Unlock()
	return nil
}

// SetACTemperature steps the setpoint one degree at a time. A failed
// step stops the walk; the tracked state keeps the degrees already sent.
func (b *IRBridge) SetACTemperature(ctx context.Context, target int) error {
	if target < acMinTemp {
		target = acMinTemp
	}
	if target > acMaxTemp {
		target = acMaxTemp
	}

	b.mu.Lock()
	current := b.temp
	b.mu.Unlock()

	action := "temp_up"
	if target < current {
		action = "temp_down"
	}

	for current != target {
		if err := b.Send(ctx, "airfel_ac", action); err != nil {
			return fmt.Errorf("stopped at %d°C: %w", current, err)
		}
		if action == "temp_up" {
			current++
		} else {
			current--
		}
		b.mu.Lock()
		b.temp = current
		b.mu.Unlock()
		time.Sleep(irStepPause)
	}
	return nil
}

// SetACMode switches the operating mode (auto, cool, heat, dry, fan).
func (b *IRBridge) SetACMode(ctx context.Context, mode string) error {
	if err := b.Send(ctx, "airfel_ac", "mode_"+mode); err != nil {
		return err
	}
	b.mu.Lock()
	b.mode = mode
	b.mu.Unlock()
	return nil
}

// SetACFanSpeed switches the fan speed (auto, low, medium, high).
func (b *IRBridge) SetACFanSpeed(ctx context.Context, speed string) error {
	if err := b.Send(ctx, "airfel_ac", "fan_"+speed); err != nil {
		return err
	}
	b.mu.Lock()
	b.fan = speed
	b.mu.Unlock()
	return nil
}

// State returns the tracked (commanded) AC state.
func (b *IRBridge) State() (powerOn bool, temp int, mode, fan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.powerOn, b.temp, b.mode, b.fan
}

// Reached reports whether the last transmission got through.
func (b *IRBridge) Reached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reached
}

func (b *IRBridge) setReached(ok bool) {
	b.mu.Lock()
	b.reached = ok
	b.mu.Unlock()
}
