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
	"growbox/internal/models"
)

// Inert defaults reported when there is no cache to fall back on.
// Chosen so every correction policy sees "nothing to do".
const (
	DefaultPH          = 6.0
	DefaultEC          = 1.8
	DefaultTemperature = 22.0
)

const (
	sensorReadTimeout = 2 * time.Second
	valveFastTimeout  = 100 * time.Millisecond
	valveSlowTimeout  = 500 * time.Millisecond
	pumpCmdTimeout    = 2 * time.Second

	idleBeforeProbe = 60 * time.Second
	probeInterval   = 5 * time.Minute
)

// ArduinoConfig configures the sensor/actuator endpoint client.
type ArduinoConfig struct {
	Host string
	Port int
}

// ArduinoClient talks to the sensor/pump endpoint over HTTP. All calls
// are gated by a shared circuit breaker, which is the single source of
// truth for link health.
type ArduinoClient struct {
	baseURL string
	http    *http.Client
	breaker *CircuitBreaker
	log     *logger.Logger

	mu          sync.Mutex
	cache       models.SensorSnapshot
	haveCache   bool
	lastTraffic time.Time
}

func NewArduinoClient(cfg ArduinoConfig, breaker *CircuitBreaker, log *logger.Logger) *ArduinoClient {
	if breaker == nil {
		breaker = NewCircuitBreaker(0, 0)
	}
	return &ArduinoClient{
		baseURL: fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		http:    &http.Client{},
		breaker: breaker,
		log:     log,
	}
}

// Breaker exposes the link breaker for monitoring.
func (c *ArduinoClient) Breaker() *CircuitBreaker { return c.breaker }

// Available reports whether commands would currently be attempted.
func (c *ArduinoClient) Available() bool { return !c.breaker.IsOpen() }

// sensorPayload mirrors the endpoint's JSON. Pointers: absent or null
// means the probe had no reading.
type sensorPayload struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	CO2         *float64 `json:"co2"`
	PH          *float64 `json:"ph"`
	EC          *float64 `json:"ec"`
}

// ReadSensors fetches a fresh snapshot. On any failure it returns the
// last good snapshot marked stale, or inert defaults if none exists yet,
// together with the error. The returned snapshot is always usable.
func (c *ArduinoClient) ReadSensors(ctx context.Context) (models.SensorSnapshot, error) {
	if c.breaker.IsOpen() {
		return c.fallback(), fmt.Errorf("sensors: %w", ErrCircuitOpen)
	}
	c.touch()

	rctx, cancel := context.WithTimeout(ctx, sensorReadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodGet, c.baseURL+"/api/sensors", nil)
	if err != nil {
		return c.fallback(), err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return c.fallback(), fmt.Errorf("sensors: %v: %w", err, ErrHardwareUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		return c.fallback(), fmt.Errorf("sensors: status %d: %w", resp.StatusCode, ErrHardwareUnreachable)
	}

	var p sensorPayload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		c.breaker.RecordFailure()
		return c.fallback(), fmt.Errorf("sensors: decode: %w", err)
	}

	c.breaker.RecordSuccess()

	snap := models.SensorSnapshot{
		Temperature: p.Temperature,
		Humidity:    p.Humidity,
		CO2:         p.CO2,
		PH:          p.PH,
		EC:          p.EC,
		Timestamp:   time.Now().UTC(),
	}

	c.mu.Lock()
	c.cache = snap
	c.haveCache = true
	c.mu.Unlock()

	return snap, nil
}

// fallback returns the stale cache, or inert defaults when no reading
// has ever succeeded.
func (c *ArduinoClient) fallback() models.SensorSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.haveCache {
		snap := c.cache
		snap.Stale = true
		return snap
	}
	return models.SensorSnapshot{
		Temperature: models.Float(DefaultTemperature),
		PH:          models.Float(DefaultPH),
		EC:          models.Float(DefaultEC),
		Stale:       true,
		Timestamp:   time.Now().UTC(),
	}
}

// SetRelay drives one of the endpoint's own relay outputs (the CO2
// valve channels). One fast attempt, one slower retry.
func (c *ArduinoClient) SetRelay(ctx context.Context, channel int, on bool) error {
	if c.breaker.IsOpen() {
		return fmt.Errorf("relay %d: %w", channel, ErrCircuitOpen)
	}
	c.touch()

	state := "off"
	if on {
		state = "on"
	}
	url := fmt.Sprintf("%s/api/relay?channel=%d&state=%s", c.baseURL, channel, state)

	if err := c.get(ctx, url, valveFastTimeout); err == nil {
		c.breaker.RecordSuccess()
		return nil
	}
	if err := c.get(ctx, url, valveSlowTimeout); err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("relay %d: %v: %w", channel, err, ErrHardwareUnreachable)
	}
	c.breaker.RecordSuccess()
	return nil
}

// DosePump sends a non-blocking dose start command. A reply whose status
// is not an acknowledgement maps to ErrHardwareRejected.
func (c *ArduinoClient) DosePump(ctx context.Context, pumpID string, durationMs int, amountML float64) error {
	if c.breaker.IsOpen() {
		return fmt.Errorf("pump %s: %w", pumpID, ErrCircuitOpen)
	}
	c.touch()

	body, _ := json.Marshal(map[string]any{
		"duration_ms": durationMs,
		"amount_ml":   amountML,
	})

	rctx, cancel := context.WithTimeout(ctx, pumpCmdTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/pumps/%s/dose", c.baseURL, pumpID)
	req, err := http.NewRequestWithContext(rctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("pump %s: %v: %w", pumpID, err, ErrHardwareUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		return fmt.Errorf("pump %s: status %d: %w", pumpID, resp.StatusCode, ErrHardwareUnreachable)
	}

	var reply struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("pump %s: decode: %w", pumpID, err)
	}

	c.breaker.RecordSuccess()

	switch reply.Status {
	case "ok", "accepted", "command_sent":
		return nil
	default:
		return fmt.Errorf("pump %s: status %q: %w", pumpID, reply.Status, ErrHardwareRejected)
	}
}

// PumpState polls one pump's state ("idle" or "running").
func (c *ArduinoClient) PumpState(ctx context.Context, pumpID string) (string, error) {
	if c.breaker.IsOpen() {
		return "", fmt.Errorf("pump %s: %w", pumpID, ErrCircuitOpen)
	}
	c.touch()

	rctx, cancel := context.WithTimeout(ctx, pumpCmdTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/pumps/%s/status", c.baseURL, pumpID)
	req, err := http.NewRequestWithContext(rctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return "", fmt.Errorf("pump %s: %v: %w", pumpID, err, ErrHardwareUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		return "", fmt.Errorf("pump %s: status %d: %w", pumpID, resp.StatusCode, ErrHardwareUnreachable)
	}

	var reply struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("pump %s: decode: %w", pumpID, err)
	}
	c.breaker.RecordSuccess()
	return reply.State, nil
}

// RunReconnect probes the endpoint periodically, but only when the link
// has been idle, so it never competes with live traffic. Blocks until
// ctx is cancelled.
func (c *ArduinoClient) RunReconnect(ctx context.Context) {
	t := time.NewTicker(probeInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.mu.Lock()
			idle := time.Since(c.lastTraffic) >= idleBeforeProbe
			c.mu.Unlock()
			if !idle {
				continue
			}
			if _, err := c.ReadSensors(ctx); err != nil {
				c.log.Debugw("sensor probe failed", "err", err)
			} else {
				c.log.Infow("sensor endpoint reachable again")
			}
		}
	}
}

func (c *ArduinoClient) get(ctx context.Context, url string, timeout time.Duration) error {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (c *ArduinoClient) touch() {
	c.mu.Lock()
	c.lastTraffic = time.Now()
	c.mu.Unlock()
}
