package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"growbox/internal/models"
	"growbox/internal/service"
)

func TestEnvironmentHandlers_ACCommandEnum(t *testing.T) {
	env := &mockEnvironment{}
	mon := &mockMonitoring{}
	r := newTestRouter(&service.Service{Environment: env, Monitoring: mon})

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/environment/ac", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	// power_on routes to SetACPower(true)
	if w := post(`{"command":"power_on"}`); w.Code != http.StatusOK {
		t.Fatalf("power_on status=%d, body=%s", w.Code, w.Body.String())
	}
	if env.acPowerCalls != 1 || !env.lastACPower {
		t.Fatalf("power_on not routed: calls=%d on=%v", env.acPowerCalls, env.lastACPower)
	}

	// set_temperature carries the value
	if w := post(`{"command":"set_temperature","value":24}`); w.Code != http.StatusOK {
		t.Fatalf("set_temperature status=%d", w.Code)
	}
	if env.lastACTemp != 24 {
		t.Fatalf("temperature value not passed: %d", env.lastACTemp)
	}

	// set_mode and set_fan_speed carry the option
	if w := post(`{"command":"set_mode","option":"cool"}`); w.Code != http.StatusOK {
		t.Fatalf("set_mode status=%d", w.Code)
	}
	if env.lastACMode != "cool" {
		t.Fatalf("mode option not passed: %q", env.lastACMode)
	}
	if w := post(`{"command":"set_fan_speed","option":"high"}`); w.Code != http.StatusOK {
		t.Fatalf("set_fan_speed status=%d", w.Code)
	}
	if env.lastACFan != "high" {
		t.Fatalf("fan option not passed: %q", env.lastACFan)
	}

	// Anything outside the closed set → 400, no service call
	before := env.acPowerCalls
	if w := post(`{"command":"self_destruct"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown command, got %d", w.Code)
	}
	if env.acPowerCalls != before {
		t.Fatalf("unknown command reached the service")
	}

	// Hardware failure surfaces as 502
	env.acErr = errors.New("ac power relay: board down")
	if w := post(`{"command":"power_off"}`); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on hardware failure, got %d", w.Code)
	}
}

func TestEnvironmentHandlers_CO2AndFans(t *testing.T) {
	env := &mockEnvironment{co2Settings: models.CO2Settings{Mode: models.CO2ModeAuto, DayTargetPPM: 1200}}
	mon := &mockMonitoring{}
	r := newTestRouter(&service.Service{Environment: env, Monitoring: mon})

	// GET co2 settings
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/environment/co2/settings", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("co2 settings status=%d", w.Code)
	}

	// POST co2 mode
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/environment/co2/mode", bytes.NewBufferString(`{"mode":"manual_on"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("co2 mode status=%d, body=%s", w.Code, w.Body.String())
	}
	if env.lastCO2Mode != models.CO2ModeManualOn {
		t.Fatalf("mode not passed: %q", env.lastCO2Mode)
	}

	// Invalid mode rejected by the service → 400
	env.co2ModeErr = errors.New("invalid co2 mode: auto, manual_on or manual_off")
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/environment/co2/mode", bytes.NewBufferString(`{"mode":"sideways"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid mode, got %d", w.Code)
	}

	// POST fan mode passes the timer values
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/environment/fans", bytes.NewBufferString(`{"mode":"intermittent","on_minutes":5,"off_minutes":10}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("fans status=%d, body=%s", w.Code, w.Body.String())
	}
	if env.lastFanMode != models.FanModeIntermittent || env.lastFanOn != 5 || env.lastFanOff != 10 {
		t.Fatalf("fan params not passed: mode=%q on=%d off=%d", env.lastFanMode, env.lastFanOn, env.lastFanOff)
	}

	// PUT co2 settings applies
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/v1/environment/co2/settings", bytes.NewBufferString(`{"mode":"auto","day_target_ppm":1000,"night_target_ppm":700,"tolerance_ppm":25}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("co2 settings update status=%d", w.Code)
	}
	if env.co2Settings.DayTargetPPM != 1000 {
		t.Fatalf("settings not passed: %+v", env.co2Settings)
	}
}
