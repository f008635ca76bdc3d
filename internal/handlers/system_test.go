package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"growbox/internal/models"
	"growbox/internal/service"
)

func TestHealthHandler(t *testing.T) {
	r := newTestRouter(&service.Service{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("health status=%d", w.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != statusOK {
		t.Fatalf("unexpected health body: %s", w.Body.String())
	}
}

func TestStatusHandler(t *testing.T) {
	mon := &mockMonitoring{status: models.SystemStatus{
		Sensors:  models.SensorSnapshot{PH: models.Float(6.1), EC: models.Float(1.7)},
		Watering: models.WateringStatus{PumpOn: true},
		Hardware: models.HardwareStatus{RelayConnected: true, SensorFailures: 0},
	}}
	r := newTestRouter(&service.Service{Monitoring: mon})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var st models.SystemStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Sensors.PH == nil || *st.Sensors.PH != 6.1 || !st.Watering.PumpOn {
		t.Fatalf("unexpected status: %+v", st)
	}

	mon.err = errors.New("boom")
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
