package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"growbox/internal/models"
	"growbox/internal/service"
)

func TestLogsHandler_ListAndValidation(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	events := []models.Event{
		{EventID: "e1", OccurredAt: now, Type: "WATERING", Description: "pump switched on"},
		{EventID: "e2", OccurredAt: now.Add(1 * time.Second), Type: "CO2", Description: "valve switched off"},
	}
	logs := &mockEventLog{resp: events}
	r := newTestRouter(&service.Service{EventLog: logs})

	// Invalid 'from' → 400
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs/?from=notatime", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// Valid range and type (lowercase type should be normalized to upper in service call)
	w = httptest.NewRecorder()
	q := "/api/v1/logs/?from=" + now.Format(time.RFC3339) + "&to=" + now.Add(2*time.Second).Format(time.RFC3339) + "&type=watering"
	req = httptest.NewRequest(http.MethodGet, q, nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int            `json:"count"`
		Events []models.Event `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if logs.lastType != "WATERING" {
		t.Fatalf("expected lastType WATERING, got %q", logs.lastType)
	}

	// Inverted range → 400
	w = httptest.NewRecorder()
	q = "/api/v1/logs/?from=" + now.Add(time.Hour).Format(time.RFC3339) + "&to=" + now.Format(time.RFC3339)
	req = httptest.NewRequest(http.MethodGet, q, nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 inverted range, got %d", w.Code)
	}
}

func TestLogsHandler_DateOnlyToIsEndOfDay(t *testing.T) {
	logs := &mockEventLog{}
	r := newTestRouter(&service.Service{EventLog: logs})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs/?to=2025-08-01", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	wantDay := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	if logs.lastTo.Before(wantDay.Add(23 * time.Hour)) {
		t.Fatalf("date-only 'to' not extended to end of day: %v", logs.lastTo)
	}
}
