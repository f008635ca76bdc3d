package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeAndValidateFilter(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	from := time.Date(2025, 6, 1, 10, 0, 0, 0, loc)
	to := time.Date(2025, 6, 2, 10, 0, 0, 0, loc)

	gotFrom, gotTo, gotType, err := normalizeAndValidateFilter(LogFilter{From: from, To: to, Type: "  watering "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFrom.Location() != time.UTC || gotTo.Location() != time.UTC {
		t.Fatalf("times not normalized to UTC")
	}
	if gotType != "WATERING" {
		t.Fatalf("type = %q, want WATERING", gotType)
	}
}

func TestNormalizeAndValidateFilter_ZeroTimesPass(t *testing.T) {
	gotFrom, gotTo, _, err := normalizeAndValidateFilter(LogFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotFrom.IsZero() || !gotTo.IsZero() {
		t.Fatalf("zero times must stay zero")
	}
}

func TestEventLogList_RejectsInvertedRange(t *testing.T) {
	s := NewEventLogService(&fakeEventRepo{})

	_, err := s.List(context.Background(), LogFilter{
		From: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, errInvalidTimeRange) {
		t.Fatalf("err = %v, want errInvalidTimeRange", err)
	}
}
