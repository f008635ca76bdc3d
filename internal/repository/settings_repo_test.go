package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"growbox/internal/models"
	"growbox/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

// isUTCRecent matches a time.Time written as UTC "now".
var isUTCRecent = sqlmockArgumentFunc(func(v driver.Value) bool {
	tm, ok := v.(time.Time)
	if !ok {
		return false
	}
	if tm.Location() != time.UTC {
		return false
	}
	now := time.Now().UTC()
	return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
})

func TestSettingsSQLite_SaveCycle_UpsertsSingleRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) {
		err := db.Close()
		if err != nil {

		}
	}(db)

	repo := repository.NewSettingsSQLite(db)

	s := models.CycleSettings{
		Enabled:           true,
		DayOnSeconds:      120,
		DayOffSeconds:     600,
		NightOnSeconds:    60,
		NightOffSeconds:   1800,
		ActiveStartHour:   6,
		ActiveEndHour:     22,
		DailyLimitMinutes: 90,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO watering_settings")).
		WithArgs(
			1, // row id constant
			s.Enabled,
			s.DayOnSeconds,
			s.DayOffSeconds,
			s.NightOnSeconds,
			s.NightOffSeconds,
			s.ActiveStartHour,
			s.ActiveEndHour,
			s.DailyLimitMinutes,
			isUTCRecent,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.SaveCycle(context.Background(), s); err != nil {
		t.Fatalf("SaveCycle() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSettingsSQLite_LoadCycle_NoRowsReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) {
		err := db.Close()
		if err != nil {

		}
	}(db)

	repo := repository.NewSettingsSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT enabled, day_on_s, day_off_s, night_on_s, night_off_s")).
		WithArgs(1).
		WillReturnError(sql.ErrNoRows)

	got, err := repo.LoadCycle(context.Background())
	if err != nil {
		t.Fatalf("LoadCycle() unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("LoadCycle() expected nil for empty table, got: %+v", got)
	}
}

func TestSettingsSQLite_LoadCycle_HappyPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) {
		err := db.Close()
		if err != nil {

		}
	}(db)

	repo := repository.NewSettingsSQLite(db)

	cols := []string{"enabled", "day_on_s", "day_off_s", "night_on_s", "night_off_s", "active_start", "active_end", "daily_limit_min"}
	rows := sqlmock.NewRows(cols).AddRow(true, 120, 600, 60, 1800, 6, 22, 90.0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT enabled, day_on_s, day_off_s, night_on_s, night_off_s")).
		WithArgs(1).
		WillReturnRows(rows)

	got, err := repo.LoadCycle(context.Background())
	if err != nil {
		t.Fatalf("LoadCycle() unexpected error: %v", err)
	}
	if got == nil {
		t.Fatalf("LoadCycle() returned nil settings")
	}
	if !got.Enabled || got.DayOnSeconds != 120 || got.NightOffSeconds != 1800 ||
		got.ActiveStartHour != 6 || got.ActiveEndHour != 22 || got.DailyLimitMinutes != 90 {
		t.Fatalf("LoadCycle() unexpected fields: %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSettingsSQLite_SaveCO2_ExecErrorIsPropagated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) {
		err := db.Close()
		if err != nil {

		}
	}(db)

	repo := repository.NewSettingsSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO co2_settings")).
		WithArgs(1, models.CO2ModeAuto, 1000.0, 500.0, 50.0, 6, 22, sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	err = repo.SaveCO2(context.Background(), models.CO2Settings{
		Mode:           models.CO2ModeAuto,
		DayTargetPPM:   1000,
		NightTargetPPM: 500,
		TolerancePPM:   50,
		DayStartHour:   6,
		DayEndHour:     22,
	})
	if err == nil {
		t.Fatalf("SaveCO2() expected error, got nil")
	}
}

func TestSettingsSQLite_LoadDosing_HappyPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) {
		err := db.Close()
		if err != nil {

		}
	}(db)

	repo := repository.NewSettingsSQLite(db)

	cols := []string{"ec_target", "ec_tolerance", "ph_target", "ph_tolerance", "auto_ec", "auto_ph"}
	rows := sqlmock.NewRows(cols).AddRow(1.8, 0.2, 6.0, 0.3, true, false)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT ec_target, ec_tolerance, ph_target, ph_tolerance, auto_ec, auto_ph")).
		WithArgs(1).
		WillReturnRows(rows)

	got, err := repo.LoadDosing(context.Background())
	if err != nil {
		t.Fatalf("LoadDosing() unexpected error: %v", err)
	}
	if got == nil || got.ECTarget != 1.8 || got.PHTarget != 6.0 || !got.AutoEC || got.AutoPH {
		t.Fatalf("LoadDosing() unexpected fields: %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Helpers

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}
