package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"growbox/internal/models"
)

type SettingsSQLite struct {
	db *sql.DB
}

func NewSettingsSQLite(db *sql.DB) *SettingsSQLite {
	return &SettingsSQLite{db: db}
}

// Every settings table holds exactly one row.
const settingsRowID = 1

const (
	upsertCycleSQL = `
		INSERT INTO watering_settings (id, enabled, day_on_s, day_off_s, night_on_s, night_off_s, active_start, active_end, daily_limit_min, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enabled=excluded.enabled,
			day_on_s=excluded.day_on_s,
			day_off_s=excluded.day_off_s,
			night_on_s=excluded.night_on_s,
			night_off_s=excluded.night_off_s,
			active_start=excluded.active_start,
			active_end=excluded.active_end,
			daily_limit_min=excluded.daily_limit_min,
			updated_at=excluded.updated_at
	`

	selectCycleSQL = `
		SELECT enabled, day_on_s, day_off_s, night_on_s, night_off_s, active_start, active_end, daily_limit_min
		FROM watering_settings WHERE id=?
	`

	upsertCO2SQL = `
		INSERT INTO co2_settings (id, mode, day_target, night_target, tolerance, day_start, day_end, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode=excluded.mode,
			day_target=excluded.day_target,
			night_target=excluded.night_target,
			tolerance=excluded.tolerance,
			day_start=excluded.day_start,
			day_end=excluded.day_end,
			updated_at=excluded.updated_at
	`

	selectCO2SQL = `
		SELECT mode, day_target, night_target, tolerance, day_start, day_end
		FROM co2_settings WHERE id=?
	`

	upsertDosingSQL = `
		INSERT INTO dosing_settings (id, ec_target, ec_tolerance, ph_target, ph_tolerance, auto_ec, auto_ph, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ec_target=excluded.ec_target,
			ec_tolerance=excluded.ec_tolerance,
			ph_target=excluded.ph_target,
			ph_tolerance=excluded.ph_tolerance,
			auto_ec=excluded.auto_ec,
			auto_ph=excluded.auto_ph,
			updated_at=excluded.updated_at
	`

	selectDosingSQL = `
		SELECT ec_target, ec_tolerance, ph_target, ph_tolerance, auto_ec, auto_ph
		FROM dosing_settings WHERE id=?
	`
)

// SaveCycle upserts the single watering_settings row.
func (r *SettingsSQLite) SaveCycle(ctx context.Context, s models.CycleSettings) error {
	_, err := r.db.ExecContext(ctx, upsertCycleSQL,
		settingsRowID,
		s.Enabled,
		s.DayOnSeconds,
		s.DayOffSeconds,
		s.NightOnSeconds,
		s.NightOffSeconds,
		s.ActiveStartHour,
		s.ActiveEndHour,
		s.DailyLimitMinutes,
		time.Now().UTC(),
	)
	return err
}

// LoadCycle fetches the watering settings; nil means nothing stored yet.
func (r *SettingsSQLite) LoadCycle(ctx context.Context) (*models.CycleSettings, error) {
	row := r.db.QueryRowContext(ctx, selectCycleSQL, settingsRowID)

	var s models.CycleSettings
	if err := row.Scan(
		&s.Enabled,
		&s.DayOnSeconds,
		&s.DayOffSeconds,
		&s.NightOnSeconds,
		&s.NightOffSeconds,
		&s.ActiveStartHour,
		&s.ActiveEndHour,
		&s.DailyLimitMinutes,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// SaveCO2 upserts the single co2_settings row.
func (r *SettingsSQLite) SaveCO2(ctx context.Context, s models.CO2Settings) error {
	_, err := r.db.ExecContext(ctx, upsertCO2SQL,
		settingsRowID,
		s.Mode,
		s.DayTargetPPM,
		s.NightTargetPPM,
		s.TolerancePPM,
		s.DayStartHour,
		s.DayEndHour,
		time.Now().UTC(),
	)
	return err
}

// LoadCO2 fetches the CO2 settings; nil means nothing stored yet.
func (r *SettingsSQLite) LoadCO2(ctx context.Context) (*models.CO2Settings, error) {
	row := r.db.QueryRowContext(ctx, selectCO2SQL, settingsRowID)

	var s models.CO2Settings
	if err := row.Scan(
		&s.Mode,
		&s.DayTargetPPM,
		&s.NightTargetPPM,
		&s.TolerancePPM,
		&s.DayStartHour,
		&s.DayEndHour,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// SaveDosing upserts the single dosing_settings row.
func (r *SettingsSQLite) SaveDosing(ctx context.Context, s models.DosingSettings) error {
	_, err := r.db.ExecContext(ctx, upsertDosingSQL,
		settingsRowID,
		s.ECTarget,
		s.ECTolerance,
		s.PHTarget,
		s.PHTolerance,
		s.AutoEC,
		s.AutoPH,
		time.Now().UTC(),
	)
	return err
}

// LoadDosing fetches the dosing settings; nil means nothing stored yet.
func (r *SettingsSQLite) LoadDosing(ctx context.Context) (*models.DosingSettings, error) {
	row := r.db.QueryRowContext(ctx, selectDosingSQL, settingsRowID)

	var s models.DosingSettings
	if err := row.Scan(
		&s.ECTarget,
		&s.ECTolerance,
		&s.PHTarget,
		&s.PHTolerance,
		&s.AutoEC,
		&s.AutoPH,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
