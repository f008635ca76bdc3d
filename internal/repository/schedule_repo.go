package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"growbox/internal/models"
)

type ScheduleSQLite struct {
	db *sql.DB
}

func NewScheduleSQLite(db *sql.DB) *ScheduleSQLite { return &ScheduleSQLite{db: db} }

// marshalZones converts the zone list to a JSON string for the zones column.
func marshalZones(zones []int) (string, error) {
	if zones == nil {
		zones = []int{}
	}
	b, err := json.Marshal(zones)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalZones parses the zones column back into a slice.
func unmarshalZones(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var zones []int
	if err := json.Unmarshal([]byte(s), &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

// Save inserts a new schedule (ID == 0) or updates an existing one,
// returning the row id either way.
func (r *ScheduleSQLite) Save(ctx context.Context, s models.LightSchedule) (int, error) {
	zonesJSON, err := marshalZones(s.AffectedZones)
	if err != nil {
		return 0, fmt.Errorf("marshal zones: %w", err)
	}

	if s.ID == 0 {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO light_schedules (name, on_hour, on_minute, off_hour, off_minute, enabled, zones)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, s.Name, s.OnHour, s.OnMinute, s.OffHour, s.OffMinute, s.Enabled, zonesJSON)
		if err != nil {
			return 0, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		return int(id), nil
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE light_schedules
		SET name=?, on_hour=?, on_minute=?, off_hour=?, off_minute=?, enabled=?, zones=?
		WHERE id=?
	`, s.Name, s.OnHour, s.OnMinute, s.OffHour, s.OffMinute, s.Enabled, zonesJSON, s.ID)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, sql.ErrNoRows
	}
	return s.ID, nil
}

// List returns all schedules ordered by id.
func (r *ScheduleSQLite) List(ctx context.Context) ([]models.LightSchedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, on_hour, on_minute, off_hour, off_minute, enabled, zones
		FROM light_schedules ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.LightSchedule, 0, 8)
	for rows.Next() {
		var s models.LightSchedule
		var zonesStr string
		if err := rows.Scan(&s.ID, &s.Name, &s.OnHour, &s.OnMinute, &s.OffHour, &s.OffMinute, &s.Enabled, &zonesStr); err != nil {
			return nil, err
		}
		zones, err := unmarshalZones(zonesStr)
		if err != nil {
			return nil, fmt.Errorf("schedule %d zones: %w", s.ID, err)
		}
		s.AffectedZones = zones
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a schedule by id.
func (r *ScheduleSQLite) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM light_schedules WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
