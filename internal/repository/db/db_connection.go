package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// Conservative pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is not great with many writers
	db.SetMaxIdleConns(1)

	// Pragmas to improve reliability
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA journal_mode=WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA foreign_keys=ON: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA busy_timeout=5000: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaWateringSettings = `
CREATE TABLE IF NOT EXISTS watering_settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    enabled BOOLEAN NOT NULL,
    day_on_s INTEGER NOT NULL,
    day_off_s INTEGER NOT NULL,
    night_on_s INTEGER NOT NULL,
    night_off_s INTEGER NOT NULL,
    active_start INTEGER NOT NULL,
    active_end INTEGER NOT NULL,
    daily_limit_min REAL NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaCO2Settings = `
CREATE TABLE IF NOT EXISTS co2_settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    mode TEXT NOT NULL,
    day_target REAL NOT NULL,
    night_target REAL NOT NULL,
    tolerance REAL NOT NULL,
    day_start INTEGER NOT NULL,
    day_end INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaDosingSettings = `
CREATE TABLE IF NOT EXISTS dosing_settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    ec_target REAL NOT NULL,
    ec_tolerance REAL NOT NULL,
    ph_target REAL NOT NULL,
    ph_tolerance REAL NOT NULL,
    auto_ec BOOLEAN NOT NULL,
    auto_ph BOOLEAN NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaLightSchedules = `
CREATE TABLE IF NOT EXISTS light_schedules (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    on_hour INTEGER NOT NULL,
    on_minute INTEGER NOT NULL,
    off_hour INTEGER NOT NULL,
    off_minute INTEGER NOT NULL,
    enabled BOOLEAN NOT NULL,
    zones TEXT NOT NULL
);
`

const schemaEvents = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    message TEXT NOT NULL,
    meta TEXT
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// In case of panic, rollback to avoid leaving an open transaction
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaWateringSettings,
		schemaCO2Settings,
		schemaDosingSettings,
		schemaLightSchedules,
		schemaEvents,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
