package repository

import (
	"context"
	"database/sql"
	"time"

	"growbox/internal/models"
	"growbox/internal/repository/db"
)

// InitDB opens the SQLite store and ensures the schema exists.
func InitDB(path string) (*sql.DB, error) {
	return db.InitDB(path)
}

type SettingsRepo interface {
	LoadCycle(ctx context.Context) (*models.CycleSettings, error)
	SaveCycle(ctx context.Context, s models.CycleSettings) error
	LoadCO2(ctx context.Context) (*models.CO2Settings, error)
	SaveCO2(ctx context.Context, s models.CO2Settings) error
	LoadDosing(ctx context.Context) (*models.DosingSettings, error)
	SaveDosing(ctx context.Context, s models.DosingSettings) error
}

type ScheduleRepo interface {
	List(ctx context.Context) ([]models.LightSchedule, error)
	Save(ctx context.Context, s models.LightSchedule) (int, error)
	Delete(ctx context.Context, id int) error
}

type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.Event, error)
}

type Repository struct {
	Settings  SettingsRepo
	Schedules ScheduleRepo
	Events    EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Settings:  NewSettingsSQLite(db),
		Schedules: NewScheduleSQLite(db),
		Events:    NewEventSQLite(db),
	}
}
