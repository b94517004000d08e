package database

import (
	"fmt"

	"taxaudit/internal/config"
	"taxaudit/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured driver and migrates the schema.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver == "sqlite" {
		return NewSQLiteConnection(cfg.SQLitePath)
	}
	return NewConnection(cfg.DSN())
}

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("database.NewConnection: %w", err)
	}

	if err := Migrate(db); err != nil {
		log.Warn().Err(err).Msg("failed to auto-migrate models")
	}

	return db, nil
}

// NewSQLiteConnection opens a pure-Go SQLite database, used for local runs and
// tests ("file::memory:" works too). Migration failures are fatal here.
func NewSQLiteConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("database.NewSQLiteConnection: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("database.NewSQLiteConnection: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the tables of every persisted model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Partner{},
		&model.Payment{},
		&model.WithholdingRate{},
		&model.AuditRun{},
		&model.AuditLog{},
		&model.User{},
	)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}
}
