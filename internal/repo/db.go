// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/leadvane/adkey-backend/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
// When trace is true, GORM queries are instrumented with OpenTelemetry spans.
func OpenSQLite(path string, trace bool) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if trace {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all domain tables, then
// applies the one index GORM tags cannot express: the partial unique index
// that limits each user to a single incomplete funnel.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.AccessGrant{},
		&domain.FunnelState{},
		&domain.StoredKey{},
		&domain.AdminLogEntry{},
	); err != nil {
		return err
	}
	return db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_funnels_user_open ON funnels(user_id) WHERE completed = 0;",
	).Error
}
