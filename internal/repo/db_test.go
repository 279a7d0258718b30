package repo

import (
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestAutoMigrate_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("second automigrate: %v", err)
	}
}

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	if _, err := OpenSQLite("/definitely/missing/dir/app.db", false); err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}

func TestOpenSQLite_CreatesFile(t *testing.T) {
	path := t.TempDir() + "/app.db"
	db, err := OpenSQLite(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
