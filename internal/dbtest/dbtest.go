// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"farm-market-backend/internal/config"
	"farm-market-backend/internal/database"

	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// Open returns a bootstrapped database stored in the test's temp dir, with
// foreign keys enforced. It is closed when the test ends.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	log := zaptest.NewLogger(t)
	cfg := &config.Config{
		DBDriver:    config.DriverSQLite,
		DatabaseDSN: filepath.Join(t.TempDir(), "farm.db") + "?_pragma=foreign_keys(1)",
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := database.Bootstrap(db, log); err != nil {
		t.Fatalf("bootstrap test database: %v", err)
	}
	return db
}

// Count returns the number of rows of model's table.
func Count(t testing.TB, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}
