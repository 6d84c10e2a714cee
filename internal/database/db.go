package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"farm-market-backend/internal/config"
	"farm-market-backend/internal/logging"
	"farm-market-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// pgDuplicateColumn is the SQLSTATE Postgres reports for ADD COLUMN on an
// existing column.
const pgDuplicateColumn = "42701"

// Tables in creation order: referenced tables first.
var tables = []any{
	&models.Farm{},
	&models.Crop{},
	&models.FarmCrop{},
	&models.User{},
	&models.AuditLog{},
}

// Columns added after the first schema version. Databases created before
// them are upgraded in place.
var columnBackfills = []struct {
	Table  string
	Column string
	Type   string
}{
	{"farms", "website", "TEXT"},
	{"farms", "image_url", "TEXT"},
}

// Open connects to the configured database. The caller owns the handle and
// must release it with Close.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseDSN)
	default:
		if err := ensureSQLiteDir(cfg.DatabaseDSN); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.DatabaseDSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logging.Gorm(log)})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}
	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Bootstrap creates missing tables and backfills late columns. It is safe to
// run on every start.
func Bootstrap(db *gorm.DB, log *zap.Logger) error {
	migrator := db.Migrator()
	for _, model := range tables {
		if migrator.HasTable(model) {
			continue
		}
		if err := migrator.CreateTable(model); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	// The expected duplicate-column failure would otherwise be logged by gorm.
	quiet := db.Session(&gorm.Session{Logger: db.Logger.LogMode(gormlogger.Silent)})
	for _, b := range columnBackfills {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", b.Table, b.Column, b.Type)
		if err := quiet.Exec(stmt).Error; err != nil {
			if isDuplicateColumn(err) {
				continue
			}
			log.Warn("column backfill failed",
				zap.String("table", b.Table),
				zap.String("column", b.Column),
				zap.Error(err))
		}
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgDuplicateColumn
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}

// ensureSQLiteDir creates the directory of a file-backed SQLite DSN.
func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory %s: %w", dir, err)
	}
	return nil
}
