package database

import (
	"errors"
	"path/filepath"
	"testing"

	"farm-market-backend/internal/config"
	"farm-market-backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{
		DBDriver:    config.DriverSQLite,
		DatabaseDSN: filepath.Join(t.TempDir(), "nested", "farm.db") + "?_pragma=foreign_keys(1)",
	}
	db, err := Open(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestBootstrapCreatesTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Bootstrap(db, zaptest.NewLogger(t)))

	for _, model := range tables {
		assert.True(t, db.Migrator().HasTable(model), "%T table missing", model)
	}
	assert.True(t, db.Migrator().HasColumn(&models.Farm{}, "website"))
	assert.True(t, db.Migrator().HasColumn(&models.Farm{}, "image_url"))
}

func TestBootstrapIsIdempotentAndQuiet(t *testing.T) {
	db := openTestDB(t)
	core, logs := observer.New(zap.WarnLevel)
	log := zap.New(core)

	require.NoError(t, Bootstrap(db, log))
	require.NoError(t, Bootstrap(db, log))

	assert.Zero(t, logs.Len(), "duplicate column errors must not be reported")
}

func TestBootstrapBackfillsLegacyFarmsTable(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE farms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		country TEXT NOT NULL,
		location TEXT NOT NULL,
		description TEXT,
		rating REAL DEFAULT 0,
		icon TEXT DEFAULT '🌾',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO farms (name, country, location) VALUES ('Old Farm', 'canada', 'Ontario, Canada')`).Error)

	require.NoError(t, Bootstrap(db, zaptest.NewLogger(t)))

	assert.True(t, db.Migrator().HasColumn(&models.Farm{}, "website"))
	assert.True(t, db.Migrator().HasColumn(&models.Farm{}, "image_url"))

	var farm models.Farm
	require.NoError(t, db.First(&farm).Error)
	assert.Equal(t, "Old Farm", farm.Name)
	assert.Empty(t, farm.Website)
}

func TestBootstrapEnablesCascade(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Bootstrap(db, zaptest.NewLogger(t)))

	farm := models.Farm{Name: "Maple", Country: "canada", Location: "Ontario"}
	crop := models.Crop{Name: "Apples", Category: models.CategoryFruits, Season: "Fall", Origin: "Canada"}
	require.NoError(t, db.Create(&farm).Error)
	require.NoError(t, db.Create(&crop).Error)
	require.NoError(t, db.Omit("Farm", "Crop").Create(&models.FarmCrop{FarmID: farm.ID, CropID: crop.ID, Quantity: 1}).Error)

	require.NoError(t, db.Delete(&models.Farm{}, farm.ID).Error)

	var links int64
	require.NoError(t, db.Model(&models.FarmCrop{}).Count(&links).Error)
	assert.Zero(t, links)
}

func TestIsDuplicateColumn(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"sqlite", errors.New("SQL logic error: duplicate column name: website (1)"), true},
		{"postgres", &pgconn.PgError{Code: "42701", Message: `column "website" of relation "farms" already exists`}, true},
		{"postgres other", &pgconn.PgError{Code: "42P01", Message: `relation "farms" does not exist`}, false},
		{"other", errors.New("no such table: farms"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isDuplicateColumn(tt.err))
		})
	}
}

func TestEnsureSQLiteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, ensureSQLiteDir("file:"+filepath.Join(dir, "farm.db")+"?_pragma=foreign_keys(1)"))
	assert.DirExists(t, dir)

	require.NoError(t, ensureSQLiteDir(":memory:"))
	require.NoError(t, ensureSQLiteDir("file:test?mode=memory&cache=shared"))
}
