package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/openhood/bannerd/internal/config"
	"github.com/openhood/bannerd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	}

	db, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())
	return db
}

func TestNewAndMigrate(t *testing.T) {
	db := newTestDB(t)

	assert.Equal(t, "sqlite", db.Driver())
	assert.True(t, db.Migrator().HasTable(&models.BannerSlide{}))
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(config.DatabaseConfig{Driver: "oracle"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}

func TestCreateAndQuerySlide(t *testing.T) {
	db := newTestDB(t)

	slide := &models.BannerSlide{
		Title:    "Welcome",
		MediaRef: "/banner-images/welcome.png",
	}
	require.NoError(t, db.Create(slide).Error)
	assert.False(t, slide.ID.IsZero())

	var found models.BannerSlide
	require.NoError(t, db.First(&found, "id = ?", slide.ID).Error)
	assert.Equal(t, "Welcome", found.Title)
	assert.Equal(t, models.ResolutionPending, found.ResolutionState)
}

func TestTransactionRollback(t *testing.T) {
	db := newTestDB(t)

	err := db.Transaction(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&models.BannerSlide{Title: "tx", MediaRef: "/banner/x.png"}).Error; err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.BannerSlide{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStats(t *testing.T) {
	db := newTestDB(t)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Contains(t, stats, "open_connections")
}
