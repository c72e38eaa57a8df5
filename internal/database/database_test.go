package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/comigor/jarvis-chat/internal/config"
)

func TestOpen_SQLite(t *testing.T) {
	db, err := Open(config.DatabaseConfig{
		Driver:       "sqlite",
		FilePath:     filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.Equal(t, "sqlite", db.Dialector.Name())

	var timeout int
	require.NoError(t, db.Raw("PRAGMA busy_timeout").Scan(&timeout).Error)
	require.Equal(t, 10000, timeout)

	var fk int
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	require.Equal(t, 1, fk)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestLogLevel(t *testing.T) {
	require.Equal(t, logger.Silent, logLevel("silent"))
	require.Equal(t, logger.Error, logLevel("ERROR"))
	require.Equal(t, logger.Info, logLevel("info"))
	require.Equal(t, logger.Warn, logLevel(""))
}
