package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "v1.0.0", cfg.Cache.Version)
	assert.Equal(t, int64(100*1024*1024), cfg.Cache.MaxBytes)
	assert.Equal(t, 20, cfg.Cache.TrimMinEntries)
	assert.Equal(t, 24*time.Hour, cfg.Cache.APIMaxAge)
	assert.False(t, cfg.Cache.CountHeaderBytes) // Body bytes only by default
	assert.Equal(t, 5, cfg.Sync.MaxAttempts)
	assert.Equal(t, "/api/", cfg.Origin.APIPrefix)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	home := filepath.Join(t.TempDir(), "shiksha")
	t.Setenv("SHIKSHA_HOME", home)
	t.Setenv("SHIKSHA_ORIGIN", "https://school.example.org")
	t.Setenv("SHIKSHA_CACHE_VERSION", "v2.1.0")
	t.Setenv("SHIKSHA_CACHE_MAX_BYTES", "1048576")
	t.Setenv("SHIKSHA_SYNC_DELIVERY_TIMEOUT", "5s")
	t.Setenv("SHIKSHA_CACHE_COUNT_HEADERS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, home, cfg.BaseDir)
	assert.Equal(t, "https://school.example.org", cfg.Origin.URL)
	assert.Equal(t, "v2.1.0", cfg.Cache.Version)
	assert.Equal(t, int64(1048576), cfg.Cache.MaxBytes)
	assert.Equal(t, 5*time.Second, cfg.Sync.DeliveryTimeout)
	assert.True(t, cfg.Cache.CountHeaderBytes)
	// Unset variables keep their defaults.
	assert.Equal(t, 5, cfg.Sync.MaxAttempts)

	assert.DirExists(t, filepath.Join(home, "logs"))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SHIKSHA_HOME", t.TempDir())

	t.Setenv("SHIKSHA_ORIGIN", "not a url")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SHIKSHA_ORIGIN", "http://localhost:3000")
	t.Setenv("SHIKSHA_SYNC_MAX_ATTEMPTS", "0")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("SHIKSHA_SYNC_MAX_ATTEMPTS", "five")
	_, err = Load()
	assert.Error(t, err)
}

func TestGetPaths(t *testing.T) {
	cfg := &Config{BaseDir: "/data/shiksha"}
	paths := GetPaths(cfg)

	assert.Equal(t, "/data/shiksha/shiksha.db", paths.Database)
	assert.Equal(t, "/data/shiksha/logs", paths.Logs)
}
