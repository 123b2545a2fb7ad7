// Package config handles application configuration management.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Base directory for all shiksha data (XDG data home by default)
	BaseDir string `env:"SHIKSHA_HOME"`

	// Debug enables verbose logging and SQL tracing
	Debug bool `env:"SHIKSHA_DEBUG"`

	// Origin is the application server the edge proxy sits in front of
	Origin OriginConfig

	// Cache router settings
	Cache CacheConfig

	// Sync queue settings
	Sync SyncConfig
}

// OriginConfig describes the upstream application and the local listener.
type OriginConfig struct {
	// URL of the upstream application, e.g. http://localhost:3000
	URL string `env:"SHIKSHA_ORIGIN"`
	// Listen address for `shiksha serve`
	Listen string `env:"SHIKSHA_LISTEN"`
	// APIPrefix marks API-class request paths
	APIPrefix string `env:"SHIKSHA_API_PREFIX"`
}

// CacheConfig holds cache router configuration.
type CacheConfig struct {
	// Version names the cache partitions (rvs-static-<Version>, ...)
	Version string `env:"SHIKSHA_CACHE_VERSION"`
	// MaxBytes is the dynamic partition ceiling
	MaxBytes int64 `env:"SHIKSHA_CACHE_MAX_BYTES"`
	// TrimMinEntries skips trimming below this many dynamic entries
	TrimMinEntries int `env:"SHIKSHA_CACHE_TRIM_MIN_ENTRIES"`
	// APIMaxAge is how long an API response stays usable offline
	APIMaxAge time.Duration `env:"SHIKSHA_CACHE_API_MAX_AGE"`
	// FetchTimeout bounds each network attempt
	FetchTimeout time.Duration `env:"SHIKSHA_FETCH_TIMEOUT"`
	// CountHeaderBytes adds header bytes to the size used for eviction
	CountHeaderBytes bool `env:"SHIKSHA_CACHE_COUNT_HEADERS"`
}

// SyncConfig holds sync queue configuration.
type SyncConfig struct {
	// MaxAttempts before an entry is abandoned
	MaxAttempts int `env:"SHIKSHA_SYNC_MAX_ATTEMPTS"`
	// DeliveryTimeout bounds each delivery attempt
	DeliveryTimeout time.Duration `env:"SHIKSHA_SYNC_DELIVERY_TIMEOUT"`
	// Interval between periodic drains while online
	Interval time.Duration `env:"SHIKSHA_SYNC_INTERVAL"`
	// MinDrainGap rate-limits drains triggered by connectivity flaps
	MinDrainGap time.Duration `env:"SHIKSHA_SYNC_MIN_DRAIN_GAP"`
	// ProbeURL is polled to decide whether the device is online
	// (defaults to the origin)
	ProbeURL string `env:"SHIKSHA_PROBE_URL"`
	// ProbeInterval between connectivity probes
	ProbeInterval time.Duration `env:"SHIKSHA_PROBE_INTERVAL"`
}

// Load reads configuration from an optional .env file and environment
// variables on top of DefaultConfig.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := ensureDirectories(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadDotEnv loads a .env file if one exists. Variables already set in the
// environment win.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate checks the values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.Origin.URL != "" {
		u, err := url.Parse(c.Origin.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid origin url %q", c.Origin.URL)
		}
	}
	if !strings.HasPrefix(c.Origin.APIPrefix, "/") {
		return fmt.Errorf("api prefix %q must start with /", c.Origin.APIPrefix)
	}
	if c.Cache.MaxBytes <= 0 {
		return fmt.Errorf("cache max bytes must be positive, got %d", c.Cache.MaxBytes)
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("sync max attempts must be at least 1, got %d", c.Sync.MaxAttempts)
	}
	return nil
}

// ensureDirectories creates required directories if they don't exist.
func ensureDirectories(cfg *Config) error {
	dirs := []string{
		cfg.BaseDir,
		filepath.Join(cfg.BaseDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
