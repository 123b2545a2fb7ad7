package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseDir: DefaultBaseDir(),

		Origin: OriginConfig{
			URL:       "http://localhost:3000",
			Listen:    "127.0.0.1:8080",
			APIPrefix: "/api/",
		},

		Cache: CacheConfig{
			Version:        "v1.0.0",
			MaxBytes:       100 * 1024 * 1024,
			TrimMinEntries: 20,
			APIMaxAge:      24 * time.Hour,
			FetchTimeout:   30 * time.Second,
		},

		Sync: SyncConfig{
			MaxAttempts:     5,
			DeliveryTimeout: 30 * time.Second,
			Interval:        5 * time.Minute,
			MinDrainGap:     10 * time.Second,
			ProbeInterval:   15 * time.Second,
		},
	}
}
