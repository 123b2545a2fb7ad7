package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Paths contains commonly used file paths.
type Paths struct {
	Database string // Main SQLite database
	Logs     string // Log directory
	Config   string // Optional config file
}

// GetPaths returns all commonly used paths based on config.
func GetPaths(cfg *Config) Paths {
	return Paths{
		Database: filepath.Join(cfg.BaseDir, "shiksha.db"),
		Logs:     filepath.Join(cfg.BaseDir, "logs"),
		Config:   filepath.Join(cfg.BaseDir, ".env"),
	}
}

// DefaultBaseDir returns the default base directory ($XDG_DATA_HOME/shiksha).
func DefaultBaseDir() string {
	if xdg.DataHome == "" {
		return ".shiksha"
	}
	return filepath.Join(xdg.DataHome, "shiksha")
}
