package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Config holds application configuration
type Config struct {
	WorkingDir   string
	AppDataDir   string
	DatabasePath string
	Logger       *slog.Logger
}

// New creates a new configuration instance
func New() *Config {
	cfg := &Config{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}

	cfg.setupDirectories()

	return cfg
}

func (c *Config) setupDirectories() {
	// Set up working directory (temp files)
	tempDir := os.TempDir()
	c.WorkingDir = filepath.Join(tempDir, "pdfsqueeze")

	// Ensure working directory exists
	os.MkdirAll(c.WorkingDir, 0755)

	// Set up app data directory (database, preferences)
	c.AppDataDir = getAppDataDir()
	os.MkdirAll(c.AppDataDir, 0755)

	// Database path
	c.DatabasePath = filepath.Join(c.AppDataDir, "history.sqlite3")
}

func getAppDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "pdfsqueeze")
	}

	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".pdfsqueeze")
}
