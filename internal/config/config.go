// Package config holds the server settings and their defaults.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the server configuration, built from Default, FromEnv and
// command-line flags in that order.
type Config struct {
	Addr          string        `json:"addr"`
	DataDir       string        `json:"dataDir"`
	WebDir        string        `json:"webDir"`
	RetentionDays int           `json:"retentionDays"`
	SweepInterval time.Duration `json:"sweepInterval"`
	SweepOnWrite  bool          `json:"sweepOnWrite"`
	ArchiveDir    string        `json:"archiveDir"`
	LogLevel      string        `json:"logLevel"`
	LogFormat     string        `json:"logFormat"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Addr:          ":8088",
		DataDir:       "./data/logs",
		RetentionDays: 7,
		SweepInterval: 24 * time.Hour,
		SweepOnWrite:  true,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// Retention returns the retention window. Zero disables deletion.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.DataDir == "" {
		return errors.New("data dir is required")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative, got %d", c.RetentionDays)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}
	switch c.LogFormat {
	case "json", "console", "text":
	default:
		return fmt.Errorf("log format must be json or console, got %q", c.LogFormat)
	}
	return nil
}
