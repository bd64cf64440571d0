package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays ACTIONLOG_* environment variables onto cfg. Values that
// fail to parse are ignored.
func FromEnv(cfg *Config) {
	if v := os.Getenv("ACTIONLOG_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("ACTIONLOG_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ACTIONLOG_WEB_DIR"); v != "" {
		cfg.WebDir = v
	}
	if v := os.Getenv("ACTIONLOG_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetentionDays = n
		}
	}
	if v := os.Getenv("ACTIONLOG_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SweepInterval = d
		}
	}
	if v := os.Getenv("ACTIONLOG_SWEEP_ON_WRITE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SweepOnWrite = b
		}
	}
	if v := os.Getenv("ACTIONLOG_ARCHIVE_DIR"); v != "" {
		cfg.ArchiveDir = v
	}
	if v := os.Getenv("ACTIONLOG_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ACTIONLOG_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}
