package model

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for timestamps assigned by
// actionlog itself (millisecond precision, UTC).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Level is the severity of a user action.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelError:
		return true
	}
	return false
}

// ParseLevel normalises a level string. Empty input maps to LevelInfo.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown level %q", s)
	}
}

// LogEntry represents one user action. Entries are never modified after
// they have been written to a log file.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	UserName  string `json:"userName"`
	CompanyID string `json:"companyId"`
	Event     string `json:"event"`
	Details   string `json:"details"`
	Level     Level  `json:"level"`
}

// Time parses the entry timestamp. ok is false when it is missing or not a
// recognised date.
func (e LogEntry) Time() (time.Time, bool) {
	return ParseTimestamp(e.Timestamp)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the date formats clients are known to send.
// Layouts without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders t with TimestampLayout in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Prepare validates an entry arriving at the API boundary and fills the
// server-side defaults: a missing timestamp becomes now, an empty level
// becomes info.
func (e *LogEntry) Prepare(now time.Time) error {
	required := []struct {
		name  string
		value string
	}{
		{"userName", e.UserName},
		{"companyId", e.CompanyID},
		{"event", e.Event},
		{"details", e.Details},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name, Message: "is required"}
		}
	}

	lvl, err := ParseLevel(string(e.Level))
	if err != nil {
		return &ValidationError{Field: "level", Message: "must be one of info, warning, error"}
	}
	e.Level = lvl

	if strings.TrimSpace(e.Timestamp) == "" {
		e.Timestamp = FormatTimestamp(now)
		return nil
	}
	if _, ok := ParseTimestamp(e.Timestamp); !ok {
		return &ValidationError{Field: "timestamp", Message: "is not an ISO-8601 date"}
	}
	return nil
}

// PrepareAll runs Prepare on every entry and reports the first failure with
// its position.
func PrepareAll(entries []LogEntry, now time.Time) error {
	for i := range entries {
		if err := entries[i].Prepare(now); err != nil {
			if ve, ok := err.(*ValidationError); ok && len(entries) > 1 {
				ve.Field = fmt.Sprintf("[%d].%s", i, ve.Field)
			}
			return err
		}
	}
	return nil
}
