// Package actionlog is the client SDK for the actionlog server. It batches
// user-action entries per stream and delivers them over HTTP.
package actionlog

import "time"

// Level is the severity of an entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// TimestampLayout is the ISO-8601 form used for Entry.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Entry is one user action.
type Entry struct {
	Timestamp string `json:"timestamp,omitempty"`
	UserName  string `json:"userName"`
	CompanyID string `json:"companyId"`
	Event     string `json:"event"`
	Details   string `json:"details"`
	Level     Level  `json:"level,omitempty"`
}

// FormatTime renders t the way the server stores timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
