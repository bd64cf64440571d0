package storage

import "errors"

var (
	// ErrNotFound is returned when the named log file does not exist.
	ErrNotFound = errors.New("log file not found")
	// ErrAccessDenied is returned when a name would resolve outside the storage root.
	ErrAccessDenied = errors.New("access denied")
	// ErrExists is returned by MergeCreate when the file is already there.
	ErrExists = errors.New("log file already exists")
)
