package actionlog

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidArgument matches a 400 response.
	ErrInvalidArgument = errors.New("actionlog: invalid argument")
	// ErrAccessDenied matches a 403 response.
	ErrAccessDenied = errors.New("actionlog: access denied")
	// ErrNotFound matches a 404 response.
	ErrNotFound = errors.New("actionlog: not found")
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("actionlog: queue closed")
)

// TransportError is returned for network failures (Status 0) and non-2xx
// responses. It is never retried.
type TransportError struct {
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("actionlog: %s: %v", e.Message, e.Err)
	case e.Message == "":
		return fmt.Sprintf("actionlog: request failed with status %d", e.Status)
	default:
		return fmt.Sprintf("actionlog: request failed (%d): %s", e.Status, e.Message)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is match the status sentinels.
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrInvalidArgument:
		return e.Status == http.StatusBadRequest
	case ErrAccessDenied:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}
