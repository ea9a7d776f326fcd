package calendar

import (
	"errors"
	"fmt"
)

// CalendarError is the single failure kind raised by calendar adapters. The
// engine catches it at the boundary and converts it into a generic
// user-facing error response, never leaking the wrapped provider error.
type CalendarError struct {
	Op  string // operation that failed: "add_event", "find_events", ...
	Err error  // underlying provider error
}

// Error implements the error interface.
func (e *CalendarError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("calendar %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("calendar %s failed", e.Op)
}

// Unwrap exposes the underlying provider error for errors.Is/As.
func (e *CalendarError) Unwrap() error { return e.Err }

// NewError wraps a provider failure for the given operation.
func NewError(op string, err error) *CalendarError {
	return &CalendarError{Op: op, Err: err}
}

// Errorf wraps a formatted provider failure for the given operation.
func Errorf(op, format string, args ...any) *CalendarError {
	return &CalendarError{Op: op, Err: fmt.Errorf(format, args...)}
}

// IsCalendarError reports whether err is (or wraps) a CalendarError.
func IsCalendarError(err error) bool {
	var ce *CalendarError
	return errors.As(err, &ce)
}

// ErrNotFound marks lookups for events that do not exist.
var ErrNotFound = errors.New("event not found")
