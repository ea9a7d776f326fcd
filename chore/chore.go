// Package chore tracks recurring household commitments that persist across
// restarts. Chores are created explicitly (never from free-text parsing) and
// are linked to a recurring calendar series once one is scheduled.
package chore

import (
	"context"
	"errors"
)

// Chore is one recurring commitment.
type Chore struct {
	ID              int64
	Name            string
	FrequencyDays   int
	DurationMinutes int
	PreferredStart  string // "HH:MM"
	PreferredEnd    string // "HH:MM"
	NextDue         string // ISO date YYYY-MM-DD
	AssignedTo      string
	LastDone        string // ISO date, empty if never done
	CalendarEventID string // recurring series id, empty until scheduled
	Active          bool
}

// ErrNotFound marks lookups for chores that do not exist.
var ErrNotFound = errors.New("chore not found")

// Store persists chores.
type Store interface {
	// Add inserts a new chore. NextDue defaults to startDate.
	Add(ctx context.Context, c Chore) (Chore, error)

	// Get returns a chore by id, or ErrNotFound.
	Get(ctx context.Context, id int64) (Chore, error)

	// List returns chores ordered by NextDue, optionally only active ones.
	List(ctx context.Context, activeOnly bool) ([]Chore, error)

	// ListDue returns active chores with NextDue on or before the date.
	ListDue(ctx context.Context, date string) ([]Chore, error)

	// MarkDone records completion on doneDate and advances NextDue by the
	// chore's cadence.
	MarkDone(ctx context.Context, id int64, doneDate string) (Chore, error)

	// Delete soft-deletes a chore. Deleting an inactive chore is ErrNotFound.
	Delete(ctx context.Context, id int64) error

	// SetCalendarEventID links the chore to its recurring calendar series.
	SetCalendarEventID(ctx context.Context, id int64, eventID string) error
}
