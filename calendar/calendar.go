// Package calendar defines the calendar capability contract consumed by the
// engine, the conflict checker and the recurring-slot scheduler. Core code
// depends on this interface, never on a specific provider; adapters live in
// the memory and ics subpackages.
package calendar

import (
	"context"
	"strings"
)

// Event is a calendar entry as the core sees it. Start and End are either a
// combined ISO datetime ("2025-02-14T16:00:00") for timed events or a bare
// date ("2025-02-14") for all-day events.
type Event struct {
	ID          string   `json:"id"`
	Summary     string   `json:"summary"`
	Start       string   `json:"start_time"`
	End         string   `json:"end_time"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	HTMLLink    string   `json:"html_link,omitempty"`
	Guests      []string `json:"guests,omitempty"`
}

// IsAllDay reports whether the event has no time-of-day component.
func (e Event) IsAllDay() bool {
	return !strings.Contains(e.Start, "T")
}

// StartDate returns the date portion of the event start.
func (e Event) StartDate() string {
	if i := strings.IndexByte(e.Start, 'T'); i >= 0 {
		return e.Start[:i]
	}
	return e.Start
}

// DisplaySummary returns the summary or a placeholder for untitled events.
func (e Event) DisplaySummary() string {
	if e.Summary == "" {
		return "(no title)"
	}
	return e.Summary
}

// Draft describes a new event to create.
type Draft struct {
	Summary         string
	Date            string // ISO date YYYY-MM-DD
	Time            string // HH:MM, empty for all-day
	DurationMinutes int
	Description     string
	Location        string
	Guests          []string
}

// FieldUpdate is a sparse patch applied by UpdateEventFields. Nil pointers
// and empty slices leave the corresponding field untouched.
type FieldUpdate struct {
	Time         *string
	Description  *string
	Location     *string
	AddGuests    []string
	RemoveGuests []string
}

// IsEmpty reports whether the patch carries no changes.
func (f FieldUpdate) IsEmpty() bool {
	return f.Time == nil && f.Description == nil && f.Location == nil &&
		len(f.AddGuests) == 0 && len(f.RemoveGuests) == 0
}

// Recurrence describes a repeating event series.
type Recurrence struct {
	Summary       string
	Description   string
	StartDate     string // ISO date YYYY-MM-DD
	StartTime     string // HH:MM
	EndTime       string // HH:MM
	FrequencyDays int
	Occurrences   int
}

// Calendar is the capability interface the core consumes. Implementations
// wrap a provider (in-memory, ICS file, remote API) and surface all failures
// as *CalendarError.
type Calendar interface {
	// AddEvent creates a new event and returns it with ID and link populated.
	AddEvent(ctx context.Context, draft Draft) (Event, error)

	// FindEvents returns events on the given ISO date, ordered by start time.
	// A non-empty query filters by summary substring.
	FindEvents(ctx context.Context, date, query string) ([]Event, error)

	// DeleteEvent removes an event (or a whole recurring series) by id.
	DeleteEvent(ctx context.Context, id string) error

	// UpdateEvent moves an event to a new date and start time, preserving its
	// duration.
	UpdateEvent(ctx context.Context, id, newDate, newTime string) (Event, error)

	// UpdateEventFields applies a sparse patch to an event.
	UpdateEventFields(ctx context.Context, id string, fields FieldUpdate) (Event, error)

	// AddGuests adds guest emails to an event, ignoring duplicates.
	AddGuests(ctx context.Context, id string, emails []string) (Event, error)

	// AddRecurringEvent creates a repeating series and returns its first
	// occurrence carrying the series id.
	AddRecurringEvent(ctx context.Context, rec Recurrence) (Event, error)

	// GetDailyEvents returns all events for the given date, or for today when
	// date is empty.
	GetDailyEvents(ctx context.Context, date string) ([]Event, error)
}
