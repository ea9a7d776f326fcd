// Package conflict implements the conflict detection and free-slot search
// engine: given a day's busy intervals and a proposed interval it reports
// overlaps and suggests the nearest free alternative, and it produces free
// slot lists for "no time given" scheduling.
package conflict

import (
	"context"
	"time"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/interval"
	"github.com/calweave/calweave/logging"
)

// Day window defaults for the nearest-slot search (07:00-22:00) and for the
// free-slot grid (08:00-20:00).
const (
	DefaultDayStart = 7 * 60
	DefaultDayEnd   = 22 * 60

	DefaultSlotDayStart = 8 * 60
	DefaultSlotDayEnd   = 20 * 60

	// DefaultMaxSlots is the number of suggested slots surfaced to the user.
	DefaultMaxSlots = 5
)

// Result of a conflict check against calendar events. When HasConflict is
// false, ConflictingEvents is empty and SuggestedTime is "".
type Result struct {
	HasConflict       bool
	ConflictingEvents []calendar.Event
	SuggestedTime     string // "HH:MM", empty when no alternative fits
}

// FreeSlotResult bundles a diverse spread of suggested slots with the full
// availability list so callers can validate arbitrary user-typed times.
type FreeSlotResult struct {
	Suggested    []string
	AllAvailable []string
}

// Options configures a Checker.
type Options struct {
	Logger logging.Logger

	// FailClosed makes Check return the fetch error instead of reporting
	// "no conflict" when the calendar is unreachable. The default is
	// fail-open: availability over strict correctness, since a false
	// negative merely risks a double-booking the user can still fix.
	FailClosed bool

	// DayStart / DayEnd bound the nearest-slot search in minutes from
	// midnight.
	DayStart int
	DayEnd   int

	// SlotDayStart / SlotDayEnd bound the free-slot grid.
	SlotDayStart int
	SlotDayEnd   int

	// Now supplies the current time, used to filter past slots on same-day
	// requests. Overridable for deterministic tests.
	Now func() time.Time
}

// Checker runs conflict checks and free-slot searches against a calendar.
type Checker struct {
	cal  calendar.Calendar
	opts Options
}

// NewChecker creates a Checker over the given calendar capability.
func NewChecker(cal calendar.Calendar, optFns ...func(o *Options)) *Checker {
	opts := Options{
		Logger:       logging.NoOpLogger{},
		DayStart:     DefaultDayStart,
		DayEnd:       DefaultDayEnd,
		SlotDayStart: DefaultSlotDayStart,
		SlotDayEnd:   DefaultSlotDayEnd,
		Now:          time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Checker{cal: cal, opts: opts}
}

// WithLogger injects a logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// WithFailClosed switches the checker to reject scheduling when the calendar
// is unreachable.
func WithFailClosed() func(o *Options) {
	return func(o *Options) { o.FailClosed = true }
}

// WithDayWindow overrides the nearest-slot search bounds.
func WithDayWindow(start, end int) func(o *Options) {
	return func(o *Options) {
		o.DayStart = start
		o.DayEnd = end
	}
}

// WithNow overrides the checker's clock.
func WithNow(now func() time.Time) func(o *Options) {
	return func(o *Options) { o.Now = now }
}

// Check reports whether a proposed event on date at startTime for
// durationMinutes overlaps existing events. excludeEventID skips one event
// (self-exclusion for reschedules); pass "" to check against everything.
//
// A fetch failure is treated as no conflict unless the checker was built
// with WithFailClosed.
func (c *Checker) Check(ctx context.Context, date, startTime string, durationMinutes int, excludeEventID string) (Result, error) {
	events, err := c.cal.FindEvents(ctx, date, "")
	if err != nil {
		if c.opts.FailClosed {
			return Result{}, err
		}
		c.opts.Logger.Error("conflict check fetch failed, assuming free", "date", date, "error", err)
		return Result{}, nil
	}

	if excludeEventID != "" {
		kept := events[:0:0]
		for _, ev := range events {
			if ev.ID != excludeEventID {
				kept = append(kept, ev)
			}
		}
		events = kept
	}

	busy := BusyIntervals(events)

	reqStart, ok := interval.ToMinutes(startTime)
	if !ok {
		c.opts.Logger.Warn("invalid start time for conflict check", "start_time", startTime)
		return Result{}, nil
	}
	reqEnd := reqStart + durationMinutes

	if !interval.OverlapsAny(reqStart, reqEnd, busy) {
		return Result{}, nil
	}

	var conflicting []calendar.Event
	for _, ev := range events {
		st, ok1 := interval.ToMinutes(ev.Start)
		et, ok2 := interval.ToMinutes(ev.End)
		if ok1 && ok2 && !ev.IsAllDay() && interval.Overlaps(reqStart, reqEnd, st, et) {
			conflicting = append(conflicting, ev)
		}
	}

	return Result{
		HasConflict:       true,
		ConflictingEvents: conflicting,
		SuggestedTime:     FindNearestFreeSlot(busy, durationMinutes, reqStart, c.opts.DayStart, c.opts.DayEnd),
	}, nil
}

// FreeSlots fetches events for a date and returns available slots of the
// given duration: a spread of up to DefaultMaxSlots suggestions plus the full
// availability list. Past times are filtered out when the date is today. Any
// fetch failure yields empty lists (best effort).
func (c *Checker) FreeSlots(ctx context.Context, date string, durationMinutes int) (FreeSlotResult, error) {
	events, err := c.cal.FindEvents(ctx, date, "")
	if err != nil {
		c.opts.Logger.Error("slot suggestion fetch failed", "date", date, "error", err)
		return FreeSlotResult{}, nil
	}

	busy := BusyIntervals(events)

	nowMin := -1
	now := c.opts.Now()
	if date == now.Format("2006-01-02") {
		nowMin = now.Hour()*60 + now.Minute()
	}

	all := FindFreeSlots(busy, durationMinutes, 0, c.opts.SlotDayStart, c.opts.SlotDayEnd, nowMin)
	return FreeSlotResult{
		Suggested:    SpreadSlots(all, DefaultMaxSlots),
		AllAvailable: all,
	}, nil
}

// BusyIntervals extracts busy spans from events, skipping all-day entries
// and entries without parseable times.
func BusyIntervals(events []calendar.Event) []interval.Span {
	var busy []interval.Span
	for _, ev := range events {
		if ev.IsAllDay() {
			continue
		}
		st, ok1 := interval.ToMinutes(ev.Start)
		et, ok2 := interval.ToMinutes(ev.End)
		if ok1 && ok2 {
			busy = append(busy, interval.Span{Start: st, End: et})
		}
	}
	return busy
}

// EventDurationMinutes computes an event's duration from its start and end
// times, defaulting to 60 minutes when they are missing or inverted.
func EventDurationMinutes(ev calendar.Event) int {
	st, ok1 := interval.ToMinutes(ev.Start)
	et, ok2 := interval.ToMinutes(ev.End)
	if ok1 && ok2 && et > st {
		return et - st
	}
	return 60
}

// FindNearestFreeSlot searches for the nearest free slot of the given
// duration. It scans forward from requestedStart in 15-minute steps,
// skipping the requested instant itself (it is known to conflict), then
// backward from requestedStart-15 down to dayStart. Returns "HH:MM" or ""
// when no slot fits within [dayStart, dayEnd).
func FindNearestFreeSlot(busy []interval.Span, durationMinutes, requestedStart, dayStart, dayEnd int) string {
	fits := func(candidate int) bool {
		end := candidate + durationMinutes
		if candidate < dayStart || end > dayEnd {
			return false
		}
		return !interval.OverlapsAny(candidate, end, busy)
	}

	for t := requestedStart; t+durationMinutes <= dayEnd; t += 15 {
		if t != requestedStart && fits(t) {
			return interval.FormatMinutes(t)
		}
	}
	for t := requestedStart - 15; t >= dayStart; t -= 15 {
		if fits(t) {
			return interval.FormatMinutes(t)
		}
	}
	return ""
}

// FindFreeSlots lists available slot start times of the given duration on a
// 30-minute grid within [dayStart, dayEnd). maxSlots caps the result
// (0 = unlimited). nowMinutes filters out past starts for same-day requests;
// pass a negative value to disable the filter.
func FindFreeSlots(busy []interval.Span, durationMinutes, maxSlots, dayStart, dayEnd, nowMinutes int) []string {
	start := dayStart
	if nowMinutes >= 0 && nowMinutes > start {
		start = nowMinutes
		if rem := start % 30; rem != 0 {
			start += 30 - rem
		}
	}

	var slots []string
	for t := start; t+durationMinutes <= dayEnd; t += 30 {
		if maxSlots > 0 && len(slots) >= maxSlots {
			break
		}
		if !interval.OverlapsAny(t, t+durationMinutes, busy) {
			slots = append(slots, interval.FormatMinutes(t))
		}
	}
	return slots
}

// SpreadSlots picks up to max evenly distributed slots from a list so
// suggestions cover the whole day instead of clustering in the morning.
func SpreadSlots(all []string, max int) []string {
	n := len(all)
	if n <= max {
		return append([]string(nil), all...)
	}
	if max == 1 {
		return []string{all[n/2]}
	}
	out := make([]string, 0, max)
	for i := 0; i < max; i++ {
		idx := (i*(n-1) + (max-1)/2) / (max - 1)
		out = append(out, all[idx])
	}
	return out
}
