// Package memory provides a volatile in-process Calendar implementation. It
// is safe for concurrent access and best suited for tests, examples and
// ephemeral demo setups. Recurring series are expanded into concrete
// occurrences at creation time using RRULE semantics.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/internal/util"
	"github.com/calweave/calweave/interval"
)

const defaultDurationMinutes = 60

// Options configures the in-memory store.
type Options struct {
	// Now supplies the current time; overridable for deterministic tests.
	Now func() time.Time
}

// Store is a volatile Calendar implementation storing events in a process
// local map. Each returned event is a copy to prevent external mutation of
// internal state.
type Store struct {
	mu     sync.RWMutex
	events map[string]calendar.Event
	series map[string][]string // series id -> occurrence event ids
	now    func() time.Time
}

// New constructs an empty in-memory calendar.
func New(optFns ...func(o *Options)) *Store {
	opts := Options{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		events: make(map[string]calendar.Event),
		series: make(map[string][]string),
		now:    opts.Now,
	}
}

// WithNow overrides the store's clock.
func WithNow(now func() time.Time) func(o *Options) {
	return func(o *Options) { o.Now = now }
}

// AddEvent implements calendar.Calendar.
func (s *Store) AddEvent(_ context.Context, draft calendar.Draft) (calendar.Event, error) {
	if draft.Date == "" {
		return calendar.Event{}, calendar.Errorf("add_event", "draft has no date")
	}
	start, end, err := eventTimes(draft.Date, draft.Time, draft.DurationMinutes)
	if err != nil {
		return calendar.Event{}, calendar.NewError("add_event", err)
	}

	ev := calendar.Event{
		ID:          util.NewID(),
		Summary:     draft.Summary,
		Start:       start,
		End:         end,
		Description: draft.Description,
		Location:    draft.Location,
		Guests:      dedupeEmails(nil, draft.Guests),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev
	return cloneEvent(ev), nil
}

// FindEvents implements calendar.Calendar.
func (s *Store) FindEvents(_ context.Context, date, query string) ([]calendar.Event, error) {
	if date == "" {
		return nil, calendar.Errorf("find_events", "date is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []calendar.Event
	for _, ev := range s.events {
		if ev.StartDate() != date {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(ev.Summary), strings.ToLower(query)) {
			continue
		}
		out = append(out, cloneEvent(ev))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

// DeleteEvent implements calendar.Calendar. Deleting a series id removes
// every occurrence of the series.
func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ids, ok := s.series[id]; ok {
		for _, occID := range ids {
			delete(s.events, occID)
		}
		delete(s.series, id)
		return nil
	}
	if _, ok := s.events[id]; !ok {
		return calendar.NewError("delete_event", calendar.ErrNotFound)
	}
	delete(s.events, id)
	return nil
}

// UpdateEvent implements calendar.Calendar, preserving the event's duration.
func (s *Store) UpdateEvent(_ context.Context, id, newDate, newTime string) (calendar.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return calendar.Event{}, calendar.NewError("update_event", calendar.ErrNotFound)
	}

	duration := defaultDurationMinutes
	if startMin, ok := interval.ToMinutes(ev.Start); ok {
		if endMin, ok2 := interval.ToMinutes(ev.End); ok2 && endMin > startMin {
			duration = endMin - startMin
		}
	}
	start, end, err := eventTimes(newDate, newTime, duration)
	if err != nil {
		return calendar.Event{}, calendar.NewError("update_event", err)
	}
	ev.Start = start
	ev.End = end
	s.events[id] = ev
	return cloneEvent(ev), nil
}

// UpdateEventFields implements calendar.Calendar.
func (s *Store) UpdateEventFields(_ context.Context, id string, fields calendar.FieldUpdate) (calendar.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return calendar.Event{}, calendar.NewError("update_event_fields", calendar.ErrNotFound)
	}

	if fields.Time != nil {
		duration := defaultDurationMinutes
		if startMin, ok := interval.ToMinutes(ev.Start); ok {
			if endMin, ok2 := interval.ToMinutes(ev.End); ok2 && endMin > startMin {
				duration = endMin - startMin
			}
		}
		start, end, err := eventTimes(ev.StartDate(), *fields.Time, duration)
		if err != nil {
			return calendar.Event{}, calendar.NewError("update_event_fields", err)
		}
		ev.Start = start
		ev.End = end
	}
	if fields.Description != nil {
		ev.Description = *fields.Description
	}
	if fields.Location != nil {
		ev.Location = *fields.Location
	}
	if len(fields.AddGuests) > 0 {
		ev.Guests = dedupeEmails(ev.Guests, fields.AddGuests)
	}
	if len(fields.RemoveGuests) > 0 {
		remove := make(map[string]bool, len(fields.RemoveGuests))
		for _, g := range fields.RemoveGuests {
			remove[strings.ToLower(g)] = true
		}
		kept := ev.Guests[:0:0]
		for _, g := range ev.Guests {
			if !remove[strings.ToLower(g)] {
				kept = append(kept, g)
			}
		}
		ev.Guests = kept
	}

	s.events[id] = ev
	return cloneEvent(ev), nil
}

// AddGuests implements calendar.Calendar.
func (s *Store) AddGuests(_ context.Context, id string, emails []string) (calendar.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return calendar.Event{}, calendar.NewError("add_guests", calendar.ErrNotFound)
	}
	ev.Guests = dedupeEmails(ev.Guests, emails)
	s.events[id] = ev
	return cloneEvent(ev), nil
}

// AddRecurringEvent implements calendar.Calendar. Occurrences are expanded
// eagerly with an RRULE (FREQ=DAILY;INTERVAL=frequencyDays;COUNT=occurrences)
// so they show up in date queries like any other event. The returned event
// carries the series id, which DeleteEvent treats as "remove the whole
// series".
func (s *Store) AddRecurringEvent(_ context.Context, rec calendar.Recurrence) (calendar.Event, error) {
	if rec.FrequencyDays <= 0 || rec.Occurrences <= 0 {
		return calendar.Event{}, calendar.Errorf("add_recurring_event", "invalid recurrence: every %d days x%d", rec.FrequencyDays, rec.Occurrences)
	}
	startMin, ok := interval.ToMinutes(rec.StartTime)
	if !ok {
		return calendar.Event{}, calendar.Errorf("add_recurring_event", "invalid start time %q", rec.StartTime)
	}
	endMin, ok := interval.ToMinutes(rec.EndTime)
	if !ok || endMin <= startMin {
		return calendar.Event{}, calendar.Errorf("add_recurring_event", "invalid end time %q", rec.EndTime)
	}
	firstDay, err := time.Parse("2006-01-02", rec.StartDate)
	if err != nil {
		return calendar.Event{}, calendar.NewError("add_recurring_event", err)
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.DAILY,
		Interval: rec.FrequencyDays,
		Count:    rec.Occurrences,
		Dtstart:  firstDay.Add(time.Duration(startMin) * time.Minute),
	})
	if err != nil {
		return calendar.Event{}, calendar.NewError("add_recurring_event", err)
	}

	seriesID := util.NewID()
	duration := endMin - startMin

	s.mu.Lock()
	defer s.mu.Unlock()

	var first calendar.Event
	for i, occ := range rule.All() {
		date := occ.Format("2006-01-02")
		start, end, terr := eventTimes(date, rec.StartTime, duration)
		if terr != nil {
			return calendar.Event{}, calendar.NewError("add_recurring_event", terr)
		}
		ev := calendar.Event{
			ID:          util.NewID(),
			Summary:     rec.Summary,
			Start:       start,
			End:         end,
			Description: rec.Description,
		}
		s.events[ev.ID] = ev
		s.series[seriesID] = append(s.series[seriesID], ev.ID)
		if i == 0 {
			first = ev
			first.ID = seriesID
		}
	}
	return cloneEvent(first), nil
}

// GetDailyEvents implements calendar.Calendar. An empty date means today.
func (s *Store) GetDailyEvents(ctx context.Context, date string) ([]calendar.Event, error) {
	if date == "" {
		date = s.now().Format("2006-01-02")
	}
	return s.FindEvents(ctx, date, "")
}

// eventTimes renders draft date/time into Start/End strings. An empty time
// produces an all-day event.
func eventTimes(date, tm string, durationMin int) (string, string, error) {
	if tm == "" {
		return date, date, nil
	}
	startMin, ok := interval.ToMinutes(tm)
	if !ok {
		return "", "", fmt.Errorf("invalid time %q", tm)
	}
	if durationMin <= 0 {
		durationMin = defaultDurationMinutes
	}
	endMin := startMin + durationMin
	endDate := date
	if endMin >= 24*60 {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			return "", "", fmt.Errorf("invalid date %q", date)
		}
		endDate = day.AddDate(0, 0, 1).Format("2006-01-02")
		endMin -= 24 * 60
	}
	start := fmt.Sprintf("%sT%s:00", date, interval.FormatMinutes(startMin))
	end := fmt.Sprintf("%sT%s:00", endDate, interval.FormatMinutes(endMin))
	return start, end, nil
}

func cloneEvent(ev calendar.Event) calendar.Event {
	out := ev
	out.Guests = append([]string(nil), ev.Guests...)
	return out
}

func dedupeEmails(existing, add []string) []string {
	seen := make(map[string]bool, len(existing)+len(add))
	var out []string
	for _, g := range existing {
		key := strings.ToLower(g)
		if !seen[key] {
			seen[key] = true
			out = append(out, g)
		}
	}
	for _, g := range add {
		key := strings.ToLower(g)
		if !seen[key] {
			seen[key] = true
			out = append(out, g)
		}
	}
	return out
}
