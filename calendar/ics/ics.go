// Package ics provides a Calendar implementation backed by a single
// iCalendar (.ics) file on disk. Events are stored as VEVENT components;
// recurring series are stored with an RRULE and expanded on read, so they
// show up in date queries like concrete events.
//
// The adapter is meant for local, single-user setups (and for tests that
// need durable calendar state) rather than for shared provider back ends.
package ics

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/internal/util"
	"github.com/calweave/calweave/interval"
	"github.com/calweave/calweave/logging"
)

const defaultDurationMinutes = 60

// Options configures the ICS-backed store.
type Options struct {
	Logger logging.Logger
	// Now supplies the current time; overridable for deterministic tests.
	Now func() time.Time
}

// Store is a file-backed Calendar. Every mutation rewrites the file; a mutex
// serializes access so the adapter is safe for concurrent use within one
// process.
type Store struct {
	path   string
	mu     sync.Mutex
	logger logging.Logger
	now    func() time.Time
}

// Open creates a Store over the given .ics path, creating an empty calendar
// file when none exists.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	s := &Store{path: path, logger: opts.Logger, now: opts.Now}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cal := ical.NewCalendar()
		cal.SetMethod(ical.MethodPublish)
		if err := s.save(cal); err != nil {
			return nil, fmt.Errorf("initialize calendar file: %w", err)
		}
	}
	return s, nil
}

// WithLogger injects a logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// WithNow overrides the store's clock.
func WithNow(now func() time.Time) func(o *Options) {
	return func(o *Options) { o.Now = now }
}

func (s *Store) load() (*ical.Calendar, error) {
	body, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return cal, nil
}

func (s *Store) save(cal *ical.Calendar) error {
	return os.WriteFile(s.path, []byte(cal.Serialize()), 0o644)
}

// AddEvent implements calendar.Calendar.
func (s *Store) AddEvent(_ context.Context, draft calendar.Draft) (calendar.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return calendar.Event{}, calendar.NewError("add_event", err)
	}

	id := util.NewID()
	ve := cal.AddEvent(id)
	ve.SetDtStampTime(s.now().UTC())
	ve.SetSummary(draft.Summary)
	if draft.Description != "" {
		ve.SetDescription(draft.Description)
	}
	if draft.Location != "" {
		ve.SetLocation(draft.Location)
	}
	for _, g := range draft.Guests {
		ve.AddAttendee(g)
	}

	if draft.Time == "" {
		day, derr := time.Parse("2006-01-02", draft.Date)
		if derr != nil {
			return calendar.Event{}, calendar.NewError("add_event", derr)
		}
		ve.SetAllDayStartAt(day)
		ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
	} else {
		start, end, terr := timedRange(draft.Date, draft.Time, draft.DurationMinutes)
		if terr != nil {
			return calendar.Event{}, calendar.NewError("add_event", terr)
		}
		ve.SetStartAt(start)
		ve.SetEndAt(end)
	}

	if err := s.save(cal); err != nil {
		return calendar.Event{}, calendar.NewError("add_event", err)
	}
	ev, _ := veToEvent(ve, "")
	return ev, nil
}

// FindEvents implements calendar.Calendar.
func (s *Store) FindEvents(_ context.Context, date, query string) ([]calendar.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return nil, calendar.NewError("find_events", err)
	}
	return collectForDate(cal, date, query)
}

// DeleteEvent implements calendar.Calendar. Deleting a recurring event's id
// removes the whole series.
func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return calendar.NewError("delete_event", err)
	}

	found := false
	kept := cal.Components[:0:0]
	for _, comp := range cal.Components {
		if ve, ok := comp.(*ical.VEvent); ok && eventUID(ve) == id {
			found = true
			continue
		}
		kept = append(kept, comp)
	}
	if !found {
		return calendar.NewError("delete_event", calendar.ErrNotFound)
	}
	cal.Components = kept

	if err := s.save(cal); err != nil {
		return calendar.NewError("delete_event", err)
	}
	return nil
}

// UpdateEvent implements calendar.Calendar, preserving the event's duration.
func (s *Store) UpdateEvent(_ context.Context, id, newDate, newTime string) (calendar.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return calendar.Event{}, calendar.NewError("update_event", err)
	}
	ve := findVEvent(cal, id)
	if ve == nil {
		return calendar.Event{}, calendar.NewError("update_event", calendar.ErrNotFound)
	}

	duration := veDurationMinutes(ve)
	start, end, terr := timedRange(newDate, newTime, duration)
	if terr != nil {
		return calendar.Event{}, calendar.NewError("update_event", terr)
	}
	ve.SetStartAt(start)
	ve.SetEndAt(end)

	if err := s.save(cal); err != nil {
		return calendar.Event{}, calendar.NewError("update_event", err)
	}
	ev, _ := veToEvent(ve, "")
	return ev, nil
}

// UpdateEventFields implements calendar.Calendar.
func (s *Store) UpdateEventFields(_ context.Context, id string, fields calendar.FieldUpdate) (calendar.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return calendar.Event{}, calendar.NewError("update_event_fields", err)
	}
	ve := findVEvent(cal, id)
	if ve == nil {
		return calendar.Event{}, calendar.NewError("update_event_fields", calendar.ErrNotFound)
	}

	if fields.Time != nil {
		start, _ := ve.GetStartAt()
		duration := veDurationMinutes(ve)
		ns, ne, terr := timedRange(start.Format("2006-01-02"), *fields.Time, duration)
		if terr != nil {
			return calendar.Event{}, calendar.NewError("update_event_fields", terr)
		}
		ve.SetStartAt(ns)
		ve.SetEndAt(ne)
	}
	if fields.Description != nil {
		ve.SetDescription(*fields.Description)
	}
	if fields.Location != nil {
		ve.SetLocation(*fields.Location)
	}
	if len(fields.AddGuests) > 0 {
		existing := attendeeEmails(ve)
		for _, g := range fields.AddGuests {
			if !containsFold(existing, g) {
				ve.AddAttendee(g)
				existing = append(existing, g)
			}
		}
	}
	if len(fields.RemoveGuests) > 0 {
		removeAttendees(ve, fields.RemoveGuests)
	}

	if err := s.save(cal); err != nil {
		return calendar.Event{}, calendar.NewError("update_event_fields", err)
	}
	ev, _ := veToEvent(ve, "")
	return ev, nil
}

// AddGuests implements calendar.Calendar.
func (s *Store) AddGuests(ctx context.Context, id string, emails []string) (calendar.Event, error) {
	return s.UpdateEventFields(ctx, id, calendar.FieldUpdate{AddGuests: emails})
}

// AddRecurringEvent implements calendar.Calendar. The series is stored as a
// single VEVENT with an RRULE; reads expand it per date.
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

	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return calendar.Event{}, calendar.NewError("add_recurring_event", err)
	}

	start, end, terr := timedRange(rec.StartDate, rec.StartTime, endMin-startMin)
	if terr != nil {
		return calendar.Event{}, calendar.NewError("add_recurring_event", terr)
	}

	id := util.NewID()
	ve := cal.AddEvent(id)
	ve.SetDtStampTime(s.now().UTC())
	ve.SetSummary(rec.Summary)
	if rec.Description != "" {
		ve.SetDescription(rec.Description)
	}
	ve.SetStartAt(start)
	ve.SetEndAt(end)
	ve.AddRrule(fmt.Sprintf("FREQ=DAILY;INTERVAL=%d;COUNT=%d", rec.FrequencyDays, rec.Occurrences))

	if err := s.save(cal); err != nil {
		return calendar.Event{}, calendar.NewError("add_recurring_event", err)
	}
	ev, _ := veToEvent(ve, rec.StartDate)
	return ev, nil
}

// GetDailyEvents implements calendar.Calendar. An empty date means today.
func (s *Store) GetDailyEvents(ctx context.Context, date string) ([]calendar.Event, error) {
	if date == "" {
		date = s.now().Format("2006-01-02")
	}
	return s.FindEvents(ctx, date, "")
}

// veToEvent converts a VEVENT to the core event model. For recurring events
// date selects the occurrence to render; an empty date renders the first.
func veToEvent(ve *ical.VEvent, date string) (calendar.Event, bool) {
	ev := calendar.Event{
		ID:      eventUID(ve),
		Summary: propValue(ve, ical.ComponentPropertySummary),
		Guests:  attendeeEmails(ve),
	}
	ev.Description = propValue(ve, ical.ComponentPropertyDescription)
	ev.Location = propValue(ve, ical.ComponentPropertyLocation)

	start, serr := ve.GetStartAt()
	end, eerr := ve.GetEndAt()
	if serr != nil {
		return ev, false
	}
	if eerr != nil {
		end = start.Add(defaultDurationMinutes * time.Minute)
	}

	if isAllDay(ve) {
		ev.Start = start.Format("2006-01-02")
		ev.End = end.Format("2006-01-02")
		return ev, true
	}

	if raw := rruleValue(ve); raw != "" && date != "" {
		occ, ok := occurrenceOn(raw, start, date)
		if !ok {
			return ev, false
		}
		duration := end.Sub(start)
		start = occ
		end = occ.Add(duration)
	}

	ev.Start = start.Format("2006-01-02T15:04:05")
	ev.End = end.Format("2006-01-02T15:04:05")
	return ev, true
}

func collectForDate(cal *ical.Calendar, date, query string) ([]calendar.Event, error) {
	if date == "" {
		return nil, calendar.Errorf("find_events", "date is required")
	}
	var out []calendar.Event
	for _, ve := range cal.Events() {
		ev, ok := veToEvent(ve, date)
		if !ok {
			continue
		}
		if ev.StartDate() != date {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(ev.Summary), strings.ToLower(query)) {
			continue
		}
		out = append(out, ev)
	}
	sortEvents(out)
	return out, nil
}

// occurrenceOn expands an RRULE and returns the occurrence falling on the
// given ISO date, if any.
func occurrenceOn(raw string, dtstart time.Time, date string) (time.Time, bool) {
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return time.Time{}, false
	}
	opt.Dtstart = dtstart
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation("2006-01-02", date, dtstart.Location())
	if err != nil {
		return time.Time{}, false
	}
	occs := rule.Between(day, day.AddDate(0, 0, 1).Add(-time.Second), true)
	if len(occs) == 0 {
		return time.Time{}, false
	}
	return occs[0], true
}

func findVEvent(cal *ical.Calendar, id string) *ical.VEvent {
	for _, ve := range cal.Events() {
		if eventUID(ve) == id {
			return ve
		}
	}
	return nil
}

func eventUID(ve *ical.VEvent) string {
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		return p.Value
	}
	return ""
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func rruleValue(ve *ical.VEvent) string {
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		return p.Value
	}
	return ""
}

func isAllDay(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return false
	}
	if params := p.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(p.Value, "T")
}

func attendeeEmails(ve *ical.VEvent) []string {
	var out []string
	for _, att := range ve.Attendees() {
		if email := att.Email(); email != "" {
			out = append(out, email)
		}
	}
	return out
}

func removeAttendees(ve *ical.VEvent, emails []string) {
	remove := make(map[string]bool, len(emails))
	for _, e := range emails {
		remove[strings.ToLower(e)] = true
	}
	kept := ve.Properties[:0:0]
	for _, p := range ve.Properties {
		if p.IANAToken == string(ical.ComponentPropertyAttendee) {
			email := strings.ToLower(strings.TrimPrefix(p.Value, "mailto:"))
			if remove[email] {
				continue
			}
		}
		kept = append(kept, p)
	}
	ve.Properties = kept
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func veDurationMinutes(ve *ical.VEvent) int {
	start, serr := ve.GetStartAt()
	end, eerr := ve.GetEndAt()
	if serr != nil || eerr != nil || !end.After(start) {
		return defaultDurationMinutes
	}
	return int(end.Sub(start) / time.Minute)
}

func timedRange(date, tm string, durationMin int) (time.Time, time.Time, error) {
	startMin, ok := interval.ToMinutes(tm)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid time %q", tm)
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q", date)
	}
	if durationMin <= 0 {
		durationMin = defaultDurationMinutes
	}
	start := day.Add(time.Duration(startMin) * time.Minute)
	return start, start.Add(time.Duration(durationMin) * time.Minute), nil
}

func sortEvents(events []calendar.Event) {
	sort.Slice(events, func(i, j int) bool { return events[i].Start < events[j].Start })
}

