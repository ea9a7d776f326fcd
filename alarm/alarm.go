// Package alarm computes wake-up recommendations from the next day's first
// timed event, factoring in preparation and travel time. The calculator is
// pure; the Digest runner in this package does the scheduling and delivery.
package alarm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/interval"
)

// DefaultAlarmTime is returned when an event start cannot be parsed.
const DefaultAlarmTime = "08:00"

// DefaultLateStartHour marks a first event as late enough for a relaxed
// morning note.
const DefaultLateStartHour = 12

// Recommendation is a complete alarm suggestion for tomorrow morning.
type Recommendation struct {
	AlarmTime     string // HH:MM
	EventSummary  string
	EventStart    string // HH:MM
	PrepMinutes   int
	TravelMinutes int    // 0 when unknown
	TravelText    string // e.g. "30 mins (25 km)", empty when unknown
}

// FindFirstTimedEvent returns the earliest event with a time of day, or nil
// when the day holds only all-day events.
func FindFirstTimedEvent(events []calendar.Event) *calendar.Event {
	var first *calendar.Event
	for i := range events {
		ev := &events[i]
		if ev.IsAllDay() {
			continue
		}
		if first == nil || ev.Start < first.Start {
			first = ev
		}
	}
	if first == nil {
		return nil
	}
	out := *first
	return &out
}

// CalculateAlarmTime subtracts prep and travel minutes from the event start.
// Unparseable starts fall back to DefaultAlarmTime; subtraction past
// midnight wraps around.
func CalculateAlarmTime(eventStart string, prepMinutes, travelMinutes int) string {
	hour, minute, ok := extractClock(eventStart)
	if !ok {
		return DefaultAlarmTime
	}

	m := hour*60 + minute - prepMinutes - travelMinutes
	for m < 0 {
		m += 24 * 60
	}
	return interval.FormatMinutes(m % (24 * 60))
}

// BuildRecommendation bundles the alarm math with the event details. Pass
// travelMinutes 0 and an empty travelText when travel is unknown.
func BuildRecommendation(ev calendar.Event, prepMinutes, travelMinutes int, travelText string) Recommendation {
	start := ev.Start
	if i := strings.IndexByte(start, 'T'); i >= 0 && len(start) >= i+6 {
		start = start[i+1 : i+6]
	}

	return Recommendation{
		AlarmTime:     CalculateAlarmTime(ev.Start, prepMinutes, travelMinutes),
		EventSummary:  ev.DisplaySummary(),
		EventStart:    start,
		PrepMinutes:   prepMinutes,
		TravelMinutes: travelMinutes,
		TravelText:    travelText,
	}
}

// IsLateStart reports whether the event starts at or after the threshold
// hour. Unparseable starts are not late.
func IsLateStart(eventStart string, thresholdHour int) bool {
	hour, _, ok := extractClock(eventStart)
	if !ok {
		return false
	}
	return hour >= thresholdHour
}

// FormatMessage renders the recommendation as the nightly notification.
func FormatMessage(rec Recommendation, late bool) string {
	lines := []string{
		fmt.Sprintf("Set your alarm for *%s*", rec.AlarmTime),
		fmt.Sprintf("Tomorrow's first event: *%s* at %s", rec.EventSummary, rec.EventStart),
		fmt.Sprintf("Prep time: %d min", rec.PrepMinutes),
	}
	if rec.TravelText != "" {
		lines = append(lines, "Travel: "+rec.TravelText)
	}
	if late {
		lines = append(lines, "\nYour first event is after noon — enjoy a relaxed morning!")
	}
	return strings.Join(lines, "\n")
}

// extractClock pulls (hour, minute) out of an ISO datetime or a bare HH:MM.
func extractClock(raw string) (int, int, bool) {
	if i := strings.IndexByte(raw, 'T'); i >= 0 {
		raw = raw[i+1:]
	}
	if len(raw) > 5 {
		raw = raw[:5]
	}

	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
