// Package interval implements the minutes-since-midnight time representation
// shared by the conflict and recurring-slot engines. All interval math uses
// half-open [start, end) semantics.
package interval

import (
	"fmt"
	"strconv"
	"strings"
)

// Span is a busy period in minutes from midnight, half-open [Start, End).
type Span struct {
	Start int
	End   int
}

// ToMinutes converts a clock time to minutes from midnight. It accepts a bare
// "HH:MM" (or "H:MM") string as well as the time-of-day portion of a combined
// ISO datetime ("2025-02-14T16:00:00+02:00"). The second return value is
// false on malformed input; ToMinutes never panics.
func ToMinutes(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[i+1:]
		if len(s) < 5 {
			return 0, false
		}
		s = s[:5]
	}
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	// Minute part may carry trailing seconds when the datetime had no 'T'
	// separator trimming; keep only the first two digits.
	minStr := parts[1]
	if len(minStr) > 2 {
		minStr = minStr[:2]
	}
	minute, err := strconv.Atoi(minStr)
	if err != nil {
		return 0, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// FormatMinutes renders minutes from midnight as "HH:MM".
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// OverlapsAny reports whether [start, end) intersects any busy span.
func OverlapsAny(start, end int, busy []Span) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
