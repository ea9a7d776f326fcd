// Package recurring plans repeating event series. Given a cadence, a
// duration and a preferred time window it anchors the series on the first
// eligible date, scores candidate start times by how conflict-free the first
// few occurrences are, and returns the best plan found.
package recurring

import (
	"context"
	"time"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/conflict"
	"github.com/calweave/calweave/interval"
	"github.com/calweave/calweave/logging"
)

const (
	// sampleOccurrences caps how many occurrences per candidate are checked
	// against the calendar. Scoring the full series would multiply calendar
	// reads without changing the ranking much.
	sampleOccurrences = 5

	candidateStepMinutes = 15
)

// Plan is a concrete proposal for a recurring series anchor.
type Plan struct {
	StartDate     string // ISO date of the first occurrence
	StartTime     string // "HH:MM"
	EndTime       string // "HH:MM"
	Occurrences   int
	FrequencyDays int
}

// Options configures a Scheduler.
type Options struct {
	Logger logging.Logger

	// Now supplies the current time; candidate dates start tomorrow relative
	// to it. Overridable for deterministic tests.
	Now func() time.Time
}

// Scheduler searches for the best anchor slot of a recurring series.
type Scheduler struct {
	cal  calendar.Calendar
	opts Options
}

// NewScheduler creates a Scheduler over the given calendar capability.
func NewScheduler(cal calendar.Calendar, optFns ...func(o *Options)) *Scheduler {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Scheduler{cal: cal, opts: opts}
}

// WithLogger injects a logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// WithNow overrides the scheduler's clock.
func WithNow(now func() time.Time) func(o *Options) {
	return func(o *Options) { o.Now = now }
}

// FindBestSlot searches for the best fixed time of day for the series. The
// series always anchors on the first candidate date (tomorrow, stepped by the
// cadence); only the start time is searched. Candidate times lie on a
// 15-minute grid inside [preferredStart, preferredEnd] such that the full
// duration still fits, and each is scored by how many of the first few
// occurrences it leaves conflict-free. Unreadable days count as free, so a
// plan is returned whenever any candidate exists, even on a fully busy
// calendar. Returns nil only when the inputs admit no candidates at all.
func (s *Scheduler) FindBestSlot(ctx context.Context, name string, frequencyDays, durationMinutes int, preferredStart, preferredEnd string, weeksAhead int) (*Plan, error) {
	if frequencyDays <= 0 || durationMinutes <= 0 || weeksAhead <= 0 {
		return nil, nil
	}
	windowStart, ok := interval.ToMinutes(preferredStart)
	if !ok {
		return nil, nil
	}
	windowEnd, ok := interval.ToMinutes(preferredEnd)
	if !ok {
		return nil, nil
	}

	times := candidateTimes(windowStart, windowEnd, durationMinutes)
	dates := s.candidateDates(frequencyDays, weeksAhead)
	if len(times) == 0 || len(dates) == 0 {
		return nil, nil
	}

	occurrences := len(dates)
	sample := occurrences
	if sample > sampleOccurrences {
		sample = sampleOccurrences
	}

	started := time.Now()
	busyByOccurrence := s.sampleBusy(ctx, dates[0], frequencyDays, sample)

	bestScore := -1
	bestTime := times[0]
	for _, tm := range times {
		score := scoreCandidate(busyByOccurrence, tm, durationMinutes)
		if score > bestScore {
			bestScore = score
			bestTime = tm
			if bestScore == sample {
				// A fully free time cannot be beaten and ties keep the
				// first-seen candidate anyway.
				break
			}
		}
	}

	best := Plan{
		StartDate:     dates[0].Format("2006-01-02"),
		StartTime:     interval.FormatMinutes(bestTime),
		EndTime:       interval.FormatMinutes(bestTime + durationMinutes),
		Occurrences:   occurrences,
		FrequencyDays: frequencyDays,
	}
	s.logBest(name, best, bestScore, sample, time.Since(started))
	return &best, nil
}

func (s *Scheduler) logBest(name string, plan Plan, score, sample int, elapsed time.Duration) {
	s.opts.Logger.Info("recurring slot planned",
		"name", name,
		"start_date", plan.StartDate,
		"start_time", plan.StartTime,
		"free_occurrences", score,
		"sampled", sample,
		"duration", elapsed,
	)
}

// candidateDates lists anchor dates from tomorrow up to but not including
// tomorrow+weeksAhead weeks, stepping by the series cadence. The series
// occurrence count is the length of this list.
func (s *Scheduler) candidateDates(frequencyDays, weeksAhead int) []time.Time {
	first := s.opts.Now().AddDate(0, 0, 1)
	first = time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, first.Location())
	last := first.AddDate(0, 0, weeksAhead*7)

	var dates []time.Time
	for d := first; d.Before(last); d = d.AddDate(0, 0, frequencyDays) {
		dates = append(dates, d)
	}
	return dates
}

// sampleBusy fetches busy intervals for the first sample occurrences anchored
// at date. A fetch failure marks the day free.
func (s *Scheduler) sampleBusy(ctx context.Context, date time.Time, frequencyDays, sample int) [][]interval.Span {
	busy := make([][]interval.Span, sample)
	for i := 0; i < sample; i++ {
		day := date.AddDate(0, 0, i*frequencyDays).Format("2006-01-02")
		events, err := s.cal.FindEvents(ctx, day, "")
		if err != nil {
			s.opts.Logger.Warn("occurrence sample fetch failed, counting day as free", "date", day, "error", err)
			continue
		}
		busy[i] = conflict.BusyIntervals(events)
	}
	return busy
}

// scoreCandidate counts how many sampled occurrences are conflict-free for a
// series starting at startMin.
func scoreCandidate(busyByOffset [][]interval.Span, startMin, durationMinutes int) int {
	score := 0
	for _, busy := range busyByOffset {
		if !interval.OverlapsAny(startMin, startMin+durationMinutes, busy) {
			score++
		}
	}
	return score
}

// candidateTimes lists 15-minute grid starts inside the window for which the
// full duration still fits.
func candidateTimes(windowStart, windowEnd, durationMinutes int) []int {
	var times []int
	for t := windowStart; t+durationMinutes <= windowEnd; t += candidateStepMinutes {
		times = append(times, t)
	}
	return times
}
