package alarm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/chore"
	"github.com/calweave/calweave/logging"
	"github.com/calweave/calweave/parser"
	"github.com/calweave/calweave/place"
)

// Notifier delivers digest messages to the user.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// TravelTimer looks up travel duration between two addresses. Satisfied by
// place.GoogleClient.
type TravelTimer interface {
	TravelTime(ctx context.Context, origin, destination string) (*place.TravelTime, error)
}

const (
	// DefaultPrepMinutes is the morning preparation budget.
	DefaultPrepMinutes = 60

	// Default delivery times, in cron syntax.
	DefaultMorningSpec = "0 8 * * *"
	DefaultNightlySpec = "0 21 * * *"

	summaryMaxTokens = 512
)

const morningSummaryPrompt = "You are a friendly personal assistant. " +
	"Summarize the following calendar events and chores into a warm, " +
	"concise morning briefing. Use emoji sparingly. " +
	"If there are no events or chores, say so cheerfully. " +
	"Keep it under 300 words."

// Options configures a Digest.
type Options struct {
	Logger      logging.Logger
	Completer   parser.Completer
	Chores      chore.Store
	Travel      TravelTimer
	HomeAddress string
	PrepMinutes int
	MorningSpec string
	NightlySpec string
	Now         func() time.Time
}

// Digest builds and delivers the morning briefing and the nightly alarm
// recommendation.
type Digest struct {
	cal      calendar.Calendar
	notifier Notifier
	opts     Options
}

// New creates a digest. The completer, chore store and travel client are
// optional; the digest degrades to what it can gather without them.
func New(cal calendar.Calendar, notifier Notifier, optFns ...func(o *Options)) *Digest {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		PrepMinutes: DefaultPrepMinutes,
		MorningSpec: DefaultMorningSpec,
		NightlySpec: DefaultNightlySpec,
		Now:         time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Digest{cal: cal, notifier: notifier, opts: opts}
}

// WithLogger injects a logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// WithCompleter enables LLM summarization of the morning briefing.
func WithCompleter(c parser.Completer) func(o *Options) {
	return func(o *Options) { o.Completer = c }
}

// WithChores includes due chores in the morning briefing.
func WithChores(s chore.Store) func(o *Options) {
	return func(o *Options) { o.Chores = s }
}

// WithTravel enables travel time in the nightly alarm. home is the origin
// address.
func WithTravel(t TravelTimer, home string) func(o *Options) {
	return func(o *Options) {
		o.Travel = t
		o.HomeAddress = home
	}
}

// WithPrepMinutes overrides the morning preparation budget.
func WithPrepMinutes(minutes int) func(o *Options) {
	return func(o *Options) { o.PrepMinutes = minutes }
}

// WithSchedule overrides the cron specs for the two deliveries.
func WithSchedule(morningSpec, nightlySpec string) func(o *Options) {
	return func(o *Options) {
		o.MorningSpec = morningSpec
		o.NightlySpec = nightlySpec
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) func(o *Options) {
	return func(o *Options) { o.Now = now }
}

// Start schedules both deliveries and returns the running cron instance.
// Call Stop on it to shut down.
func (d *Digest) Start() (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(d.opts.MorningSpec, func() { d.deliver(d.MorningSummary, "morning briefing") }); err != nil {
		return nil, fmt.Errorf("schedule morning briefing: %w", err)
	}
	if _, err := c.AddFunc(d.opts.NightlySpec, func() { d.deliver(d.NightlyAlarm, "nightly alarm") }); err != nil {
		return nil, fmt.Errorf("schedule nightly alarm: %w", err)
	}
	c.Start()
	d.opts.Logger.Info("digest scheduled", "morning", d.opts.MorningSpec, "nightly", d.opts.NightlySpec)
	return c, nil
}

func (d *Digest) deliver(build func(ctx context.Context) (string, error), name string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	msg, err := build(ctx)
	if err != nil {
		d.opts.Logger.Error("digest build failed", "digest", name, "error", err)
		return
	}
	if msg == "" {
		d.opts.Logger.Info("digest skipped", "digest", name)
		return
	}
	if err := d.notifier.Send(ctx, msg); err != nil {
		d.opts.Logger.Error("digest delivery failed", "digest", name, "error", err)
		return
	}
	d.opts.Logger.Info("digest sent", "digest", name)
}

// MorningSummary gathers today's events and due chores into a briefing. Each
// source degrades independently; when both are down a fallback message asks
// the user to check manually.
func (d *Digest) MorningSummary(ctx context.Context) (string, error) {
	eventsText, eventsOK := d.eventsSection(ctx)
	choresText, choresOK := d.choresSection(ctx)

	if !eventsOK && !choresOK {
		return "Good morning! ☀️\n\nI couldn't load your schedule or chores this morning. Check them manually when you get a chance.", nil
	}

	raw := eventsText + "\n\n" + choresText
	if d.opts.Completer == nil {
		return "Good morning! ☀️\n\n" + raw, nil
	}

	summary, err := d.opts.Completer.Complete(ctx, morningSummaryPrompt, raw, summaryMaxTokens)
	if err != nil {
		d.opts.Logger.Warn("morning summary generation failed", "error", err)
		return "Good morning! ☀️\n\n" + raw, nil
	}
	return strings.TrimSpace(summary), nil
}

func (d *Digest) eventsSection(ctx context.Context) (string, bool) {
	events, err := d.cal.GetDailyEvents(ctx, "")
	if err != nil {
		d.opts.Logger.Warn("morning briefing calendar fetch failed", "error", err)
		return "Calendar events today: (unavailable)", false
	}
	if len(events) == 0 {
		return "Calendar events today: None", true
	}

	var b strings.Builder
	b.WriteString("Calendar events today:")
	for _, ev := range events {
		b.WriteString(fmt.Sprintf("\n  %s-%s %s", clockOf(ev.Start), clockOf(ev.End), ev.DisplaySummary()))
	}
	return b.String(), true
}

func (d *Digest) choresSection(ctx context.Context) (string, bool) {
	if d.opts.Chores == nil {
		return "Chores due today: None", true
	}

	today := d.opts.Now().Format("2006-01-02")
	chores, err := d.opts.Chores.ListDue(ctx, today)
	if err != nil {
		d.opts.Logger.Warn("morning briefing chore fetch failed", "error", err)
		return "Chores due today: (unavailable)", false
	}
	if len(chores) == 0 {
		return "Chores due today: None", true
	}

	var b strings.Builder
	b.WriteString("Chores due today:")
	for _, c := range chores {
		line := "\n  - " + c.Name
		if c.AssignedTo != "" {
			line += " (assigned to " + c.AssignedTo + ")"
		}
		b.WriteString(line)
	}
	return b.String(), true
}

// NightlyAlarm builds the alarm recommendation for tomorrow's first timed
// event. An empty string means no notification is needed.
func (d *Digest) NightlyAlarm(ctx context.Context) (string, error) {
	tomorrow := d.opts.Now().AddDate(0, 0, 1).Format("2006-01-02")
	events, err := d.cal.GetDailyEvents(ctx, tomorrow)
	if err != nil {
		return "", fmt.Errorf("nightly alarm: %w", err)
	}

	first := FindFirstTimedEvent(events)
	if first == nil {
		return "", nil
	}

	travelMinutes, travelText := d.travelFor(ctx, *first)
	rec := BuildRecommendation(*first, d.opts.PrepMinutes, travelMinutes, travelText)
	return FormatMessage(rec, IsLateStart(first.Start, DefaultLateStartHour)), nil
}

func (d *Digest) travelFor(ctx context.Context, ev calendar.Event) (int, string) {
	if d.opts.Travel == nil || d.opts.HomeAddress == "" || ev.Location == "" {
		return 0, ""
	}

	tt, err := d.opts.Travel.TravelTime(ctx, d.opts.HomeAddress, ev.Location)
	if err != nil || tt == nil {
		if err != nil {
			d.opts.Logger.Warn("travel time lookup failed", "error", err)
		}
		return 0, ""
	}
	return tt.DurationMinutes, fmt.Sprintf("%s (%s)", tt.DurationText, tt.DistanceText)
}

func clockOf(iso string) string {
	if i := strings.IndexByte(iso, 'T'); i >= 0 && len(iso) >= i+6 {
		return iso[i+1 : i+6]
	}
	return iso
}
