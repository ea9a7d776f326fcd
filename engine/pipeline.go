package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/conflict"
	"github.com/calweave/calweave/intent"
	"github.com/calweave/calweave/internal/util"
)

// defaultDurationMinutes applies when a create arrives without a duration.
const defaultDurationMinutes = 60

// A stage enriches a create intent or pauses it with a prompt response. A
// nil Response means the intent moves on to the next stage.
type stage struct {
	name string
	run  func(e *Engine, ctx context.Context, p intent.CreateEvent) (intent.CreateEvent, Response)
}

// The create pipeline, in order: resolve contact names, fill in a missing
// start time, enrich the location, then check conflicts. Whatever survives
// gets written to the calendar.
var createStages = []stage{
	{name: "contacts", run: (*Engine).enrichContacts},
	{name: "time", run: (*Engine).enrichTime},
	{name: "location", run: (*Engine).enrichLocation},
	{name: "conflicts", run: (*Engine).enrichConflicts},
}

// stageRecorder is the optional richer logging surface for pipeline stages;
// logging.AssistantLogger implements it.
type stageRecorder interface {
	LogPipelineStage(stage string, paused bool, dur time.Duration)
}

// calendarCallRecorder is the optional richer logging surface for calendar
// capability calls; logging.AssistantLogger implements it.
type calendarCallRecorder interface {
	LogCalendarCall(op string, dur time.Duration, success bool, err error)
}

func (e *Engine) logStage(name string, paused bool, dur time.Duration) {
	if r, ok := e.opts.Logger.(stageRecorder); ok {
		r.LogPipelineStage(name, paused, dur)
	}
}

func (e *Engine) logCalendarCall(op string, start time.Time, err error) {
	if r, ok := e.opts.Logger.(calendarCallRecorder); ok {
		r.LogCalendarCall(op, time.Since(start), err == nil, err)
	}
}

func (e *Engine) runCreatePipeline(ctx context.Context, p intent.CreateEvent) Response {
	if p.DurationMinutes <= 0 {
		p.DurationMinutes = defaultDurationMinutes
	}

	for _, s := range createStages {
		var paused Response
		start := time.Now()
		p, paused = s.run(e, ctx, p)
		e.logStage(s.name, paused != nil, time.Since(start))
		if paused != nil {
			e.opts.Logger.Info("create paused", "stage", s.name, "event", p.Summary)
			return paused
		}
	}
	return e.createEvent(ctx, p)
}

func (e *Engine) enrichContacts(ctx context.Context, p intent.CreateEvent) (intent.CreateEvent, Response) {
	if len(p.MentionedContacts) == 0 {
		return p, nil
	}

	resolved, unresolved := e.resolveContacts(ctx, p.MentionedContacts)
	if len(unresolved) > 0 {
		pending := PendingContactResolution{
			Create:     &p,
			Resolved:   resolved,
			Unresolved: unresolved,
			Asking:     unresolved[0],
		}
		return p, ContactPrompt{
			Message: fmt.Sprintf("I don't have an email for *%s*. What's their email?", unresolved[0]),
			Name:    unresolved[0],
			Token:   mustToken(pending),
		}
	}

	for _, name := range p.MentionedContacts {
		p.Guests = mergeEmails(p.Guests, resolved[name])
	}
	p.MentionedContacts = nil
	return p, nil
}

func (e *Engine) enrichTime(ctx context.Context, p intent.CreateEvent) (intent.CreateEvent, Response) {
	if p.Time != "" {
		return p, nil
	}

	slots, err := e.opts.Checker.FreeSlots(ctx, p.Date, p.DurationMinutes)
	if err != nil {
		e.opts.Logger.Error("free slot lookup failed", "date", p.Date, "error", err)
		return p, Error{Message: "I couldn't check the calendar for free slots. Please try again later."}
	}
	if len(slots.Suggested) == 0 {
		return p, Error{Message: fmt.Sprintf("No free %d-minute slots left on %s.", p.DurationMinutes, p.Date)}
	}

	options := make([]SlotOption, 0, len(slots.Suggested))
	var lines strings.Builder
	for _, t := range slots.Suggested {
		options = append(options, SlotOption{Time: t, Label: t})
		lines.WriteString("• " + t + "\n")
	}

	pending := PendingEvent{
		Action:          PendingCreate,
		Create:          &p,
		Summary:         p.Summary,
		Date:            p.Date,
		DurationMinutes: p.DurationMinutes,
	}
	return p, SlotSuggestion{
		Message: fmt.Sprintf("No time given for *%s* on %s. Here are some free slots:\n%s",
			p.Summary, p.Date, strings.TrimRight(lines.String(), "\n")),
		Date:         p.Date,
		Slots:        options,
		AllAvailable: slots.AllAvailable,
		Token:        mustToken(pending),
	}
}

func (e *Engine) enrichLocation(ctx context.Context, p intent.CreateEvent) (intent.CreateEvent, Response) {
	if p.Location == "" || e.opts.Places == nil {
		return p, nil
	}

	enriched, err := e.opts.Places.Enrich(ctx, p.Location)
	if err != nil || enriched == nil {
		// Unresolvable locations stay as the user wrote them.
		return p, nil
	}

	if enriched.FormattedAddress != "" {
		p.Location = enriched.DisplayName + ", " + enriched.FormattedAddress
	} else {
		p.Location = enriched.DisplayName
	}
	p.MapsURL = enriched.MapsURL
	return p, nil
}

func (e *Engine) enrichConflicts(ctx context.Context, p intent.CreateEvent) (intent.CreateEvent, Response) {
	res, err := e.opts.Checker.Check(ctx, p.Date, p.Time, p.DurationMinutes, "")
	if err != nil {
		return p, Error{Message: "I couldn't verify the calendar for conflicts. Please try again later."}
	}
	if !res.HasConflict {
		return p, nil
	}

	pending := PendingEvent{
		Action:          PendingCreate,
		Create:          &p,
		Summary:         p.Summary,
		Date:            p.Date,
		Time:            p.Time,
		SuggestedTime:   res.SuggestedTime,
		DurationMinutes: p.DurationMinutes,
	}
	return p, e.buildConflictPrompt(pending, res)
}

// buildConflictPrompt turns a detected conflict into the pause response the
// user resolves via ResolveConflict.
func (e *Engine) buildConflictPrompt(pending PendingEvent, res conflict.Result) ConflictPrompt {
	msg := fmt.Sprintf("⚠️ *Time conflict detected!*\nYour requested time (%s) overlaps with: %s",
		pending.Time, summaryList(res.ConflictingEvents))

	var options []ConflictOption
	if res.SuggestedTime != "" {
		msg += fmt.Sprintf("\nNearest free slot: %s", res.SuggestedTime)
		options = append(options, ConflictOption{Choice: ChoiceSuggested, Label: "Use " + res.SuggestedTime, Time: res.SuggestedTime})
	}
	options = append(options,
		ConflictOption{Choice: ChoiceForce, Label: "Force " + pending.Time, Time: pending.Time},
		ConflictOption{Choice: ChoiceCustom, Label: "Enter custom time"},
		ConflictOption{Choice: ChoiceCancel, Label: "Cancel"},
	)

	return ConflictPrompt{Message: msg, Options: options, Token: mustToken(pending)}
}

func (e *Engine) createEvent(ctx context.Context, p intent.CreateEvent) Response {
	start := time.Now()
	ev, err := e.cal.AddEvent(ctx, calendar.Draft{
		Summary:         p.Summary,
		Date:            p.Date,
		Time:            p.Time,
		DurationMinutes: p.DurationMinutes,
		Description:     p.Description,
		Location:        p.Location,
		Guests:          p.Guests,
	})
	e.logCalendarCall("add_event", start, err)
	if err != nil {
		e.opts.Logger.Error("event creation failed", "event", p.Summary, "error", err)
		return Error{Message: "I understood your event but couldn't save it to the calendar. Please try again later."}
	}

	msg := fmt.Sprintf("✅ Event created: *%s* on %s at %s", p.Summary, p.Date, p.Time)
	if p.Location != "" {
		msg += fmt.Sprintf("\n📍 %s", p.Location)
	}
	if p.MapsURL != "" {
		msg += "\n" + p.MapsURL
	}
	return Success{Message: msg, Event: eventInfoFrom(ev)}
}

// resolveContacts splits names into known (name to email) and unknown.
// Mentions that are already email addresses resolve to themselves without a
// directory lookup. A missing directory leaves every bare name unknown.
func (e *Engine) resolveContacts(ctx context.Context, names []string) (map[string]string, []string) {
	resolved := make(map[string]string, len(names))
	var unresolved []string
	for _, name := range names {
		if util.IsEmail(name) {
			resolved[name] = name
			continue
		}
		if e.opts.Contacts == nil {
			unresolved = append(unresolved, name)
			continue
		}
		c, err := e.opts.Contacts.FindByName(ctx, name)
		if err != nil {
			e.opts.Logger.Warn("contact lookup failed", "name", name, "error", err)
			unresolved = append(unresolved, name)
			continue
		}
		if c == nil {
			unresolved = append(unresolved, name)
			continue
		}
		resolved[name] = c.Email
	}
	return resolved, unresolved
}

// mergeEmails appends addresses not already present, case-insensitively.
func mergeEmails(existing []string, add ...string) []string {
	seen := make(map[string]bool, len(existing))
	for _, g := range existing {
		seen[strings.ToLower(g)] = true
	}
	for _, g := range add {
		if g == "" || seen[strings.ToLower(g)] {
			continue
		}
		existing = append(existing, g)
		seen[strings.ToLower(g)] = true
	}
	return existing
}
