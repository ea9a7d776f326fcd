// Package engine orchestrates calendar actions extracted from conversational
// text. It parses a message into intents, enriches them (contacts, free
// slots, places), checks conflicts and executes against the calendar. Actions
// that need user input pause into an opaque token and resume through
// ResolveConflict, ResolveContact, SelectSlot or ConfirmBatchCancel.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/chore"
	"github.com/calweave/calweave/conflict"
	"github.com/calweave/calweave/contact"
	"github.com/calweave/calweave/intent"
	"github.com/calweave/calweave/logging"
	"github.com/calweave/calweave/parser"
	"github.com/calweave/calweave/place"
	"github.com/calweave/calweave/recurring"
)

// EventContext identifies the event the conversation is currently about, so
// a follow-up like "add a location to it" knows its target.
type EventContext struct {
	EventID string
	Summary string
	Date    string
	Time    string
}

// Options configures an Engine.
type Options struct {
	Parser    parser.Parser
	Contacts  contact.Store
	Places    place.Enricher
	Checker   *conflict.Checker
	Scheduler *recurring.Scheduler
	Chores    chore.Store
	Logger    logging.Logger
}

// Engine executes scheduling actions against a calendar.
type Engine struct {
	cal  calendar.Calendar
	opts Options
}

// New creates an engine on top of a calendar. The conflict checker and the
// recurring-slot scheduler default to ones built on the same calendar; the
// parser, contact store, place enricher and chore store are optional and the
// features needing them degrade when absent.
func New(cal calendar.Calendar, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if al, ok := opts.Logger.(*logging.AssistantLogger); ok {
		opts.Logger = al.WithComponent("engine")
	}
	if opts.Checker == nil {
		opts.Checker = conflict.NewChecker(cal, conflict.WithLogger(opts.Logger))
	}
	if opts.Scheduler == nil {
		opts.Scheduler = recurring.NewScheduler(cal, recurring.WithLogger(opts.Logger))
	}
	return &Engine{cal: cal, opts: opts}
}

// WithParser injects the intent parser.
func WithParser(p parser.Parser) func(o *Options) {
	return func(o *Options) { o.Parser = p }
}

// WithContacts injects the contact directory.
func WithContacts(s contact.Store) func(o *Options) {
	return func(o *Options) { o.Contacts = s }
}

// WithPlaces injects the place enricher.
func WithPlaces(e place.Enricher) func(o *Options) {
	return func(o *Options) { o.Places = e }
}

// WithChecker overrides the conflict checker.
func WithChecker(c *conflict.Checker) func(o *Options) {
	return func(o *Options) { o.Checker = c }
}

// WithScheduler overrides the recurring-slot scheduler.
func WithScheduler(s *recurring.Scheduler) func(o *Options) {
	return func(o *Options) { o.Scheduler = s }
}

// WithChores injects the chore store.
func WithChores(s chore.Store) func(o *Options) {
	return func(o *Options) { o.Chores = s }
}

// WithLogger injects a logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// ProcessText parses a message and executes the extracted intents. A single
// intent runs through the full pipeline and may pause; multiple intents run
// as a batch that always completes. lastEvent, when non-nil, is injected
// into modify intents that arrived without a target.
func (e *Engine) ProcessText(ctx context.Context, text string, lastEvent *EventContext) Response {
	if e.opts.Parser == nil {
		return Error{Message: "I can't understand free-form messages right now. Please try again later."}
	}

	intents, err := e.opts.Parser.Parse(ctx, text)
	if err != nil {
		e.opts.Logger.Error("intent extraction failed", "error", err)
		return Error{Message: "Sorry, something went wrong while reading your message. Please try again."}
	}
	if len(intents) == 0 {
		return NoAction{Message: "I didn't find anything to schedule in that. Try something like: Dinner with Dana tomorrow at 19:00."}
	}

	for i, it := range intents {
		if mod, ok := it.(intent.ModifyEvent); ok {
			intents[i] = injectEventContext(mod, lastEvent)
		}
	}

	if len(intents) == 1 {
		return e.ExecuteIntent(ctx, intents[0])
	}
	return e.executeBatch(ctx, intents)
}

// ExecuteIntent runs one already-extracted intent through the full pipeline.
func (e *Engine) ExecuteIntent(ctx context.Context, it intent.Intent) Response {
	switch v := it.(type) {
	case intent.CreateEvent:
		return e.runCreatePipeline(ctx, v)
	case intent.CancelEvent:
		return e.executeCancel(ctx, v)
	case intent.RescheduleEvent:
		return e.executeReschedule(ctx, v)
	case intent.QueryEvents:
		return e.executeQuery(ctx, v)
	case intent.CancelAllExcept:
		return e.executeCancelAllExcept(ctx, v)
	case intent.AddGuests:
		return e.executeAddGuests(ctx, v)
	case intent.ModifyEvent:
		return e.executeModify(ctx, v)
	default:
		return Error{Message: "I don't know how to handle that request yet."}
	}
}

// TodayEvents returns the agenda for today.
func (e *Engine) TodayEvents(ctx context.Context) Response {
	events, err := e.cal.GetDailyEvents(ctx, "")
	if err != nil {
		e.opts.Logger.Error("daily agenda fetch failed", "error", err)
		return Error{Message: "I couldn't reach the calendar. Please try again later."}
	}
	if len(events) == 0 {
		return QueryResult{Message: "No events scheduled for today.", Date: "today"}
	}

	var b strings.Builder
	b.WriteString("*Today's events:*\n")
	for _, ev := range events {
		b.WriteString(fmt.Sprintf("• %s — %s\n", eventTimeLabel(ev), ev.DisplaySummary()))
	}
	return QueryResult{Message: strings.TrimRight(b.String(), "\n"), Date: "today", Events: events}
}

func injectEventContext(mod intent.ModifyEvent, lastEvent *EventContext) intent.ModifyEvent {
	if mod.EventID != "" || lastEvent == nil {
		return mod
	}
	mod.EventID = lastEvent.EventID
	mod.EventSummary = lastEvent.Summary
	mod.EventDate = lastEvent.Date
	mod.EventTime = lastEvent.Time
	return mod
}

// eventTimeLabel renders an event start for user-facing lists.
func eventTimeLabel(ev calendar.Event) string {
	if ev.IsAllDay() {
		return "all day"
	}
	if len(ev.Start) >= 16 {
		return ev.Start[11:16]
	}
	return ev.Start
}

// eventListLines renders events as bullet lines for prompts and errors.
func eventListLines(events []calendar.Event) string {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString(fmt.Sprintf("• %s (%s)\n", ev.DisplaySummary(), eventTimeLabel(ev)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// summaryList joins event titles for conflict and cancel messages.
func summaryList(events []calendar.Event) string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.DisplaySummary())
	}
	return strings.Join(names, ", ")
}
