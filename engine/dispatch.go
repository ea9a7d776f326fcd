package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/calweave/calweave/conflict"
	"github.com/calweave/calweave/intent"
)

func (e *Engine) executeCancel(ctx context.Context, v intent.CancelEvent) Response {
	if e.opts.Parser == nil {
		return Error{Message: "I can't match events by description right now. Please try again later."}
	}

	events, err := e.cal.FindEvents(ctx, v.Date, "")
	if err != nil {
		e.opts.Logger.Error("event lookup failed", "date", v.Date, "error", err)
		return Error{Message: "I couldn't reach the calendar. Please try again later."}
	}
	if len(events) == 0 {
		return Error{Message: fmt.Sprintf("There are no events on %s to cancel.", v.Date)}
	}

	matched, err := e.opts.Parser.MatchEvent(ctx, v.TitleHint, events)
	if err != nil || matched == nil {
		return Error{Message: fmt.Sprintf("I couldn't find *%s* on %s. Events that day:\n%s",
			v.TitleHint, v.Date, eventListLines(events))}
	}

	start := time.Now()
	err = e.cal.DeleteEvent(ctx, matched.ID)
	e.logCalendarCall("delete_event", start, err)
	if err != nil {
		e.opts.Logger.Error("event deletion failed", "id", matched.ID, "error", err)
		return Error{Message: fmt.Sprintf("I found *%s* but couldn't cancel it. Please try again later.", matched.DisplaySummary())}
	}
	return Success{
		Message: fmt.Sprintf("✅ Event canceled: *%s*", matched.DisplaySummary()),
		Event:   eventInfoFrom(*matched),
	}
}

func (e *Engine) executeReschedule(ctx context.Context, v intent.RescheduleEvent) Response {
	if e.opts.Parser == nil {
		return Error{Message: "I can't match events by description right now. Please try again later."}
	}

	events, err := e.cal.FindEvents(ctx, v.OriginalDate, "")
	if err != nil {
		e.opts.Logger.Error("event lookup failed", "date", v.OriginalDate, "error", err)
		return Error{Message: "I couldn't reach the calendar. Please try again later."}
	}
	if len(events) == 0 {
		return Error{Message: fmt.Sprintf("There are no events on %s to reschedule.", v.OriginalDate)}
	}

	matched, err := e.opts.Parser.MatchEvent(ctx, v.TitleHint, events)
	if err != nil || matched == nil {
		return Error{Message: fmt.Sprintf("I couldn't find *%s* on %s. Events that day:\n%s",
			v.TitleHint, v.OriginalDate, eventListLines(events))}
	}

	duration := conflict.EventDurationMinutes(*matched)
	res, err := e.opts.Checker.Check(ctx, v.OriginalDate, v.NewTime, duration, matched.ID)
	if err != nil {
		return Error{Message: "I couldn't verify the calendar for conflicts. Please try again later."}
	}
	if res.HasConflict {
		pending := PendingEvent{
			Action:          PendingReschedule,
			EventID:         matched.ID,
			Summary:         matched.DisplaySummary(),
			Date:            v.OriginalDate,
			Time:            v.NewTime,
			SuggestedTime:   res.SuggestedTime,
			DurationMinutes: duration,
		}
		return e.buildConflictPrompt(pending, res)
	}

	start := time.Now()
	updated, err := e.cal.UpdateEvent(ctx, matched.ID, v.OriginalDate, v.NewTime)
	e.logCalendarCall("update_event", start, err)
	if err != nil {
		e.opts.Logger.Error("reschedule failed", "id", matched.ID, "error", err)
		return Error{Message: fmt.Sprintf("I found *%s* but couldn't move it. Please try again later.", matched.DisplaySummary())}
	}
	return Success{
		Message: fmt.Sprintf("✅ Event *%s* rescheduled to %s at %s", updated.DisplaySummary(), v.OriginalDate, v.NewTime),
		Event:   eventInfoFrom(updated),
	}
}

func (e *Engine) executeQuery(ctx context.Context, v intent.QueryEvents) Response {
	events, err := e.cal.FindEvents(ctx, v.Date, "")
	if err != nil {
		e.opts.Logger.Error("event lookup failed", "date", v.Date, "error", err)
		return Error{Message: "I couldn't reach the calendar. Please try again later."}
	}
	if len(events) == 0 {
		return QueryResult{Message: fmt.Sprintf("No events scheduled for %s.", v.Date), Date: v.Date}
	}
	return QueryResult{
		Message: fmt.Sprintf("*Events on %s:*\n%s", v.Date, eventListLines(events)),
		Date:    v.Date,
		Events:  events,
	}
}

func (e *Engine) executeCancelAllExcept(ctx context.Context, v intent.CancelAllExcept) Response {
	if e.opts.Parser == nil {
		return Error{Message: "I can't match events by description right now. Please try again later."}
	}

	events, err := e.cal.FindEvents(ctx, v.Date, "")
	if err != nil {
		e.opts.Logger.Error("event lookup failed", "date", v.Date, "error", err)
		return Error{Message: "I couldn't reach the calendar. Please try again later."}
	}
	if len(events) == 0 {
		return Error{Message: fmt.Sprintf("There are no events on %s.", v.Date)}
	}

	toCancel, err := e.opts.Parser.ExcludeByHints(ctx, v.ExceptionHints, events)
	if err != nil {
		e.opts.Logger.Error("exception matching failed", "date", v.Date, "error", err)
		return Error{Message: "I couldn't work out which events to keep. Please try again."}
	}
	if len(toCancel) == 0 {
		return Success{Message: fmt.Sprintf("All events on %s match your exceptions. Nothing to cancel.", v.Date)}
	}

	cancelIDs := make(map[string]bool, len(toCancel))
	pending := PendingBatchCancel{Date: v.Date}
	var cancelNames, keepNames []string
	for _, ev := range toCancel {
		cancelIDs[ev.ID] = true
		pending.Cancel = append(pending.Cancel, EventRef{ID: ev.ID, Summary: ev.DisplaySummary()})
		cancelNames = append(cancelNames, ev.DisplaySummary())
	}
	for _, ev := range events {
		if !cancelIDs[ev.ID] {
			keepNames = append(keepNames, ev.DisplaySummary())
		}
	}
	pending.Keep = keepNames

	msg := fmt.Sprintf("*Cancel all except — please confirm:*\nWill cancel:\n%s", bulleted(cancelNames))
	if len(keepNames) > 0 {
		msg += fmt.Sprintf("\nWill keep:\n%s", bulleted(keepNames))
	}
	return BatchCancelPrompt{
		Message:    msg,
		WillCancel: cancelNames,
		WillKeep:   keepNames,
		Token:      mustToken(pending),
	}
}

func (e *Engine) executeAddGuests(ctx context.Context, v intent.AddGuests) Response {
	if len(v.Guests) == 0 {
		return Error{Message: "No email addresses to add."}
	}
	if e.opts.Parser == nil {
		return Error{Message: "I can't match events by description right now. Please try again later."}
	}

	events, err := e.cal.FindEvents(ctx, v.Date, "")
	if err != nil {
		e.opts.Logger.Error("event lookup failed", "date", v.Date, "error", err)
		return Error{Message: "I couldn't reach the calendar. Please try again later."}
	}
	if len(events) == 0 {
		return Error{Message: fmt.Sprintf("There are no events on %s.", v.Date)}
	}

	matched, err := e.opts.Parser.MatchEvent(ctx, v.TitleHint, events)
	if err != nil || matched == nil {
		return Error{Message: fmt.Sprintf("I couldn't find *%s* on %s. Events that day:\n%s",
			v.TitleHint, v.Date, eventListLines(events))}
	}

	updated, err := e.cal.AddGuests(ctx, matched.ID, v.Guests)
	if err != nil {
		e.opts.Logger.Error("guest addition failed", "id", matched.ID, "error", err)
		return Error{Message: fmt.Sprintf("I found *%s* but couldn't add the guests. Please try again later.", matched.DisplaySummary())}
	}
	return Success{
		Message: fmt.Sprintf("✅ Added %s to *%s*", strings.Join(v.Guests, ", "), updated.DisplaySummary()),
		Event:   eventInfoFrom(updated),
	}
}

func bulleted(items []string) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString("• " + it + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
