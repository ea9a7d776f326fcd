package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/calweave/calweave/internal/util"
)

const expiredTokenMessage = "That action has expired or is no longer valid. Please start over."

// ResolveConflict resumes an action paused by a ConflictPrompt. customTime is
// only read for ChoiceCustom; a custom time that itself overlaps existing
// events proceeds anyway, with a warning prefixed to the confirmation.
func (e *Engine) ResolveConflict(ctx context.Context, token string, choice ConflictChoice, customTime string) Response {
	pending, ok := decodePendingEvent(token)
	if !ok {
		return Error{Message: expiredTokenMessage}
	}

	var timeToUse, warning string
	switch choice {
	case ChoiceCancel:
		return NoAction{Message: "Okay, cancelled. Nothing was changed."}
	case ChoiceSuggested:
		if pending.SuggestedTime == "" {
			return Error{Message: "There is no suggested time for this conflict. Pick another option."}
		}
		timeToUse = pending.SuggestedTime
	case ChoiceForce:
		timeToUse = pending.Time
	case ChoiceCustom:
		customTime = strings.TrimSpace(customTime)
		if !util.ValidClockTime(customTime) {
			return Error{Message: "Invalid time format. Please use HH:MM (e.g. 15:30)."}
		}
		timeToUse = customTime

		res, err := e.opts.Checker.Check(ctx, pending.Date, customTime, pending.DurationMinutes, pending.EventID)
		switch {
		case err != nil:
			e.opts.Logger.Warn("conflict re-check failed, keeping custom time", "time", customTime, "error", err)
		case res.HasConflict:
			warning = fmt.Sprintf("⚠️ Note: %s also overlaps with %s.\n", customTime, summaryList(res.ConflictingEvents))
		}
	default:
		return Error{Message: fmt.Sprintf("Unknown choice %q.", choice)}
	}

	resp := e.executePending(ctx, pending, timeToUse)
	if warning != "" {
		if s, ok := resp.(Success); ok {
			s.Message = warning + s.Message
			return s
		}
	}
	return resp
}

// SelectSlot resumes a create paused by a SlotSuggestion. The picked slot is
// re-checked; the calendar may have filled up since the suggestion.
func (e *Engine) SelectSlot(ctx context.Context, token, selectedTime string) Response {
	pending, ok := decodePendingEvent(token)
	if !ok || pending.Action != PendingCreate || pending.Create == nil {
		return Error{Message: expiredTokenMessage}
	}
	if !util.ValidClockTime(selectedTime) {
		return Error{Message: "Invalid time format. Please use HH:MM (e.g. 15:30)."}
	}

	res, err := e.opts.Checker.Check(ctx, pending.Date, selectedTime, pending.DurationMinutes, "")
	if err != nil {
		return Error{Message: "I couldn't verify the calendar for conflicts. Please try again later."}
	}
	if res.HasConflict {
		return Error{Message: fmt.Sprintf("Sorry, %s now overlaps with %s. Please pick another time.",
			selectedTime, summaryList(res.ConflictingEvents))}
	}

	// The slot pause happens before location enrichment, so finish the
	// remaining pipeline stages here.
	p := *pending.Create
	p.Time = selectedTime
	p, _ = e.enrichLocation(ctx, p)
	return e.createEvent(ctx, p)
}

// ResolveContact resumes an action paused by a ContactPrompt with the email
// for the contact being asked about. With more names outstanding it answers
// with the next ContactPrompt; once all are resolved the original action
// re-runs from the top.
func (e *Engine) ResolveContact(ctx context.Context, token, email string) Response {
	pending, ok := decodePendingContact(token)
	if !ok || pending.Asking == "" {
		return Error{Message: expiredTokenMessage}
	}

	email = strings.TrimSpace(email)
	if !util.ValidEmail(email) {
		return ContactPrompt{
			Message: fmt.Sprintf("%q doesn't look like a valid email. What's the email for *%s*?", email, pending.Asking),
			Name:    pending.Asking,
			Token:   mustToken(pending),
		}
	}

	if pending.Resolved == nil {
		pending.Resolved = make(map[string]string)
	}
	pending.Resolved[pending.Asking] = email
	if e.opts.Contacts != nil {
		if err := e.opts.Contacts.Save(ctx, pending.Asking, email); err != nil {
			e.opts.Logger.Warn("contact save failed", "name", pending.Asking, "error", err)
		}
	}

	remaining := pending.Unresolved[:0:0]
	for _, name := range pending.Unresolved {
		if name != pending.Asking {
			remaining = append(remaining, name)
		}
	}
	pending.Unresolved = remaining

	if len(pending.Unresolved) > 0 {
		pending.Asking = pending.Unresolved[0]
		return ContactPrompt{
			Message: fmt.Sprintf("I don't have an email for *%s*. What's their email?", pending.Asking),
			Name:    pending.Asking,
			Token:   mustToken(pending),
		}
	}

	switch {
	case pending.Create != nil:
		p := *pending.Create
		for _, name := range p.MentionedContacts {
			p.Guests = mergeEmails(p.Guests, pending.Resolved[name])
		}
		p.MentionedContacts = nil
		return e.runCreatePipeline(ctx, p)
	case pending.Modify != nil:
		v := *pending.Modify
		for _, name := range v.MentionedNames {
			v.AddGuestEmails = mergeEmails(v.AddGuestEmails, pending.Resolved[name])
		}
		v.MentionedNames = nil
		return e.executeModify(ctx, v)
	default:
		return Error{Message: expiredTokenMessage}
	}
}

// ConfirmBatchCancel resumes a cancel-all-except. Deletions run one by one;
// a failure on one event does not stop the rest.
func (e *Engine) ConfirmBatchCancel(ctx context.Context, token string, confirmed bool) Response {
	pending, ok := decodePendingBatch(token)
	if !ok {
		return Error{Message: expiredTokenMessage}
	}
	if !confirmed {
		return NoAction{Message: "Okay, nothing was cancelled."}
	}

	var lines []string
	canceled := 0
	for _, ref := range pending.Cancel {
		if err := e.cal.DeleteEvent(ctx, ref.ID); err != nil {
			e.opts.Logger.Error("event deletion failed", "id", ref.ID, "error", err)
			lines = append(lines, fmt.Sprintf("❌ Failed to cancel: *%s*", ref.Summary))
			continue
		}
		canceled++
		lines = append(lines, fmt.Sprintf("✅ Canceled: *%s*", ref.Summary))
	}

	return Success{Message: fmt.Sprintf("Canceled %d of %d events on %s:\n%s",
		canceled, len(pending.Cancel), pending.Date, strings.Join(lines, "\n"))}
}

// executePending replays a conflict-paused create or reschedule at the
// resolved time.
func (e *Engine) executePending(ctx context.Context, pending PendingEvent, timeToUse string) Response {
	switch pending.Action {
	case PendingCreate:
		if pending.Create == nil {
			return Error{Message: expiredTokenMessage}
		}
		p := *pending.Create
		p.Time = timeToUse
		return e.createEvent(ctx, p)
	case PendingReschedule:
		updated, err := e.cal.UpdateEvent(ctx, pending.EventID, pending.Date, timeToUse)
		if err != nil {
			e.opts.Logger.Error("reschedule failed", "id", pending.EventID, "error", err)
			return Error{Message: fmt.Sprintf("I couldn't move *%s*. Please try again later.", pending.Summary)}
		}
		return Success{
			Message: fmt.Sprintf("✅ Event *%s* rescheduled to %s at %s", updated.DisplaySummary(), pending.Date, timeToUse),
			Event:   eventInfoFrom(updated),
		}
	default:
		return Error{Message: expiredTokenMessage}
	}
}

func decodePendingEvent(token string) (PendingEvent, bool) {
	p, err := DecodeToken(token)
	if err != nil {
		return PendingEvent{}, false
	}
	pe, ok := p.(PendingEvent)
	return pe, ok
}

func decodePendingContact(token string) (PendingContactResolution, bool) {
	p, err := DecodeToken(token)
	if err != nil {
		return PendingContactResolution{}, false
	}
	pc, ok := p.(PendingContactResolution)
	return pc, ok
}

func decodePendingBatch(token string) (PendingBatchCancel, bool) {
	p, err := DecodeToken(token)
	if err != nil {
		return PendingBatchCancel{}, false
	}
	pb, ok := p.(PendingBatchCancel)
	return pb, ok
}
