package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/intent"
)

// executeModify patches the event the conversation is about. The target id
// comes from conversational context; without one there is nothing to modify.
func (e *Engine) executeModify(ctx context.Context, v intent.ModifyEvent) Response {
	if v.EventID == "" {
		return Error{Message: "I'm not sure which event you mean. Create or mention an event first, then ask me to change it."}
	}

	if len(v.MentionedNames) > 0 {
		resolved, unresolved := e.resolveContacts(ctx, v.MentionedNames)
		if len(unresolved) > 0 {
			pending := PendingContactResolution{
				Modify:     &v,
				Resolved:   resolved,
				Unresolved: unresolved,
				Asking:     unresolved[0],
			}
			return ContactPrompt{
				Message: fmt.Sprintf("I don't have an email for *%s*. What's their email?", unresolved[0]),
				Name:    unresolved[0],
				Token:   mustToken(pending),
			}
		}
		for _, name := range v.MentionedNames {
			v.AddGuestEmails = mergeEmails(v.AddGuestEmails, resolved[name])
		}
		v.MentionedNames = nil
	}

	fields, changes := e.buildFieldUpdate(ctx, v)
	if fields.IsEmpty() {
		return Error{Message: "I didn't find anything to change in that."}
	}

	updated, err := e.cal.UpdateEventFields(ctx, v.EventID, fields)
	if err != nil {
		e.opts.Logger.Error("event update failed", "id", v.EventID, "error", err)
		name := v.EventSummary
		if name == "" {
			name = "the event"
		}
		return Error{Message: fmt.Sprintf("I couldn't update *%s*. Please try again later.", name)}
	}

	return Success{
		Message: fmt.Sprintf("✏️ Updated *%s*: %s", updated.DisplaySummary(), strings.Join(changes, ", ")),
		Event:   eventInfoFrom(updated),
	}
}

// buildFieldUpdate maps a modify intent onto a sparse calendar patch and the
// human-readable change list for the confirmation message.
func (e *Engine) buildFieldUpdate(ctx context.Context, v intent.ModifyEvent) (calendar.FieldUpdate, []string) {
	var fields calendar.FieldUpdate
	var changes []string

	if v.NewTime != "" {
		t := v.NewTime
		fields.Time = &t
		changes = append(changes, "time → "+t)
	}
	if v.NewDescription != "" {
		d := v.NewDescription
		fields.Description = &d
		changes = append(changes, "description updated")
	}
	if v.AddLocation != "" {
		loc := v.AddLocation
		if e.opts.Places != nil {
			if enriched, err := e.opts.Places.Enrich(ctx, loc); err == nil && enriched != nil {
				if enriched.FormattedAddress != "" {
					loc = enriched.DisplayName + ", " + enriched.FormattedAddress
				} else {
					loc = enriched.DisplayName
				}
			}
		}
		fields.Location = &loc
		changes = append(changes, "📍 "+loc)
	}
	if len(v.AddGuestEmails) > 0 {
		fields.AddGuests = v.AddGuestEmails
		changes = append(changes, "added "+strings.Join(v.AddGuestEmails, ", "))
	}
	if len(v.RemoveGuestEmails) > 0 {
		fields.RemoveGuests = v.RemoveGuestEmails
		changes = append(changes, "removed "+strings.Join(v.RemoveGuestEmails, ", "))
	}
	return fields, changes
}
