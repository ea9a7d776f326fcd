package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/chore"
	"github.com/calweave/calweave/recurring"
)

// defaultChoreWeeksAhead is how far the slot search looks when scheduling a
// recurring chore.
const defaultChoreWeeksAhead = 2

const choresUnavailableMessage = "Chores aren't set up. Please configure a chore store first."

// FindChoreSlot searches the calendar for the recurring slot that stays
// conflict-free across the most occurrences of the chore.
func (e *Engine) FindChoreSlot(ctx context.Context, c chore.Chore, weeksAhead int) (*recurring.Plan, error) {
	if weeksAhead <= 0 {
		weeksAhead = defaultChoreWeeksAhead
	}
	return e.opts.Scheduler.FindBestSlot(ctx, c.Name, c.FrequencyDays, c.DurationMinutes,
		c.PreferredStart, c.PreferredEnd, weeksAhead)
}

// ScheduleChore finds the best recurring slot for a stored chore and books
// it on the calendar, linking the series back to the chore.
func (e *Engine) ScheduleChore(ctx context.Context, choreID int64) Response {
	if e.opts.Chores == nil {
		return Error{Message: choresUnavailableMessage}
	}

	c, err := e.opts.Chores.Get(ctx, choreID)
	if err != nil {
		if errors.Is(err, chore.ErrNotFound) {
			return Error{Message: "I couldn't find that chore."}
		}
		e.opts.Logger.Error("chore lookup failed", "id", choreID, "error", err)
		return Error{Message: "I couldn't load the chore. Please try again later."}
	}

	plan, err := e.FindChoreSlot(ctx, c, defaultChoreWeeksAhead)
	if err != nil {
		e.opts.Logger.Error("chore slot search failed", "chore", c.Name, "error", err)
		return Error{Message: "I couldn't search the calendar for a slot. Please try again later."}
	}
	if plan == nil {
		return Error{Message: fmt.Sprintf("I couldn't find a recurring slot for *%s* between %s and %s.",
			c.Name, c.PreferredStart, c.PreferredEnd)}
	}
	return e.CreateChoreEvent(ctx, c, *plan)
}

// CreateChoreEvent books a recurring calendar series for the chore at the
// planned slot and records the series id on the chore.
func (e *Engine) CreateChoreEvent(ctx context.Context, c chore.Chore, plan recurring.Plan) Response {
	ev, err := e.cal.AddRecurringEvent(ctx, calendar.Recurrence{
		Summary:       "🧹 " + c.Name,
		Description:   choreDescription(c),
		StartDate:     plan.StartDate,
		StartTime:     plan.StartTime,
		EndTime:       plan.EndTime,
		FrequencyDays: plan.FrequencyDays,
		Occurrences:   plan.Occurrences,
	})
	if err != nil {
		e.opts.Logger.Error("chore series creation failed", "chore", c.Name, "error", err)
		return Error{Message: fmt.Sprintf("I found a slot for *%s* but couldn't save it to the calendar.", c.Name)}
	}

	if e.opts.Chores != nil && c.ID != 0 {
		if err := e.opts.Chores.SetCalendarEventID(ctx, c.ID, ev.ID); err != nil {
			e.opts.Logger.Warn("chore back-link failed", "id", c.ID, "error", err)
		}
	}

	return Success{
		Message: fmt.Sprintf("🧹 Scheduled *%s* every %d days, starting %s at %s–%s (%d occurrences)",
			c.Name, plan.FrequencyDays, plan.StartDate, plan.StartTime, plan.EndTime, plan.Occurrences),
		Event: eventInfoFrom(ev),
	}
}

// MarkChoreDone records a completion today and reports when it is next due.
func (e *Engine) MarkChoreDone(ctx context.Context, choreID int64) Response {
	if e.opts.Chores == nil {
		return Error{Message: choresUnavailableMessage}
	}

	done, err := e.opts.Chores.MarkDone(ctx, choreID, time.Now().Format("2006-01-02"))
	if err != nil {
		if errors.Is(err, chore.ErrNotFound) {
			return Error{Message: "I couldn't find that chore."}
		}
		e.opts.Logger.Error("chore completion failed", "id", choreID, "error", err)
		return Error{Message: "I couldn't mark the chore done. Please try again later."}
	}
	return Success{Message: fmt.Sprintf("✅ Marked *%s* done. Next due %s.", done.Name, done.NextDue)}
}

// DeleteChore deactivates a chore and removes its calendar series, if any.
func (e *Engine) DeleteChore(ctx context.Context, choreID int64) Response {
	if e.opts.Chores == nil {
		return Error{Message: choresUnavailableMessage}
	}

	c, err := e.opts.Chores.Get(ctx, choreID)
	if err != nil {
		if errors.Is(err, chore.ErrNotFound) {
			return Error{Message: "I couldn't find that chore."}
		}
		e.opts.Logger.Error("chore lookup failed", "id", choreID, "error", err)
		return Error{Message: "I couldn't load the chore. Please try again later."}
	}

	if c.CalendarEventID != "" {
		if err := e.cal.DeleteEvent(ctx, c.CalendarEventID); err != nil {
			e.opts.Logger.Warn("chore series deletion failed", "id", c.CalendarEventID, "error", err)
		}
	}
	if err := e.opts.Chores.Delete(ctx, choreID); err != nil {
		e.opts.Logger.Error("chore deletion failed", "id", choreID, "error", err)
		return Error{Message: fmt.Sprintf("I couldn't remove *%s*. Please try again later.", c.Name)}
	}
	return Success{Message: fmt.Sprintf("🧹 Chore *%s* removed.", c.Name)}
}

func choreDescription(c chore.Chore) string {
	desc := fmt.Sprintf("Recurring chore, every %d days.", c.FrequencyDays)
	if c.AssignedTo != "" {
		desc += "\nAssigned to: " + c.AssignedTo
	}
	return desc
}
