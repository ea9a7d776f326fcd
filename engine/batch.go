package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/intent"
)

// executeBatch runs several intents from one message. A batch always
// completes: actions that would pause for user input in single mode are
// reported as failures instead. Cancels targeting the same date share one
// calendar lookup and one batch match; lookups for different dates run
// concurrently, while every write stays in the original intent order.
func (e *Engine) executeBatch(ctx context.Context, intents []intent.Intent) Response {
	results := make([]ActionResult, len(intents))

	matches := e.matchBatchCancels(ctx, intents, results)

	for i, it := range intents {
		if results[i].Action != "" {
			continue
		}
		switch v := it.(type) {
		case intent.CancelEvent:
			results[i] = e.batchCancelOne(ctx, v, matches[i])
		case intent.CreateEvent:
			results[i] = batchResult("Create", e.runCreatePipeline(ctx, v))
		case intent.RescheduleEvent:
			results[i] = batchResult("Reschedule", e.executeReschedule(ctx, v))
		case intent.QueryEvents:
			results[i] = batchResult("Query", e.executeQuery(ctx, v))
		case intent.CancelAllExcept:
			results[i] = e.batchCancelAllExcept(ctx, v)
		case intent.AddGuests:
			results[i] = batchResult("Add guests", e.executeAddGuests(ctx, v))
		case intent.ModifyEvent:
			results[i] = batchResult("Modify", e.executeModify(ctx, v))
		default:
			results[i] = ActionResult{Action: "Unknown", Message: "Unsupported action."}
		}
	}

	return summarize(results)
}

type cancelRef struct {
	idx  int
	hint string
}

// matchBatchCancels resolves every cancel intent to its event up front: one
// FindEvents plus one BatchMatchEvents per distinct date, dates in parallel.
// Lookup failures land directly in results; successful matches are returned
// keyed by intent index.
func (e *Engine) matchBatchCancels(ctx context.Context, intents []intent.Intent, results []ActionResult) map[int]*calendar.Event {
	byDate := make(map[string][]cancelRef)
	for i, it := range intents {
		if c, ok := it.(intent.CancelEvent); ok {
			byDate[c.Date] = append(byDate[c.Date], cancelRef{idx: i, hint: c.TitleHint})
		}
	}

	matches := make(map[int]*calendar.Event)
	if len(byDate) == 0 {
		return matches
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for date, refs := range byDate {
		wg.Add(1)
		go func(date string, refs []cancelRef) {
			defer wg.Done()

			fail := func(msg string) {
				mu.Lock()
				defer mu.Unlock()
				for _, r := range refs {
					results[r.idx] = ActionResult{Action: "Cancel", Message: msg}
				}
			}

			events, err := e.cal.FindEvents(ctx, date, "")
			if err != nil {
				e.opts.Logger.Error("event lookup failed", "date", date, "error", err)
				fail("I couldn't reach the calendar.")
				return
			}
			if len(events) == 0 {
				fail(fmt.Sprintf("There are no events on %s.", date))
				return
			}

			hints := make([]string, len(refs))
			for j, r := range refs {
				hints[j] = r.hint
			}
			matched, err := e.opts.Parser.BatchMatchEvents(ctx, hints, events)
			if err != nil {
				e.opts.Logger.Error("batch event matching failed", "date", date, "error", err)
				fail("I couldn't match the events to cancel.")
				return
			}

			mu.Lock()
			defer mu.Unlock()
			for j, r := range refs {
				matches[r.idx] = matched[j]
			}
		}(date, refs)
	}
	wg.Wait()
	return matches
}

func (e *Engine) batchCancelOne(ctx context.Context, v intent.CancelEvent, matched *calendar.Event) ActionResult {
	if matched == nil {
		return ActionResult{Action: "Cancel", Message: fmt.Sprintf("I couldn't find *%s* on %s.", v.TitleHint, v.Date)}
	}
	if err := e.cal.DeleteEvent(ctx, matched.ID); err != nil {
		e.opts.Logger.Error("event deletion failed", "id", matched.ID, "error", err)
		return ActionResult{Action: "Cancel", Message: fmt.Sprintf("I found *%s* but couldn't cancel it.", matched.DisplaySummary())}
	}
	return ActionResult{
		Action:  "Cancel",
		Success: true,
		Message: fmt.Sprintf("Canceled *%s*", matched.DisplaySummary()),
		Event:   eventInfoFrom(*matched),
	}
}

// batchCancelAllExcept sweeps immediately: a batch cannot stop to confirm.
func (e *Engine) batchCancelAllExcept(ctx context.Context, v intent.CancelAllExcept) ActionResult {
	const action = "Cancel all except"

	events, err := e.cal.FindEvents(ctx, v.Date, "")
	if err != nil {
		e.opts.Logger.Error("event lookup failed", "date", v.Date, "error", err)
		return ActionResult{Action: action, Message: "I couldn't reach the calendar."}
	}
	if len(events) == 0 {
		return ActionResult{Action: action, Message: fmt.Sprintf("There are no events on %s.", v.Date)}
	}

	toCancel, err := e.opts.Parser.ExcludeByHints(ctx, v.ExceptionHints, events)
	if err != nil {
		e.opts.Logger.Error("exception matching failed", "date", v.Date, "error", err)
		return ActionResult{Action: action, Message: "I couldn't work out which events to keep."}
	}
	if len(toCancel) == 0 {
		return ActionResult{Action: action, Success: true, Message: fmt.Sprintf("Nothing to cancel on %s.", v.Date)}
	}

	canceled := 0
	for _, ev := range toCancel {
		if err := e.cal.DeleteEvent(ctx, ev.ID); err != nil {
			e.opts.Logger.Error("event deletion failed", "id", ev.ID, "error", err)
			continue
		}
		canceled++
	}
	return ActionResult{
		Action:  action,
		Success: canceled == len(toCancel),
		Message: fmt.Sprintf("Canceled %d of %d events on %s, kept %d.", canceled, len(toCancel), v.Date, len(events)-len(toCancel)),
	}
}

// batchResult converts a single-mode response into a batch line. Pause
// responses become failures telling the user to send the action alone.
func batchResult(action string, resp Response) ActionResult {
	switch r := resp.(type) {
	case Success:
		return ActionResult{Action: action, Success: true, Message: r.Message, Event: r.Event}
	case QueryResult:
		return ActionResult{Action: action, Success: true, Message: r.Message}
	case NoAction:
		return ActionResult{Action: action, Success: true, Message: r.Message}
	case ConflictPrompt:
		return ActionResult{Action: action, Message: "Time conflict — send it as a single message to resolve."}
	case ContactPrompt:
		return ActionResult{Action: action, Message: fmt.Sprintf("Missing email for *%s* — send it as a single message to resolve.", r.Name)}
	case SlotSuggestion:
		return ActionResult{Action: action, Message: "No time specified — send it as a single message for slot suggestions."}
	case BatchCancelPrompt:
		return ActionResult{Action: action, Message: "Needs confirmation — send it as a single message."}
	case Error:
		return ActionResult{Action: action, Message: r.Message}
	default:
		return ActionResult{Action: action, Message: "Unsupported action."}
	}
}

func summarize(results []ActionResult) BatchSummary {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("*Processed %d actions:*\n", len(results)))
	for _, r := range results {
		icon := "✅"
		if !r.Success {
			icon = "❌"
		}
		b.WriteString(fmt.Sprintf("%s %s: %s\n", icon, r.Action, firstLine(r.Message)))
	}
	return BatchSummary{Message: strings.TrimRight(b.String(), "\n"), Results: results}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
