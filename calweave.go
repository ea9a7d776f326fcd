// Package calweave provides a high-level façade over the scheduling engine:
// a conversational assistant that turns free-form text into calendar actions.
// Most applications interact with this package by:
//  1. Creating an Assistant via New() around a calendar implementation
//  2. Feeding user messages to Handle()
//  3. Routing the prompt responses (conflicts, contacts, slots, batch
//     confirmations) back through the matching Resolve method
//
// The façade delegates orchestration to engine.Engine and keeps track of the
// event the conversation is currently about, so follow-ups like "move it to
// 15:00" resolve against the right event.
package calweave

import (
	"context"
	"sync"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/chore"
	"github.com/calweave/calweave/contact"
	"github.com/calweave/calweave/engine"
	"github.com/calweave/calweave/logging"
	"github.com/calweave/calweave/parser"
	"github.com/calweave/calweave/place"
)

// Options configures the Assistant.
type Options struct {
	// Parser extracts intents from text. Without one, Handle only returns
	// errors; the typed engine operations still work.
	Parser parser.Parser

	// Contacts resolves mentioned names to emails. Defaults to an
	// in-memory store.
	Contacts contact.Store

	// Places enriches raw locations. Nil disables enrichment.
	Places place.Enricher

	// Chores enables the recurring chore operations. Nil disables them.
	Chores chore.Store

	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Assistant is the high-level conversational entry point.
type Assistant struct {
	engine *engine.Engine

	mu   sync.Mutex
	last *engine.EventContext
}

// New creates an Assistant on top of a calendar with optional overrides.
func New(cal calendar.Calendar, optFns ...func(o *Options)) *Assistant {
	opts := Options{
		Contacts: contact.NewInMemoryStore(),
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(cal,
		engine.WithParser(opts.Parser),
		engine.WithContacts(opts.Contacts),
		engine.WithPlaces(opts.Places),
		engine.WithChores(opts.Chores),
		engine.WithLogger(opts.Logger),
	)
	return &Assistant{engine: e}
}

// Engine exposes the underlying engine for typed, non-conversational use.
func (a *Assistant) Engine() *engine.Engine { return a.engine }

// Handle processes one user message and returns the response to render.
// Prompt responses carry a token; hand it back via the matching Resolve
// method together with the user's answer.
func (a *Assistant) Handle(ctx context.Context, text string) engine.Response {
	return a.remember(a.engine.ProcessText(ctx, text, a.lastEvent()))
}

// ResolveConflict answers a ConflictPrompt.
func (a *Assistant) ResolveConflict(ctx context.Context, token string, choice engine.ConflictChoice, customTime string) engine.Response {
	return a.remember(a.engine.ResolveConflict(ctx, token, choice, customTime))
}

// ResolveContact answers a ContactPrompt with an email address.
func (a *Assistant) ResolveContact(ctx context.Context, token, email string) engine.Response {
	return a.remember(a.engine.ResolveContact(ctx, token, email))
}

// SelectSlot answers a SlotSuggestion with the picked time.
func (a *Assistant) SelectSlot(ctx context.Context, token, selectedTime string) engine.Response {
	return a.remember(a.engine.SelectSlot(ctx, token, selectedTime))
}

// ConfirmBatchCancel answers a BatchCancelPrompt.
func (a *Assistant) ConfirmBatchCancel(ctx context.Context, token string, confirmed bool) engine.Response {
	return a.remember(a.engine.ConfirmBatchCancel(ctx, token, confirmed))
}

// Today returns the agenda for today.
func (a *Assistant) Today(ctx context.Context) engine.Response {
	return a.engine.TodayEvents(ctx)
}

func (a *Assistant) lastEvent() *engine.EventContext {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// remember captures the event a successful action was about, making it the
// target for follow-up modifications.
func (a *Assistant) remember(resp engine.Response) engine.Response {
	if s, ok := resp.(engine.Success); ok && s.Event != nil {
		a.mu.Lock()
		a.last = &engine.EventContext{
			EventID: s.Event.ID,
			Summary: s.Event.Summary,
			Date:    s.Event.Date,
			Time:    s.Event.Time,
		}
		a.mu.Unlock()
	}
	return resp
}
