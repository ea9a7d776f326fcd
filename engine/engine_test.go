package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/calendar/memory"
	"github.com/calweave/calweave/contact"
	"github.com/calweave/calweave/intent"
	"github.com/calweave/calweave/logging"
	"github.com/calweave/calweave/place"
)

// fakeParser matches events by case-insensitive substring, which is all the
// engine tests need from the language model.
type fakeParser struct {
	intents    []intent.Intent
	parseErr   error
	batchCalls int
}

func (f *fakeParser) Parse(context.Context, string) ([]intent.Intent, error) {
	return f.intents, f.parseErr
}

func (f *fakeParser) MatchEvent(_ context.Context, hint string, events []calendar.Event) (*calendar.Event, error) {
	return matchByHint(hint, events), nil
}

func (f *fakeParser) BatchMatchEvents(_ context.Context, hints []string, events []calendar.Event) ([]*calendar.Event, error) {
	f.batchCalls++
	out := make([]*calendar.Event, len(hints))
	for i, h := range hints {
		out[i] = matchByHint(h, events)
	}
	return out, nil
}

func (f *fakeParser) ExcludeByHints(_ context.Context, hints []string, events []calendar.Event) ([]calendar.Event, error) {
	var cancel []calendar.Event
	for _, ev := range events {
		kept := false
		for _, h := range hints {
			if strings.Contains(strings.ToLower(ev.Summary), strings.ToLower(h)) {
				kept = true
				break
			}
		}
		if !kept {
			cancel = append(cancel, ev)
		}
	}
	return cancel, nil
}

func matchByHint(hint string, events []calendar.Event) *calendar.Event {
	h := strings.ToLower(hint)
	for i := range events {
		s := strings.ToLower(events[i].Summary)
		if strings.Contains(s, h) || strings.Contains(h, s) {
			ev := events[i]
			return &ev
		}
	}
	return nil
}

type fakeEnricher struct {
	enriched *place.Enriched
}

func (f *fakeEnricher) Enrich(context.Context, string) (*place.Enriched, error) {
	return f.enriched, nil
}

func newTestEngine(t *testing.T, optFns ...func(o *Options)) (*Engine, *memory.Store) {
	t.Helper()
	cal := memory.New()
	optFns = append([]func(o *Options){WithParser(&fakeParser{})}, optFns...)
	return New(cal, optFns...), cal
}

func addEvent(t *testing.T, cal *memory.Store, summary, date, tm string, durationMin int) calendar.Event {
	t.Helper()
	ev, err := cal.AddEvent(context.Background(), calendar.Draft{
		Summary:         summary,
		Date:            date,
		Time:            tm,
		DurationMinutes: durationMin,
	})
	require.NoError(t, err)
	return ev
}

func TestProcessText(t *testing.T) {
	ctx := context.Background()

	t.Run("ParserFailureIsUserFacingError", func(t *testing.T) {
		e, _ := newTestEngine(t, WithParser(&fakeParser{parseErr: assert.AnError}))
		resp := e.ProcessText(ctx, "dinner tomorrow", nil)
		require.IsType(t, Error{}, resp)
	})

	t.Run("NothingExtractedIsNoAction", func(t *testing.T) {
		e, _ := newTestEngine(t, WithParser(&fakeParser{}))
		resp := e.ProcessText(ctx, "how are you?", nil)
		require.IsType(t, NoAction{}, resp)
	})

	t.Run("SingleIntentRunsThePipeline", func(t *testing.T) {
		p := &fakeParser{intents: []intent.Intent{
			intent.CreateEvent{Summary: "Dinner", Date: "2025-03-20", Time: "19:00"},
		}}
		e, cal := newTestEngine(t, WithParser(p))

		resp := e.ProcessText(ctx, "dinner thursday at 19:00", nil)
		require.IsType(t, Success{}, resp)
		assert.Contains(t, resp.Text(), "✅ Event created: *Dinner* on 2025-03-20 at 19:00")

		events, err := cal.FindEvents(ctx, "2025-03-20", "")
		require.NoError(t, err)
		require.Len(t, events, 1)
	})

	t.Run("MultipleIntentsBecomeABatch", func(t *testing.T) {
		p := &fakeParser{intents: []intent.Intent{
			intent.CreateEvent{Summary: "A", Date: "2025-03-20", Time: "09:00"},
			intent.CreateEvent{Summary: "B", Date: "2025-03-20", Time: "11:00"},
		}}
		e, _ := newTestEngine(t, WithParser(p))

		resp := e.ProcessText(ctx, "A at 9 and B at 11", nil)
		summary, ok := resp.(BatchSummary)
		require.True(t, ok)
		require.Len(t, summary.Results, 2)
		assert.True(t, summary.Results[0].Success)
		assert.True(t, summary.Results[1].Success)
	})

	t.Run("ModifyInheritsTheLastEvent", func(t *testing.T) {
		p := &fakeParser{intents: []intent.Intent{
			intent.ModifyEvent{NewTime: "15:00"},
		}}
		e, cal := newTestEngine(t, WithParser(p))
		ev := addEvent(t, cal, "Dentist", "2025-03-20", "10:00", 60)

		last := &EventContext{EventID: ev.ID, Summary: "Dentist", Date: "2025-03-20", Time: "10:00"}
		resp := e.ProcessText(ctx, "move it to 15:00", last)
		require.IsType(t, Success{}, resp)
		assert.Contains(t, resp.Text(), "✏️ Updated *Dentist*")

		events, err := cal.FindEvents(ctx, "2025-03-20", "")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "2025-03-20T15:00:00", events[0].Start)
	})

	t.Run("ModifyWithoutContextIsAnError", func(t *testing.T) {
		p := &fakeParser{intents: []intent.Intent{intent.ModifyEvent{NewTime: "15:00"}}}
		e, _ := newTestEngine(t, WithParser(p))
		resp := e.ProcessText(ctx, "move it to 15:00", nil)
		require.IsType(t, Error{}, resp)
	})
}

func TestCreatePipeline(t *testing.T) {
	ctx := context.Background()

	t.Run("FreeTimeCreatesDirectly", func(t *testing.T) {
		e, cal := newTestEngine(t)
		addEvent(t, cal, "Standup", "2025-03-20", "10:00", 60)

		resp := e.ExecuteIntent(ctx, intent.CreateEvent{Summary: "Review", Date: "2025-03-20", Time: "14:30"})
		success, ok := resp.(Success)
		require.True(t, ok)
		require.NotNil(t, success.Event)
		assert.Equal(t, "14:30", success.Event.Time)
	})

	t.Run("OverlapPausesWithConflictPrompt", func(t *testing.T) {
		e, cal := newTestEngine(t)
		addEvent(t, cal, "Standup", "2025-03-20", "10:00", 60)

		resp := e.ExecuteIntent(ctx, intent.CreateEvent{Summary: "Review", Date: "2025-03-20", Time: "10:30"})
		prompt, ok := resp.(ConflictPrompt)
		require.True(t, ok)
		assert.Contains(t, prompt.Message, "10:30")
		assert.Contains(t, prompt.Message, "Standup")

		require.NotEmpty(t, prompt.Options)
		assert.Equal(t, ChoiceSuggested, prompt.Options[0].Choice)
		assert.Equal(t, "11:00", prompt.Options[0].Time)

		pending, err := DecodeToken(prompt.Token)
		require.NoError(t, err)
		pe, ok := pending.(PendingEvent)
		require.True(t, ok)
		assert.Equal(t, PendingCreate, pe.Action)
		assert.Equal(t, "10:30", pe.Time)
		assert.Equal(t, "11:00", pe.SuggestedTime)

		// Nothing was written yet.
		events, err := cal.FindEvents(ctx, "2025-03-20", "")
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("MissingTimePausesWithSlots", func(t *testing.T) {
		e, _ := newTestEngine(t)

		resp := e.ExecuteIntent(ctx, intent.CreateEvent{Summary: "Haircut", Date: "2025-03-20"})
		slots, ok := resp.(SlotSuggestion)
		require.True(t, ok)
		assert.Len(t, slots.Slots, 5)
		assert.Equal(t, "08:00", slots.Slots[0].Time)
		assert.NotEmpty(t, slots.Token)

		// The spread picks are a subset of the full availability list.
		assert.Len(t, slots.AllAvailable, 23) // 08:00 through 19:00 on a 30-minute grid
		for _, opt := range slots.Slots {
			assert.Contains(t, slots.AllAvailable, opt.Time)
		}
	})

	t.Run("UnknownContactPausesWithPrompt", func(t *testing.T) {
		e, _ := newTestEngine(t, WithContacts(contact.NewInMemoryStore()))

		resp := e.ExecuteIntent(ctx, intent.CreateEvent{
			Summary: "Dinner", Date: "2025-03-20", Time: "19:00",
			MentionedContacts: []string{"Dana"},
		})
		prompt, ok := resp.(ContactPrompt)
		require.True(t, ok)
		assert.Equal(t, "Dana", prompt.Name)
		assert.Contains(t, prompt.Message, "*Dana*")
	})

	t.Run("EmailMentionsSkipTheDirectory", func(t *testing.T) {
		// No contact store at all: an address needs no lookup.
		e, cal := newTestEngine(t)

		resp := e.ExecuteIntent(ctx, intent.CreateEvent{
			Summary: "Dinner", Date: "2025-03-20", Time: "19:00",
			MentionedContacts: []string{"dana@example.com"},
		})
		require.IsType(t, Success{}, resp)

		events, err := cal.FindEvents(ctx, "2025-03-20", "")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, []string{"dana@example.com"}, events[0].Guests)
	})

	t.Run("MixedMentionsOnlyAskForBareNames", func(t *testing.T) {
		e, _ := newTestEngine(t, WithContacts(contact.NewInMemoryStore()))

		resp := e.ExecuteIntent(ctx, intent.CreateEvent{
			Summary: "Dinner", Date: "2025-03-20", Time: "19:00",
			MentionedContacts: []string{"omer@example.com", "Dana"},
		})
		prompt, ok := resp.(ContactPrompt)
		require.True(t, ok)
		assert.Equal(t, "Dana", prompt.Name)
	})

	t.Run("KnownContactsBecomeGuests", func(t *testing.T) {
		contacts := contact.NewInMemoryStore()
		require.NoError(t, contacts.Save(ctx, "Dana", "dana@example.com"))
		e, cal := newTestEngine(t, WithContacts(contacts))

		resp := e.ExecuteIntent(ctx, intent.CreateEvent{
			Summary: "Dinner", Date: "2025-03-20", Time: "19:00",
			MentionedContacts: []string{"Dana"},
		})
		require.IsType(t, Success{}, resp)

		events, err := cal.FindEvents(ctx, "2025-03-20", "")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, []string{"dana@example.com"}, events[0].Guests)
	})

	t.Run("LocationIsEnriched", func(t *testing.T) {
		enricher := &fakeEnricher{enriched: &place.Enriched{
			DisplayName:      "Trattoria da Enzo",
			FormattedAddress: "Via dei Vascellari 29, Roma",
			MapsURL:          "https://maps.example/enzo",
		}}
		e, _ := newTestEngine(t, WithPlaces(enricher))

		resp := e.ExecuteIntent(ctx, intent.CreateEvent{
			Summary: "Dinner", Date: "2025-03-20", Time: "19:00", Location: "trattoria enzo",
		})
		require.IsType(t, Success{}, resp)
		assert.Contains(t, resp.Text(), "📍 Trattoria da Enzo, Via dei Vascellari 29, Roma")
		assert.Contains(t, resp.Text(), "https://maps.example/enzo")
	})

	t.Run("UnresolvableLocationIsKeptVerbatim", func(t *testing.T) {
		e, _ := newTestEngine(t, WithPlaces(&fakeEnricher{}))

		resp := e.ExecuteIntent(ctx, intent.CreateEvent{
			Summary: "Picnic", Date: "2025-03-20", Time: "12:00", Location: "the usual spot",
		})
		require.IsType(t, Success{}, resp)
		assert.Contains(t, resp.Text(), "📍 the usual spot")
	})
}

func TestCancelAndQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("CancelDeletesTheMatchedEvent", func(t *testing.T) {
		e, cal := newTestEngine(t)
		addEvent(t, cal, "Dentist", "2025-03-20", "10:00", 60)

		resp := e.ExecuteIntent(ctx, intent.CancelEvent{TitleHint: "dentist", Date: "2025-03-20"})
		require.IsType(t, Success{}, resp)
		assert.Contains(t, resp.Text(), "✅ Event canceled: *Dentist*")

		events, err := cal.FindEvents(ctx, "2025-03-20", "")
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("CancelWithNoMatchListsTheDay", func(t *testing.T) {
		e, cal := newTestEngine(t)
		addEvent(t, cal, "Dentist", "2025-03-20", "10:00", 60)

		resp := e.ExecuteIntent(ctx, intent.CancelEvent{TitleHint: "yoga", Date: "2025-03-20"})
		require.IsType(t, Error{}, resp)
		assert.Contains(t, resp.Text(), "Dentist")
	})

	t.Run("CancelOnEmptyDay", func(t *testing.T) {
		e, _ := newTestEngine(t)
		resp := e.ExecuteIntent(ctx, intent.CancelEvent{TitleHint: "yoga", Date: "2025-03-21"})
		require.IsType(t, Error{}, resp)
		assert.Contains(t, resp.Text(), "no events on 2025-03-21")
	})

	t.Run("QueryListsEvents", func(t *testing.T) {
		e, cal := newTestEngine(t)
		addEvent(t, cal, "Standup", "2025-03-20", "10:00", 30)
		addEvent(t, cal, "Lunch", "2025-03-20", "13:00", 60)

		resp := e.ExecuteIntent(ctx, intent.QueryEvents{Date: "2025-03-20"})
		result, ok := resp.(QueryResult)
		require.True(t, ok)
		require.Len(t, result.Events, 2)
		assert.Contains(t, result.Message, "Standup (10:00)")
		assert.Contains(t, result.Message, "Lunch (13:00)")
	})

	t.Run("QueryEmptyDay", func(t *testing.T) {
		e, _ := newTestEngine(t)
		resp := e.ExecuteIntent(ctx, intent.QueryEvents{Date: "2025-03-22"})
		result, ok := resp.(QueryResult)
		require.True(t, ok)
		assert.Empty(t, result.Events)
		assert.Contains(t, result.Message, "No events")
	})
}

func TestReschedule(t *testing.T) {
	ctx := context.Background()

	t.Run("FreeTargetMovesTheEvent", func(t *testing.T) {
		e, cal := newTestEngine(t)
		addEvent(t, cal, "Standup", "2025-03-20", "10:00", 60)

		resp := e.ExecuteIntent(ctx, intent.RescheduleEvent{
			TitleHint: "standup", OriginalDate: "2025-03-20", NewTime: "15:00",
		})
		require.IsType(t, Success{}, resp)
		assert.Contains(t, resp.Text(), "rescheduled to 2025-03-20 at 15:00")

		events, err := cal.FindEvents(ctx, "2025-03-20", "")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "2025-03-20T15:00:00", events[0].Start)
	})

	t.Run("ConflictingTargetPauses", func(t *testing.T) {
		e, cal := newTestEngine(t)
		addEvent(t, cal, "Standup", "2025-03-20", "10:00", 60)
		addEvent(t, cal, "Lunch", "2025-03-20", "13:00", 60)

		resp := e.ExecuteIntent(ctx, intent.RescheduleEvent{
			TitleHint: "standup", OriginalDate: "2025-03-20", NewTime: "13:30",
		})
		prompt, ok := resp.(ConflictPrompt)
		require.True(t, ok)
		assert.Contains(t, prompt.Message, "Lunch")

		pending, err := DecodeToken(prompt.Token)
		require.NoError(t, err)
		pe, ok := pending.(PendingEvent)
		require.True(t, ok)
		assert.Equal(t, PendingReschedule, pe.Action)
		assert.Equal(t, "13:30", pe.Time)
	})

	t.Run("MovingBackOntoItselfIsFree", func(t *testing.T) {
		// The event being moved must not conflict with itself.
		e, cal := newTestEngine(t)
		addEvent(t, cal, "Standup", "2025-03-20", "10:00", 60)

		resp := e.ExecuteIntent(ctx, intent.RescheduleEvent{
			TitleHint: "standup", OriginalDate: "2025-03-20", NewTime: "10:30",
		})
		require.IsType(t, Success{}, resp)
	})
}

func TestAddGuests(t *testing.T) {
	ctx := context.Background()

	t.Run("AddsToMatchedEvent", func(t *testing.T) {
		e, cal := newTestEngine(t)
		addEvent(t, cal, "Dinner", "2025-03-20", "19:00", 90)

		resp := e.ExecuteIntent(ctx, intent.AddGuests{
			TitleHint: "dinner", Date: "2025-03-20", Guests: []string{"omer@example.com"},
		})
		require.IsType(t, Success{}, resp)
		assert.Contains(t, resp.Text(), "✅ Added omer@example.com to *Dinner*")

		events, err := cal.FindEvents(ctx, "2025-03-20", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"omer@example.com"}, events[0].Guests)
	})

	t.Run("NoEmailsIsAnError", func(t *testing.T) {
		e, _ := newTestEngine(t)
		resp := e.ExecuteIntent(ctx, intent.AddGuests{TitleHint: "dinner", Date: "2025-03-20"})
		require.IsType(t, Error{}, resp)
	})
}

func TestTodayEvents(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)

	cal := memory.New(memory.WithNow(func() time.Time { return now }))
	e := New(cal, WithParser(&fakeParser{}))

	resp := e.TodayEvents(ctx)
	result, ok := resp.(QueryResult)
	require.True(t, ok)
	assert.Equal(t, "No events scheduled for today.", result.Message)

	addEvent(t, cal, "Standup", "2025-03-20", "10:00", 30)
	resp = e.TodayEvents(ctx)
	result, ok = resp.(QueryResult)
	require.True(t, ok)
	require.Len(t, result.Events, 1)
	assert.Contains(t, result.Message, "10:00 — Standup")
}

func TestTokenRoundTrip(t *testing.T) {
	pending := PendingEvent{
		Action:          PendingCreate,
		Create:          &intent.CreateEvent{Summary: "Dinner", Date: "2025-03-20", Time: "19:00"},
		Summary:         "Dinner",
		Date:            "2025-03-20",
		Time:            "19:00",
		SuggestedTime:   "20:00",
		DurationMinutes: 90,
	}

	token, err := EncodeToken(pending)
	require.NoError(t, err)

	decoded, err := DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, pending, decoded)

	_, err = DecodeToken("not a token")
	assert.Error(t, err)

	_, err = DecodeToken("")
	assert.Error(t, err)
}

// recordingLogger captures the richer logging calls components upgrade to
// when the configured logger supports them.
type recordingLogger struct {
	logging.NoOpLogger
	stages []string
	ops    []string
}

func (r *recordingLogger) LogPipelineStage(stage string, paused bool, dur time.Duration) {
	r.stages = append(r.stages, stage)
}

func (r *recordingLogger) LogCalendarCall(op string, dur time.Duration, success bool, err error) {
	r.ops = append(r.ops, op)
}

func TestPipelineLogging(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateRecordsEveryStageAndTheWrite", func(t *testing.T) {
		rec := &recordingLogger{}
		e, _ := newTestEngine(t, WithLogger(rec))

		resp := e.ExecuteIntent(ctx, intent.CreateEvent{Summary: "Lunch", Date: "2025-03-20", Time: "12:00"})
		require.IsType(t, Success{}, resp)

		assert.Equal(t, []string{"contacts", "time", "location", "conflicts"}, rec.stages)
		assert.Equal(t, []string{"add_event"}, rec.ops)
	})

	t.Run("CancelRecordsTheDelete", func(t *testing.T) {
		rec := &recordingLogger{}
		e, cal := newTestEngine(t, WithLogger(rec))
		addEvent(t, cal, "Dinner", "2025-03-20", "19:00", 60)

		resp := e.ExecuteIntent(ctx, intent.CancelEvent{TitleHint: "dinner", Date: "2025-03-20"})
		require.IsType(t, Success{}, resp)

		assert.Equal(t, []string{"delete_event"}, rec.ops)
	})

	t.Run("PlainLoggerNeedsNoRecorder", func(t *testing.T) {
		e, _ := newTestEngine(t, WithLogger(logging.NoOpLogger{}))

		resp := e.ExecuteIntent(ctx, intent.CreateEvent{Summary: "Lunch", Date: "2025-03-20", Time: "12:00"})
		require.IsType(t, Success{}, resp)
	})
}
