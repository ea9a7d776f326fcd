package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calweave/calweave/calendar"
)

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("TimedEvent", func(t *testing.T) {
		s := New()
		ev, err := s.AddEvent(ctx, calendar.Draft{
			Summary: "Standup", Date: "2025-03-20", Time: "10:00", DurationMinutes: 30,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, "2025-03-20T10:00:00", ev.Start)
		assert.Equal(t, "2025-03-20T10:30:00", ev.End)
		assert.False(t, ev.IsAllDay())
	})

	t.Run("NoTimeMeansAllDay", func(t *testing.T) {
		s := New()
		ev, err := s.AddEvent(ctx, calendar.Draft{Summary: "Holiday", Date: "2025-03-20"})
		require.NoError(t, err)
		assert.Equal(t, "2025-03-20", ev.Start)
		assert.True(t, ev.IsAllDay())
	})

	t.Run("ZeroDurationDefaultsToAnHour", func(t *testing.T) {
		s := New()
		ev, err := s.AddEvent(ctx, calendar.Draft{Summary: "Call", Date: "2025-03-20", Time: "14:00"})
		require.NoError(t, err)
		assert.Equal(t, "2025-03-20T15:00:00", ev.End)
	})

	t.Run("EndPastMidnightRollsToNextDay", func(t *testing.T) {
		s := New()
		ev, err := s.AddEvent(ctx, calendar.Draft{
			Summary: "Late movie", Date: "2025-03-20", Time: "23:30", DurationMinutes: 90,
		})
		require.NoError(t, err)
		assert.Equal(t, "2025-03-20T23:30:00", ev.Start)
		assert.Equal(t, "2025-03-21T01:00:00", ev.End)
	})

	t.Run("MissingDateIsRejected", func(t *testing.T) {
		s := New()
		_, err := s.AddEvent(ctx, calendar.Draft{Summary: "Nowhere"})
		require.Error(t, err)
	})

	t.Run("GuestsAreDeduplicated", func(t *testing.T) {
		s := New()
		ev, err := s.AddEvent(ctx, calendar.Draft{
			Summary: "Sync", Date: "2025-03-20", Time: "09:00",
			Guests: []string{"dana@example.com", "Dana@Example.com", "omer@example.com"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"dana@example.com", "omer@example.com"}, ev.Guests)
	})
}

func TestFindEvents(t *testing.T) {
	ctx := context.Background()
	s := New()

	add := func(summary, date, tm string) calendar.Event {
		t.Helper()
		ev, err := s.AddEvent(ctx, calendar.Draft{Summary: summary, Date: date, Time: tm, DurationMinutes: 60})
		require.NoError(t, err)
		return ev
	}

	add("Lunch", "2025-03-20", "13:00")
	add("Team standup", "2025-03-20", "09:00")
	add("Dentist", "2025-03-21", "10:00")

	t.Run("FiltersByDateAndSortsByStart", func(t *testing.T) {
		events, err := s.FindEvents(ctx, "2025-03-20", "")
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "Team standup", events[0].Summary)
		assert.Equal(t, "Lunch", events[1].Summary)
	})

	t.Run("QueryIsCaseInsensitiveSubstring", func(t *testing.T) {
		events, err := s.FindEvents(ctx, "2025-03-20", "STANDUP")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "Team standup", events[0].Summary)
	})

	t.Run("EmptyDateIsRejected", func(t *testing.T) {
		_, err := s.FindEvents(ctx, "", "")
		require.Error(t, err)
	})

	t.Run("ReturnedEventsAreCopies", func(t *testing.T) {
		events, err := s.FindEvents(ctx, "2025-03-20", "lunch")
		require.NoError(t, err)
		events[0].Summary = "mutated"

		again, err := s.FindEvents(ctx, "2025-03-20", "lunch")
		require.NoError(t, err)
		assert.Equal(t, "Lunch", again[0].Summary)
	})
}

func TestDeleteEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("RemovesSingleEvent", func(t *testing.T) {
		s := New()
		ev, err := s.AddEvent(ctx, calendar.Draft{Summary: "Gym", Date: "2025-03-20", Time: "18:00"})
		require.NoError(t, err)

		require.NoError(t, s.DeleteEvent(ctx, ev.ID))
		events, err := s.FindEvents(ctx, "2025-03-20", "")
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("UnknownIDIsNotFound", func(t *testing.T) {
		s := New()
		err := s.DeleteEvent(ctx, "no-such-id")
		require.Error(t, err)
		assert.ErrorIs(t, err, calendar.ErrNotFound)
	})
}

func TestUpdateEvent(t *testing.T) {
	ctx := context.Background()
	s := New()

	ev, err := s.AddEvent(ctx, calendar.Draft{
		Summary: "Review", Date: "2025-03-20", Time: "10:00", DurationMinutes: 90,
	})
	require.NoError(t, err)

	moved, err := s.UpdateEvent(ctx, ev.ID, "2025-03-21", "14:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-21T14:00:00", moved.Start)
	// The 90-minute duration survives the move.
	assert.Equal(t, "2025-03-21T15:30:00", moved.End)

	_, err = s.UpdateEvent(ctx, "no-such-id", "2025-03-21", "14:00")
	require.Error(t, err)
}

func TestUpdateEventFields(t *testing.T) {
	ctx := context.Background()
	s := New()

	ev, err := s.AddEvent(ctx, calendar.Draft{
		Summary: "Dinner", Date: "2025-03-20", Time: "19:00",
		Guests: []string{"dana@example.com", "omer@example.com"},
	})
	require.NoError(t, err)

	newTime := "20:00"
	desc := "Birthday dinner"
	loc := "Trattoria da Enzo"
	updated, err := s.UpdateEventFields(ctx, ev.ID, calendar.FieldUpdate{
		Time:         &newTime,
		Description:  &desc,
		Location:     &loc,
		AddGuests:    []string{"noa@example.com", "DANA@example.com"},
		RemoveGuests: []string{"Omer@Example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-20T20:00:00", updated.Start)
	assert.Equal(t, "2025-03-20T21:00:00", updated.End)
	assert.Equal(t, "Birthday dinner", updated.Description)
	assert.Equal(t, "Trattoria da Enzo", updated.Location)
	assert.Equal(t, []string{"dana@example.com", "noa@example.com"}, updated.Guests)

	t.Run("SparsePatchLeavesOtherFieldsAlone", func(t *testing.T) {
		other := "Moved outside"
		patched, err := s.UpdateEventFields(ctx, ev.ID, calendar.FieldUpdate{Description: &other})
		require.NoError(t, err)
		assert.Equal(t, "Moved outside", patched.Description)
		assert.Equal(t, "2025-03-20T20:00:00", patched.Start)
		assert.Equal(t, "Trattoria da Enzo", patched.Location)
	})
}

func TestAddGuests(t *testing.T) {
	ctx := context.Background()
	s := New()

	ev, err := s.AddEvent(ctx, calendar.Draft{
		Summary: "Sync", Date: "2025-03-20", Time: "11:00", Guests: []string{"dana@example.com"},
	})
	require.NoError(t, err)

	updated, err := s.AddGuests(ctx, ev.ID, []string{"omer@example.com", "dana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dana@example.com", "omer@example.com"}, updated.Guests)

	_, err = s.AddGuests(ctx, "no-such-id", []string{"x@example.com"})
	require.Error(t, err)
}

func TestAddRecurringEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("ExpandsOccurrences", func(t *testing.T) {
		s := New()
		first, err := s.AddRecurringEvent(ctx, calendar.Recurrence{
			Summary: "Water plants", StartDate: "2025-03-11",
			StartTime: "17:00", EndTime: "17:30",
			FrequencyDays: 3, Occurrences: 3,
		})
		require.NoError(t, err)
		assert.Equal(t, "2025-03-11T17:00:00", first.Start)
		assert.Equal(t, "2025-03-11T17:30:00", first.End)

		for _, date := range []string{"2025-03-11", "2025-03-14", "2025-03-17"} {
			events, err := s.FindEvents(ctx, date, "")
			require.NoError(t, err)
			require.Len(t, events, 1, "expected an occurrence on %s", date)
			assert.Equal(t, "Water plants", events[0].Summary)
		}

		events, err := s.FindEvents(ctx, "2025-03-12", "")
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("SeriesIDDeletesEveryOccurrence", func(t *testing.T) {
		s := New()
		first, err := s.AddRecurringEvent(ctx, calendar.Recurrence{
			Summary: "Laundry", StartDate: "2025-03-11",
			StartTime: "19:00", EndTime: "20:00",
			FrequencyDays: 7, Occurrences: 2,
		})
		require.NoError(t, err)

		require.NoError(t, s.DeleteEvent(ctx, first.ID))
		for _, date := range []string{"2025-03-11", "2025-03-18"} {
			events, err := s.FindEvents(ctx, date, "")
			require.NoError(t, err)
			assert.Empty(t, events)
		}
	})

	t.Run("InvalidRecurrenceIsRejected", func(t *testing.T) {
		s := New()
		_, err := s.AddRecurringEvent(ctx, calendar.Recurrence{
			Summary: "Broken", StartDate: "2025-03-11",
			StartTime: "18:00", EndTime: "17:00",
			FrequencyDays: 3, Occurrences: 3,
		})
		require.Error(t, err)

		_, err = s.AddRecurringEvent(ctx, calendar.Recurrence{
			Summary: "Broken", StartDate: "2025-03-11",
			StartTime: "17:00", EndTime: "18:00",
			FrequencyDays: 0, Occurrences: 3,
		})
		require.Error(t, err)
	})
}

func TestGetDailyEvents(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)
	s := New(WithNow(func() time.Time { return now }))

	_, err := s.AddEvent(ctx, calendar.Draft{Summary: "Standup", Date: "2025-03-20", Time: "10:00"})
	require.NoError(t, err)
	_, err = s.AddEvent(ctx, calendar.Draft{Summary: "Dentist", Date: "2025-03-21", Time: "10:00"})
	require.NoError(t, err)

	events, err := s.GetDailyEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Standup", events[0].Summary)

	events, err = s.GetDailyEvents(ctx, "2025-03-21")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Dentist", events[0].Summary)
}
