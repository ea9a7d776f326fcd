package alarm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/calendar/memory"
	"github.com/calweave/calweave/chore"
	choresqlite "github.com/calweave/calweave/chore/sqlite"
	"github.com/calweave/calweave/place"
)

var digestNow = time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) Send(_ context.Context, message string) error {
	f.sent = append(f.sent, message)
	return nil
}

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(context.Context, string, string, int) (string, error) {
	return f.reply, f.err
}

type fakeTravel struct {
	result *place.TravelTime
}

func (f *fakeTravel) TravelTime(context.Context, string, string) (*place.TravelTime, error) {
	return f.result, nil
}

func newDigestCalendar(t *testing.T) *memory.Store {
	t.Helper()
	return memory.New(memory.WithNow(func() time.Time { return digestNow }))
}

func addTimedEvent(t *testing.T, cal *memory.Store, summary, date, tm, location string) {
	t.Helper()
	_, err := cal.AddEvent(context.Background(), calendar.Draft{
		Summary:         summary,
		Date:            date,
		Time:            tm,
		DurationMinutes: 60,
		Location:        location,
	})
	require.NoError(t, err)
}

func TestMorningSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("RawFormattingWithoutCompleter", func(t *testing.T) {
		cal := newDigestCalendar(t)
		addTimedEvent(t, cal, "Standup", "2025-03-10", "10:00", "")

		chores, err := choresqlite.Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { chores.Close() })
		_, err = chores.Add(ctx, chore.Chore{Name: "Take out trash", FrequencyDays: 7, NextDue: "2025-03-10", AssignedTo: "Amit"})
		require.NoError(t, err)

		d := New(cal, &fakeNotifier{},
			WithChores(chores),
			WithNow(func() time.Time { return digestNow }),
		)

		msg, err := d.MorningSummary(ctx)
		require.NoError(t, err)
		assert.Contains(t, msg, "Good morning!")
		assert.Contains(t, msg, "10:00-11:00 Standup")
		assert.Contains(t, msg, "Take out trash (assigned to Amit)")
	})

	t.Run("CompleterWritesTheBriefing", func(t *testing.T) {
		cal := newDigestCalendar(t)
		addTimedEvent(t, cal, "Standup", "2025-03-10", "10:00", "")

		d := New(cal, &fakeNotifier{},
			WithCompleter(&fakeCompleter{reply: "  Nice day ahead!  "}),
			WithNow(func() time.Time { return digestNow }),
		)

		msg, err := d.MorningSummary(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Nice day ahead!", msg)
	})

	t.Run("CompleterFailureFallsBackToRaw", func(t *testing.T) {
		cal := newDigestCalendar(t)
		d := New(cal, &fakeNotifier{},
			WithCompleter(&fakeCompleter{err: assert.AnError}),
			WithNow(func() time.Time { return digestNow }),
		)

		msg, err := d.MorningSummary(ctx)
		require.NoError(t, err)
		assert.Contains(t, msg, "Good morning!")
		assert.Contains(t, msg, "Calendar events today: None")
	})
}

func TestNightlyAlarm(t *testing.T) {
	ctx := context.Background()

	t.Run("RecommendsFromTomorrowsFirstTimedEvent", func(t *testing.T) {
		cal := newDigestCalendar(t)
		addTimedEvent(t, cal, "Standup", "2025-03-11", "09:00", "Office")
		addTimedEvent(t, cal, "Lunch", "2025-03-11", "13:00", "")

		d := New(cal, &fakeNotifier{},
			WithTravel(&fakeTravel{result: &place.TravelTime{DurationMinutes: 30, DurationText: "30 mins", DistanceText: "25 km"}}, "Home"),
			WithNow(func() time.Time { return digestNow }),
		)

		msg, err := d.NightlyAlarm(ctx)
		require.NoError(t, err)
		assert.Contains(t, msg, "Set your alarm for *07:30*")
		assert.Contains(t, msg, "*Standup* at 09:00")
		assert.Contains(t, msg, "Travel: 30 mins (25 km)")
	})

	t.Run("NoTravelWithoutLocation", func(t *testing.T) {
		cal := newDigestCalendar(t)
		addTimedEvent(t, cal, "Standup", "2025-03-11", "09:00", "")

		d := New(cal, &fakeNotifier{},
			WithTravel(&fakeTravel{result: &place.TravelTime{DurationMinutes: 30}}, "Home"),
			WithNow(func() time.Time { return digestNow }),
		)

		msg, err := d.NightlyAlarm(ctx)
		require.NoError(t, err)
		assert.Contains(t, msg, "Set your alarm for *08:00*")
		assert.NotContains(t, msg, "Travel:")
	})

	t.Run("LateStartGetsARelaxedNote", func(t *testing.T) {
		cal := newDigestCalendar(t)
		addTimedEvent(t, cal, "Brunch", "2025-03-11", "13:00", "")

		d := New(cal, &fakeNotifier{}, WithNow(func() time.Time { return digestNow }))

		msg, err := d.NightlyAlarm(ctx)
		require.NoError(t, err)
		assert.Contains(t, msg, "Set your alarm for *12:00*")
		assert.Contains(t, msg, "enjoy a relaxed morning")
	})

	t.Run("EmptyTomorrowMeansNoMessage", func(t *testing.T) {
		cal := newDigestCalendar(t)
		d := New(cal, &fakeNotifier{}, WithNow(func() time.Time { return digestNow }))

		msg, err := d.NightlyAlarm(ctx)
		require.NoError(t, err)
		assert.Empty(t, msg)
	})
}

func TestStart(t *testing.T) {
	cal := newDigestCalendar(t)
	d := New(cal, &fakeNotifier{})

	c, err := d.Start()
	require.NoError(t, err)
	c.Stop()

	bad := New(cal, &fakeNotifier{}, WithSchedule("not a cron spec", DefaultNightlySpec))
	_, err = bad.Start()
	assert.Error(t, err)
}
