package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	t.Run("CreateEvent", func(t *testing.T) {
		it, err := Unmarshal([]byte(`{
			"intent": "create",
			"event": "Dinner with Sara",
			"date": "2025-03-14",
			"time": "19:00",
			"duration_minutes": 90,
			"mentioned_contacts": ["Sara"],
			"location": "Trattoria da Enzo"
		}`))
		require.NoError(t, err)

		create, ok := it.(CreateEvent)
		require.True(t, ok)
		assert.Equal(t, "Dinner with Sara", create.Summary)
		assert.Equal(t, "2025-03-14", create.Date)
		assert.Equal(t, "19:00", create.Time)
		assert.Equal(t, 90, create.DurationMinutes)
		assert.Equal(t, []string{"Sara"}, create.MentionedContacts)
		assert.Equal(t, "Trattoria da Enzo", create.Location)
		assert.Equal(t, KindCreateEvent, create.Kind())
	})

	t.Run("Reschedule", func(t *testing.T) {
		it, err := Unmarshal([]byte(`{
			"intent": "reschedule",
			"event_summary": "dentist",
			"original_date": "2025-03-14",
			"new_time": "15:00"
		}`))
		require.NoError(t, err)

		re, ok := it.(RescheduleEvent)
		require.True(t, ok)
		assert.Equal(t, "dentist", re.TitleHint)
		assert.Equal(t, "2025-03-14", re.OriginalDate)
		assert.Equal(t, "15:00", re.NewTime)
	})

	t.Run("CancelAllExcept", func(t *testing.T) {
		it, err := Unmarshal([]byte(`{
			"intent": "cancel_all_except",
			"date": "2025-03-14",
			"exceptions": ["padel", "dentist"]
		}`))
		require.NoError(t, err)

		cae, ok := it.(CancelAllExcept)
		require.True(t, ok)
		assert.Equal(t, []string{"padel", "dentist"}, cae.ExceptionHints)
	})

	t.Run("ModifyEvent", func(t *testing.T) {
		it, err := Unmarshal([]byte(`{
			"intent": "modify",
			"new_time": "15:00",
			"add_guests": ["bob@example.com"],
			"mentioned_contacts": ["Alice"]
		}`))
		require.NoError(t, err)

		mod, ok := it.(ModifyEvent)
		require.True(t, ok)
		assert.Equal(t, "15:00", mod.NewTime)
		assert.Equal(t, []string{"bob@example.com"}, mod.AddGuestEmails)
		assert.Equal(t, []string{"Alice"}, mod.MentionedNames)
	})

	t.Run("UnknownIntent", func(t *testing.T) {
		_, err := Unmarshal([]byte(`{"intent": "launch_rocket"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "launch_rocket")
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		_, err := Unmarshal([]byte(`{"intent": `))
		require.Error(t, err)
	})
}

func TestUnmarshalList(t *testing.T) {
	t.Run("Array", func(t *testing.T) {
		intents, err := UnmarshalList([]byte(`[
			{"intent": "cancel", "event_summary": "standup", "date": "2025-03-14"},
			{"intent": "query", "date": "2025-03-15"}
		]`))
		require.NoError(t, err)
		require.Len(t, intents, 2)
		assert.IsType(t, CancelEvent{}, intents[0])
		assert.IsType(t, QueryEvents{}, intents[1])
	})

	t.Run("BareObjectBecomesSingleton", func(t *testing.T) {
		intents, err := UnmarshalList([]byte(`{"intent": "query", "date": "2025-03-15"}`))
		require.NoError(t, err)
		require.Len(t, intents, 1)
		assert.Equal(t, QueryEvents{Date: "2025-03-15"}, intents[0])
	})

	t.Run("BadElementFailsWhole", func(t *testing.T) {
		_, err := UnmarshalList([]byte(`[{"intent": "nope"}]`))
		require.Error(t, err)
	})
}

func TestMarshalRoundTrip(t *testing.T) {
	orig := RescheduleEvent{
		TitleHint:    "dentist",
		OriginalDate: "2025-03-14",
		NewTime:      "09:30",
	}
	data, err := Marshal(orig)
	require.NoError(t, err)

	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}
