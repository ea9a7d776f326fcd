// Package intent defines the structured actions extracted from free-form
// user text. Each intent is a plain data carrier; the engine interprets it.
// The JSON tags mirror the extraction contract the parser's language model
// is prompted to emit.
package intent

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the intent union.
type Kind string

// Known intent kinds. The values are the wire discriminators the extraction
// prompt asks the model to emit.
const (
	KindCreateEvent     Kind = "create"
	KindCancelEvent     Kind = "cancel"
	KindRescheduleEvent Kind = "reschedule"
	KindQueryEvents     Kind = "query"
	KindCancelAllExcept Kind = "cancel_all_except"
	KindAddGuests       Kind = "add_guests"
	KindModifyEvent     Kind = "modify"
)

// Intent is one structured action extracted from user text.
type Intent interface {
	Kind() Kind
}

// CreateEvent asks for a new calendar event. Time may be empty, meaning the
// user gave no start time and a slot should be suggested. MentionedContacts
// holds bare names that still need resolving to email addresses, while
// Guests holds addresses that arrived ready to use.
type CreateEvent struct {
	Summary           string   `json:"event"`
	Date              string   `json:"date"`
	Time              string   `json:"time,omitempty"`
	DurationMinutes   int      `json:"duration_minutes,omitempty"`
	Description       string   `json:"description,omitempty"`
	Guests            []string `json:"guests,omitempty"`
	MentionedContacts []string `json:"mentioned_contacts,omitempty"`
	Location          string   `json:"location,omitempty"`
	MapsURL           string   `json:"maps_url,omitempty"`
}

// Kind implements Intent.
func (CreateEvent) Kind() Kind { return KindCreateEvent }

// CancelEvent asks to delete an event matched by a fuzzy title hint.
type CancelEvent struct {
	TitleHint string `json:"event_summary"`
	Date      string `json:"date"`
}

// Kind implements Intent.
func (CancelEvent) Kind() Kind { return KindCancelEvent }

// RescheduleEvent asks to move an event on its original date to a new start
// time.
type RescheduleEvent struct {
	TitleHint    string `json:"event_summary"`
	OriginalDate string `json:"original_date"`
	NewTime      string `json:"new_time"`
}

// Kind implements Intent.
func (RescheduleEvent) Kind() Kind { return KindRescheduleEvent }

// QueryEvents asks what is on the calendar for a date.
type QueryEvents struct {
	Date string `json:"date"`
}

// Kind implements Intent.
func (QueryEvents) Kind() Kind { return KindQueryEvents }

// CancelAllExcept asks to clear a day except the events matching the
// exception hints.
type CancelAllExcept struct {
	Date           string   `json:"date"`
	ExceptionHints []string `json:"exceptions"`
}

// Kind implements Intent.
func (CancelAllExcept) Kind() Kind { return KindCancelAllExcept }

// AddGuests asks to invite people to an existing event.
type AddGuests struct {
	TitleHint string   `json:"event_summary"`
	Date      string   `json:"date"`
	Guests    []string `json:"guests,omitempty"`
}

// Kind implements Intent.
func (AddGuests) Kind() Kind { return KindAddGuests }

// ModifyEvent patches the event the conversation is currently about. EventID
// and the event descriptors are injected by the engine from conversational
// context rather than extracted from text.
type ModifyEvent struct {
	EventID           string   `json:"event_id,omitempty"`
	EventSummary      string   `json:"event_summary,omitempty"`
	EventDate         string   `json:"event_date,omitempty"`
	EventTime         string   `json:"event_time,omitempty"`
	NewTime           string   `json:"new_time,omitempty"`
	NewDescription    string   `json:"new_description,omitempty"`
	AddLocation       string   `json:"add_location,omitempty"`
	AddGuestEmails    []string `json:"add_guests,omitempty"`
	RemoveGuestEmails []string `json:"remove_guests,omitempty"`
	MentionedNames    []string `json:"mentioned_contacts,omitempty"`
}

// Kind implements Intent.
func (ModifyEvent) Kind() Kind { return KindModifyEvent }

// envelope is the wire shape of one extracted intent: a discriminator plus
// the kind-specific payload fields, flat in the same object.
type envelope struct {
	Action Kind `json:"intent"`
}

// Unmarshal decodes a single intent object from its wire form.
func Unmarshal(data []byte) (Intent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}

	var target Intent
	switch env.Action {
	case KindCreateEvent:
		target = &CreateEvent{}
	case KindCancelEvent:
		target = &CancelEvent{}
	case KindRescheduleEvent:
		target = &RescheduleEvent{}
	case KindQueryEvents:
		target = &QueryEvents{}
	case KindCancelAllExcept:
		target = &CancelAllExcept{}
	case KindAddGuests:
		target = &AddGuests{}
	case KindModifyEvent:
		target = &ModifyEvent{}
	default:
		return nil, fmt.Errorf("unknown intent %q", env.Action)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("decode %s intent: %w", env.Action, err)
	}
	return deref(target), nil
}

// deref returns the value form of a decoded intent pointer so callers can
// type-switch on value types.
func deref(it Intent) Intent {
	switch v := it.(type) {
	case *CreateEvent:
		return *v
	case *CancelEvent:
		return *v
	case *RescheduleEvent:
		return *v
	case *QueryEvents:
		return *v
	case *CancelAllExcept:
		return *v
	case *AddGuests:
		return *v
	case *ModifyEvent:
		return *v
	default:
		return it
	}
}

// UnmarshalList decodes a JSON array of intent objects, tolerating a single
// bare object as a one-element list.
func UnmarshalList(data []byte) ([]Intent, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		// Some models emit a single object instead of a one-element array.
		single, serr := Unmarshal(data)
		if serr != nil {
			return nil, fmt.Errorf("decode intent list: %w", err)
		}
		return []Intent{single}, nil
	}

	intents := make([]Intent, 0, len(raws))
	for _, raw := range raws {
		it, err := Unmarshal(raw)
		if err != nil {
			return nil, err
		}
		intents = append(intents, it)
	}
	return intents, nil
}

// Marshal encodes an intent back to its wire form, including the
// discriminator field.
func Marshal(it Intent) ([]byte, error) {
	payload, err := json.Marshal(it)
	if err != nil {
		return nil, fmt.Errorf("encode intent: %w", err)
	}
	var flat map[string]any
	if err := json.Unmarshal(payload, &flat); err != nil {
		return nil, fmt.Errorf("encode intent: %w", err)
	}
	flat["intent"] = it.Kind()
	return json.Marshal(flat)
}
