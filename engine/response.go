package engine

import "github.com/calweave/calweave/calendar"

// ResponseKind discriminates the engine's response union.
type ResponseKind string

// Response kinds. Prompt kinds (conflict, contact, batch-cancel, slots) pause
// the conversation and carry everything needed to resume it later.
const (
	KindSuccess           ResponseKind = "success"
	KindError             ResponseKind = "error"
	KindNoAction          ResponseKind = "no_action"
	KindConflictPrompt    ResponseKind = "conflict_prompt"
	KindContactPrompt     ResponseKind = "contact_prompt"
	KindBatchCancelPrompt ResponseKind = "batch_cancel_prompt"
	KindQueryResult       ResponseKind = "query_result"
	KindBatchSummary      ResponseKind = "batch_summary"
	KindSlotSuggestion    ResponseKind = "slot_suggestion"
)

// Response is the result of processing user input. Callers type-switch on
// the concrete type (or inspect ResponseKind) to decide what to render and
// whether a pending token must be held for a follow-up.
type Response interface {
	ResponseKind() ResponseKind
	Text() string
}

// EventInfo is the event context a successful action hands back so the next
// message can refer to "it".
type EventInfo struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Date    string `json:"date"`
	Time    string `json:"time,omitempty"`
	Link    string `json:"link,omitempty"`
}

func eventInfoFrom(ev calendar.Event) *EventInfo {
	info := &EventInfo{
		ID:      ev.ID,
		Summary: ev.Summary,
		Date:    ev.StartDate(),
		Link:    ev.HTMLLink,
	}
	if !ev.IsAllDay() && len(ev.Start) >= 16 {
		info.Time = ev.Start[11:16]
	}
	return info
}

// Success reports a completed action.
type Success struct {
	Message string
	Event   *EventInfo
}

// ResponseKind implements Response.
func (Success) ResponseKind() ResponseKind { return KindSuccess }

// Text implements Response.
func (r Success) Text() string { return r.Message }

// Error reports a failed action in user-facing terms.
type Error struct {
	Message string
}

// ResponseKind implements Response.
func (Error) ResponseKind() ResponseKind { return KindError }

// Text implements Response.
func (r Error) Text() string { return r.Message }

// NoAction reports that the text contained nothing actionable.
type NoAction struct {
	Message string
}

// ResponseKind implements Response.
func (NoAction) ResponseKind() ResponseKind { return KindNoAction }

// Text implements Response.
func (r NoAction) Text() string { return r.Message }

// ConflictChoice identifies one way out of a time conflict.
type ConflictChoice string

// Conflict resolution choices.
const (
	ChoiceSuggested ConflictChoice = "suggested"
	ChoiceForce     ConflictChoice = "force"
	ChoiceCustom    ConflictChoice = "custom"
	ChoiceCancel    ConflictChoice = "cancel"
)

// ConflictOption is one selectable way to resolve a conflict.
type ConflictOption struct {
	Choice ConflictChoice `json:"choice"`
	Label  string         `json:"label"`
	Time   string         `json:"time,omitempty"`
}

// ConflictPrompt pauses an action because the requested time overlaps
// existing events. Token replays the action once the user picks an option.
type ConflictPrompt struct {
	Message string
	Options []ConflictOption
	Token   string
}

// ResponseKind implements Response.
func (ConflictPrompt) ResponseKind() ResponseKind { return KindConflictPrompt }

// Text implements Response.
func (r ConflictPrompt) Text() string { return r.Message }

// ContactPrompt pauses an action until the user supplies an email address
// for the named contact.
type ContactPrompt struct {
	Message string
	Name    string
	Token   string
}

// ResponseKind implements Response.
func (ContactPrompt) ResponseKind() ResponseKind { return KindContactPrompt }

// Text implements Response.
func (r ContactPrompt) Text() string { return r.Message }

// BatchCancelPrompt asks for confirmation before a cancel-all-except sweep.
type BatchCancelPrompt struct {
	Message    string
	WillCancel []string
	WillKeep   []string
	Token      string
}

// ResponseKind implements Response.
func (BatchCancelPrompt) ResponseKind() ResponseKind { return KindBatchCancelPrompt }

// Text implements Response.
func (r BatchCancelPrompt) Text() string { return r.Message }

// QueryResult lists the events found for a date.
type QueryResult struct {
	Message string
	Date    string
	Events  []calendar.Event
}

// ResponseKind implements Response.
func (QueryResult) ResponseKind() ResponseKind { return KindQueryResult }

// Text implements Response.
func (r QueryResult) Text() string { return r.Message }

// ActionResult is the outcome of one intent inside a batch.
type ActionResult struct {
	Action  string
	Success bool
	Message string
	Event   *EventInfo
}

// BatchSummary aggregates the outcomes of a multi-intent message. A batch
// never pauses; blocked actions surface here as failed results.
type BatchSummary struct {
	Message string
	Results []ActionResult
}

// ResponseKind implements Response.
func (BatchSummary) ResponseKind() ResponseKind { return KindBatchSummary }

// Text implements Response.
func (r BatchSummary) Text() string { return r.Message }

// SlotOption is one proposed start time for an event created without a time.
type SlotOption struct {
	Time  string `json:"time"`
	Label string `json:"label"`
}

// SlotSuggestion pauses a create that arrived without a start time and offers
// free slots to pick from. Slots is a spread of picks for display;
// AllAvailable is the full free-slot list for callers that render their own
// choices.
type SlotSuggestion struct {
	Message      string
	Date         string
	Slots        []SlotOption
	AllAvailable []string
	Token        string
}

// ResponseKind implements Response.
func (SlotSuggestion) ResponseKind() ResponseKind { return KindSlotSuggestion }

// Text implements Response.
func (r SlotSuggestion) Text() string { return r.Message }
