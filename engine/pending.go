package engine

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/calweave/calweave/intent"
)

// Pending is the state a paused action carries across the user round trip.
// It travels as an opaque token; the engine holds no session state itself.
type Pending interface {
	pendingKind() string
}

const (
	pendingKindEvent   = "event"
	pendingKindContact = "contact"
	pendingKindBatch   = "batch_cancel"
)

// PendingAction distinguishes what a PendingEvent will do on resume.
type PendingAction string

// Pending event actions.
const (
	PendingCreate     PendingAction = "create"
	PendingReschedule PendingAction = "reschedule"
)

// PendingEvent is a create or reschedule paused on a time conflict or held
// for a slot pick. Time is the originally requested start; SuggestedTime is
// the nearest free alternative, when one exists.
type PendingEvent struct {
	Action          PendingAction       `json:"action"`
	Create          *intent.CreateEvent `json:"create,omitempty"`
	EventID         string              `json:"event_id,omitempty"`
	Summary         string              `json:"summary,omitempty"`
	Date            string              `json:"date"`
	Time            string              `json:"time,omitempty"`
	SuggestedTime   string              `json:"suggested_time,omitempty"`
	DurationMinutes int                 `json:"duration_minutes,omitempty"`
}

func (PendingEvent) pendingKind() string { return pendingKindEvent }

// PendingContactResolution is a create or modify paused because one or more
// mentioned names have no known email. Resolved accumulates answers so a
// multi-name action survives several round trips.
type PendingContactResolution struct {
	Create     *intent.CreateEvent `json:"create,omitempty"`
	Modify     *intent.ModifyEvent `json:"modify,omitempty"`
	Resolved   map[string]string   `json:"resolved,omitempty"`
	Unresolved []string            `json:"unresolved"`
	Asking     string              `json:"asking"`
}

func (PendingContactResolution) pendingKind() string { return pendingKindContact }

// EventRef is the minimal handle a batch cancel needs per event.
type EventRef struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

// PendingBatchCancel is a cancel-all-except awaiting confirmation.
type PendingBatchCancel struct {
	Date   string     `json:"date"`
	Cancel []EventRef `json:"cancel"`
	Keep   []string   `json:"keep,omitempty"`
}

func (PendingBatchCancel) pendingKind() string { return pendingKindBatch }

type tokenEnvelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeToken serializes pending state into an opaque token the caller can
// hand back to the matching resume operation.
func EncodeToken(p Pending) (string, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode pending state: %w", err)
	}
	env, err := json.Marshal(tokenEnvelope{Kind: p.pendingKind(), Payload: payload})
	if err != nil {
		return "", fmt.Errorf("encode pending state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(env), nil
}

// DecodeToken reverses EncodeToken. Tampered or truncated tokens fail.
func DecodeToken(token string) (Pending, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode pending token: %w", err)
	}
	var env tokenEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode pending token: %w", err)
	}

	switch env.Kind {
	case pendingKindEvent:
		var p PendingEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode pending event: %w", err)
		}
		return p, nil
	case pendingKindContact:
		var p PendingContactResolution
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode pending contact resolution: %w", err)
		}
		return p, nil
	case pendingKindBatch:
		var p PendingBatchCancel
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode pending batch cancel: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown pending token kind %q", env.Kind)
	}
}

// mustToken encodes pending state, falling back to an empty token on the
// unreachable marshal failure path.
func mustToken(p Pending) string {
	token, err := EncodeToken(p)
	if err != nil {
		return ""
	}
	return token
}
