package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of state change a DraftEvent carries.
type EventType string

const (
	EventTypeDraftStarted    EventType = "draft.started"
	EventTypePickMade        EventType = "pick.made"
	EventTypeDraftPaused     EventType = "draft.paused"
	EventTypeDraftResumed    EventType = "draft.resumed"
	EventTypeDraftCompleted  EventType = "draft.completed"
	EventTypeSeasonCancelled EventType = "season.cancelled"
)

// Structural reports whether the event invalidates incremental deltas and
// forces subscribers to resync from a snapshot. draft.started introduces
// seats that did not previously exist.
func (t EventType) Structural() bool {
	return t == EventTypeDraftStarted
}

// Terminal reports whether subscribers should stop applying events after
// this one.
func (t EventType) Terminal() bool {
	return t == EventTypeSeasonCancelled
}

// DraftEvent is an immutable, ordered record of a draft state change.
// Version equals the draft's version at emission time and is strictly
// increasing per draft; delivery is best effort and correctness relies on
// the subscriber-side gap detection, not on the transport.
type DraftEvent struct {
	ID        uuid.UUID       `json:"id"`
	DraftID   uuid.UUID       `json:"draft_id"`
	Version   int64           `json:"version"`
	Type      EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// ParsePayload decodes the event payload into the struct matching its type.
func ParsePayload(e *DraftEvent) (interface{}, error) {
	switch e.Type {
	case EventTypeDraftStarted:
		var p DraftStartedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case EventTypePickMade:
		var p PickMadePayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case EventTypeDraftPaused:
		var p DraftPausedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case EventTypeDraftResumed:
		var p DraftResumedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case EventTypeDraftCompleted:
		var p DraftCompletedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case EventTypeSeasonCancelled:
		var p SeasonCancelledPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, nil
	}
}
