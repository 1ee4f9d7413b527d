package events

import (
	"time"

	"github.com/google/uuid"
)

// Payload structs shared between the engine, gateway and reconciler packages.
// Each payload is the partial state delta relevant to its event type.

// DraftStartedPayload is the payload for a draft.started event.
type DraftStartedPayload struct {
	DraftID          uuid.UUID  `json:"draft_id"`
	SeatCount        int        `json:"seat_count"`
	TotalPicks       int        `json:"total_picks"`
	PickTimerSeconds *int       `json:"pick_timer_seconds,omitempty"`
	PickDeadlineAt   *time.Time `json:"pick_deadline_at,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
}

// PickMadePayload is the payload for a pick.made event.
type PickMadePayload struct {
	DraftID      uuid.UUID  `json:"draft_id"`
	PickNumber   int        `json:"pick_number"`
	Round        int        `json:"round"`
	SeatNumber   int        `json:"seat_number"`
	NominationID uuid.UUID  `json:"nomination_id"`
	Forced       bool       `json:"forced"`
	PickedAt     time.Time  `json:"picked_at"`
	// State after the pick, so viewers can render the next turn without a
	// round trip. NextPickNumber is nil when the draft completed.
	NextPickNumber *int       `json:"next_pick_number,omitempty"`
	NextSeatNumber *int       `json:"next_seat_number,omitempty"`
	PickDeadlineAt *time.Time `json:"pick_deadline_at,omitempty"`
}

// DraftPausedPayload is the payload for a draft.paused event.
type DraftPausedPayload struct {
	DraftID  uuid.UUID `json:"draft_id"`
	PausedAt time.Time `json:"paused_at"`
	Reason   string    `json:"reason,omitempty"`
}

// DraftResumedPayload is the payload for a draft.resumed event. The deadline
// is recomputed fresh on resume, never carried over from before the pause.
type DraftResumedPayload struct {
	DraftID        uuid.UUID  `json:"draft_id"`
	ResumedAt      time.Time  `json:"resumed_at"`
	PickDeadlineAt *time.Time `json:"pick_deadline_at,omitempty"`
}

// DraftCompletedPayload is the payload for a draft.completed event.
type DraftCompletedPayload struct {
	DraftID     uuid.UUID `json:"draft_id"`
	CompletedAt time.Time `json:"completed_at"`
	TotalPicks  int       `json:"total_picks"`
}

// SeasonCancelledPayload is the payload for a season.cancelled event.
// Terminal for viewers: stop applying further events.
type SeasonCancelledPayload struct {
	DraftID     uuid.UUID `json:"draft_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}
