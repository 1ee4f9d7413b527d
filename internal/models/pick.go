package models

import (
	"time"

	"github.com/google/uuid"
)

// Pick is one recorded assignment of a nomination to a seat. Immutable once
// written. PickNumber is assigned by the submission handler, never by the
// client; the sequence per draft has no gaps and no duplicates, and a
// nomination appears at most once per draft.
type Pick struct {
	DraftID      uuid.UUID `json:"draft_id"`
	PickNumber   int       `json:"pick_number"`
	Round        int       `json:"round"`
	SeatNumber   int       `json:"seat_number"`
	NominationID uuid.UUID `json:"nomination_id"`
	Forced       bool      `json:"forced"` // recorded by clock expiry rather than the seat owner
	PickedAt     time.Time `json:"picked_at"`
}
