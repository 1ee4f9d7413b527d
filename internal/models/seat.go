package models

import "github.com/google/uuid"

// Seat is a slot in the snake order. Seat numbers are 1..N, contiguous, and
// immutable once the draft starts. Seats are created on the PENDING →
// IN_PROGRESS transition and never deleted.
type Seat struct {
	DraftID    uuid.UUID `json:"draft_id"`
	SeatNumber int       `json:"seat_number"`
	OwnerID    uuid.UUID `json:"owner_id"`
}
