package models

import "github.com/google/uuid"

// NominationStatus defines whether a nomination is still pickable.
type NominationStatus string

const (
	NominationStatusActive    NominationStatus = "ACTIVE"
	NominationStatusWithdrawn NominationStatus = "WITHDRAWN"
)

// Category groups nominations; SortOrder drives the BY_CATEGORY autodraft
// strategy and display ordering.
type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`
}

// Nomination is an external catalog item the draft treats as an opaque
// pickable identifier. The draft only tracks which nomination IDs have been
// consumed; the catalog itself is owned elsewhere.
type Nomination struct {
	ID         uuid.UUID        `json:"id"`
	CategoryID uuid.UUID        `json:"category_id"`
	Label      string           `json:"label"`
	Status     NominationStatus `json:"status"`
}
