package models

import "github.com/google/uuid"

// AutodraftStrategy selects how a nomination is chosen on behalf of a seat.
type AutodraftStrategy string

const (
	StrategyRandom       AutodraftStrategy = "RANDOM"
	StrategyByCategory   AutodraftStrategy = "BY_CATEGORY"
	StrategyAlphabetical AutodraftStrategy = "ALPHABETICAL"
	StrategyWisdom       AutodraftStrategy = "WISDOM"
	StrategyPlan         AutodraftStrategy = "PLAN"
)

// Valid reports whether s is a known strategy.
func (s AutodraftStrategy) Valid() bool {
	switch s {
	case StrategyRandom, StrategyByCategory, StrategyAlphabetical, StrategyWisdom, StrategyPlan:
		return true
	}
	return false
}

// AutodraftConfig is per-seat autodraft configuration. Mutable any time by the
// seat's owner; the engine reads it only at the moment a turn opens.
type AutodraftConfig struct {
	DraftID    uuid.UUID         `json:"draft_id"`
	SeatNumber int               `json:"seat_number"`
	Enabled    bool              `json:"enabled"`
	Strategy   AutodraftStrategy `json:"strategy"`
	PlanID     *uuid.UUID        `json:"plan_id,omitempty"` // required iff Strategy == PLAN
}

// AutodraftPlan is an ordered, per-seat list of preferred nomination IDs.
type AutodraftPlan struct {
	ID            uuid.UUID   `json:"id"`
	NominationIDs []uuid.UUID `json:"nomination_ids"`
}
