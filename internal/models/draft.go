package models

import (
	"time"

	"github.com/google/uuid"
)

// DraftStatus defines the lifecycle state of a draft.
type DraftStatus string

const (
	DraftStatusPending    DraftStatus = "PENDING"
	DraftStatusInProgress DraftStatus = "IN_PROGRESS"
	DraftStatusPaused     DraftStatus = "PAUSED"
	DraftStatusCompleted  DraftStatus = "COMPLETED"
	DraftStatusCancelled  DraftStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s DraftStatus) Terminal() bool {
	return s == DraftStatusCompleted || s == DraftStatusCancelled
}

// Draft represents one drafting session for one season.
//
// Version increments by exactly one on every mutation visible to viewers and
// is the ordering backbone for the event stream. CurrentPickNumber is nil
// until the draft starts and again once it completes.
type Draft struct {
	ID                uuid.UUID   `json:"id"`
	SeasonID          uuid.UUID   `json:"season_id"`
	Status            DraftStatus `json:"status"`
	PicksPerSeat      int         `json:"picks_per_seat"`
	TotalPicks        int         `json:"total_picks"` // fixed at start; zero while PENDING
	CurrentPickNumber *int        `json:"current_pick_number,omitempty"`
	Version           int64       `json:"version"`
	PickTimerSeconds  *int        `json:"pick_timer_seconds,omitempty"` // nil = no clock
	PickDeadlineAt    *time.Time  `json:"pick_deadline_at,omitempty"`   // set only while a clocked turn is open
	StartedAt         *time.Time  `json:"started_at,omitempty"`
	CompletedAt       *time.Time  `json:"completed_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
