// Package store defines the persistence boundary for the draft engine and
// provides in-memory and Postgres implementations. The engine is the single
// writer per draft, so implementations do not serialize writes themselves;
// unique constraints in the Postgres implementation act as a durable backstop
// for the ledger invariants.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"awards-draft-backend/internal/draft/events"
	"awards-draft-backend/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when an append would violate a ledger
	// invariant: duplicate pick number or duplicate nomination per draft.
	ErrConflict = errors.New("store: conflict")
)

// CreateDraftParams seeds a new PENDING draft with its roster membership and
// nomination catalog. Seat owners become seats 1..N when the draft starts.
type CreateDraftParams struct {
	Draft       models.Draft
	SeatOwners  []uuid.UUID
	Categories  []models.Category
	Nominations []models.Nomination
}

// ApplyTransitionParams is the durable write set of one visible draft
// transition: the draft row after the transition and the events it emitted,
// plus the pick or the seat roster the transition created, when any.
type ApplyTransitionParams struct {
	Draft  models.Draft
	Seats  []models.Seat
	Pick   *models.Pick
	Events []events.DraftEvent
}

// Store is the persistence contract consumed by the engine and HTTP layer.
type Store interface {
	CreateDraft(ctx context.Context, params CreateDraftParams) error
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	ListDraftIDsByStatus(ctx context.Context, statuses ...models.DraftStatus) ([]uuid.UUID, error)

	// ApplyTransition persists params atomically: either every row lands or
	// none does, so a crash can never separate a pick from the draft row and
	// events recorded with it. ErrConflict when the pick duplicates a pick
	// number or nomination, or when seats already exist; ErrNotFound when
	// the draft row is missing. Picks and events are append-only.
	ApplyTransition(ctx context.Context, params ApplyTransitionParams) error

	SeatOwners(ctx context.Context, draftID uuid.UUID) ([]uuid.UUID, error)
	GetSeats(ctx context.Context, draftID uuid.UUID) ([]models.Seat, error)

	ListCategories(ctx context.Context, draftID uuid.UUID) ([]models.Category, error)
	ListNominations(ctx context.Context, draftID uuid.UUID) ([]models.Nomination, error)

	ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.Pick, error)

	// ListEventsSince serves reconnect catch-up; events are retained at
	// least long enough to cover short windows.
	ListEventsSince(ctx context.Context, draftID uuid.UUID, afterVersion int64) ([]events.DraftEvent, error)

	GetAutodraftConfig(ctx context.Context, draftID uuid.UUID, seatNumber int) (*models.AutodraftConfig, error)
	PutAutodraftConfig(ctx context.Context, cfg models.AutodraftConfig) error

	GetPlan(ctx context.Context, id uuid.UUID) (*models.AutodraftPlan, error)
	PutPlan(ctx context.Context, plan models.AutodraftPlan) error
}
