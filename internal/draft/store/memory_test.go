package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awards-draft-backend/internal/draft/events"
	"awards-draft-backend/internal/models"
)

func seedDraft(t *testing.T, m *Memory) models.Draft {
	t.Helper()
	draft := models.Draft{
		ID:           uuid.New(),
		SeasonID:     uuid.New(),
		Status:       models.DraftStatusPending,
		PicksPerSeat: 2,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, m.CreateDraft(context.Background(), CreateDraftParams{
		Draft:      draft,
		SeatOwners: []uuid.UUID{uuid.New(), uuid.New()},
	}))
	return draft
}

func testPick(draftID uuid.UUID, number, seat int) models.Pick {
	return models.Pick{
		DraftID:      draftID,
		PickNumber:   number,
		Round:        (number + 1) / 2,
		SeatNumber:   seat,
		NominationID: uuid.New(),
		PickedAt:     time.Now().UTC(),
	}
}

func testEvent(draftID uuid.UUID, version int64) events.DraftEvent {
	return events.DraftEvent{
		ID:        uuid.New(),
		DraftID:   draftID,
		Version:   version,
		Type:      events.EventTypePickMade,
		Payload:   json.RawMessage(`{}`),
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryDraftCRUD(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	draft := seedDraft(t, m)

	got, err := m.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft, *got)

	_, err = m.GetDraft(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	// Duplicate creation conflicts.
	err = m.CreateDraft(ctx, CreateDraftParams{Draft: draft})
	assert.ErrorIs(t, err, ErrConflict)

	draft.Status = models.DraftStatusInProgress
	draft.Version = 1
	require.NoError(t, m.ApplyTransition(ctx, ApplyTransitionParams{Draft: draft}))
	got, err = m.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusInProgress, got.Status)

	// Transitions for unknown drafts are rejected.
	stray := draft
	stray.ID = uuid.New()
	assert.ErrorIs(t, m.ApplyTransition(ctx, ApplyTransitionParams{Draft: stray}), ErrNotFound)

	ids, err := m.ListDraftIDsByStatus(ctx, models.DraftStatusInProgress, models.DraftStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{draft.ID}, ids)

	ids, err = m.ListDraftIDsByStatus(ctx, models.DraftStatusPending)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryPickConflicts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	draft := seedDraft(t, m)

	pick := testPick(draft.ID, 1, 1)
	require.NoError(t, m.ApplyTransition(ctx, ApplyTransitionParams{Draft: draft, Pick: &pick}))

	// Duplicate pick number.
	dupNumber := testPick(draft.ID, 1, 2)
	assert.ErrorIs(t, m.ApplyTransition(ctx, ApplyTransitionParams{Draft: draft, Pick: &dupNumber}), ErrConflict)

	// Duplicate nomination.
	dupNom := testPick(draft.ID, 2, 2)
	dupNom.NominationID = pick.NominationID
	assert.ErrorIs(t, m.ApplyTransition(ctx, ApplyTransitionParams{Draft: draft, Pick: &dupNom}), ErrConflict)

	picks, err := m.ListPicks(ctx, draft.ID)
	require.NoError(t, err)
	assert.Len(t, picks, 1)
}

func TestMemoryApplyTransitionIsAtomic(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	draft := seedDraft(t, m)

	first := testPick(draft.ID, 1, 1)
	applied := draft
	applied.Version = 1
	require.NoError(t, m.ApplyTransition(ctx, ApplyTransitionParams{
		Draft:  applied,
		Pick:   &first,
		Events: []events.DraftEvent{testEvent(draft.ID, 1)},
	}))

	// A rejected pick must not land its draft row or events either.
	conflicting := testPick(draft.ID, 1, 2)
	rejected := applied
	rejected.Version = 2
	err := m.ApplyTransition(ctx, ApplyTransitionParams{
		Draft:  rejected,
		Pick:   &conflicting,
		Events: []events.DraftEvent{testEvent(draft.ID, 2)},
	})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := m.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)

	evs, err := m.ListEventsSince(ctx, draft.ID, 0)
	require.NoError(t, err)
	assert.Len(t, evs, 1)

	picks, err := m.ListPicks(ctx, draft.ID)
	require.NoError(t, err)
	assert.Len(t, picks, 1)
}

func TestMemoryEventsSince(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	draft := seedDraft(t, m)

	for v := int64(1); v <= 3; v++ {
		next := draft
		next.Version = v
		require.NoError(t, m.ApplyTransition(ctx, ApplyTransitionParams{
			Draft:  next,
			Events: []events.DraftEvent{testEvent(draft.ID, v)},
		}))
	}

	evs, err := m.ListEventsSince(ctx, draft.ID, 1)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, int64(2), evs[0].Version)
	assert.Equal(t, int64(3), evs[1].Version)

	evs, err = m.ListEventsSince(ctx, draft.ID, 99)
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestMemorySeatsLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	draft := seedDraft(t, m)

	owners, err := m.SeatOwners(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, owners, 2)

	seats := []models.Seat{
		{DraftID: draft.ID, SeatNumber: 1, OwnerID: owners[0]},
		{DraftID: draft.ID, SeatNumber: 2, OwnerID: owners[1]},
	}
	require.NoError(t, m.ApplyTransition(ctx, ApplyTransitionParams{Draft: draft, Seats: seats}))

	// Seats are immutable once created.
	assert.ErrorIs(t, m.ApplyTransition(ctx, ApplyTransitionParams{Draft: draft, Seats: seats}), ErrConflict)

	got, err := m.GetSeats(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, seats, got)
}

func TestMemoryAutodraftConfigAndPlans(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	draftID := uuid.New()

	_, err := m.GetAutodraftConfig(ctx, draftID, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	cfg := models.AutodraftConfig{
		DraftID:    draftID,
		SeatNumber: 1,
		Enabled:    true,
		Strategy:   models.StrategyAlphabetical,
	}
	require.NoError(t, m.PutAutodraftConfig(ctx, cfg))

	got, err := m.GetAutodraftConfig(ctx, draftID, 1)
	require.NoError(t, err)
	assert.Equal(t, cfg, *got)

	plan := models.AutodraftPlan{ID: uuid.New(), NominationIDs: []uuid.UUID{uuid.New()}}
	require.NoError(t, m.PutPlan(ctx, plan))
	gotPlan, err := m.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan, *gotPlan)

	_, err = m.GetPlan(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
