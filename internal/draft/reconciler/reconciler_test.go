package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awards-draft-backend/internal/draft/engine"
	"awards-draft-backend/internal/draft/events"
	"awards-draft-backend/internal/models"
)

type fakeFetcher struct {
	mu    sync.Mutex
	snap  *engine.Snapshot
	err   error
	calls int
}

func (f *fakeFetcher) Snapshot(ctx context.Context, draftID uuid.UUID) (*engine.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	snap := *f.snap
	return &snap, nil
}

func (f *fakeFetcher) set(snap *engine.Snapshot) {
	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testSnapshot(draftID uuid.UUID, version int64, currentPick int) *engine.Snapshot {
	pick := currentPick
	return &engine.Snapshot{
		Draft: models.Draft{
			ID:                draftID,
			Status:            models.DraftStatusInProgress,
			PicksPerSeat:      2,
			TotalPicks:        4,
			CurrentPickNumber: &pick,
			Version:           version,
		},
		Seats: []models.Seat{
			{DraftID: draftID, SeatNumber: 1, OwnerID: uuid.New()},
			{DraftID: draftID, SeatNumber: 2, OwnerID: uuid.New()},
		},
		TotalPicks: 4,
		Version:    version,
	}
}

func pickMadeEvent(t *testing.T, draftID uuid.UUID, version int64, pickNumber int) events.DraftEvent {
	t.Helper()
	next := pickNumber + 1
	payload, err := json.Marshal(events.PickMadePayload{
		DraftID:        draftID,
		PickNumber:     pickNumber,
		Round:          (pickNumber + 1) / 2,
		SeatNumber:     1,
		NominationID:   uuid.New(),
		PickedAt:       time.Now().UTC(),
		NextPickNumber: &next,
	})
	require.NoError(t, err)
	return events.DraftEvent{
		ID:        uuid.New(),
		DraftID:   draftID,
		Version:   version,
		Type:      events.EventTypePickMade,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

func cancelledEvent(t *testing.T, draftID uuid.UUID, version int64) events.DraftEvent {
	t.Helper()
	payload, err := json.Marshal(events.SeasonCancelledPayload{
		DraftID:     draftID,
		CancelledAt: time.Now().UTC(),
		Reason:      "season cancelled",
	})
	require.NoError(t, err)
	return events.DraftEvent{
		ID:        uuid.New(),
		DraftID:   draftID,
		Version:   version,
		Type:      events.EventTypeSeasonCancelled,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

func startReconciler(t *testing.T, r *Reconciler) (<-chan error, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return done, cancel
}

func waitForVersion(t *testing.T, r *Reconciler, version int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.LastAppliedVersion() == version
	}, 2*time.Second, 5*time.Millisecond)
}

func TestReconcilerAppliesInOrderEvents(t *testing.T) {
	draftID := uuid.New()
	fetcher := &fakeFetcher{snap: testSnapshot(draftID, 1, 1)}
	eventCh := make(chan events.DraftEvent, 16)
	r := New(draftID, fetcher, eventCh)

	done, cancel := startReconciler(t, r)
	defer cancel()

	waitForVersion(t, r, 1)
	require.Equal(t, StateApplying, r.State())

	eventCh <- pickMadeEvent(t, draftID, 2, 1)
	eventCh <- pickMadeEvent(t, draftID, 3, 2)
	waitForVersion(t, r, 3)

	view := r.View()
	require.NotNil(t, view)
	assert.Len(t, view.Picks, 2)
	require.NotNil(t, view.Draft.CurrentPickNumber)
	assert.Equal(t, 3, *view.Draft.CurrentPickNumber)
	assert.Equal(t, 1, fetcher.callCount(), "no resync needed for gapless stream")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestReconcilerIgnoresStaleEvents(t *testing.T) {
	draftID := uuid.New()
	fetcher := &fakeFetcher{snap: testSnapshot(draftID, 5, 3)}
	eventCh := make(chan events.DraftEvent, 16)
	r := New(draftID, fetcher, eventCh)

	done, cancel := startReconciler(t, r)
	defer cancel()

	waitForVersion(t, r, 5)

	// Redeliveries at or below the applied version change nothing.
	eventCh <- pickMadeEvent(t, draftID, 4, 2)
	eventCh <- pickMadeEvent(t, draftID, 5, 3)
	eventCh <- pickMadeEvent(t, draftID, 6, 3)
	waitForVersion(t, r, 6)

	view := r.View()
	assert.Len(t, view.Picks, 1, "only the v6 event should have applied")
	assert.Equal(t, 1, fetcher.callCount())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestReconcilerResyncsOnGap(t *testing.T) {
	draftID := uuid.New()
	fetcher := &fakeFetcher{snap: testSnapshot(draftID, 1, 1)}
	eventCh := make(chan events.DraftEvent, 16)
	r := New(draftID, fetcher, eventCh)

	done, cancel := startReconciler(t, r)
	defer cancel()

	waitForVersion(t, r, 1)

	// v2 is lost; the snapshot source has advanced past it.
	fetcher.set(testSnapshot(draftID, 3, 3))
	eventCh <- pickMadeEvent(t, draftID, 3, 2)
	waitForVersion(t, r, 3)

	assert.Equal(t, 2, fetcher.callCount(), "gap must trigger one resync")
	assert.Equal(t, StateApplying, r.State())

	// The replica now equals the authoritative snapshot.
	view := r.View()
	require.NotNil(t, view.Draft.CurrentPickNumber)
	assert.Equal(t, 3, *view.Draft.CurrentPickNumber)
	assert.Equal(t, int64(3), view.Draft.Version)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestReconcilerResyncsOnStructuralEvent(t *testing.T) {
	draftID := uuid.New()
	pending := &engine.Snapshot{
		Draft:   models.Draft{ID: draftID, Status: models.DraftStatusPending},
		Version: 0,
	}
	fetcher := &fakeFetcher{snap: pending}
	eventCh := make(chan events.DraftEvent, 16)
	r := New(draftID, fetcher, eventCh)

	done, cancel := startReconciler(t, r)
	defer cancel()

	waitForVersion(t, r, 0)

	fetcher.set(testSnapshot(draftID, 1, 1))
	payload, err := json.Marshal(events.DraftStartedPayload{
		DraftID:    draftID,
		SeatCount:  2,
		TotalPicks: 4,
		StartedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	eventCh <- events.DraftEvent{
		ID:        uuid.New(),
		DraftID:   draftID,
		Version:   1,
		Type:      events.EventTypeDraftStarted,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	waitForVersion(t, r, 1)

	assert.Equal(t, 2, fetcher.callCount(), "structural event refetches even without a gap")
	view := r.View()
	assert.Equal(t, models.DraftStatusInProgress, view.Draft.Status)
	assert.Len(t, view.Seats, 2)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestReconcilerTerminatesOnSeasonCancelled(t *testing.T) {
	draftID := uuid.New()
	fetcher := &fakeFetcher{snap: testSnapshot(draftID, 1, 1)}
	eventCh := make(chan events.DraftEvent, 16)
	r := New(draftID, fetcher, eventCh)

	done, _ := startReconciler(t, r)

	waitForVersion(t, r, 1)
	eventCh <- cancelledEvent(t, draftID, 2)

	require.NoError(t, <-done)
	assert.Equal(t, StateTerminal, r.State())
	view := r.View()
	assert.Equal(t, models.DraftStatusCancelled, view.Draft.Status)
	assert.Nil(t, view.Draft.CurrentPickNumber)
}

func TestReconcilerIgnoresOtherDrafts(t *testing.T) {
	draftID := uuid.New()
	fetcher := &fakeFetcher{snap: testSnapshot(draftID, 1, 1)}
	eventCh := make(chan events.DraftEvent, 16)
	r := New(draftID, fetcher, eventCh)

	done, cancel := startReconciler(t, r)
	defer cancel()

	waitForVersion(t, r, 1)
	eventCh <- pickMadeEvent(t, uuid.New(), 9, 1)
	eventCh <- pickMadeEvent(t, draftID, 2, 1)
	waitForVersion(t, r, 2)

	assert.Len(t, r.View().Picks, 1)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestReconcilerSurfacesResyncFailure(t *testing.T) {
	draftID := uuid.New()
	fetcher := &fakeFetcher{err: errors.New("store down")}
	eventCh := make(chan events.DraftEvent, 16)
	r := New(draftID, fetcher, eventCh)
	r.resyncBackoff = time.Millisecond

	err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrResyncFailed)
	assert.Equal(t, 3, fetcher.callCount())
	assert.Nil(t, r.View())
}

func TestViewActiveTurn(t *testing.T) {
	draftID := uuid.New()
	view := newViewFromSnapshot(testSnapshot(draftID, 2, 2))

	turn, ok := view.ActiveTurn()
	require.True(t, ok)
	// Pick 2 of a 2-seat snake stays with seat 2.
	assert.Equal(t, 1, turn.Round)
	assert.Equal(t, 2, turn.SeatNumber)

	view.Draft.Status = models.DraftStatusPaused
	_, ok = view.ActiveTurn()
	assert.False(t, ok)
}
