package clock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awards-draft-backend/internal/draft/engine"
	"awards-draft-backend/internal/models"
)

type fakeTicker struct {
	mu        sync.Mutex
	deadlines map[uuid.UUID]time.Time
	wakeCh    chan struct{}
	ticked    chan uuid.UUID
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{
		deadlines: make(map[uuid.UUID]time.Time),
		wakeCh:    make(chan struct{}, 1),
		ticked:    make(chan uuid.UUID, 16),
	}
}

func (f *fakeTicker) WarmUp(ctx context.Context) error { return nil }

func (f *fakeTicker) Wake() <-chan struct{} { return f.wakeCh }

func (f *fakeTicker) NextDeadline() (uuid.UUID, time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var (
		bestID uuid.UUID
		best   time.Time
		found  bool
	)
	for id, d := range f.deadlines {
		if !found || d.Before(best) {
			bestID, best, found = id, d, true
		}
	}
	return bestID, best, found
}

func (f *fakeTicker) DueDraftIDs(now time.Time) []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []uuid.UUID
	for id, d := range f.deadlines {
		if !now.Before(d) {
			due = append(due, id)
		}
	}
	return due
}

func (f *fakeTicker) Tick(ctx context.Context, draftID uuid.UUID) (*engine.PickResult, error) {
	f.mu.Lock()
	delete(f.deadlines, draftID)
	f.mu.Unlock()
	f.ticked <- draftID
	return &engine.PickResult{Pick: models.Pick{DraftID: draftID, PickNumber: 1}}, nil
}

func (f *fakeTicker) setDeadline(id uuid.UUID, at time.Time) {
	f.mu.Lock()
	f.deadlines[id] = at
	f.mu.Unlock()
}

func (f *fakeTicker) wake() {
	select {
	case f.wakeCh <- struct{}{}:
	default:
	}
}

func TestMonitorFiresAtDeadline(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ticker := newFakeTicker()
	draftID := uuid.New()
	ticker.setDeadline(draftID, fc.Now().Add(30*time.Second))

	m := New(ticker, fc, WithWorkers(1), WithIdlePoll(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	// The loop is parked on the 30s deadline timer.
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	select {
	case id := <-ticker.ticked:
		t.Fatalf("tick before deadline for %s", id)
	default:
	}

	fc.Advance(30 * time.Second)

	select {
	case id := <-ticker.ticked:
		assert.Equal(t, draftID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("deadline expired but no tick happened")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMonitorWakesOnSignal(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ticker := newFakeTicker()

	m := New(ticker, fc, WithWorkers(1), WithIdlePoll(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	// A draft whose deadline is already in the past shows up mid-sleep; the
	// wake signal makes the loop pick it up without any clock movement.
	draftID := uuid.New()
	ticker.setDeadline(draftID, fc.Now().Add(-time.Second))
	ticker.wake()

	select {
	case id := <-ticker.ticked:
		assert.Equal(t, draftID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("wake signal did not trigger a tick")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMonitorHandlesMultipleDueDrafts(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ticker := newFakeTicker()
	a, b := uuid.New(), uuid.New()
	ticker.setDeadline(a, fc.Now().Add(10*time.Second))
	ticker.setDeadline(b, fc.Now().Add(20*time.Second))

	m := New(ticker, fc, WithWorkers(2), WithIdlePoll(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(25 * time.Second)

	got := make(map[uuid.UUID]bool)
	for i := 0; i < 2; i++ {
		select {
		case id := <-ticker.ticked:
			got[id] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of 2 due drafts ticked", i)
		}
	}
	assert.True(t, got[a])
	assert.True(t, got[b])

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
