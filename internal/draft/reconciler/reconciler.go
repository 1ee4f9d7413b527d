// Package reconciler implements the reference viewer: a state machine that
// applies published events in version order and falls back to a snapshot
// refetch whenever it detects a gap or a structural change. Transport loss
// is recovered locally and silently; only a failing resync surfaces as a
// retryable error.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"awards-draft-backend/internal/draft/engine"
	"awards-draft-backend/internal/draft/events"
	"awards-draft-backend/internal/models"
)

// State names the reconciler's mode.
type State string

const (
	StateApplying  State = "applying"
	StateResyncing State = "resyncing"
	StateTerminal  State = "terminal"
)

// ErrResyncFailed reports that a snapshot refetch kept failing; callers
// surface it as a retryable loading error.
var ErrResyncFailed = errors.New("reconciler: resync failed")

// SnapshotFetcher refetches full draft state. In-process viewers use the
// engine directly; remote ones go through the snapshot endpoint.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, draftID uuid.UUID) (*engine.Snapshot, error)
}

// Reconciler applies one draft's event stream for one viewer. Viewers never
// contend with each other; dropping one is just closing its channel.
type Reconciler struct {
	draftID uuid.UUID
	fetcher SnapshotFetcher
	eventCh <-chan events.DraftEvent

	resyncAttempts int
	resyncBackoff  time.Duration

	mu    sync.RWMutex
	state State
	view  *View
}

// New creates a reconciler fed by eventCh. Run must be called to start the
// reconciliation loop.
func New(draftID uuid.UUID, fetcher SnapshotFetcher, eventCh <-chan events.DraftEvent) *Reconciler {
	return &Reconciler{
		draftID:        draftID,
		fetcher:        fetcher,
		eventCh:        eventCh,
		resyncAttempts: 3,
		resyncBackoff:  200 * time.Millisecond,
		state:          StateResyncing,
	}
}

// State returns the current mode.
func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// View returns the current replica, nil before the first snapshot lands.
func (r *Reconciler) View() *View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.view == nil {
		return nil
	}
	out := *r.view
	return &out
}

// LastAppliedVersion returns the highest version reflected in the view.
func (r *Reconciler) LastAppliedVersion() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.view == nil {
		return 0
	}
	return r.view.Version
}

// Run is the single reconciliation loop. It returns nil when the stream is
// terminal (season cancelled or channel closed), ctx.Err on cancellation,
// and ErrResyncFailed when it cannot recover by snapshot.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.resync(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-r.eventCh:
			if !ok {
				return nil
			}
			done, err := r.handle(ctx, event)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// handle applies one incoming event, resyncing when incremental application
// is not safe. Returns done=true once the stream is terminal.
func (r *Reconciler) handle(ctx context.Context, event events.DraftEvent) (bool, error) {
	if event.DraftID != r.draftID {
		return false, nil
	}

	r.mu.RLock()
	last := r.view.Version
	r.mu.RUnlock()

	switch {
	case event.Version <= last:
		// Already applied or stale redelivery.
		return false, nil

	case event.Type.Structural() || event.Version > last+1:
		if event.Version > last+1 {
			log.Debug().
				Str("draft_id", r.draftID.String()).
				Int64("have", last).
				Int64("got", event.Version).
				Msg("event gap detected; resyncing from snapshot")
		}
		if err := r.resync(ctx); err != nil {
			return false, err
		}

	default:
		r.mu.Lock()
		err := r.view.apply(event)
		r.mu.Unlock()
		if err != nil {
			// A delta we cannot apply is treated like a gap.
			log.Warn().Err(err).
				Str("draft_id", r.draftID.String()).
				Int64("version", event.Version).
				Msg("failed to apply event delta; resyncing")
			if err := r.resync(ctx); err != nil {
				return false, err
			}
		}
	}

	if event.Type.Terminal() {
		r.mu.Lock()
		r.state = StateTerminal
		r.mu.Unlock()
		return true, nil
	}
	return false, nil
}

// resync discards incremental state and refetches the snapshot, retrying a
// bounded number of times.
func (r *Reconciler) resync(ctx context.Context) error {
	r.mu.Lock()
	r.state = StateResyncing
	r.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < r.resyncAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.resyncBackoff * time.Duration(attempt)):
			}
		}

		snap, err := r.fetcher.Snapshot(ctx, r.draftID)
		if err != nil {
			lastErr = err
			continue
		}

		r.mu.Lock()
		r.view = newViewFromSnapshot(snap)
		if snap.Draft.Status == models.DraftStatusCancelled {
			r.state = StateTerminal
		} else {
			r.state = StateApplying
		}
		r.mu.Unlock()
		return nil
	}

	return fmt.Errorf("%w: %v", ErrResyncFailed, lastErr)
}
