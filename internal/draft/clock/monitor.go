// Package clock runs the pick clock monitor: a single scheduling loop that
// sleeps until the earliest open deadline, then hands due drafts to a small
// worker pool that calls Tick. Forced-pick dedup lives in the engine, so a
// duplicate enqueue is harmless.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"awards-draft-backend/internal/draft/engine"
)

const (
	defaultWorkers  = 4
	defaultIdlePoll = 30 * time.Second
	workBuffer      = 64
)

// Ticker is the engine surface the monitor drives.
type Ticker interface {
	WarmUp(ctx context.Context) error
	Wake() <-chan struct{}
	NextDeadline() (uuid.UUID, time.Time, bool)
	DueDraftIDs(now time.Time) []uuid.UUID
	Tick(ctx context.Context, draftID uuid.UUID) (*engine.PickResult, error)
}

// Monitor expires pick clocks. One instance per process.
type Monitor struct {
	ticker   Ticker
	clock    clockwork.Clock
	workers  int
	idlePoll time.Duration

	workCh chan uuid.UUID

	inFlightMu sync.Mutex
	inFlight   map[uuid.UUID]bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithIdlePoll sets how often the loop re-checks when no deadline is open.
func WithIdlePoll(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.idlePoll = d
		}
	}
}

// New creates a monitor over the given engine and clock.
func New(ticker Ticker, clk clockwork.Clock, opts ...Option) *Monitor {
	m := &Monitor{
		ticker:   ticker,
		clock:    clk,
		workers:  defaultWorkers,
		idlePoll: defaultIdlePoll,
		workCh:   make(chan uuid.UUID, workBuffer),
		inFlight: make(map[uuid.UUID]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run warms the engine up, then loops until ctx is cancelled. The loop wakes
// on the engine's wake signal (a deadline appeared or moved), on the timer
// for the earliest known deadline, or on the idle poll.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.ticker.WarmUp(ctx); err != nil {
		log.Error().Err(err).Msg("pick clock warm-up failed; continuing with loaded drafts")
	}

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go m.worker(workerCtx, &wg, i)
	}
	defer func() {
		cancelWorkers()
		close(m.workCh)
		wg.Wait()
	}()

	log.Info().Int("workers", m.workers).Msg("pick clock monitor started")

	var timer clockwork.Timer
	stopTimer := func() {
		if timer != nil && !timer.Stop() {
			select {
			case <-timer.Chan():
			default:
			}
		}
	}
	defer stopTimer()

	for {
		m.enqueueDue()

		wait := m.idlePoll
		if _, deadline, ok := m.ticker.NextDeadline(); ok {
			if until := deadline.Sub(m.clock.Now()); until < wait {
				wait = until
			}
		}
		if wait < 0 {
			wait = 0
		}

		stopTimer()
		timer = m.clock.NewTimer(wait)

		select {
		case <-ctx.Done():
			log.Info().Msg("pick clock monitor shutting down")
			return ctx.Err()
		case <-m.ticker.Wake():
			// A deadline appeared or changed; recompute the wait.
		case <-timer.Chan():
			timer = nil
		}
	}
}

// enqueueDue hands every due draft to the pool, skipping drafts a worker is
// already processing.
func (m *Monitor) enqueueDue() {
	for _, id := range m.ticker.DueDraftIDs(m.clock.Now()) {
		m.inFlightMu.Lock()
		if m.inFlight[id] {
			m.inFlightMu.Unlock()
			continue
		}
		m.inFlight[id] = true
		m.inFlightMu.Unlock()

		select {
		case m.workCh <- id:
		default:
			m.clearInFlight(id)
			log.Warn().Str("draft_id", id.String()).Msg("pick clock work channel full, will retry next wake")
		}
	}
}

func (m *Monitor) clearInFlight(id uuid.UUID) {
	m.inFlightMu.Lock()
	delete(m.inFlight, id)
	m.inFlightMu.Unlock()
}

func (m *Monitor) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case draftID, ok := <-m.workCh:
			if !ok {
				return
			}
			result, err := m.ticker.Tick(ctx, draftID)
			m.clearInFlight(draftID)
			if err != nil {
				log.Error().Err(err).
					Str("draft_id", draftID.String()).
					Int("worker_id", workerID).
					Msg("forced pick failed")
				continue
			}
			if result != nil {
				log.Info().
					Str("draft_id", draftID.String()).
					Int("pick_number", result.Pick.PickNumber).
					Int("worker_id", workerID).
					Msg("pick clock expired, forced pick applied")
			}
		}
	}
}
