// Package engine owns draft state: the state machine, the pick ledger and
// the pick submission path. All mutations for one draft are serialized
// through a per-draft actor guarded by its own mutex, so record-pick never
// races with itself; different drafts proceed independently.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"awards-draft-backend/internal/draft/autodraft"
	"awards-draft-backend/internal/draft/events"
	"awards-draft-backend/internal/draft/snake"
	"awards-draft-backend/internal/draft/store"
	"awards-draft-backend/internal/models"
)

// Publisher fans a versioned event out to all subscribers of the draft's
// channel. Delivery is best effort; subscribers reconcile gaps themselves.
type Publisher interface {
	Publish(ctx context.Context, event events.DraftEvent) error
}

// Autodrafter selects a nomination for a seat per its configured strategy.
type Autodrafter interface {
	Select(ctx context.Context, cfg models.AutodraftConfig, available []models.Nomination, categories []models.Category) (uuid.UUID, bool, error)
}

// Engine coordinates every draft in the process. It is the single writer for
// draft state; the HTTP layer, the clock monitor and the autodraft path all
// converge on the same submission code path here.
type Engine struct {
	store store.Store
	pub   Publisher
	auto  Autodrafter
	clock clockwork.Clock

	mu     sync.RWMutex
	actors map[uuid.UUID]*actor

	wakeCh chan struct{}
}

// actor holds the authoritative in-memory state for one draft. Its mutex is
// the per-draft single-writer lock required by the concurrency model.
type actor struct {
	mu sync.Mutex

	draft       models.Draft
	seats       []models.Seat
	categories  []models.Category
	nominations []models.Nomination
	ledger      *Ledger

	// applied maps request IDs to their results so client retries observe
	// at most one side effect per request. forced does the same for
	// clock-expiry picks, keyed by pick number instead of a client token.
	applied map[uuid.UUID]*PickResult
	forced  map[int]*PickResult
}

// New creates an Engine. clock may be a fake in tests.
func New(st store.Store, pub Publisher, auto Autodrafter, clock clockwork.Clock) *Engine {
	return &Engine{
		store:  st,
		pub:    pub,
		auto:   auto,
		clock:  clock,
		actors: make(map[uuid.UUID]*actor),
		wakeCh: make(chan struct{}, 1),
	}
}

// Wake signals whenever a pick deadline may have changed; the clock monitor
// listens on it to re-evaluate its sleep.
func (e *Engine) Wake() <-chan struct{} {
	return e.wakeCh
}

// CreateDraftRequest seeds a new PENDING draft.
type CreateDraftRequest struct {
	SeasonID         uuid.UUID
	SeatOwners       []uuid.UUID
	PicksPerSeat     int
	PickTimerSeconds *int
	Categories       []models.Category
	Nominations      []models.Nomination
}

// SubmitPickRequest is a client pick submission. RequestID is the
// caller-generated idempotency token.
type SubmitPickRequest struct {
	DraftID      uuid.UUID
	SeatNumber   int
	NominationID uuid.UUID
	RequestID    uuid.UUID
}

// PickResult is what a successful (or idempotently replayed) submission
// returns: the recorded pick plus the minimal draft fields after it.
type PickResult struct {
	Pick              models.Pick        `json:"pick"`
	Status            models.DraftStatus `json:"status"`
	CurrentPickNumber *int               `json:"current_pick_number,omitempty"`
	PickDeadlineAt    *time.Time         `json:"pick_deadline_at,omitempty"`
	Version           int64              `json:"version"`
}

// Snapshot is the full reconstructable state of a draft at a point in time,
// tagged with its version. It is assembled atomically with respect to
// (draft, ledger, version).
type Snapshot struct {
	Draft       models.Draft        `json:"draft"`
	Seats       []models.Seat       `json:"seats"`
	Picks       []models.Pick       `json:"picks"`
	Categories  []models.Category   `json:"categories"`
	Nominations []models.Nomination `json:"nominations"`
	TotalPicks  int                 `json:"total_picks"`
	Version     int64               `json:"version"`
}

// CreateDraft registers a new PENDING draft with its roster membership and
// nomination catalog.
func (e *Engine) CreateDraft(ctx context.Context, req CreateDraftRequest) (*models.Draft, error) {
	if len(req.SeatOwners) == 0 {
		return nil, newError(CodePrereqMissingSeats, "a draft needs at least one seat owner")
	}
	if req.PicksPerSeat <= 0 {
		return nil, fmt.Errorf("engine: picks per seat must be positive, got %d", req.PicksPerSeat)
	}
	if req.PickTimerSeconds != nil && *req.PickTimerSeconds <= 0 {
		return nil, fmt.Errorf("engine: pick timer must be positive, got %d", *req.PickTimerSeconds)
	}

	now := e.clock.Now().UTC()
	draft := models.Draft{
		ID:               uuid.New(),
		SeasonID:         req.SeasonID,
		Status:           models.DraftStatusPending,
		PicksPerSeat:     req.PicksPerSeat,
		PickTimerSeconds: req.PickTimerSeconds,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := e.store.CreateDraft(ctx, store.CreateDraftParams{
		Draft:       draft,
		SeatOwners:  req.SeatOwners,
		Categories:  req.Categories,
		Nominations: req.Nominations,
	})
	if err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	out := draft
	return &out, nil
}

// Start transitions PENDING → IN_PROGRESS: fixes the seat roster from the
// draft's membership, sets the current pick to 1 and opens the clock if one
// is configured.
func (e *Engine) Start(ctx context.Context, draftID uuid.UUID) (*models.Draft, error) {
	a, err := e.getActor(ctx, draftID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.draft.Status != models.DraftStatusPending {
		return nil, newError(CodeInvalidTransition, "cannot start draft in status %s", a.draft.Status)
	}

	owners, err := e.store.SeatOwners(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("load seat owners: %w", err)
	}
	if len(owners) == 0 {
		return nil, newError(CodePrereqMissingSeats, "draft has no roster members to seat")
	}

	pool := a.availableNominations()
	if len(pool) == 0 {
		return nil, newError(CodePrereqMissingNominations, "draft has no open nominations")
	}

	seats := make([]models.Seat, len(owners))
	for i, owner := range owners {
		seats[i] = models.Seat{DraftID: draftID, SeatNumber: i + 1, OwnerID: owner}
	}

	now := e.clock.Now().UTC()
	total := snake.TotalPicks(len(seats), a.draft.PicksPerSeat)
	if active := len(pool); active < total {
		// The pool bounds the ledger: the draft completes when no legal
		// picks remain even if rosters are not full.
		total = active
	}

	first := 1
	next := a.draft
	next.Status = models.DraftStatusInProgress
	next.TotalPicks = total
	next.CurrentPickNumber = &first
	next.StartedAt = &now
	next.PickDeadlineAt = e.freshDeadlineFor(next)

	ev, err := e.stageEvent(&next, events.EventTypeDraftStarted, events.DraftStartedPayload{
		DraftID:          draftID,
		SeatCount:        len(seats),
		TotalPicks:       total,
		PickTimerSeconds: next.PickTimerSeconds,
		PickDeadlineAt:   next.PickDeadlineAt,
		StartedAt:        now,
	})
	if err != nil {
		return nil, err
	}
	if err := e.commit(ctx, a, store.ApplyTransitionParams{
		Draft:  next,
		Seats:  seats,
		Events: []events.DraftEvent{ev},
	}); err != nil {
		return nil, err
	}

	e.signalWake()
	if err := e.runAutodraftLocked(ctx, a); err != nil {
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("autodraft after start failed")
	}

	out := a.draft
	return &out, nil
}

// Pause freezes turns and the clock. Only valid from IN_PROGRESS.
func (e *Engine) Pause(ctx context.Context, draftID uuid.UUID, reason string) (*models.Draft, error) {
	a, err := e.getActor(ctx, draftID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.draft.Status != models.DraftStatusInProgress {
		return nil, newError(CodeInvalidTransition, "cannot pause draft in status %s", a.draft.Status)
	}

	now := e.clock.Now().UTC()
	next := a.draft
	next.Status = models.DraftStatusPaused
	next.PickDeadlineAt = nil

	ev, err := e.stageEvent(&next, events.EventTypeDraftPaused, events.DraftPausedPayload{
		DraftID:  draftID,
		PausedAt: now,
		Reason:   reason,
	})
	if err != nil {
		return nil, err
	}
	if err := e.commit(ctx, a, store.ApplyTransitionParams{
		Draft:  next,
		Events: []events.DraftEvent{ev},
	}); err != nil {
		return nil, err
	}

	e.signalWake()
	out := a.draft
	return &out, nil
}

// Resume reopens turns. The deadline is recomputed fresh from the configured
// timer, never carried over from before the pause.
func (e *Engine) Resume(ctx context.Context, draftID uuid.UUID) (*models.Draft, error) {
	a, err := e.getActor(ctx, draftID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.draft.Status != models.DraftStatusPaused {
		return nil, newError(CodeInvalidTransition, "cannot resume draft in status %s", a.draft.Status)
	}

	now := e.clock.Now().UTC()
	next := a.draft
	next.Status = models.DraftStatusInProgress
	next.PickDeadlineAt = e.freshDeadlineFor(next)

	ev, err := e.stageEvent(&next, events.EventTypeDraftResumed, events.DraftResumedPayload{
		DraftID:        draftID,
		ResumedAt:      now,
		PickDeadlineAt: next.PickDeadlineAt,
	})
	if err != nil {
		return nil, err
	}
	if err := e.commit(ctx, a, store.ApplyTransitionParams{
		Draft:  next,
		Events: []events.DraftEvent{ev},
	}); err != nil {
		return nil, err
	}

	e.signalWake()
	if err := e.runAutodraftLocked(ctx, a); err != nil {
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("autodraft after resume failed")
	}

	out := a.draft
	return &out, nil
}

// Cancel terminates the draft from any non-terminal state, e.g. when the
// season itself is cancelled.
func (e *Engine) Cancel(ctx context.Context, draftID uuid.UUID, reason string) (*models.Draft, error) {
	a, err := e.getActor(ctx, draftID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.draft.Status.Terminal() {
		return nil, newError(CodeInvalidTransition, "cannot cancel draft in status %s", a.draft.Status)
	}

	now := e.clock.Now().UTC()
	next := a.draft
	next.Status = models.DraftStatusCancelled
	next.CurrentPickNumber = nil
	next.PickDeadlineAt = nil

	ev, err := e.stageEvent(&next, events.EventTypeSeasonCancelled, events.SeasonCancelledPayload{
		DraftID:     draftID,
		CancelledAt: now,
		Reason:      reason,
	})
	if err != nil {
		return nil, err
	}
	if err := e.commit(ctx, a, store.ApplyTransitionParams{
		Draft:  next,
		Events: []events.DraftEvent{ev},
	}); err != nil {
		return nil, err
	}

	e.signalWake()
	out := a.draft
	return &out, nil
}

// SubmitPick validates and serializes a client-submitted pick. Submitting
// the same (draft, request ID) twice returns the original result without
// re-mutating state.
func (e *Engine) SubmitPick(ctx context.Context, req SubmitPickRequest) (*PickResult, error) {
	if req.RequestID == uuid.Nil {
		return nil, fmt.Errorf("engine: request id is required")
	}
	a, err := e.getActor(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if prior, ok := a.applied[req.RequestID]; ok {
		out := *prior
		return &out, nil
	}

	result, err := e.recordPickLocked(ctx, a, req.SeatNumber, req.NominationID, false)
	if err != nil {
		return nil, err
	}
	a.applied[req.RequestID] = result

	if err := e.runAutodraftLocked(ctx, a); err != nil {
		log.Error().Err(err).Str("draft_id", req.DraftID.String()).Msg("autodraft after pick failed")
	}

	out := *result
	return &out, nil
}

// Tick checks the active turn's deadline and records a forced pick once it
// has passed. It is safe to call from any number of observers: only the
// first forced pick per turn succeeds, later calls replay its result.
func (e *Engine) Tick(ctx context.Context, draftID uuid.UUID) (*PickResult, error) {
	a, err := e.getActor(ctx, draftID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.draft.Status != models.DraftStatusInProgress ||
		a.draft.PickDeadlineAt == nil ||
		a.draft.CurrentPickNumber == nil {
		return nil, nil
	}
	// The turn expires only once now is strictly past the deadline.
	if !e.clock.Now().After(*a.draft.PickDeadlineAt) {
		return nil, nil
	}

	pickNumber := *a.draft.CurrentPickNumber
	if prior, ok := a.forced[pickNumber]; ok {
		out := *prior
		return &out, nil
	}

	turn, err := snake.At(pickNumber, len(a.seats))
	if err != nil {
		return nil, fmt.Errorf("turn for forced pick: %w", err)
	}

	nominationID, err := e.selectForSeat(ctx, a, turn.SeatNumber)
	if err != nil {
		return nil, err
	}

	result, err := e.recordPickLocked(ctx, a, turn.SeatNumber, nominationID, true)
	if err != nil {
		return nil, err
	}
	a.forced[pickNumber] = result

	log.Info().
		Str("draft_id", draftID.String()).
		Int("pick_number", pickNumber).
		Int("seat_number", turn.SeatNumber).
		Str("nomination_id", nominationID.String()).
		Msg("pick clock expired; forced pick recorded")

	if err := e.runAutodraftLocked(ctx, a); err != nil {
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("autodraft after forced pick failed")
	}

	out := *result
	return &out, nil
}

// Snapshot returns the draft's full state, atomic with respect to the
// ledger and version.
func (e *Engine) Snapshot(ctx context.Context, draftID uuid.UUID) (*Snapshot, error) {
	a, err := e.getActor(ctx, draftID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	return &Snapshot{
		Draft:       a.draft,
		Seats:       append([]models.Seat(nil), a.seats...),
		Picks:       a.ledger.Picks(),
		Categories:  append([]models.Category(nil), a.categories...),
		Nominations: append([]models.Nomination(nil), a.nominations...),
		TotalPicks:  a.draft.TotalPicks,
		Version:     a.draft.Version,
	}, nil
}

// EventsSince returns retained events with version greater than afterVersion.
func (e *Engine) EventsSince(ctx context.Context, draftID uuid.UUID, afterVersion int64) ([]events.DraftEvent, error) {
	return e.store.ListEventsSince(ctx, draftID, afterVersion)
}

// NextDeadline returns the earliest open pick deadline across loaded drafts,
// or ok=false when no clocked turn is open.
func (e *Engine) NextDeadline() (uuid.UUID, time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var (
		bestID uuid.UUID
		best   time.Time
		found  bool
	)
	for id, a := range e.actors {
		a.mu.Lock()
		d := a.draft.PickDeadlineAt
		inProgress := a.draft.Status == models.DraftStatusInProgress
		a.mu.Unlock()
		if !inProgress || d == nil {
			continue
		}
		if !found || d.Before(best) {
			bestID, best, found = id, *d, true
		}
	}
	return bestID, best, found
}

// DueDraftIDs returns loaded drafts whose deadline is at or before now.
func (e *Engine) DueDraftIDs(now time.Time) []uuid.UUID {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var due []uuid.UUID
	for id, a := range e.actors {
		a.mu.Lock()
		if a.draft.Status == models.DraftStatusInProgress &&
			a.draft.PickDeadlineAt != nil &&
			!now.Before(*a.draft.PickDeadlineAt) {
			due = append(due, id)
		}
		a.mu.Unlock()
	}
	return due
}

// WarmUp loads actors for every non-terminal started draft so the clock
// monitor sees their deadlines after a restart.
func (e *Engine) WarmUp(ctx context.Context) error {
	ids, err := e.store.ListDraftIDsByStatus(ctx, models.DraftStatusInProgress, models.DraftStatusPaused)
	if err != nil {
		return fmt.Errorf("list drafts for warm-up: %w", err)
	}
	for _, id := range ids {
		if _, err := e.getActor(ctx, id); err != nil {
			log.Error().Err(err).Str("draft_id", id.String()).Msg("failed to warm up draft")
		}
	}
	if len(ids) > 0 {
		e.signalWake()
	}
	return nil
}

// AutodraftConfig returns the seat's config, defaulting to disabled RANDOM
// when none was ever written.
func (e *Engine) AutodraftConfig(ctx context.Context, draftID uuid.UUID, seatNumber int) (*models.AutodraftConfig, error) {
	if _, err := e.getActor(ctx, draftID); err != nil {
		return nil, err
	}
	cfg, err := e.store.GetAutodraftConfig(ctx, draftID, seatNumber)
	if errors.Is(err, store.ErrNotFound) {
		return &models.AutodraftConfig{
			DraftID:    draftID,
			SeatNumber: seatNumber,
			Enabled:    false,
			Strategy:   models.StrategyRandom,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get autodraft config: %w", err)
	}
	return cfg, nil
}

// SetAutodraftConfig validates and stores a seat's config, then gives the
// autodraft path a chance to act if it is now that seat's turn.
func (e *Engine) SetAutodraftConfig(ctx context.Context, cfg models.AutodraftConfig) (*models.AutodraftConfig, error) {
	if !cfg.Strategy.Valid() {
		return nil, newError(CodeInvalidAutodraftConfig, "unknown strategy %q", cfg.Strategy)
	}
	if cfg.Strategy == models.StrategyPlan && cfg.PlanID == nil {
		return nil, newError(CodeInvalidAutodraftConfig, "strategy PLAN requires a plan")
	}
	if cfg.SeatNumber <= 0 {
		return nil, newError(CodeInvalidAutodraftConfig, "seat number must be positive")
	}

	a, err := e.getActor(ctx, cfg.DraftID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := e.store.PutAutodraftConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("put autodraft config: %w", err)
	}

	if err := e.runAutodraftLocked(ctx, a); err != nil {
		log.Error().Err(err).Str("draft_id", cfg.DraftID.String()).Msg("autodraft after config change failed")
	}

	out := cfg
	return &out, nil
}

// PutPlan stores an ordered preference list for the PLAN strategy. Plans are
// standalone; a config references one by ID.
func (e *Engine) PutPlan(ctx context.Context, plan models.AutodraftPlan) (*models.AutodraftPlan, error) {
	if len(plan.NominationIDs) == 0 {
		return nil, newError(CodeInvalidAutodraftConfig, "a plan needs at least one nomination")
	}
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	if err := e.store.PutPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("put plan: %w", err)
	}
	out := plan
	return &out, nil
}

// Plan returns a stored plan by ID.
func (e *Engine) Plan(ctx context.Context, id uuid.UUID) (*models.AutodraftPlan, error) {
	plan, err := e.store.GetPlan(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(CodePlanNotFound, "plan %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return plan, nil
}

// getActor returns the loaded actor for draftID, rehydrating it from the
// store on first touch.
func (e *Engine) getActor(ctx context.Context, draftID uuid.UUID) (*actor, error) {
	e.mu.RLock()
	a, ok := e.actors[draftID]
	e.mu.RUnlock()
	if ok {
		return a, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if a, ok := e.actors[draftID]; ok {
		return a, nil
	}

	draft, err := e.store.GetDraft(ctx, draftID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(CodeDraftNotFound, "draft %s not found", draftID)
		}
		return nil, fmt.Errorf("load draft: %w", err)
	}
	seats, err := e.store.GetSeats(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("load seats: %w", err)
	}
	picks, err := e.store.ListPicks(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("load picks: %w", err)
	}
	ledger, err := NewLedger(picks)
	if err != nil {
		return nil, fmt.Errorf("rebuild ledger: %w", err)
	}
	categories, err := e.store.ListCategories(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	nominations, err := e.store.ListNominations(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("load nominations: %w", err)
	}

	a = &actor{
		draft:       *draft,
		seats:       seats,
		categories:  categories,
		nominations: nominations,
		ledger:      ledger,
		applied:     make(map[uuid.UUID]*PickResult),
		forced:      make(map[int]*PickResult),
	}
	e.actors[draftID] = a
	return a, nil
}

// recordPickLocked is the only place a pick enters the ledger. Caller holds
// the actor lock.
func (e *Engine) recordPickLocked(ctx context.Context, a *actor, seatNumber int, nominationID uuid.UUID, forced bool) (*PickResult, error) {
	if a.draft.Status != models.DraftStatusInProgress {
		return nil, newError(CodeDraftNotInProgress, "draft is %s", a.draft.Status)
	}
	if len(a.seats) == 0 {
		return nil, newError(CodePrereqMissingSeats, "draft has no seats")
	}
	if a.draft.CurrentPickNumber == nil {
		return nil, newError(CodeDraftNotInProgress, "no open turn")
	}

	pool := a.availableNominations()
	if len(pool) == 0 {
		return nil, newError(CodePrereqMissingNominations, "no open nominations remain")
	}

	pickNumber := *a.draft.CurrentPickNumber
	turn, err := snake.At(pickNumber, len(a.seats))
	if err != nil {
		return nil, fmt.Errorf("compute turn: %w", err)
	}
	if seatNumber != turn.SeatNumber {
		return nil, newError(CodeNotActiveTurn, "seat %d submitted but seat %d is on the clock", seatNumber, turn.SeatNumber)
	}

	nom, ok := a.findNomination(nominationID)
	if !ok || nom.Status != models.NominationStatusActive {
		return nil, newError(CodeNominationNotFound, "nomination %s is not pickable in this draft", nominationID)
	}
	if a.ledger.IsNominationPicked(nominationID) {
		return nil, newError(CodeNominationAlreadyPicked, "nomination %s was already picked", nominationID)
	}

	now := e.clock.Now().UTC()
	pick := models.Pick{
		DraftID:      a.draft.ID,
		PickNumber:   pickNumber,
		Round:        turn.Round,
		SeatNumber:   seatNumber,
		NominationID: nominationID,
		Forced:       forced,
		PickedAt:     now,
	}

	next := a.draft
	completed := pickNumber >= next.TotalPicks
	if completed {
		next.CurrentPickNumber = nil
		next.PickDeadlineAt = nil
	} else {
		n := pickNumber + 1
		next.CurrentPickNumber = &n
		next.PickDeadlineAt = e.freshDeadlineFor(next)
	}

	payload := events.PickMadePayload{
		DraftID:        pick.DraftID,
		PickNumber:     pick.PickNumber,
		Round:          pick.Round,
		SeatNumber:     pick.SeatNumber,
		NominationID:   pick.NominationID,
		Forced:         pick.Forced,
		PickedAt:       pick.PickedAt,
		NextPickNumber: next.CurrentPickNumber,
		PickDeadlineAt: next.PickDeadlineAt,
	}
	if next.CurrentPickNumber != nil {
		if nextTurn, err := snake.At(*next.CurrentPickNumber, len(a.seats)); err == nil {
			payload.NextSeatNumber = &nextTurn.SeatNumber
		}
	}
	pickEvent, err := e.stageEvent(&next, events.EventTypePickMade, payload)
	if err != nil {
		return nil, err
	}
	evs := []events.DraftEvent{pickEvent}

	if completed {
		next.Status = models.DraftStatusCompleted
		next.CompletedAt = &now
		doneEvent, err := e.stageEvent(&next, events.EventTypeDraftCompleted, events.DraftCompletedPayload{
			DraftID:     next.ID,
			CompletedAt: now,
			TotalPicks:  next.TotalPicks,
		})
		if err != nil {
			return nil, err
		}
		evs = append(evs, doneEvent)
	}

	if err := e.commit(ctx, a, store.ApplyTransitionParams{
		Draft:  next,
		Pick:   &pick,
		Events: evs,
	}); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// The store's unique constraints are a backstop; with the
			// actor serializing writes this indicates drift between the
			// in-memory ledger and the store.
			return nil, fmt.Errorf("ledger backstop rejected pick %d: %w", pickNumber, err)
		}
		return nil, err
	}

	e.signalWake()

	return &PickResult{
		Pick:              pick,
		Status:            a.draft.Status,
		CurrentPickNumber: a.draft.CurrentPickNumber,
		PickDeadlineAt:    a.draft.PickDeadlineAt,
		Version:           a.draft.Version,
	}, nil
}

// runAutodraftLocked makes picks for consecutive autodraft-enabled seats
// while the draft stays in progress. Config is read fresh at each turn open.
func (e *Engine) runAutodraftLocked(ctx context.Context, a *actor) error {
	for a.draft.Status == models.DraftStatusInProgress && a.draft.CurrentPickNumber != nil {
		turn, err := snake.At(*a.draft.CurrentPickNumber, len(a.seats))
		if err != nil {
			return fmt.Errorf("compute turn: %w", err)
		}

		cfg, err := e.store.GetAutodraftConfig(ctx, a.draft.ID, turn.SeatNumber)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get autodraft config: %w", err)
		}
		if !cfg.Enabled {
			return nil
		}

		pool := a.availableNominations()
		nominationID, ok, err := e.auto.Select(ctx, *cfg, pool, a.categories)
		if err != nil {
			return fmt.Errorf("autodraft select: %w", err)
		}
		if !ok {
			return nil
		}

		if _, err := e.recordPickLocked(ctx, a, turn.SeatNumber, nominationID, false); err != nil {
			return fmt.Errorf("autodraft pick: %w", err)
		}
		log.Info().
			Str("draft_id", a.draft.ID.String()).
			Int("seat_number", turn.SeatNumber).
			Str("strategy", string(cfg.Strategy)).
			Str("nomination_id", nominationID.String()).
			Msg("autodraft pick recorded")
	}
	return nil
}

// selectForSeat picks for a seat on the forced path: the seat's autodraft
// strategy when enabled, otherwise the deterministic fallback.
func (e *Engine) selectForSeat(ctx context.Context, a *actor, seatNumber int) (uuid.UUID, error) {
	pool := a.availableNominations()
	if len(pool) == 0 {
		return uuid.Nil, newError(CodePrereqMissingNominations, "no open nominations remain")
	}

	cfg, err := e.store.GetAutodraftConfig(ctx, a.draft.ID, seatNumber)
	if err == nil && cfg.Enabled {
		id, ok, selErr := e.auto.Select(ctx, *cfg, pool, a.categories)
		if selErr == nil && ok {
			return id, nil
		}
		if selErr != nil {
			log.Warn().Err(selErr).
				Str("draft_id", a.draft.ID.String()).
				Int("seat_number", seatNumber).
				Msg("autodraft selection failed on forced pick; using fallback")
		}
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("get autodraft config: %w", err)
	}

	id, ok := autodraft.Fallback(pool, a.categories)
	if !ok {
		return uuid.Nil, newError(CodePrereqMissingNominations, "no open nominations remain")
	}
	return id, nil
}

// stageEvent bumps the draft copy's version by exactly one and stamps the
// event carrying it. One transition, one event.
func (e *Engine) stageEvent(next *models.Draft, typ events.EventType, payload interface{}) (events.DraftEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return events.DraftEvent{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}

	now := e.clock.Now().UTC()
	next.Version++
	next.UpdatedAt = now

	return events.DraftEvent{
		ID:        uuid.New(),
		DraftID:   next.ID,
		Version:   next.Version,
		Type:      typ,
		Payload:   data,
		CreatedAt: now,
	}, nil
}

// commit persists the staged transition in one store transaction, then makes
// it visible in memory and publishes its events. When the store rejects the
// write nothing in the actor changes, so the caller can retry cleanly.
func (e *Engine) commit(ctx context.Context, a *actor, params store.ApplyTransitionParams) error {
	if err := e.store.ApplyTransition(ctx, params); err != nil {
		return fmt.Errorf("persist transition: %w", err)
	}

	if params.Pick != nil {
		if err := a.ledger.Append(*params.Pick); err != nil {
			return fmt.Errorf("append to in-memory ledger: %w", err)
		}
	}
	if len(params.Seats) > 0 {
		a.seats = params.Seats
	}
	a.draft = params.Draft

	for _, ev := range params.Events {
		if err := e.pub.Publish(ctx, ev); err != nil {
			log.Error().Err(err).
				Str("draft_id", ev.DraftID.String()).
				Str("event_type", string(ev.Type)).
				Int64("version", ev.Version).
				Msg("failed to publish event")
		}
	}
	return nil
}

// freshDeadlineFor computes now + pick_timer_seconds, or nil for unclocked
// drafts.
func (e *Engine) freshDeadlineFor(d models.Draft) *time.Time {
	if d.PickTimerSeconds == nil {
		return nil
	}
	t := e.clock.Now().UTC().Add(time.Duration(*d.PickTimerSeconds) * time.Second)
	return &t
}

func (e *Engine) signalWake() {
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
}

func (a *actor) availableNominations() []models.Nomination {
	var out []models.Nomination
	for _, n := range a.nominations {
		if n.Status == models.NominationStatusActive && !a.ledger.IsNominationPicked(n.ID) {
			out = append(out, n)
		}
	}
	return out
}

func (a *actor) findNomination(id uuid.UUID) (models.Nomination, bool) {
	for _, n := range a.nominations {
		if n.ID == id {
			return n, true
		}
	}
	return models.Nomination{}, false
}
