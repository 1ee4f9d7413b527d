package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"awards-draft-backend/internal/draft/events"
	"awards-draft-backend/internal/models"
)

// Memory is an in-memory Store. It backs single-node deployments and tests.
type Memory struct {
	mu sync.RWMutex

	drafts      map[uuid.UUID]models.Draft
	seatOwners  map[uuid.UUID][]uuid.UUID
	seats       map[uuid.UUID][]models.Seat
	categories  map[uuid.UUID][]models.Category
	nominations map[uuid.UUID][]models.Nomination

	picks       map[uuid.UUID][]models.Pick
	pickNumbers map[uuid.UUID]map[int]bool
	pickedNoms  map[uuid.UUID]map[uuid.UUID]bool

	eventLog map[uuid.UUID][]events.DraftEvent

	autodraft map[uuid.UUID]map[int]models.AutodraftConfig
	plans     map[uuid.UUID]models.AutodraftPlan
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		drafts:      make(map[uuid.UUID]models.Draft),
		seatOwners:  make(map[uuid.UUID][]uuid.UUID),
		seats:       make(map[uuid.UUID][]models.Seat),
		categories:  make(map[uuid.UUID][]models.Category),
		nominations: make(map[uuid.UUID][]models.Nomination),
		picks:       make(map[uuid.UUID][]models.Pick),
		pickNumbers: make(map[uuid.UUID]map[int]bool),
		pickedNoms:  make(map[uuid.UUID]map[uuid.UUID]bool),
		eventLog:    make(map[uuid.UUID][]events.DraftEvent),
		autodraft:   make(map[uuid.UUID]map[int]models.AutodraftConfig),
		plans:       make(map[uuid.UUID]models.AutodraftPlan),
	}
}

func (m *Memory) CreateDraft(ctx context.Context, params CreateDraftParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.drafts[params.Draft.ID]; exists {
		return ErrConflict
	}
	m.drafts[params.Draft.ID] = params.Draft
	m.seatOwners[params.Draft.ID] = append([]uuid.UUID(nil), params.SeatOwners...)
	m.categories[params.Draft.ID] = append([]models.Category(nil), params.Categories...)
	m.nominations[params.Draft.ID] = append([]models.Nomination(nil), params.Nominations...)
	m.pickNumbers[params.Draft.ID] = make(map[int]bool)
	m.pickedNoms[params.Draft.ID] = make(map[uuid.UUID]bool)
	return nil
}

func (m *Memory) GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := d
	return &out, nil
}

// ApplyTransition validates the whole write set before touching anything, so
// a conflicting pick leaves the draft row and event log untouched.
func (m *Memory) ApplyTransition(ctx context.Context, params ApplyTransitionParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	draftID := params.Draft.ID
	if _, ok := m.drafts[draftID]; !ok {
		return ErrNotFound
	}
	if len(params.Seats) > 0 && len(m.seats[draftID]) > 0 {
		return ErrConflict
	}
	if p := params.Pick; p != nil {
		if m.pickNumbers[p.DraftID][p.PickNumber] || m.pickedNoms[p.DraftID][p.NominationID] {
			return ErrConflict
		}
	}

	m.drafts[draftID] = params.Draft
	if len(params.Seats) > 0 {
		m.seats[draftID] = append([]models.Seat(nil), params.Seats...)
	}
	if p := params.Pick; p != nil {
		m.pickNumbers[p.DraftID][p.PickNumber] = true
		m.pickedNoms[p.DraftID][p.NominationID] = true
		m.picks[p.DraftID] = append(m.picks[p.DraftID], *p)
	}
	for _, ev := range params.Events {
		m.eventLog[ev.DraftID] = append(m.eventLog[ev.DraftID], ev)
	}
	return nil
}

func (m *Memory) ListDraftIDsByStatus(ctx context.Context, statuses ...models.DraftStatus) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []uuid.UUID
	for id, d := range m.drafts {
		for _, s := range statuses {
			if d.Status == s {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

func (m *Memory) SeatOwners(ctx context.Context, draftID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owners, ok := m.seatOwners[draftID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]uuid.UUID(nil), owners...), nil
}

func (m *Memory) GetSeats(ctx context.Context, draftID uuid.UUID) ([]models.Seat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]models.Seat(nil), m.seats[draftID]...), nil
}

func (m *Memory) ListCategories(ctx context.Context, draftID uuid.UUID) ([]models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]models.Category(nil), m.categories[draftID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *Memory) ListNominations(ctx context.Context, draftID uuid.UUID) ([]models.Nomination, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]models.Nomination(nil), m.nominations[draftID]...), nil
}

func (m *Memory) ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.Pick, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]models.Pick(nil), m.picks[draftID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].PickNumber < out[j].PickNumber })
	return out, nil
}

func (m *Memory) ListEventsSince(ctx context.Context, draftID uuid.UUID, afterVersion int64) ([]events.DraftEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []events.DraftEvent
	for _, ev := range m.eventLog[draftID] {
		if ev.Version > afterVersion {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *Memory) GetAutodraftConfig(ctx context.Context, draftID uuid.UUID, seatNumber int) (*models.AutodraftConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.autodraft[draftID][seatNumber]
	if !ok {
		return nil, ErrNotFound
	}
	out := cfg
	return &out, nil
}

func (m *Memory) PutAutodraftConfig(ctx context.Context, cfg models.AutodraftConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.autodraft[cfg.DraftID] == nil {
		m.autodraft[cfg.DraftID] = make(map[int]models.AutodraftConfig)
	}
	m.autodraft[cfg.DraftID][cfg.SeatNumber] = cfg
	return nil
}

func (m *Memory) GetPlan(ctx context.Context, id uuid.UUID) (*models.AutodraftPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plan, ok := m.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := plan
	out.NominationIDs = append([]uuid.UUID(nil), plan.NominationIDs...)
	return &out, nil
}

func (m *Memory) PutPlan(ctx context.Context, plan models.AutodraftPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	plan.NominationIDs = append([]uuid.UUID(nil), plan.NominationIDs...)
	m.plans[plan.ID] = plan
	return nil
}

var _ Store = (*Memory)(nil)
