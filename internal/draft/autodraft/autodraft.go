// Package autodraft selects nominations on behalf of seats that opted in,
// and provides the deterministic fallback used by clock-expiry forced picks.
package autodraft

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"awards-draft-backend/internal/models"
)

// Scorer supplies the external ranking signal behind the WISDOM strategy.
type Scorer interface {
	Score(ctx context.Context, nomination models.Nomination) (float64, error)
}

// PlanSource resolves a seat's ordered preference list for the PLAN strategy.
type PlanSource interface {
	GetPlan(ctx context.Context, id uuid.UUID) (*models.AutodraftPlan, error)
}

// Engine picks a nomination from the available pool per a seat's configured
// strategy. Select returns ok=false only when the pool is exhausted; callers
// must treat that as "no legal pick".
type Engine struct {
	plans  PlanSource
	scorer Scorer

	mu  sync.Mutex
	rng *rand.Rand
}

// New constructs an Engine with its own seeded RNG. scorer may be nil, in
// which case WISDOM degrades to the deterministic fallback.
func New(plans PlanSource, scorer Scorer) *Engine {
	return &Engine{
		plans:  plans,
		scorer: scorer,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Select chooses a nomination for the seat described by cfg.
func (e *Engine) Select(ctx context.Context, cfg models.AutodraftConfig, available []models.Nomination, categories []models.Category) (uuid.UUID, bool, error) {
	if len(available) == 0 {
		return uuid.Nil, false, nil
	}

	switch cfg.Strategy {
	case models.StrategyRandom:
		e.mu.Lock()
		choice := available[e.rng.Intn(len(available))]
		e.mu.Unlock()
		return choice.ID, true, nil

	case models.StrategyAlphabetical:
		sorted := sortedByLabel(available)
		return sorted[0].ID, true, nil

	case models.StrategyByCategory:
		id, ok := Fallback(available, categories)
		return id, ok, nil

	case models.StrategyWisdom:
		return e.selectByScore(ctx, available, categories)

	case models.StrategyPlan:
		return e.selectFromPlan(ctx, cfg, available, categories)

	default:
		return uuid.Nil, false, fmt.Errorf("autodraft: unknown strategy %q", cfg.Strategy)
	}
}

func (e *Engine) selectByScore(ctx context.Context, available []models.Nomination, categories []models.Category) (uuid.UUID, bool, error) {
	if e.scorer == nil {
		id, ok := Fallback(available, categories)
		return id, ok, nil
	}

	sorted := sortedByLabel(available) // deterministic tie-break
	best := sorted[0]
	bestScore := -1.0
	for _, nom := range sorted {
		score, err := e.scorer.Score(ctx, nom)
		if err != nil {
			log.Warn().Err(err).
				Str("nomination_id", nom.ID.String()).
				Msg("wisdom scorer failed; skipping nomination")
			continue
		}
		if score > bestScore {
			best = nom
			bestScore = score
		}
	}
	return best.ID, true, nil
}

// selectFromPlan consumes the plan in order, skipping entries that are no
// longer available. An exhausted or unresolvable plan degrades to the
// deterministic fallback rather than stalling the seat's turn.
func (e *Engine) selectFromPlan(ctx context.Context, cfg models.AutodraftConfig, available []models.Nomination, categories []models.Category) (uuid.UUID, bool, error) {
	if cfg.PlanID == nil {
		id, ok := Fallback(available, categories)
		return id, ok, nil
	}

	plan, err := e.plans.GetPlan(ctx, *cfg.PlanID)
	if err != nil {
		log.Warn().Err(err).
			Str("plan_id", cfg.PlanID.String()).
			Int("seat_number", cfg.SeatNumber).
			Msg("autodraft plan unavailable; using fallback")
		id, ok := Fallback(available, categories)
		return id, ok, nil
	}

	pool := make(map[uuid.UUID]bool, len(available))
	for _, nom := range available {
		pool[nom.ID] = true
	}
	for _, id := range plan.NominationIDs {
		if pool[id] {
			return id, true, nil
		}
	}

	id, ok := Fallback(available, categories)
	return id, ok, nil
}

// Fallback returns the first available nomination in ascending category sort
// order, then label, then ID. It is the deterministic choice for forced
// picks when a seat has no autodraft configured.
func Fallback(available []models.Nomination, categories []models.Category) (uuid.UUID, bool) {
	if len(available) == 0 {
		return uuid.Nil, false
	}

	catOrder := make(map[uuid.UUID]int, len(categories))
	for _, c := range categories {
		catOrder[c.ID] = c.SortOrder
	}

	sorted := append([]models.Nomination(nil), available...)
	sort.Slice(sorted, func(i, j int) bool {
		oi, oj := catOrder[sorted[i].CategoryID], catOrder[sorted[j].CategoryID]
		if oi != oj {
			return oi < oj
		}
		if sorted[i].Label != sorted[j].Label {
			return sorted[i].Label < sorted[j].Label
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	return sorted[0].ID, true
}

func sortedByLabel(available []models.Nomination) []models.Nomination {
	sorted := append([]models.Nomination(nil), available...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Label != sorted[j].Label {
			return sorted[i].Label < sorted[j].Label
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	return sorted
}
