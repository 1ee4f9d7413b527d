package autodraft

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awards-draft-backend/internal/models"
)

type mapPlanSource map[uuid.UUID]models.AutodraftPlan

func (m mapPlanSource) GetPlan(ctx context.Context, id uuid.UUID) (*models.AutodraftPlan, error) {
	plan, ok := m[id]
	if !ok {
		return nil, errors.New("plan not found")
	}
	return &plan, nil
}

type mapScorer map[uuid.UUID]float64

func (m mapScorer) Score(ctx context.Context, nomination models.Nomination) (float64, error) {
	score, ok := m[nomination.ID]
	if !ok {
		return 0, errors.New("no score")
	}
	return score, nil
}

func pool() ([]models.Category, []models.Nomination) {
	catFilm := models.Category{ID: uuid.New(), Name: "Best Picture", SortOrder: 1}
	catActor := models.Category{ID: uuid.New(), Name: "Best Actor", SortOrder: 2}
	noms := []models.Nomination{
		{ID: uuid.New(), CategoryID: catActor.ID, Label: "Alpha", Status: models.NominationStatusActive},
		{ID: uuid.New(), CategoryID: catFilm.ID, Label: "Zeta", Status: models.NominationStatusActive},
		{ID: uuid.New(), CategoryID: catFilm.ID, Label: "Midway", Status: models.NominationStatusActive},
	}
	return []models.Category{catFilm, catActor}, noms
}

func cfg(strategy models.AutodraftStrategy) models.AutodraftConfig {
	return models.AutodraftConfig{DraftID: uuid.New(), SeatNumber: 1, Enabled: true, Strategy: strategy}
}

func TestSelectEmptyPool(t *testing.T) {
	e := New(mapPlanSource{}, nil)
	_, ok, err := e.Select(context.Background(), cfg(models.StrategyRandom), nil, nil)
	require.NoError(t, err)
	assert.False(t, ok, "ok=false only when the pool is exhausted")
}

func TestSelectRandomStaysInPool(t *testing.T) {
	categories, noms := pool()
	e := New(mapPlanSource{}, nil)

	valid := make(map[uuid.UUID]bool)
	for _, n := range noms {
		valid[n.ID] = true
	}
	for i := 0; i < 20; i++ {
		id, ok, err := e.Select(context.Background(), cfg(models.StrategyRandom), noms, categories)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, valid[id])
	}
}

func TestSelectAlphabetical(t *testing.T) {
	categories, noms := pool()
	e := New(mapPlanSource{}, nil)

	id, ok, err := e.Select(context.Background(), cfg(models.StrategyAlphabetical), noms, categories)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, noms[0].ID, id, "Alpha sorts first regardless of category")
}

func TestSelectByCategory(t *testing.T) {
	categories, noms := pool()
	e := New(mapPlanSource{}, nil)

	id, ok, err := e.Select(context.Background(), cfg(models.StrategyByCategory), noms, categories)
	require.NoError(t, err)
	require.True(t, ok)
	// Films sort before actors; Midway before Zeta within the category.
	assert.Equal(t, noms[2].ID, id)
}

func TestSelectWisdom(t *testing.T) {
	categories, noms := pool()
	scorer := mapScorer{
		noms[0].ID: 0.2,
		noms[1].ID: 0.9,
		noms[2].ID: 0.5,
	}
	e := New(mapPlanSource{}, scorer)

	id, ok, err := e.Select(context.Background(), cfg(models.StrategyWisdom), noms, categories)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, noms[1].ID, id, "highest score wins")
}

func TestSelectWisdomWithoutScorerFallsBack(t *testing.T) {
	categories, noms := pool()
	e := New(mapPlanSource{}, nil)

	id, ok, err := e.Select(context.Background(), cfg(models.StrategyWisdom), noms, categories)
	require.NoError(t, err)
	require.True(t, ok)
	fallbackID, _ := Fallback(noms, categories)
	assert.Equal(t, fallbackID, id)
}

func TestSelectPlanInOrder(t *testing.T) {
	categories, noms := pool()
	planID := uuid.New()
	plans := mapPlanSource{planID: {
		ID: planID,
		// First preference already gone; second still available.
		NominationIDs: []uuid.UUID{uuid.New(), noms[1].ID, noms[0].ID},
	}}
	e := New(plans, nil)

	c := cfg(models.StrategyPlan)
	c.PlanID = &planID
	id, ok, err := e.Select(context.Background(), c, noms, categories)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, noms[1].ID, id)
}

func TestSelectPlanExhaustedFallsBack(t *testing.T) {
	categories, noms := pool()
	planID := uuid.New()
	plans := mapPlanSource{planID: {
		ID:            planID,
		NominationIDs: []uuid.UUID{uuid.New(), uuid.New()},
	}}
	e := New(plans, nil)

	c := cfg(models.StrategyPlan)
	c.PlanID = &planID
	id, ok, err := e.Select(context.Background(), c, noms, categories)
	require.NoError(t, err)
	require.True(t, ok, "exhausted plan must not stall the turn")
	fallbackID, _ := Fallback(noms, categories)
	assert.Equal(t, fallbackID, id)
}

func TestSelectPlanMissingFallsBack(t *testing.T) {
	categories, noms := pool()
	e := New(mapPlanSource{}, nil)

	missing := uuid.New()
	c := cfg(models.StrategyPlan)
	c.PlanID = &missing
	id, ok, err := e.Select(context.Background(), c, noms, categories)
	require.NoError(t, err)
	require.True(t, ok)
	fallbackID, _ := Fallback(noms, categories)
	assert.Equal(t, fallbackID, id)
}

func TestFallbackDeterministic(t *testing.T) {
	categories, noms := pool()

	first, ok := Fallback(noms, categories)
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		again, ok := Fallback(noms, categories)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}

	_, ok = Fallback(nil, categories)
	assert.False(t, ok)
}

func TestSelectUnknownStrategyErrors(t *testing.T) {
	categories, noms := pool()
	e := New(mapPlanSource{}, nil)

	_, _, err := e.Select(context.Background(), cfg("MYSTERY"), noms, categories)
	assert.Error(t, err)
}
