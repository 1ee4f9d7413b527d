package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"awards-draft-backend/internal/draft/events"
	"awards-draft-backend/internal/models"
)

// Postgres implements Store on a pgx connection pool. Unique constraints on
// (draft_id, pick_number) and (draft_id, nomination_id) are the durable
// backstop for the ledger invariants.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres creates a store over an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// withTx runs fn in a transaction, rolling back unless fn succeeds.
func (p *Postgres) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) CreateDraft(ctx context.Context, params CreateDraftParams) error {
	return p.withTx(ctx, func(tx pgx.Tx) error {
		d := params.Draft
		_, err := tx.Exec(ctx, `
		INSERT INTO drafts (
			id, season_id, status, picks_per_seat, total_picks,
			current_pick_number, version, pick_timer_seconds, pick_deadline_at,
			started_at, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			d.ID, d.SeasonID, d.Status, d.PicksPerSeat, d.TotalPicks,
			d.CurrentPickNumber, d.Version, d.PickTimerSeconds, d.PickDeadlineAt,
			d.StartedAt, d.CompletedAt, d.CreatedAt, d.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert draft: %w", err)
		}

		for i, ownerID := range params.SeatOwners {
			if _, err := tx.Exec(ctx, `
				INSERT INTO draft_seat_owners (draft_id, position, owner_id)
				VALUES ($1, $2, $3)`,
				d.ID, i+1, ownerID,
			); err != nil {
				return fmt.Errorf("insert seat owner: %w", err)
			}
		}

		for _, c := range params.Categories {
			if _, err := tx.Exec(ctx, `
				INSERT INTO draft_categories (draft_id, id, name, sort_order)
				VALUES ($1, $2, $3, $4)`,
				d.ID, c.ID, c.Name, c.SortOrder,
			); err != nil {
				return fmt.Errorf("insert category: %w", err)
			}
		}

		for _, n := range params.Nominations {
			if _, err := tx.Exec(ctx, `
				INSERT INTO draft_nominations (draft_id, id, category_id, label, status)
				VALUES ($1, $2, $3, $4, $5)`,
				d.ID, n.ID, n.CategoryID, n.Label, n.Status,
			); err != nil {
				return fmt.Errorf("insert nomination: %w", err)
			}
		}

		return nil
	})
}

// ApplyTransition writes one transition's draft row, optional pick and seat
// roster, and events in a single transaction. A crash can never separate the
// pick from the draft state and events recorded with it.
func (p *Postgres) ApplyTransition(ctx context.Context, params ApplyTransitionParams) error {
	return p.withTx(ctx, func(tx pgx.Tx) error {
		d := params.Draft
		tag, err := tx.Exec(ctx, `
			UPDATE drafts SET
				status = $2, total_picks = $3, current_pick_number = $4,
				version = $5, pick_deadline_at = $6, started_at = $7,
				completed_at = $8, updated_at = $9
			WHERE id = $1`,
			d.ID, d.Status, d.TotalPicks, d.CurrentPickNumber,
			d.Version, d.PickDeadlineAt, d.StartedAt, d.CompletedAt, d.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update draft: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		for _, s := range params.Seats {
			if _, err := tx.Exec(ctx, `
				INSERT INTO draft_seats (draft_id, seat_number, owner_id)
				VALUES ($1, $2, $3)`,
				s.DraftID, s.SeatNumber, s.OwnerID,
			); err != nil {
				if isUniqueViolation(err) {
					return ErrConflict
				}
				return fmt.Errorf("insert seat: %w", err)
			}
		}

		if pk := params.Pick; pk != nil {
			if _, err := tx.Exec(ctx, `
				INSERT INTO draft_picks (draft_id, pick_number, round, seat_number, nomination_id, forced, picked_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				pk.DraftID, pk.PickNumber, pk.Round, pk.SeatNumber,
				pk.NominationID, pk.Forced, pk.PickedAt,
			); err != nil {
				if isUniqueViolation(err) {
					return ErrConflict
				}
				return fmt.Errorf("insert pick: %w", err)
			}
		}

		for _, ev := range params.Events {
			if _, err := tx.Exec(ctx, `
				INSERT INTO draft_events (id, draft_id, version, event_type, payload, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				ev.ID, ev.DraftID, ev.Version, ev.Type, ev.Payload, ev.CreatedAt,
			); err != nil {
				if isUniqueViolation(err) {
					return ErrConflict
				}
				return fmt.Errorf("insert event: %w", err)
			}
		}

		return nil
	})
}

func (p *Postgres) GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	var d models.Draft
	err := p.pool.QueryRow(ctx, `
		SELECT id, season_id, status, picks_per_seat, total_picks,
		       current_pick_number, version, pick_timer_seconds, pick_deadline_at,
		       started_at, completed_at, created_at, updated_at
		FROM drafts WHERE id = $1`, id,
	).Scan(
		&d.ID, &d.SeasonID, &d.Status, &d.PicksPerSeat, &d.TotalPicks,
		&d.CurrentPickNumber, &d.Version, &d.PickTimerSeconds, &d.PickDeadlineAt,
		&d.StartedAt, &d.CompletedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return &d, nil
}

func (p *Postgres) ListDraftIDsByStatus(ctx context.Context, statuses ...models.DraftStatus) ([]uuid.UUID, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id FROM drafts WHERE status = ANY($1)`, names)
	if err != nil {
		return nil, fmt.Errorf("list drafts by status: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan draft id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Postgres) SeatOwners(ctx context.Context, draftID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT owner_id FROM draft_seat_owners
		WHERE draft_id = $1 ORDER BY position`, draftID)
	if err != nil {
		return nil, fmt.Errorf("list seat owners: %w", err)
	}
	defer rows.Close()

	var owners []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seat owner: %w", err)
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

func (p *Postgres) GetSeats(ctx context.Context, draftID uuid.UUID) ([]models.Seat, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT draft_id, seat_number, owner_id FROM draft_seats
		WHERE draft_id = $1 ORDER BY seat_number`, draftID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	defer rows.Close()

	var seats []models.Seat
	for rows.Next() {
		var s models.Seat
		if err := rows.Scan(&s.DraftID, &s.SeatNumber, &s.OwnerID); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

func (p *Postgres) ListCategories(ctx context.Context, draftID uuid.UUID) ([]models.Category, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, sort_order FROM draft_categories
		WHERE draft_id = $1 ORDER BY sort_order, name`, draftID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.SortOrder); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (p *Postgres) ListNominations(ctx context.Context, draftID uuid.UUID) ([]models.Nomination, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, category_id, label, status FROM draft_nominations
		WHERE draft_id = $1 ORDER BY label`, draftID)
	if err != nil {
		return nil, fmt.Errorf("list nominations: %w", err)
	}
	defer rows.Close()

	var nominations []models.Nomination
	for rows.Next() {
		var n models.Nomination
		if err := rows.Scan(&n.ID, &n.CategoryID, &n.Label, &n.Status); err != nil {
			return nil, fmt.Errorf("scan nomination: %w", err)
		}
		nominations = append(nominations, n)
	}
	return nominations, rows.Err()
}

func (p *Postgres) ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.Pick, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT draft_id, pick_number, round, seat_number, nomination_id, forced, picked_at
		FROM draft_picks WHERE draft_id = $1 ORDER BY pick_number`, draftID)
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	defer rows.Close()

	var picks []models.Pick
	for rows.Next() {
		var pk models.Pick
		if err := rows.Scan(&pk.DraftID, &pk.PickNumber, &pk.Round, &pk.SeatNumber,
			&pk.NominationID, &pk.Forced, &pk.PickedAt); err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		picks = append(picks, pk)
	}
	return picks, rows.Err()
}

func (p *Postgres) ListEventsSince(ctx context.Context, draftID uuid.UUID, afterVersion int64) ([]events.DraftEvent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, draft_id, version, event_type, payload, created_at
		FROM draft_events WHERE draft_id = $1 AND version > $2
		ORDER BY version`, draftID, afterVersion)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []events.DraftEvent
	for rows.Next() {
		var e events.DraftEvent
		if err := rows.Scan(&e.ID, &e.DraftID, &e.Version, &e.Type, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) GetAutodraftConfig(ctx context.Context, draftID uuid.UUID, seatNumber int) (*models.AutodraftConfig, error) {
	var cfg models.AutodraftConfig
	err := p.pool.QueryRow(ctx, `
		SELECT draft_id, seat_number, enabled, strategy, plan_id
		FROM autodraft_configs WHERE draft_id = $1 AND seat_number = $2`,
		draftID, seatNumber,
	).Scan(&cfg.DraftID, &cfg.SeatNumber, &cfg.Enabled, &cfg.Strategy, &cfg.PlanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get autodraft config: %w", err)
	}
	return &cfg, nil
}

func (p *Postgres) PutAutodraftConfig(ctx context.Context, cfg models.AutodraftConfig) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO autodraft_configs (draft_id, seat_number, enabled, strategy, plan_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (draft_id, seat_number)
		DO UPDATE SET enabled = $3, strategy = $4, plan_id = $5`,
		cfg.DraftID, cfg.SeatNumber, cfg.Enabled, cfg.Strategy, cfg.PlanID,
	)
	if err != nil {
		return fmt.Errorf("put autodraft config: %w", err)
	}
	return nil
}

func (p *Postgres) GetPlan(ctx context.Context, id uuid.UUID) (*models.AutodraftPlan, error) {
	var plan models.AutodraftPlan
	err := p.pool.QueryRow(ctx, `
		SELECT id, nomination_ids FROM autodraft_plans WHERE id = $1`, id,
	).Scan(&plan.ID, &plan.NominationIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &plan, nil
}

func (p *Postgres) PutPlan(ctx context.Context, plan models.AutodraftPlan) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO autodraft_plans (id, nomination_ids)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET nomination_ids = $2`,
		plan.ID, plan.NominationIDs,
	)
	if err != nil {
		return fmt.Errorf("put plan: %w", err)
	}
	return nil
}
