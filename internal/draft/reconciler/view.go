package reconciler

import (
	"fmt"

	"awards-draft-backend/internal/draft/engine"
	"awards-draft-backend/internal/draft/events"
	"awards-draft-backend/internal/draft/snake"
	"awards-draft-backend/internal/models"
)

// View is a viewer's replica of draft state, built from a snapshot and
// advanced by event deltas. The locally computed turn is provisional
// display state; the server's value wins whenever they disagree.
type View struct {
	Draft       models.Draft
	Seats       []models.Seat
	Picks       []models.Pick
	Categories  []models.Category
	Nominations []models.Nomination
	TotalPicks  int
	Version     int64
}

// newViewFromSnapshot replaces the whole replica with snapshot state.
func newViewFromSnapshot(snap *engine.Snapshot) *View {
	return &View{
		Draft:       snap.Draft,
		Seats:       snap.Seats,
		Picks:       snap.Picks,
		Categories:  snap.Categories,
		Nominations: snap.Nominations,
		TotalPicks:  snap.TotalPicks,
		Version:     snap.Version,
	}
}

// apply advances the replica by one event delta. Structural events are
// handled by the reconciler via resync and must not reach here.
func (v *View) apply(e events.DraftEvent) error {
	payload, err := events.ParsePayload(&e)
	if err != nil {
		return fmt.Errorf("parse %s payload: %w", e.Type, err)
	}

	switch p := payload.(type) {
	case events.PickMadePayload:
		v.Picks = append(v.Picks, models.Pick{
			DraftID:      p.DraftID,
			PickNumber:   p.PickNumber,
			Round:        p.Round,
			SeatNumber:   p.SeatNumber,
			NominationID: p.NominationID,
			Forced:       p.Forced,
			PickedAt:     p.PickedAt,
		})
		v.Draft.CurrentPickNumber = p.NextPickNumber
		v.Draft.PickDeadlineAt = p.PickDeadlineAt

	case events.DraftPausedPayload:
		v.Draft.Status = models.DraftStatusPaused
		v.Draft.PickDeadlineAt = nil

	case events.DraftResumedPayload:
		v.Draft.Status = models.DraftStatusInProgress
		v.Draft.PickDeadlineAt = p.PickDeadlineAt

	case events.DraftCompletedPayload:
		v.Draft.Status = models.DraftStatusCompleted
		v.Draft.CompletedAt = &p.CompletedAt
		v.Draft.CurrentPickNumber = nil
		v.Draft.PickDeadlineAt = nil

	case events.SeasonCancelledPayload:
		v.Draft.Status = models.DraftStatusCancelled
		v.Draft.CurrentPickNumber = nil
		v.Draft.PickDeadlineAt = nil

	default:
		return fmt.Errorf("unexpected incremental event %s", e.Type)
	}

	v.Version = e.Version
	v.Draft.Version = e.Version
	return nil
}

// ActiveTurn computes the provisional local turn, if a turn is open.
func (v *View) ActiveTurn() (snake.Turn, bool) {
	if v.Draft.Status != models.DraftStatusInProgress ||
		v.Draft.CurrentPickNumber == nil ||
		len(v.Seats) == 0 {
		return snake.Turn{}, false
	}
	turn, err := snake.At(*v.Draft.CurrentPickNumber, len(v.Seats))
	if err != nil {
		return snake.Turn{}, false
	}
	return turn, true
}
