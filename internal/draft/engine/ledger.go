package engine

import (
	"errors"

	"github.com/google/uuid"

	"awards-draft-backend/internal/models"
)

// ErrLedgerConflict is returned by Ledger.Append when the pick number already
// has an entry or the nomination already appears anywhere in the ledger.
var ErrLedgerConflict = errors.New("ledger: conflict")

// Ledger is the authoritative, append-only record of picks for one draft.
// It never permits overwrite or deletion. Not safe for concurrent use; the
// owning actor serializes access.
type Ledger struct {
	picks     []models.Pick
	byNumber  map[int]int // pick number -> index into picks
	pickedIDs map[uuid.UUID]bool
}

// NewLedger builds a ledger from existing picks, e.g. when rehydrating a
// draft from the store. Conflicting input picks are rejected.
func NewLedger(picks []models.Pick) (*Ledger, error) {
	l := &Ledger{
		byNumber:  make(map[int]int),
		pickedIDs: make(map[uuid.UUID]bool),
	}
	for _, p := range picks {
		if err := l.Append(p); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Append records a pick. Returns ErrLedgerConflict on a duplicate pick
// number or an already-picked nomination.
func (l *Ledger) Append(pick models.Pick) error {
	if _, dup := l.byNumber[pick.PickNumber]; dup {
		return ErrLedgerConflict
	}
	if l.pickedIDs[pick.NominationID] {
		return ErrLedgerConflict
	}
	l.byNumber[pick.PickNumber] = len(l.picks)
	l.pickedIDs[pick.NominationID] = true
	l.picks = append(l.picks, pick)
	return nil
}

// TotalPicks returns the number of recorded picks.
func (l *Ledger) TotalPicks() int {
	return len(l.picks)
}

// IsNominationPicked reports whether id appears anywhere in the ledger.
func (l *Ledger) IsNominationPicked(id uuid.UUID) bool {
	return l.pickedIDs[id]
}

// PicksForSeat returns the seat's picks ordered by pick number.
func (l *Ledger) PicksForSeat(seatNumber int) []models.Pick {
	var out []models.Pick
	for _, p := range l.Picks() {
		if p.SeatNumber == seatNumber {
			out = append(out, p)
		}
	}
	return out
}

// Picks returns all picks ordered by pick number.
func (l *Ledger) Picks() []models.Pick {
	out := append([]models.Pick(nil), l.picks...)
	// Entries are appended in pick-number order by the single writer, but
	// rehydration input may arrive unsorted.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].PickNumber > out[j].PickNumber; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
