// Package snake computes snake-draft turn order. It is a pure function of
// pick number and seat count and is evaluated identically on the server and
// in the reference client; when the two disagree during a resync window the
// server's value is authoritative.
package snake

import "fmt"

// Direction indicates which way a round traverses the seats.
type Direction string

const (
	DirectionForward Direction = "FORWARD"
	DirectionReverse Direction = "REVERSE"
)

// Turn describes whose turn a given pick number is.
type Turn struct {
	Round      int       `json:"round"`
	SeatNumber int       `json:"seat_number"`
	Direction  Direction `json:"direction"`
}

// At returns the turn for pickNumber in a draft with seatCount seats.
// Odd rounds run 1..N, even rounds run N..1.
func At(pickNumber, seatCount int) (Turn, error) {
	if seatCount <= 0 {
		return Turn{}, fmt.Errorf("snake: seat count must be positive, got %d", seatCount)
	}
	if pickNumber <= 0 {
		return Turn{}, fmt.Errorf("snake: pick number must be positive, got %d", pickNumber)
	}

	round := (pickNumber-1)/seatCount + 1
	i := (pickNumber - 1) % seatCount

	t := Turn{Round: round}
	if round%2 == 1 {
		t.SeatNumber = i + 1
		t.Direction = DirectionForward
	} else {
		t.SeatNumber = seatCount - i
		t.Direction = DirectionReverse
	}
	return t, nil
}

// TotalPicks returns the ledger size for a full draft.
func TotalPicks(seatCount, picksPerSeat int) int {
	return seatCount * picksPerSeat
}
