package snake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAt_FourSeatSnakeOrder(t *testing.T) {
	// Standard snake order for 4 seats over 8 picks: 1,2,3,4,4,3,2,1.
	want := []int{1, 2, 3, 4, 4, 3, 2, 1}
	for pick, seat := range want {
		turn, err := At(pick+1, 4)
		require.NoError(t, err)
		assert.Equal(t, seat, turn.SeatNumber, "pick %d", pick+1)
	}
}

func TestAt_RoundsAndDirection(t *testing.T) {
	cases := []struct {
		name       string
		pickNumber int
		seatCount  int
		want       Turn
	}{
		{"first pick", 1, 4, Turn{Round: 1, SeatNumber: 1, Direction: DirectionForward}},
		{"end of round one", 4, 4, Turn{Round: 1, SeatNumber: 4, Direction: DirectionForward}},
		{"start of round two reverses", 5, 4, Turn{Round: 2, SeatNumber: 4, Direction: DirectionReverse}},
		{"end of round two", 8, 4, Turn{Round: 2, SeatNumber: 1, Direction: DirectionReverse}},
		{"round three forward again", 9, 4, Turn{Round: 3, SeatNumber: 1, Direction: DirectionForward}},
		{"single seat always seat one", 7, 1, Turn{Round: 7, SeatNumber: 1, Direction: DirectionForward}},
		{"two seats round four", 8, 2, Turn{Round: 4, SeatNumber: 1, Direction: DirectionReverse}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := At(tc.pickNumber, tc.seatCount)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAt_EverySeatPicksOncePerRound(t *testing.T) {
	for _, seatCount := range []int{1, 2, 3, 5, 12} {
		for round := 1; round <= 4; round++ {
			seen := make(map[int]bool)
			for p := (round-1)*seatCount + 1; p <= round*seatCount; p++ {
				turn, err := At(p, seatCount)
				require.NoError(t, err)
				assert.Equal(t, round, turn.Round)
				assert.False(t, seen[turn.SeatNumber], "seat %d picked twice in round %d (seats=%d)", turn.SeatNumber, round, seatCount)
				seen[turn.SeatNumber] = true
			}
			assert.Len(t, seen, seatCount)
		}
	}
}

func TestAt_InvalidInput(t *testing.T) {
	_, err := At(1, 0)
	assert.Error(t, err)
	_, err = At(1, -3)
	assert.Error(t, err)
	_, err = At(0, 4)
	assert.Error(t, err)
}

func TestTotalPicks(t *testing.T) {
	assert.Equal(t, 24, TotalPicks(4, 6))
	assert.Equal(t, 0, TotalPicks(0, 6))
}
