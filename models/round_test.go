package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutcome(t *testing.T) {
	tests := []struct {
		name        string
		dice        [3]int
		wantTotal   int
		wantResult  Side
		expectError bool
	}{
		{name: "lowest roll", dice: [3]int{1, 1, 1}, wantTotal: 3, wantResult: SideLow},
		{name: "highest low total", dice: [3]int{4, 3, 3}, wantTotal: 10, wantResult: SideLow},
		{name: "lowest high total", dice: [3]int{5, 3, 3}, wantTotal: 11, wantResult: SideHigh},
		{name: "highest roll", dice: [3]int{6, 6, 6}, wantTotal: 18, wantResult: SideHigh},
		{name: "die below range", dice: [3]int{0, 3, 3}, expectError: true},
		{name: "die above range", dice: [3]int{1, 7, 3}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := NewOutcome(tt.dice[0], tt.dice[1], tt.dice[2])
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, outcome)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dice, outcome.Dice)
			assert.Equal(t, tt.wantTotal, outcome.Total)
			assert.Equal(t, tt.wantResult, outcome.Result)
		})
	}
}

func TestParseSide(t *testing.T) {
	for _, input := range []string{"high", "HIGH", "tai", "tài", " Tai "} {
		side, err := ParseSide(input)
		require.NoError(t, err, input)
		assert.Equal(t, SideHigh, side)
	}
	for _, input := range []string{"low", "xiu", "xỉu"} {
		side, err := ParseSide(input)
		require.NoError(t, err, input)
		assert.Equal(t, SideLow, side)
	}

	_, err := ParseSide("even")
	assert.Error(t, err)

	assert.Equal(t, SideLow, SideHigh.Opposite())
	assert.Equal(t, SideHigh, SideLow.Opposite())
	assert.False(t, Side("even").Valid())
}

func TestRoundStatusTransitions(t *testing.T) {
	assert.True(t, RoundStatusBetting.CanTransitionTo(RoundStatusRolling))
	assert.True(t, RoundStatusRolling.CanTransitionTo(RoundStatusFinished))

	assert.False(t, RoundStatusBetting.CanTransitionTo(RoundStatusFinished))
	assert.False(t, RoundStatusRolling.CanTransitionTo(RoundStatusBetting))
	assert.False(t, RoundStatusFinished.CanTransitionTo(RoundStatusBetting))
	assert.False(t, RoundStatusFinished.CanTransitionTo(RoundStatusRolling))

	assert.True(t, RoundStatusBetting.IsActive())
	assert.True(t, RoundStatusRolling.IsActive())
	assert.False(t, RoundStatusFinished.IsActive())
}

func TestRound_BettingWindow(t *testing.T) {
	endsAt := time.Date(2026, 1, 10, 20, 0, 30, 0, time.UTC)
	round := &Round{Status: RoundStatusBetting, BettingEndsAt: endsAt}

	assert.True(t, round.AcceptsBetsAt(endsAt.Add(-time.Millisecond)))
	assert.False(t, round.AcceptsBetsAt(endsAt), "the window is closed at its end instant")
	assert.True(t, round.IsBettingWindowElapsed(endsAt))
	assert.False(t, round.IsBettingWindowElapsed(endsAt.Add(-time.Second)))

	round.Status = RoundStatusRolling
	assert.False(t, round.AcceptsBetsAt(endsAt.Add(-time.Second)))
}

func TestExposure_Heavier(t *testing.T) {
	side, ok := Exposure{High: 5000, Low: 3000}.Heavier()
	assert.True(t, ok)
	assert.Equal(t, SideHigh, side)

	side, ok = Exposure{High: 100, Low: 3000}.Heavier()
	assert.True(t, ok)
	assert.Equal(t, SideLow, side)

	_, ok = Exposure{High: 3000, Low: 3000}.Heavier()
	assert.False(t, ok)

	assert.Equal(t, int64(6000), Exposure{High: 3000, Low: 3000}.Total())
}
