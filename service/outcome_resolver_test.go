package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taixiu/models"
)

// scriptedSource returns the queued values in order, then zeros
type scriptedSource struct {
	values []int
}

func (s *scriptedSource) IntN(n int) int {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v % n
}

func sidePtr(s models.Side) *models.Side {
	return &s
}

func TestTriplesBySide_CoverAllCombinations(t *testing.T) {
	assert.Len(t, triplesBySide[models.SideHigh], 108)
	assert.Len(t, triplesBySide[models.SideLow], 108)

	for side, triples := range triplesBySide {
		for _, tr := range triples {
			assert.Equal(t, side, models.SideForTotal(tr[0]+tr[1]+tr[2]))
		}
	}
}

func TestOutcomeResolver_FairRoll(t *testing.T) {
	resolver := NewOutcomeResolver(&scriptedSource{values: []int{3, 3, 3}})

	outcome, policy := resolver.Resolve(&models.Round{ID: 1}, models.Exposure{High: 5000})

	assert.Equal(t, models.ResolutionPolicyFair, policy)
	assert.Equal(t, [3]int{4, 4, 4}, outcome.Dice)
	assert.Equal(t, 12, outcome.Total)
	assert.Equal(t, models.SideHigh, outcome.Result)
}

func TestOutcomeResolver_ManualOverrideWins(t *testing.T) {
	dice := NewSeededDiceSource(7)
	resolver := NewOutcomeResolver(dice)

	for i := 0; i < 200; i++ {
		round := &models.Round{
			ID:                 1,
			ManualResult:       sidePtr(models.SideLow),
			AutoControlEnabled: true,
			AutoLosePercent:    100,
		}
		// Heavier side is low, auto-bias alone would force high
		outcome, policy := resolver.Resolve(round, models.Exposure{Low: 9000, High: 100})

		require.Equal(t, models.ResolutionPolicyManual, policy)
		require.Equal(t, models.SideLow, outcome.Result)
		require.LessOrEqual(t, outcome.Total, 10)
		require.GreaterOrEqual(t, outcome.Total, 3)
	}
}

func TestOutcomeResolver_AutoBiasAlwaysAtHundredPercent(t *testing.T) {
	resolver := NewOutcomeResolver(NewSeededDiceSource(42))
	round := &models.Round{ID: 1, AutoControlEnabled: true, AutoLosePercent: 100}

	for i := 0; i < 500; i++ {
		outcome, policy := resolver.Resolve(round, models.Exposure{High: 10000, Low: 500})
		require.Equal(t, models.ResolutionPolicyAutoBias, policy)
		require.Equal(t, models.SideLow, outcome.Result)
	}
}

func TestOutcomeResolver_AutoBiasNeverAtZeroPercent(t *testing.T) {
	resolver := NewOutcomeResolver(NewSeededDiceSource(42))
	round := &models.Round{ID: 1, AutoControlEnabled: true, AutoLosePercent: 0}

	for i := 0; i < 200; i++ {
		_, policy := resolver.Resolve(round, models.Exposure{High: 10000, Low: 500})
		require.Equal(t, models.ResolutionPolicyFair, policy)
	}
}

func TestOutcomeResolver_TieRollsFair(t *testing.T) {
	resolver := NewOutcomeResolver(NewSeededDiceSource(1))
	round := &models.Round{ID: 1, AutoControlEnabled: true, AutoLosePercent: 100}

	_, policy := resolver.Resolve(round, models.Exposure{High: 2500, Low: 2500})
	assert.Equal(t, models.ResolutionPolicyFair, policy)

	_, policy = resolver.Resolve(round, models.Exposure{})
	assert.Equal(t, models.ResolutionPolicyFair, policy)
}

func TestOutcomeResolver_AutoControlDisabledIgnoresExposure(t *testing.T) {
	resolver := NewOutcomeResolver(NewSeededDiceSource(9))
	round := &models.Round{ID: 1, AutoControlEnabled: false, AutoLosePercent: 100}

	for i := 0; i < 100; i++ {
		_, policy := resolver.Resolve(round, models.Exposure{High: 10000})
		require.Equal(t, models.ResolutionPolicyFair, policy)
	}
}

func TestOutcomeResolver_AutoBiasRateTracksPercent(t *testing.T) {
	resolver := NewOutcomeResolver(NewSeededDiceSource(2024))
	round := &models.Round{ID: 1, AutoControlEnabled: true, AutoLosePercent: 60}

	const runs = 20000
	biased := 0
	lowWins := 0
	for i := 0; i < runs; i++ {
		outcome, policy := resolver.Resolve(round, models.Exposure{High: 10000, Low: 1})
		if policy == models.ResolutionPolicyAutoBias {
			biased++
		}
		if outcome.Result == models.SideLow {
			lowWins++
		}
	}

	// 60% forced plus half of the remaining 40% from fair rolls
	assert.InDelta(t, 0.60, float64(biased)/runs, 0.02)
	assert.InDelta(t, 0.80, float64(lowWins)/runs, 0.02)
}

func TestOutcomeResolver_FairRollIsBalanced(t *testing.T) {
	resolver := NewOutcomeResolver(NewSeededDiceSource(99))

	const runs = 20000
	high := 0
	for i := 0; i < runs; i++ {
		outcome, _ := resolver.Resolve(&models.Round{ID: 1}, models.Exposure{})
		for _, d := range outcome.Dice {
			require.GreaterOrEqual(t, d, 1)
			require.LessOrEqual(t, d, 6)
		}
		if outcome.Result == models.SideHigh {
			high++
		}
	}

	assert.InDelta(t, 0.5, float64(high)/runs, 0.02)
}
