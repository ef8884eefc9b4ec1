package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taixiu/models"
	"taixiu/service"
)

var schedulerNow = time.Date(2026, 1, 10, 20, 0, 0, 0, time.UTC)

func newTestScheduler(rounds service.RoundService) *RoundScheduler {
	s := NewRoundScheduler(rounds, 15*time.Second)
	s.now = func() time.Time { return schedulerNow }
	return s
}

func TestRoundScheduler_Tick(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("opens the first round", func(t *testing.T) {
		rounds := new(service.MockRoundService)
		rounds.On("GetCurrentRound", ctx).Return(nil, service.ErrRoundNotFound)
		rounds.On("OpenRound", ctx).Return(&models.Round{
			ID:            1,
			Status:        models.RoundStatusBetting,
			BettingEndsAt: schedulerNow.Add(30 * time.Second),
		}, nil)

		wait, err := newTestScheduler(rounds).Tick(ctx)

		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, wait)
		rounds.AssertExpectations(t)
	})

	t.Run("waits for the betting window", func(t *testing.T) {
		rounds := new(service.MockRoundService)
		rounds.On("GetCurrentRound", ctx).Return(&models.Round{
			ID:            2,
			Status:        models.RoundStatusBetting,
			BettingEndsAt: schedulerNow.Add(12 * time.Second),
		}, nil)

		wait, err := newTestScheduler(rounds).Tick(ctx)

		require.NoError(t, err)
		assert.Equal(t, 12*time.Second, wait)
		rounds.AssertNotCalled(t, "TriggerRoll", mock.Anything, mock.Anything)
	})

	t.Run("rolls once the window elapsed", func(t *testing.T) {
		rounds := new(service.MockRoundService)
		rounds.On("GetCurrentRound", ctx).Return(&models.Round{
			ID:            3,
			Status:        models.RoundStatusBetting,
			BettingEndsAt: schedulerNow,
		}, nil)
		rounds.On("TriggerRoll", ctx, int64(3)).Return(&models.Round{ID: 3, Status: models.RoundStatusFinished}, nil)

		wait, err := newTestScheduler(rounds).Tick(ctx)

		require.NoError(t, err)
		assert.Zero(t, wait)
		rounds.AssertExpectations(t)
	})

	t.Run("round rolled by an admin in the meantime", func(t *testing.T) {
		rounds := new(service.MockRoundService)
		rounds.On("GetCurrentRound", ctx).Return(&models.Round{
			ID:            4,
			Status:        models.RoundStatusBetting,
			BettingEndsAt: schedulerNow.Add(-time.Second),
		}, nil)
		rounds.On("TriggerRoll", ctx, int64(4)).Return(nil, service.ErrAlreadySettled)

		_, err := newTestScheduler(rounds).Tick(ctx)

		assert.NoError(t, err)
	})

	t.Run("completes a round left rolling by a crash", func(t *testing.T) {
		rounds := new(service.MockRoundService)
		rounds.On("GetCurrentRound", ctx).Return(&models.Round{
			ID:            5,
			Status:        models.RoundStatusRolling,
			BettingEndsAt: schedulerNow.Add(-time.Minute),
		}, nil)
		rounds.On("CompleteRound", ctx, int64(5)).Return(&models.SettlementResult{}, nil)

		wait, err := newTestScheduler(rounds).Tick(ctx)

		require.NoError(t, err)
		assert.Zero(t, wait)
		rounds.AssertExpectations(t)
	})

	t.Run("waits out the cooldown", func(t *testing.T) {
		finishedAt := schedulerNow.Add(-5 * time.Second)
		rounds := new(service.MockRoundService)
		rounds.On("GetCurrentRound", ctx).Return(&models.Round{
			ID:         6,
			Status:     models.RoundStatusFinished,
			FinishedAt: &finishedAt,
		}, nil)

		wait, err := newTestScheduler(rounds).Tick(ctx)

		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, wait)
		rounds.AssertNotCalled(t, "OpenRound", mock.Anything)
	})

	t.Run("opens the next round after the cooldown", func(t *testing.T) {
		finishedAt := schedulerNow.Add(-20 * time.Second)
		rounds := new(service.MockRoundService)
		rounds.On("GetCurrentRound", ctx).Return(&models.Round{
			ID:         7,
			Status:     models.RoundStatusFinished,
			FinishedAt: &finishedAt,
		}, nil)
		rounds.On("OpenRound", ctx).Return(nil, service.ErrRoundAlreadyActive)

		wait, err := newTestScheduler(rounds).Tick(ctx)

		require.NoError(t, err)
		assert.Zero(t, wait)
		rounds.AssertExpectations(t)
	})

	t.Run("storage failure is reported", func(t *testing.T) {
		rounds := new(service.MockRoundService)
		rounds.On("GetCurrentRound", ctx).Return(nil, errors.New("connection refused"))

		_, err := newTestScheduler(rounds).Tick(ctx)

		assert.ErrorContains(t, err, "connection refused")
	})
}

func TestRoundScheduler_StartAndNudge(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks atomic.Int32
	rounds := new(service.MockRoundService)
	rounds.On("GetCurrentRound", mock.Anything).Return(&models.Round{
		ID:            8,
		Status:        models.RoundStatusBetting,
		BettingEndsAt: schedulerNow.Add(time.Hour),
	}, nil).Run(func(mock.Arguments) { ticks.Add(1) })

	scheduler := newTestScheduler(rounds)
	stop := scheduler.Start(ctx)
	defer stop()

	assert.Eventually(t, func() bool {
		return ticks.Load() >= 1
	}, time.Second, 10*time.Millisecond)

	scheduler.Nudge()

	assert.Eventually(t, func() bool {
		return ticks.Load() >= 2
	}, time.Second, 10*time.Millisecond)
}
