package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taixiu/config"
	"taixiu/events"
	"taixiu/models"
)

func newTestRoundService(factory UnitOfWorkFactory, resolver OutcomeResolver) *roundService {
	cfg := config.NewTestConfig()
	settlement := NewSettlementService(factory, cfg.WinMultiplier)
	svc := NewRoundService(factory, resolver, settlement, cfg).(*roundService)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestRoundService_OpenRound(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := NewMockUnitOfWork()
	expectTransaction(factory, uow, ctx, true)
	svc := newTestRoundService(factory, new(MockOutcomeResolver))

	uow.RoundRepo.On("GetActive", ctx).Return(nil, nil)
	uow.RoundRepo.On("Create", ctx, mock.MatchedBy(func(r *models.Round) bool {
		return r.Status == models.RoundStatusBetting && r.BettingEndsAt.Equal(testNow.Add(30*time.Second))
	})).Run(func(args mock.Arguments) {
		r := args.Get(1).(*models.Round)
		r.ID = 1
		r.RoundNumber = 1
	}).Return(nil)

	round, err := svc.OpenRound(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(1), round.RoundNumber)
	opened := uow.Publisher.Events(events.EventTypeRoundOpened)
	require.Len(t, opened, 1)
	assert.Equal(t, int64(1), opened[0].(events.RoundOpenedEvent).RoundID)
	uow.AssertExpectations(t)
}

func TestRoundService_OpenRound_RejectsSecondActiveRound(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := NewMockUnitOfWork()
	expectTransaction(factory, uow, ctx, false)
	svc := newTestRoundService(factory, new(MockOutcomeResolver))

	uow.RoundRepo.On("GetActive", ctx).Return(&models.Round{ID: 4, Status: models.RoundStatusRolling}, nil)

	_, err := svc.OpenRound(ctx)

	assert.ErrorIs(t, err, ErrRoundAlreadyActive)
	uow.RoundRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRoundService_LockRound_SnapshotsSettings(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := NewMockUnitOfWork()
	expectTransaction(factory, uow, ctx, true)
	svc := newTestRoundService(factory, new(MockOutcomeResolver))

	settings := &models.GameSettings{AutoControlEnabled: true, AutoLosePercent: 70}
	uow.SettingsRepo.On("Get", ctx).Return(settings, nil)
	uow.RoundRepo.On("Lock", ctx, int64(5), settings).Return(true, nil)
	uow.RoundRepo.On("GetByID", ctx, int64(5)).Return(&models.Round{
		ID:                 5,
		Status:             models.RoundStatusRolling,
		AutoControlEnabled: true,
		AutoLosePercent:    70,
	}, nil)

	round, err := svc.LockRound(ctx, 5)

	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusRolling, round.Status)
	assert.Len(t, uow.Publisher.Events(events.EventTypeRoundLocked), 1)
	uow.AssertRepositories(t)
}

func TestRoundService_LockRound_AlreadyRollingIsNoop(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := NewMockUnitOfWork()
	expectTransaction(factory, uow, ctx, false)
	svc := newTestRoundService(factory, new(MockOutcomeResolver))

	uow.SettingsRepo.On("Get", ctx).Return(&models.GameSettings{}, nil)
	uow.RoundRepo.On("Lock", ctx, int64(5), mock.Anything).Return(false, nil)
	uow.RoundRepo.On("GetByID", ctx, int64(5)).Return(&models.Round{ID: 5, Status: models.RoundStatusRolling}, nil)

	round, err := svc.LockRound(ctx, 5)

	require.NoError(t, err)
	assert.Equal(t, int64(5), round.ID)
	assert.Empty(t, uow.Publisher.Events(events.EventTypeRoundLocked))
	uow.AssertNotCalled(t, "Commit")
}

func TestRoundService_LockRound_FinishedRound(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := NewMockUnitOfWork()
	expectTransaction(factory, uow, ctx, false)
	svc := newTestRoundService(factory, new(MockOutcomeResolver))

	uow.SettingsRepo.On("Get", ctx).Return(&models.GameSettings{}, nil)
	uow.RoundRepo.On("Lock", ctx, int64(5), mock.Anything).Return(false, nil)
	uow.RoundRepo.On("GetByID", ctx, int64(5)).Return(finishedRound(5, 1, 1, 1), nil)

	_, err := svc.LockRound(ctx, 5)

	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestRoundService_CompleteRound(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := NewMockUnitOfWork()
	expectTransaction(factory, uow, ctx, true)
	resolver := new(MockOutcomeResolver)
	svc := newTestRoundService(factory, resolver)

	rolling := &models.Round{ID: 8, RoundNumber: 8, Status: models.RoundStatusRolling}
	exposure := models.Exposure{High: 5000, Low: 3000}
	outcome, _ := models.NewOutcome(4, 4, 4)

	uow.RoundRepo.On("GetByIDForUpdate", ctx, int64(8)).Return(rolling, nil)
	uow.BetRepo.On("GetExposure", ctx, int64(8)).Return(exposure, nil)
	resolver.On("Resolve", rolling, exposure).Return(outcome, models.ResolutionPolicyFair)
	uow.RoundRepo.On("Finish", ctx, int64(8), outcome, models.ResolutionPolicyFair).Return(true, nil)
	uow.BetRepo.On("GetUnsettledByRoundForUpdate", ctx, int64(8)).Return([]*models.Bet{
		{ID: 1, TelegramID: 100, Side: models.SideHigh, Amount: 5000},
		{ID: 2, TelegramID: 200, Side: models.SideLow, Amount: 3000},
	}, nil)
	uow.BetRepo.On("MarkSettled", ctx, int64(1), int64(9750), true).Return(true, nil)
	uow.BetRepo.On("MarkSettled", ctx, int64(2), int64(0), false).Return(true, nil)
	uow.UserRepo.On("AddBalance", ctx, int64(100), int64(9750)).Return(int64(104750), nil)
	uow.BalanceHistoryRepo.On("Record", ctx, mock.Anything).Return(nil)

	result, err := svc.CompleteRound(ctx, 8)

	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusFinished, result.Round.Status)
	assert.Equal(t, models.SideHigh, result.Round.Outcome.Result)
	assert.Equal(t, int64(9750), result.TotalPaidOut)

	finished := uow.Publisher.Events(events.EventTypeRoundFinished)
	require.Len(t, finished, 1)
	event := finished[0].(events.RoundFinishedEvent)
	assert.Equal(t, [3]int{4, 4, 4}, event.Dice)
	assert.Equal(t, 1, event.WinnerCount)
	assert.Equal(t, 1, event.LoserCount)

	resolver.AssertExpectations(t)
	uow.AssertExpectations(t)
	uow.AssertRepositories(t)
}

func TestRoundService_CompleteRound_AlreadyFinished(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := NewMockUnitOfWork()
	expectTransaction(factory, uow, ctx, false)
	resolver := new(MockOutcomeResolver)
	svc := newTestRoundService(factory, resolver)

	uow.RoundRepo.On("GetByIDForUpdate", ctx, int64(8)).Return(finishedRound(8, 2, 2, 2), nil)

	_, err := svc.CompleteRound(ctx, 8)

	assert.ErrorIs(t, err, ErrAlreadySettled)
	resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestRoundService_CompleteRound_StillBetting(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := NewMockUnitOfWork()
	expectTransaction(factory, uow, ctx, false)
	svc := newTestRoundService(factory, new(MockOutcomeResolver))

	uow.RoundRepo.On("GetByIDForUpdate", ctx, int64(8)).Return(&models.Round{ID: 8, Status: models.RoundStatusBetting}, nil)

	_, err := svc.CompleteRound(ctx, 8)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "still accepting bets")
	uow.BetRepo.AssertNotCalled(t, "GetExposure", mock.Anything, mock.Anything)
}

func TestRoundService_CompleteRound_SettlementFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := NewMockUnitOfWork()
	expectTransaction(factory, uow, ctx, false)
	resolver := new(MockOutcomeResolver)
	svc := newTestRoundService(factory, resolver)

	rolling := &models.Round{ID: 8, Status: models.RoundStatusRolling}
	outcome, _ := models.NewOutcome(1, 2, 3)

	uow.RoundRepo.On("GetByIDForUpdate", ctx, int64(8)).Return(rolling, nil)
	uow.BetRepo.On("GetExposure", ctx, int64(8)).Return(models.Exposure{}, nil)
	resolver.On("Resolve", rolling, models.Exposure{}).Return(outcome, models.ResolutionPolicyFair)
	uow.RoundRepo.On("Finish", ctx, int64(8), outcome, models.ResolutionPolicyFair).Return(true, nil)
	uow.BetRepo.On("GetUnsettledByRoundForUpdate", ctx, int64(8)).Return(nil, errors.New("deadlock detected"))

	_, err := svc.CompleteRound(ctx, 8)

	assert.Error(t, err)
	uow.AssertNotCalled(t, "Commit")
	uow.AssertCalled(t, "Rollback")
	assert.Empty(t, uow.Publisher.Events(events.EventTypeRoundFinished))
}

func TestRoundService_GetCurrentRound(t *testing.T) {
	ctx := context.Background()

	t.Run("active round", func(t *testing.T) {
		factory := new(MockUnitOfWorkFactory)
		uow := NewMockUnitOfWork()
		expectTransaction(factory, uow, ctx, false)
		svc := newTestRoundService(factory, new(MockOutcomeResolver))

		uow.RoundRepo.On("GetActive", ctx).Return(bettingRound(), nil)

		round, err := svc.GetCurrentRound(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.RoundStatusBetting, round.Status)
		uow.RoundRepo.AssertNotCalled(t, "GetLatestFinished", mock.Anything)
	})

	t.Run("falls back to latest finished", func(t *testing.T) {
		factory := new(MockUnitOfWorkFactory)
		uow := NewMockUnitOfWork()
		expectTransaction(factory, uow, ctx, false)
		svc := newTestRoundService(factory, new(MockOutcomeResolver))

		uow.RoundRepo.On("GetActive", ctx).Return(nil, nil)
		uow.RoundRepo.On("GetLatestFinished", ctx).Return(finishedRound(3, 6, 6, 6), nil)

		round, err := svc.GetCurrentRound(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), round.ID)
	})

	t.Run("no rounds yet", func(t *testing.T) {
		factory := new(MockUnitOfWorkFactory)
		uow := NewMockUnitOfWork()
		expectTransaction(factory, uow, ctx, false)
		svc := newTestRoundService(factory, new(MockOutcomeResolver))

		uow.RoundRepo.On("GetActive", ctx).Return(nil, nil)
		uow.RoundRepo.On("GetLatestFinished", ctx).Return(nil, nil)

		_, err := svc.GetCurrentRound(ctx)
		assert.ErrorIs(t, err, ErrRoundNotFound)
	})
}

func TestRoundService_SetManualResult(t *testing.T) {
	ctx := context.Background()

	t.Run("sets override on unfinished round", func(t *testing.T) {
		factory := new(MockUnitOfWorkFactory)
		uow := NewMockUnitOfWork()
		expectTransaction(factory, uow, ctx, true)
		svc := newTestRoundService(factory, new(MockOutcomeResolver))

		low := models.SideLow
		round := bettingRound()
		round.ManualResult = &low
		uow.RoundRepo.On("SetManualResult", ctx, int64(11), &low).Return(true, nil)
		uow.RoundRepo.On("GetByID", ctx, int64(11)).Return(round, nil)

		updated, err := svc.SetManualResult(ctx, 11, &low)
		require.NoError(t, err)
		assert.Equal(t, models.SideLow, *updated.ManualResult)
	})

	t.Run("finished round is rejected", func(t *testing.T) {
		factory := new(MockUnitOfWorkFactory)
		uow := NewMockUnitOfWork()
		expectTransaction(factory, uow, ctx, false)
		svc := newTestRoundService(factory, new(MockOutcomeResolver))

		high := models.SideHigh
		uow.RoundRepo.On("SetManualResult", ctx, int64(3), &high).Return(false, nil)
		uow.RoundRepo.On("GetByID", ctx, int64(3)).Return(finishedRound(3, 1, 1, 1), nil)

		_, err := svc.SetManualResult(ctx, 3, &high)
		assert.ErrorIs(t, err, ErrAlreadySettled)
	})

	t.Run("invalid side", func(t *testing.T) {
		factory := new(MockUnitOfWorkFactory)
		svc := newTestRoundService(factory, new(MockOutcomeResolver))

		bad := models.Side("middle")
		_, err := svc.SetManualResult(ctx, 3, &bad)
		assert.ErrorIs(t, err, ErrInvalidSide)
		factory.AssertNotCalled(t, "Create")
	})
}

func TestRoundService_UpdateAutoControl(t *testing.T) {
	ctx := context.Background()

	for _, percent := range []int{-1, 101} {
		factory := new(MockUnitOfWorkFactory)
		svc := newTestRoundService(factory, new(MockOutcomeResolver))

		_, err := svc.UpdateAutoControl(ctx, true, percent)
		assert.ErrorIs(t, err, ErrResolverConfigInvalid)
		factory.AssertNotCalled(t, "Create")
	}

	factory := new(MockUnitOfWorkFactory)
	uow := NewMockUnitOfWork()
	expectTransaction(factory, uow, ctx, true)
	svc := newTestRoundService(factory, new(MockOutcomeResolver))

	uow.SettingsRepo.On("Update", ctx, &models.GameSettings{AutoControlEnabled: true, AutoLosePercent: 100}).Return(nil)

	settings, err := svc.UpdateAutoControl(ctx, true, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, settings.AutoLosePercent)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ErrAlreadySettled))
	assert.False(t, IsRetryable(ErrRoundAlreadyActive))
	assert.True(t, IsRetryable(errors.New("connection refused")))
}
