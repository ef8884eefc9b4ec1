package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taixiu/events"
	"taixiu/models"
)

var testMultiplier = decimal.RequireFromString("1.95")

func finishedRound(id int64, d1, d2, d3 int) *models.Round {
	outcome, _ := models.NewOutcome(d1, d2, d3)
	return &models.Round{
		ID:          id,
		RoundNumber: id,
		Status:      models.RoundStatusFinished,
		Outcome:     outcome,
	}
}

func TestPayout(t *testing.T) {
	tests := []struct {
		name       string
		amount     int64
		side       models.Side
		result     models.Side
		wantPayout int64
		wantWin    bool
	}{
		{"winner 50.00", 5000, models.SideHigh, models.SideHigh, 9750, true},
		{"loser", 3000, models.SideLow, models.SideHigh, 0, false},
		{"smallest unit rounds down", 1, models.SideLow, models.SideLow, 1, true},
		{"0.03 rounds down to 0.05", 3, models.SideLow, models.SideLow, 5, true},
		{"0.10 pays 0.19", 10, models.SideHigh, models.SideHigh, 19, true},
		{"1.01 pays 1.96", 101, models.SideHigh, models.SideHigh, 196, true},
		{"12.34 pays 24.06", 1234, models.SideHigh, models.SideHigh, 2406, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bet := &models.Bet{Amount: tt.amount, Side: tt.side}
			payout, isWin := Payout(bet, tt.result, testMultiplier)
			assert.Equal(t, tt.wantPayout, payout)
			assert.Equal(t, tt.wantWin, isWin)
		})
	}
}

func TestSettlementService_SettleRound_WinnerAndLoser(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewSettlementService(new(MockUnitOfWorkFactory), testMultiplier)

	round := finishedRound(7, 4, 4, 4)
	bets := []*models.Bet{
		{ID: 1, RoundID: 7, TelegramID: 100, Side: models.SideHigh, Amount: 5000},
		{ID: 2, RoundID: 7, TelegramID: 200, Side: models.SideLow, Amount: 3000},
	}

	uow.BetRepo.On("GetUnsettledByRoundForUpdate", ctx, int64(7)).Return(bets, nil)
	uow.BetRepo.On("MarkSettled", ctx, int64(1), int64(9750), true).Return(true, nil)
	uow.BetRepo.On("MarkSettled", ctx, int64(2), int64(0), false).Return(true, nil)
	uow.UserRepo.On("AddBalance", ctx, int64(100), int64(9750)).Return(int64(14750), nil)
	uow.BalanceHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TelegramID == 100 &&
			h.BalanceBefore == 5000 &&
			h.BalanceAfter == 14750 &&
			h.ChangeAmount == 9750 &&
			h.TransactionType == models.TransactionTypeBetPayout &&
			*h.RelatedID == 1 &&
			*h.RelatedType == models.RelatedTypeBet
	})).Return(nil)

	result, err := svc.SettleRound(ctx, uow, round)

	require.NoError(t, err)
	assert.Len(t, result.Settled, 2)
	assert.Equal(t, int64(8000), result.TotalStaked)
	assert.Equal(t, int64(9750), result.TotalPaidOut)
	assert.Equal(t, 1, result.WinnerCount)
	assert.Equal(t, 1, result.LoserCount)
	assert.Zero(t, result.Skipped)

	// The loser's stake was already debited, so no ledger entry for them
	uow.UserRepo.AssertNotCalled(t, "AddBalance", ctx, int64(200), mock.Anything)
	assert.Len(t, uow.Publisher.Events(events.EventTypeBalanceChange), 1)
	uow.AssertRepositories(t)
}

func TestSettlementService_SettleRound_SkipsAlreadySettledBet(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewSettlementService(new(MockUnitOfWorkFactory), testMultiplier)

	round := finishedRound(3, 1, 2, 3)
	bets := []*models.Bet{
		{ID: 10, RoundID: 3, TelegramID: 100, Side: models.SideLow, Amount: 1000},
	}

	uow.BetRepo.On("GetUnsettledByRoundForUpdate", ctx, int64(3)).Return(bets, nil)
	uow.BetRepo.On("MarkSettled", ctx, int64(10), int64(1950), true).Return(false, nil)

	result, err := svc.SettleRound(ctx, uow, round)

	require.NoError(t, err)
	assert.Empty(t, result.Settled)
	assert.Equal(t, 1, result.Skipped)
	uow.UserRepo.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything, mock.Anything)
	uow.AssertRepositories(t)
}

func TestSettlementService_SettleRound_RequiresOutcome(t *testing.T) {
	uow := NewMockUnitOfWork()
	svc := NewSettlementService(new(MockUnitOfWorkFactory), testMultiplier)

	_, err := svc.SettleRound(context.Background(), uow, &models.Round{ID: 5, Status: models.RoundStatusRolling})

	assert.ErrorIs(t, err, ErrRoundNotResolved)
	uow.BetRepo.AssertNotCalled(t, "GetUnsettledByRoundForUpdate", mock.Anything, mock.Anything)
}

func TestSettlementService_SettleRound_CreditFailureAborts(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	svc := NewSettlementService(new(MockUnitOfWorkFactory), testMultiplier)

	round := finishedRound(4, 6, 6, 6)
	bets := []*models.Bet{
		{ID: 1, RoundID: 4, TelegramID: 100, Side: models.SideHigh, Amount: 100},
	}

	uow.BetRepo.On("GetUnsettledByRoundForUpdate", ctx, int64(4)).Return(bets, nil)
	uow.BetRepo.On("MarkSettled", ctx, int64(1), int64(195), true).Return(true, nil)
	uow.UserRepo.On("AddBalance", ctx, int64(100), int64(195)).Return(int64(0), errors.New("connection reset"))

	result, err := svc.SettleRound(ctx, uow, round)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "failed to credit payout for bet 1")
}

func TestSettlementService_Settle_OwnTransaction(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	factory := new(MockUnitOfWorkFactory)
	svc := NewSettlementService(factory, testMultiplier)

	factory.On("Create").Return(uow)
	uow.On("Begin", ctx).Return(nil)
	uow.On("Commit").Return(nil)
	uow.On("Rollback").Return(nil)

	round := finishedRound(9, 1, 1, 1)
	uow.RoundRepo.On("GetByIDForUpdate", ctx, int64(9)).Return(round, nil)
	uow.BetRepo.On("GetUnsettledByRoundForUpdate", ctx, int64(9)).Return([]*models.Bet{}, nil)

	result, err := svc.Settle(ctx, 9)

	require.NoError(t, err)
	assert.Empty(t, result.Settled)
	factory.AssertExpectations(t)
	uow.AssertExpectations(t)
	uow.AssertRepositories(t)
}

func TestSettlementService_Settle_RoundNotFound(t *testing.T) {
	ctx := context.Background()
	uow := NewMockUnitOfWork()
	factory := new(MockUnitOfWorkFactory)
	svc := NewSettlementService(factory, testMultiplier)

	factory.On("Create").Return(uow)
	uow.On("Begin", ctx).Return(nil)
	uow.On("Rollback").Return(nil)
	uow.RoundRepo.On("GetByIDForUpdate", ctx, int64(404)).Return(nil, nil)

	_, err := svc.Settle(ctx, 404)

	assert.ErrorIs(t, err, ErrRoundNotFound)
	uow.AssertNotCalled(t, "Commit")
}
