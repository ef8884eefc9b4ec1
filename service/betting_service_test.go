package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taixiu/config"
	"taixiu/events"
	"taixiu/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBettingService(factory UnitOfWorkFactory) *bettingService {
	cfg := config.NewTestConfig()
	cfg.MinBet = 100
	cfg.MaxBet = 1000000
	svc := NewBettingService(factory, cfg).(*bettingService)
	svc.now = func() time.Time { return testNow }
	return svc
}

func bettingRound() *models.Round {
	return &models.Round{
		ID:            11,
		RoundNumber:   11,
		Status:        models.RoundStatusBetting,
		BettingEndsAt: testNow.Add(20 * time.Second),
	}
}

func expectTransaction(factory *MockUnitOfWorkFactory, uow *MockUnitOfWork, ctx context.Context, commit bool) {
	factory.On("Create").Return(uow)
	uow.On("Begin", ctx).Return(nil)
	uow.On("Rollback").Return(nil)
	if commit {
		uow.On("Commit").Return(nil)
	}
}

func TestBettingService_PlaceBet_Success(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := NewMockUnitOfWork()
	expectTransaction(factory, uow, ctx, true)
	svc := newTestBettingService(factory)

	user := &models.User{TelegramID: 100, Username: "alice", Balance: 10000}
	uow.UserRepo.On("GetByTelegramID", ctx, int64(100)).Return(user, nil)
	uow.RoundRepo.On("GetByIDForShare", ctx, int64(11)).Return(bettingRound(), nil)
	uow.BetRepo.On("Create", ctx, mock.MatchedBy(func(b *models.Bet) bool {
		return b.RoundID == 11 && b.TelegramID == 100 && b.Side == models.SideHigh && b.Amount == 5000
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Bet).ID = 55
	}).Return(nil)
	uow.UserRepo.On("DeductBalance", ctx, int64(100), int64(5000)).Return(int64(5000), nil)
	uow.BalanceHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TelegramID == 100 &&
			h.BalanceBefore == 10000 &&
			h.BalanceAfter == 5000 &&
			h.ChangeAmount == -5000 &&
			h.TransactionType == models.TransactionTypeBetPlaced &&
			*h.RelatedID == 55
	})).Return(nil)

	bet, err := svc.PlaceBet(ctx, 100, 11, models.SideHigh, 5000)

	require.NoError(t, err)
	assert.Equal(t, int64(55), bet.ID)
	assert.Nil(t, bet.Payout)

	placed := uow.Publisher.Events(events.EventTypeBetPlaced)
	require.Len(t, placed, 1)
	assert.Equal(t, "@alice", placed[0].(events.BetPlacedEvent).DisplayName)

	factory.AssertExpectations(t)
	uow.AssertExpectations(t)
	uow.AssertRepositories(t)
}

func TestBettingService_PlaceBet_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := NewMockUnitOfWork()
	expectTransaction(factory, uow, ctx, false)
	svc := newTestBettingService(factory)

	uow.UserRepo.On("GetByTelegramID", ctx, int64(100)).Return(&models.User{TelegramID: 100, Balance: 1000}, nil)
	uow.RoundRepo.On("GetByIDForShare", ctx, int64(11)).Return(bettingRound(), nil)
	uow.BetRepo.On("Create", ctx, mock.Anything).Return(nil)
	uow.UserRepo.On("DeductBalance", ctx, int64(100), int64(5000)).Return(int64(0), ErrInsufficientFunds)

	bet, err := svc.PlaceBet(ctx, 100, 11, models.SideLow, 5000)

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Nil(t, bet)
	uow.AssertNotCalled(t, "Commit")
	uow.BalanceHistoryRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	assert.Empty(t, uow.Publisher.Events(events.EventTypeBetPlaced))
}

func TestBettingService_PlaceBet_RoundNotAcceptingBets(t *testing.T) {
	tests := []struct {
		name  string
		round *models.Round
	}{
		{
			name:  "rolling",
			round: &models.Round{ID: 11, Status: models.RoundStatusRolling, BettingEndsAt: testNow.Add(time.Minute)},
		},
		{
			name:  "finished",
			round: &models.Round{ID: 11, Status: models.RoundStatusFinished, BettingEndsAt: testNow.Add(-time.Minute)},
		},
		{
			name:  "window elapsed but not yet locked",
			round: &models.Round{ID: 11, Status: models.RoundStatusBetting, BettingEndsAt: testNow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			factory := new(MockUnitOfWorkFactory)
			uow := NewMockUnitOfWork()
			expectTransaction(factory, uow, ctx, false)
			svc := newTestBettingService(factory)

			uow.UserRepo.On("GetByTelegramID", ctx, int64(100)).Return(&models.User{TelegramID: 100, Balance: 10000}, nil)
			uow.RoundRepo.On("GetByIDForShare", ctx, int64(11)).Return(tt.round, nil)

			_, err := svc.PlaceBet(ctx, 100, 11, models.SideHigh, 500)

			assert.ErrorIs(t, err, ErrRoundNotAcceptingBets)
			uow.BetRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			uow.UserRepo.AssertNotCalled(t, "DeductBalance", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestBettingService_PlaceBet_Validation(t *testing.T) {
	tests := []struct {
		name    string
		side    models.Side
		amount  int64
		wantErr error
	}{
		{"zero amount", models.SideHigh, 0, ErrInvalidAmount},
		{"negative amount", models.SideHigh, -100, ErrInvalidAmount},
		{"below minimum", models.SideLow, 99, ErrInvalidAmount},
		{"above maximum", models.SideLow, 1000001, ErrInvalidAmount},
		{"unknown side", models.Side("triple"), 500, ErrInvalidSide},
		{"empty side", models.Side(""), 500, ErrInvalidSide},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := new(MockUnitOfWorkFactory)
			svc := newTestBettingService(factory)

			_, err := svc.PlaceBet(context.Background(), 100, 11, tt.side, tt.amount)

			assert.ErrorIs(t, err, tt.wantErr)
			// Validation fails before any transaction is opened
			factory.AssertNotCalled(t, "Create")
		})
	}
}

func TestBettingService_PlaceBet_LockedUser(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := NewMockUnitOfWork()
	expectTransaction(factory, uow, ctx, false)
	svc := newTestBettingService(factory)

	uow.UserRepo.On("GetByTelegramID", ctx, int64(100)).Return(&models.User{TelegramID: 100, Balance: 10000, IsLocked: true}, nil)

	_, err := svc.PlaceBet(ctx, 100, 11, models.SideHigh, 500)

	assert.ErrorIs(t, err, ErrUserLocked)
	uow.RoundRepo.AssertNotCalled(t, "GetByIDForShare", mock.Anything, mock.Anything)
}

func TestBettingService_PlaceBet_UnknownUserAndRound(t *testing.T) {
	ctx := context.Background()

	t.Run("user", func(t *testing.T) {
		factory := new(MockUnitOfWorkFactory)
		uow := NewMockUnitOfWork()
		expectTransaction(factory, uow, ctx, false)
		svc := newTestBettingService(factory)

		uow.UserRepo.On("GetByTelegramID", ctx, int64(100)).Return(nil, nil)

		_, err := svc.PlaceBet(ctx, 100, 11, models.SideHigh, 500)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("round", func(t *testing.T) {
		factory := new(MockUnitOfWorkFactory)
		uow := NewMockUnitOfWork()
		expectTransaction(factory, uow, ctx, false)
		svc := newTestBettingService(factory)

		uow.UserRepo.On("GetByTelegramID", ctx, int64(100)).Return(&models.User{TelegramID: 100}, nil)
		uow.RoundRepo.On("GetByIDForShare", ctx, int64(11)).Return(nil, nil)

		_, err := svc.PlaceBet(ctx, 100, 11, models.SideHigh, 500)
		assert.ErrorIs(t, err, ErrRoundNotFound)
	})
}

func TestBettingService_ListBets(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := NewMockUnitOfWork()
	expectTransaction(factory, uow, ctx, false)
	svc := newTestBettingService(factory)

	bets := []*models.BetWithUser{
		{Bet: models.Bet{ID: 2, RoundID: 11, Side: models.SideLow, Amount: 300}, FirstName: "Bob"},
		{Bet: models.Bet{ID: 1, RoundID: 11, Side: models.SideHigh, Amount: 500}, Username: "alice"},
	}
	uow.RoundRepo.On("GetByID", ctx, int64(11)).Return(bettingRound(), nil)
	uow.BetRepo.On("GetByRound", ctx, int64(11)).Return(bets, nil)

	result, err := svc.ListBets(ctx, 11)

	require.NoError(t, err)
	assert.Len(t, result, 2)
	assert.Equal(t, "Bob", result[0].DisplayName())
}
