package service

import (
	"context"
	"time"

	"taixiu/models"

	"github.com/stretchr/testify/mock"
)

// MockUserService is a mock implementation of UserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetOrCreateUser(ctx context.Context, profile models.TelegramProfile) (*models.User, error) {
	args := m.Called(ctx, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserService) SetUserLocked(ctx context.Context, telegramID int64, locked bool) (*models.User, error) {
	args := m.Called(ctx, telegramID, locked)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) IsAdmin(user *models.User) bool {
	args := m.Called(user)
	return args.Bool(0)
}

func (m *MockUserService) GetBalanceHistory(ctx context.Context, telegramID int64, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, telegramID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockRoundService is a mock implementation of RoundService
type MockRoundService struct {
	mock.Mock
}

func (m *MockRoundService) GetCurrentRound(ctx context.Context) (*models.Round, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundService) GetRound(ctx context.Context, roundID int64) (*models.Round, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundService) GetRecentRounds(ctx context.Context, limit int) ([]*models.Round, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Round), args.Error(1)
}

func (m *MockRoundService) OpenRound(ctx context.Context) (*models.Round, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundService) LockRound(ctx context.Context, roundID int64) (*models.Round, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundService) CompleteRound(ctx context.Context, roundID int64) (*models.SettlementResult, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SettlementResult), args.Error(1)
}

func (m *MockRoundService) TriggerRoll(ctx context.Context, roundID int64) (*models.Round, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundService) SetManualResult(ctx context.Context, roundID int64, side *models.Side) (*models.Round, error) {
	args := m.Called(ctx, roundID, side)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundService) GetSettings(ctx context.Context) (*models.GameSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GameSettings), args.Error(1)
}

func (m *MockRoundService) UpdateAutoControl(ctx context.Context, enabled bool, losePercent int) (*models.GameSettings, error) {
	args := m.Called(ctx, enabled, losePercent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GameSettings), args.Error(1)
}

// MockBettingService is a mock implementation of BettingService
type MockBettingService struct {
	mock.Mock
}

func (m *MockBettingService) PlaceBet(ctx context.Context, telegramID int64, roundID int64, side models.Side, amount int64) (*models.Bet, error) {
	args := m.Called(ctx, telegramID, roundID, side, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bet), args.Error(1)
}

func (m *MockBettingService) ListBets(ctx context.Context, roundID int64) ([]*models.BetWithUser, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BetWithUser), args.Error(1)
}

// MockGiftcodeService is a mock implementation of GiftcodeService
type MockGiftcodeService struct {
	mock.Mock
}

func (m *MockGiftcodeService) CreateGiftcode(ctx context.Context, code string, amount int64, maxUses int, expiresAt *time.Time) (*models.Giftcode, error) {
	args := m.Called(ctx, code, amount, maxUses, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Giftcode), args.Error(1)
}

func (m *MockGiftcodeService) ListGiftcodes(ctx context.Context) ([]*models.Giftcode, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Giftcode), args.Error(1)
}

func (m *MockGiftcodeService) DeleteGiftcode(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGiftcodeService) Redeem(ctx context.Context, telegramID int64, code string) (*models.RedeemResult, error) {
	args := m.Called(ctx, telegramID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RedeemResult), args.Error(1)
}
