package service

import (
	"context"
	"sync"
	"time"

	"taixiu/events"
	"taixiu/models"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, profile models.TelegramProfile, initialBalance int64, isAdmin bool) (*models.User, error) {
	args := m.Called(ctx, profile, initialBalance, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, profile models.TelegramProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockUserRepository) AddBalance(ctx context.Context, telegramID int64, amount int64) (int64, error) {
	args := m.Called(ctx, telegramID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) DeductBalance(ctx context.Context, telegramID int64, amount int64) (int64, error) {
	args := m.Called(ctx, telegramID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) SetLocked(ctx context.Context, telegramID int64, locked bool) error {
	args := m.Called(ctx, telegramID, locked)
	return args.Error(0)
}

func (m *MockUserRepository) GetAll(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByUser(ctx context.Context, telegramID int64, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, telegramID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

func (m *MockBalanceHistoryRepository) GetByDateRange(ctx context.Context, telegramID int64, from, to time.Time) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, telegramID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockRoundRepository is a mock implementation of RoundRepository
type MockRoundRepository struct {
	mock.Mock
}

func (m *MockRoundRepository) Create(ctx context.Context, round *models.Round) error {
	args := m.Called(ctx, round)
	return args.Error(0)
}

func (m *MockRoundRepository) GetByID(ctx context.Context, id int64) (*models.Round, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Round, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundRepository) GetByIDForShare(ctx context.Context, id int64) (*models.Round, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundRepository) GetActive(ctx context.Context) (*models.Round, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundRepository) GetLatestFinished(ctx context.Context) (*models.Round, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundRepository) GetRecentFinished(ctx context.Context, limit int) ([]*models.Round, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Round), args.Error(1)
}

func (m *MockRoundRepository) Lock(ctx context.Context, id int64, settings *models.GameSettings) (bool, error) {
	args := m.Called(ctx, id, settings)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoundRepository) Finish(ctx context.Context, id int64, outcome *models.Outcome, policy models.ResolutionPolicy) (bool, error) {
	args := m.Called(ctx, id, outcome, policy)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoundRepository) SetManualResult(ctx context.Context, id int64, side *models.Side) (bool, error) {
	args := m.Called(ctx, id, side)
	return args.Bool(0), args.Error(1)
}

// MockBetRepository is a mock implementation of BetRepository
type MockBetRepository struct {
	mock.Mock
}

func (m *MockBetRepository) Create(ctx context.Context, bet *models.Bet) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockBetRepository) GetByRound(ctx context.Context, roundID int64) ([]*models.BetWithUser, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BetWithUser), args.Error(1)
}

func (m *MockBetRepository) GetUnsettledByRoundForUpdate(ctx context.Context, roundID int64) ([]*models.Bet, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

func (m *MockBetRepository) MarkSettled(ctx context.Context, betID int64, payout int64, isWin bool) (bool, error) {
	args := m.Called(ctx, betID, payout, isWin)
	return args.Bool(0), args.Error(1)
}

func (m *MockBetRepository) GetExposure(ctx context.Context, roundID int64) (models.Exposure, error) {
	args := m.Called(ctx, roundID)
	return args.Get(0).(models.Exposure), args.Error(1)
}

func (m *MockBetRepository) GetByUser(ctx context.Context, telegramID int64, limit int) ([]*models.Bet, error) {
	args := m.Called(ctx, telegramID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

// MockGameSettingsRepository is a mock implementation of GameSettingsRepository
type MockGameSettingsRepository struct {
	mock.Mock
}

func (m *MockGameSettingsRepository) Get(ctx context.Context) (*models.GameSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GameSettings), args.Error(1)
}

func (m *MockGameSettingsRepository) Update(ctx context.Context, settings *models.GameSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

// MockGiftcodeRepository is a mock implementation of GiftcodeRepository
type MockGiftcodeRepository struct {
	mock.Mock
}

func (m *MockGiftcodeRepository) Create(ctx context.Context, giftcode *models.Giftcode) error {
	args := m.Called(ctx, giftcode)
	return args.Error(0)
}

func (m *MockGiftcodeRepository) GetByCodeForUpdate(ctx context.Context, code string) (*models.Giftcode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Giftcode), args.Error(1)
}

func (m *MockGiftcodeRepository) GetAll(ctx context.Context) ([]*models.Giftcode, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Giftcode), args.Error(1)
}

func (m *MockGiftcodeRepository) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockGiftcodeRepository) IncrementUses(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGiftcodeRepository) RecordRedemption(ctx context.Context, telegramID int64, giftcodeID int64) (bool, error) {
	args := m.Called(ctx, telegramID, giftcodeID)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher records published events instead of asserting calls,
// since most operations publish a balance change alongside their own event
type MockEventPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// Events returns the published events of the given type in publish order
func (m *MockEventPublisher) Events(eventType events.EventType) []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []events.Event
	for _, e := range m.events {
		if e.Type() == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Begin, Commit and
// Rollback are asserted through testify; repositories are plain mocks.
type MockUnitOfWork struct {
	mock.Mock
	UserRepo           *MockUserRepository
	BalanceHistoryRepo *MockBalanceHistoryRepository
	RoundRepo          *MockRoundRepository
	BetRepo            *MockBetRepository
	SettingsRepo       *MockGameSettingsRepository
	GiftcodeRepo       *MockGiftcodeRepository
	Publisher          *MockEventPublisher
}

// NewMockUnitOfWork returns a unit of work with fresh repository mocks
func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		UserRepo:           new(MockUserRepository),
		BalanceHistoryRepo: new(MockBalanceHistoryRepository),
		RoundRepo:          new(MockRoundRepository),
		BetRepo:            new(MockBetRepository),
		SettingsRepo:       new(MockGameSettingsRepository),
		GiftcodeRepo:       new(MockGiftcodeRepository),
		Publisher:          new(MockEventPublisher),
	}
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository {
	return m.UserRepo
}

func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository {
	return m.BalanceHistoryRepo
}

func (m *MockUnitOfWork) RoundRepository() RoundRepository {
	return m.RoundRepo
}

func (m *MockUnitOfWork) BetRepository() BetRepository {
	return m.BetRepo
}

func (m *MockUnitOfWork) GameSettingsRepository() GameSettingsRepository {
	return m.SettingsRepo
}

func (m *MockUnitOfWork) GiftcodeRepository() GiftcodeRepository {
	return m.GiftcodeRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.Publisher
}

// AssertRepositories asserts the expectations of every repository mock
func (m *MockUnitOfWork) AssertRepositories(t mock.TestingT) {
	m.UserRepo.AssertExpectations(t)
	m.BalanceHistoryRepo.AssertExpectations(t)
	m.RoundRepo.AssertExpectations(t)
	m.BetRepo.AssertExpectations(t)
	m.SettingsRepo.AssertExpectations(t)
	m.GiftcodeRepo.AssertExpectations(t)
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockOutcomeResolver is a mock implementation of OutcomeResolver
type MockOutcomeResolver struct {
	mock.Mock
}

func (m *MockOutcomeResolver) Resolve(round *models.Round, exposure models.Exposure) (*models.Outcome, models.ResolutionPolicy) {
	args := m.Called(round, exposure)
	return args.Get(0).(*models.Outcome), args.Get(1).(models.ResolutionPolicy)
}
