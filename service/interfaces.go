package service

import (
	"context"
	"time"

	"taixiu/events"
	"taixiu/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByTelegramID retrieves a user by their Telegram ID, nil when absent
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)

	// Create inserts a new user with the initial balance, nil when the user already exists
	Create(ctx context.Context, profile models.TelegramProfile, initialBalance int64, isAdmin bool) (*models.User, error)

	// UpdateProfile refreshes the display fields sent by the client
	UpdateProfile(ctx context.Context, profile models.TelegramProfile) error

	// AddBalance adds to a user's balance atomically and returns the new balance
	AddBalance(ctx context.Context, telegramID int64, amount int64) (int64, error)

	// DeductBalance deducts from a user's balance atomically, failing with ErrInsufficientFunds
	DeductBalance(ctx context.Context, telegramID int64, amount int64) (int64, error)

	// SetLocked locks or unlocks a user
	SetLocked(ctx context.Context, telegramID int64, locked bool) error

	// GetAll returns all users, newest first
	GetAll(ctx context.Context) ([]*models.User, error)
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByUser returns balance history for a specific user
	GetByUser(ctx context.Context, telegramID int64, limit int) ([]*models.BalanceHistory, error)

	// GetByDateRange returns balance history within a date range
	GetByDateRange(ctx context.Context, telegramID int64, from, to time.Time) ([]*models.BalanceHistory, error)
}

// RoundRepository defines the interface for round data access
type RoundRepository interface {
	// Create inserts a betting round with the next round number.
	// Returns ErrRoundAlreadyActive when another round is betting or rolling.
	Create(ctx context.Context, round *models.Round) error

	GetByID(ctx context.Context, id int64) (*models.Round, error)

	// GetByIDForUpdate reads a round and holds an exclusive row lock until commit
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Round, error)

	// GetByIDForShare reads a round and blocks status transitions until commit
	GetByIDForShare(ctx context.Context, id int64) (*models.Round, error)

	// GetActive returns the round in betting or rolling status, nil when none
	GetActive(ctx context.Context) (*models.Round, error)

	// GetLatestFinished returns the most recently created finished round
	GetLatestFinished(ctx context.Context) (*models.Round, error)

	// GetRecentFinished returns finished rounds, newest first
	GetRecentFinished(ctx context.Context, limit int) ([]*models.Round, error)

	// Lock moves a round from betting to rolling and snapshots the resolver settings.
	// Returns false when the round was not in betting status.
	Lock(ctx context.Context, id int64, settings *models.GameSettings) (bool, error)

	// Finish writes the outcome and moves a round from rolling to finished.
	// Returns false when the round was not in rolling status.
	Finish(ctx context.Context, id int64, outcome *models.Outcome, policy models.ResolutionPolicy) (bool, error)

	// SetManualResult sets or clears the admin override on an unfinished round.
	// Returns false when the round is finished or missing.
	SetManualResult(ctx context.Context, id int64, side *models.Side) (bool, error)
}

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Create inserts an unsettled bet
	Create(ctx context.Context, bet *models.Bet) error

	// GetByRound returns all bets of a round with bettor info, newest first
	GetByRound(ctx context.Context, roundID int64) ([]*models.BetWithUser, error)

	// GetUnsettledByRoundForUpdate returns bets with a NULL payout, locked until commit
	GetUnsettledByRoundForUpdate(ctx context.Context, roundID int64) ([]*models.Bet, error)

	// MarkSettled writes payout and is_win once. Returns false when the bet was already settled.
	MarkSettled(ctx context.Context, betID int64, payout int64, isWin bool) (bool, error)

	// GetExposure sums the stake on each side of a round
	GetExposure(ctx context.Context, roundID int64) (models.Exposure, error)

	// GetByUser returns the most recent bets of a user
	GetByUser(ctx context.Context, telegramID int64, limit int) ([]*models.Bet, error)
}

// GameSettingsRepository defines the interface for the resolver configuration row
type GameSettingsRepository interface {
	Get(ctx context.Context) (*models.GameSettings, error)
	Update(ctx context.Context, settings *models.GameSettings) error
}

// GiftcodeRepository defines the interface for giftcode data access
type GiftcodeRepository interface {
	Create(ctx context.Context, giftcode *models.Giftcode) error
	GetByCodeForUpdate(ctx context.Context, code string) (*models.Giftcode, error)
	GetAll(ctx context.Context) ([]*models.Giftcode, error)

	// Delete removes a code; codes with redemptions are deactivated instead
	Delete(ctx context.Context, id int64) (bool, error)

	IncrementUses(ctx context.Context, id int64) error

	// RecordRedemption returns false when the user already redeemed the code
	RecordRedemption(ctx context.Context, telegramID int64, giftcodeID int64) (bool, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	RoundRepository() RoundRepository
	BetRepository() BetRepository
	GameSettingsRepository() GameSettingsRepository
	GiftcodeRepository() GiftcodeRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// UserService defines the interface for user operations
type UserService interface {
	// GetOrCreateUser retrieves an existing user or creates a new one with the starting balance
	GetOrCreateUser(ctx context.Context, profile models.TelegramProfile) (*models.User, error)

	// GetUser returns ErrUserNotFound for unknown users
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)

	// ListUsers returns all users for the admin panel
	ListUsers(ctx context.Context) ([]*models.User, error)

	// SetUserLocked locks or unlocks a user and returns the updated user
	SetUserLocked(ctx context.Context, telegramID int64, locked bool) (*models.User, error)

	// IsAdmin reports whether the user may use admin operations
	IsAdmin(user *models.User) bool

	// GetBalanceHistory returns the latest ledger entries of a user
	GetBalanceHistory(ctx context.Context, telegramID int64, limit int) ([]*models.BalanceHistory, error)
}

// RoundService defines the interface for the round lifecycle
type RoundService interface {
	// GetCurrentRound returns the active round, or the latest finished one when none is active
	GetCurrentRound(ctx context.Context) (*models.Round, error)

	GetRound(ctx context.Context, roundID int64) (*models.Round, error)

	// GetRecentRounds returns finished rounds for the history feed
	GetRecentRounds(ctx context.Context, limit int) ([]*models.Round, error)

	// OpenRound starts a new betting round
	OpenRound(ctx context.Context) (*models.Round, error)

	// LockRound closes betting. Locking a rolling round is a no-op.
	LockRound(ctx context.Context, roundID int64) (*models.Round, error)

	// CompleteRound resolves a rolling round and settles its bets in one transaction
	CompleteRound(ctx context.Context, roundID int64) (*models.SettlementResult, error)

	// TriggerRoll locks and completes a round immediately
	TriggerRoll(ctx context.Context, roundID int64) (*models.Round, error)

	// SetManualResult sets the admin override for an unfinished round, nil clears it
	SetManualResult(ctx context.Context, roundID int64, side *models.Side) (*models.Round, error)

	// GetSettings returns the auto-control configuration
	GetSettings(ctx context.Context) (*models.GameSettings, error)

	// UpdateAutoControl changes the auto-bias configuration
	UpdateAutoControl(ctx context.Context, enabled bool, losePercent int) (*models.GameSettings, error)
}

// BettingService defines the interface for the bet book
type BettingService interface {
	// PlaceBet escrows the amount and records the bet in one transaction
	PlaceBet(ctx context.Context, telegramID int64, roundID int64, side models.Side, amount int64) (*models.Bet, error)

	// ListBets returns the bets of a round with bettor info
	ListBets(ctx context.Context, roundID int64) ([]*models.BetWithUser, error)
}

// SettlementService defines the interface for paying out resolved rounds
type SettlementService interface {
	// SettleRound settles every unsettled bet of a resolved round inside the caller's unit of work
	SettleRound(ctx context.Context, uow UnitOfWork, round *models.Round) (*models.SettlementResult, error)

	// Settle settles a resolved round in its own transaction. Safe to call repeatedly.
	Settle(ctx context.Context, roundID int64) (*models.SettlementResult, error)
}

// OutcomeResolver decides the dice of a round about to finish
type OutcomeResolver interface {
	Resolve(round *models.Round, exposure models.Exposure) (*models.Outcome, models.ResolutionPolicy)
}

// GiftcodeService defines the interface for giftcode operations
type GiftcodeService interface {
	CreateGiftcode(ctx context.Context, code string, amount int64, maxUses int, expiresAt *time.Time) (*models.Giftcode, error)
	ListGiftcodes(ctx context.Context) ([]*models.Giftcode, error)
	DeleteGiftcode(ctx context.Context, id int64) error

	// Redeem credits the code amount to the user once
	Redeem(ctx context.Context, telegramID int64, code string) (*models.RedeemResult, error)
}
