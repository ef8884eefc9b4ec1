package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"taixiu/config"
	"taixiu/models"
)

// userService implements the UserService interface
type userService struct {
	uowFactory UnitOfWorkFactory
	config     *config.Config
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory, cfg *config.Config) UserService {
	return &userService{
		uowFactory: uowFactory,
		config:     cfg,
	}
}

// GetOrCreateUser retrieves an existing user or creates a new one with the starting balance
func (s *userService) GetOrCreateUser(ctx context.Context, profile models.TelegramProfile) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByTelegramID(ctx, profile.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	if user != nil {
		if profileChanged(user, profile) {
			if err := uow.UserRepository().UpdateProfile(ctx, profile); err != nil {
				return nil, fmt.Errorf("failed to update profile: %w", err)
			}
			user.Username = profile.Username
			user.FirstName = profile.FirstName
			user.LastName = profile.LastName
			if err := uow.Commit(); err != nil {
				return nil, fmt.Errorf("failed to commit transaction: %w", err)
			}
		}
		return user, nil
	}

	isAdmin := s.config.IsAdminID(profile.TelegramID)
	user, err = uow.UserRepository().Create(ctx, profile, s.config.StartingBalance, isAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if user == nil {
		// A concurrent request registered the user first and already recorded the initial balance
		user, err = uow.UserRepository().GetByTelegramID(ctx, profile.TelegramID)
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("%w: %d", ErrUserNotFound, profile.TelegramID)
		}
		return user, nil
	}

	if s.config.StartingBalance > 0 {
		history := &models.BalanceHistory{
			TelegramID:      profile.TelegramID,
			BalanceBefore:   0,
			BalanceAfter:    s.config.StartingBalance,
			ChangeAmount:    s.config.StartingBalance,
			TransactionType: models.TransactionTypeInitial,
			TransactionMetadata: map[string]any{
				"username": profile.Username,
			},
		}
		if err := RecordBalanceChange(ctx, uow, history); err != nil {
			return nil, fmt.Errorf("failed to record initial balance: %w", err)
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"telegram_id": user.TelegramID,
		"username":    user.Username,
		"is_admin":    user.IsAdmin,
	}).Info("Created new user")

	return user, nil
}

func profileChanged(user *models.User, profile models.TelegramProfile) bool {
	if profile.Username == "" && profile.FirstName == "" && profile.LastName == "" {
		return false
	}
	return user.Username != profile.Username ||
		user.FirstName != profile.FirstName ||
		user.LastName != profile.LastName
}

func (s *userService) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, telegramID)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	users, err := uow.UserRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

func (s *userService) SetUserLocked(ctx context.Context, telegramID int64, locked bool) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, telegramID)
	}

	if err := uow.UserRepository().SetLocked(ctx, telegramID, locked); err != nil {
		return nil, fmt.Errorf("failed to update lock: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	user.IsLocked = locked

	log.WithFields(log.Fields{
		"telegram_id": telegramID,
		"locked":      locked,
	}).Info("User lock updated")

	return user, nil
}

// IsAdmin combines the stored flag with the configured admin list
func (s *userService) IsAdmin(user *models.User) bool {
	if user == nil {
		return false
	}
	return user.IsAdmin || s.config.IsAdminID(user.TelegramID)
}

func (s *userService) GetBalanceHistory(ctx context.Context, telegramID int64, limit int) ([]*models.BalanceHistory, error) {
	if limit <= 0 {
		limit = 20
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	history, err := uow.BalanceHistoryRepository().GetByUser(ctx, telegramID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance history: %w", err)
	}
	return history, nil
}
