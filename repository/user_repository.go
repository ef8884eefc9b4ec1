package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"taixiu/database"
	"taixiu/models"
	"taixiu/service"
)

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

const userColumns = `telegram_id, username, first_name, last_name, balance, is_admin, is_locked, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Balance,
		&user.IsAdmin,
		&user.IsLocked,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByTelegramID retrieves a user by their Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, telegramID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram ID %d: %w", telegramID, err)
	}

	return user, nil
}

// Create creates a new user with the initial balance.
// Returns nil, nil when the user already exists.
func (r *UserRepository) Create(ctx context.Context, profile models.TelegramProfile, initialBalance int64, isAdmin bool) (*models.User, error) {
	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name, balance, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (telegram_id) DO NOTHING
		RETURNING ` + userColumns

	user, err := scanUser(r.q.QueryRow(ctx, query,
		profile.TelegramID,
		profile.Username,
		profile.FirstName,
		profile.LastName,
		initialBalance,
		isAdmin,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user with telegram ID %d: %w", profile.TelegramID, err)
	}

	return user, nil
}

// UpdateProfile refreshes the display fields
func (r *UserRepository) UpdateProfile(ctx context.Context, profile models.TelegramProfile) error {
	query := `
		UPDATE users
		SET username = $1, first_name = $2, last_name = $3, updated_at = NOW()
		WHERE telegram_id = $4
	`

	result, err := r.q.Exec(ctx, query, profile.Username, profile.FirstName, profile.LastName, profile.TelegramID)
	if err != nil {
		return fmt.Errorf("failed to update profile for user %d: %w", profile.TelegramID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", service.ErrUserNotFound, profile.TelegramID)
	}

	return nil
}

// AddBalance adds to a user's balance atomically
func (r *UserRepository) AddBalance(ctx context.Context, telegramID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE users
		SET balance = balance + $1, updated_at = NOW()
		WHERE telegram_id = $2
		RETURNING balance
	`

	var newBalance int64
	err := r.q.QueryRow(ctx, query, amount, telegramID).Scan(&newBalance)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("%w: %d", service.ErrUserNotFound, telegramID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to add balance for user %d: %w", telegramID, err)
	}

	return newBalance, nil
}

// DeductBalance deducts from a user's balance atomically, failing if insufficient funds.
// The balance check and the update are one statement, so concurrent debits re-evaluate
// the condition against the committed balance.
func (r *UserRepository) DeductBalance(ctx context.Context, telegramID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE users
		SET balance = balance - $1, updated_at = NOW()
		WHERE telegram_id = $2 AND balance >= $1
		RETURNING balance
	`

	var newBalance int64
	err := r.q.QueryRow(ctx, query, amount, telegramID).Scan(&newBalance)
	if err == nil {
		return newBalance, nil
	}
	if err != pgx.ErrNoRows {
		return 0, fmt.Errorf("failed to deduct balance for user %d: %w", telegramID, err)
	}

	// Check if user exists or has insufficient balance
	user, err := r.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return 0, fmt.Errorf("failed to check user: %w", err)
	}
	if user == nil {
		return 0, fmt.Errorf("%w: %d", service.ErrUserNotFound, telegramID)
	}
	return 0, fmt.Errorf("%w: have %s, need %s", service.ErrInsufficientFunds,
		models.FormatAmount(user.Balance), models.FormatAmount(amount))
}

// SetLocked locks or unlocks a user
func (r *UserRepository) SetLocked(ctx context.Context, telegramID int64, locked bool) error {
	query := `
		UPDATE users
		SET is_locked = $1, updated_at = NOW()
		WHERE telegram_id = $2
	`

	result, err := r.q.Exec(ctx, query, locked, telegramID)
	if err != nil {
		return fmt.Errorf("failed to update lock for user %d: %w", telegramID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", service.ErrUserNotFound, telegramID)
	}

	return nil
}

// GetAll returns all users
func (r *UserRepository) GetAll(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}
