package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"taixiu/database"
	"taixiu/models"
)

// BetRepository implements the BetRepository interface
type BetRepository struct {
	q queryable
}

// NewBetRepository creates a new bet repository
func NewBetRepository(db *database.DB) *BetRepository {
	return &BetRepository{q: db.Pool}
}

// newBetRepositoryWithTx creates a new bet repository with a transaction
func newBetRepositoryWithTx(tx queryable) *BetRepository {
	return &BetRepository{q: tx}
}

const betColumns = `b.id, b.round_id, b.telegram_id, b.side::text, b.amount, b.payout, b.is_win, b.created_at, b.settled_at`

func scanBet(row pgx.Row, extra ...any) (*models.Bet, error) {
	var bet models.Bet
	var side string

	dest := append([]any{
		&bet.ID,
		&bet.RoundID,
		&bet.TelegramID,
		&side,
		&bet.Amount,
		&bet.Payout,
		&bet.IsWin,
		&bet.CreatedAt,
		&bet.SettledAt,
	}, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	bet.Side = models.Side(side)
	return &bet, nil
}

// Create inserts an unsettled bet
func (r *BetRepository) Create(ctx context.Context, bet *models.Bet) error {
	query := `
		INSERT INTO bets (round_id, telegram_id, side, amount)
		VALUES ($1, $2, $3::bet_side, $4)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query,
		bet.RoundID,
		bet.TelegramID,
		string(bet.Side),
		bet.Amount,
	).Scan(&bet.ID, &bet.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create bet: %w", err)
	}

	return nil
}

// GetByRound returns the bets of a round joined with bettor names
func (r *BetRepository) GetByRound(ctx context.Context, roundID int64) ([]*models.BetWithUser, error) {
	query := `
		SELECT ` + betColumns + `, u.username, u.first_name, u.last_name
		FROM bets b
		JOIN users u ON u.telegram_id = b.telegram_id
		WHERE b.round_id = $1
		ORDER BY b.created_at DESC, b.id DESC`

	rows, err := r.q.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bets for round %d: %w", roundID, err)
	}
	defer rows.Close()

	var bets []*models.BetWithUser
	for rows.Next() {
		var withUser models.BetWithUser
		bet, err := scanBet(rows, &withUser.Username, &withUser.FirstName, &withUser.LastName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		withUser.Bet = *bet
		bets = append(bets, &withUser)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bets: %w", err)
	}

	return bets, nil
}

// GetUnsettledByRoundForUpdate returns bets without a payout, locked in id order
func (r *BetRepository) GetUnsettledByRoundForUpdate(ctx context.Context, roundID int64) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets b
		WHERE b.round_id = $1 AND b.payout IS NULL
		ORDER BY b.id
		FOR UPDATE`

	return r.queryBets(ctx, query, roundID)
}

// MarkSettled writes the payout unless another run already did
func (r *BetRepository) MarkSettled(ctx context.Context, betID int64, payout int64, isWin bool) (bool, error) {
	query := `
		UPDATE bets
		SET payout = $2, is_win = $3, settled_at = NOW()
		WHERE id = $1 AND payout IS NULL
	`

	result, err := r.q.Exec(ctx, query, betID, payout, isWin)
	if err != nil {
		return false, fmt.Errorf("failed to settle bet %d: %w", betID, err)
	}

	return result.RowsAffected() == 1, nil
}

// GetExposure sums the stakes on each side of a round
func (r *BetRepository) GetExposure(ctx context.Context, roundID int64) (models.Exposure, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE side = 'high'), 0)::bigint,
			COALESCE(SUM(amount) FILTER (WHERE side = 'low'), 0)::bigint
		FROM bets
		WHERE round_id = $1`

	var exposure models.Exposure
	if err := r.q.QueryRow(ctx, query, roundID).Scan(&exposure.High, &exposure.Low); err != nil {
		return models.Exposure{}, fmt.Errorf("failed to get exposure for round %d: %w", roundID, err)
	}

	return exposure, nil
}

// GetByUser returns the most recent bets of a user
func (r *BetRepository) GetByUser(ctx context.Context, telegramID int64, limit int) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets b
		WHERE b.telegram_id = $1
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT $2`

	return r.queryBets(ctx, query, telegramID, limit)
}

func (r *BetRepository) queryBets(ctx context.Context, query string, args ...any) ([]*models.Bet, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bets: %w", err)
	}
	defer rows.Close()

	var bets []*models.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bets: %w", err)
	}

	return bets, nil
}
