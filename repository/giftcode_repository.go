package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"taixiu/database"
	"taixiu/models"
	"taixiu/service"
)

// GiftcodeRepository implements the GiftcodeRepository interface
type GiftcodeRepository struct {
	q queryable
}

// NewGiftcodeRepository creates a new giftcode repository
func NewGiftcodeRepository(db *database.DB) *GiftcodeRepository {
	return &GiftcodeRepository{q: db.Pool}
}

func newGiftcodeRepositoryWithTx(tx queryable) *GiftcodeRepository {
	return &GiftcodeRepository{q: tx}
}

const giftcodeColumns = `id, code, amount, max_uses, current_uses, is_active, expires_at, created_at`

func scanGiftcode(row pgx.Row) (*models.Giftcode, error) {
	var g models.Giftcode
	err := row.Scan(
		&g.ID,
		&g.Code,
		&g.Amount,
		&g.MaxUses,
		&g.CurrentUses,
		&g.IsActive,
		&g.ExpiresAt,
		&g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create inserts a new giftcode
func (r *GiftcodeRepository) Create(ctx context.Context, giftcode *models.Giftcode) error {
	query := `
		INSERT INTO giftcodes (code, amount, max_uses, is_active, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, current_uses, created_at`

	err := r.q.QueryRow(ctx, query,
		giftcode.Code,
		giftcode.Amount,
		giftcode.MaxUses,
		giftcode.IsActive,
		giftcode.ExpiresAt,
	).Scan(&giftcode.ID, &giftcode.CurrentUses, &giftcode.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: code %s already exists", service.ErrGiftcodeInvalid, giftcode.Code)
		}
		return fmt.Errorf("failed to create giftcode: %w", err)
	}

	return nil
}

// GetByCodeForUpdate retrieves a giftcode and locks it for redemption
func (r *GiftcodeRepository) GetByCodeForUpdate(ctx context.Context, code string) (*models.Giftcode, error) {
	query := `SELECT ` + giftcodeColumns + ` FROM giftcodes WHERE code = $1 FOR UPDATE`

	giftcode, err := scanGiftcode(r.q.QueryRow(ctx, query, code))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get giftcode %s: %w", code, err)
	}

	return giftcode, nil
}

// GetAll returns all giftcodes, newest first
func (r *GiftcodeRepository) GetAll(ctx context.Context) ([]*models.Giftcode, error) {
	query := `SELECT ` + giftcodeColumns + ` FROM giftcodes ORDER BY created_at DESC, id DESC`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get giftcodes: %w", err)
	}
	defer rows.Close()

	var giftcodes []*models.Giftcode
	for rows.Next() {
		giftcode, err := scanGiftcode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan giftcode: %w", err)
		}
		giftcodes = append(giftcodes, giftcode)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate giftcodes: %w", err)
	}

	return giftcodes, nil
}

// Delete removes an unused code and deactivates a redeemed one, keeping the
// ledger's related_id references resolvable
func (r *GiftcodeRepository) Delete(ctx context.Context, id int64) (bool, error) {
	var redeemed bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM giftcode_redemptions WHERE giftcode_id = $1)`, id,
	).Scan(&redeemed)
	if err != nil {
		return false, fmt.Errorf("failed to check redemptions for giftcode %d: %w", id, err)
	}

	query := `DELETE FROM giftcodes WHERE id = $1`
	if redeemed {
		query = `UPDATE giftcodes SET is_active = FALSE WHERE id = $1`
	}

	result, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete giftcode %d: %w", id, err)
	}

	return result.RowsAffected() == 1, nil
}

// IncrementUses counts one redemption against the code's limit
func (r *GiftcodeRepository) IncrementUses(ctx context.Context, id int64) error {
	query := `
		UPDATE giftcodes
		SET current_uses = current_uses + 1
		WHERE id = $1 AND current_uses < max_uses`

	result, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment uses for giftcode %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", service.ErrGiftcodeExhausted, id)
	}

	return nil
}

// RecordRedemption inserts the user's redemption unless one already exists
func (r *GiftcodeRepository) RecordRedemption(ctx context.Context, telegramID int64, giftcodeID int64) (bool, error) {
	query := `
		INSERT INTO giftcode_redemptions (telegram_id, giftcode_id)
		VALUES ($1, $2)
		ON CONFLICT (telegram_id, giftcode_id) DO NOTHING`

	result, err := r.q.Exec(ctx, query, telegramID, giftcodeID)
	if err != nil {
		return false, fmt.Errorf("failed to record redemption of giftcode %d: %w", giftcodeID, err)
	}

	return result.RowsAffected() == 1, nil
}
