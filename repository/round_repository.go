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

const pgUniqueViolation = "23505"

// RoundRepository implements the RoundRepository interface
type RoundRepository struct {
	q queryable
}

// NewRoundRepository creates a new round repository
func NewRoundRepository(db *database.DB) *RoundRepository {
	return &RoundRepository{q: db.Pool}
}

// newRoundRepositoryWithTx creates a new round repository with a transaction
func newRoundRepositoryWithTx(tx queryable) *RoundRepository {
	return &RoundRepository{q: tx}
}

const roundColumns = `
	id, round_number, status::text,
	dice1::int, dice2::int, dice3::int, total::int, result::text,
	manual_result::text, auto_control_enabled, auto_lose_percent::int, resolution_policy,
	betting_ends_at, locked_at, created_at, finished_at`

func scanRound(row pgx.Row) (*models.Round, error) {
	var round models.Round
	var status string
	var dice1, dice2, dice3, total *int
	var result, manualResult, policy *string

	err := row.Scan(
		&round.ID,
		&round.RoundNumber,
		&status,
		&dice1,
		&dice2,
		&dice3,
		&total,
		&result,
		&manualResult,
		&round.AutoControlEnabled,
		&round.AutoLosePercent,
		&policy,
		&round.BettingEndsAt,
		&round.LockedAt,
		&round.CreatedAt,
		&round.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	round.Status = models.RoundStatus(status)

	// The table constraint guarantees the outcome columns are all set or all NULL
	if dice1 != nil && dice2 != nil && dice3 != nil {
		outcome, err := models.NewOutcome(*dice1, *dice2, *dice3)
		if err != nil {
			return nil, fmt.Errorf("round %d has invalid dice: %w", round.ID, err)
		}
		round.Outcome = outcome
	}
	if manualResult != nil {
		side := models.Side(*manualResult)
		round.ManualResult = &side
	}
	if policy != nil {
		p := models.ResolutionPolicy(*policy)
		round.ResolutionPolicy = &p
	}

	return &round, nil
}

func (r *RoundRepository) getOne(ctx context.Context, query string, args ...any) (*models.Round, error) {
	round, err := scanRound(r.q.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return round, nil
}

// Create inserts a betting round numbered after the highest existing round
func (r *RoundRepository) Create(ctx context.Context, round *models.Round) error {
	query := `
		INSERT INTO rounds (round_number, status, betting_ends_at)
		SELECT COALESCE(MAX(round_number), 0) + 1, 'betting', $1
		FROM rounds
		RETURNING ` + roundColumns

	created, err := scanRound(r.q.QueryRow(ctx, query, round.BettingEndsAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", service.ErrRoundAlreadyActive, pgErr.ConstraintName)
		}
		return fmt.Errorf("failed to create round: %w", err)
	}

	*round = *created
	return nil
}

// GetByID retrieves a round by ID
func (r *RoundRepository) GetByID(ctx context.Context, id int64) (*models.Round, error) {
	round, err := r.getOne(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get round %d: %w", id, err)
	}
	return round, nil
}

// GetByIDForUpdate retrieves a round and locks its row until the transaction ends
func (r *RoundRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Round, error) {
	round, err := r.getOne(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get round %d for update: %w", id, err)
	}
	return round, nil
}

// GetByIDForShare retrieves a round with a shared row lock. Concurrent bets share the
// lock while the status update in Lock waits for all of them.
func (r *RoundRepository) GetByIDForShare(ctx context.Context, id int64) (*models.Round, error) {
	round, err := r.getOne(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1 FOR SHARE`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get round %d for share: %w", id, err)
	}
	return round, nil
}

// GetActive returns the betting or rolling round
func (r *RoundRepository) GetActive(ctx context.Context) (*models.Round, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE status IN ('betting', 'rolling')
		ORDER BY round_number DESC
		LIMIT 1`

	round, err := r.getOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active round: %w", err)
	}
	return round, nil
}

// GetLatestFinished returns the most recent finished round
func (r *RoundRepository) GetLatestFinished(ctx context.Context) (*models.Round, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE status = 'finished'
		ORDER BY round_number DESC
		LIMIT 1`

	round, err := r.getOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest finished round: %w", err)
	}
	return round, nil
}

// GetRecentFinished returns finished rounds, newest first
func (r *RoundRepository) GetRecentFinished(ctx context.Context, limit int) ([]*models.Round, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE status = 'finished'
		ORDER BY round_number DESC
		LIMIT $1`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*models.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, round)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rounds: %w", err)
	}

	return rounds, nil
}

// Lock closes betting and snapshots the auto-control settings onto the round
func (r *RoundRepository) Lock(ctx context.Context, id int64, settings *models.GameSettings) (bool, error) {
	query := `
		UPDATE rounds
		SET status = 'rolling',
		    locked_at = NOW(),
		    auto_control_enabled = $2,
		    auto_lose_percent = $3
		WHERE id = $1 AND status = 'betting'
	`

	result, err := r.q.Exec(ctx, query, id, settings.AutoControlEnabled, settings.AutoLosePercent)
	if err != nil {
		return false, fmt.Errorf("failed to lock round %d: %w", id, err)
	}

	return result.RowsAffected() == 1, nil
}

// Finish stores the outcome and closes a rolling round
func (r *RoundRepository) Finish(ctx context.Context, id int64, outcome *models.Outcome, policy models.ResolutionPolicy) (bool, error) {
	query := `
		UPDATE rounds
		SET status = 'finished',
		    dice1 = $2,
		    dice2 = $3,
		    dice3 = $4,
		    total = $5,
		    result = $6::bet_side,
		    resolution_policy = $7,
		    finished_at = NOW()
		WHERE id = $1 AND status = 'rolling'
	`

	result, err := r.q.Exec(ctx, query, id,
		outcome.Dice[0],
		outcome.Dice[1],
		outcome.Dice[2],
		outcome.Total,
		string(outcome.Result),
		string(policy),
	)
	if err != nil {
		return false, fmt.Errorf("failed to finish round %d: %w", id, err)
	}

	return result.RowsAffected() == 1, nil
}

// SetManualResult sets or clears the override while the round is unfinished
func (r *RoundRepository) SetManualResult(ctx context.Context, id int64, side *models.Side) (bool, error) {
	var value *string
	if side != nil {
		s := string(*side)
		value = &s
	}

	query := `
		UPDATE rounds
		SET manual_result = $2::bet_side
		WHERE id = $1 AND status <> 'finished'
	`

	result, err := r.q.Exec(ctx, query, id, value)
	if err != nil {
		return false, fmt.Errorf("failed to set manual result for round %d: %w", id, err)
	}

	return result.RowsAffected() == 1, nil
}
