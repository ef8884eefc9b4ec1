package repository

import (
	"context"
	"fmt"

	"taixiu/database"
	"taixiu/models"
)

// GameSettingsRepository implements the GameSettingsRepository interface
type GameSettingsRepository struct {
	q queryable
}

// NewGameSettingsRepository creates a new game settings repository
func NewGameSettingsRepository(db *database.DB) *GameSettingsRepository {
	return &GameSettingsRepository{q: db.Pool}
}

func newGameSettingsRepositoryWithTx(tx queryable) *GameSettingsRepository {
	return &GameSettingsRepository{q: tx}
}

// Get reads the single settings row seeded by the migrations
func (r *GameSettingsRepository) Get(ctx context.Context) (*models.GameSettings, error) {
	query := `
		SELECT auto_control_enabled, auto_lose_percent::int, updated_at
		FROM game_settings
		WHERE id = 1`

	var settings models.GameSettings
	err := r.q.QueryRow(ctx, query).Scan(
		&settings.AutoControlEnabled,
		&settings.AutoLosePercent,
		&settings.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get game settings: %w", err)
	}

	return &settings, nil
}

// Update overwrites the auto-control configuration
func (r *GameSettingsRepository) Update(ctx context.Context, settings *models.GameSettings) error {
	query := `
		INSERT INTO game_settings (id, auto_control_enabled, auto_lose_percent, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET auto_control_enabled = EXCLUDED.auto_control_enabled,
		    auto_lose_percent = EXCLUDED.auto_lose_percent,
		    updated_at = EXCLUDED.updated_at
		RETURNING updated_at`

	err := r.q.QueryRow(ctx, query, settings.AutoControlEnabled, settings.AutoLosePercent).Scan(&settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update game settings: %w", err)
	}

	return nil
}
