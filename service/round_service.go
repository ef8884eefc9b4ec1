package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"taixiu/config"
	"taixiu/events"
	"taixiu/models"
)

const maxRecentRounds = 100

type roundService struct {
	uowFactory UnitOfWorkFactory
	resolver   OutcomeResolver
	settlement SettlementService
	config     *config.Config
	now        func() time.Time
}

// NewRoundService creates a new round service
func NewRoundService(uowFactory UnitOfWorkFactory, resolver OutcomeResolver, settlement SettlementService, cfg *config.Config) RoundService {
	return &roundService{
		uowFactory: uowFactory,
		resolver:   resolver,
		settlement: settlement,
		config:     cfg,
		now:        time.Now,
	}
}

func (s *roundService) GetCurrentRound(ctx context.Context) (*models.Round, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	round, err := uow.RoundRepository().GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get active round: %w", err)
	}
	if round != nil {
		return round, nil
	}

	round, err = uow.RoundRepository().GetLatestFinished(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest finished round: %w", err)
	}
	if round == nil {
		return nil, ErrRoundNotFound
	}
	return round, nil
}

func (s *roundService) GetRound(ctx context.Context, roundID int64) (*models.Round, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	round, err := uow.RoundRepository().GetByID(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	if round == nil {
		return nil, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}
	return round, nil
}

func (s *roundService) GetRecentRounds(ctx context.Context, limit int) ([]*models.Round, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxRecentRounds {
		limit = maxRecentRounds
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	rounds, err := uow.RoundRepository().GetRecentFinished(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent rounds: %w", err)
	}
	return rounds, nil
}

func (s *roundService) OpenRound(ctx context.Context) (*models.Round, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	active, err := uow.RoundRepository().GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check active round: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("%w: round %d is %s", ErrRoundAlreadyActive, active.ID, active.Status)
	}

	round := &models.Round{
		Status:        models.RoundStatusBetting,
		BettingEndsAt: s.now().Add(s.config.BettingWindow),
	}
	if err := uow.RoundRepository().Create(ctx, round); err != nil {
		return nil, fmt.Errorf("failed to create round: %w", err)
	}

	uow.EventBus().Publish(events.RoundOpenedEvent{
		RoundID:       round.ID,
		RoundNumber:   round.RoundNumber,
		BettingEndsAt: round.BettingEndsAt,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"round_id":        round.ID,
		"round_number":    round.RoundNumber,
		"betting_ends_at": round.BettingEndsAt,
	}).Info("Round opened")

	return round, nil
}

func (s *roundService) LockRound(ctx context.Context, roundID int64) (*models.Round, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	settings, err := uow.GameSettingsRepository().Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get game settings: %w", err)
	}

	locked, err := uow.RoundRepository().Lock(ctx, roundID, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to lock round: %w", err)
	}

	round, err := uow.RoundRepository().GetByID(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	if round == nil {
		return nil, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}

	if !locked {
		switch round.Status {
		case models.RoundStatusRolling:
			return round, nil
		case models.RoundStatusFinished:
			return nil, fmt.Errorf("%w: round %d", ErrAlreadySettled, roundID)
		default:
			return nil, fmt.Errorf("round %d could not be locked from status %s", roundID, round.Status)
		}
	}

	uow.EventBus().Publish(events.RoundLockedEvent{
		RoundID:     round.ID,
		RoundNumber: round.RoundNumber,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"round_id":             round.ID,
		"round_number":         round.RoundNumber,
		"auto_control_enabled": round.AutoControlEnabled,
		"auto_lose_percent":    round.AutoLosePercent,
		"manual_result":        round.ManualResult,
	}).Info("Round locked")

	return round, nil
}

// CompleteRound resolves and settles in the transaction that flips the status to finished,
// so a finished round never exists without its outcome and payouts.
func (s *roundService) CompleteRound(ctx context.Context, roundID int64) (*models.SettlementResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	round, err := uow.RoundRepository().GetByIDForUpdate(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	if round == nil {
		return nil, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}

	switch round.Status {
	case models.RoundStatusFinished:
		return nil, fmt.Errorf("%w: round %d", ErrAlreadySettled, roundID)
	case models.RoundStatusBetting:
		return nil, fmt.Errorf("round %d is still accepting bets", roundID)
	}

	// Betting is closed, so the exposure snapshot cannot move
	exposure, err := uow.BetRepository().GetExposure(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exposure: %w", err)
	}

	outcome, policy := s.resolver.Resolve(round, exposure)

	finished, err := uow.RoundRepository().Finish(ctx, roundID, outcome, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to finish round: %w", err)
	}
	if !finished {
		return nil, fmt.Errorf("%w: round %d", ErrAlreadySettled, roundID)
	}

	finishedAt := s.now()
	round.Status = models.RoundStatusFinished
	round.Outcome = outcome
	round.ResolutionPolicy = &policy
	round.FinishedAt = &finishedAt

	result, err := s.settlement.SettleRound(ctx, uow, round)
	if err != nil {
		return nil, fmt.Errorf("failed to settle round: %w", err)
	}

	uow.EventBus().Publish(events.RoundFinishedEvent{
		RoundID:      round.ID,
		RoundNumber:  round.RoundNumber,
		Dice:         outcome.Dice,
		Total:        outcome.Total,
		Result:       outcome.Result,
		Policy:       policy,
		TotalStaked:  result.TotalStaked,
		TotalPaidOut: result.TotalPaidOut,
		WinnerCount:  result.WinnerCount,
		LoserCount:   result.LoserCount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"round_id":      round.ID,
		"round_number":  round.RoundNumber,
		"dice":          outcome.Dice,
		"total":         outcome.Total,
		"result":        outcome.Result,
		"policy":        policy,
		"high_exposure": exposure.High,
		"low_exposure":  exposure.Low,
		"paid_out":      result.TotalPaidOut,
		"winners":       result.WinnerCount,
		"losers":        result.LoserCount,
	}).Info("Round finished")

	return result, nil
}

func (s *roundService) TriggerRoll(ctx context.Context, roundID int64) (*models.Round, error) {
	if _, err := s.LockRound(ctx, roundID); err != nil {
		return nil, err
	}

	result, err := s.CompleteRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	return result.Round, nil
}

func (s *roundService) SetManualResult(ctx context.Context, roundID int64, side *models.Side) (*models.Round, error) {
	if side != nil && !side.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSide, *side)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	updated, err := uow.RoundRepository().SetManualResult(ctx, roundID, side)
	if err != nil {
		return nil, fmt.Errorf("failed to set manual result: %w", err)
	}

	round, err := uow.RoundRepository().GetByID(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	if round == nil {
		return nil, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}
	if !updated {
		return nil, fmt.Errorf("%w: round %d", ErrAlreadySettled, roundID)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"round_id":      roundID,
		"manual_result": side,
	}).Info("Manual result updated")

	return round, nil
}

func (s *roundService) GetSettings(ctx context.Context) (*models.GameSettings, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	settings, err := uow.GameSettingsRepository().Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get game settings: %w", err)
	}
	return settings, nil
}

func (s *roundService) UpdateAutoControl(ctx context.Context, enabled bool, losePercent int) (*models.GameSettings, error) {
	if losePercent < 0 || losePercent > 100 {
		return nil, fmt.Errorf("%w: lose percent must be between 0 and 100, got %d", ErrResolverConfigInvalid, losePercent)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	settings := &models.GameSettings{
		AutoControlEnabled: enabled,
		AutoLosePercent:    losePercent,
	}
	if err := uow.GameSettingsRepository().Update(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to update game settings: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"enabled":      enabled,
		"lose_percent": losePercent,
	}).Info("Auto control updated")

	return settings, nil
}

// IsRetryable reports whether a round operation failed on a transient condition
// rather than on the round already being past the requested step
func IsRetryable(err error) bool {
	return err != nil &&
		!errors.Is(err, ErrAlreadySettled) &&
		!errors.Is(err, ErrRoundNotFound) &&
		!errors.Is(err, ErrRoundAlreadyActive)
}
