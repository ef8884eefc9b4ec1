package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"taixiu/models"
)

type settlementService struct {
	uowFactory    UnitOfWorkFactory
	winMultiplier decimal.Decimal
}

// NewSettlementService creates the settlement engine
func NewSettlementService(uowFactory UnitOfWorkFactory, winMultiplier decimal.Decimal) SettlementService {
	return &settlementService{
		uowFactory:    uowFactory,
		winMultiplier: winMultiplier,
	}
}

// Payout returns what a bet receives for a round result
func Payout(bet *models.Bet, result models.Side, multiplier decimal.Decimal) (int64, bool) {
	if bet.Side != result {
		return 0, false
	}
	return models.ApplyMultiplier(bet.Amount, multiplier), true
}

// SettleRound pays every bet whose payout is still NULL. A bet is only paid when
// its guarded update succeeds, so rerunning after a partial failure never pays twice.
func (s *settlementService) SettleRound(ctx context.Context, uow UnitOfWork, round *models.Round) (*models.SettlementResult, error) {
	if round.Outcome == nil {
		return nil, fmt.Errorf("%w: round %d", ErrRoundNotResolved, round.ID)
	}

	bets, err := uow.BetRepository().GetUnsettledByRoundForUpdate(ctx, round.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unsettled bets: %w", err)
	}

	result := &models.SettlementResult{Round: round}

	for _, bet := range bets {
		payout, isWin := Payout(bet, round.Outcome.Result, s.winMultiplier)

		updated, err := uow.BetRepository().MarkSettled(ctx, bet.ID, payout, isWin)
		if err != nil {
			return nil, fmt.Errorf("failed to settle bet %d: %w", bet.ID, err)
		}
		if !updated {
			result.Skipped++
			continue
		}

		if payout > 0 {
			relatedID, relatedType := relatedRef(bet.ID, models.RelatedTypeBet)
			_, err := Credit(ctx, uow, LedgerEntry{
				TelegramID:  bet.TelegramID,
				Amount:      payout,
				Type:        models.TransactionTypeBetPayout,
				RelatedID:   relatedID,
				RelatedType: relatedType,
				Metadata: map[string]any{
					"round_id":     round.ID,
					"round_number": round.RoundNumber,
					"side":         string(bet.Side),
					"bet_amount":   bet.Amount,
					"dice":         round.Outcome.Dice,
				},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to credit payout for bet %d: %w", bet.ID, err)
			}
		}

		result.Settled = append(result.Settled, &models.BetSettlement{
			BetID:      bet.ID,
			TelegramID: bet.TelegramID,
			Side:       bet.Side,
			Amount:     bet.Amount,
			Payout:     payout,
			IsWin:      isWin,
		})
		result.TotalStaked += bet.Amount
		result.TotalPaidOut += payout
		if isWin {
			result.WinnerCount++
		} else {
			result.LoserCount++
		}
	}

	return result, nil
}

// Settle runs SettleRound in its own transaction for reconciliation and retries
func (s *settlementService) Settle(ctx context.Context, roundID int64) (*models.SettlementResult, error) {
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

	result, err := s.SettleRound(ctx, uow, round)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"round_id":     round.ID,
		"settled":      len(result.Settled),
		"skipped":      result.Skipped,
		"paid_out":     result.TotalPaidOut,
		"winner_count": result.WinnerCount,
	}).Info("Round settlement run completed")

	return result, nil
}
