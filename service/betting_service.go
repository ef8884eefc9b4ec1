package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"taixiu/config"
	"taixiu/events"
	"taixiu/models"
)

type bettingService struct {
	uowFactory UnitOfWorkFactory
	config     *config.Config
	now        func() time.Time
}

// NewBettingService creates the bet book
func NewBettingService(uowFactory UnitOfWorkFactory, cfg *config.Config) BettingService {
	return &bettingService{
		uowFactory: uowFactory,
		config:     cfg,
		now:        time.Now,
	}
}

func (s *bettingService) validateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if amount < s.config.MinBet {
		return fmt.Errorf("%w: minimum bet is %s", ErrInvalidAmount, models.FormatAmount(s.config.MinBet))
	}
	if s.config.MaxBet > 0 && amount > s.config.MaxBet {
		return fmt.Errorf("%w: maximum bet is %s", ErrInvalidAmount, models.FormatAmount(s.config.MaxBet))
	}
	return nil
}

// PlaceBet records a bet and debits the stake in one transaction. The round row is read
// FOR SHARE so locking the round waits for in-flight bets to commit or roll back.
func (s *bettingService) PlaceBet(ctx context.Context, telegramID int64, roundID int64, side models.Side, amount int64) (*models.Bet, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	if err := s.validateAmount(amount); err != nil {
		return nil, err
	}

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
	if user.IsLocked {
		return nil, ErrUserLocked
	}

	round, err := uow.RoundRepository().GetByIDForShare(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	if round == nil {
		return nil, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}
	if !round.AcceptsBetsAt(s.now()) {
		return nil, fmt.Errorf("%w: round %d is %s", ErrRoundNotAcceptingBets, round.ID, round.Status)
	}

	bet := &models.Bet{
		RoundID:    roundID,
		TelegramID: telegramID,
		Side:       side,
		Amount:     amount,
	}
	if err := uow.BetRepository().Create(ctx, bet); err != nil {
		return nil, fmt.Errorf("failed to create bet: %w", err)
	}

	relatedID, relatedType := relatedRef(bet.ID, models.RelatedTypeBet)
	_, err = Debit(ctx, uow, LedgerEntry{
		TelegramID:  telegramID,
		Amount:      amount,
		Type:        models.TransactionTypeBetPlaced,
		RelatedID:   relatedID,
		RelatedType: relatedType,
		Metadata: map[string]any{
			"round_id":     round.ID,
			"round_number": round.RoundNumber,
			"side":         string(side),
		},
	})
	if err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.BetPlacedEvent{
		BetID:       bet.ID,
		RoundID:     round.ID,
		RoundNumber: round.RoundNumber,
		UserID:      telegramID,
		DisplayName: user.DisplayName(),
		Side:        side,
		Amount:      amount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"bet_id":      bet.ID,
		"round_id":    round.ID,
		"telegram_id": telegramID,
		"side":        side,
		"amount":      amount,
	}).Debug("Bet placed")

	return bet, nil
}

func (s *bettingService) ListBets(ctx context.Context, roundID int64) ([]*models.BetWithUser, error) {
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

	bets, err := uow.BetRepository().GetByRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bets: %w", err)
	}
	return bets, nil
}
