package service

import (
	"context"
	"fmt"

	"taixiu/events"
	"taixiu/models"
)

// LedgerEntry describes a single balance change and what caused it
type LedgerEntry struct {
	TelegramID  int64
	Amount      int64 // always positive, direction comes from Credit or Debit
	Type        models.TransactionType
	RelatedID   *int64
	RelatedType *models.RelatedType
	Metadata    map[string]any
}

// Credit adds entry.Amount to the user's balance and records the change
func Credit(ctx context.Context, uow UnitOfWork, entry LedgerEntry) (*models.BalanceHistory, error) {
	if entry.Amount <= 0 {
		return nil, fmt.Errorf("%w: credit must be positive, got %d", ErrInvalidAmount, entry.Amount)
	}

	newBalance, err := uow.UserRepository().AddBalance(ctx, entry.TelegramID, entry.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to credit user %d: %w", entry.TelegramID, err)
	}

	return recordEntry(ctx, uow, entry, newBalance-entry.Amount, newBalance, entry.Amount)
}

// Debit removes entry.Amount from the user's balance and records the change.
// The balance check happens in the same statement as the update.
func Debit(ctx context.Context, uow UnitOfWork, entry LedgerEntry) (*models.BalanceHistory, error) {
	if entry.Amount <= 0 {
		return nil, fmt.Errorf("%w: debit must be positive, got %d", ErrInvalidAmount, entry.Amount)
	}

	newBalance, err := uow.UserRepository().DeductBalance(ctx, entry.TelegramID, entry.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to debit user %d: %w", entry.TelegramID, err)
	}

	return recordEntry(ctx, uow, entry, newBalance+entry.Amount, newBalance, -entry.Amount)
}

func recordEntry(ctx context.Context, uow UnitOfWork, entry LedgerEntry, before, after, change int64) (*models.BalanceHistory, error) {
	history := &models.BalanceHistory{
		TelegramID:          entry.TelegramID,
		BalanceBefore:       before,
		BalanceAfter:        after,
		ChangeAmount:        change,
		TransactionType:     entry.Type,
		TransactionMetadata: entry.Metadata,
		RelatedID:           entry.RelatedID,
		RelatedType:         entry.RelatedType,
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, err
	}
	return history, nil
}

// RecordBalanceChange records a balance history entry and emits appropriate events.
// This is the single entry point for all balance changes in the system.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	// Flushed after the transaction commits
	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          history.TelegramID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	})

	if history.TransactionType == models.TransactionTypeInitial {
		username, _ := history.TransactionMetadata["username"].(string)
		uow.EventBus().Publish(events.UserCreatedEvent{
			TelegramID:     history.TelegramID,
			Username:       username,
			InitialBalance: history.BalanceAfter,
		})
	}

	return nil
}

func relatedRef(id int64, relatedType models.RelatedType) (*int64, *models.RelatedType) {
	return &id, &relatedType
}
