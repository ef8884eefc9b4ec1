package testutil

import (
	"time"

	"taixiu/models"
)

// CreateTestProfile creates a Telegram profile with default values
func CreateTestProfile(telegramID int64, username string) models.TelegramProfile {
	return models.TelegramProfile{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  "Test",
		LastName:   username,
	}
}

// CreateTestBalanceHistory creates a test balance history entry
func CreateTestBalanceHistory(telegramID int64, transactionType models.TransactionType) *models.BalanceHistory {
	return &models.BalanceHistory{
		TelegramID:      telegramID,
		BalanceBefore:   100000,
		BalanceAfter:    90000,
		ChangeAmount:    -10000,
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
		CreatedAt: time.Now(),
	}
}

// CreateTestBalanceHistoryWithAmounts creates a test balance history with specific amounts
func CreateTestBalanceHistoryWithAmounts(telegramID int64, before, after, change int64, transactionType models.TransactionType) *models.BalanceHistory {
	history := CreateTestBalanceHistory(telegramID, transactionType)
	history.BalanceBefore = before
	history.BalanceAfter = after
	history.ChangeAmount = change
	return history
}

// CreateTestRound creates a betting round closing after window
func CreateTestRound(window time.Duration) *models.Round {
	return &models.Round{
		Status:        models.RoundStatusBetting,
		BettingEndsAt: time.Now().Add(window),
	}
}

// CreateTestBet creates an unsettled bet
func CreateTestBet(roundID, telegramID int64, side models.Side, amount int64) *models.Bet {
	return &models.Bet{
		RoundID:    roundID,
		TelegramID: telegramID,
		Side:       side,
		Amount:     amount,
	}
}

// CreateTestGiftcode creates an active giftcode without expiry
func CreateTestGiftcode(code string, amount int64, maxUses int) *models.Giftcode {
	return &models.Giftcode{
		Code:     code,
		Amount:   amount,
		MaxUses:  maxUses,
		IsActive: true,
	}
}
