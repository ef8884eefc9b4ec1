package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"taixiu/models"
)

const maxGiftcodeLength = 32

type giftcodeService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewGiftcodeService creates a new giftcode service
func NewGiftcodeService(uowFactory UnitOfWorkFactory) GiftcodeService {
	return &giftcodeService{
		uowFactory: uowFactory,
		now:        time.Now,
	}
}

// NormalizeGiftcode trims and upper-cases a code so lookups are case-insensitive
func NormalizeGiftcode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *giftcodeService) CreateGiftcode(ctx context.Context, code string, amount int64, maxUses int, expiresAt *time.Time) (*models.Giftcode, error) {
	code = NormalizeGiftcode(code)
	if code == "" || len(code) > maxGiftcodeLength || strings.ContainsAny(code, " \t\n") {
		return nil, fmt.Errorf("%w: code must be 1-%d characters without spaces", ErrGiftcodeInvalid, maxGiftcodeLength)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if maxUses <= 0 {
		return nil, fmt.Errorf("%w: max uses must be positive", ErrGiftcodeInvalid)
	}
	if expiresAt != nil && !expiresAt.After(s.now()) {
		return nil, fmt.Errorf("%w: expiry must be in the future", ErrGiftcodeInvalid)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	giftcode := &models.Giftcode{
		Code:      code,
		Amount:    amount,
		MaxUses:   maxUses,
		IsActive:  true,
		ExpiresAt: expiresAt,
	}
	if err := uow.GiftcodeRepository().Create(ctx, giftcode); err != nil {
		return nil, fmt.Errorf("failed to create giftcode: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"giftcode_id": giftcode.ID,
		"code":        giftcode.Code,
		"amount":      amount,
		"max_uses":    maxUses,
	}).Info("Giftcode created")

	return giftcode, nil
}

func (s *giftcodeService) ListGiftcodes(ctx context.Context) ([]*models.Giftcode, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	giftcodes, err := uow.GiftcodeRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get giftcodes: %w", err)
	}
	return giftcodes, nil
}

func (s *giftcodeService) DeleteGiftcode(ctx context.Context, id int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	found, err := uow.GiftcodeRepository().Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete giftcode: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: %d", ErrGiftcodeNotFound, id)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithField("giftcode_id", id).Info("Giftcode deleted")
	return nil
}

// Redeem credits a code to a user. The code row is locked for the whole transaction
// so concurrent redemptions cannot exceed max uses.
func (s *giftcodeService) Redeem(ctx context.Context, telegramID int64, code string) (*models.RedeemResult, error) {
	code = NormalizeGiftcode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrGiftcodeInvalid)
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

	giftcode, err := uow.GiftcodeRepository().GetByCodeForUpdate(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get giftcode: %w", err)
	}
	if giftcode == nil {
		return nil, ErrGiftcodeNotFound
	}
	if !giftcode.IsActive {
		return nil, ErrGiftcodeInactive
	}
	if giftcode.IsExpired(s.now()) {
		return nil, ErrGiftcodeExpired
	}
	if !giftcode.HasUsesLeft() {
		return nil, ErrGiftcodeExhausted
	}

	recorded, err := uow.GiftcodeRepository().RecordRedemption(ctx, telegramID, giftcode.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record redemption: %w", err)
	}
	if !recorded {
		return nil, ErrGiftcodeAlreadyRedeemed
	}

	if err := uow.GiftcodeRepository().IncrementUses(ctx, giftcode.ID); err != nil {
		return nil, fmt.Errorf("failed to increment uses: %w", err)
	}

	relatedID, relatedType := relatedRef(giftcode.ID, models.RelatedTypeGiftcode)
	history, err := Credit(ctx, uow, LedgerEntry{
		TelegramID:  telegramID,
		Amount:      giftcode.Amount,
		Type:        models.TransactionTypeGiftcodeRedeem,
		RelatedID:   relatedID,
		RelatedType: relatedType,
		Metadata: map[string]any{
			"code": giftcode.Code,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"telegram_id": telegramID,
		"code":        giftcode.Code,
		"amount":      giftcode.Amount,
	}).Info("Giftcode redeemed")

	return &models.RedeemResult{
		Code:       giftcode.Code,
		Amount:     giftcode.Amount,
		NewBalance: history.BalanceAfter,
	}, nil
}
