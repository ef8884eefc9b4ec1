package models

import "time"

// Giftcode is an admin-issued code that credits a fixed amount when redeemed
type Giftcode struct {
	ID          int64      `db:"id"`
	Code        string     `db:"code"`
	Amount      int64      `db:"amount"`
	MaxUses     int        `db:"max_uses"`
	CurrentUses int        `db:"current_uses"`
	IsActive    bool       `db:"is_active"`
	ExpiresAt   *time.Time `db:"expires_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

// IsExpired checks the expiry against now
func (g *Giftcode) IsExpired(now time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.Before(now)
}

// HasUsesLeft checks if the code can still be redeemed by someone
func (g *Giftcode) HasUsesLeft() bool {
	return g.CurrentUses < g.MaxUses
}

// GiftcodeRedemption records that a user redeemed a code
type GiftcodeRedemption struct {
	ID         int64     `db:"id"`
	TelegramID int64     `db:"telegram_id"`
	GiftcodeID int64     `db:"giftcode_id"`
	RedeemedAt time.Time `db:"redeemed_at"`
}

// RedeemResult is returned to the user after a successful redemption
type RedeemResult struct {
	Code       string
	Amount     int64
	NewBalance int64
}
