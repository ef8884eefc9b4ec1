package service

import "errors"

// User-facing errors
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrRoundNotAcceptingBets = errors.New("round is not accepting bets")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidSide           = errors.New("invalid side")
	ErrUserLocked            = errors.New("user is locked")
	ErrResolverConfigInvalid = errors.New("invalid resolver configuration")
)

// Consistency errors, logged and surfaced as a generic failure
var (
	ErrRoundNotFound      = errors.New("round not found")
	ErrAlreadySettled     = errors.New("round already settled")
	ErrRoundNotResolved   = errors.New("round has no outcome")
	ErrRoundAlreadyActive = errors.New("another round is already active")
	ErrUserNotFound       = errors.New("user not found")
)

// Giftcode errors
var (
	ErrGiftcodeNotFound        = errors.New("giftcode not found")
	ErrGiftcodeInactive        = errors.New("giftcode is inactive")
	ErrGiftcodeExpired         = errors.New("giftcode has expired")
	ErrGiftcodeExhausted       = errors.New("giftcode has no uses left")
	ErrGiftcodeAlreadyRedeemed = errors.New("giftcode already redeemed")
	ErrGiftcodeInvalid         = errors.New("invalid giftcode")
)
