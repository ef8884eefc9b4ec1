package models

import "time"

// Bet represents a stake on one side of a round
type Bet struct {
	ID         int64      `db:"id"`
	RoundID    int64      `db:"round_id"`
	TelegramID int64      `db:"telegram_id"`
	Side       Side       `db:"side"`
	Amount     int64      `db:"amount"`
	Payout     *int64     `db:"payout"`
	IsWin      *bool      `db:"is_win"`
	CreatedAt  time.Time  `db:"created_at"`
	SettledAt  *time.Time `db:"settled_at"`
}

// IsSettled reports whether settlement already wrote the payout
func (b *Bet) IsSettled() bool {
	return b.Payout != nil
}

// BetWithUser is a bet joined with the bettor's display fields
type BetWithUser struct {
	Bet
	Username  string
	FirstName string
	LastName  string
}

// DisplayName returns the bettor's public name
func (b *BetWithUser) DisplayName() string {
	u := User{Username: b.Username, FirstName: b.FirstName, LastName: b.LastName}
	return u.DisplayName()
}

// BetSettlement is the payout decision for a single bet
type BetSettlement struct {
	BetID      int64
	TelegramID int64
	Side       Side
	Amount     int64
	Payout     int64
	IsWin      bool
}

// SettlementResult summarises the settlement of a round
type SettlementResult struct {
	Round        *Round
	Settled      []*BetSettlement
	Skipped      int   // bets already settled by an earlier run
	TotalStaked  int64 // stake of the bets settled in this run
	TotalPaidOut int64
	WinnerCount  int
	LoserCount   int
}
