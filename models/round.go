package models

import (
	"fmt"
	"strings"
	"time"
)

// RoundStatus represents where a round is in its lifecycle
type RoundStatus string

const (
	RoundStatusBetting  RoundStatus = "betting"
	RoundStatusRolling  RoundStatus = "rolling"
	RoundStatusFinished RoundStatus = "finished"
)

// CanTransitionTo reports whether moving to next is a single forward step
func (s RoundStatus) CanTransitionTo(next RoundStatus) bool {
	switch s {
	case RoundStatusBetting:
		return next == RoundStatusRolling
	case RoundStatusRolling:
		return next == RoundStatusFinished
	default:
		return false
	}
}

// IsActive reports whether the round still blocks a new round from opening
func (s RoundStatus) IsActive() bool {
	return s == RoundStatusBetting || s == RoundStatusRolling
}

// Side is one of the two bettable outcomes
type Side string

const (
	SideHigh Side = "high" // tài, total 11-18
	SideLow  Side = "low"  // xỉu, total 3-10
)

// HighThreshold is the smallest total that resolves to SideHigh
const HighThreshold = 11

// ParseSide accepts the English names and the Vietnamese tai/xiu aliases
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "tai", "tài":
		return SideHigh, nil
	case "low", "xiu", "xỉu":
		return SideLow, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// Opposite returns the other side
func (s Side) Opposite() Side {
	if s == SideHigh {
		return SideLow
	}
	return SideHigh
}

// Valid reports whether s is a known side
func (s Side) Valid() bool {
	return s == SideHigh || s == SideLow
}

// SideForTotal maps a dice total to its side
func SideForTotal(total int) Side {
	if total >= HighThreshold {
		return SideHigh
	}
	return SideLow
}

// ResolutionPolicy records which resolver policy produced an outcome
type ResolutionPolicy string

const (
	ResolutionPolicyFair     ResolutionPolicy = "fair"
	ResolutionPolicyManual   ResolutionPolicy = "manual"
	ResolutionPolicyAutoBias ResolutionPolicy = "auto_bias"
)

// Outcome is a resolved dice roll. A round either has a complete outcome or none.
type Outcome struct {
	Dice   [3]int
	Total  int
	Result Side
}

// NewOutcome builds an outcome from three dice values
func NewOutcome(d1, d2, d3 int) (*Outcome, error) {
	for _, d := range []int{d1, d2, d3} {
		if d < 1 || d > 6 {
			return nil, fmt.Errorf("die value %d out of range", d)
		}
	}
	total := d1 + d2 + d3
	return &Outcome{
		Dice:   [3]int{d1, d2, d3},
		Total:  total,
		Result: SideForTotal(total),
	}, nil
}

// Round represents one play of the dice game
type Round struct {
	ID                 int64             `db:"id"`
	RoundNumber        int64             `db:"round_number"`
	Status             RoundStatus       `db:"status"`
	Outcome            *Outcome          `db:"-"`
	ManualResult       *Side             `db:"manual_result"`
	AutoControlEnabled bool              `db:"auto_control_enabled"`
	AutoLosePercent    int               `db:"auto_lose_percent"`
	ResolutionPolicy   *ResolutionPolicy `db:"resolution_policy"`
	BettingEndsAt      time.Time         `db:"betting_ends_at"`
	LockedAt           *time.Time        `db:"locked_at"`
	CreatedAt          time.Time         `db:"created_at"`
	FinishedAt         *time.Time        `db:"finished_at"`
}

// AcceptsBetsAt reports whether a bet arriving at now may join the round
func (r *Round) AcceptsBetsAt(now time.Time) bool {
	return r.Status == RoundStatusBetting && now.Before(r.BettingEndsAt)
}

// IsBettingWindowElapsed reports whether the betting window has closed on the clock
func (r *Round) IsBettingWindowElapsed(now time.Time) bool {
	return !now.Before(r.BettingEndsAt)
}

// IsFinished checks if the round reached its terminal state
func (r *Round) IsFinished() bool {
	return r.Status == RoundStatusFinished
}

// Exposure is the total amount staked on each side of a round
type Exposure struct {
	High int64
	Low  int64
}

// Heavier returns the side with more money staked, or false when both are equal
func (e Exposure) Heavier() (Side, bool) {
	switch {
	case e.High > e.Low:
		return SideHigh, true
	case e.Low > e.High:
		return SideLow, true
	default:
		return "", false
	}
}

// Total returns the amount staked on both sides
func (e Exposure) Total() int64 {
	return e.High + e.Low
}

// GameSettings holds the admin-controlled resolver configuration
type GameSettings struct {
	AutoControlEnabled bool      `db:"auto_control_enabled"`
	AutoLosePercent    int       `db:"auto_lose_percent"`
	UpdatedAt          time.Time `db:"updated_at"`
}
