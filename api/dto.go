package api

import (
	"fmt"
	"time"

	"taixiu/models"
	"taixiu/service"
)

// RoundResponse is the public view of a round. The manual override and the
// resolver policy are never exposed to players.
type RoundResponse struct {
	ID               int64      `json:"id"`
	RoundNumber      int64      `json:"roundNumber"`
	Status           string     `json:"status"`
	Dice1            *int       `json:"dice1"`
	Dice2            *int       `json:"dice2"`
	Dice3            *int       `json:"dice3"`
	Total            *int       `json:"total"`
	Result           *string    `json:"result"`
	BettingEndsAt    time.Time  `json:"bettingEndsAt"`
	SecondsRemaining int        `json:"secondsRemaining"`
	CreatedAt        time.Time  `json:"createdAt"`
	FinishedAt       *time.Time `json:"finishedAt"`
}

// AdminRoundResponse adds the resolver fields for the admin panel
type AdminRoundResponse struct {
	RoundResponse
	ManualResult       *string `json:"manualResult"`
	AutoControlEnabled bool    `json:"autoControlEnabled"`
	AutoLosePercent    int     `json:"autoLosePercent"`
	ResolutionPolicy   *string `json:"resolutionPolicy"`
}

func newRoundResponse(round *models.Round, now time.Time) RoundResponse {
	resp := RoundResponse{
		ID:            round.ID,
		RoundNumber:   round.RoundNumber,
		Status:        string(round.Status),
		BettingEndsAt: round.BettingEndsAt,
		CreatedAt:     round.CreatedAt,
		FinishedAt:    round.FinishedAt,
	}
	if round.Status == models.RoundStatusBetting && now.Before(round.BettingEndsAt) {
		resp.SecondsRemaining = int(round.BettingEndsAt.Sub(now).Round(time.Second) / time.Second)
	}
	if round.Outcome != nil {
		d1, d2, d3 := round.Outcome.Dice[0], round.Outcome.Dice[1], round.Outcome.Dice[2]
		total := round.Outcome.Total
		result := string(round.Outcome.Result)
		resp.Dice1, resp.Dice2, resp.Dice3 = &d1, &d2, &d3
		resp.Total = &total
		resp.Result = &result
	}
	return resp
}

func newAdminRoundResponse(round *models.Round, now time.Time) AdminRoundResponse {
	resp := AdminRoundResponse{
		RoundResponse:      newRoundResponse(round, now),
		AutoControlEnabled: round.AutoControlEnabled,
		AutoLosePercent:    round.AutoLosePercent,
	}
	if round.ManualResult != nil {
		side := string(*round.ManualResult)
		resp.ManualResult = &side
	}
	if round.ResolutionPolicy != nil {
		policy := string(*round.ResolutionPolicy)
		resp.ResolutionPolicy = &policy
	}
	return resp
}

func newRoundResponses(rounds []*models.Round, now time.Time) []RoundResponse {
	resp := make([]RoundResponse, 0, len(rounds))
	for _, round := range rounds {
		resp = append(resp, newRoundResponse(round, now))
	}
	return resp
}

// UserResponse describes the caller or a user in the admin list
type UserResponse struct {
	TelegramID  int64     `json:"telegramId"`
	Username    string    `json:"username"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	DisplayName string    `json:"displayName"`
	Balance     string    `json:"balance"`
	IsAdmin     bool      `json:"isAdmin"`
	IsLocked    bool      `json:"isLocked"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newUserResponse(user *models.User, isAdmin bool) UserResponse {
	return UserResponse{
		TelegramID:  user.TelegramID,
		Username:    user.Username,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		DisplayName: user.DisplayName(),
		Balance:     models.FormatAmount(user.Balance),
		IsAdmin:     isAdmin,
		IsLocked:    user.IsLocked,
		CreatedAt:   user.CreatedAt,
	}
}

// PlaceBetRequest is the body of POST /api/bets
type PlaceBetRequest struct {
	RoundID int64  `json:"roundId" binding:"required,gt=0"`
	Side    string `json:"side" binding:"required,side"`
	Amount  string `json:"amount" binding:"required,amount"`
}

// parse converts the side and amount into domain values
func (r PlaceBetRequest) parse() (models.Side, int64, error) {
	side, err := models.ParseSide(r.Side)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", service.ErrInvalidSide, err)
	}
	amount, err := models.ParseAmount(r.Amount)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", service.ErrInvalidAmount, err)
	}
	return side, amount, nil
}

// BetResponse describes a bet, with the bettor's name when listed for a round
type BetResponse struct {
	ID          int64     `json:"id"`
	RoundID     int64     `json:"roundId"`
	TelegramID  int64     `json:"telegramId"`
	DisplayName string    `json:"displayName,omitempty"`
	Side        string    `json:"side"`
	Amount      string    `json:"amount"`
	Payout      *string   `json:"payout"`
	IsWin       *bool     `json:"isWin"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newBetResponse(bet *models.Bet) BetResponse {
	resp := BetResponse{
		ID:         bet.ID,
		RoundID:    bet.RoundID,
		TelegramID: bet.TelegramID,
		Side:       string(bet.Side),
		Amount:     models.FormatAmount(bet.Amount),
		IsWin:      bet.IsWin,
		CreatedAt:  bet.CreatedAt,
	}
	if bet.Payout != nil {
		payout := models.FormatAmount(*bet.Payout)
		resp.Payout = &payout
	}
	return resp
}

// RoundBetsResponse lists the bets of a round with the per-side totals
type RoundBetsResponse struct {
	RoundID   int64         `json:"roundId"`
	Bets      []BetResponse `json:"bets"`
	TotalHigh string        `json:"totalHigh"`
	TotalLow  string        `json:"totalLow"`
}

func newRoundBetsResponse(roundID int64, bets []*models.BetWithUser) RoundBetsResponse {
	resp := RoundBetsResponse{RoundID: roundID, Bets: make([]BetResponse, 0, len(bets))}
	var exposure models.Exposure
	for _, bet := range bets {
		b := newBetResponse(&bet.Bet)
		b.DisplayName = bet.DisplayName()
		resp.Bets = append(resp.Bets, b)
		if bet.Side == models.SideHigh {
			exposure.High += bet.Amount
		} else {
			exposure.Low += bet.Amount
		}
	}
	resp.TotalHigh = models.FormatAmount(exposure.High)
	resp.TotalLow = models.FormatAmount(exposure.Low)
	return resp
}

// BalanceHistoryResponse is one ledger entry of the caller
type BalanceHistoryResponse struct {
	ID              int64     `json:"id"`
	TransactionType string    `json:"transactionType"`
	ChangeAmount    string    `json:"changeAmount"`
	BalanceBefore   string    `json:"balanceBefore"`
	BalanceAfter    string    `json:"balanceAfter"`
	CreatedAt       time.Time `json:"createdAt"`
}

func newBalanceHistoryResponses(entries []*models.BalanceHistory) []BalanceHistoryResponse {
	resp := make([]BalanceHistoryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, BalanceHistoryResponse{
			ID:              e.ID,
			TransactionType: string(e.TransactionType),
			ChangeAmount:    models.FormatAmount(e.ChangeAmount),
			BalanceBefore:   models.FormatAmount(e.BalanceBefore),
			BalanceAfter:    models.FormatAmount(e.BalanceAfter),
			CreatedAt:       e.CreatedAt,
		})
	}
	return resp
}

// RollRequest optionally names the round to roll, defaulting to the active one
type RollRequest struct {
	RoundID int64 `json:"roundId"`
}

// ManualResultRequest sets or clears the override; a null side clears it
type ManualResultRequest struct {
	RoundID int64   `json:"roundId"`
	Side    *string `json:"side" binding:"omitempty,side"`
}

// side returns the requested override, nil when clearing it
func (r ManualResultRequest) side() (*models.Side, error) {
	if r.Side == nil {
		return nil, nil
	}
	side, err := models.ParseSide(*r.Side)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrInvalidSide, err)
	}
	return &side, nil
}

// AutoControlRequest is the body of PUT /api/admin/settings/auto-control
type AutoControlRequest struct {
	Enabled     *bool `json:"enabled" binding:"required"`
	LosePercent *int  `json:"losePercent" binding:"required,min=0,max=100"`
}

// SettingsResponse describes the resolver configuration
type SettingsResponse struct {
	AutoControlEnabled bool      `json:"autoControlEnabled"`
	AutoLosePercent    int       `json:"autoLosePercent"`
	WinMultiplier      string    `json:"winMultiplier"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// LockUserRequest is the body of PATCH /api/admin/users/:id/lock
type LockUserRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

// CreateGiftcodeRequest is the body of POST /api/admin/giftcodes
type CreateGiftcodeRequest struct {
	Code      string     `json:"code" binding:"required"`
	Amount    string     `json:"amount" binding:"required,amount"`
	MaxUses   int        `json:"maxUses" binding:"omitempty,min=1"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// amount returns the giftcode value in minor units
func (r CreateGiftcodeRequest) amount() (int64, error) {
	amount, err := models.ParseAmount(r.Amount)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", service.ErrInvalidAmount, err)
	}
	return amount, nil
}

// GiftcodeResponse describes a giftcode in the admin panel
type GiftcodeResponse struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	Amount      string     `json:"amount"`
	MaxUses     int        `json:"maxUses"`
	CurrentUses int        `json:"currentUses"`
	IsActive    bool       `json:"isActive"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func newGiftcodeResponse(g *models.Giftcode) GiftcodeResponse {
	return GiftcodeResponse{
		ID:          g.ID,
		Code:        g.Code,
		Amount:      models.FormatAmount(g.Amount),
		MaxUses:     g.MaxUses,
		CurrentUses: g.CurrentUses,
		IsActive:    g.IsActive,
		ExpiresAt:   g.ExpiresAt,
		CreatedAt:   g.CreatedAt,
	}
}

// RedeemRequest is the body of POST /api/giftcodes/redeem
type RedeemRequest struct {
	Code string `json:"code" binding:"required"`
}

// RedeemResponse confirms a redemption
type RedeemResponse struct {
	Code       string `json:"code"`
	Amount     string `json:"amount"`
	NewBalance string `json:"newBalance"`
}
