package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taixiu/models"
	"taixiu/service"
)

func (s *Server) getCurrentRound(c *gin.Context) {
	round, err := s.rounds.GetCurrentRound(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRoundResponse(round, s.now()))
}

func (s *Server) getRound(c *gin.Context) {
	roundID, ok := parseIDParam(c)
	if !ok {
		return
	}

	round, err := s.rounds.GetRound(c.Request.Context(), roundID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRoundResponse(round, s.now()))
}

func (s *Server) getHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	rounds, err := s.rounds.GetRecentRounds(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRoundResponses(rounds, s.now()))
}

func (s *Server) listCurrentBets(c *gin.Context) {
	round, err := s.rounds.GetCurrentRound(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrRoundNotFound) {
			c.JSON(http.StatusOK, RoundBetsResponse{Bets: []BetResponse{}, TotalHigh: "0.00", TotalLow: "0.00"})
			return
		}
		respondError(c, err)
		return
	}
	s.writeRoundBets(c, round.ID)
}

func (s *Server) listRoundBets(c *gin.Context) {
	roundID, ok := parseIDParam(c)
	if !ok {
		return
	}
	s.writeRoundBets(c, roundID)
}

func (s *Server) writeRoundBets(c *gin.Context, roundID int64) {
	bets, err := s.betting.ListBets(c.Request.Context(), roundID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRoundBetsResponse(roundID, bets))
}

func (s *Server) placeBet(c *gin.Context) {
	user, _ := currentUser(c)

	var req PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	side, amount, err := req.parse()
	if err != nil {
		respondError(c, err)
		return
	}

	bet, err := s.betting.PlaceBet(c.Request.Context(), user.TelegramID, req.RoundID, side, amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newBetResponse(bet))
}

func (s *Server) getMe(c *gin.Context) {
	user, _ := currentUser(c)
	c.JSON(http.StatusOK, newUserResponse(user, s.users.IsAdmin(user)))
}

func (s *Server) getMyHistory(c *gin.Context) {
	user, _ := currentUser(c)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	entries, err := s.users.GetBalanceHistory(c.Request.Context(), user.TelegramID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBalanceHistoryResponses(entries))
}

func (s *Server) redeemGiftcode(c *gin.Context) {
	user, _ := currentUser(c)

	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.giftcodes.Redeem(c.Request.Context(), user.TelegramID, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, RedeemResponse{
		Code:       result.Code,
		Amount:     models.FormatAmount(result.Amount),
		NewBalance: models.FormatAmount(result.NewBalance),
	})
}

func parseIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWith(c, http.StatusBadRequest, "invalid_request", "invalid id")
		return 0, false
	}
	return id, true
}
