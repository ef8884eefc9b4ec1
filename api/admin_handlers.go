package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"taixiu/models"
)

// targetRound returns the requested round id, or the current round's when none was given
func (s *Server) targetRound(c *gin.Context, requested int64) (int64, bool) {
	if requested > 0 {
		return requested, true
	}
	round, err := s.rounds.GetCurrentRound(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return 0, false
	}
	return round.ID, true
}

// bindOptionalJSON binds the body when one was sent
func bindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		abortWith(c, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func (s *Server) getAdminCurrentRound(c *gin.Context) {
	round, err := s.rounds.GetCurrentRound(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAdminRoundResponse(round, s.now()))
}

func (s *Server) triggerRoll(c *gin.Context) {
	var req RollRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	roundID, ok := s.targetRound(c, req.RoundID)
	if !ok {
		return
	}

	admin, _ := currentUser(c)
	log.WithFields(log.Fields{
		"admin_id": admin.TelegramID,
		"round_id": roundID,
	}).Info("Admin triggered roll")

	round, err := s.rounds.TriggerRoll(c.Request.Context(), roundID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAdminRoundResponse(round, s.now()))
}

func (s *Server) setManualResult(c *gin.Context) {
	var req ManualResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	roundID, ok := s.targetRound(c, req.RoundID)
	if !ok {
		return
	}

	side, err := req.side()
	if err != nil {
		respondError(c, err)
		return
	}
	sideField := "cleared"
	if side != nil {
		sideField = string(*side)
	}

	admin, _ := currentUser(c)
	log.WithFields(log.Fields{
		"admin_id": admin.TelegramID,
		"round_id": roundID,
		"side":     sideField,
	}).Info("Admin set manual result")

	round, err := s.rounds.SetManualResult(c.Request.Context(), roundID, side)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAdminRoundResponse(round, s.now()))
}

func (s *Server) getSettings(c *gin.Context) {
	settings, err := s.rounds.GetSettings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.newSettingsResponse(settings))
}

func (s *Server) updateAutoControl(c *gin.Context) {
	var req AutoControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	settings, err := s.rounds.UpdateAutoControl(c.Request.Context(), *req.Enabled, *req.LosePercent)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.newSettingsResponse(settings))
}

func (s *Server) newSettingsResponse(settings *models.GameSettings) SettingsResponse {
	return SettingsResponse{
		AutoControlEnabled: settings.AutoControlEnabled,
		AutoLosePercent:    settings.AutoLosePercent,
		WinMultiplier:      s.cfg.WinMultiplier.String(),
		UpdatedAt:          settings.UpdatedAt,
	}
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.users.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, newUserResponse(user, s.users.IsAdmin(user)))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) setUserLocked(c *gin.Context) {
	telegramID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req LockUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	user, err := s.users.SetUserLocked(c.Request.Context(), telegramID, *req.Locked)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user, s.users.IsAdmin(user)))
}

func (s *Server) createGiftcode(c *gin.Context) {
	var req CreateGiftcodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	amount, err := req.amount()
	if err != nil {
		respondError(c, err)
		return
	}
	maxUses := req.MaxUses
	if maxUses == 0 {
		maxUses = 1
	}

	giftcode, err := s.giftcodes.CreateGiftcode(c.Request.Context(), req.Code, amount, maxUses, req.ExpiresAt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newGiftcodeResponse(giftcode))
}

func (s *Server) listGiftcodes(c *gin.Context) {
	giftcodes, err := s.giftcodes.ListGiftcodes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]GiftcodeResponse, 0, len(giftcodes))
	for _, g := range giftcodes {
		resp = append(resp, newGiftcodeResponse(g))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) deleteGiftcode(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := s.giftcodes.DeleteGiftcode(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
