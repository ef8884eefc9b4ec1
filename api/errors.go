package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"taixiu/service"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
	{service.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{service.ErrInvalidSide, http.StatusBadRequest, "invalid_side"},
	{service.ErrResolverConfigInvalid, http.StatusBadRequest, "invalid_resolver_config"},
	{service.ErrGiftcodeInvalid, http.StatusBadRequest, "invalid_giftcode"},
	{service.ErrGiftcodeInactive, http.StatusBadRequest, "giftcode_inactive"},
	{service.ErrGiftcodeExpired, http.StatusBadRequest, "giftcode_expired"},
	{service.ErrGiftcodeExhausted, http.StatusBadRequest, "giftcode_exhausted"},
	{service.ErrGiftcodeAlreadyRedeemed, http.StatusConflict, "giftcode_already_redeemed"},
	{service.ErrRoundNotAcceptingBets, http.StatusConflict, "round_not_accepting_bets"},
	{service.ErrAlreadySettled, http.StatusConflict, "already_settled"},
	{service.ErrRoundAlreadyActive, http.StatusConflict, "round_already_active"},
	{service.ErrUserLocked, http.StatusForbidden, "user_locked"},
	{service.ErrRoundNotFound, http.StatusNotFound, "round_not_found"},
	{service.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{service.ErrGiftcodeNotFound, http.StatusNotFound, "giftcode_not_found"},
}

// errorStatus maps a service error to its HTTP status and stable code
func errorStatus(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondError writes the mapped error. Internal errors are logged and hidden from the client.
func respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"request_id": c.GetString(requestIDKey),
			"path":       c.FullPath(),
			"error":      err,
		}).Error("Request failed")
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code})
}

func abortWith(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code})
}
