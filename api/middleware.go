package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taixiu/models"
	"taixiu/service"
)

const (
	requestIDKey    = "request_id"
	userKey         = "user"
	requestIDHeader = "X-Request-ID"
)

// Telegram identity headers set by the mini-app
const (
	headerTelegramUserID    = "X-Telegram-User-Id"
	headerTelegramUsername  = "X-Telegram-Username"
	headerTelegramFirstName = "X-Telegram-First-Name"
	headerTelegramLastName  = "X-Telegram-Last-Name"
)

// RequestID tags every request with an id, reusing the caller's when present
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := log.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start),
		}
		if user, ok := currentUser(c); ok {
			fields["user_id"] = user.TelegramID
		}

		entry := log.WithFields(fields)
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("HTTP request")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("HTTP request")
		default:
			entry.Debug("HTTP request")
		}
	}
}

// CORS allows the mini-app to call the API from its own origin
func CORS() gin.HandlerFunc {
	allowHeaders := strings.Join([]string{
		"Content-Type",
		requestIDHeader,
		headerTelegramUserID,
		headerTelegramUsername,
		headerTelegramFirstName,
		headerTelegramLastName,
	}, ", ")

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", allowHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequireUser resolves the caller from the Telegram headers, registering unknown users
func RequireUser(users service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(headerTelegramUserID)
		telegramID, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || telegramID <= 0 {
			abortWith(c, http.StatusUnauthorized, "unauthorized", "missing or invalid Telegram user id")
			return
		}

		user, err := users.GetOrCreateUser(c.Request.Context(), models.TelegramProfile{
			TelegramID: telegramID,
			Username:   c.GetHeader(headerTelegramUsername),
			FirstName:  c.GetHeader(headerTelegramFirstName),
			LastName:   c.GetHeader(headerTelegramLastName),
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// RequireAdmin rejects callers that are not administrators. Must run after RequireUser.
func RequireAdmin(users service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok || !users.IsAdmin(user) {
			abortWith(c, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		c.Next()
	}
}

// RateLimit throttles requests per caller
func RateLimit(limiter RateLimiter, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), user.TelegramID, action)
		if err != nil {
			// Fail open when Redis is unavailable
			log.WithError(err).WithField("user_id", user.TelegramID).Warn("Rate limit check failed")
		} else if !allowed {
			abortWith(c, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
