package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"taixiu/config"
	"taixiu/service"
)

// Server exposes the game over HTTP and WebSocket
type Server struct {
	cfg       *config.Config
	users     service.UserService
	rounds    service.RoundService
	betting   service.BettingService
	giftcodes service.GiftcodeService
	limiter   RateLimiter
	feed      *LiveFeed
	now       func() time.Time
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	users service.UserService,
	rounds service.RoundService,
	betting service.BettingService,
	giftcodes service.GiftcodeService,
	limiter RateLimiter,
	feed *LiveFeed,
) *Server {
	if limiter == nil {
		limiter = NoopRateLimiter{}
	}
	if feed == nil {
		feed = NewLiveFeed()
	}
	registerValidators()

	return &Server{
		cfg:       cfg,
		users:     users,
		rounds:    rounds,
		betting:   betting,
		giftcodes: giftcodes,
		limiter:   limiter,
		feed:      feed,
		now:       time.Now,
	}
}

// Router builds the gin engine with every route
func (s *Server) Router() *gin.Engine {
	if s.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(), CORS())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/ws", s.feed.HandleWebSocket)

		games := api.Group("/games")
		{
			games.GET("/current", s.getCurrentRound)
			games.GET("/current/bets", s.listCurrentBets)
			games.GET("/history", s.getHistory)
			games.GET("/:id", s.getRound)
			games.GET("/:id/bets", s.listRoundBets)
		}

		authed := api.Group("")
		authed.Use(RequireUser(s.users))
		{
			authed.GET("/auth/me", s.getMe)
			authed.GET("/me/history", s.getMyHistory)
			authed.POST("/bets", RateLimit(s.limiter, "bet"), s.placeBet)
			authed.POST("/giftcodes/redeem", s.redeemGiftcode)
		}

		admin := api.Group("/admin")
		admin.Use(RequireUser(s.users), RequireAdmin(s.users))
		{
			admin.POST("/games/roll", s.triggerRoll)
			admin.POST("/games/manual-result", s.setManualResult)
			admin.GET("/games/current", s.getAdminCurrentRound)
			admin.GET("/settings", s.getSettings)
			admin.PUT("/settings/auto-control", s.updateAutoControl)
			admin.GET("/users", s.listUsers)
			admin.PATCH("/users/:id/lock", s.setUserLocked)
			admin.POST("/giftcodes", s.createGiftcode)
			admin.GET("/giftcodes", s.listGiftcodes)
			admin.DELETE("/giftcodes/:id", s.deleteGiftcode)
		}
	}

	return router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.cfg.HTTPAddr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server...")
	s.feed.Close()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	return nil
}
