package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"taixiu/api"
	"taixiu/application"
	"taixiu/bot"
	"taixiu/config"
	"taixiu/database"
	"taixiu/events"
	"taixiu/infrastructure"
	"taixiu/infrastructure/observability"
	"taixiu/repository"
	"taixiu/service"
)

// betRateLimitWindow is the window BET_RATE_LIMIT is counted over
const betRateLimitWindow = time.Second

// Run initializes and starts the application
func Run(ctx context.Context) error {
	// Load configuration
	cfg := config.Get()
	ConfigureLogging(cfg)

	log.Info("Starting taixiu...")

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully")

	if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("Database migrations applied")

	// Initialize event bus
	eventBus := events.NewBus()

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Initialize services
	log.Info("Initializing services...")
	settlementService := service.NewSettlementService(uowFactory, cfg.WinMultiplier)
	resolver := service.NewOutcomeResolver(service.NewSecureDiceSource())
	roundService := service.NewRoundService(uowFactory, resolver, settlementService, cfg)
	bettingService := service.NewBettingService(uowFactory, cfg)
	userService := service.NewUserService(uowFactory, cfg)
	giftcodeService := service.NewGiftcodeService(uowFactory)
	log.Info("Services initialized successfully")

	// Metrics
	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics.Subscribe(eventBus)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Error shutting down metrics")
		}
	}()

	// Domain event export
	if cfg.NATSServers != "" {
		natsClient, err := connectEventExport(ctx, cfg, eventBus, metrics)
		if err != nil {
			return err
		}
		defer func() {
			if err := natsClient.Close(); err != nil {
				log.WithError(err).Warn("Error closing NATS connection")
			}
		}()
	} else {
		log.Info("NATS_SERVERS not set, domain event export disabled")
	}

	// Bet rate limiting
	var limiter api.RateLimiter = api.NoopRateLimiter{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis unreachable at startup, rate limiter will fail open")
		}
		limiter = api.NewRedisRateLimiter(redisClient, cfg.BetRateLimit, betRateLimitWindow)
		log.WithField("limit", cfg.BetRateLimit).Info("Bet rate limiting enabled")
	}

	// Round scheduler
	scheduler := application.NewRoundScheduler(roundService, cfg.Cooldown)
	eventBus.Subscribe(events.EventTypeRoundFinished, func(context.Context, events.Event) {
		scheduler.Nudge()
	})

	// HTTP API and live feed
	feed := api.NewLiveFeed()
	feed.Subscribe(eventBus)
	server := api.NewServer(cfg, userService, roundService, bettingService, giftcodeService, limiter, feed)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(gctx)
	})

	g.Go(func() error {
		stop := scheduler.Start(gctx)
		<-gctx.Done()
		stop()
		return nil
	})

	if cfg.TelegramBotToken != "" {
		botConfig := bot.Config{
			Token:          cfg.TelegramBotToken,
			AnnounceChatID: cfg.TelegramAnnounceChatID,
			WebAppURL:      cfg.WebAppURL,
		}
		telegramBot, err := bot.New(botConfig, userService, roundService, giftcodeService, eventBus)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}
		g.Go(func() error {
			return telegramBot.Run(gctx)
		})
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN not set, Telegram bot disabled")
	}

	log.WithField("environment", cfg.Environment).Info("taixiu is running")
	err = g.Wait()

	log.Info("Shutting down...")
	return err
}

// connectEventExport publishes committed domain events to JetStream
func connectEventExport(ctx context.Context, cfg *config.Config, eventBus *events.Bus, metrics *observability.MetricsProvider) (*infrastructure.NATSClient, error) {
	natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
	if err := natsClient.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	mapper := infrastructure.NewEventSubjectMapper()
	if err := natsClient.EnsureStream(infrastructure.DomainEventStream, mapper.GetAllSubjects()); err != nil {
		natsClient.Close()
		return nil, fmt.Errorf("failed to ensure NATS stream: %w", err)
	}

	publisher := infrastructure.NewNATSEventPublisher(natsClient, mapper)
	publisher.OnPublished(metrics.RecordNATSMessagePublished)
	publisher.Subscribe(eventBus)

	log.WithField("stream", infrastructure.DomainEventStream).Info("Domain event export enabled")
	return natsClient, nil
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the global logger
func ConfigureLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
