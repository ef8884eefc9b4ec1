package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"taixiu/bot/features/account"
	"taixiu/bot/features/giftcode"
	"taixiu/bot/features/rounds"
	"taixiu/events"
	"taixiu/service"
)

// Config holds bot configuration
type Config struct {
	Token          string
	AnnounceChatID int64
	WebAppURL      string
}

// Sender delivers messages to Telegram
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// API is the part of the Telegram client the bot uses
type API interface {
	Sender
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	config      Config
	api         API
	userService service.UserService

	account   *account.Feature
	rounds    *rounds.Feature
	giftcodes *giftcode.Feature
}

// New connects to Telegram with the configured token
func New(config Config, userService service.UserService, roundService service.RoundService, giftcodeService service.GiftcodeService, eventBus *events.Bus) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating telegram client: %w", err)
	}
	log.WithField("username", api.Self.UserName).Info("Authorized on Telegram")

	return NewWithAPI(config, api, userService, roundService, giftcodeService, eventBus), nil
}

// NewWithAPI builds a bot around an existing client
func NewWithAPI(config Config, api API, userService service.UserService, roundService service.RoundService, giftcodeService service.GiftcodeService, eventBus *events.Bus) *Bot {
	bot := &Bot{
		config:      config,
		api:         api,
		userService: userService,
		account:     account.New(userService),
		rounds:      rounds.New(roundService),
		giftcodes:   giftcode.New(giftcodeService),
	}

	if config.AnnounceChatID != 0 && eventBus != nil {
		NewAnnouncer(api, config.AnnounceChatID).Subscribe(eventBus)
		log.WithField("chatID", config.AnnounceChatID).Info("Round announcements enabled")
	}

	return bot
}

// Run receives updates until the context is cancelled
func (b *Bot) Run(ctx context.Context) error {
	if err := b.registerCommands(); err != nil {
		log.WithError(err).Warn("Failed to register bot commands")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	log.Info("Telegram bot started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			log.Info("Telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chatID", msg.ChatID).Error("Failed to send message")
	}
}
