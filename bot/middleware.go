package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"taixiu/bot/common"
	"taixiu/models"
)

type userHandler func(ctx context.Context, msg *tgbotapi.Message, user *models.User) tgbotapi.MessageConfig

// withUserCheck loads or registers the sender before running the handler
func (b *Bot) withUserCheck(ctx context.Context, msg *tgbotapi.Message, handler userHandler) {
	profile := models.TelegramProfile{
		TelegramID: msg.From.ID,
		Username:   msg.From.UserName,
		FirstName:  msg.From.FirstName,
		LastName:   msg.From.LastName,
	}

	user, err := b.userService.GetOrCreateUser(ctx, profile)
	if err != nil {
		log.WithError(err).WithField("telegramID", profile.TelegramID).Error("Failed to get user")
		b.send(common.NewReply(msg.Chat.ID, common.GenericErrorMessage))
		return
	}

	b.send(handler(ctx, msg, user))
}
