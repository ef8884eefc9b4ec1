package account

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taixiu/models"
	"taixiu/service"
)

// recentEntries is how many ledger entries /balance lists
const recentEntries = 5

type Feature struct {
	userService service.UserService
}

func New(userService service.UserService) *Feature {
	return &Feature{
		userService: userService,
	}
}

// HandleCommand handles the /balance command
func (f *Feature) HandleCommand(ctx context.Context, msg *tgbotapi.Message, user *models.User) tgbotapi.MessageConfig {
	return f.handleBalance(ctx, msg.Chat.ID, user)
}
