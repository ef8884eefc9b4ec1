package giftcode

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taixiu/models"
	"taixiu/service"
)

type Feature struct {
	giftcodeService service.GiftcodeService
}

func New(giftcodeService service.GiftcodeService) *Feature {
	return &Feature{
		giftcodeService: giftcodeService,
	}
}

// HandleCommand handles the /redeem command
func (f *Feature) HandleCommand(ctx context.Context, msg *tgbotapi.Message, user *models.User) tgbotapi.MessageConfig {
	return f.handleRedeem(ctx, msg.Chat.ID, user, msg.CommandArguments())
}
