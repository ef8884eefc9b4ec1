package giftcode

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"taixiu/bot/common"
	"taixiu/models"
)

func (f *Feature) handleRedeem(ctx context.Context, chatID int64, user *models.User, args string) tgbotapi.MessageConfig {
	code := strings.TrimSpace(args)
	if code == "" {
		return common.NewReply(chatID, "Cú pháp: /redeem &lt;mã giftcode&gt;")
	}

	result, err := f.giftcodeService.Redeem(ctx, user.TelegramID, code)
	if err != nil {
		message, known := common.ErrorMessage(err)
		if !known {
			log.WithError(err).WithFields(log.Fields{
				"telegramID": user.TelegramID,
				"code":       code,
			}).Error("Failed to redeem giftcode")
		}
		return common.NewReply(chatID, message)
	}

	return common.NewReply(chatID, fmt.Sprintf("🎁 Nhận thành công <b>%s</b> từ giftcode %s.\nSố dư mới: <b>%s</b>",
		common.FormatAmount(result.Amount), common.EscapeHTML(result.Code), common.FormatAmount(result.NewBalance)))
}
