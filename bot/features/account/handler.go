package account

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"taixiu/bot/common"
	"taixiu/models"
)

var transactionLabels = map[models.TransactionType]string{
	models.TransactionTypeInitial:        "Số dư ban đầu",
	models.TransactionTypeBetPlaced:      "Đặt cược",
	models.TransactionTypeBetPayout:      "Trả thưởng",
	models.TransactionTypeGiftcodeRedeem: "Giftcode",
}

func (f *Feature) handleBalance(ctx context.Context, chatID int64, user *models.User) tgbotapi.MessageConfig {
	var b strings.Builder
	fmt.Fprintf(&b, "💰 Số dư của %s: <b>%s</b>", common.EscapeHTML(user.DisplayName()), common.FormatAmount(user.Balance))
	if user.IsLocked {
		b.WriteString("\n🔒 Tài khoản đang bị khóa.")
	}

	entries, err := f.userService.GetBalanceHistory(ctx, user.TelegramID, recentEntries)
	if err != nil {
		// The balance itself is still worth showing
		log.WithError(err).WithField("telegramID", user.TelegramID).Error("Failed to load balance history")
		return common.NewReply(chatID, b.String())
	}

	if len(entries) > 0 {
		b.WriteString("\n\nGiao dịch gần đây:")
		for _, entry := range entries {
			fmt.Fprintf(&b, "\n%s %s: %s", changeSign(entry.ChangeAmount), transactionLabel(entry.TransactionType), common.FormatAmount(abs(entry.ChangeAmount)))
		}
	}

	return common.NewReply(chatID, b.String())
}

func transactionLabel(t models.TransactionType) string {
	if label, ok := transactionLabels[t]; ok {
		return label
	}
	return string(t)
}

func changeSign(amount int64) string {
	if amount < 0 {
		return "➖"
	}
	return "➕"
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
