package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"taixiu/bot/common"
	"taixiu/models"
)

var commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Mở trò chơi Tài Xỉu"},
	{Command: "balance", Description: "Xem số dư và giao dịch gần đây"},
	{Command: "round", Description: "Xem phiên hiện tại"},
	{Command: "history", Description: "Kết quả các phiên gần đây"},
	{Command: "redeem", Description: "Nhập giftcode"},
	{Command: "help", Description: "Hướng dẫn"},
}

const helpText = `🎲 <b>Tài Xỉu</b>
Mỗi phiên có 30 giây để đặt cược. Ba viên xúc xắc có tổng 11-18 là TÀI, 3-10 là XỈU.
Thắng nhận 1,95 lần tiền cược.

/start - mở trò chơi
/balance - số dư
/round - phiên hiện tại
/history - kết quả gần đây
/redeem &lt;mã&gt; - nhập giftcode`

// registerCommands publishes the command menu to Telegram
func (b *Bot) registerCommands() error {
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}

// HandleUpdate dispatches a single update
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}

	log.WithFields(log.Fields{
		"command":    msg.Command(),
		"telegramID": msg.From.ID,
	}).Debug("Received command")

	switch msg.Command() {
	case "start":
		b.withUserCheck(ctx, msg, b.handleStart)
	case "balance":
		b.withUserCheck(ctx, msg, b.account.HandleCommand)
	case "redeem":
		b.withUserCheck(ctx, msg, b.giftcodes.HandleCommand)
	case "round":
		b.send(b.rounds.HandleCommand(ctx, msg))
	case "history":
		b.send(b.rounds.HandleHistory(ctx, msg))
	case "help":
		b.send(common.NewReply(msg.Chat.ID, helpText))
	default:
		b.send(common.NewReply(msg.Chat.ID, "Lệnh không hợp lệ. Gõ /help để xem hướng dẫn."))
	}
}

func (b *Bot) handleStart(_ context.Context, msg *tgbotapi.Message, user *models.User) tgbotapi.MessageConfig {
	reply := common.NewReply(msg.Chat.ID, fmt.Sprintf("Chào %s! 🎲\nSố dư của bạn: <b>%s</b>\n\n%s",
		common.EscapeHTML(user.DisplayName()), common.FormatAmount(user.Balance), helpText))
	if b.config.WebAppURL != "" {
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("🎲 Chơi ngay", b.config.WebAppURL),
			),
		)
	}
	return reply
}
