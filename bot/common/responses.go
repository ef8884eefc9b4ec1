package common

import (
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taixiu/service"
)

// GenericErrorMessage is shown when the failure is not the player's fault
const GenericErrorMessage = "Đã xảy ra lỗi. Vui lòng thử lại sau."

var errorMessages = []struct {
	err     error
	message string
}{
	{service.ErrInsufficientFunds, "Số dư không đủ."},
	{service.ErrUserLocked, "Tài khoản của bạn đã bị khóa."},
	{service.ErrRoundNotFound, "Chưa có phiên nào."},
	{service.ErrRoundNotAcceptingBets, "Phiên hiện tại đã ngừng nhận cược."},
	{service.ErrGiftcodeNotFound, "Giftcode không tồn tại."},
	{service.ErrGiftcodeInactive, "Giftcode đã bị vô hiệu hóa."},
	{service.ErrGiftcodeExpired, "Giftcode đã hết hạn."},
	{service.ErrGiftcodeExhausted, "Giftcode đã hết lượt sử dụng."},
	{service.ErrGiftcodeAlreadyRedeemed, "Bạn đã sử dụng giftcode này rồi."},
	{service.ErrGiftcodeInvalid, "Giftcode không hợp lệ."},
}

// ErrorMessage translates a service error for the player.
// The second value is false for unexpected errors that should be logged.
func ErrorMessage(err error) (string, bool) {
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return m.message, true
		}
	}
	return GenericErrorMessage, false
}

// NewReply builds an HTML message for a chat
func NewReply(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return msg
}
