package rounds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"taixiu/bot/common"
	"taixiu/models"
	"taixiu/service"
)

func (f *Feature) handleCurrentRound(ctx context.Context, chatID int64) tgbotapi.MessageConfig {
	round, err := f.roundService.GetCurrentRound(ctx)
	if errors.Is(err, service.ErrRoundNotFound) {
		return common.NewReply(chatID, "Chưa có phiên nào. Vui lòng quay lại sau ít phút.")
	}
	if err != nil {
		log.WithError(err).Error("Failed to load current round")
		return common.NewReply(chatID, common.GenericErrorMessage)
	}

	return common.NewReply(chatID, describeRound(round, f.now()))
}

func (f *Feature) handleHistory(ctx context.Context, chatID int64) tgbotapi.MessageConfig {
	rounds, err := f.roundService.GetRecentRounds(ctx, historyLimit)
	if err != nil {
		log.WithError(err).Error("Failed to load round history")
		return common.NewReply(chatID, common.GenericErrorMessage)
	}
	if len(rounds) == 0 {
		return common.NewReply(chatID, "Chưa có phiên nào kết thúc.")
	}

	var b strings.Builder
	b.WriteString("📜 Kết quả gần đây:")
	for _, round := range rounds {
		fmt.Fprintf(&b, "\n#%d  %s", round.RoundNumber, common.FormatOutcome(round.Outcome))
	}
	return common.NewReply(chatID, b.String())
}

func describeRound(round *models.Round, now time.Time) string {
	switch round.Status {
	case models.RoundStatusBetting:
		if round.AcceptsBetsAt(now) {
			return fmt.Sprintf("🎲 Phiên #%d đang nhận cược, còn %s.", round.RoundNumber, common.FormatSecondsLeft(round.BettingEndsAt.Sub(now)))
		}
		return fmt.Sprintf("🎲 Phiên #%d đã hết thời gian đặt cược.", round.RoundNumber)
	case models.RoundStatusRolling:
		return fmt.Sprintf("🎲 Phiên #%d đang lắc xúc xắc...", round.RoundNumber)
	default:
		return fmt.Sprintf("🎲 Phiên #%d đã kết thúc: %s\nPhiên mới sẽ bắt đầu trong giây lát.", round.RoundNumber, common.FormatOutcome(round.Outcome))
	}
}
