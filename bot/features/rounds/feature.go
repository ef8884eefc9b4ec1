package rounds

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taixiu/service"
)

// historyLimit is how many finished rounds /history lists
const historyLimit = 10

// Feature answers round status and result history commands
type Feature struct {
	roundService service.RoundService
	now          func() time.Time
}

func New(roundService service.RoundService) *Feature {
	return &Feature{
		roundService: roundService,
		now:          time.Now,
	}
}

// HandleCommand handles the /round command
func (f *Feature) HandleCommand(ctx context.Context, msg *tgbotapi.Message) tgbotapi.MessageConfig {
	return f.handleCurrentRound(ctx, msg.Chat.ID)
}

// HandleHistory handles the /history command
func (f *Feature) HandleHistory(ctx context.Context, msg *tgbotapi.Message) tgbotapi.MessageConfig {
	return f.handleHistory(ctx, msg.Chat.ID)
}
