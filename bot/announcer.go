package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"taixiu/bot/common"
	"taixiu/events"
)

// Announcer posts round openings and results to a group chat
type Announcer struct {
	sender Sender
	chatID int64
	now    func() time.Time
}

func NewAnnouncer(sender Sender, chatID int64) *Announcer {
	return &Announcer{
		sender: sender,
		chatID: chatID,
		now:    time.Now,
	}
}

// Subscribe registers the announcer on the event bus
func (a *Announcer) Subscribe(bus *events.Bus) {
	bus.SubscribeOrdered(a.handle, events.EventTypeRoundOpened, events.EventTypeRoundFinished)
}

func (a *Announcer) handle(_ context.Context, event events.Event) {
	msg, ok := a.announcementFor(event)
	if !ok {
		return
	}
	if _, err := a.sender.Send(msg); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chatID":    a.chatID,
			"eventType": event.Type(),
		}).Error("Failed to send round announcement")
	}
}

func (a *Announcer) announcementFor(event events.Event) (tgbotapi.MessageConfig, bool) {
	switch e := event.(type) {
	case events.RoundOpenedEvent:
		return common.NewReply(a.chatID, fmt.Sprintf("🎲 Phiên #%d đã mở! Còn %s để đặt cược.",
			e.RoundNumber, common.FormatSecondsLeft(e.BettingEndsAt.Sub(a.now())))), true
	case events.RoundFinishedEvent:
		return common.NewReply(a.chatID, fmt.Sprintf("🎲 Kết quả phiên #%d: %s\nThắng: %d người, thua: %d người. Tổng trả thưởng: %s",
			e.RoundNumber, common.FormatDice(e.Dice, e.Total, e.Result), e.WinnerCount, e.LoserCount, common.FormatAmount(e.TotalPaidOut))), true
	default:
		return tgbotapi.MessageConfig{}, false
	}
}
