package common

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"taixiu/models"
)

const minorPerMajor = 100

var printer = message.NewPrinter(language.Vietnamese)

var diceFaces = [...]string{"⚀", "⚁", "⚂", "⚃", "⚄", "⚅"}

// FormatAmount formats minor units with Vietnamese separators, e.g. 1.250,50
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return sign + printer.Sprintf("%d", minor/minorPerMajor) + fmt.Sprintf(",%02d", minor%minorPerMajor)
}

// SideLabel returns the name players use for a side
func SideLabel(side models.Side) string {
	switch side {
	case models.SideHigh:
		return "TÀI"
	case models.SideLow:
		return "XỈU"
	default:
		return string(side)
	}
}

// FormatDice renders a roll like "⚃ ⚄ ⚅ = 15 → TÀI"
func FormatDice(dice [3]int, total int, result models.Side) string {
	faces := make([]string, 0, len(dice))
	for _, d := range dice {
		if d >= 1 && d <= len(diceFaces) {
			faces = append(faces, diceFaces[d-1])
		} else {
			faces = append(faces, "?")
		}
	}
	return fmt.Sprintf("%s = %d → <b>%s</b>", strings.Join(faces, " "), total, SideLabel(result))
}

// FormatOutcome renders a resolved round outcome
func FormatOutcome(outcome *models.Outcome) string {
	if outcome == nil {
		return "chưa có kết quả"
	}
	return FormatDice(outcome.Dice, outcome.Total, outcome.Result)
}

// FormatSecondsLeft rounds the remaining time up to whole seconds
func FormatSecondsLeft(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d giây", seconds)
}

// EscapeHTML escapes user supplied text for HTML parse mode
func EscapeHTML(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}
