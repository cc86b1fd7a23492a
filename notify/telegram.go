package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of the bot API used to push messages
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends events as chat messages
type Telegram struct {
	bot    Sender
	chatID int64
}

// NewTelegram authorizes a bot with token and targets chatID
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}
	return NewTelegramWithSender(bot, chatID), nil
}

func NewTelegramWithSender(bot Sender, chatID int64) *Telegram {
	return &Telegram{bot: bot, chatID: chatID}
}

func (t *Telegram) Notify(_ context.Context, ev Event) error {
	icon := "✅"
	if ev.Failed() {
		icon = "❌"
	}

	text := fmt.Sprintf("%s %s\n\n%s", icon, Title, ev.Message())
	if !ev.Failed() && ev.Location != "" {
		text += "\n\n" + ev.Location
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}
