package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of the Telegram bot API used for notifications.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts notifications to one chat.
type TelegramNotifier struct {
	sender Sender
	chatID int64
	logger zerolog.Logger
}

// NewTelegramNotifier creates a bot API client for token.
func NewTelegramNotifier(token string, chatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return NewTelegramNotifierWithSender(bot, chatID, logger), nil
}

// NewTelegramNotifierWithSender uses an existing sender.
func NewTelegramNotifierWithSender(sender Sender, chatID int64, logger *zerolog.Logger) *TelegramNotifier {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "telegram").Logger()
	}
	return &TelegramNotifier{sender: sender, chatID: chatID, logger: l}
}

func (t *TelegramNotifier) Success(msg string) { t.send("✅ " + msg) }

func (t *TelegramNotifier) Error(msg string) { t.send("❌ " + msg) }

func (t *TelegramNotifier) Loading(msg string) { t.send("⏳ " + msg) }

func (t *TelegramNotifier) send(text string) {
	if _, err := t.sender.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		t.logger.Error().Err(err).Int64("chat_id", t.chatID).Msg("failed to send notification")
	}
}
