package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/atharva0712/revision-app/internal/domain/entities"
)

// Sender is the subset of the bot API used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Handler answers bot commands and delivers due-card reminders.
type Handler struct {
	bot    Sender
	logger *zap.Logger
}

func NewHandler(bot Sender, logger *zap.Logger) *Handler {
	return &Handler{bot: bot, logger: logger}
}

// SendReminder implements the reminder notifier.
func (h *Handler) SendReminder(chatID int64, payload entities.ReminderPayload) error {
	_, err := h.bot.Send(newMessage(chatID, reminderText(payload)))
	return err
}

// Run polls updates until ctx is cancelled.
func (h *Handler) Run(ctx context.Context, bot *tgbotapi.BotAPI) error {
	h.logger.Info("telegram handler started")
	defer h.logger.Info("telegram handler stopped")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)
	defer bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			h.handleUpdate(update)
		}
	}
}

func (h *Handler) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	chatID := update.Message.Chat.ID
	var msg tgbotapi.MessageConfig
	switch update.Message.Command() {
	case "start":
		msg = newMessage(chatID, startText(chatID))
	case "help":
		msg = tgbotapi.NewMessage(chatID, msgHelp)
	default:
		msg = tgbotapi.NewMessage(chatID, msgUnknownCommand)
	}

	if _, err := h.bot.Send(msg); err != nil {
		h.logger.Error("failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// Commands lists the bot commands registered on startup.
func Commands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "start", Description: "Show your chat id for reminders"},
		{Command: "help", Description: "Help"},
	}
}
