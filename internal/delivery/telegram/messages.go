package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/atharva0712/revision-app/internal/domain/entities"
)

const (
	msgUnknownCommand = "Unknown command. Send /start to get your chat id for reminders."
	msgHelp           = "I remind you when flashcards are due for review.\n\n" +
		"/start shows your chat id. Paste it into the notification settings of the dashboard."
)

// md escapes plain text for MarkdownV2.
func md(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

func bold(s string) string {
	return "*" + md(s) + "*"
}

// newMessage creates a message with MarkdownV2 parse mode.
func newMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	return msg
}

func reminderText(p entities.ReminderPayload) string {
	cards := plural(p.DueCount, "flashcard", "flashcards")
	topics := plural(p.TopicCount, "topic", "topics")
	return bold("Time to review") + "\n\n" +
		md(fmt.Sprintf("You have %d %s due across %d %s.", p.DueCount, cards, p.TopicCount, topics)) + "\n" +
		md("A short session now keeps them from slipping.")
}

func startText(chatID int64) string {
	return bold("Revision reminders") + "\n\n" +
		md("Your chat id is ") + "`" + strconv.FormatInt(chatID, 10) + "`" + md(".") + "\n" +
		md("Add it in the dashboard notification settings to get due-card reminders here.")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
