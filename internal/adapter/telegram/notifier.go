package telegram

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"

	"remindbot/internal/shared"
	"remindbot/internal/task"
)

// Notifier delivers reminders to Telegram chats.
type Notifier struct {
	bot *bot.Bot
	log *slog.Logger
}

// NewNotifier creates a Telegram notifier.
func NewNotifier(b *bot.Bot, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{bot: b, log: log}
}

var _ task.Notifier = (*Notifier)(nil)

// SendReminder delivers a reminder text to the recipient's chat.
func (n *Notifier) SendReminder(ctx context.Context, text string, to task.Recipient) error {
	return n.send(ctx, text, to)
}

// SendMessage delivers a plain notification, e.g. a cancel confirmation.
func (n *Notifier) SendMessage(ctx context.Context, text string, to task.Recipient) error {
	return n.send(ctx, text, to)
}

func (n *Notifier) send(ctx context.Context, text string, to task.Recipient) error {
	if to.ChatID == 0 {
		return shared.Wrap(shared.ErrValidation, "recipient has no chat id")
	}
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: to.ChatID, Text: text})
	if err != nil {
		return shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "send telegram message")
	}
	return nil
}
