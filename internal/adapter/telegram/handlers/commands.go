// Package handlers routes Telegram commands to the reminder engine.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"remindbot/internal/shared"
	"remindbot/internal/task"
)

// Router holds the handler dependencies and dispatches commands.
type Router struct {
	svc   *task.Service
	users task.UserRepository
	log   *slog.Logger
}

// NewRouter creates the command router.
func NewRouter(svc *task.Service, users task.UserRepository, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{svc: svc, users: users, log: log}
}

// Handle routes an update to the matching command handler.
func (r *Router) Handle(ctx context.Context, b *bot.Bot, upd *models.Update) {
	msg := upd.Message
	if msg == nil || !strings.HasPrefix(msg.Text, "/") {
		return
	}
	parts := strings.Fields(msg.Text)
	cmd := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]

	switch cmd {
	case "start":
		r.Start(ctx, b, msg)
	case "list":
		r.List(ctx, b, msg)
	case "cancel":
		r.Cancel(ctx, b, msg, args)
	case "cancelall":
		r.CancelAll(ctx, b, msg)
	case "snooze":
		r.Snooze(ctx, b, msg, args)
	case "snoozeall":
		r.SnoozeAll(ctx, b, msg, args)
	}
}

// Start handles /start.
func (r *Router) Start(ctx context.Context, b *bot.Bot, msg *models.Message) {
	r.reply(ctx, b, msg.Chat.ID,
		"Hi! I manage your reminders.\n"+
			"/list - show reminders\n"+
			"/cancel N - cancel reminder number N\n"+
			"/cancelall - cancel everything\n"+
			"/snooze N D - pause reminder N for D days\n"+
			"/snoozeall D - pause everything for D days")
}

// List handles /list: the user's current reminders, one line each.
func (r *Router) List(ctx context.Context, b *bot.Bot, msg *models.Message) {
	user, ok := r.resolveUser(ctx, b, msg)
	if !ok {
		return
	}
	tasks, err := r.svc.List(ctx, user.ID)
	if err != nil {
		r.fail(ctx, b, msg.Chat.ID, "list reminders", err)
		return
	}

	var sb strings.Builder
	for _, t := range tasks {
		if t.Status != task.StatusActive && t.Status != task.StatusSnoozed {
			continue
		}
		sb.WriteString(task.FormatReminder(t.TaskNo, t.StartDate.In(user.Location())))
		sb.WriteString(" - ")
		sb.WriteString(t.ReminderText)
		if t.Status == task.StatusSnoozed {
			sb.WriteString(" (snoozed)")
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		r.reply(ctx, b, msg.Chat.ID, "No reminders yet.")
		return
	}
	r.reply(ctx, b, msg.Chat.ID, sb.String())
}

// Cancel handles /cancel N. A reply to a reminder message works too: the
// number is parsed out of the quoted "Reminder #NNNN" label.
func (r *Router) Cancel(ctx context.Context, b *bot.Bot, msg *models.Message, args []string) {
	user, ok := r.resolveUser(ctx, b, msg)
	if !ok {
		return
	}
	taskNo, ok := r.taskNoFrom(msg, args)
	if !ok {
		r.reply(ctx, b, msg.Chat.ID, "Which one? Use /cancel N or reply to a reminder.")
		return
	}

	t, err := r.svc.CancelByNumber(ctx, user.ID, taskNo)
	if err != nil {
		if shared.IsNotFound(err) {
			r.reply(ctx, b, msg.Chat.ID, fmt.Sprintf("Reminder #%04d not found.", taskNo))
			return
		}
		r.fail(ctx, b, msg.Chat.ID, "cancel reminder", err)
		return
	}
	r.reply(ctx, b, msg.Chat.ID, fmt.Sprintf("Cancelled %s.", task.FormatReminder(t.TaskNo, t.StartDate.In(user.Location()))))
}

// CancelAll handles /cancelall: cancel every current reminder.
func (r *Router) CancelAll(ctx context.Context, b *bot.Bot, msg *models.Message) {
	user, ok := r.resolveUser(ctx, b, msg)
	if !ok {
		return
	}
	n, err := r.svc.CancelAll(ctx, user.ID)
	if err != nil {
		r.fail(ctx, b, msg.Chat.ID, "cancel reminders", err)
		return
	}
	if n == 0 {
		r.reply(ctx, b, msg.Chat.ID, "Nothing to cancel.")
		return
	}
	r.reply(ctx, b, msg.Chat.ID, fmt.Sprintf("Cancelled %d reminder(s).", n))
}

// Snooze handles /snooze N D: pause reminder N for D days starting today.
func (r *Router) Snooze(ctx context.Context, b *bot.Bot, msg *models.Message, args []string) {
	user, ok := r.resolveUser(ctx, b, msg)
	if !ok {
		return
	}
	if len(args) < 2 {
		r.reply(ctx, b, msg.Chat.ID, "Usage: /snooze N D (reminder number, days).")
		return
	}
	taskNo, err1 := strconv.ParseInt(args[0], 10, 64)
	days, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil || days < 0 {
		r.reply(ctx, b, msg.Chat.ID, "Usage: /snooze N D (reminder number, days).")
		return
	}

	t, err := r.svc.GetByNumber(ctx, user.ID, taskNo)
	if err != nil {
		if shared.IsNotFound(err) {
			r.reply(ctx, b, msg.Chat.ID, fmt.Sprintf("Reminder #%04d not found.", taskNo))
			return
		}
		r.fail(ctx, b, msg.Chat.ID, "snooze reminder", err)
		return
	}
	if err := r.svc.Snooze(ctx, user.ID, t.ID, time.Now(), days); err != nil {
		r.fail(ctx, b, msg.Chat.ID, "snooze reminder", err)
		return
	}
	r.reply(ctx, b, msg.Chat.ID, fmt.Sprintf("Snoozed reminder #%04d for %d day(s).", taskNo, days))
}

// SnoozeAll handles /snoozeall D: pause every reminder for D days.
func (r *Router) SnoozeAll(ctx context.Context, b *bot.Bot, msg *models.Message, args []string) {
	user, ok := r.resolveUser(ctx, b, msg)
	if !ok {
		return
	}
	if len(args) < 1 {
		r.reply(ctx, b, msg.Chat.ID, "Usage: /snoozeall D (days).")
		return
	}
	days, err := strconv.Atoi(args[0])
	if err != nil || days < 0 {
		r.reply(ctx, b, msg.Chat.ID, "Usage: /snoozeall D (days).")
		return
	}

	if err := r.svc.SnoozeAll(ctx, user.ID, time.Now(), days); err != nil {
		r.fail(ctx, b, msg.Chat.ID, "snooze reminders", err)
		return
	}
	r.reply(ctx, b, msg.Chat.ID, fmt.Sprintf("Snoozed everything for %d day(s).", days))
}

// taskNoFrom extracts the reminder number from args, falling back to the
// "Reminder #NNNN" label of a replied-to message.
func (r *Router) taskNoFrom(msg *models.Message, args []string) (int64, bool) {
	if len(args) > 0 {
		if no, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			return no, true
		}
	}
	if msg.ReplyToMessage != nil {
		return task.ExtractTaskNo(msg.ReplyToMessage.Text)
	}
	return 0, false
}

func (r *Router) resolveUser(ctx context.Context, b *bot.Bot, msg *models.Message) (*task.User, bool) {
	user, err := r.users.GetByChatID(ctx, msg.Chat.ID)
	if err != nil {
		if shared.IsNotFound(err) {
			r.reply(ctx, b, msg.Chat.ID, "This chat is not registered yet.")
		} else {
			r.fail(ctx, b, msg.Chat.ID, "resolve user", err)
		}
		return nil, false
	}
	return user, true
}

func (r *Router) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		r.log.Warn("failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (r *Router) fail(ctx context.Context, b *bot.Bot, chatID int64, op string, err error) {
	r.log.Error("command failed", "op", op, "chat_id", chatID, "error", err)
	r.reply(ctx, b, chatID, "Something went wrong, try again later.")
}
