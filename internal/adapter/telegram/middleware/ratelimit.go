package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"remindbot/internal/adapter/telegram"
)

// RateLimiter restricts command frequency per user.
type RateLimiter struct {
	mu   sync.Mutex
	last map[int64]time.Time
	rate time.Duration
}

// NewRateLimiter creates a limiter with the given minimum interval.
func NewRateLimiter(rate time.Duration) *RateLimiter {
	return &RateLimiter{last: make(map[int64]time.Time), rate: rate}
}

// Allow returns false when the user hits the limit.
func (r *RateLimiter) Allow(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if t, ok := r.last[userID]; ok && now.Sub(t) < r.rate {
		return false
	}
	r.last[userID] = now
	return true
}

// Middleware checks the rate limit before calling the next handler.
func (r *RateLimiter) Middleware(next telegram.HandlerFunc) telegram.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, upd *models.Update) {
		var uid, chat int64
		if msg := upd.Message; msg != nil && msg.From != nil {
			uid = msg.From.ID
			chat = msg.Chat.ID
		} else if cq := upd.CallbackQuery; cq != nil && cq.From.ID != 0 {
			uid = cq.From.ID
			chat = cq.Message.Message.Chat.ID
		}
		if uid != 0 && !r.Allow(uid) {
			if chat != 0 {
				_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: chat,
					Text:   "too many requests, slow down",
				})
			}
			return
		}
		next(ctx, b, upd)
	}
}
