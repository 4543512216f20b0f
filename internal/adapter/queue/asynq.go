// Package queue adapts the external job queue (asynq over Redis) to the
// schedule.JobQueue port.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"remindbot/internal/schedule"
	"remindbot/internal/shared"
)

// TypeReminderEvent is the asynq task type all scheduled events share; the
// action tag inside the payload decides what a firing means.
const TypeReminderEvent = "reminder:event"

// Options configures the adapter.
type Options struct {
	// Queue is the asynq queue name (default "reminders").
	Queue string
	// MaxRetry bounds redelivery attempts per firing.
	MaxRetry int
}

// AsynqQueue implements schedule.JobQueue. The event id doubles as the
// asynq task id, so at most one pending entry exists per event and Delete
// can address it directly.
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	maxRetry  int
	log       *slog.Logger
}

// New creates the adapter from a Redis connection description.
func New(redisOpt asynq.RedisClientOpt, opts Options, log *slog.Logger) *AsynqQueue {
	if opts.Queue == "" {
		opts.Queue = "reminders"
	}
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		queue:     opts.Queue,
		maxRetry:  opts.MaxRetry,
		log:       log,
	}
}

// Enqueue submits the event for processing at its fire instant.
func (q *AsynqQueue) Enqueue(ctx context.Context, ev schedule.Event) (string, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TypeReminderEvent, payload),
		asynq.TaskID(ev.EventID),
		asynq.ProcessAt(ev.FireAt),
		asynq.Queue(q.queue),
		asynq.MaxRetry(q.maxRetry),
	)
	switch {
	case err == nil:
		return info.ID, nil
	case errors.Is(err, asynq.ErrTaskIDConflict):
		// An entry with this event id already exists (e.g. a redelivered
		// firing re-submitting its successor). Surface it as a conflict so
		// callers can treat the enqueue as already done.
		return "", shared.MarkKind(err, shared.KindConflict)
	default:
		return "", err
	}
}

// Delete removes the pending entry for the event. An entry that already
// fired or was removed earlier counts as success.
func (q *AsynqQueue) Delete(ctx context.Context, eventID string) error {
	err := q.inspector.DeleteTask(q.queue, eventID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, asynq.ErrTaskNotFound), errors.Is(err, asynq.ErrQueueNotFound):
		return nil
	default:
		return err
	}
}

// Close releases the underlying Redis connections.
func (q *AsynqQueue) Close() error {
	ierr := q.inspector.Close()
	if err := q.client.Close(); err != nil {
		return err
	}
	return ierr
}
