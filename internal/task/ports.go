package task

import (
	"context"
	"time"
)

// User is the minimal user record the engine needs: where to deliver and
// which IANA zone calendar-day decisions are made in.
type User struct {
	ID       string
	Phone    string
	ChatID   int64
	Timezone string
}

// Location resolves the user's IANA zone, falling back to UTC.
func (u *User) Location() *time.Location {
	if u == nil || u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Recipient identifies the delivery target of a reminder. Which field an
// outbound channel uses is up to the Notifier implementation.
type Recipient struct {
	Phone  string
	ChatID int64
}

// Repository persists tasks. Update is conditional on the status the caller
// read (optimistic concurrency): a mismatch yields shared.ErrConflict and
// the whole operation should be retried.
type Repository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id string) (*Task, error)
	// GetActive returns the task only when it belongs to userID and is
	// currently active; otherwise shared.ErrNotFound.
	GetActive(ctx context.Context, id, userID string) (*Task, error)
	GetByTaskNo(ctx context.Context, userID string, taskNo int64) (*Task, error)
	ListByUser(ctx context.Context, userID string) ([]*Task, error)
	// ListActiveForSnooze returns the user's active tasks whose end date is
	// at or after from, or open-ended.
	ListActiveForSnooze(ctx context.Context, userID string, from time.Time) ([]*Task, error)
	// ListUnscheduled returns tasks that lost their scheduler job (crash
	// between delete and enqueue, or a failed activate enqueue): active
	// tasks without a job, plus snoozed tasks that have a snooze window but
	// no pending activate event. Used by the resync sweep.
	ListUnscheduled(ctx context.Context) ([]*Task, error)
	// UpdateGuarded writes the task's mutable fields only if the stored
	// status still equals expect. Zero rows affected maps to
	// shared.ErrConflict.
	UpdateGuarded(ctx context.Context, t *Task, expect Status) error
	SetSchedulerJobID(ctx context.Context, id string, jobID *string) error
}

// UserRepository looks up users for delivery and timezone decisions.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	GetByChatID(ctx context.Context, chatID int64) (*User, error)
}

// Scheduler is the engine's view of the schedule manager façade. All calls
// are fire-and-forget enqueue/delete against the external job queue; the
// real-world delay lives entirely in the queue's own timers.
type Scheduler interface {
	// EnqueueSchedule submits the task's firing schedule (first occurrence
	// at startAt, repeating times times every everyMs) and returns the job
	// handle to store on the task.
	EnqueueSchedule(ctx context.Context, taskID string, startAt time.Time, everyMs int64, times int) (string, error)
	// EnqueueSnooze submits a deferred begin-snooze control event.
	EnqueueSnooze(ctx context.Context, taskID string, at time.Time) (string, error)
	// EnqueueActivate submits a deferred resume-from-snooze control event.
	EnqueueActivate(ctx context.Context, taskID string, at time.Time) (string, error)
	// Delete removes a pending job; a job that already fired or was removed
	// counts as success.
	Delete(ctx context.Context, jobID string) error
}

// Notifier delivers outbound messages. Failures are the notifier's problem:
// they are logged and never propagate back into a state transition.
type Notifier interface {
	SendReminder(ctx context.Context, text string, to Recipient) error
	SendMessage(ctx context.Context, text string, to Recipient) error
}
