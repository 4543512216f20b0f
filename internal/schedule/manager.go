package schedule

import (
	"context"
	"log/slog"
	"time"

	"remindbot/internal/shared"
)

// JobQueue is the external delayed-execution service. Delivery is
// at-least-once: dispatch must tolerate duplicate or late callbacks for
// already-terminal tasks.
type JobQueue interface {
	// Enqueue submits the event for execution at ev.FireAt and returns the
	// job handle (the event id).
	Enqueue(ctx context.Context, ev Event) (string, error)
	// Delete removes a pending job. Implementations treat "already gone"
	// as success: the job may have fired or been deleted before.
	Delete(ctx context.Context, eventID string) error
}

// Handler receives routed callbacks. Implemented by the task service.
type Handler interface {
	TriggerReminder(ctx context.Context, eventID, taskID string) error
	BeginSnooze(ctx context.Context, taskID string) error
	ActivateSnoozed(ctx context.Context, taskID string) error
	// RenewJob records the task's new pending job handle after a firing
	// re-enqueued the schedule's next occurrence.
	RenewJob(ctx context.Context, taskID, jobID string) error
}

// Manager builds, submits and deletes scheduled events, and dispatches
// firing callbacks by their action tag.
type Manager struct {
	queue   JobQueue
	handler Handler
	log     *slog.Logger
}

// NewManager creates the façade. The handler is attached afterwards with
// SetHandler because the task service and the manager reference each other.
func NewManager(queue JobQueue, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{queue: queue, log: log}
}

// SetHandler attaches the dispatch target.
func (m *Manager) SetHandler(h Handler) { m.handler = h }

// EnqueueSchedule submits a task's firing schedule: first occurrence at
// startAt, repeated times times every everyMs milliseconds.
func (m *Manager) EnqueueSchedule(ctx context.Context, taskID string, startAt time.Time, everyMs int64, times int) (string, error) {
	ev := NewEvent(taskID, ActionFire, startAt)
	ev.EveryMs = everyMs
	ev.Times = times
	return m.enqueue(ctx, ev)
}

// EnqueueSnooze submits a deferred begin-snooze control event.
func (m *Manager) EnqueueSnooze(ctx context.Context, taskID string, at time.Time) (string, error) {
	return m.enqueue(ctx, NewEvent(taskID, ActionSnooze, at))
}

// EnqueueActivate submits a deferred resume-from-snooze control event.
func (m *Manager) EnqueueActivate(ctx context.Context, taskID string, at time.Time) (string, error) {
	return m.enqueue(ctx, NewEvent(taskID, ActionActivate, at))
}

func (m *Manager) enqueue(ctx context.Context, ev Event) (string, error) {
	jobID, err := m.queue.Enqueue(ctx, ev)
	if err != nil {
		return "", shared.MarkKind(shared.Wrap(err, "enqueue scheduled event"), shared.KindDependencyFailure)
	}
	m.log.Debug("event enqueued",
		"event_id", ev.EventID, "task_id", ev.TaskID, "action", string(ev.Action),
		"fire_at", ev.FireAt, "every_ms", ev.EveryMs, "times", ev.Times)
	return jobID, nil
}

// Delete removes a pending job, tolerating one that is already gone.
func (m *Manager) Delete(ctx context.Context, jobID string) error {
	if jobID == "" {
		return nil
	}
	if err := m.queue.Delete(ctx, jobID); err != nil {
		return shared.MarkKind(shared.Wrap(err, "delete scheduled event"), shared.KindDependencyFailure)
	}
	return nil
}

// Dispatch is the single entry point for job queue callbacks. It routes the
// event by its action tag; an unknown tag is an error so a misbuilt payload
// is never silently dropped.
func (m *Manager) Dispatch(ctx context.Context, ev Event) error {
	m.log.Info("processing scheduled event",
		"event_id", ev.EventID, "task_id", ev.TaskID, "action", string(ev.Action), "fire_at", ev.FireAt)

	switch ev.Action {
	case ActionFire:
		if err := m.handler.TriggerReminder(ctx, ev.EventID, ev.TaskID); err != nil {
			return err
		}
		return m.continueSchedule(ctx, ev)
	case ActionSnooze:
		return m.handler.BeginSnooze(ctx, ev.TaskID)
	case ActionActivate:
		return m.handler.ActivateSnoozed(ctx, ev.TaskID)
	default:
		return shared.Wrapf(shared.ErrValidation, "unknown event action %q", string(ev.Action))
	}
}

// continueSchedule submits the next occurrence of a repeating schedule.
// The queue has no native repeat directive, so each firing enqueues its
// successor under the deterministically derived next id; the handler then
// persists the new handle so a later cancel deletes the pending entry. A
// conflict from the queue means a redelivery of this firing already
// enqueued the successor.
func (m *Manager) continueSchedule(ctx context.Context, ev Event) error {
	if ev.EveryMs <= 0 || ev.Times <= 1 {
		return nil
	}
	next := ev
	next.EventID = NextEventID(ev.EventID)
	next.FireAt = ev.FireAt.Add(time.Duration(ev.EveryMs) * time.Millisecond).UTC()
	next.Times = ev.Times - 1

	jobID, err := m.queue.Enqueue(ctx, next)
	if err != nil {
		if shared.IsConflict(err) {
			m.log.Debug("next occurrence already enqueued",
				"event_id", next.EventID, "task_id", next.TaskID)
			return nil
		}
		return shared.MarkKind(shared.Wrap(err, "enqueue next occurrence"), shared.KindDependencyFailure)
	}
	m.log.Debug("schedule continued",
		"event_id", next.EventID, "task_id", next.TaskID, "fire_at", next.FireAt, "times", next.Times)
	return m.handler.RenewJob(ctx, next.TaskID, jobID)
}
