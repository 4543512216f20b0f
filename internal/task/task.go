// Package task implements the reminder scheduling engine: the task entity
// and its status state machine, the recurrence calculator, and the snooze
// coordinator. Persistence, the job queue and outbound delivery are
// consumed through the narrow ports declared in ports.go.
package task

import (
	"time"

	"remindbot/internal/shared"
)

// Status is the lifecycle state of a task.
type Status string

const (
	// StatusActive means the task has a live schedule and will fire.
	StatusActive Status = "active"
	// StatusSnoozed means firings are suspended for a snooze window.
	StatusSnoozed Status = "snoozed"
	// StatusCancelled is terminal: the user cancelled the task.
	StatusCancelled Status = "cancelled"
	// StatusUpdated is terminal: the task was superseded by a new version.
	StatusUpdated Status = "updated"
	// StatusCompleted is terminal: all planned firings were delivered.
	StatusCompleted Status = "completed"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusUpdated, StatusCompleted:
		return true
	}
	return false
}

// transitions lists the allowed state changes. A snoozed task may complete
// directly when its occurrence window is already exhausted at resume time.
var transitions = map[Status][]Status{
	StatusActive:  {StatusSnoozed, StatusCancelled, StatusUpdated, StatusCompleted},
	StatusSnoozed: {StatusActive, StatusCancelled, StatusCompleted},
}

// CanTransition reports whether the status may change to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Task is a reminder's schedule and content record. Tasks are append-only:
// editing schedule-relevant fields retires the row (StatusUpdated) and
// creates a new one whose PreviousID points at the retired version.
type Task struct {
	ID         string
	TaskNo     int64 // human-facing reminder number, e.g. "Reminder #0042"
	PreviousID *string
	UserID     string

	Title            string
	ReminderText     string
	ConfirmationText string

	StartDate   time.Time
	EndDate     *time.Time
	FrequencyMs int64 // 0 means one-time
	Occurrences int   // total planned firings

	Status         Status
	TriggerCount   int
	SchedulerJobID *string
	SnoozeStartAt  *time.Time
	SnoozeEndAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OneTime reports whether the task fires exactly once.
func (t *Task) OneTime() bool { return t.FrequencyMs <= 0 }

// OpenEnded reports whether the task recurs without an end date.
func (t *Task) OpenEnded() bool { return t.EndDate == nil }

// ValidateSchedule checks the schedule invariants for the given parameters:
// the end date is present iff the frequency is non-zero, and the start must
// not be in the past at creation/edit time.
func ValidateSchedule(start time.Time, end *time.Time, frequencyMs int64, now time.Time) error {
	if end != nil && frequencyMs == 0 {
		return shared.Wrap(shared.ErrValidation, "repetition cannot be never when an end date is selected")
	}
	if end == nil && frequencyMs != 0 {
		return shared.Wrap(shared.ErrValidation, "end date is required when repetition is selected")
	}
	if start.Before(now) {
		return shared.Wrap(shared.ErrValidation, "reminder time must not be in the past")
	}
	if end != nil && end.Before(start) {
		return shared.Wrap(shared.ErrValidation, "end date must not be before the start date")
	}
	return nil
}

// transition moves the task to next, enforcing the state machine.
func (t *Task) transition(next Status) error {
	if !t.Status.CanTransition(next) {
		return shared.Wrapf(shared.ErrValidation, "task %s: illegal transition %s -> %s", t.ID, t.Status, next)
	}
	t.Status = next
	return nil
}

// RecordTrigger registers one delivered firing. Reaching the planned
// occurrence count forces completion; it returns true in that case.
func (t *Task) RecordTrigger() (completed bool, err error) {
	if t.Status != StatusActive {
		return false, shared.Wrapf(shared.ErrValidation, "task %s: cannot fire in status %s", t.ID, t.Status)
	}
	if t.TriggerCount >= t.Occurrences {
		return false, shared.InvariantF(false, "task %s: trigger count %d exceeds planned %d", t.ID, t.TriggerCount+1, t.Occurrences)
	}
	t.TriggerCount++
	if t.TriggerCount == t.Occurrences {
		if err := t.transition(StatusCompleted); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// BeginSnooze suspends firings. The live scheduled job must be deleted by
// the caller in the same transition.
func (t *Task) BeginSnooze() error {
	if err := t.transition(StatusSnoozed); err != nil {
		return err
	}
	t.SchedulerJobID = nil
	return nil
}

// Resume reactivates a snoozed task.
func (t *Task) Resume() error {
	return t.transition(StatusActive)
}

// Complete marks the task finished.
func (t *Task) Complete() error {
	return t.transition(StatusCompleted)
}

// Cancel terminates the task on explicit user request.
func (t *Task) Cancel() error {
	if err := t.transition(StatusCancelled); err != nil {
		return err
	}
	t.SchedulerJobID = nil
	return nil
}

// Retire marks the task superseded by a newer version. A retired task owns
// no live scheduler job.
func (t *Task) Retire() error {
	if err := t.transition(StatusUpdated); err != nil {
		return err
	}
	t.SchedulerJobID = nil
	return nil
}
