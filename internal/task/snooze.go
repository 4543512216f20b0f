package task

import (
	"context"
	"time"

	"remindbot/internal/shared"
)

// This file is the snooze coordinator: it translates snooze requests into
// task mutations, using the recurrence calculator to decide whether a
// window affects a task at all, and re-derives the resumption schedule
// after a snooze window ends.

// SnoozeWindow is a closed interval during which firings are suspended.
type SnoozeWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the instant falls inside the window.
func (w SnoozeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// windowFor builds the snooze window for a request: the whole calendar day
// of start through the end of the day start+days, in the user's zone.
func windowFor(start time.Time, days int, loc *time.Location) SnoozeWindow {
	return SnoozeWindow{
		Start: startOfDay(start, loc),
		End:   endOfDay(start.AddDate(0, 0, days), loc),
	}
}

// Snooze suspends a single task for the requested number of days starting
// at startDate. One-time and open-ended tasks are snoozed terminally: the
// job is deleted and no resumption is ever scheduled — only an explicit
// edit brings them back. Recurring tasks are snoozed only when an
// occurrence actually falls inside the window.
func (s *Service) Snooze(ctx context.Context, userID, taskID string, startDate time.Time, days int) error {
	t, err := s.repo.GetActive(ctx, taskID, userID)
	if err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	loc := user.Location()

	if t.OpenEnded() || t.OneTime() {
		return s.snoozeTerminal(ctx, t)
	}
	return s.snoozeIfAffected(ctx, t, windowFor(startDate, days, loc), loc)
}

// SnoozeAll applies a snooze window to every active task of the user. Each
// task sees the window clipped to the intersection with its own
// [startDate, endDate]; tasks that do not overlap the window at all are
// excluded from the batch.
func (s *Service) SnoozeAll(ctx context.Context, userID string, startDate time.Time, days int) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	loc := user.Location()
	window := windowFor(startDate, days, loc)

	tasks, err := s.repo.ListActiveForSnooze(ctx, userID, window.Start)
	if err != nil {
		return err
	}

	for _, t := range tasks {
		clipped, ok := clipWindow(window, t)
		if !ok {
			continue
		}
		if t.OpenEnded() || t.OneTime() {
			if err := s.snoozeTerminal(ctx, t); err != nil {
				s.log.Warn("bulk snooze: task skipped", "task_id", t.ID, "error", err)
			}
			continue
		}
		if err := s.snoozeIfAffected(ctx, t, clipped, loc); err != nil {
			s.log.Warn("bulk snooze: task skipped", "task_id", t.ID, "error", err)
		}
	}
	return nil
}

// clipWindow intersects the requested window with the task's own schedule
// window. ok is false when they do not overlap.
func clipWindow(w SnoozeWindow, t *Task) (SnoozeWindow, bool) {
	startWithin := w.Contains(t.StartDate)
	endWithin := t.EndDate != nil && w.Contains(*t.EndDate)
	spans := t.StartDate.Before(w.Start) && t.EndDate != nil && t.EndDate.After(w.End)
	if !startWithin && !endWithin && !spans {
		return SnoozeWindow{}, false
	}
	clipped := w
	if t.StartDate.After(clipped.Start) {
		clipped.Start = t.StartDate
	}
	if t.EndDate != nil && t.EndDate.Before(clipped.End) {
		clipped.End = *t.EndDate
	}
	return clipped, true
}

// snoozeTerminal marks a one-time or open-ended task snoozed and deletes
// its job. No activate event is scheduled for this case.
func (s *Service) snoozeTerminal(ctx context.Context, t *Task) error {
	jobID := t.SchedulerJobID
	if err := t.BeginSnooze(); err != nil {
		return err
	}
	if err := s.repo.UpdateGuarded(ctx, t, StatusActive); err != nil {
		return err
	}
	if jobID != nil {
		if err := s.sched.Delete(ctx, *jobID); err != nil {
			s.log.Warn("failed to delete job of snoozed task", "task_id", t.ID, "error", err)
		}
	}
	s.log.Info("task snoozed until further notice", "task_id", t.ID, "task_no", t.TaskNo)
	return nil
}

// snoozeIfAffected persists the window and transitions the task only when
// one of its occurrence dates falls inside the window. A window that misses
// every occurrence is a no-op: the task record stays untouched and no job
// queue call is made.
func (s *Service) snoozeIfAffected(ctx context.Context, t *Task, w SnoozeWindow, loc *time.Location) error {
	affected := false
	for d := range OccurrenceDates(t.StartDate, *t.EndDate, t.FrequencyMs) {
		if w.Contains(d) {
			affected = true
			break
		}
	}
	if !affected {
		s.log.Info("snooze window misses all occurrences, reschedule not required",
			"task_id", t.ID, "from", w.Start, "to", w.End)
		return nil
	}

	start, end := w.Start, w.End
	t.SnoozeStartAt = &start
	t.SnoozeEndAt = &end
	if err := s.repo.UpdateGuarded(ctx, t, StatusActive); err != nil {
		return err
	}

	if sameDay(w.Start, t.StartDate, loc) {
		// The snooze takes effect immediately.
		return s.BeginSnooze(ctx, t.ID)
	}

	// The snooze starts in the future: the reminder schedule keeps running
	// and a deferred control event performs the transition when it fires.
	if _, err := s.sched.EnqueueSnooze(ctx, t.ID, w.Start); err != nil {
		return shared.MarkKind(err, shared.KindDependencyFailure)
	}
	s.log.Info("snooze deferred", "task_id", t.ID, "task_no", t.TaskNo, "starts", w.Start)
	return nil
}

// BeginSnooze performs the begin-snooze-now transition: mark the task
// snoozed, delete its live job, and enqueue the activate event for the end
// of the window. When the window ends today, the resume instant is moved to
// the current wall-clock hour and minute so resumption fires at "now" on
// the resume day rather than at midnight.
func (s *Service) BeginSnooze(ctx context.Context, taskID string) error {
	t, err := s.repo.GetByID(ctx, taskID)
	if err != nil && !shared.IsNotFound(err) {
		return err
	}
	if err != nil || t.Status != StatusActive {
		s.log.Warn("begin-snooze event for inactive task",
			"task_id", taskID, "error", shared.Wrap(shared.ErrOrphanedEvent, "begin snooze"))
		return nil
	}
	if t.SnoozeEndAt == nil {
		return shared.Invariant(false, "snoozed task without a snooze window")
	}

	user, err := s.users.GetByID(ctx, t.UserID)
	if err != nil {
		return err
	}
	loc := user.Location()

	jobID := t.SchedulerJobID
	if err := t.BeginSnooze(); err != nil {
		return err
	}
	if jobID != nil {
		if err := s.sched.Delete(ctx, *jobID); err != nil {
			s.log.Warn("failed to delete job of snoozed task", "task_id", t.ID, "error", err)
		}
	}

	resumeAt := *t.SnoozeEndAt
	now := s.now()
	if sameDay(resumeAt, now, loc) {
		y, m, d := resumeAt.In(loc).Date()
		localNow := now.In(loc)
		resumeAt = time.Date(y, m, d, localNow.Hour(), localNow.Minute(), 0, 0, loc)
	}

	activateID, err := s.sched.EnqueueActivate(ctx, t.ID, resumeAt)
	if err != nil {
		s.log.Error("failed to enqueue activate event", "task_id", t.ID, "error", err)
	} else {
		// The activate event is now the task's only live job; a cancel
		// while snoozed must be able to delete it.
		t.SchedulerJobID = &activateID
	}

	if err := s.repo.UpdateGuarded(ctx, t, StatusActive); err != nil {
		return err
	}
	s.log.Info("task snoozed", "task_id", t.ID, "task_no", t.TaskNo, "resume_at", resumeAt)
	return nil
}

// ActivateSnoozed resumes a task after its snooze window. The occurrence
// dates are recomputed from the original schedule; if nothing remains after
// the window the task completes. Otherwise a replacement schedule is
// enqueued from the first occurrence strictly after the window's end with
// the occurrence count of the truncated window — the job queue has no
// notion of "pause", so the original repeat directive is not resumed.
func (s *Service) ActivateSnoozed(ctx context.Context, taskID string) error {
	t, err := s.repo.GetByID(ctx, taskID)
	if err != nil && !shared.IsNotFound(err) {
		return err
	}
	if err != nil || t.Status != StatusSnoozed {
		s.log.Warn("activate event for task not snoozed",
			"task_id", taskID, "error", shared.Wrap(shared.ErrOrphanedEvent, "activate"))
		return nil
	}
	if t.SnoozeEndAt == nil || t.EndDate == nil {
		return shared.Invariant(false, "activate requires a snooze window and an end date")
	}

	var restart time.Time
	found := false
	for d := range OccurrenceDates(t.StartDate, *t.EndDate, t.FrequencyMs) {
		if d.After(*t.SnoozeEndAt) {
			restart = d
			found = true
			break
		}
	}

	if !found {
		// The remaining occurrence window is empty: nothing left to fire.
		if err := t.Complete(); err != nil {
			return err
		}
		if err := s.repo.UpdateGuarded(ctx, t, StatusSnoozed); err != nil {
			return err
		}
		s.log.Info("snoozed task completed, schedule exhausted", "task_id", t.ID, "task_no", t.TaskNo)
		return nil
	}

	if err := t.Resume(); err != nil {
		return err
	}
	remaining := s.cal.OccurrenceCount(t.FrequencyMs, restart, t.EndDate)

	// Delete before enqueue so the task never owns two live jobs.
	if t.SchedulerJobID != nil {
		if err := s.sched.Delete(ctx, *t.SchedulerJobID); err != nil {
			s.log.Warn("failed to delete stale job before resume", "task_id", t.ID, "error", err)
		}
		t.SchedulerJobID = nil
	}
	if err := s.repo.UpdateGuarded(ctx, t, StatusSnoozed); err != nil {
		return err
	}
	jobID, err := s.sched.EnqueueSchedule(ctx, t.ID, restart, t.FrequencyMs, remaining)
	if err != nil {
		s.log.Error("failed to enqueue replacement schedule", "task_id", t.ID, "error", err)
		return nil
	}
	t.SchedulerJobID = &jobID
	if err := s.repo.SetSchedulerJobID(ctx, t.ID, &jobID); err != nil {
		return err
	}
	s.log.Info("task resumed", "task_id", t.ID, "task_no", t.TaskNo, "restart", restart, "remaining", remaining)
	return nil
}
