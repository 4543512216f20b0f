package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"remindbot/internal/platform/work"
	"remindbot/internal/shared"
)

// Service drives the task lifecycle: creation, append-only edits,
// cancellation, reminder firing, and (in snooze.go) the snooze coordinator.
// It is stateless between invocations; all durable state lives in the task
// record behind Repository.
type Service struct {
	repo     Repository
	users    UserRepository
	sched    Scheduler
	notifier Notifier
	jobs     *work.Pool
	cal      Calculator
	log      *slog.Logger

	now func() time.Time
}

// Config wires Service dependencies.
type Config struct {
	Repo     Repository
	Users    UserRepository
	Sched    Scheduler
	Notifier Notifier
	Jobs     *work.Pool
	Cal      Calculator
	Logger   *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewService creates the engine service.
func NewService(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     cfg.Repo,
		users:    cfg.Users,
		sched:    cfg.Sched,
		notifier: cfg.Notifier,
		jobs:     cfg.Jobs,
		cal:      cfg.Cal,
		log:      log,
		now:      now,
	}
}

// CreateInput carries the schedule and content of a new task version.
type CreateInput struct {
	PreviousID       *string
	Title            string
	ReminderText     string
	ConfirmationText string
	StartDate        time.Time
	EndDate          *time.Time
	FrequencyMs      int64
	// Occurrences overrides the computed count when positive.
	Occurrences int
}

// Create validates the schedule, persists a new active task and enqueues
// its firing schedule. Validation failures reject the request before any
// state mutation or scheduling call.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Task, error) {
	if err := ValidateSchedule(in.StartDate, in.EndDate, in.FrequencyMs, s.now()); err != nil {
		return nil, err
	}

	occurrences := in.Occurrences
	if occurrences <= 0 {
		occurrences = s.cal.OccurrenceCount(in.FrequencyMs, in.StartDate, in.EndDate)
	}

	title := in.Title
	if title == "" {
		title = in.ReminderText
	}

	t := &Task{
		ID:               uuid.NewString(),
		PreviousID:       in.PreviousID,
		UserID:           userID,
		Title:            title,
		ReminderText:     Capitalize(in.ReminderText),
		ConfirmationText: in.ConfirmationText,
		StartDate:        in.StartDate.UTC(),
		EndDate:          in.EndDate,
		FrequencyMs:      in.FrequencyMs,
		Occurrences:      occurrences,
		Status:           StatusActive,
		CreatedAt:        s.now().UTC(),
		UpdatedAt:        s.now().UTC(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, shared.Wrap(err, "create task")
	}

	if err := s.schedule(ctx, t); err != nil {
		// The task record is the source of truth; the schedule is a derived
		// effect the resync sweep can reconcile later.
		s.log.Error("failed to schedule new task", "task_id", t.ID, "error", err)
	}
	return t, nil
}

// schedule enqueues the task's firing schedule and stores the job handle.
// Any previous job must already be deleted by the caller.
func (s *Service) schedule(ctx context.Context, t *Task) error {
	jobID, err := s.sched.EnqueueSchedule(ctx, t.ID, t.StartDate, t.FrequencyMs, t.Occurrences)
	if err != nil {
		return shared.MarkKind(err, shared.KindDependencyFailure)
	}
	t.SchedulerJobID = &jobID
	if err := s.repo.SetSchedulerJobID(ctx, t.ID, &jobID); err != nil {
		return shared.Wrap(err, "store scheduler job id")
	}
	return nil
}

// Get returns a task by id.
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByNumber returns the user's current version with the given reminder
// number.
func (s *Service) GetByNumber(ctx context.Context, userID string, taskNo int64) (*Task, error) {
	return s.repo.GetByTaskNo(ctx, userID, taskNo)
}

// List returns all task versions of a user, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]*Task, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Update performs an append-only edit: the current active version is
// retired (its job deleted) and a new active version is created with
// PreviousID pointing at the retired row. Fields left zero in the input
// inherit from the current version.
func (s *Service) Update(ctx context.Context, userID, taskID string, in CreateInput) (*Task, error) {
	current, err := s.repo.GetActive(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	if in.StartDate.IsZero() {
		in.StartDate = current.StartDate
	}
	if in.EndDate == nil {
		in.EndDate = current.EndDate
	}
	if in.FrequencyMs == 0 && current.FrequencyMs != 0 {
		in.FrequencyMs = current.FrequencyMs
	}
	if in.ReminderText == "" {
		in.ReminderText = current.ReminderText
	}
	if in.Title == "" {
		in.Title = current.Title
	}
	if in.ConfirmationText == "" {
		in.ConfirmationText = current.ConfirmationText
	}
	if err := ValidateSchedule(in.StartDate, in.EndDate, in.FrequencyMs, s.now()); err != nil {
		return nil, err
	}

	// Delete the live job before retiring so the retired row never owns a
	// live schedule.
	if current.SchedulerJobID != nil {
		if err := s.sched.Delete(ctx, *current.SchedulerJobID); err != nil {
			s.log.Warn("failed to delete job of retired task", "task_id", current.ID, "error", err)
		}
	}
	if err := current.Retire(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateGuarded(ctx, current, StatusActive); err != nil {
		return nil, err
	}

	in.PreviousID = &current.ID
	return s.Create(ctx, userID, in)
}

// Cancel terminates a task, deleting any live scheduled job first. Both
// active and snoozed tasks may be cancelled.
func (s *Service) Cancel(ctx context.Context, userID, taskID string) (*Task, error) {
	t, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, userID, t)
}

// CancelByNumber cancels a task addressed by its human-facing reminder
// number.
func (s *Service) CancelByNumber(ctx context.Context, userID string, taskNo int64) (*Task, error) {
	t, err := s.repo.GetByTaskNo(ctx, userID, taskNo)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, userID, t)
}

// CancelAll cancels every active or snoozed task of the user and reports
// how many were cancelled.
func (s *Service) CancelAll(ctx context.Context, userID string) (int, error) {
	tasks, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range tasks {
		if t.Status != StatusActive && t.Status != StatusSnoozed {
			continue
		}
		if _, err := s.cancel(ctx, userID, t); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Service) cancel(ctx context.Context, userID string, t *Task) (*Task, error) {
	if t.UserID != userID {
		return nil, shared.Wrapf(shared.ErrNotFound, "task %s does not belong to user %s", t.ID, userID)
	}
	prev := t.Status
	if t.SchedulerJobID != nil {
		if err := s.sched.Delete(ctx, *t.SchedulerJobID); err != nil {
			s.log.Warn("failed to delete job of cancelled task", "task_id", t.ID, "error", err)
		}
	}
	if err := t.Cancel(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateGuarded(ctx, t, prev); err != nil {
		return nil, err
	}
	s.log.Info("task cancelled", "task_id", t.ID, "task_no", t.TaskNo)
	return t, nil
}

// TriggerReminder handles a normal firing callback from the job queue. A
// callback for a task that is not active anymore is an orphaned event: the
// stray job is deleted, the incident is logged, and nothing is delivered.
// Orphans do not propagate as failures so the queue will not retry them.
func (s *Service) TriggerReminder(ctx context.Context, eventID, taskID string) error {
	t, err := s.repo.GetByID(ctx, taskID)
	if err != nil && !shared.IsNotFound(err) {
		return err
	}
	if err != nil || t.Status != StatusActive {
		if delErr := s.sched.Delete(ctx, eventID); delErr != nil {
			s.log.Warn("failed to delete orphaned job", "event_id", eventID, "error", delErr)
		}
		s.log.Warn("orphaned firing event", "event_id", eventID, "task_id", taskID,
			"error", shared.Wrapf(shared.ErrOrphanedEvent, "no active task %s", taskID))
		return nil
	}

	user, err := s.users.GetByID(ctx, t.UserID)
	if err != nil {
		return shared.Wrap(err, "resolve reminder recipient")
	}

	completed, err := t.RecordTrigger()
	if err != nil {
		return err
	}
	if err := s.repo.UpdateGuarded(ctx, t, StatusActive); err != nil {
		return err
	}

	// Delivery is a derived effect: it runs in the background and its
	// failure never rolls back the committed trigger count.
	text := t.ReminderText
	to := Recipient{Phone: user.Phone, ChatID: user.ChatID}
	s.jobs.Submit("send-reminder", func(ctx context.Context) error {
		return s.notifier.SendReminder(ctx, text, to)
	})

	if completed {
		s.log.Info("task completed", "task_id", t.ID, "task_no", t.TaskNo, "triggers", t.TriggerCount)
	}
	return nil
}

// RenewJob records the job handle of the schedule's next pending
// occurrence after a firing re-enqueued it. If the task went terminal in
// the meantime the freshly enqueued successor is deleted instead, so a
// cancelled schedule never keeps ticking.
func (s *Service) RenewJob(ctx context.Context, taskID, jobID string) error {
	t, err := s.repo.GetByID(ctx, taskID)
	if err != nil && !shared.IsNotFound(err) {
		return err
	}
	if err != nil || t.Status != StatusActive {
		return s.sched.Delete(ctx, jobID)
	}
	return s.repo.SetSchedulerJobID(ctx, taskID, &jobID)
}

// Resync repairs tasks that lost their scheduler job, e.g. after a crash
// between delete and enqueue. Active tasks get a replacement schedule with
// the remaining occurrences recomputed from the task's own plan; snoozed
// tasks that never got their activate event get it re-attached.
func (s *Service) Resync(ctx context.Context) error {
	tasks, err := s.repo.ListUnscheduled(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	for _, t := range tasks {
		if t.Status == StatusSnoozed {
			if err := s.repairSnoozed(ctx, t, now); err != nil {
				s.log.Warn("resync: snoozed task repair failed", "task_id", t.ID, "error", err)
			}
			continue
		}
		restart, remaining, ok := s.remainingSchedule(t, now)
		if !ok {
			prev := t.Status
			if err := t.Complete(); err != nil {
				s.log.Warn("resync: cannot complete exhausted task", "task_id", t.ID, "error", err)
				continue
			}
			if err := s.repo.UpdateGuarded(ctx, t, prev); err != nil {
				s.log.Warn("resync: complete failed", "task_id", t.ID, "error", err)
			}
			continue
		}
		jobID, err := s.sched.EnqueueSchedule(ctx, t.ID, restart, t.FrequencyMs, remaining)
		if err != nil {
			s.log.Warn("resync: reschedule failed", "task_id", t.ID, "error", err)
			continue
		}
		if err := s.repo.SetSchedulerJobID(ctx, t.ID, &jobID); err != nil {
			s.log.Warn("resync: store job id failed", "task_id", t.ID, "error", err)
			continue
		}
		s.log.Info("resync: task rescheduled", "task_id", t.ID, "restart", restart, "remaining", remaining)
	}
	return nil
}

// repairSnoozed re-attaches the activate event a snoozed task lost (its
// enqueue failed during the begin-snooze transition). A window that has
// already ended resumes the task right away.
func (s *Service) repairSnoozed(ctx context.Context, t *Task, now time.Time) error {
	if t.SnoozeEndAt == nil {
		return shared.Invariant(false, "snoozed task without a snooze window")
	}
	if t.SnoozeEndAt.Before(now) {
		return s.ActivateSnoozed(ctx, t.ID)
	}
	jobID, err := s.sched.EnqueueActivate(ctx, t.ID, *t.SnoozeEndAt)
	if err != nil {
		return err
	}
	return s.repo.SetSchedulerJobID(ctx, t.ID, &jobID)
}

// remainingSchedule finds the first occurrence at or after now and the
// count of the truncated window. ok is false when the schedule is
// exhausted.
func (s *Service) remainingSchedule(t *Task, now time.Time) (restart time.Time, remaining int, ok bool) {
	if t.OneTime() || t.OpenEnded() {
		if t.TriggerCount >= t.Occurrences {
			return time.Time{}, 0, false
		}
		restart = t.StartDate
		if restart.Before(now) {
			restart = now
		}
		return restart, t.Occurrences - t.TriggerCount, true
	}
	for d := range OccurrenceDates(t.StartDate, *t.EndDate, t.FrequencyMs) {
		if !d.Before(now) {
			return d, s.cal.OccurrenceCount(t.FrequencyMs, d, t.EndDate), true
		}
	}
	return time.Time{}, 0, false
}
