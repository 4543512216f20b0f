// Package pg implements the task and user repositories over PostgreSQL.
package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"remindbot/internal/platform/pg"
	"remindbot/internal/shared"
	"remindbot/internal/task"
)

// TaskRepo is the PostgreSQL task repository. All queries go through the
// TxRunner's Querier so the repo participates in ambient transactions.
type TaskRepo struct {
	runner *pg.TxRunner
}

// NewTaskRepo creates the task repository.
func NewTaskRepo(runner *pg.TxRunner) *TaskRepo {
	return &TaskRepo{runner: runner}
}

var _ task.Repository = (*TaskRepo)(nil)

const taskColumns = `id, task_no, previous_id, user_id, title, reminder_text, confirmation_text,
	start_date, end_date, frequency_ms, occurrences, status, trigger_count,
	scheduler_job_id, snooze_start_at, snooze_end_at, created_at, updated_at`

// Create inserts a new task version. A zero TaskNo is assigned here: the
// number is inherited from the previous version on edits, otherwise it is
// the user's next sequential number.
func (r *TaskRepo) Create(ctx context.Context, t *task.Task) error {
	q := r.runner.Querier(ctx)

	if t.TaskNo == 0 {
		no, err := r.nextTaskNo(ctx, t)
		if err != nil {
			return err
		}
		t.TaskNo = no
	}

	_, err := q.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		t.ID, t.TaskNo, t.PreviousID, t.UserID, t.Title, t.ReminderText, t.ConfirmationText,
		t.StartDate, t.EndDate, t.FrequencyMs, t.Occurrences, t.Status, t.TriggerCount,
		t.SchedulerJobID, t.SnoozeStartAt, t.SnoozeEndAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "insert task")
	}
	return nil
}

func (r *TaskRepo) nextTaskNo(ctx context.Context, t *task.Task) (int64, error) {
	q := r.runner.Querier(ctx)

	if t.PreviousID != nil {
		var no int64
		err := q.QueryRow(ctx, `SELECT task_no FROM tasks WHERE id = $1`, *t.PreviousID).Scan(&no)
		if err == nil {
			return no, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "resolve previous task number")
		}
	}

	var no int64
	err := q.QueryRow(ctx,
		`SELECT COALESCE(MAX(task_no), 0) + 1 FROM tasks WHERE user_id = $1`, t.UserID).Scan(&no)
	if err != nil {
		return 0, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "assign task number")
	}
	return no, nil
}

// GetByID returns a task by id.
func (r *TaskRepo) GetByID(ctx context.Context, id string) (*task.Task, error) {
	row := r.runner.Querier(ctx).QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

// GetActive returns the task only when it belongs to userID and is active.
func (r *TaskRepo) GetActive(ctx context.Context, id, userID string) (*task.Task, error) {
	row := r.runner.Querier(ctx).QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2 AND status = $3`,
		id, userID, task.StatusActive)
	return scanTask(row)
}

// GetByTaskNo returns the user's current (non-retired) version with the
// given reminder number, preferring active over snoozed.
func (r *TaskRepo) GetByTaskNo(ctx context.Context, userID string, taskNo int64) (*task.Task, error) {
	row := r.runner.Querier(ctx).QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE user_id = $1 AND task_no = $2 AND status IN ($3, $4)
		 ORDER BY created_at DESC LIMIT 1`,
		userID, taskNo, task.StatusActive, task.StatusSnoozed)
	return scanTask(row)
}

// ListByUser returns all task versions of a user, newest first.
func (r *TaskRepo) ListByUser(ctx context.Context, userID string) ([]*task.Task, error) {
	rows, err := r.runner.Querier(ctx).Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "list tasks")
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListActiveForSnooze returns the user's active tasks that can still fire
// at or after from: recurring tasks ending at or after it, plus one-time
// and open-ended tasks.
func (r *TaskRepo) ListActiveForSnooze(ctx context.Context, userID string, from time.Time) ([]*task.Task, error) {
	rows, err := r.runner.Querier(ctx).Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE user_id = $1 AND status = $2 AND (end_date IS NULL OR end_date >= $3)`,
		userID, task.StatusActive, from)
	if err != nil {
		return nil, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "list active tasks")
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListUnscheduled returns tasks without a scheduler job handle that
// should have one: active tasks, and snoozed tasks with a snooze window
// (whose pending activate event was lost). Terminally snoozed tasks carry
// no window and legitimately own no job.
func (r *TaskRepo) ListUnscheduled(ctx context.Context) ([]*task.Task, error) {
	rows, err := r.runner.Querier(ctx).Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE scheduler_job_id IS NULL
		   AND (status = $1 OR (status = $2 AND snooze_end_at IS NOT NULL))`,
		task.StatusActive, task.StatusSnoozed)
	if err != nil {
		return nil, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "list unscheduled tasks")
	}
	defer rows.Close()
	return scanTasks(rows)
}

// UpdateGuarded writes the task's mutable fields only when the stored
// status still equals expect. Zero rows affected means a concurrent writer
// won and maps to shared.ErrConflict.
func (r *TaskRepo) UpdateGuarded(ctx context.Context, t *task.Task, expect task.Status) error {
	tag, err := r.runner.Querier(ctx).Exec(ctx, `
		UPDATE tasks SET
			status = $1, trigger_count = $2, scheduler_job_id = $3,
			snooze_start_at = $4, snooze_end_at = $5, updated_at = now()
		WHERE id = $6 AND status = $7`,
		t.Status, t.TriggerCount, t.SchedulerJobID,
		t.SnoozeStartAt, t.SnoozeEndAt, t.ID, expect)
	if err != nil {
		return shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "update task")
	}
	if tag.RowsAffected() == 0 {
		return shared.Wrapf(shared.ErrConflict, "task %s changed concurrently (expected status %s)", t.ID, expect)
	}
	return nil
}

// SetSchedulerJobID stores the job handle of the task's live schedule.
func (r *TaskRepo) SetSchedulerJobID(ctx context.Context, id string, jobID *string) error {
	tag, err := r.runner.Querier(ctx).Exec(ctx,
		`UPDATE tasks SET scheduler_job_id = $1, updated_at = now() WHERE id = $2`, jobID, id)
	if err != nil {
		return shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "store scheduler job id")
	}
	if tag.RowsAffected() == 0 {
		return shared.Wrapf(shared.ErrNotFound, "task %s", id)
	}
	return nil
}

func scanTask(row pgx.Row) (*task.Task, error) {
	var t task.Task
	err := row.Scan(
		&t.ID, &t.TaskNo, &t.PreviousID, &t.UserID, &t.Title, &t.ReminderText, &t.ConfirmationText,
		&t.StartDate, &t.EndDate, &t.FrequencyMs, &t.Occurrences, &t.Status, &t.TriggerCount,
		&t.SchedulerJobID, &t.SnoozeStartAt, &t.SnoozeEndAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.Wrap(shared.ErrNotFound, "task")
		}
		return nil, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "scan task")
	}
	return &t, nil
}

func scanTasks(rows pgx.Rows) ([]*task.Task, error) {
	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "iterate tasks")
	}
	return tasks, nil
}
