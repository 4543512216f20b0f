// Package sqlite implements the task and user repositories over embedded
// SQLite. Timestamps are stored as RFC 3339 UTC strings so comparisons in
// SQL stay lexicographic.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"remindbot/internal/platform/sqlite"
	"remindbot/internal/shared"
	"remindbot/internal/task"
)

// TaskRepo is the SQLite task repository.
type TaskRepo struct {
	runner *sqlite.TxRunner
}

// NewTaskRepo creates the task repository.
func NewTaskRepo(runner *sqlite.TxRunner) *TaskRepo {
	return &TaskRepo{runner: runner}
}

var _ task.Repository = (*TaskRepo)(nil)

const taskColumns = `id, task_no, previous_id, user_id, title, reminder_text, confirmation_text,
	start_date, end_date, frequency_ms, occurrences, status, trigger_count,
	scheduler_job_id, snooze_start_at, snooze_end_at, created_at, updated_at`

// Create inserts a new task version. A zero TaskNo is assigned here: it is
// inherited from the previous version on edits, otherwise the user's next
// sequential number.
func (r *TaskRepo) Create(ctx context.Context, t *task.Task) error {
	q := r.runner.Querier(ctx)

	if t.TaskNo == 0 {
		no, err := r.nextTaskNo(ctx, t)
		if err != nil {
			return err
		}
		t.TaskNo = no
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.TaskNo, t.PreviousID, t.UserID, t.Title, t.ReminderText, t.ConfirmationText,
		encodeTime(t.StartDate), encodeTimePtr(t.EndDate), t.FrequencyMs, t.Occurrences,
		string(t.Status), t.TriggerCount, t.SchedulerJobID,
		encodeTimePtr(t.SnoozeStartAt), encodeTimePtr(t.SnoozeEndAt),
		encodeTime(t.CreatedAt), encodeTime(t.UpdatedAt))
	if err != nil {
		return shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "insert task")
	}
	return nil
}

func (r *TaskRepo) nextTaskNo(ctx context.Context, t *task.Task) (int64, error) {
	q := r.runner.Querier(ctx)

	if t.PreviousID != nil {
		var no int64
		err := q.QueryRowContext(ctx, `SELECT task_no FROM tasks WHERE id = ?`, *t.PreviousID).Scan(&no)
		if err == nil {
			return no, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "resolve previous task number")
		}
	}

	var no int64
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(task_no), 0) + 1 FROM tasks WHERE user_id = ?`, t.UserID).Scan(&no)
	if err != nil {
		return 0, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "assign task number")
	}
	return no, nil
}

// GetByID returns a task by id.
func (r *TaskRepo) GetByID(ctx context.Context, id string) (*task.Task, error) {
	return scanTask(r.runner.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
}

// GetActive returns the task only when it belongs to userID and is active.
func (r *TaskRepo) GetActive(ctx context.Context, id, userID string) (*task.Task, error) {
	return scanTask(r.runner.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ? AND status = ?`,
		id, userID, string(task.StatusActive)))
}

// GetByTaskNo returns the user's current (non-retired) version with the
// given reminder number, preferring the newest.
func (r *TaskRepo) GetByTaskNo(ctx context.Context, userID string, taskNo int64) (*task.Task, error) {
	return scanTask(r.runner.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE user_id = ? AND task_no = ? AND status IN (?, ?)
		 ORDER BY created_at DESC LIMIT 1`,
		userID, taskNo, string(task.StatusActive), string(task.StatusSnoozed)))
}

// ListByUser returns all task versions of a user, newest first.
func (r *TaskRepo) ListByUser(ctx context.Context, userID string) ([]*task.Task, error) {
	rows, err := r.runner.Querier(ctx).QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "list tasks")
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListActiveForSnooze returns the user's active tasks that can still fire
// at or after from.
func (r *TaskRepo) ListActiveForSnooze(ctx context.Context, userID string, from time.Time) ([]*task.Task, error) {
	rows, err := r.runner.Querier(ctx).QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE user_id = ? AND status = ? AND (end_date IS NULL OR end_date >= ?)`,
		userID, string(task.StatusActive), encodeTime(from))
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
	rows, err := r.runner.Querier(ctx).QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE scheduler_job_id IS NULL
		   AND (status = ? OR (status = ? AND snooze_end_at IS NOT NULL))`,
		string(task.StatusActive), string(task.StatusSnoozed))
	if err != nil {
		return nil, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "list unscheduled tasks")
	}
	defer rows.Close()
	return scanTasks(rows)
}

// UpdateGuarded writes the task's mutable fields only when the stored
// status still equals expect; zero rows affected maps to shared.ErrConflict.
func (r *TaskRepo) UpdateGuarded(ctx context.Context, t *task.Task, expect task.Status) error {
	res, err := r.runner.Querier(ctx).ExecContext(ctx, `
		UPDATE tasks SET
			status = ?, trigger_count = ?, scheduler_job_id = ?,
			snooze_start_at = ?, snooze_end_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(t.Status), t.TriggerCount, t.SchedulerJobID,
		encodeTimePtr(t.SnoozeStartAt), encodeTimePtr(t.SnoozeEndAt),
		encodeTime(time.Now().UTC()), t.ID, string(expect))
	if err != nil {
		return shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "update task")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "update task")
	}
	if affected == 0 {
		return shared.Wrapf(shared.ErrConflict, "task %s changed concurrently (expected status %s)", t.ID, expect)
	}
	return nil
}

// SetSchedulerJobID stores the job handle of the task's live schedule.
func (r *TaskRepo) SetSchedulerJobID(ctx context.Context, id string, jobID *string) error {
	res, err := r.runner.Querier(ctx).ExecContext(ctx,
		`UPDATE tasks SET scheduler_job_id = ?, updated_at = ? WHERE id = ?`,
		jobID, encodeTime(time.Now().UTC()), id)
	if err != nil {
		return shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "store scheduler job id")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "store scheduler job id")
	}
	if affected == 0 {
		return shared.Wrapf(shared.ErrNotFound, "task %s", id)
	}
	return nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*task.Task, error) {
	var (
		t                      task.Task
		status                 string
		startDate, createdAt   string
		updatedAt              string
		endDate, snoozeStart   sql.NullString
		snoozeEnd              sql.NullString
		previousID, schedJobID sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.TaskNo, &previousID, &t.UserID, &t.Title, &t.ReminderText, &t.ConfirmationText,
		&startDate, &endDate, &t.FrequencyMs, &t.Occurrences, &status, &t.TriggerCount,
		&schedJobID, &snoozeStart, &snoozeEnd, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.Wrap(shared.ErrNotFound, "task")
		}
		return nil, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "scan task")
	}

	t.Status = task.Status(status)
	t.PreviousID = nullString(previousID)
	t.SchedulerJobID = nullString(schedJobID)
	if t.StartDate, err = decodeTime(startDate); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, err
	}
	if t.EndDate, err = decodeTimePtr(endDate); err != nil {
		return nil, err
	}
	if t.SnoozeStartAt, err = decodeTimePtr(snoozeStart); err != nil {
		return nil, err
	}
	if t.SnoozeEndAt, err = decodeTimePtr(snoozeEnd); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*task.Task, error) {
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

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, shared.Wrapf(shared.ErrInternal, "malformed stored timestamp %q", s)
	}
	return t, nil
}

func decodeTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
