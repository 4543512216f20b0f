package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqliteplatform "remindbot/internal/platform/sqlite"
	"remindbot/internal/shared"
	"remindbot/internal/storage/sqlite"
	"remindbot/internal/task"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type store struct {
	db    *sqliteplatform.TestDB
	tasks *sqlite.TaskRepo
	users *sqlite.UserRepo
}

func newTestStore(t *testing.T) *store {
	t.Helper()

	tdb := sqliteplatform.NewTestDBInMemory(t)
	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "sqlite", "0001_init.up.sql"))
	require.NoError(t, err)
	tdb.Exec(t, string(schema))

	return &store{
		db:    tdb,
		tasks: sqlite.NewTaskRepo(tdb.TxRunner),
		users: sqlite.NewUserRepo(tdb.TxRunner),
	}
}

func (s *store) seedUser(t *testing.T, id string, chatID int64) *task.User {
	t.Helper()
	u := &task.User{ID: id, Phone: "+3160000" + id, ChatID: chatID, Timezone: "Europe/Amsterdam"}
	require.NoError(t, s.users.Create(context.Background(), u))
	return u
}

// makeTask builds a daily task with a week-long window. Tests override
// fields as needed before Create.
func makeTask(id, userID string) *task.Task {
	end := baseTime.AddDate(0, 0, 7)
	return &task.Task{
		ID:           id,
		UserID:       userID,
		Title:        "Take the pills",
		ReminderText: "Take the pills",
		StartDate:    baseTime,
		EndDate:      &end,
		FrequencyMs:  int64(24 * time.Hour / time.Millisecond),
		Occurrences:  7,
		Status:       task.StatusActive,
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
}

func TestTaskRepoRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.seedUser(t, "user-1", 100)

	in := makeTask("t1", "user-1")
	jobID := "job-1"
	in.SchedulerJobID = &jobID
	require.NoError(t, s.tasks.Create(ctx, in))

	got, err := s.tasks.GetByID(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, in.TaskNo, got.TaskNo)
	assert.Nil(t, got.PreviousID)
	assert.Equal(t, in.UserID, got.UserID)
	assert.Equal(t, in.Title, got.Title)
	assert.Equal(t, in.ReminderText, got.ReminderText)
	assert.Equal(t, in.FrequencyMs, got.FrequencyMs)
	assert.Equal(t, in.Occurrences, got.Occurrences)
	assert.Equal(t, task.StatusActive, got.Status)
	require.NotNil(t, got.SchedulerJobID)
	assert.Equal(t, jobID, *got.SchedulerJobID)
	assert.True(t, got.StartDate.Equal(in.StartDate))
	require.NotNil(t, got.EndDate)
	assert.True(t, got.EndDate.Equal(*in.EndDate))
	assert.Nil(t, got.SnoozeStartAt)
	assert.Nil(t, got.SnoozeEndAt)
}

func TestTaskRepoGetByIDNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.tasks.GetByID(context.Background(), "missing")
	assert.True(t, shared.IsNotFound(err))
}

func TestTaskNoAssignment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.seedUser(t, "user-1", 100)
	s.seedUser(t, "user-2", 200)

	first := makeTask("t1", "user-1")
	require.NoError(t, s.tasks.Create(ctx, first))
	assert.Equal(t, int64(1), first.TaskNo)

	second := makeTask("t2", "user-1")
	require.NoError(t, s.tasks.Create(ctx, second))
	assert.Equal(t, int64(2), second.TaskNo)

	t.Run("numbering is per user", func(t *testing.T) {
		other := makeTask("t3", "user-2")
		require.NoError(t, s.tasks.Create(ctx, other))
		assert.Equal(t, int64(1), other.TaskNo)
	})

	t.Run("new version inherits the number", func(t *testing.T) {
		prevID := "t1"
		version := makeTask("t4", "user-1")
		version.PreviousID = &prevID
		require.NoError(t, s.tasks.Create(ctx, version))
		assert.Equal(t, int64(1), version.TaskNo)
	})

	t.Run("preset number is kept", func(t *testing.T) {
		preset := makeTask("t5", "user-1")
		preset.TaskNo = 42
		require.NoError(t, s.tasks.Create(ctx, preset))
		assert.Equal(t, int64(42), preset.TaskNo)
	})
}

func TestTaskRepoGetActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.seedUser(t, "user-1", 100)
	require.NoError(t, s.tasks.Create(ctx, makeTask("t1", "user-1")))

	got, err := s.tasks.GetActive(ctx, "t1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)

	_, err = s.tasks.GetActive(ctx, "t1", "someone-else")
	assert.True(t, shared.IsNotFound(err))

	cancelled := makeTask("t2", "user-1")
	cancelled.Status = task.StatusCancelled
	require.NoError(t, s.tasks.Create(ctx, cancelled))
	_, err = s.tasks.GetActive(ctx, "t2", "user-1")
	assert.True(t, shared.IsNotFound(err))
}

func TestTaskRepoGetByTaskNo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.seedUser(t, "user-1", 100)

	retired := makeTask("t1", "user-1")
	retired.Status = task.StatusUpdated
	require.NoError(t, s.tasks.Create(ctx, retired))

	prevID := "t1"
	current := makeTask("t2", "user-1")
	current.PreviousID = &prevID
	current.CreatedAt = baseTime.Add(time.Minute)
	require.NoError(t, s.tasks.Create(ctx, current))

	got, err := s.tasks.GetByTaskNo(ctx, "user-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "t2", got.ID)

	t.Run("snoozed version is addressable", func(t *testing.T) {
		snoozed := makeTask("t3", "user-1")
		snoozed.PreviousID = &prevID
		snoozed.Status = task.StatusSnoozed
		snoozed.CreatedAt = baseTime.Add(2 * time.Minute)
		require.NoError(t, s.tasks.Create(ctx, snoozed))

		got, err := s.tasks.GetByTaskNo(ctx, "user-1", 1)
		require.NoError(t, err)
		assert.Equal(t, "t3", got.ID)
	})

	t.Run("unknown number", func(t *testing.T) {
		_, err := s.tasks.GetByTaskNo(ctx, "user-1", 99)
		assert.True(t, shared.IsNotFound(err))
	})
}

func TestTaskRepoListByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.seedUser(t, "user-1", 100)
	s.seedUser(t, "user-2", 200)

	for i, id := range []string{"t1", "t2", "t3"} {
		tk := makeTask(id, "user-1")
		tk.CreatedAt = baseTime.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.tasks.Create(ctx, tk))
	}
	require.NoError(t, s.tasks.Create(ctx, makeTask("other", "user-2")))

	got, err := s.tasks.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "t3", got[0].ID)
	assert.Equal(t, "t2", got[1].ID)
	assert.Equal(t, "t1", got[2].ID)
}

func TestTaskRepoListActiveForSnooze(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.seedUser(t, "user-1", 100)

	current := makeTask("current", "user-1")
	require.NoError(t, s.tasks.Create(ctx, current))

	ended := makeTask("ended", "user-1")
	pastEnd := baseTime.AddDate(0, 0, 2)
	ended.EndDate = &pastEnd
	require.NoError(t, s.tasks.Create(ctx, ended))

	oneTime := makeTask("one-time", "user-1")
	oneTime.EndDate = nil
	oneTime.FrequencyMs = 0
	oneTime.Occurrences = 1
	require.NoError(t, s.tasks.Create(ctx, oneTime))

	snoozed := makeTask("snoozed", "user-1")
	snoozed.Status = task.StatusSnoozed
	require.NoError(t, s.tasks.Create(ctx, snoozed))

	got, err := s.tasks.ListActiveForSnooze(ctx, "user-1", baseTime.AddDate(0, 0, 5))
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, tk := range got {
		ids = append(ids, tk.ID)
	}
	assert.ElementsMatch(t, []string{"current", "one-time"}, ids)
}

func TestTaskRepoListUnscheduled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.seedUser(t, "user-1", 100)

	orphan := makeTask("orphan", "user-1")
	require.NoError(t, s.tasks.Create(ctx, orphan))

	scheduled := makeTask("scheduled", "user-1")
	jobID := "job-1"
	scheduled.SchedulerJobID = &jobID
	require.NoError(t, s.tasks.Create(ctx, scheduled))

	// Snoozed with a window but no pending activate event: the resume was
	// lost, the sweep must pick it up.
	windowEnd := baseTime.AddDate(0, 0, 3)
	stranded := makeTask("stranded", "user-1")
	stranded.Status = task.StatusSnoozed
	stranded.SnoozeEndAt = &windowEnd
	require.NoError(t, s.tasks.Create(ctx, stranded))

	// Snoozed with its activate event still pending.
	resuming := makeTask("resuming", "user-1")
	resuming.Status = task.StatusSnoozed
	resuming.SnoozeEndAt = &windowEnd
	activateJob := "job-2"
	resuming.SchedulerJobID = &activateJob
	require.NoError(t, s.tasks.Create(ctx, resuming))

	// Terminally snoozed tasks carry no window and own no job.
	retired := makeTask("retired", "user-1")
	retired.Status = task.StatusSnoozed
	require.NoError(t, s.tasks.Create(ctx, retired))

	got, err := s.tasks.ListUnscheduled(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, tk := range got {
		ids = append(ids, tk.ID)
	}
	assert.ElementsMatch(t, []string{"orphan", "stranded"}, ids)
}

func TestTaskRepoUpdateGuarded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.seedUser(t, "user-1", 100)

	tk := makeTask("t1", "user-1")
	require.NoError(t, s.tasks.Create(ctx, tk))

	t.Run("writes when the status matches", func(t *testing.T) {
		tk.Status = task.StatusSnoozed
		tk.TriggerCount = 3
		windowEnd := baseTime.AddDate(0, 0, 3)
		tk.SnoozeEndAt = &windowEnd

		require.NoError(t, s.tasks.UpdateGuarded(ctx, tk, task.StatusActive))

		got, err := s.tasks.GetByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, task.StatusSnoozed, got.Status)
		assert.Equal(t, 3, got.TriggerCount)
		require.NotNil(t, got.SnoozeEndAt)
		assert.True(t, got.SnoozeEndAt.Equal(windowEnd))
	})

	t.Run("stale expectation conflicts", func(t *testing.T) {
		tk.Status = task.StatusCancelled
		err := s.tasks.UpdateGuarded(ctx, tk, task.StatusActive)
		require.Error(t, err)
		assert.True(t, shared.IsConflict(err))

		got, getErr := s.tasks.GetByID(ctx, "t1")
		require.NoError(t, getErr)
		assert.Equal(t, task.StatusSnoozed, got.Status)
	})

	t.Run("unknown task conflicts", func(t *testing.T) {
		ghost := makeTask("ghost", "user-1")
		err := s.tasks.UpdateGuarded(ctx, ghost, task.StatusActive)
		assert.True(t, shared.IsConflict(err))
	})
}

func TestTaskRepoSetSchedulerJobID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.seedUser(t, "user-1", 100)
	require.NoError(t, s.tasks.Create(ctx, makeTask("t1", "user-1")))

	jobID := "job-7"
	require.NoError(t, s.tasks.SetSchedulerJobID(ctx, "t1", &jobID))
	got, err := s.tasks.GetByID(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got.SchedulerJobID)
	assert.Equal(t, jobID, *got.SchedulerJobID)

	require.NoError(t, s.tasks.SetSchedulerJobID(ctx, "t1", nil))
	got, err = s.tasks.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got.SchedulerJobID)

	err = s.tasks.SetSchedulerJobID(ctx, "missing", &jobID)
	assert.True(t, shared.IsNotFound(err))
}

func TestTaskRepoWithinTxRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.seedUser(t, "user-1", 100)

	err := s.db.TxRunner.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tasks.Create(ctx, makeTask("t1", "user-1")); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, s.db.CountRows(t, "tasks"))
}
