package task_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/shared"
	"remindbot/internal/task"
)

func TestStatusTerminal(t *testing.T) {
	assert.False(t, task.StatusActive.Terminal())
	assert.False(t, task.StatusSnoozed.Terminal())
	assert.True(t, task.StatusCancelled.Terminal())
	assert.True(t, task.StatusUpdated.Terminal())
	assert.True(t, task.StatusCompleted.Terminal())
}

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		from, to task.Status
		ok       bool
	}{
		{task.StatusActive, task.StatusSnoozed, true},
		{task.StatusActive, task.StatusCancelled, true},
		{task.StatusActive, task.StatusUpdated, true},
		{task.StatusActive, task.StatusCompleted, true},
		{task.StatusSnoozed, task.StatusActive, true},
		{task.StatusSnoozed, task.StatusCancelled, true},
		{task.StatusSnoozed, task.StatusCompleted, true},
		{task.StatusSnoozed, task.StatusUpdated, false},
		{task.StatusCancelled, task.StatusActive, false},
		{task.StatusCompleted, task.StatusActive, false},
		{task.StatusUpdated, task.StatusActive, false},
		{task.StatusActive, task.StatusActive, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestValidateSchedule(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(24 * time.Hour)
	end := start.AddDate(0, 0, 7)

	tests := []struct {
		name    string
		start   time.Time
		end     *time.Time
		freqMs  int64
		wantErr bool
	}{
		{"one-time without end", start, nil, 0, false},
		{"recurring with end", start, &end, dayMs, false},
		{"end without frequency", start, &end, 0, true},
		{"frequency without end", start, nil, dayMs, true},
		{"start in the past", now.Add(-time.Hour), nil, 0, true},
		{"end before start", start, ptrTime(start.Add(-time.Hour)), dayMs, true},
		{"end equals start", start, &start, dayMs, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := task.ValidateSchedule(tt.start, tt.end, tt.freqMs, now)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, shared.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRecordTrigger(t *testing.T) {
	t.Run("counts up to completion", func(t *testing.T) {
		tk := &task.Task{ID: "t1", Status: task.StatusActive, Occurrences: 3}

		for i := 1; i <= 2; i++ {
			done, err := tk.RecordTrigger()
			require.NoError(t, err)
			assert.False(t, done)
			assert.Equal(t, i, tk.TriggerCount)
		}

		done, err := tk.RecordTrigger()
		require.NoError(t, err)
		assert.True(t, done)
		assert.Equal(t, task.StatusCompleted, tk.Status)
	})

	t.Run("rejects firing when not active", func(t *testing.T) {
		tk := &task.Task{ID: "t1", Status: task.StatusSnoozed, Occurrences: 3}
		_, err := tk.RecordTrigger()
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("overshoot violates the invariant", func(t *testing.T) {
		tk := &task.Task{ID: "t1", Status: task.StatusActive, Occurrences: 1, TriggerCount: 1}
		_, err := tk.RecordTrigger()
		require.Error(t, err)
	})
}

func TestLifecycleHelpers(t *testing.T) {
	jobID := "job-1"

	t.Run("begin snooze clears job", func(t *testing.T) {
		tk := &task.Task{Status: task.StatusActive, SchedulerJobID: &jobID}
		require.NoError(t, tk.BeginSnooze())
		assert.Equal(t, task.StatusSnoozed, tk.Status)
		assert.Nil(t, tk.SchedulerJobID)
	})

	t.Run("resume", func(t *testing.T) {
		tk := &task.Task{Status: task.StatusSnoozed}
		require.NoError(t, tk.Resume())
		assert.Equal(t, task.StatusActive, tk.Status)
	})

	t.Run("cancel from snoozed", func(t *testing.T) {
		tk := &task.Task{Status: task.StatusSnoozed, SchedulerJobID: &jobID}
		require.NoError(t, tk.Cancel())
		assert.Equal(t, task.StatusCancelled, tk.Status)
		assert.Nil(t, tk.SchedulerJobID)
	})

	t.Run("retire only from active", func(t *testing.T) {
		tk := &task.Task{Status: task.StatusSnoozed}
		require.Error(t, tk.Retire())

		tk.Status = task.StatusActive
		require.NoError(t, tk.Retire())
		assert.Equal(t, task.StatusUpdated, tk.Status)
	})

	t.Run("terminal states stay terminal", func(t *testing.T) {
		tk := &task.Task{Status: task.StatusCancelled}
		assert.Error(t, tk.Resume())
		assert.Error(t, tk.Complete())
		assert.Error(t, tk.Cancel())
	})
}

func TestTaskShapeHelpers(t *testing.T) {
	end := time.Now().AddDate(0, 0, 7)

	oneTime := &task.Task{FrequencyMs: 0}
	assert.True(t, oneTime.OneTime())
	assert.True(t, oneTime.OpenEnded())

	recurring := &task.Task{FrequencyMs: dayMs, EndDate: &end}
	assert.False(t, recurring.OneTime())
	assert.False(t, recurring.OpenEnded())
}
