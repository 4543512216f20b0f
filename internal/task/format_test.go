package task_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/task"
)

func TestFormatReminder(t *testing.T) {
	at := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "Reminder #0042 Jan 05", task.FormatReminder(42, at))
	assert.Equal(t, "Reminder #12345 Jan 05", task.FormatReminder(12345, at))
}

func TestExtractTaskNo(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
		ok   bool
	}{
		{"plain label", "Reminder #0042 Jan 05", 42, true},
		{"label inside text", "done with Reminder #7 already", 7, true},
		{"no label", "just some text", 0, false},
		{"hash without number", "Reminder #", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			no, ok := task.ExtractTaskNo(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, no)
			}
		})
	}
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Take the pills", task.Capitalize("take the pills"))
	assert.Equal(t, "Take the pills", task.Capitalize("Take the pills"))
	assert.Equal(t, "", task.Capitalize(""))
	assert.Equal(t, "Привет", task.Capitalize("привет"))
}

func TestDefaultReminderTime(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)

	t.Run("explicit date and time", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		at, err := task.DefaultReminderTime("2026-03-05", "14:30", loc, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 5, 13, 30, 0, 0, time.UTC), at)
	})

	t.Run("morning defaults to nine", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 7, 0, 0, 0, loc).UTC()
		at, err := task.DefaultReminderTime("", "", loc, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, loc).UTC(), at)
	})

	t.Run("afternoon defaults to six", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 13, 0, 0, 0, loc).UTC()
		at, err := task.DefaultReminderTime("", "", loc, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 1, 18, 0, 0, 0, loc).UTC(), at)
	})

	t.Run("past instant rolls to next day", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 10, 0, 0, 0, loc).UTC()
		at, err := task.DefaultReminderTime("2026-03-01", "09:00", loc, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, loc).UTC(), at)
	})

	t.Run("malformed date", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		_, err := task.DefaultReminderTime("not-a-date", "09:00", loc, now)
		assert.Error(t, err)
	})
}
