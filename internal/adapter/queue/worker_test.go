package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/schedule"
)

// recordDispatcher captures dispatched events.
type recordDispatcher struct {
	mu     sync.Mutex
	events []schedule.Event
	err    error
}

func (d *recordDispatcher) Dispatch(ctx context.Context, ev schedule.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return d.err
}

func (d *recordDispatcher) dispatched() []schedule.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]schedule.Event(nil), d.events...)
}

func TestHandleDispatchesEvent(t *testing.T) {
	d := &recordDispatcher{}
	w := &Worker{dispatch: d, log: slog.Default()}

	ev := schedule.NewEvent("task-1", schedule.ActionSnooze, time.Now())
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, w.handle(context.Background(), asynq.NewTask(TypeReminderEvent, payload)))

	events := d.dispatched()
	require.Len(t, events, 1)
	assert.Equal(t, ev.EventID, events[0].EventID)
	assert.Equal(t, schedule.ActionSnooze, events[0].Action)
}

func TestHandleDropsUndecodablePayload(t *testing.T) {
	d := &recordDispatcher{}
	w := &Worker{dispatch: d, log: slog.Default()}

	// Retrying cannot fix a broken payload, so the handler must not fail.
	require.NoError(t, w.handle(context.Background(), asynq.NewTask(TypeReminderEvent, []byte("not json"))))
	assert.Empty(t, d.dispatched())
}

func TestHandlePropagatesDispatchError(t *testing.T) {
	d := &recordDispatcher{err: assert.AnError}
	w := &Worker{dispatch: d, log: slog.Default()}

	ev := schedule.NewEvent("task-1", schedule.ActionFire, time.Now())
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	err = w.handle(context.Background(), asynq.NewTask(TypeReminderEvent, payload))
	assert.ErrorIs(t, err, assert.AnError)
}
