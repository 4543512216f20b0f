// Package schedule is the façade over the external job queue: it builds
// scheduled events, submits and deletes them, and routes firing callbacks
// back into the engine by their action tag.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action tags what a firing callback means for a task.
type Action string

const (
	// ActionFire is the zero tag: deliver the reminder.
	ActionFire Action = ""
	// ActionSnooze begins a previously deferred snooze window.
	ActionSnooze Action = "snooze"
	// ActionActivate resumes a task whose snooze window ended.
	ActionActivate Action = "activate"
)

// Event is the payload handed to and received from the job queue. EveryMs
// and Times form the optional repeat directive of a reminder schedule;
// control events (snooze/activate) fire exactly once.
type Event struct {
	EventID string    `json:"event_id"`
	FireAt  time.Time `json:"fire_at"`
	EveryMs int64     `json:"every_ms,omitempty"`
	Times   int       `json:"times,omitempty"`
	TaskID  string    `json:"task_id"`
	Action  Action    `json:"action,omitempty"`
}

// NewEvent builds an event with a fresh unique id.
func NewEvent(taskID string, action Action, fireAt time.Time) Event {
	return Event{
		EventID: uuid.NewString(),
		FireAt:  fireAt.UTC(),
		TaskID:  taskID,
		Action:  action,
	}
}

// NextEventID derives the id of a schedule's next occurrence from the
// current one by bumping an occurrence counter suffix. The derivation is
// deterministic: a redelivered firing produces the same successor id, so
// the queue's id uniqueness deduplicates the re-enqueue. The successor
// must not reuse the current id — the queue still holds it for the firing
// being processed.
func NextEventID(id string) string {
	base := id
	n := 1
	if i := strings.LastIndexByte(id, '#'); i >= 0 {
		if parsed, err := strconv.Atoi(id[i+1:]); err == nil {
			base, n = id[:i], parsed
		}
	}
	return fmt.Sprintf("%s#%d", base, n+1)
}
