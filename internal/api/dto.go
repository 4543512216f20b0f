package api

import (
	"time"

	"remindbot/internal/task"
)

// createTaskRequest is the POST /api/tasks body. EndDate and FrequencyMs
// come together or not at all; that invariant is enforced by the engine,
// not the binding layer.
type createTaskRequest struct {
	UserID           string     `json:"userId" binding:"required,uuid4"`
	Title            string     `json:"title"`
	ReminderText     string     `json:"reminderText" binding:"required"`
	ConfirmationText string     `json:"confirmationText"`
	StartDate        time.Time  `json:"startDate" binding:"required"`
	EndDate          *time.Time `json:"endDate"`
	FrequencyMs      int64      `json:"frequencyMs" binding:"min=0"`
	Occurrences      int        `json:"occurrences" binding:"min=0"`
}

// updateTaskRequest is the PUT /api/tasks/:id body. Zero fields inherit
// from the current version.
type updateTaskRequest struct {
	UserID           string     `json:"userId" binding:"required,uuid4"`
	Title            string     `json:"title"`
	ReminderText     string     `json:"reminderText"`
	ConfirmationText string     `json:"confirmationText"`
	StartDate        time.Time  `json:"startDate"`
	EndDate          *time.Time `json:"endDate"`
	FrequencyMs      int64      `json:"frequencyMs" binding:"min=0"`
	Occurrences      int        `json:"occurrences" binding:"min=0"`
}

// snoozeRequest is the body of both snooze endpoints.
type snoozeRequest struct {
	UserID    string    `json:"userId" binding:"required,uuid4"`
	StartDate time.Time `json:"startDate" binding:"required"`
	Days      int       `json:"days" binding:"min=0"`
}

// taskResponse is the wire shape of a task.
type taskResponse struct {
	ID               string     `json:"id"`
	TaskNo           int64      `json:"taskNo"`
	PreviousID       *string    `json:"previousId,omitempty"`
	UserID           string     `json:"userId"`
	Title            string     `json:"title"`
	ReminderText     string     `json:"reminderText"`
	ConfirmationText string     `json:"confirmationText,omitempty"`
	StartDate        time.Time  `json:"startDate"`
	EndDate          *time.Time `json:"endDate,omitempty"`
	FrequencyMs      int64      `json:"frequencyMs"`
	Occurrences      int        `json:"occurrences"`
	Status           string     `json:"status"`
	TriggerCount     int        `json:"triggerCount"`
	SnoozeStartAt    *time.Time `json:"snoozeStartAt,omitempty"`
	SnoozeEndAt      *time.Time `json:"snoozeEndAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func toTaskResponse(t *task.Task) taskResponse {
	return taskResponse{
		ID:               t.ID,
		TaskNo:           t.TaskNo,
		PreviousID:       t.PreviousID,
		UserID:           t.UserID,
		Title:            t.Title,
		ReminderText:     t.ReminderText,
		ConfirmationText: t.ConfirmationText,
		StartDate:        t.StartDate,
		EndDate:          t.EndDate,
		FrequencyMs:      t.FrequencyMs,
		Occurrences:      t.Occurrences,
		Status:           string(t.Status),
		TriggerCount:     t.TriggerCount,
		SnoozeStartAt:    t.SnoozeStartAt,
		SnoozeEndAt:      t.SnoozeEndAt,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func toTaskResponses(tasks []*task.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	return out
}
