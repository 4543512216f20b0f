package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"remindbot/internal/shared"
	"remindbot/internal/task"
)

func (s *Server) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := s.svc.Create(c.Request.Context(), req.UserID, task.CreateInput{
		Title:            req.Title,
		ReminderText:     req.ReminderText,
		ConfirmationText: req.ConfirmationText,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		FrequencyMs:      req.FrequencyMs,
		Occurrences:      req.Occurrences,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTaskResponse(t))
}

func (s *Server) listTasks(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId query parameter is required"})
		return
	}
	tasks, err := s.svc.List(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": toTaskResponses(tasks)})
}

func (s *Server) getTask(c *gin.Context) {
	t, err := s.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(t))
}

func (s *Server) updateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := s.svc.Update(c.Request.Context(), req.UserID, c.Param("id"), task.CreateInput{
		Title:            req.Title,
		ReminderText:     req.ReminderText,
		ConfirmationText: req.ConfirmationText,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		FrequencyMs:      req.FrequencyMs,
		Occurrences:      req.Occurrences,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(t))
}

func (s *Server) cancelTask(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId query parameter is required"})
		return
	}
	t, err := s.svc.Cancel(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(t))
}

func (s *Server) snoozeTask(c *gin.Context) {
	var req snoozeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.svc.Snooze(c.Request.Context(), req.UserID, c.Param("id"), req.StartDate, req.Days); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "snoozed"})
}

func (s *Server) snoozeAll(c *gin.Context) {
	var req snoozeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.svc.SnoozeAll(c.Request.Context(), req.UserID, req.StartDate, req.Days); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "snoozed"})
}

// writeError maps engine error kinds to HTTP statuses. Internal detail is
// logged, not leaked.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch shared.KindOf(err) {
	case shared.KindNotFound:
		status, msg = http.StatusNotFound, "not found"
	case shared.KindValidation:
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case shared.KindUnauthorized:
		status, msg = http.StatusUnauthorized, "unauthorized"
	case shared.KindConflict:
		status, msg = http.StatusConflict, "conflict, retry the request"
	case shared.KindTimeout:
		status, msg = http.StatusGatewayTimeout, "timeout"
	case shared.KindDependencyFailure:
		status, msg = http.StatusBadGateway, "upstream failure"
	}

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}
