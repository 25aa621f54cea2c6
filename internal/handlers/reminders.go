package handlers

import (
	"errors"
	"net/http"

	"smart-task-manager/backend/internal/models"
	"smart-task-manager/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/mudler/xlog"
)

type ReminderHandler struct {
	reminderService services.ReminderService
}

type ReminderRequest struct {
	TaskID       *string               `json:"task_id"`
	TriggerValue services.TriggerValue `json:"trigger_value"`
	Message      string                `json:"message"`
	ReminderType models.ReminderType   `json:"reminder_type"`
}

func NewReminderHandler(reminderService services.ReminderService) *ReminderHandler {
	return &ReminderHandler{reminderService: reminderService}
}

func (h *ReminderHandler) CreateReminder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req ReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TriggerValue == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Trigger time/value is required"})
		return
	}

	input := services.CreateReminderInput{
		TriggerValue: string(req.TriggerValue),
		Message:      req.Message,
		Type:         req.ReminderType,
	}
	if req.TaskID != nil && *req.TaskID != "" {
		taskID, err := uuid.FromString(*req.TaskID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "task_id is not a valid id"})
			return
		}
		input.TaskID = &taskID
	}

	if _, err := h.reminderService.Create(c.Request.Context(), userID, input); err != nil {
		handleReminderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Reminder set successfully"})
}

// nonNilReminders keeps an empty list encoding as [] rather than null.
func nonNilReminders(reminders []models.Reminder) []models.Reminder {
	if reminders == nil {
		return []models.Reminder{}
	}
	return reminders
}

func (h *ReminderHandler) ListReminders(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	reminders, err := h.reminderService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		handleReminderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminders": nonNilReminders(reminders)})
}

func (h *ReminderHandler) ListTriggeredReminders(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	reminders, err := h.reminderService.ListTriggeredForUser(c.Request.Context(), userID)
	if err != nil {
		handleReminderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminders": nonNilReminders(reminders)})
}

func (h *ReminderHandler) DismissReminder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Reminder not found")
	if !ok {
		return
	}

	if err := h.reminderService.Dismiss(c.Request.Context(), userID, id); err != nil {
		handleReminderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reminder dismissed"})
}

func (h *ReminderHandler) DeleteReminder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Reminder not found")
	if !ok {
		return
	}

	if err := h.reminderService.Delete(c.Request.Context(), userID, id); err != nil {
		handleReminderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reminder deleted"})
}

func handleReminderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidReminderInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrReminderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Reminder not found"})
	default:
		xlog.Error("Reminder request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
