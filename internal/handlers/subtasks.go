package handlers

import (
	"errors"
	"net/http"

	"smart-task-manager/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/mudler/xlog"
	"gorm.io/gorm"
)

type SubtaskHandler struct {
	db             *gorm.DB
	subtaskService services.SubtaskService
}

type SubtaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type SubtaskStatusRequest struct {
	Status string `json:"status"`
}

func NewSubtaskHandler(db *gorm.DB, subtaskService services.SubtaskService) *SubtaskHandler {
	return &SubtaskHandler{db: db, subtaskService: subtaskService}
}

func (h *SubtaskHandler) ListSubtasks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "id", "Task not found")
	if !ok {
		return
	}

	subtasks, err := h.subtaskService.ListSubtasks(c.Request.Context(), h.db, userID, taskID)
	if err != nil {
		handleSubtaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subtasks": subtasks})
}

func (h *SubtaskHandler) CreateSubtask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "id", "Task not found")
	if !ok {
		return
	}

	var req SubtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subtask title is required"})
		return
	}

	subtask, err := h.subtaskService.CreateSubtask(c.Request.Context(), h.db, userID, taskID, req.Title, req.Description)
	if err != nil {
		handleSubtaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Subtask created successfully", "subtask": subtask})
}

func (h *SubtaskHandler) GenerateSubtasks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "id", "Parent task not found")
	if !ok {
		return
	}

	subtasks, err := h.subtaskService.GenerateSubtasks(c.Request.Context(), h.db, userID, taskID)
	if err != nil {
		handleSubtaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Successfully generated and saved subtasks.",
		"subtasks": subtasks,
	})
}

// CompleteSubtask sets a subtask's status, Completed unless the body says
// otherwise.
func (h *SubtaskHandler) CompleteSubtask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Subtask not found")
	if !ok {
		return
	}

	var req SubtaskStatusRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	subtask, err := h.subtaskService.UpdateSubtaskStatus(c.Request.Context(), h.db, userID, id, req.Status)
	if err != nil {
		handleSubtaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subtask marked as " + subtask.Status, "subtask": subtask})
}

func (h *SubtaskHandler) DeleteSubtask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Subtask not found")
	if !ok {
		return
	}

	if err := h.subtaskService.DeleteSubtask(c.Request.Context(), h.db, userID, id); err != nil {
		handleSubtaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subtask deleted successfully"})
}

func handleSubtaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Parent task not found"})
	case errors.Is(err, services.ErrSubtaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Subtask not found"})
	case errors.Is(err, services.ErrInvalidSubtaskInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		handleAIError(c, err)
	}
}

func handleAIError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrAIUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "API key not configured or AI service unavailable"})
	case errors.Is(err, services.ErrAIFailed):
		xlog.Warn("AI request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidTaskInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		xlog.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
