package handlers

import (
	"errors"
	"net/http"
	"time"

	"smart-task-manager/backend/internal/models"
	"smart-task-manager/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/mudler/xlog"
	"gorm.io/gorm"
)

type TaskHandler struct {
	db          *gorm.DB
	taskService services.TaskService
	location    *time.Location
	now         func() time.Time
}

type TaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
	DueDate     *string  `json:"due_date"`
	Status      string   `json:"status"`
}

type TaskUpdateRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Priority    *string   `json:"priority"`
	Tags        *[]string `json:"tags"`
	DueDate     *string   `json:"due_date"`
	Status      *string   `json:"status"`
	Summary     *string   `json:"summary"`
}

// NewTaskHandler builds the task endpoints. loc decides which calendar day
// counts as "today" for alerts; nil means the server's local zone.
func NewTaskHandler(db *gorm.DB, taskService services.TaskService, loc *time.Location) *TaskHandler {
	if loc == nil {
		loc = time.Local
	}
	return &TaskHandler{db: db, taskService: taskService, location: loc, now: time.Now}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title == "" || req.Description == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title and description are required"})
		return
	}

	input := services.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Tags:        req.Tags,
		Status:      req.Status,
	}
	if req.DueDate != nil {
		input.DueDate = *req.DueDate
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), h.db, userID, input)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Task created successfully", "task": task})
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.GetTasksByUser(c.Request.Context(), h.db, userID)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TaskHandler) GetTaskAlerts(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	alerts, err := h.taskService.GetTaskAlerts(c.Request.Context(), h.db, userID, h.now().In(h.location))
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Task not found")
	if !ok {
		return
	}

	task, err := h.taskService.GetTaskByID(c.Request.Context(), h.db, userID, id)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Task not found")
	if !ok {
		return
	}

	var req TaskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), h.db, userID, id, services.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Tags:        req.Tags,
		DueDate:     req.DueDate,
		Status:      req.Status,
		Summary:     req.Summary,
	})
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task updated successfully", "task": task})
}

func (h *TaskHandler) CompleteTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Task not found")
	if !ok {
		return
	}

	status := models.TaskStatusCompleted
	task, err := h.taskService.UpdateTask(c.Request.Context(), h.db, userID, id, services.TaskUpdate{Status: &status})
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task marked as completed", "task": task})
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Task not found")
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), h.db, userID, id); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

func handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case errors.Is(err, services.ErrInvalidTaskInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		xlog.Error("Task request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process task request"})
	}
}
