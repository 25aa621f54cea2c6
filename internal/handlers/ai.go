package handlers

import (
	"net/http"
	"strings"

	"smart-task-manager/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// unsavedTaskID marks a summary request for a task that has not been saved.
const unsavedTaskID = "temp"

type AIHandler struct {
	db          *gorm.DB
	assistant   services.AssistantService
	taskService services.TaskService
}

type DescriptionRequest struct {
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
}

type PrioritizeRequest struct {
	Tasks []map[string]interface{} `json:"tasks"`
}

func NewAIHandler(db *gorm.DB, assistant services.AssistantService, taskService services.TaskService) *AIHandler {
	return &AIHandler{db: db, assistant: assistant, taskService: taskService}
}

func bindDescription(c *gin.Context) (DescriptionRequest, bool) {
	var req DescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Description) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Task description is required"})
		return req, false
	}
	return req, true
}

// Summarize returns a short summary and, when task_id names a saved task,
// stores it on that task.
func (h *AIHandler) Summarize(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	req, ok := bindDescription(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var taskID uuid.UUID
	if req.TaskID != "" && req.TaskID != unsavedTaskID {
		id, err := uuid.FromString(req.TaskID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		if _, err := h.taskService.GetTaskByID(ctx, h.db, userID, id); err != nil {
			handleTaskError(c, err)
			return
		}
		taskID = id
	}

	summary, err := h.assistant.Summarize(ctx, req.Description)
	if err != nil {
		handleAIError(c, err)
		return
	}

	if taskID != uuid.Nil {
		if _, err := h.taskService.UpdateTask(ctx, h.db, userID, taskID, services.TaskUpdate{Summary: &summary}); err != nil {
			handleTaskError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (h *AIHandler) SummarizeDetailed(c *gin.Context) {
	req, ok := bindDescription(c)
	if !ok {
		return
	}

	points, err := h.assistant.SummarizeDetailed(c.Request.Context(), req.Description)
	if err != nil {
		handleAIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": points})
}

func (h *AIHandler) GenerateSubtasksOnly(c *gin.Context) {
	req, ok := bindDescription(c)
	if !ok {
		return
	}

	markdown, err := h.assistant.SubtaskMarkdown(c.Request.Context(), req.Description)
	if err != nil {
		handleAIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":         "Subtasks generated successfully.",
		"markdown_output": markdown,
	})
}

func (h *AIHandler) Prioritize(c *gin.Context) {
	var req PrioritizeRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Tasks) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A list of tasks is required for prioritization"})
		return
	}

	ranking, err := h.assistant.Prioritize(c.Request.Context(), req.Tasks)
	if err != nil {
		handleAIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ranking_markdown": ranking,
		"message":          "Ranking generated successfully.",
	})
}
