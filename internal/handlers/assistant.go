package handlers

import (
	"errors"
	"net/http"
	"strings"

	"smart-task-manager/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/mudler/xlog"
)

// assistantFallback is sent when the model fails so the chat stays usable.
const assistantFallback = "I'm sorry, I couldn't reach the AI service right now. " +
	"Please try again in a moment or simplify your question."

// AssistantHandler serves a stateless chat: no history is stored.
type AssistantHandler struct {
	assistant services.AssistantService
}

type ChatRequest struct {
	Message string `json:"message"`
}

func NewAssistantHandler(assistant services.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

func (h *AssistantHandler) Chat(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty"})
		return
	}

	reply, err := h.assistant.Chat(c.Request.Context(), userID, req.Message)
	switch {
	case errors.Is(err, services.ErrAIFailed):
		xlog.Warn("Assistant chat failed", "user_id", userID, "error", err)
		c.JSON(http.StatusOK, gin.H{"assistant_response": assistantFallback})
		return
	case err != nil:
		handleAIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assistant_response": reply})
}

func (h *AssistantHandler) GetHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"history": []interface{}{}})
}

func (h *AssistantHandler) ClearHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Stateless mode: no stored history to clear."})
}
