package handlers

import (
	"errors"
	"net/http"

	"smart-task-manager/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/mudler/xlog"
	"gorm.io/gorm"
)

type RefreshHandler struct {
	db          *gorm.DB
	authService services.AuthService
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func NewRefreshHandler(db *gorm.DB, authService services.AuthService) *RefreshHandler {
	return &RefreshHandler{db: db, authService: authService}
}

func (h *RefreshHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, err := h.authService.RefreshToken(c.Request.Context(), h.db, req.RefreshToken)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidRefreshToken) {
			xlog.Error("Token refresh failed", "error", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}
