package handlers

import (
	"net/http"

	"smart-task-manager/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/mudler/xlog"
	"gorm.io/gorm"
)

type LogoutHandler struct {
	db          *gorm.DB
	authService services.AuthService
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func NewLogoutHandler(db *gorm.DB, authService services.AuthService) *LogoutHandler {
	return &LogoutHandler{db: db, authService: authService}
}

// Logout revokes the refresh token. It always reports success so callers
// cannot discover which tokens exist.
func (h *LogoutHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	if err := h.authService.RevokeToken(c.Request.Context(), h.db, req.RefreshToken); err != nil {
		xlog.Debug("Refresh token revocation failed", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
