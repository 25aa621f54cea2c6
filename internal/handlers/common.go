package handlers

import (
	"net/http"

	"smart-task-manager/backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

// currentUser returns the authenticated caller, replying 401 when absent.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return uuid.Nil, false
	}
	return userID, true
}

// pathID parses a uuid path parameter, replying with notFound when it is
// not a valid id so unknown and malformed ids look the same.
func pathID(c *gin.Context, name, notFound string) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param(name))
	if err != nil || id == uuid.Nil {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return uuid.Nil, false
	}
	return id, true
}
