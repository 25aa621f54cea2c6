package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mudler/xlog"
)

// RecoveryWithLog turns a handler panic into a logged 500 response.
func RecoveryWithLog() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		xlog.Error("Recovered from panic",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
