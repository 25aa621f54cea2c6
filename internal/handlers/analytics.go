package handlers

import (
	"net/http"
	"time"

	"smart-task-manager/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/mudler/xlog"
	"gorm.io/gorm"
)

type AnalyticsHandler struct {
	db               *gorm.DB
	analyticsService services.AnalyticsService
	loc              *time.Location
	now              func() time.Time
}

func NewAnalyticsHandler(db *gorm.DB, analyticsService services.AnalyticsService, loc *time.Location) *AnalyticsHandler {
	if loc == nil {
		loc = time.Local
	}
	return &AnalyticsHandler{db: db, analyticsService: analyticsService, loc: loc, now: time.Now}
}

func (h *AnalyticsHandler) today() time.Time {
	return h.now().In(h.loc)
}

func analyticsFailed(c *gin.Context, err error) {
	xlog.Error("Failed to compute analytics", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analytics"})
}

func (h *AnalyticsHandler) GetMetrics(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	metrics, err := h.analyticsService.CoreMetrics(c.Request.Context(), h.db, userID)
	if err != nil {
		analyticsFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (h *AnalyticsHandler) GetDistribution(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	dist, err := h.analyticsService.PriorityDistribution(c.Request.Context(), h.db, userID)
	if err != nil {
		analyticsFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"priorityDistribution": dist})
}

func (h *AnalyticsHandler) GetTrends(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	trend, err := h.analyticsService.CompletionTrend(c.Request.Context(), h.db, userID, h.today())
	if err != nil {
		analyticsFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completionTrends": trend})
}

func (h *AnalyticsHandler) GetActivity(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	activity, err := h.analyticsService.WeekdayActivity(c.Request.Context(), h.db, userID, h.today())
	if err != nil {
		analyticsFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dayOfWeekActivity": activity})
}
