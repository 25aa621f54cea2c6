package monitoring

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 5 * time.Second

type HealthCheck struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"last_run"`
}

type HealthCheckFunc func(ctx context.Context) error

type HealthChecker struct {
	mu    sync.RWMutex
	funcs map[string]HealthCheckFunc
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{funcs: make(map[string]HealthCheckFunc)}
}

func (h *HealthChecker) Register(name string, check HealthCheckFunc) {
	h.mu.Lock()
	h.funcs[name] = check
	h.mu.Unlock()
}

// Run executes every registered check, each under its own timeout.
func (h *HealthChecker) Run(ctx context.Context) map[string]HealthCheck {
	h.mu.RLock()
	funcs := make(map[string]HealthCheckFunc, len(h.funcs))
	for name, fn := range h.funcs {
		funcs[name] = fn
	}
	h.mu.RUnlock()

	results := make(map[string]HealthCheck, len(funcs))
	for name, fn := range funcs {
		results[name] = runCheck(ctx, name, fn)
	}
	return results
}

func runCheck(ctx context.Context, name string, fn HealthCheckFunc) HealthCheck {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	check := HealthCheck{Name: name, Status: "healthy", LastRun: time.Now()}
	if err := fn(ctx); err != nil {
		check.Status = "unhealthy"
		check.Message = err.Error()
	}
	return check
}

func healthy(checks map[string]HealthCheck) bool {
	for _, check := range checks {
		if check.Status != "healthy" {
			return false
		}
	}
	return true
}

func (h *HealthChecker) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := h.Run(c.Request.Context())

		overallStatus := "healthy"
		status := http.StatusOK
		if !healthy(checks) {
			overallStatus = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":    overallStatus,
			"timestamp": time.Now(),
			"checks":    checks,
			"uptime":    time.Since(globalMetrics.StartTime).String(),
		})
	}
}

func (h *HealthChecker) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if healthy(h.Run(c.Request.Context())) {
			c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": time.Now()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "timestamp": time.Now()})
	}
}

func LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
			"uptime":    time.Since(globalMetrics.StartTime).String(),
		})
	}
}
