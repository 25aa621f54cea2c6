package monitoring

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type Metrics struct {
	mu              sync.RWMutex
	RequestCount    int64            `json:"request_count"`
	RequestDuration time.Duration    `json:"avg_request_duration_ms"`
	ActiveRequests  int64            `json:"active_requests"`
	ErrorCount      int64            `json:"error_count"`
	StatusCodes     map[string]int64 `json:"status_codes"`
	Endpoints       map[string]int64 `json:"endpoint_calls"`
	StartTime       time.Time        `json:"start_time"`
	LastRequest     time.Time        `json:"last_request"`
	totalDuration   time.Duration
}

// SweepMetrics describes the reminder trigger sweeps run so far.
type SweepMetrics struct {
	mu                 sync.RWMutex
	Runs               int64         `json:"runs"`
	Failures           int64         `json:"failures"`
	RemindersTriggered int64         `json:"reminders_triggered"`
	RemindersDelivered int64         `json:"reminders_delivered"`
	LastRun            time.Time     `json:"last_run"`
	LastDuration       time.Duration `json:"last_duration_ns"`
	LastError          string        `json:"last_error,omitempty"`
}

var globalMetrics = &Metrics{
	StatusCodes: make(map[string]int64),
	Endpoints:   make(map[string]int64),
	StartTime:   time.Now(),
}

var globalSweepMetrics = &SweepMetrics{}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		globalMetrics.mu.Lock()
		globalMetrics.ActiveRequests++
		globalMetrics.mu.Unlock()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		endpoint := c.Request.Method + " " + c.FullPath()

		globalMetrics.mu.Lock()
		globalMetrics.RequestCount++
		globalMetrics.ActiveRequests--
		globalMetrics.totalDuration += duration
		globalMetrics.RequestDuration = globalMetrics.totalDuration / time.Duration(globalMetrics.RequestCount)
		globalMetrics.LastRequest = time.Now()

		if statusCode >= 400 {
			globalMetrics.ErrorCount++
		}
		globalMetrics.StatusCodes[http.StatusText(statusCode)]++
		globalMetrics.Endpoints[endpoint]++
		globalMetrics.mu.Unlock()
	}
}

func GetMetrics() *Metrics {
	globalMetrics.mu.RLock()
	defer globalMetrics.mu.RUnlock()

	metrics := &Metrics{
		RequestCount:    globalMetrics.RequestCount,
		RequestDuration: globalMetrics.RequestDuration,
		ActiveRequests:  globalMetrics.ActiveRequests,
		ErrorCount:      globalMetrics.ErrorCount,
		StatusCodes:     make(map[string]int64, len(globalMetrics.StatusCodes)),
		Endpoints:       make(map[string]int64, len(globalMetrics.Endpoints)),
		StartTime:       globalMetrics.StartTime,
		LastRequest:     globalMetrics.LastRequest,
	}
	for k, v := range globalMetrics.StatusCodes {
		metrics.StatusCodes[k] = v
	}
	for k, v := range globalMetrics.Endpoints {
		metrics.Endpoints[k] = v
	}
	return metrics
}

// RecordSweep stores the outcome of one reminder sweep.
func RecordSweep(triggered int, duration time.Duration, err error) {
	globalSweepMetrics.mu.Lock()
	defer globalSweepMetrics.mu.Unlock()

	globalSweepMetrics.Runs++
	globalSweepMetrics.RemindersTriggered += int64(triggered)
	globalSweepMetrics.LastRun = time.Now()
	globalSweepMetrics.LastDuration = duration
	if err != nil {
		globalSweepMetrics.Failures++
		globalSweepMetrics.LastError = err.Error()
	} else {
		globalSweepMetrics.LastError = ""
	}
}

func RecordReminderDelivered() {
	globalSweepMetrics.mu.Lock()
	globalSweepMetrics.RemindersDelivered++
	globalSweepMetrics.mu.Unlock()
}

func GetSweepMetrics() *SweepMetrics {
	globalSweepMetrics.mu.RLock()
	defer globalSweepMetrics.mu.RUnlock()

	return &SweepMetrics{
		Runs:               globalSweepMetrics.Runs,
		Failures:           globalSweepMetrics.Failures,
		RemindersTriggered: globalSweepMetrics.RemindersTriggered,
		RemindersDelivered: globalSweepMetrics.RemindersDelivered,
		LastRun:            globalSweepMetrics.LastRun,
		LastDuration:       globalSweepMetrics.LastDuration,
		LastError:          globalSweepMetrics.LastError,
	}
}

type SystemMetrics struct {
	Uptime         time.Duration `json:"uptime"`
	MemoryUsage    MemoryStats   `json:"memory"`
	GoroutineCount int           `json:"goroutine_count"`
	CPUCount       int           `json:"cpu_count"`
	GoVersion      string        `json:"go_version"`
}

type MemoryStats struct {
	Alloc        uint64 `json:"alloc_mb"`
	TotalAlloc   uint64 `json:"total_alloc_mb"`
	Sys          uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
	NextGC       uint64 `json:"next_gc_mb"`
	LastGC       string `json:"last_gc"`
	GCPauseTotal string `json:"gc_pause_total"`
}

func GetSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		Uptime: time.Since(globalMetrics.StartTime),
		MemoryUsage: MemoryStats{
			Alloc:        bToMb(m.Alloc),
			TotalAlloc:   bToMb(m.TotalAlloc),
			Sys:          bToMb(m.Sys),
			NumGC:        m.NumGC,
			NextGC:       bToMb(m.NextGC),
			LastGC:       time.Unix(0, int64(m.LastGC)).Format(time.RFC3339),
			GCPauseTotal: time.Duration(m.PauseTotalNs).String(),
		},
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// MetricsHandler reports request, reminder sweep and runtime metrics. extra
// sections (cache stats, queue depth) are evaluated per request.
func MetricsHandler(extra map[string]func() interface{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"application": GetMetrics(),
			"reminders":   GetSweepMetrics(),
			"system":      GetSystemMetrics(),
			"timestamp":   time.Now(),
		}
		for name, fn := range extra {
			response[name] = fn()
		}
		c.JSON(http.StatusOK, response)
	}
}
