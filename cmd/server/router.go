package main

import (
	"time"

	"smart-task-manager/backend/internal/config"
	"smart-task-manager/backend/internal/handlers"
	"smart-task-manager/backend/internal/middleware"
	"smart-task-manager/backend/internal/monitoring"
	"smart-task-manager/backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// routerDeps is everything the HTTP layer needs. Tests build it around an
// in-memory database.
type routerDeps struct {
	cfg         *config.Config
	db          *gorm.DB
	location    *time.Location
	auth        services.AuthService
	tasks       services.TaskService
	subtasks    services.SubtaskService
	reminders   services.ReminderService
	assistant   services.AssistantService
	analytics   services.AnalyticsService
	health      *monitoring.HealthChecker
	limiter     *middleware.RateLimiter
	metricsFrom map[string]func() interface{}
}

func newRouter(deps routerDeps) *gin.Engine {
	router := gin.New()
	if !deps.cfg.IsProduction() {
		router.Use(gin.Logger())
	}
	router.Use(middleware.RecoveryWithLog())
	router.Use(monitoring.MetricsMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", deps.health.HealthHandler())
	router.GET("/health/ready", deps.health.ReadinessHandler())
	router.GET("/health/live", monitoring.LivenessHandler())
	router.GET("/metrics", monitoring.MetricsHandler(deps.metricsFrom))

	api := router.Group("/api")
	if deps.limiter != nil {
		api.Use(deps.limiter.Middleware())
	}

	bcryptCost := deps.cfg.Auth.BCryptCost
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	registerHandler := handlers.NewRegisterHandler(deps.db, services.NewRegisterService(bcryptCost))
	authHandler := handlers.NewAuthHandler(deps.db, deps.auth)
	refreshHandler := handlers.NewRefreshHandler(deps.db, deps.auth)
	logoutHandler := handlers.NewLogoutHandler(deps.db, deps.auth)

	api.POST("/signup", registerHandler.Registration)
	api.POST("/login", authHandler.Login)
	api.POST("/refresh", refreshHandler.Refresh)
	api.POST("/logout", logoutHandler.Logout)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(deps.auth))

	userHandler := handlers.NewUserHandler(deps.db, services.NewUserService())
	protected.GET("/me", userHandler.GetUserProfile)

	taskHandler := handlers.NewTaskHandler(deps.db, deps.tasks, deps.location)
	protected.GET("/tasks", taskHandler.GetTasks)
	protected.POST("/tasks", taskHandler.CreateTask)
	protected.GET("/tasks/alerts", taskHandler.GetTaskAlerts)
	protected.GET("/tasks/:id", taskHandler.GetTaskByID)
	protected.PUT("/tasks/:id", taskHandler.UpdateTask)
	protected.DELETE("/tasks/:id", taskHandler.DeleteTask)
	protected.POST("/tasks/:id/complete", taskHandler.CompleteTask)

	subtaskHandler := handlers.NewSubtaskHandler(deps.db, deps.subtasks)
	protected.GET("/tasks/:id/subtasks", subtaskHandler.ListSubtasks)
	protected.POST("/tasks/:id/subtasks", subtaskHandler.CreateSubtask)
	protected.POST("/tasks/:id/subtasks/generate", subtaskHandler.GenerateSubtasks)
	protected.POST("/subtasks/:id/complete", subtaskHandler.CompleteSubtask)
	protected.DELETE("/subtasks/:id", subtaskHandler.DeleteSubtask)

	aiHandler := handlers.NewAIHandler(deps.db, deps.assistant, deps.tasks)
	ai := protected.Group("/ai")
	ai.POST("/summarize", aiHandler.Summarize)
	ai.POST("/summarize-detailed", aiHandler.SummarizeDetailed)
	ai.POST("/generate-subtasks-only", aiHandler.GenerateSubtasksOnly)
	ai.POST("/prioritize", aiHandler.Prioritize)

	assistantHandler := handlers.NewAssistantHandler(deps.assistant)
	chat := protected.Group("/assistant")
	chat.POST("/chat", assistantHandler.Chat)
	chat.GET("/history", assistantHandler.GetHistory)
	chat.POST("/clear-history", assistantHandler.ClearHistory)

	analyticsHandler := handlers.NewAnalyticsHandler(deps.db, deps.analytics, deps.location)
	analytics := protected.Group("/analytics")
	analytics.GET("/metrics", analyticsHandler.GetMetrics)
	analytics.GET("/distribution", analyticsHandler.GetDistribution)
	analytics.GET("/trends", analyticsHandler.GetTrends)
	analytics.GET("/activity", analyticsHandler.GetActivity)

	reminderHandler := handlers.NewReminderHandler(deps.reminders)
	protected.POST("/reminders", reminderHandler.CreateReminder)
	protected.GET("/reminders", reminderHandler.ListReminders)
	protected.GET("/reminders/triggered", reminderHandler.ListTriggeredReminders)
	protected.POST("/reminders/:id/dismiss", reminderHandler.DismissReminder)
	protected.DELETE("/reminders/:id", reminderHandler.DeleteReminder)

	return router
}
