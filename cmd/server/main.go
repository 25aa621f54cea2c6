package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smart-task-manager/backend/internal/ai"
	"smart-task-manager/backend/internal/cache"
	"smart-task-manager/backend/internal/config"
	"smart-task-manager/backend/internal/database"
	"smart-task-manager/backend/internal/middleware"
	"smart-task-manager/backend/internal/monitoring"
	"smart-task-manager/backend/internal/repositories"
	"smart-task-manager/backend/internal/scheduler"
	"smart-task-manager/backend/internal/services"
	"smart-task-manager/backend/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/mudler/xlog"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm/logger"
)

const (
	cacheKeyPrefix  = "stm:"
	shutdownTimeout = 30 * time.Second
)

// application owns every long-lived component of the server.
type application struct {
	cfg       *config.Config
	pool      *database.DatabasePool
	redis     *redis.Client
	cache     *cache.MultiLevelCache
	sweeper   *services.ReminderSweeper
	scheduler *scheduler.Scheduler
	worker    *worker.Worker
	limiter   *middleware.RateLimiter
	router    *gin.Engine

	stopCleanup context.CancelFunc
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		xlog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		xlog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	pool, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := pool.Migrate(); err != nil {
		_ = pool.Close()
		return err
	}

	app, err := newApplication(cfg, pool, connectRedis(cfg))
	if err != nil {
		_ = pool.Close()
		return err
	}

	if err := app.start(); err != nil {
		app.close(context.Background())
		return err
	}

	server := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		xlog.Info("HTTP server listening", "addr", server.Addr, "environment", cfg.Server.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		xlog.Info("Shutting down server", "signal", sig.String())
	case runErr = <-serverErr:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		xlog.Error("Server forced to shutdown", "error", err)
	}
	app.close(ctx)

	xlog.Info("Server exited")
	return runErr
}

func openDatabase(cfg *config.Config) (*database.DatabasePool, error) {
	poolConfig := &database.PoolConfig{
		Driver:          database.DriverPostgres,
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        logger.Warn,
	}
	if cfg.UsesSQLite() {
		poolConfig.Driver = database.DriverSQLite
		poolConfig.DSN = cfg.Database.SQLitePath
	}
	if cfg.IsProduction() {
		poolConfig.LogLevel = logger.Error
	}
	return database.NewDatabasePool(poolConfig)
}

// connectRedis returns nil when redis is unreachable; the server then runs
// with an in-process cache only and without the delivery queue.
func connectRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		xlog.Warn("Redis unavailable, continuing without L2 cache and job queue", "addr", cfg.GetRedisAddr(), "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

func newApplication(cfg *config.Config, pool *database.DatabasePool, rdb *redis.Client) (*application, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	app := &application{cfg: cfg, pool: pool, redis: rdb}

	var redisCache *cache.RedisCache
	if rdb != nil {
		redisCache = cache.NewRedisCacheFromClient(rdb, cacheKeyPrefix)
	}
	app.cache = cache.NewMultiLevelCache(redisCache)

	authService := services.NewAuthService(cfg.Auth)
	taskService := services.NewCachedTaskService(services.NewTaskService(), app.cache)

	metricsFrom := map[string]func() interface{}{
		"cache":    func() interface{} { return app.cache.Stats() },
		"database": func() interface{} { return pool.Stats() },
	}

	var generator ai.Generator
	aiClient, err := ai.NewClient(cfg.AI)
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		xlog.Warn("AI provider not configured, AI endpoints will answer 503")
	case err != nil:
		return nil, err
	default:
		generator = aiClient
		metricsFrom["ai"] = func() interface{} { return aiClient.Stats() }
	}
	assistant := services.NewAssistantService(generator)

	store := repositories.NewGormReminderStore(pool.DB)
	reminderService := services.NewReminderService(store, services.NewTaskLookup(pool.DB, taskService), services.ReminderServiceOptions{
		Cache:            app.cache,
		Policy:           services.TriggerPolicy{Location: loc, DeadlineHour: cfg.Reminder.DeadlineHour},
		TriggeredListTTL: cfg.Reminder.TriggeredListTTL,
	})

	var notifier services.ReminderNotifier
	if rdb != nil {
		queue := worker.NewJobQueue(rdb)
		notifier = worker.NewReminderQueueNotifier(queue, cfg.Reminder.NotifyQueue)

		app.worker = worker.NewWorker(worker.WorkerConfig{
			RedisClient:  rdb,
			PollInterval: cfg.Worker.PollInterval,
			Queues:       cfg.Worker.Queues,
		})
		app.worker.RegisterHandler(worker.JobTypeReminderTriggered, worker.NewReminderDeliveryHandler(store))

		metricsFrom["queues"] = func() interface{} {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return queue.Stats(ctx, cfg.Worker.Queues)
		}
	}

	app.sweeper = services.NewReminderSweeper(store, app.cache, notifier)
	app.scheduler = scheduler.NewScheduler(app.sweeper, scheduler.Config{
		Interval: cfg.Reminder.SweepInterval,
		Timeout:  cfg.Reminder.SweepTimeout,
	})

	health := monitoring.NewHealthChecker()
	health.Register("database", func(ctx context.Context) error { return pool.Health() })
	health.Register("cache", app.cache.Health)

	if cfg.RateLimit.Enabled {
		app.limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMin:  cfg.RateLimit.RequestsPerMin,
			BurstSize:       cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		})
	}

	app.router = newRouter(routerDeps{
		cfg:         cfg,
		db:          pool.DB,
		location:    loc,
		auth:        authService,
		tasks:       taskService,
		subtasks:    services.NewSubtaskService(taskService, assistant),
		reminders:   reminderService,
		assistant:   assistant,
		analytics:   services.NewAnalyticsService(),
		health:      health,
		limiter:     app.limiter,
		metricsFrom: metricsFrom,
	})

	return app, nil
}

// start launches the background components. Reminders that came due while
// the server was down fire on the first sweep, which runs immediately.
func (a *application) start() error {
	if err := a.scheduler.Start(); err != nil {
		return err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Reminder.SweepTimeout)
		defer cancel()
		if n, err := a.scheduler.RunNow(ctx); err != nil {
			xlog.Error("Startup reminder sweep failed", "error", err)
		} else if n > 0 {
			xlog.Info("Startup reminder sweep triggered overdue reminders", "count", n)
		}
	}()

	if a.worker != nil {
		a.worker.Start(a.cfg.Worker.Concurrency)
	}

	if a.limiter != nil {
		ctx, cancel := context.WithCancel(context.Background())
		a.stopCleanup = cancel
		go a.cleanupVisitors(ctx, a.cfg.RateLimit.CleanupInterval)
	}
	return nil
}

func (a *application) cleanupVisitors(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := a.limiter.Cleanup(); removed > 0 {
				xlog.Debug("Removed idle rate limit visitors", "count", removed)
			}
		}
	}
}

// close stops background work before releasing the stores it uses.
func (a *application) close(ctx context.Context) {
	if err := a.scheduler.Stop(ctx); err != nil {
		xlog.Error("Reminder scheduler did not stop cleanly", "error", err)
	}
	if a.worker != nil {
		a.worker.Stop()
	}
	if a.stopCleanup != nil {
		a.stopCleanup()
	}
	if err := a.cache.Close(); err != nil {
		xlog.Error("Failed to close cache", "error", err)
	}
	if err := a.pool.Close(); err != nil {
		xlog.Error("Failed to close database", "error", err)
	}
}
