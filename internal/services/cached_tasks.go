package services

import (
	"context"
	"fmt"
	"time"

	"smart-task-manager/backend/internal/cache"
	"smart-task-manager/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/mudler/xlog"
	"gorm.io/gorm"
)

const (
	taskCacheTTL     = 30 * time.Minute
	userTaskCacheTTL = 15 * time.Minute
)

// CachedTaskService reads tasks through a cache and invalidates on writes.
type CachedTaskService struct {
	taskService TaskService
	cache       cache.Cache
}

func NewCachedTaskService(taskService TaskService, cacheInstance cache.Cache) *CachedTaskService {
	return &CachedTaskService{
		taskService: taskService,
		cache:       cacheInstance,
	}
}

func taskCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("task:%s", id.String())
}

func userTasksCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_tasks:%s", userID.String())
}

func (s *CachedTaskService) CreateTask(ctx context.Context, db *gorm.DB, userID uuid.UUID, input TaskInput) (models.Task, error) {
	task, err := s.taskService.CreateTask(ctx, db, userID, input)
	if err != nil {
		return task, err
	}

	s.set(ctx, taskCacheKey(task.ID), task, taskCacheTTL)
	s.delete(ctx, userTasksCacheKey(userID))

	return task, nil
}

func (s *CachedTaskService) GetTaskByID(ctx context.Context, db *gorm.DB, userID, id uuid.UUID) (models.Task, error) {
	var cachedTask models.Task
	if err := s.cache.Get(ctx, taskCacheKey(id), &cachedTask); err == nil && cachedTask.UserID == userID {
		return cachedTask, nil
	}

	task, err := s.taskService.GetTaskByID(ctx, db, userID, id)
	if err != nil {
		return task, err
	}

	s.set(ctx, taskCacheKey(id), task, taskCacheTTL)

	return task, nil
}

func (s *CachedTaskService) GetTasksByUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]models.Task, error) {
	var cachedTasks []models.Task
	if err := s.cache.Get(ctx, userTasksCacheKey(userID), &cachedTasks); err == nil {
		return cachedTasks, nil
	}

	tasks, err := s.taskService.GetTasksByUser(ctx, db, userID)
	if err != nil {
		return tasks, err
	}

	s.set(ctx, userTasksCacheKey(userID), tasks, userTaskCacheTTL)

	return tasks, nil
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, db *gorm.DB, userID, id uuid.UUID, update TaskUpdate) (models.Task, error) {
	task, err := s.taskService.UpdateTask(ctx, db, userID, id, update)
	if err != nil {
		return task, err
	}

	s.set(ctx, taskCacheKey(id), task, taskCacheTTL)
	s.delete(ctx, userTasksCacheKey(userID))

	return task, nil
}

func (s *CachedTaskService) DeleteTask(ctx context.Context, db *gorm.DB, userID, id uuid.UUID) error {
	if err := s.taskService.DeleteTask(ctx, db, userID, id); err != nil {
		return err
	}

	s.delete(ctx, taskCacheKey(id))
	s.delete(ctx, userTasksCacheKey(userID))
	// the task's reminders went with it
	s.delete(ctx, TriggeredRemindersCacheKey(userID))

	return nil
}

func (s *CachedTaskService) GetTaskAlerts(ctx context.Context, db *gorm.DB, userID uuid.UUID, today time.Time) (TaskAlerts, error) {
	tasks, err := s.GetTasksByUser(ctx, db, userID)
	if err != nil {
		return TaskAlerts{}, err
	}
	return BuildTaskAlerts(tasks, today), nil
}

func (s *CachedTaskService) GetCacheStats() map[string]interface{} {
	return s.cache.Stats()
}

func (s *CachedTaskService) set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		xlog.Debug("Task cache write failed", "key", key, "error", err)
	}
}

func (s *CachedTaskService) delete(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		xlog.Warn("Task cache invalidation failed", "key", key, "error", err)
	}
}
