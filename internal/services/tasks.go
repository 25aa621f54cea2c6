package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smart-task-manager/backend/internal/models"
	"smart-task-manager/backend/internal/repositories"

	"github.com/gofrs/uuid"
	"github.com/mudler/xlog"
	"gorm.io/gorm"
)

type TaskInput struct {
	Title       string
	Description string
	Priority    string
	Tags        []string
	DueDate     string
	Status      string
}

// TaskUpdate carries the fields a caller wants to change; nil leaves a
// field untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Priority    *string
	Tags        *[]string
	DueDate     *string
	Status      *string
	Summary     *string
}

type TaskAlerts struct {
	OverdueTasks      []models.Task `json:"overdueTasks"`
	DueTodayTasks     []models.Task `json:"dueTodayTasks"`
	HighPriorityTasks []models.Task `json:"highPriorityTasks"`
}

type TaskService interface {
	CreateTask(ctx context.Context, db *gorm.DB, userID uuid.UUID, input TaskInput) (models.Task, error)
	GetTaskByID(ctx context.Context, db *gorm.DB, userID, id uuid.UUID) (models.Task, error)
	GetTasksByUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]models.Task, error)
	UpdateTask(ctx context.Context, db *gorm.DB, userID, id uuid.UUID, update TaskUpdate) (models.Task, error)
	DeleteTask(ctx context.Context, db *gorm.DB, userID, id uuid.UUID) error
	GetTaskAlerts(ctx context.Context, db *gorm.DB, userID uuid.UUID, today time.Time) (TaskAlerts, error)
}

type TaskServiceImpl struct{}

func NewTaskService() *TaskServiceImpl {
	return &TaskServiceImpl{}
}

func validPriority(p string) bool {
	return p == models.PriorityLow || p == models.PriorityMedium || p == models.PriorityHigh
}

func validTaskStatus(s string) bool {
	return s == models.TaskStatusPending || s == models.TaskStatusInProgress || s == models.TaskStatusCompleted
}

func validateDueDate(dueDate string) error {
	if dueDate == "" {
		return nil
	}
	if _, err := time.Parse(models.DueDateLayout, dueDate); err != nil {
		return fmt.Errorf("%w: due_date must be YYYY-MM-DD", ErrInvalidTaskInput)
	}
	return nil
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, db *gorm.DB, userID uuid.UUID, input TaskInput) (models.Task, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return models.Task{}, fmt.Errorf("%w: title and description are required", ErrInvalidTaskInput)
	}

	task := models.Task{
		UserID:      userID,
		Title:       title,
		Description: description,
		Priority:    input.Priority,
		Tags:        models.Tags(input.Tags),
		DueDate:     strings.TrimSpace(input.DueDate),
		Status:      input.Status,
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.Tags == nil {
		task.Tags = models.Tags{}
	}
	if err := validateTask(&task); err != nil {
		return models.Task{}, err
	}

	if err := db.WithContext(ctx).Create(&task).Error; err != nil {
		return models.Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

func validateTask(task *models.Task) error {
	if !validPriority(task.Priority) {
		return fmt.Errorf("%w: priority must be Low, Medium or High", ErrInvalidTaskInput)
	}
	if !validTaskStatus(task.Status) {
		return fmt.Errorf("%w: status must be Pending, In Progress or Completed", ErrInvalidTaskInput)
	}
	return validateDueDate(task.DueDate)
}

func (s *TaskServiceImpl) GetTaskByID(ctx context.Context, db *gorm.DB, userID, id uuid.UUID) (models.Task, error) {
	var task models.Task
	err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return task, ErrTaskNotFound
	}
	if err != nil {
		return task, fmt.Errorf("failed to load task %s: %w", id, err)
	}
	return task, nil
}

func (s *TaskServiceImpl) GetTasksByUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]models.Task, error) {
	tasks := make([]models.Task, 0)
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskServiceImpl) UpdateTask(ctx context.Context, db *gorm.DB, userID, id uuid.UUID, update TaskUpdate) (models.Task, error) {
	task, err := s.GetTaskByID(ctx, db, userID, id)
	if err != nil {
		return task, err
	}

	if update.Title != nil {
		task.Title = strings.TrimSpace(*update.Title)
		if task.Title == "" {
			return task, fmt.Errorf("%w: title cannot be empty", ErrInvalidTaskInput)
		}
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.Priority != nil {
		task.Priority = *update.Priority
	}
	if update.Tags != nil {
		task.Tags = models.Tags(*update.Tags)
	}
	if update.DueDate != nil {
		task.DueDate = strings.TrimSpace(*update.DueDate)
	}
	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.Summary != nil {
		task.Summary = *update.Summary
	}
	if err := validateTask(&task); err != nil {
		return task, err
	}

	if err := db.WithContext(ctx).Save(&task).Error; err != nil {
		return task, fmt.Errorf("failed to update task %s: %w", id, err)
	}
	return task, nil
}

// DeleteTask removes a task together with its subtasks and reminders.
func (s *TaskServiceImpl) DeleteTask(ctx context.Context, db *gorm.DB, userID, id uuid.UUID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Task{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete task %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrTaskNotFound
		}

		if err := tx.Where("parent_task_id = ?", id).Delete(&models.Subtask{}).Error; err != nil {
			return fmt.Errorf("failed to delete subtasks of task %s: %w", id, err)
		}

		removed, err := repositories.NewGormReminderStore(tx).DeleteByTask(ctx, id)
		if err != nil {
			return err
		}
		if removed > 0 {
			xlog.Debug("Removed reminders with deleted task", "task_id", id, "count", removed)
		}
		return nil
	})
}

// GetTaskAlerts groups the user's open tasks into overdue, due today and
// high priority. today is truncated to its calendar date.
func (s *TaskServiceImpl) GetTaskAlerts(ctx context.Context, db *gorm.DB, userID uuid.UUID, today time.Time) (TaskAlerts, error) {
	tasks, err := s.GetTasksByUser(ctx, db, userID)
	if err != nil {
		return TaskAlerts{}, err
	}
	return BuildTaskAlerts(tasks, today), nil
}

func BuildTaskAlerts(tasks []models.Task, today time.Time) TaskAlerts {
	alerts := TaskAlerts{
		OverdueTasks:      make([]models.Task, 0),
		DueTodayTasks:     make([]models.Task, 0),
		HighPriorityTasks: make([]models.Task, 0),
	}
	todayDate := today.Format(models.DueDateLayout)

	for _, task := range tasks {
		if task.IsCompleted() {
			continue
		}

		if task.HasDueDate() {
			if _, err := task.Due(today.Location()); err == nil {
				switch due := strings.TrimSpace(task.DueDate); {
				case due < todayDate:
					alerts.OverdueTasks = append(alerts.OverdueTasks, task)
				case due == todayDate:
					alerts.DueTodayTasks = append(alerts.DueTodayTasks, task)
				}
			}
		}

		if task.Priority == models.PriorityHigh {
			alerts.HighPriorityTasks = append(alerts.HighPriorityTasks, task)
		}
	}
	return alerts
}

type dbTaskLookup struct {
	db    *gorm.DB
	tasks TaskService
}

// NewTaskLookup exposes a TaskService as the TaskLookup reminders need.
func NewTaskLookup(db *gorm.DB, tasks TaskService) TaskLookup {
	return &dbTaskLookup{db: db, tasks: tasks}
}

func (l *dbTaskLookup) FindTask(ctx context.Context, userID, taskID uuid.UUID) (*models.Task, error) {
	task, err := l.tasks.GetTaskByID(ctx, l.db, userID, taskID)
	if err != nil {
		return nil, err
	}
	return &task, nil
}
