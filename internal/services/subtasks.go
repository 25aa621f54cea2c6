package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smart-task-manager/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/mudler/xlog"
	"gorm.io/gorm"
)

const generatedSubtaskDescription = "AI generated subtask."

type SubtaskService interface {
	CreateSubtask(ctx context.Context, db *gorm.DB, userID, parentID uuid.UUID, title, description string) (models.Subtask, error)
	ListSubtasks(ctx context.Context, db *gorm.DB, userID, parentID uuid.UUID) ([]models.Subtask, error)
	UpdateSubtaskStatus(ctx context.Context, db *gorm.DB, userID, id uuid.UUID, status string) (models.Subtask, error)
	DeleteSubtask(ctx context.Context, db *gorm.DB, userID, id uuid.UUID) error
	GenerateSubtasks(ctx context.Context, db *gorm.DB, userID, parentID uuid.UUID) ([]models.Subtask, error)
}

type SubtaskServiceImpl struct {
	tasks     TaskService
	assistant AssistantService
}

func NewSubtaskService(tasks TaskService, assistant AssistantService) *SubtaskServiceImpl {
	return &SubtaskServiceImpl{tasks: tasks, assistant: assistant}
}

func (s *SubtaskServiceImpl) CreateSubtask(ctx context.Context, db *gorm.DB, userID, parentID uuid.UUID, title, description string) (models.Subtask, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Subtask{}, fmt.Errorf("%w: subtask title is required", ErrInvalidSubtaskInput)
	}
	if _, err := s.tasks.GetTaskByID(ctx, db, userID, parentID); err != nil {
		return models.Subtask{}, err
	}

	subtask := models.Subtask{
		ParentTaskID: parentID,
		UserID:       userID,
		Title:        title,
		Description:  description,
		Status:       models.SubtaskStatusPending,
	}
	if err := db.WithContext(ctx).Create(&subtask).Error; err != nil {
		return models.Subtask{}, fmt.Errorf("failed to create subtask: %w", err)
	}
	return subtask, nil
}

func (s *SubtaskServiceImpl) ListSubtasks(ctx context.Context, db *gorm.DB, userID, parentID uuid.UUID) ([]models.Subtask, error) {
	if _, err := s.tasks.GetTaskByID(ctx, db, userID, parentID); err != nil {
		return nil, err
	}

	subtasks := make([]models.Subtask, 0)
	err := db.WithContext(ctx).
		Where("parent_task_id = ? AND user_id = ?", parentID, userID).
		Order("created_at ASC").
		Find(&subtasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}
	return subtasks, nil
}

func (s *SubtaskServiceImpl) UpdateSubtaskStatus(ctx context.Context, db *gorm.DB, userID, id uuid.UUID, status string) (models.Subtask, error) {
	if status == "" {
		status = models.SubtaskStatusCompleted
	}
	if status != models.SubtaskStatusPending && status != models.SubtaskStatusCompleted {
		return models.Subtask{}, fmt.Errorf("%w: status must be Pending or Completed", ErrInvalidSubtaskInput)
	}

	var subtask models.Subtask
	err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&subtask).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return subtask, ErrSubtaskNotFound
	}
	if err != nil {
		return subtask, fmt.Errorf("failed to load subtask %s: %w", id, err)
	}

	subtask.Status = status
	if status == models.SubtaskStatusCompleted {
		now := time.Now()
		subtask.CompletedAt = &now
	} else {
		subtask.CompletedAt = nil
	}

	if err := db.WithContext(ctx).Save(&subtask).Error; err != nil {
		return subtask, fmt.Errorf("failed to update subtask %s: %w", id, err)
	}
	return subtask, nil
}

func (s *SubtaskServiceImpl) DeleteSubtask(ctx context.Context, db *gorm.DB, userID, id uuid.UUID) error {
	result := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Subtask{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete subtask %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSubtaskNotFound
	}
	return nil
}

// GenerateSubtasks asks the assistant to break the parent task down and
// saves every resulting step as a pending subtask.
func (s *SubtaskServiceImpl) GenerateSubtasks(ctx context.Context, db *gorm.DB, userID, parentID uuid.UUID) ([]models.Subtask, error) {
	parent, err := s.tasks.GetTaskByID(ctx, db, userID, parentID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(parent.Description) == "" {
		return nil, fmt.Errorf("%w: task description is empty, cannot generate subtasks", ErrInvalidSubtaskInput)
	}

	titles, err := s.assistant.BreakDownTask(ctx, parent.Description)
	if err != nil {
		return nil, err
	}

	subtasks := make([]models.Subtask, 0, len(titles))
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, title := range titles {
			subtask := models.Subtask{
				ParentTaskID: parentID,
				UserID:       userID,
				Title:        title,
				Description:  generatedSubtaskDescription,
				Status:       models.SubtaskStatusPending,
			}
			if err := tx.Create(&subtask).Error; err != nil {
				return fmt.Errorf("failed to save generated subtask: %w", err)
			}
			subtasks = append(subtasks, subtask)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	xlog.Info("Generated subtasks", "task_id", parentID, "count", len(subtasks))
	return subtasks, nil
}
