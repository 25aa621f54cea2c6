package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smart-task-manager/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type GormReminderStore struct {
	db *gorm.DB
}

func NewGormReminderStore(db *gorm.DB) *GormReminderStore {
	return &GormReminderStore{db: db}
}

// WithTx returns a store bound to an open transaction.
func (s *GormReminderStore) WithTx(tx *gorm.DB) *GormReminderStore {
	return &GormReminderStore{db: tx}
}

func (s *GormReminderStore) Insert(ctx context.Context, reminder *models.Reminder) error {
	reminder.TriggerTime = reminder.TriggerTime.UTC()
	if err := s.db.WithContext(ctx).Create(reminder).Error; err != nil {
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	return nil
}

func (s *GormReminderStore) FindByID(ctx context.Context, id uuid.UUID) (models.Reminder, error) {
	var reminder models.Reminder
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&reminder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reminder, ErrReminderNotFound
	}
	if err != nil {
		return reminder, fmt.Errorf("failed to find reminder %s: %w", id, err)
	}
	return reminder, nil
}

func (s *GormReminderStore) FindByUser(ctx context.Context, userID uuid.UUID, statuses ...models.ReminderStatus) ([]models.Reminder, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	reminders := make([]models.Reminder, 0)
	if err := query.Order("trigger_time ASC").Order("created_at ASC").Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("failed to list reminders for user %s: %w", userID, err)
	}
	return reminders, nil
}

func (s *GormReminderStore) FindPendingBefore(ctx context.Context, t time.Time) ([]models.Reminder, error) {
	reminders := make([]models.Reminder, 0)
	err := s.db.WithContext(ctx).
		Where("status = ? AND trigger_time <= ?", models.ReminderStatusPending, t.UTC()).
		Order("trigger_time ASC").
		Find(&reminders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find pending reminders: %w", err)
	}
	return reminders, nil
}

func (s *GormReminderStore) TransitionStatus(ctx context.Context, transition StatusTransition) (int64, error) {
	if len(transition.From) == 0 {
		return 0, ErrNoSourceStatus
	}

	query := s.db.WithContext(ctx).
		Model(&models.Reminder{}).
		Where("id = ? AND status IN ?", transition.ID, transition.From)
	if transition.UserID != uuid.Nil {
		query = query.Where("user_id = ?", transition.UserID)
	}

	result := query.Update("status", transition.To)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to move reminder %s to %s: %w", transition.ID, transition.To, result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormReminderStore) Delete(ctx context.Context, id, userID uuid.UUID) (int64, error) {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Reminder{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete reminder %s: %w", id, result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormReminderStore) DeleteByTask(ctx context.Context, taskID uuid.UUID) (int64, error) {
	result := s.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&models.Reminder{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete reminders for task %s: %w", taskID, result.Error)
	}
	return result.RowsAffected, nil
}
