package repositories

import (
	"context"
	"errors"
	"time"

	"smart-task-manager/backend/internal/models"

	"github.com/gofrs/uuid"
)

var (
	ErrReminderNotFound = errors.New("reminder not found")
	ErrNoSourceStatus   = errors.New("status transition requires at least one source status")
)

// StatusTransition describes a compare-and-swap on a reminder's status.
// The update only applies while the stored status is one of From. A nil
// UserID matches any owner.
type StatusTransition struct {
	ID     uuid.UUID
	UserID uuid.UUID
	From   []models.ReminderStatus
	To     models.ReminderStatus
}

// ReminderStore persists reminders. Every status write goes through
// TransitionStatus so concurrent sweeps and dismissals cannot regress a
// reminder's state.
type ReminderStore interface {
	Insert(ctx context.Context, reminder *models.Reminder) error
	FindByID(ctx context.Context, id uuid.UUID) (models.Reminder, error)
	// FindByUser returns the user's reminders ordered by trigger time. When
	// statuses is non-empty only those statuses are returned.
	FindByUser(ctx context.Context, userID uuid.UUID, statuses ...models.ReminderStatus) ([]models.Reminder, error)
	FindPendingBefore(ctx context.Context, t time.Time) ([]models.Reminder, error)
	TransitionStatus(ctx context.Context, transition StatusTransition) (int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) (int64, error)
	DeleteByTask(ctx context.Context, taskID uuid.UUID) (int64, error)
}
