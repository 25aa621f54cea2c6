package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smart-task-manager/backend/internal/cache"
	"smart-task-manager/backend/internal/models"
	"smart-task-manager/backend/internal/repositories"

	"github.com/gofrs/uuid"
	"github.com/mudler/xlog"
)

const messageTimeLayout = "2006-01-02 15:04"

// TaskLookup resolves a task owned by userID. It returns ErrTaskNotFound
// when the task does not exist or belongs to someone else.
type TaskLookup interface {
	FindTask(ctx context.Context, userID, taskID uuid.UUID) (*models.Task, error)
}

type CreateReminderInput struct {
	TaskID       *uuid.UUID
	TriggerValue string
	Message      string
	Type         models.ReminderType
}

type ReminderService interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateReminderInput) (models.Reminder, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Reminder, error)
	ListTriggeredForUser(ctx context.Context, userID uuid.UUID) ([]models.Reminder, error)
	Dismiss(ctx context.Context, userID, reminderID uuid.UUID) error
	Delete(ctx context.Context, userID, reminderID uuid.UUID) error
}

type ReminderServiceOptions struct {
	// Cache holds per-user triggered lists. Nil disables caching.
	Cache            cache.Cache
	Policy           TriggerPolicy
	TriggeredListTTL time.Duration
}

type ReminderServiceImpl struct {
	store        repositories.ReminderStore
	tasks        TaskLookup
	cache        cache.Cache
	policy       TriggerPolicy
	triggeredTTL time.Duration
}

func NewReminderService(store repositories.ReminderStore, tasks TaskLookup, opts ReminderServiceOptions) *ReminderServiceImpl {
	if opts.TriggeredListTTL <= 0 {
		opts.TriggeredListTTL = 30 * time.Second
	}
	return &ReminderServiceImpl{
		store:        store,
		tasks:        tasks,
		cache:        opts.Cache,
		policy:       opts.Policy,
		triggeredTTL: opts.TriggeredListTTL,
	}
}

// TriggeredRemindersCacheKey is where a user's triggered list is cached.
func TriggeredRemindersCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("reminders:triggered:%s", userID.String())
}

func (s *ReminderServiceImpl) Create(ctx context.Context, userID uuid.UUID, input CreateReminderInput) (models.Reminder, error) {
	reminderType := input.Type
	if reminderType == "" {
		reminderType = models.ReminderTypeAbsolute
	}
	if !reminderType.IsValid() {
		return models.Reminder{}, fmt.Errorf("%w: invalid reminder type: %s", ErrInvalidReminderInput, reminderType)
	}
	if strings.TrimSpace(input.TriggerValue) == "" {
		return models.Reminder{}, fmt.Errorf("%w: trigger time/value is required", ErrInvalidReminderInput)
	}
	if reminderType == models.ReminderTypeRelativeHoursBefore && input.TaskID == nil {
		return models.Reminder{}, fmt.Errorf("%w: relative reminder requires an associated task with a due date", ErrInvalidReminderInput)
	}

	var task *models.Task
	if input.TaskID != nil {
		found, err := s.tasks.FindTask(ctx, userID, *input.TaskID)
		if errors.Is(err, ErrTaskNotFound) {
			return models.Reminder{}, fmt.Errorf("%w: task not found", ErrInvalidReminderInput)
		}
		if err != nil {
			return models.Reminder{}, fmt.Errorf("%w: failed to load task: %v", ErrInternal, err)
		}
		task = found
	}

	triggerTime, err := CalculateTriggerTime(input.TriggerValue, reminderType, task, s.policy)
	if err != nil {
		return models.Reminder{}, err
	}

	message := strings.TrimSpace(input.Message)
	if message == "" {
		message = defaultReminderMessage(reminderType, task, triggerTime, strings.TrimSpace(input.TriggerValue))
	}

	reminder := models.Reminder{
		UserID:       userID,
		TaskID:       input.TaskID,
		TriggerTime:  triggerTime,
		Message:      message,
		ReminderType: reminderType,
		Status:       models.ReminderStatusPending,
	}
	if err := s.store.Insert(ctx, &reminder); err != nil {
		xlog.Error("Failed to save reminder", "user_id", userID, "error", err)
		return models.Reminder{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	xlog.Debug("Reminder created", "reminder_id", reminder.ID, "user_id", userID, "trigger_time", reminder.TriggerTime)
	s.localize(&reminder)
	return reminder, nil
}

// localize presents stored times on the wall clock of the policy's
// location, the one trigger values are entered in.
func (s *ReminderServiceImpl) localize(reminders ...*models.Reminder) {
	loc := s.policy.location()
	for _, r := range reminders {
		r.TriggerTime = r.TriggerTime.In(loc)
		r.CreatedAt = r.CreatedAt.In(loc)
	}
}

func (s *ReminderServiceImpl) localizeAll(reminders []models.Reminder) []models.Reminder {
	for i := range reminders {
		s.localize(&reminders[i])
	}
	return reminders
}

func defaultReminderMessage(reminderType models.ReminderType, task *models.Task, triggerTime time.Time, triggerValue string) string {
	switch {
	case task == nil:
		return fmt.Sprintf("General reminder set for %s.", triggerTime.Format(messageTimeLayout))
	case reminderType == models.ReminderTypeRelativeHoursBefore:
		return fmt.Sprintf("Reminder for task: %s, %s hours before deadline.", task.Title, triggerValue)
	default:
		return fmt.Sprintf("Reminder for task: %s set for %s.", task.Title, triggerTime.Format(messageTimeLayout))
	}
}

func (s *ReminderServiceImpl) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Reminder, error) {
	reminders, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return s.localizeAll(reminders), nil
}

func (s *ReminderServiceImpl) ListTriggeredForUser(ctx context.Context, userID uuid.UUID) ([]models.Reminder, error) {
	key := TriggeredRemindersCacheKey(userID)
	if s.cache != nil {
		var cached []models.Reminder
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return s.localizeAll(cached), nil
		}
	}

	reminders, err := s.store.FindByUser(ctx, userID, models.ReminderStatusTriggered)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, reminders, s.triggeredTTL); err != nil {
			xlog.Debug("Failed to cache triggered reminders", "user_id", userID, "error", err)
		}
	}
	return s.localizeAll(reminders), nil
}

// Dismiss moves a user's reminder to Dismissed. Dismissing an already
// dismissed reminder succeeds without changing anything.
func (s *ReminderServiceImpl) Dismiss(ctx context.Context, userID, reminderID uuid.UUID) error {
	modified, err := s.store.TransitionStatus(ctx, repositories.StatusTransition{
		ID:     reminderID,
		UserID: userID,
		From:   []models.ReminderStatus{models.ReminderStatusPending, models.ReminderStatusTriggered},
		To:     models.ReminderStatusDismissed,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if modified == 0 {
		reminder, err := s.store.FindByID(ctx, reminderID)
		if errors.Is(err, repositories.ErrReminderNotFound) || (err == nil && reminder.UserID != userID) {
			return ErrReminderNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}
		return nil
	}

	s.invalidateTriggered(ctx, userID)
	return nil
}

func (s *ReminderServiceImpl) Delete(ctx context.Context, userID, reminderID uuid.UUID) error {
	deleted, err := s.store.Delete(ctx, reminderID, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if deleted == 0 {
		return ErrReminderNotFound
	}

	s.invalidateTriggered(ctx, userID)
	return nil
}

func (s *ReminderServiceImpl) invalidateTriggered(ctx context.Context, userID uuid.UUID) {
	invalidateTriggeredReminders(ctx, s.cache, userID)
}

func invalidateTriggeredReminders(ctx context.Context, c cache.Cache, userID uuid.UUID) {
	if c == nil {
		return
	}
	if err := c.Delete(ctx, TriggeredRemindersCacheKey(userID)); err != nil {
		xlog.Warn("Failed to invalidate triggered reminders cache", "user_id", userID, "error", err)
	}
}
