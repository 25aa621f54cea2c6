package repositories

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"smart-task-manager/backend/internal/models"

	"github.com/gofrs/uuid"
)

// MemoryReminderStore is an in-process ReminderStore. It backs tests and
// single-process development runs without a database.
type MemoryReminderStore struct {
	mu        sync.RWMutex
	reminders map[uuid.UUID]models.Reminder
}

func NewMemoryReminderStore() *MemoryReminderStore {
	return &MemoryReminderStore{reminders: make(map[uuid.UUID]models.Reminder)}
}

func (s *MemoryReminderStore) Insert(ctx context.Context, reminder *models.Reminder) error {
	if reminder.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		reminder.ID = id
	}
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now()
	}
	if reminder.Status == "" {
		reminder.Status = models.ReminderStatusPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[reminder.ID] = *reminder
	return nil
}

func (s *MemoryReminderStore) FindByID(ctx context.Context, id uuid.UUID) (models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reminder, ok := s.reminders[id]
	if !ok {
		return models.Reminder{}, ErrReminderNotFound
	}
	return reminder, nil
}

func (s *MemoryReminderStore) FindByUser(ctx context.Context, userID uuid.UUID, statuses ...models.ReminderStatus) ([]models.Reminder, error) {
	return s.collect(func(r models.Reminder) bool {
		return r.UserID == userID && (len(statuses) == 0 || slices.Contains(statuses, r.Status))
	}), nil
}

func (s *MemoryReminderStore) FindPendingBefore(ctx context.Context, t time.Time) ([]models.Reminder, error) {
	return s.collect(func(r models.Reminder) bool {
		return r.IsDue(t)
	}), nil
}

func (s *MemoryReminderStore) TransitionStatus(ctx context.Context, transition StatusTransition) (int64, error) {
	if len(transition.From) == 0 {
		return 0, ErrNoSourceStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reminder, ok := s.reminders[transition.ID]
	if !ok || !slices.Contains(transition.From, reminder.Status) {
		return 0, nil
	}
	if transition.UserID != uuid.Nil && reminder.UserID != transition.UserID {
		return 0, nil
	}

	reminder.Status = transition.To
	s.reminders[reminder.ID] = reminder
	return 1, nil
}

func (s *MemoryReminderStore) Delete(ctx context.Context, id, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminder, ok := s.reminders[id]
	if !ok || reminder.UserID != userID {
		return 0, nil
	}
	delete(s.reminders, id)
	return 1, nil
}

func (s *MemoryReminderStore) DeleteByTask(ctx context.Context, taskID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, reminder := range s.reminders {
		if reminder.TaskID != nil && *reminder.TaskID == taskID {
			delete(s.reminders, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryReminderStore) collect(match func(models.Reminder) bool) []models.Reminder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Reminder, 0)
	for _, reminder := range s.reminders {
		if match(reminder) {
			out = append(out, reminder)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TriggerTime.Equal(out[j].TriggerTime) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].TriggerTime.Before(out[j].TriggerTime)
	})
	return out
}
