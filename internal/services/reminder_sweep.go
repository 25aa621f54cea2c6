package services

import (
	"context"
	"fmt"
	"time"

	"smart-task-manager/backend/internal/cache"
	"smart-task-manager/backend/internal/models"
	"smart-task-manager/backend/internal/repositories"

	"github.com/gofrs/uuid"
	"github.com/mudler/xlog"
)

// ReminderNotifier is told about each reminder a sweep fires.
type ReminderNotifier interface {
	NotifyTriggered(ctx context.Context, reminder models.Reminder) error
}

type ReminderSweeper struct {
	store    repositories.ReminderStore
	cache    cache.Cache
	notifier ReminderNotifier
}

// NewReminderSweeper builds a sweeper. cacheInstance and notifier may be nil.
func NewReminderSweeper(store repositories.ReminderStore, cacheInstance cache.Cache, notifier ReminderNotifier) *ReminderSweeper {
	return &ReminderSweeper{store: store, cache: cacheInstance, notifier: notifier}
}

// Sweep fires every pending reminder whose trigger time is at or before now
// and returns how many it moved to Triggered. A failure on one reminder is
// logged and skipped; only a failed query is returned as an error.
func (s *ReminderSweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.FindPendingBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to query due reminders: %w", err)
	}

	triggered := 0
	owners := make(map[uuid.UUID]struct{})
	for i, reminder := range due {
		if ctx.Err() != nil {
			xlog.Warn("Reminder sweep cut short", "remaining", len(due)-i, "error", ctx.Err())
			break
		}
		if !s.trigger(ctx, reminder) {
			continue
		}
		triggered++
		owners[reminder.UserID] = struct{}{}
	}

	for userID := range owners {
		invalidateTriggeredReminders(ctx, s.cache, userID)
	}

	return triggered, nil
}

func (s *ReminderSweeper) trigger(ctx context.Context, reminder models.Reminder) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			xlog.Error("Panic while triggering reminder", "reminder_id", reminder.ID, "panic", r)
			ok = false
		}
	}()

	modified, err := s.store.TransitionStatus(ctx, repositories.StatusTransition{
		ID:   reminder.ID,
		From: []models.ReminderStatus{models.ReminderStatusPending},
		To:   models.ReminderStatusTriggered,
	})
	if err != nil {
		xlog.Error("Failed to trigger reminder", "reminder_id", reminder.ID, "error", err)
		return false
	}
	if modified == 0 {
		// dismissed or deleted since the query ran
		return false
	}

	xlog.Info("Reminder triggered", "reminder_id", reminder.ID, "user_id", reminder.UserID, "task_id", reminder.TaskID)

	if s.notifier != nil {
		reminder.Status = models.ReminderStatusTriggered
		if err := s.notifier.NotifyTriggered(ctx, reminder); err != nil {
			xlog.Warn("Failed to queue reminder notification", "reminder_id", reminder.ID, "error", err)
		}
	}
	return true
}
