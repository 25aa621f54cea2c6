package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smart-task-manager/backend/internal/models"
	"smart-task-manager/backend/internal/monitoring"
	"smart-task-manager/backend/internal/repositories"

	"github.com/gofrs/uuid"
	"github.com/mudler/xlog"
)

// ReminderQueueNotifier enqueues a delivery job for each triggered reminder.
type ReminderQueueNotifier struct {
	queue     *JobQueue
	queueName string
}

func NewReminderQueueNotifier(queue *JobQueue, queueName string) *ReminderQueueNotifier {
	if queueName == "" {
		queueName = DefaultQueue
	}
	return &ReminderQueueNotifier{queue: queue, queueName: queueName}
}

func (n *ReminderQueueNotifier) NotifyTriggered(ctx context.Context, reminder models.Reminder) error {
	payload := map[string]interface{}{
		"reminder_id":  reminder.ID.String(),
		"user_id":      reminder.UserID.String(),
		"message":      reminder.Message,
		"trigger_time": reminder.TriggerTime.UTC().Format(time.RFC3339),
	}
	if reminder.TaskID != nil {
		payload["task_id"] = reminder.TaskID.String()
	}
	return n.queue.Enqueue(ctx, n.queueName, JobTypeReminderTriggered, payload)
}

// NewReminderDeliveryHandler delivers a triggered reminder unless it was
// dismissed or deleted after the sweep fired it.
func NewReminderDeliveryHandler(store repositories.ReminderStore) JobHandler {
	return func(ctx context.Context, job *Job) error {
		raw, _ := job.Payload["reminder_id"].(string)
		reminderID, err := uuid.FromString(raw)
		if err != nil {
			return fmt.Errorf("job %s has invalid reminder_id %q", job.ID, raw)
		}

		reminder, err := store.FindByID(ctx, reminderID)
		if errors.Is(err, repositories.ErrReminderNotFound) {
			xlog.Debug("Reminder gone before delivery", "reminder_id", reminderID)
			return nil
		}
		if err != nil {
			return err
		}
		if reminder.Status != models.ReminderStatusTriggered {
			xlog.Debug("Skipping reminder delivery", "reminder_id", reminderID, "status", reminder.Status)
			return nil
		}

		xlog.Info("Reminder delivered",
			"reminder_id", reminder.ID,
			"user_id", reminder.UserID,
			"message", reminder.Message,
		)
		monitoring.RecordReminderDelivered()
		return nil
	}
}
