package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type ReminderType string

const (
	ReminderTypeAbsolute            ReminderType = "Absolute"
	ReminderTypeRelativeHoursBefore ReminderType = "Relative_Hours_Before"
)

func (t ReminderType) IsValid() bool {
	return t == ReminderTypeAbsolute || t == ReminderTypeRelativeHoursBefore
}

type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "Pending"
	ReminderStatusTriggered ReminderStatus = "Triggered"
	ReminderStatusDismissed ReminderStatus = "Dismissed"
)

// CanTransitionTo reports whether next is reachable from s in one step.
// Status only moves forward: Pending -> Triggered -> Dismissed, and a
// pending reminder may be dismissed before it fires.
func (s ReminderStatus) CanTransitionTo(next ReminderStatus) bool {
	switch s {
	case ReminderStatusPending:
		return next == ReminderStatusTriggered || next == ReminderStatusDismissed
	case ReminderStatusTriggered:
		return next == ReminderStatusDismissed
	default:
		return false
	}
}

func (s ReminderStatus) IsTerminal() bool {
	return s == ReminderStatusDismissed
}

type Reminder struct {
	ID           uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	UserID       uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index:idx_reminders_user_trigger,priority:1"`
	TaskID       *uuid.UUID     `json:"task_id" gorm:"type:uuid;index"`
	TriggerTime  time.Time      `json:"trigger_time" gorm:"not null;index:idx_reminders_user_trigger,priority:2;index:idx_reminders_status_trigger,priority:2"`
	Message      string         `json:"message" gorm:"not null"`
	ReminderType ReminderType   `json:"reminder_type" gorm:"not null;default:'Absolute'"`
	Status       ReminderStatus `json:"status" gorm:"not null;default:'Pending';index:idx_reminders_status_trigger,priority:1"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (r *Reminder) BeforeCreate(tx *gorm.DB) error {
	return ensureID(&r.ID)
}

// IsDue reports whether a pending reminder has reached its trigger time.
func (r *Reminder) IsDue(now time.Time) bool {
	return r.Status == ReminderStatusPending && !r.TriggerTime.After(now)
}
