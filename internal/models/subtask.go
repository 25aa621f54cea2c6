package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	SubtaskStatusPending   = "Pending"
	SubtaskStatusCompleted = "Completed"
)

type Subtask struct {
	ID           uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	ParentTaskID uuid.UUID  `json:"parent_task_id" gorm:"type:uuid;not null;index"`
	UserID       uuid.UUID  `json:"user_id" gorm:"type:uuid;not null"`
	Title        string     `json:"title" gorm:"not null"`
	Description  string     `json:"description"`
	Status       string     `json:"status" gorm:"not null;default:'Pending'"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

func (s *Subtask) BeforeCreate(tx *gorm.DB) error {
	return ensureID(&s.ID)
}
