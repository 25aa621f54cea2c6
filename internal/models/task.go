package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// DueDateLayout is the calendar-date format tasks store their deadline in.
const DueDateLayout = "2006-01-02"

const (
	TaskStatusPending    = "Pending"
	TaskStatusInProgress = "In Progress"
	TaskStatusCompleted  = "Completed"
)

const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

type Task struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description"`
	Priority    string    `json:"priority" gorm:"not null;default:'Medium'"`
	Tags        Tags      `json:"tags" gorm:"type:text"`
	DueDate     string    `json:"due_date"`
	Status      string    `json:"status" gorm:"not null;default:'Pending'"`
	Summary     string    `json:"summary"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	return ensureID(&t.ID)
}

// HasDueDate reports whether the task carries a calendar deadline.
func (t *Task) HasDueDate() bool {
	return strings.TrimSpace(t.DueDate) != ""
}

// Due parses the task's due date in loc. It fails when the task has none.
func (t *Task) Due(loc *time.Location) (time.Time, error) {
	if !t.HasDueDate() {
		return time.Time{}, errors.New("task has no due date")
	}
	if loc == nil {
		loc = time.Local
	}
	due, err := time.ParseInLocation(DueDateLayout, strings.TrimSpace(t.DueDate), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q: %w", t.DueDate, err)
	}
	return due, nil
}

func (t *Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}

// Tags is stored as a JSON array in a text column.
type Tags []string

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (t *Tags) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*t = Tags{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported tags value type %T", value)
	}
	if len(data) == 0 {
		*t = Tags{}
		return nil
	}
	return json.Unmarshal(data, (*[]string)(t))
}
