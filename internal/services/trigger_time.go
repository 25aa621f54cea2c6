package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"smart-task-manager/backend/internal/config"
	"smart-task-manager/backend/internal/models"
)

// MaxHoursBefore is the largest relative offset accepted; larger counts
// would overflow a time.Duration.
const MaxHoursBefore = math.MaxInt64 / int64(time.Hour)

// Accepted layouts for absolute trigger values. Values without an offset
// are read in the policy's location.
var absoluteLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// TriggerPolicy fixes how date-only deadlines and offset-less timestamps
// are interpreted.
type TriggerPolicy struct {
	Location     *time.Location
	DeadlineHour int
}

func DefaultTriggerPolicy() TriggerPolicy {
	return TriggerPolicy{Location: time.Local, DeadlineHour: config.DefaultDeadlineHour}
}

func (p TriggerPolicy) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// Deadline is the moment a task with the given due date is considered due.
func (p TriggerPolicy) Deadline(task *models.Task) (time.Time, error) {
	due, err := task.Due(p.location())
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(due.Year(), due.Month(), due.Day(), p.DeadlineHour, 0, 0, 0, due.Location()), nil
}

// TriggerValue is the raw trigger input. JSON clients send either a
// timestamp string or an hour count as a number or numeric string.
type TriggerValue string

func (v *TriggerValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = TriggerValue(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("trigger_value must be a string or a number")
	}
	*v = TriggerValue(n.String())
	return nil
}

// CalculateTriggerTime resolves a trigger value to the absolute moment a
// reminder fires. task may be nil for Absolute reminders.
func CalculateTriggerTime(triggerValue string, reminderType models.ReminderType, task *models.Task, policy TriggerPolicy) (time.Time, error) {
	value := strings.TrimSpace(triggerValue)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: trigger time/value is required", ErrInvalidReminderInput)
	}

	switch reminderType {
	case models.ReminderTypeAbsolute:
		return parseAbsolute(value, policy.location())

	case models.ReminderTypeRelativeHoursBefore:
		if task == nil {
			return time.Time{}, fmt.Errorf("%w: relative reminder requires an associated task with a due date", ErrInvalidReminderInput)
		}
		if !task.HasDueDate() {
			return time.Time{}, fmt.Errorf("%w: task has no due date for relative calculation", ErrInvalidReminderInput)
		}

		hours, err := parseHours(value)
		if err != nil {
			return time.Time{}, err
		}

		deadline, err := policy.Deadline(task)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidReminderInput, err)
		}
		// wall-clock hours, like the deadline itself
		return time.Date(deadline.Year(), deadline.Month(), deadline.Day(),
			deadline.Hour()-hours, deadline.Minute(), 0, 0, deadline.Location()), nil

	default:
		return time.Time{}, fmt.Errorf("%w: invalid reminder type: %s", ErrInvalidReminderInput, reminderType)
	}
}

func parseAbsolute(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: trigger_value %q is not a timestamp like 2024-01-01T09:00", ErrInvalidReminderInput, value)
}

func parseHours(value string) (int, error) {
	hours, err := strconv.Atoi(value)
	if err != nil {
		// JSON numbers such as 24.0 arrive as "24.0"
		f, ferr := strconv.ParseFloat(value, 64)
		if ferr != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("%w: trigger_value %q is not a whole number of hours", ErrInvalidReminderInput, value)
		}
		if math.Abs(f) > float64(MaxHoursBefore) {
			return 0, fmt.Errorf("%w: trigger_value %q exceeds %d hours", ErrInvalidReminderInput, value, MaxHoursBefore)
		}
		hours = int(f)
	}
	if hours < 0 {
		return 0, fmt.Errorf("%w: hours before deadline cannot be negative", ErrInvalidReminderInput)
	}
	if int64(hours) > MaxHoursBefore {
		return 0, fmt.Errorf("%w: trigger_value %q exceeds %d hours", ErrInvalidReminderInput, value, MaxHoursBefore)
	}
	return hours, nil
}
