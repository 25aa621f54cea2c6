package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"smart-task-manager/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	TrendDays    = 7
	ActivityDays = 30

	trendDateLayout = "Jan 02"
)

type CoreMetrics struct {
	TotalTasks     int64   `json:"totalTasks"`
	CompletedTasks int64   `json:"completedTasks"`
	PendingTasks   int64   `json:"pendingTasks"`
	CompletionRate float64 `json:"completionRate"`
}

// PriorityDistribution counts open tasks per priority.
type PriorityDistribution struct {
	High   int64 `json:"High"`
	Medium int64 `json:"Medium"`
	Low    int64 `json:"Low"`
}

type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// WeekdayActivity counts task activity per weekday, Monday first.
type WeekdayActivity struct {
	Mon int `json:"Mon"`
	Tue int `json:"Tue"`
	Wed int `json:"Wed"`
	Thu int `json:"Thu"`
	Fri int `json:"Fri"`
	Sat int `json:"Sat"`
	Sun int `json:"Sun"`
}

func (a *WeekdayActivity) add(day time.Weekday) {
	switch day {
	case time.Monday:
		a.Mon++
	case time.Tuesday:
		a.Tue++
	case time.Wednesday:
		a.Wed++
	case time.Thursday:
		a.Thu++
	case time.Friday:
		a.Fri++
	case time.Saturday:
		a.Sat++
	case time.Sunday:
		a.Sun++
	}
}

// AnalyticsService aggregates a user's tasks for dashboards. now fixes the
// reporting day and the timezone days are counted in.
type AnalyticsService interface {
	CoreMetrics(ctx context.Context, db *gorm.DB, userID uuid.UUID) (CoreMetrics, error)
	PriorityDistribution(ctx context.Context, db *gorm.DB, userID uuid.UUID) (PriorityDistribution, error)
	CompletionTrend(ctx context.Context, db *gorm.DB, userID uuid.UUID, now time.Time) ([]TrendPoint, error)
	WeekdayActivity(ctx context.Context, db *gorm.DB, userID uuid.UUID, now time.Time) (WeekdayActivity, error)
}

type AnalyticsServiceImpl struct{}

func NewAnalyticsService() *AnalyticsServiceImpl {
	return &AnalyticsServiceImpl{}
}

const completedClause = "LOWER(status) = ?"

func userTasks(ctx context.Context, db *gorm.DB, userID uuid.UUID) *gorm.DB {
	return db.WithContext(ctx).Model(&models.Task{}).Where("user_id = ?", userID)
}

func (s *AnalyticsServiceImpl) CoreMetrics(ctx context.Context, db *gorm.DB, userID uuid.UUID) (CoreMetrics, error) {
	var metrics CoreMetrics
	if err := userTasks(ctx, db, userID).Count(&metrics.TotalTasks).Error; err != nil {
		return metrics, fmt.Errorf("failed to count tasks: %w", err)
	}
	err := userTasks(ctx, db, userID).
		Where(completedClause, strings.ToLower(models.TaskStatusCompleted)).
		Count(&metrics.CompletedTasks).Error
	if err != nil {
		return metrics, fmt.Errorf("failed to count completed tasks: %w", err)
	}

	metrics.PendingTasks = metrics.TotalTasks - metrics.CompletedTasks
	if metrics.TotalTasks > 0 {
		rate := float64(metrics.CompletedTasks) / float64(metrics.TotalTasks) * 100
		metrics.CompletionRate = math.Round(rate*10) / 10
	}
	return metrics, nil
}

func (s *AnalyticsServiceImpl) PriorityDistribution(ctx context.Context, db *gorm.DB, userID uuid.UUID) (PriorityDistribution, error) {
	var rows []struct {
		Priority string
		Count    int64
	}
	err := userTasks(ctx, db, userID).
		Select("priority, COUNT(*) AS count").
		Where("LOWER(status) <> ?", strings.ToLower(models.TaskStatusCompleted)).
		Group("priority").
		Scan(&rows).Error
	if err != nil {
		return PriorityDistribution{}, fmt.Errorf("failed to group tasks by priority: %w", err)
	}

	var dist PriorityDistribution
	for _, row := range rows {
		switch strings.ToLower(strings.TrimSpace(row.Priority)) {
		case "high":
			dist.High += row.Count
		case "low":
			dist.Low += row.Count
		case "medium", "":
			dist.Medium += row.Count
		}
	}
	return dist, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CompletionTrend returns completions per day for the TrendDays days ending
// today, oldest first, including days with none.
func (s *AnalyticsServiceImpl) CompletionTrend(ctx context.Context, db *gorm.DB, userID uuid.UUID, now time.Time) ([]TrendPoint, error) {
	loc := now.Location()
	today := startOfDay(now)
	start := today.AddDate(0, 0, -(TrendDays - 1))

	var completedAt []time.Time
	err := userTasks(ctx, db, userID).
		Where(completedClause, strings.ToLower(models.TaskStatusCompleted)).
		Where("updated_at >= ?", start.UTC()).
		Pluck("updated_at", &completedAt).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load completed tasks: %w", err)
	}

	counts := make(map[string]int, TrendDays)
	for _, t := range completedAt {
		counts[t.In(loc).Format(models.DueDateLayout)]++
	}

	trend := make([]TrendPoint, 0, TrendDays)
	for day := start; !day.After(today); day = day.AddDate(0, 0, 1) {
		trend = append(trend, TrendPoint{
			Date:  day.Format(trendDateLayout),
			Count: counts[day.Format(models.DueDateLayout)],
		})
	}
	return trend, nil
}

// WeekdayActivity counts tasks created or updated in the last ActivityDays
// days by the weekday of their latest change.
func (s *AnalyticsServiceImpl) WeekdayActivity(ctx context.Context, db *gorm.DB, userID uuid.UUID, now time.Time) (WeekdayActivity, error) {
	start := now.AddDate(0, 0, -ActivityDays)

	var rows []struct {
		CreatedAt time.Time
		UpdatedAt time.Time
	}
	err := userTasks(ctx, db, userID).
		Select("created_at, updated_at").
		Where("(created_at >= ? OR updated_at >= ?)", start.UTC(), start.UTC()).
		Scan(&rows).Error
	if err != nil {
		return WeekdayActivity{}, fmt.Errorf("failed to load task activity: %w", err)
	}

	var activity WeekdayActivity
	for _, row := range rows {
		last := row.UpdatedAt
		if last.IsZero() {
			last = row.CreatedAt
		}
		activity.add(last.In(now.Location()).Weekday())
	}
	return activity, nil
}
