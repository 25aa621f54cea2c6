package services

import (
	"context"
	"testing"
	"time"

	"smart-task-manager/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type AnalyticsServiceSuite struct {
	suite.Suite
	ctx     context.Context
	db      *gorm.DB
	service *AnalyticsServiceImpl
	user    models.User
	other   models.User
	now     time.Time
}

func on2024(month time.Month, d, hour int) time.Time {
	return time.Date(2024, month, d, hour, 0, 0, 0, time.UTC)
}

func (s *AnalyticsServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = newTestDB(s.T())
	s.service = NewAnalyticsService()
	s.user = createTestUser(s.T(), s.db, "dana")
	s.other = createTestUser(s.T(), s.db, "eve")
	// a Sunday
	s.now = on2024(time.March, 10, 12)

	s.insert(s.user.ID, "Ship release", models.TaskStatusCompleted, models.PriorityHigh, on2024(time.March, 1, 9), on2024(time.March, 10, 9))
	s.insert(s.user.ID, "Write notes", models.TaskStatusCompleted, models.PriorityLow, on2024(time.March, 1, 9), on2024(time.March, 8, 10))
	s.insert(s.user.ID, "Old cleanup", models.TaskStatusCompleted, models.PriorityMedium, on2024(time.January, 15, 9), on2024(time.February, 1, 9))
	s.insert(s.user.ID, "Plan sprint", models.TaskStatusPending, models.PriorityHigh, on2024(time.March, 5, 9), on2024(time.March, 5, 9))
	s.insert(s.user.ID, "Review PRs", models.TaskStatusInProgress, models.PriorityMedium, on2024(time.March, 6, 9), on2024(time.March, 6, 9))
	s.insert(s.user.ID, "Book travel", models.TaskStatusPending, models.PriorityLow, on2024(time.March, 4, 9), on2024(time.March, 4, 9))

	s.insert(s.other.ID, "Other done", models.TaskStatusCompleted, models.PriorityHigh, on2024(time.March, 9, 9), on2024(time.March, 9, 9))
	s.insert(s.other.ID, "Other open", models.TaskStatusPending, models.PriorityHigh, on2024(time.March, 9, 9), on2024(time.March, 9, 9))
	s.insert(s.other.ID, "Other open too", models.TaskStatusPending, models.PriorityHigh, on2024(time.March, 9, 9), on2024(time.March, 9, 9))
}

func (s *AnalyticsServiceSuite) insert(userID uuid.UUID, title, status, priority string, created, updated time.Time) {
	task := models.Task{
		UserID:      userID,
		Title:       title,
		Description: title,
		Status:      status,
		Priority:    priority,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	s.Require().NoError(s.db.Create(&task).Error)
}

func (s *AnalyticsServiceSuite) TestCoreMetrics() {
	metrics, err := s.service.CoreMetrics(s.ctx, s.db, s.user.ID)
	s.Require().NoError(err)
	s.Equal(CoreMetrics{TotalTasks: 6, CompletedTasks: 3, PendingTasks: 3, CompletionRate: 50}, metrics)

	metrics, err = s.service.CoreMetrics(s.ctx, s.db, s.other.ID)
	s.Require().NoError(err)
	s.Equal(33.3, metrics.CompletionRate)
}

func (s *AnalyticsServiceSuite) TestCoreMetricsWithoutTasks() {
	metrics, err := s.service.CoreMetrics(s.ctx, s.db, uuid.Must(uuid.NewV4()))
	s.Require().NoError(err)
	s.Equal(CoreMetrics{}, metrics)
}

func (s *AnalyticsServiceSuite) TestPriorityDistributionCountsOpenTasks() {
	dist, err := s.service.PriorityDistribution(s.ctx, s.db, s.user.ID)
	s.Require().NoError(err)
	s.Equal(PriorityDistribution{High: 1, Medium: 1, Low: 1}, dist)
}

func (s *AnalyticsServiceSuite) TestCompletionTrend() {
	trend, err := s.service.CompletionTrend(s.ctx, s.db, s.user.ID, s.now)
	s.Require().NoError(err)
	s.Require().Len(trend, TrendDays)

	s.Equal("Mar 04", trend[0].Date)
	s.Equal("Mar 10", trend[6].Date)
	s.Equal(1, trend[4].Count, "Mar 08")
	s.Equal(1, trend[6].Count, "Mar 10")

	total := 0
	for _, point := range trend {
		total += point.Count
	}
	s.Equal(2, total)
}

func (s *AnalyticsServiceSuite) TestWeekdayActivity() {
	activity, err := s.service.WeekdayActivity(s.ctx, s.db, s.user.ID, s.now)
	s.Require().NoError(err)
	s.Equal(WeekdayActivity{Mon: 1, Tue: 1, Wed: 1, Fri: 1, Sun: 1}, activity)
}

func TestAnalyticsServiceSuite(t *testing.T) {
	suite.Run(t, new(AnalyticsServiceSuite))
}
