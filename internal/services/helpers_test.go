package services

import (
	"context"
	"testing"

	"smart-task-manager/backend/internal/database"
	"smart-task-manager/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:   database.DriverSQLite,
		DSN:      ":memory:",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, pool.Migrate())
	t.Cleanup(func() { _ = pool.Close() })
	return pool.DB
}

func createTestUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed",
		IsActive: true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	args := m.Called(ctx, prompt, systemInstruction)
	return args.String(0), args.Error(1)
}

// stubTaskLookup serves tasks from a map keyed by task id.
type stubTaskLookup struct {
	tasks map[uuid.UUID]models.Task
	err   error
}

func (s *stubTaskLookup) FindTask(ctx context.Context, userID, taskID uuid.UUID) (*models.Task, error) {
	if s.err != nil {
		return nil, s.err
	}
	task, ok := s.tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, ErrTaskNotFound
	}
	return &task, nil
}
