package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smart-task-manager/backend/internal/handlers"
	"smart-task-manager/backend/internal/models"
	"smart-task-manager/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type MockTaskService struct {
	shouldReturnError bool
	returnNotFound    bool
	tasks             []models.Task
	lastUpdate        services.TaskUpdate
	alertsDay         time.Time
}

func (m *MockTaskService) CreateTask(ctx context.Context, db *gorm.DB, userID uuid.UUID, input services.TaskInput) (models.Task, error) {
	if m.shouldReturnError {
		return models.Task{}, gorm.ErrInvalidDB
	}
	if input.DueDate == "tomorrow" {
		return models.Task{}, services.ErrInvalidTaskInput
	}
	task := models.Task{ID: uuid.Must(uuid.NewV4()), UserID: userID, Title: input.Title, Description: input.Description}
	m.tasks = append(m.tasks, task)
	return task, nil
}

func (m *MockTaskService) GetTaskByID(ctx context.Context, db *gorm.DB, userID, id uuid.UUID) (models.Task, error) {
	if m.shouldReturnError {
		return models.Task{}, gorm.ErrInvalidDB
	}
	if m.returnNotFound {
		return models.Task{}, services.ErrTaskNotFound
	}
	for _, task := range m.tasks {
		if task.ID == id {
			return task, nil
		}
	}
	return models.Task{ID: id, UserID: userID, Title: "Test Task", Status: models.TaskStatusPending}, nil
}

func (m *MockTaskService) GetTasksByUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]models.Task, error) {
	if m.shouldReturnError {
		return nil, gorm.ErrInvalidDB
	}
	return m.tasks, nil
}

func (m *MockTaskService) UpdateTask(ctx context.Context, db *gorm.DB, userID, id uuid.UUID, update services.TaskUpdate) (models.Task, error) {
	if m.shouldReturnError {
		return models.Task{}, gorm.ErrInvalidDB
	}
	if m.returnNotFound {
		return models.Task{}, services.ErrTaskNotFound
	}
	m.lastUpdate = update
	return models.Task{ID: id, UserID: userID}, nil
}

func (m *MockTaskService) DeleteTask(ctx context.Context, db *gorm.DB, userID, id uuid.UUID) error {
	if m.shouldReturnError {
		return gorm.ErrInvalidDB
	}
	if m.returnNotFound {
		return services.ErrTaskNotFound
	}
	return nil
}

func (m *MockTaskService) GetTaskAlerts(ctx context.Context, db *gorm.DB, userID uuid.UUID, today time.Time) (services.TaskAlerts, error) {
	m.alertsDay = today
	return services.BuildTaskAlerts(m.tasks, today), nil
}

var testUserID = uuid.Must(uuid.FromString("0b7e1a0c-6a55-4b8e-9a57-0e6b0b6a4d11"))

// withUser stands in for the auth middleware.
func withUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

func setupTaskHandler() (*handlers.TaskHandler, *MockTaskService, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	mockService := &MockTaskService{}
	handler := handlers.NewTaskHandler(nil, mockService, time.UTC)
	router := gin.New()
	router.Use(withUser(testUserID))

	return handler, mockService, router
}

func doJSON(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return serve(router, req)
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateTask(t *testing.T) {
	handler, mockService, router := setupTaskHandler()
	router.POST("/tasks", handler.CreateTask)

	w := doJSON(router, "POST", "/tasks", map[string]interface{}{
		"title":       "Test Task",
		"description": "Test Description",
		"tags":        []string{"work"},
	})

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status %d, got %d", http.StatusCreated, w.Code)
	}
	if len(mockService.tasks) != 1 || mockService.tasks[0].UserID != testUserID {
		t.Errorf("Expected task to be created for the caller, got %+v", mockService.tasks)
	}
}

func TestCreateTaskMissingFields(t *testing.T) {
	handler, _, router := setupTaskHandler()
	router.POST("/tasks", handler.CreateTask)

	w := doJSON(router, "POST", "/tasks", map[string]string{"title": "No description"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCreateTaskInvalidJSON(t *testing.T) {
	handler, _, router := setupTaskHandler()
	router.POST("/tasks", handler.CreateTask)

	w := doJSON(router, "POST", "/tasks", "invalid json")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCreateTaskValidationError(t *testing.T) {
	handler, _, router := setupTaskHandler()
	router.POST("/tasks", handler.CreateTask)

	w := doJSON(router, "POST", "/tasks", map[string]string{"title": "t", "description": "d", "due_date": "tomorrow"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCreateTaskUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewTaskHandler(nil, &MockTaskService{}, nil)
	router := gin.New()
	router.POST("/tasks", handler.CreateTask)

	w := doJSON(router, "POST", "/tasks", map[string]string{"title": "t", "description": "d"})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestGetTaskByID(t *testing.T) {
	handler, _, router := setupTaskHandler()
	router.GET("/tasks/:id", handler.GetTaskByID)

	taskID := uuid.Must(uuid.NewV4())
	w := doJSON(router, "GET", "/tasks/"+taskID.String(), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		Task models.Task `json:"task"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Task.ID != taskID {
		t.Errorf("Expected task ID %s, got %s", taskID, response.Task.ID)
	}
}

func TestGetTaskByIDNotFound(t *testing.T) {
	handler, mockService, router := setupTaskHandler()
	mockService.returnNotFound = true
	router.GET("/tasks/:id", handler.GetTaskByID)

	w := doJSON(router, "GET", "/tasks/"+uuid.Must(uuid.NewV4()).String(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	w = doJSON(router, "GET", "/tasks/not-a-uuid", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d for malformed id, got %d", http.StatusNotFound, w.Code)
	}
}

func TestGetTasks(t *testing.T) {
	handler, mockService, router := setupTaskHandler()
	mockService.tasks = []models.Task{
		{ID: uuid.Must(uuid.NewV4()), Title: "Task 1"},
		{ID: uuid.Must(uuid.NewV4()), Title: "Task 2"},
	}
	router.GET("/tasks", handler.GetTasks)

	w := doJSON(router, "GET", "/tasks", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	var response struct {
		Tasks []models.Task `json:"tasks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(response.Tasks) != 2 {
		t.Errorf("Expected 2 tasks, got %d", len(response.Tasks))
	}
}

func TestUpdateTask(t *testing.T) {
	handler, mockService, router := setupTaskHandler()
	router.PUT("/tasks/:id", handler.UpdateTask)

	w := doJSON(router, "PUT", "/tasks/"+uuid.Must(uuid.NewV4()).String(), map[string]string{"title": "Updated"})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if mockService.lastUpdate.Title == nil || *mockService.lastUpdate.Title != "Updated" {
		t.Errorf("Expected title update to be passed through")
	}
	if mockService.lastUpdate.Description != nil {
		t.Errorf("Expected untouched fields to stay nil")
	}
}

func TestCompleteTask(t *testing.T) {
	handler, mockService, router := setupTaskHandler()
	router.POST("/tasks/:id/complete", handler.CompleteTask)

	w := doJSON(router, "POST", "/tasks/"+uuid.Must(uuid.NewV4()).String()+"/complete", nil)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if mockService.lastUpdate.Status == nil || *mockService.lastUpdate.Status != models.TaskStatusCompleted {
		t.Errorf("Expected status to be set to Completed")
	}
}

func TestDeleteTask(t *testing.T) {
	handler, _, router := setupTaskHandler()
	router.DELETE("/tasks/:id", handler.DeleteTask)

	w := doJSON(router, "DELETE", "/tasks/"+uuid.Must(uuid.NewV4()).String(), nil)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestDeleteTaskServiceError(t *testing.T) {
	handler, mockService, router := setupTaskHandler()
	mockService.shouldReturnError = true
	router.DELETE("/tasks/:id", handler.DeleteTask)

	w := doJSON(router, "DELETE", "/tasks/"+uuid.Must(uuid.NewV4()).String(), nil)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestGetTaskAlerts(t *testing.T) {
	handler, mockService, router := setupTaskHandler()
	mockService.tasks = []models.Task{
		{ID: uuid.Must(uuid.NewV4()), Title: "Old", DueDate: "2000-01-01", Priority: models.PriorityLow},
	}
	router.GET("/tasks/alerts", handler.GetTaskAlerts)

	w := doJSON(router, "GET", "/tasks/alerts", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	var alerts services.TaskAlerts
	if err := json.Unmarshal(w.Body.Bytes(), &alerts); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(alerts.OverdueTasks) != 1 {
		t.Errorf("Expected 1 overdue task, got %d", len(alerts.OverdueTasks))
	}
	if mockService.alertsDay.Location() != time.UTC {
		t.Errorf("Expected alerts to be computed in the configured zone")
	}
}
