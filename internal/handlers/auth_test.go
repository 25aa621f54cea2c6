package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"smart-task-manager/backend/internal/config"
	"smart-task-manager/backend/internal/database"
	"smart-task-manager/backend/internal/handlers"
	"smart-task-manager/backend/internal/middleware"
	"smart-task-manager/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"
)

func setupAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:   database.DriverSQLite,
		DSN:      ":memory:",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, pool.Migrate())
	t.Cleanup(func() { _ = pool.Close() })

	authService := services.NewAuthService(config.AuthConfig{
		JWTSecret:       "handler-test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})

	router := gin.New()
	router.POST("/signup", handlers.NewRegisterHandler(pool.DB, services.NewRegisterService(bcrypt.MinCost)).Registration)
	router.POST("/login", handlers.NewAuthHandler(pool.DB, authService).Login)
	router.POST("/refresh", handlers.NewRefreshHandler(pool.DB, authService).Refresh)
	router.POST("/logout", handlers.NewLogoutHandler(pool.DB, authService).Logout)
	router.GET("/me", middleware.AuthMiddleware(authService), handlers.NewUserHandler(pool.DB, services.NewUserService()).GetUserProfile)
	return router
}

func TestSignupLoginFlow(t *testing.T) {
	router := setupAuthRouter(t)
	signup := map[string]string{"username": "alice_1", "email": "alice@example.com", "password": "Password123"}

	w := doJSON(router, "POST", "/signup", signup)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(router, "POST", "/signup", map[string]string{"username": "alice_2", "email": "alice@example.com", "password": "Password123"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, "POST", "/login", map[string]string{"email": "alice@example.com", "password": "wrong-password1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, "POST", "/login", map[string]string{"email": "alice@example.com", "password": "Password123"})
	require.Equal(t, http.StatusOK, w.Code)

	var login handlers.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.Equal(t, "alice_1", login.Username)
	assert.Equal(t, "Bearer", login.TokenType)

	req, _ := http.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	me := serve(router, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"email":"alice@example.com"`)

	w = doJSON(router, "POST", "/refresh", map[string]string{"refresh_token": login.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	var pair services.TokenPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))

	w = doJSON(router, "POST", "/refresh", map[string]string{"refresh_token": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, "POST", "/logout", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(router, "POST", "/refresh", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignupValidation(t *testing.T) {
	router := setupAuthRouter(t)

	cases := map[string]map[string]string{
		"missing email":     {"username": "bob", "password": "Password123"},
		"bad username":      {"username": "bob smith", "email": "bob@example.com", "password": "Password123"},
		"password no digit": {"username": "bob", "email": "bob@example.com", "password": "Passwordxx"},
	}
	for name, body := range cases {
		w := doJSON(router, "POST", "/signup", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestMeRequiresToken(t *testing.T) {
	router := setupAuthRouter(t)

	req, _ := http.NewRequest("GET", "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(router, req).Code)
}
