package services

import (
	"context"
	"testing"
	"time"

	"smart-task-manager/backend/internal/config"
	"smart-task-manager/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
		BCryptCost:      bcrypt.MinCost,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	register := NewRegisterService(bcrypt.MinCost)
	auth := NewAuthService(testAuthConfig())

	user, err := register.RegisterUser(ctx, db, RegistrationRequest{
		Username: "alice",
		Email:    "  Alice@Example.com ",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "correct horse", user.Password)

	_, err = register.RegisterUser(ctx, db, RegistrationRequest{Username: "alice2", Email: "alice@example.com", Password: "whatever1"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = register.RegisterUser(ctx, db, RegistrationRequest{Username: "alice", Email: "other@example.com", Password: "whatever1"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	loggedIn, err := auth.LoginUser(ctx, db, "ALICE@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotNil(t, loggedIn.LastLoginAt)

	_, err = auth.LoginUser(ctx, db, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.LoginUser(ctx, db, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	auth := NewAuthService(testAuthConfig())

	pair, err := auth.GenerateToken(ctx, db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.EqualValues(t, 900, pair.ExpiresIn)

	userID, err := auth.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	other := NewAuthService(config.AuthConfig{JWTSecret: "other-secret", AccessTokenTTL: time.Minute})
	_, err = other.ParseAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)

	_, err = auth.ParseAccessToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestParseAccessTokenRejectsBadClaims(t *testing.T) {
	auth := NewAuthService(testAuthConfig())
	sign := func(claims jwt.MapClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return token
	}
	userID := uuid.Must(uuid.NewV4()).String()
	future := time.Now().Add(time.Hour).Unix()

	cases := map[string]jwt.MapClaims{
		"expired":      {"user_id": userID, "iss": tokenIssuer, "exp": time.Now().Add(-time.Hour).Unix()},
		"no expiry":    {"user_id": userID, "iss": tokenIssuer},
		"wrong issuer": {"user_id": userID, "iss": "someone-else", "exp": future},
		"missing user": {"iss": tokenIssuer, "exp": future},
		"malformed id": {"user_id": "42", "iss": tokenIssuer, "exp": future},
	}
	for name, claims := range cases {
		_, err := auth.ParseAccessToken(sign(claims))
		assert.ErrorIs(t, err, ErrInvalidAccessToken, name)
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	auth := NewAuthService(testAuthConfig())

	first, err := auth.GenerateToken(ctx, db, user.ID)
	require.NoError(t, err)

	second, err := auth.RefreshToken(ctx, db, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// a consumed token cannot be replayed
	_, err = auth.RefreshToken(ctx, db, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = auth.RefreshToken(ctx, db, "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	require.NoError(t, auth.RevokeToken(ctx, db, second.RefreshToken))
	_, err = auth.RefreshToken(ctx, db, second.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshTokenExpired(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	auth := NewAuthService(testAuthConfig())

	pair, err := auth.GenerateToken(ctx, db, user.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Token{}).
		Where("user_id = ?", user.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	_, err = auth.RefreshToken(ctx, db, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestGetUserProfile(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	users := NewUserService()

	profile, err := users.GetUserProfile(ctx, db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)

	_, err = users.GetUserProfile(ctx, db, uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, ErrUserNotFound)
}
