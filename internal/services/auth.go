package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smart-task-manager/backend/internal/config"
	"smart-task-manager/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenIssuer = "smart-task-manager"

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AuthService interface {
	LoginUser(ctx context.Context, db *gorm.DB, email, password string) (*models.User, error)
	GenerateToken(ctx context.Context, db *gorm.DB, userID uuid.UUID) (TokenPair, error)
	RefreshToken(ctx context.Context, db *gorm.DB, refreshToken string) (TokenPair, error)
	RevokeToken(ctx context.Context, db *gorm.DB, refreshToken string) error
	ParseAccessToken(tokenString string) (uuid.UUID, error)
}

type AuthServiceImpl struct {
	secret          []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewAuthService(cfg config.AuthConfig) *AuthServiceImpl {
	return &AuthServiceImpl{
		secret:          []byte(cfg.JWTSecret),
		accessTokenTTL:  cfg.AccessTokenTTL,
		refreshTokenTTL: cfg.RefreshTokenTTL,
	}
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func (s *AuthServiceImpl) LoginUser(ctx context.Context, db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !VerifyPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	return &user, nil
}

func (s *AuthServiceImpl) GenerateToken(ctx context.Context, db *gorm.DB, userID uuid.UUID) (TokenPair, error) {
	return s.issue(db.WithContext(ctx), userID)
}

func (s *AuthServiceImpl) issue(db *gorm.DB, userID uuid.UUID) (TokenPair, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"iss":     tokenIssuer,
		"iat":     now.Unix(),
		"exp":     now.Add(s.accessTokenTTL).Unix(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, err := uuid.NewV4()
	if err != nil {
		return TokenPair{}, err
	}
	token := models.Token{
		UserId:       userID,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(s.refreshTokenTTL),
	}
	if err := db.Create(&token).Error; err != nil {
		return TokenPair{}, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken.String(),
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTokenTTL.Seconds()),
	}, nil
}

// RefreshToken rotates a refresh token: the presented token is consumed and
// a new pair is issued.
func (s *AuthServiceImpl) RefreshToken(ctx context.Context, db *gorm.DB, refreshToken string) (TokenPair, error) {
	presented, err := uuid.FromString(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	var pair TokenPair
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token models.Token
		err := tx.Where("refresh_token = ? AND expires_at > ?", presented, time.Now()).First(&token).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidRefreshToken
		}
		if err != nil {
			return err
		}

		result := tx.Delete(&token)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// consumed by a concurrent refresh
			return ErrInvalidRefreshToken
		}

		pair, err = s.issue(tx, token.UserId)
		return err
	})
	return pair, err
}

func (s *AuthServiceImpl) RevokeToken(ctx context.Context, db *gorm.DB, refreshToken string) error {
	presented, err := uuid.FromString(refreshToken)
	if err != nil {
		return ErrInvalidRefreshToken
	}
	return db.WithContext(ctx).Where("refresh_token = ?", presented).Delete(&models.Token{}).Error
}

func (s *AuthServiceImpl) ParseAccessToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidAccessToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidAccessToken
	}
	subject, _ := claims["user_id"].(string)
	userID, err := uuid.FromString(subject)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, ErrInvalidAccessToken
	}
	return userID, nil
}
