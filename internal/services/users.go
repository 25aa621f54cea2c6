package services

import (
	"context"
	"errors"
	"fmt"

	"smart-task-manager/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type UserService interface {
	GetUserProfile(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*models.User, error)
}

type UserServiceImpl struct{}

func NewUserService() *UserServiceImpl {
	return &UserServiceImpl{}
}

func (s *UserServiceImpl) GetUserProfile(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	return &user, nil
}
