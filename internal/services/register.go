package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"smart-task-manager/backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegistrationRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type RegisterService interface {
	RegisterUser(ctx context.Context, db *gorm.DB, req RegistrationRequest) (*models.User, error)
}

type RegisterServiceImpl struct {
	bcryptCost int
}

func NewRegisterService(bcryptCost int) *RegisterServiceImpl {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &RegisterServiceImpl{bcryptCost: bcryptCost}
}

func (s *RegisterServiceImpl) RegisterUser(ctx context.Context, db *gorm.DB, req RegistrationRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	db = db.WithContext(ctx)

	var existing models.User
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username: username,
		Email:    email,
		Password: string(hashedPassword),
		IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}
