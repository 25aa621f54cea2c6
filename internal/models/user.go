package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID       uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Username string    `json:"username" gorm:"unique;not null"`
	Email    string    `json:"email" gorm:"unique;not null"`
	Password string    `json:"-" gorm:"not null"`

	IsActive    bool       `json:"is_active" gorm:"default:true"`
	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Tasks []Task `json:"tasks,omitempty" gorm:"foreignKey:UserID"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	return ensureID(&u.ID)
}

// Token is a persisted refresh token.
type Token struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserId       uuid.UUID `json:"user_id" gorm:"column:user_id;type:uuid;not null;index"`
	RefreshToken uuid.UUID `json:"refresh_token" gorm:"type:uuid;not null;uniqueIndex"`
	ExpiresAt    time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (t *Token) BeforeCreate(tx *gorm.DB) error {
	return ensureID(&t.ID)
}

func (t *Token) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

func ensureID(id *uuid.UUID) error {
	if *id != uuid.Nil {
		return nil
	}
	generated, err := uuid.NewV4()
	if err != nil {
		return err
	}
	*id = generated
	return nil
}
