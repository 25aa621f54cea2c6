package handlers

import (
	"errors"
	"net/http"
	"strings"

	"smart-task-manager/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/mudler/xlog"
	"gorm.io/gorm"
)

type RegisterHandler struct {
	db              *gorm.DB
	registerService services.RegisterService
}

func NewRegisterHandler(db *gorm.DB, registerService services.RegisterService) *RegisterHandler {
	return &RegisterHandler{db: db, registerService: registerService}
}

type RegistrationResponse struct {
	Message string               `json:"message"`
	User    *UserProfileResponse `json:"user"`
}

func (h *RegisterHandler) Registration(c *gin.Context) {
	var req services.RegistrationRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required fields",
			"details": err.Error(),
		})
		return
	}

	if err := validateRegistrationRequest(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation failed",
			"details": err.Error(),
		})
		return
	}

	user, err := h.registerService.RegisterUser(c.Request.Context(), h.db, req)
	switch {
	case errors.Is(err, services.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	case errors.Is(err, services.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "This username is already taken"})
		return
	case err != nil:
		xlog.Error("Registration failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Registration failed",
			"details": "An unexpected error occurred. Please try again later.",
		})
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{
		Message: "User registered successfully",
		User:    newUserProfile(user),
	})
}

func validateRegistrationRequest(req *services.RegistrationRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < 3 {
		return errors.New("username must be at least 3 characters long")
	}

	for _, char := range req.Username {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') || char == '_') {
			return errors.New("username can only contain letters, numbers, and underscores")
		}
	}

	return validatePassword(req.Password)
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}

	var hasLetter, hasDigit bool
	for _, char := range password {
		switch {
		case (char >= 'A' && char <= 'Z') || (char >= 'a' && char <= 'z'):
			hasLetter = true
		case char >= '0' && char <= '9':
			hasDigit = true
		}
	}

	var missing []string
	if !hasLetter {
		missing = append(missing, "letter")
	}
	if !hasDigit {
		missing = append(missing, "number")
	}
	if len(missing) > 0 {
		return errors.New("password must contain at least one " + strings.Join(missing, " and one "))
	}
	return nil
}
