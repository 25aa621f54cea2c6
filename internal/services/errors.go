package services

import "errors"

var (
	ErrInvalidReminderInput = errors.New("invalid reminder input")
	ErrReminderNotFound     = errors.New("reminder not found")
	ErrInternal             = errors.New("internal error")

	ErrTaskNotFound     = errors.New("task not found")
	ErrInvalidTaskInput = errors.New("invalid task input")

	ErrSubtaskNotFound     = errors.New("subtask not found")
	ErrInvalidSubtaskInput = errors.New("invalid subtask input")

	ErrEmailTaken          = errors.New("email already registered")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrInvalidAccessToken  = errors.New("invalid or expired access token")
	ErrUserNotFound        = errors.New("user not found")

	ErrAIUnavailable = errors.New("ai assistant is unavailable")
	ErrAIFailed      = errors.New("ai generation failed")
)
