package domain

import "errors"

// Domain errors - use these for consistent error handling
var (
	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid session")

	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Message errors
	ErrEmptyMessage = errors.New("message cannot be empty")
)
