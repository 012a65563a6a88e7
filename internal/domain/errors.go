package domain

import "errors"

// Domain-specific errors for command validation and persistence.
var (
	// Task errors
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskAlreadyExists = errors.New("task already exists")

	// Validation errors
	ErrInvalidArgument = errors.New("invalid argument")

	// Event log errors
	ErrVersionConflict  = errors.New("version conflict")
	ErrUnknownEventType = errors.New("unknown event type")

	// Projection errors
	ErrProjectionGap = errors.New("projection gap")

	// Authentication errors
	ErrInvalidToken = errors.New("invalid authentication token")
)
