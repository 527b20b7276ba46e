package types

import "errors"

// Validation error types shared across components.
var (
	ErrInvalidUserID      = errors.New("user ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidRoomName    = errors.New("room name must be 1-100 characters, alphanumeric + underscore/hyphen only")
	ErrEmptyContent       = errors.New("message content cannot be empty")
	ErrContentTooLarge    = errors.New("message content exceeds 64KB limit")
	ErrMissingAlertSender = errors.New("alert createdBy must include a valid user ID")
)
