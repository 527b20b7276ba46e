package interfaces

import "errors"

// Common interface errors used across components.
var (
	ErrCallSessionNotFound = errors.New("call session not found")
	ErrUnauthorized        = errors.New("unauthorized access")
)
