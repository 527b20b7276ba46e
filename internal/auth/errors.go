package auth

import "errors"

// Verification error types.
var (
	ErrAuthenticationFailed = errors.New("token verification failed for all key strategies")
	ErrMissingSubject       = errors.New("token carries no user ID")
	ErrEmptyToken           = errors.New("empty token")
)
