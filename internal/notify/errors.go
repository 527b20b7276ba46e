package notify

import "errors"

// Notification actor error types.
var (
	ErrActorAlreadyRunning = errors.New("notification actor is already running")
	ErrActorNotRunning     = errors.New("notification actor is not running")
	ErrIdentityMismatch    = errors.New("token identity does not match channel")
	ErrNoActiveSessions    = errors.New("no authenticated sessions connected")
)
