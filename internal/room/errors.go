package room

import "errors"

// Room actor error types.
var (
	ErrActorAlreadyRunning = errors.New("room actor is already running")
	ErrActorNotRunning     = errors.New("room actor is not running")
	ErrNotAuthenticated    = errors.New("authentication required")
	ErrRateLimited         = errors.New("message rate limit exceeded")
	ErrMessageNotFound     = errors.New("message not found")
	ErrUnknownEventType    = errors.New("unknown event type")
)
