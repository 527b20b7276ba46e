package dispatch

import "errors"

// Dispatcher error types.
var (
	ErrMissingNotification = errors.New("dispatch request has no notification")
	ErrNoRecipients        = errors.New("dispatch request has no recipients")
)
