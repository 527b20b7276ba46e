package websocket

import "errors"

// Session-related errors.
var (
	ErrSessionClosed = errors.New("session closed")
	ErrWriteTimeout  = errors.New("write timeout")
	ErrInvalidJSON   = errors.New("invalid JSON data")
)
