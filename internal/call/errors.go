package call

import "errors"

// Call lifecycle error types.
var (
	ErrCallInProgress = errors.New("a call is already starting or active in this room")
	ErrNotStarting    = errors.New("no call is being started")
	ErrNoActiveCall   = errors.New("no active call to end")
)
