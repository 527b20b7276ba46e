package call

import (
	"fmt"
)

// State is the room's call lifecycle position. Transitions are validated
// synchronously on the room actor's event loop before any asynchronous
// record I/O starts, which closes the duplicate-record race window.
type State int

const (
	Idle State = iota
	Starting
	Active
	Ending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Ending:
		return "ending"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Tracker is the small explicit state machine coordinating a room with its
// external call-session record. At most one record reference is held at a
// time. Actor-confined: no locking.
type Tracker struct {
	state    State
	recordID string
}

// NewTracker creates a tracker in the Idle state.
func NewTracker() *Tracker {
	return &Tracker{state: Idle}
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	return t.state
}

// RecordID returns the external call-session record reference, or empty when
// no call is tracked.
func (t *Tracker) RecordID() string {
	return t.recordID
}

// Begin guards a call-start request: legal only from Idle. A second request
// arriving while Starting or Active is rejected here, before any record
// creation is issued.
func (t *Tracker) Begin() error {
	if t.state != Idle {
		return ErrCallInProgress
	}
	t.state = Starting
	return nil
}

// AbortStart returns to Idle when the record creation failed.
func (t *Tracker) AbortStart() {
	if t.state == Starting {
		t.state = Idle
	}
}

// Activate stores the created record's ID and moves to Active.
func (t *Tracker) Activate(recordID string) error {
	if t.state != Starting {
		return ErrNotStarting
	}
	t.state = Active
	t.recordID = recordID
	return nil
}

// BeginEnd starts closing the call, triggered when the last session in the
// room closes while a call is active.
func (t *Tracker) BeginEnd() error {
	if t.state != Active {
		return ErrNoActiveCall
	}
	t.state = Ending
	return nil
}

// FinishEnd clears the record reference and returns to Idle after the
// external record was closed.
func (t *Tracker) FinishEnd() {
	if t.state == Ending {
		t.state = Idle
		t.recordID = ""
	}
}

// AbortEnd returns to Active when the external close write failed, keeping
// the record reference instead of silently losing it.
func (t *Tracker) AbortEnd() {
	if t.state == Ending {
		t.state = Active
	}
}
