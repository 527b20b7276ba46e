package call

import (
	"testing"
)

// TestTracker_FullLifecycle tests the Idle → Starting → Active → Ending → Idle path
func TestTracker_FullLifecycle(t *testing.T) {
	tracker := NewTracker()

	if tracker.State() != Idle {
		t.Fatalf("Expected initial state Idle, got %v", tracker.State())
	}

	if err := tracker.Begin(); err != nil {
		t.Fatalf("Begin from Idle should succeed: %v", err)
	}
	if tracker.State() != Starting {
		t.Errorf("Expected Starting, got %v", tracker.State())
	}

	if err := tracker.Activate("rec-1"); err != nil {
		t.Fatalf("Activate from Starting should succeed: %v", err)
	}
	if tracker.State() != Active || tracker.RecordID() != "rec-1" {
		t.Errorf("Expected Active with rec-1, got %v %q", tracker.State(), tracker.RecordID())
	}

	if err := tracker.BeginEnd(); err != nil {
		t.Fatalf("BeginEnd from Active should succeed: %v", err)
	}
	tracker.FinishEnd()
	if tracker.State() != Idle || tracker.RecordID() != "" {
		t.Errorf("Expected Idle with cleared record, got %v %q", tracker.State(), tracker.RecordID())
	}
}

// TestTracker_DuplicateBeginRejected tests the synchronous duplicate guard
func TestTracker_DuplicateBeginRejected(t *testing.T) {
	tracker := NewTracker()

	if err := tracker.Begin(); err != nil {
		t.Fatalf("First Begin should succeed: %v", err)
	}

	// Second call-start while still Starting (record creation in flight).
	if err := tracker.Begin(); err != ErrCallInProgress {
		t.Errorf("Expected ErrCallInProgress while Starting, got %v", err)
	}

	if err := tracker.Activate("rec-1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	// And again while Active.
	if err := tracker.Begin(); err != ErrCallInProgress {
		t.Errorf("Expected ErrCallInProgress while Active, got %v", err)
	}
}

// TestTracker_AbortStart tests rollback when record creation fails
func TestTracker_AbortStart(t *testing.T) {
	tracker := NewTracker()

	if err := tracker.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	tracker.AbortStart()

	if tracker.State() != Idle {
		t.Errorf("Expected Idle after AbortStart, got %v", tracker.State())
	}
	if err := tracker.Begin(); err != nil {
		t.Errorf("Begin should succeed again after AbortStart: %v", err)
	}
}

// TestTracker_AbortEndRetainsRecord tests that a failed close keeps the reference
func TestTracker_AbortEndRetainsRecord(t *testing.T) {
	tracker := NewTracker()
	if err := tracker.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Activate("rec-1"); err != nil {
		t.Fatal(err)
	}
	if err := tracker.BeginEnd(); err != nil {
		t.Fatal(err)
	}

	tracker.AbortEnd()

	if tracker.State() != Active {
		t.Errorf("Expected Active after AbortEnd, got %v", tracker.State())
	}
	if tracker.RecordID() != "rec-1" {
		t.Errorf("Record reference should be retained after AbortEnd, got %q", tracker.RecordID())
	}
}

// TestTracker_IllegalTransitions tests guards on out-of-order transitions
func TestTracker_IllegalTransitions(t *testing.T) {
	tracker := NewTracker()

	if err := tracker.Activate("rec-1"); err != ErrNotStarting {
		t.Errorf("Expected ErrNotStarting from Idle, got %v", err)
	}
	if err := tracker.BeginEnd(); err != ErrNoActiveCall {
		t.Errorf("Expected ErrNoActiveCall from Idle, got %v", err)
	}

	// FinishEnd/AbortEnd outside Ending are no-ops.
	tracker.FinishEnd()
	tracker.AbortEnd()
	if tracker.State() != Idle {
		t.Errorf("No-op transitions should not change state, got %v", tracker.State())
	}
}
