package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"wardline/pkg/types"
)

// fakeSender records deliveries and can fail selected targets.
type fakeSender struct {
	mu        sync.Mutex
	rooms     []string
	users     []string
	failRooms map[string]error
	failUsers map[string]error
	payloads  map[string][]byte
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		failRooms: make(map[string]error),
		failUsers: make(map[string]error),
		payloads:  make(map[string][]byte),
	}
}

func (s *fakeSender) SendRoomAlert(ctx context.Context, room string, alert *types.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failRooms[room]; err != nil {
		return err
	}
	s.rooms = append(s.rooms, room)
	return nil
}

func (s *fakeSender) SendUserNotification(ctx context.Context, user string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failUsers[user]; err != nil {
		return err
	}
	s.users = append(s.users, user)
	s.payloads[user] = payload
	return nil
}

func testAlert() *types.Alert {
	return &types.Alert{
		ID:        "a1",
		Message:   "shift change",
		Level:     "info",
		CreatedBy: &types.Identity{ID: "ops"},
	}
}

func TestDispatcher_RoomAndUserTargets(t *testing.T) {
	sender := newFakeSender()
	dispatcher := New(sender)

	outcomes, err := dispatcher.Dispatch(context.Background(), &Request{
		Notification:       testAlert(),
		Recipients:         []string{"u1"},
		OriginalRecipients: []string{"channel:general"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2 (channel room, user)", len(outcomes))
	}
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			t.Errorf("outcome %s/%s failed: %v", outcome.Kind, outcome.Target, outcome.Err)
		}
	}

	if len(sender.rooms) != 1 || sender.rooms[0] != "general" {
		t.Errorf("room targets = %v, want exactly [general]", sender.rooms)
	}
	if len(sender.users) != 1 || sender.users[0] != "u1" {
		t.Errorf("user targets = %v, want [u1]", sender.users)
	}

	var envelope map[string]any
	if err := json.Unmarshal(sender.payloads["u1"], &envelope); err != nil {
		t.Fatalf("decoding user payload: %v", err)
	}
	if envelope["type"] != types.FrameAlertNotification {
		t.Errorf("envelope type = %v, want %q", envelope["type"], types.FrameAlertNotification)
	}
}

func TestDispatcher_PartialFailureIsObservable(t *testing.T) {
	sender := newFakeSender()
	roomErr := errors.New("room offline")
	sender.failRooms["general"] = roomErr
	dispatcher := New(sender)

	outcomes, err := dispatcher.Dispatch(context.Background(), &Request{
		Notification:       testAlert(),
		Recipients:         []string{"u1"},
		OriginalRecipients: []string{"channel:general"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	var failed, succeeded int
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failed++
			if outcome.Target != "general" {
				t.Errorf("failed target = %q, want general", outcome.Target)
			}
		} else {
			succeeded++
		}
	}
	if failed != 1 || succeeded != 1 {
		t.Errorf("failed=%d succeeded=%d, want 1 and 1", failed, succeeded)
	}
}

func TestDispatcher_SelfRoomFallback(t *testing.T) {
	sender := newFakeSender()
	dispatcher := New(sender)

	outcomes, err := dispatcher.Dispatch(context.Background(), &Request{
		Notification: testAlert(),
		Recipients:   []string{"u1"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2 (self room, user)", len(outcomes))
	}
	if len(sender.rooms) != 1 || sender.rooms[0] != "u1_u1" {
		t.Errorf("room targets = %v, want [u1_u1]", sender.rooms)
	}
}

func TestDispatcher_DeduplicatesTargets(t *testing.T) {
	sender := newFakeSender()
	dispatcher := New(sender)

	outcomes, err := dispatcher.Dispatch(context.Background(), &Request{
		Notification:       testAlert(),
		Recipients:         []string{"u1", "u1"},
		OriginalRecipients: []string{"channel:general", "channel:general", "u2"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	// general once, the u2 self room, and the u1 user channel.
	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	roomSet := make(map[string]bool)
	for _, room := range sender.rooms {
		roomSet[room] = true
	}
	if !roomSet["general"] || !roomSet["u2_u2"] || len(roomSet) != 2 {
		t.Errorf("room targets = %v, want general and u2_u2", sender.rooms)
	}
}

func TestDispatcher_Validation(t *testing.T) {
	dispatcher := New(newFakeSender())

	if _, err := dispatcher.Dispatch(context.Background(), &Request{Recipients: []string{"u1"}}); err != ErrMissingNotification {
		t.Errorf("missing notification error = %v", err)
	}

	if _, err := dispatcher.Dispatch(context.Background(), &Request{Notification: testAlert()}); err != ErrNoRecipients {
		t.Errorf("no recipients error = %v", err)
	}

	senderless := &Request{
		Notification: &types.Alert{Message: "no sender"},
		Recipients:   []string{"u1"},
	}
	if _, err := dispatcher.Dispatch(context.Background(), senderless); err == nil {
		t.Error("expected validation error for alert without creator id")
	}
}
