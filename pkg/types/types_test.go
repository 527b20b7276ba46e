package types

import (
	"reflect"
	"testing"
	"time"
)

// TestMessage_ToggleReaction tests add/remove semantics of the reaction set
func TestMessage_ToggleReaction(t *testing.T) {
	msg := &Message{ID: "m1", Kind: KindPlain, Content: "hello"}

	msg.ToggleReaction("👍", "u1", "Alice")
	if len(msg.Reactions["👍"]) != 1 {
		t.Fatalf("Expected 1 reactor after first toggle, got %d", len(msg.Reactions["👍"]))
	}
	if msg.Reactions["👍"][0].UserName != "Alice" {
		t.Errorf("Expected reactor name Alice, got %s", msg.Reactions["👍"][0].UserName)
	}

	msg.ToggleReaction("👍", "u2", "Bob")
	if len(msg.Reactions["👍"]) != 2 {
		t.Errorf("Expected 2 reactors, got %d", len(msg.Reactions["👍"]))
	}

	// Removing one user leaves the other intact
	msg.ToggleReaction("👍", "u1", "Alice")
	if len(msg.Reactions["👍"]) != 1 || msg.Reactions["👍"][0].UserID != "u2" {
		t.Errorf("Expected only u2 to remain, got %+v", msg.Reactions["👍"])
	}

	// Removing the last user drops the emoji key entirely
	msg.ToggleReaction("👍", "u2", "Bob")
	if _, exists := msg.Reactions["👍"]; exists {
		t.Error("Expected emoji key to be dropped when set becomes empty")
	}
}

// TestMessage_ToggleReactionInvolutive tests that a double toggle restores prior state
func TestMessage_ToggleReactionInvolutive(t *testing.T) {
	msg := &Message{ID: "m1", Kind: KindPlain}
	msg.ToggleReaction("🎉", "u1", "Alice")

	before := make(map[string][]Reactor)
	for k, v := range msg.Reactions {
		before[k] = append([]Reactor(nil), v...)
	}

	msg.ToggleReaction("🎉", "u2", "Bob")
	msg.ToggleReaction("🎉", "u2", "Bob")

	if !reflect.DeepEqual(msg.Reactions, before) {
		t.Errorf("Double toggle should restore prior state: before=%+v after=%+v", before, msg.Reactions)
	}
}

// TestMessage_Clone tests that a clone shares no mutable state with the original
func TestMessage_Clone(t *testing.T) {
	msg := &Message{
		ID:          "m1",
		Kind:        KindPlain,
		Content:     "hello",
		Sender:      &Identity{ID: "u1", DisplayName: "Alice"},
		Attachments: []map[string]any{{"name": "scan.pdf"}},
	}
	msg.ToggleReaction("👍", "u1", "Alice")

	clone := msg.Clone()
	if !reflect.DeepEqual(clone, msg) {
		t.Fatalf("Clone should equal original: clone=%+v original=%+v", clone, msg)
	}

	// Mutating the original must not be visible through the clone
	msg.ToggleReaction("👍", "u1", "Alice")
	msg.ToggleReaction("🎉", "u2", "Bob")
	msg.Attachments[0]["name"] = "other.pdf"
	msg.Sender.DisplayName = "changed"
	msg.MarkDeleted("u1", time.Now())

	if len(clone.Reactions["👍"]) != 1 {
		t.Errorf("Expected clone to keep 1 reactor, got %+v", clone.Reactions)
	}
	if _, exists := clone.Reactions["🎉"]; exists {
		t.Error("Expected new emoji on original to be invisible to clone")
	}
	if clone.Attachments[0]["name"] != "scan.pdf" {
		t.Errorf("Expected clone attachment unchanged, got %v", clone.Attachments[0]["name"])
	}
	if clone.Sender.DisplayName != "Alice" {
		t.Errorf("Expected clone sender unchanged, got %s", clone.Sender.DisplayName)
	}
	if clone.Deleted != nil {
		t.Error("Expected clone to stay undeleted")
	}
}

// TestMessage_MarkDeleted tests tombstone idempotency
func TestMessage_MarkDeleted(t *testing.T) {
	msg := &Message{
		ID:          "m1",
		Kind:        KindPlain,
		Content:     "sensitive",
		Attachments: []map[string]any{{"url": "x"}},
	}

	first := time.Now()
	msg.MarkDeleted("u1", first)

	if msg.Content != DeletedContent {
		t.Errorf("Expected tombstone content, got %q", msg.Content)
	}
	if msg.Attachments != nil {
		t.Error("Expected attachments cleared on deletion")
	}
	if msg.Deleted == nil || msg.Deleted.By != "u1" {
		t.Fatalf("Expected tombstone by u1, got %+v", msg.Deleted)
	}

	// Second delete must not change the tombstone or revert content
	msg.MarkDeleted("u2", time.Now().Add(time.Hour))
	if msg.Deleted.By != "u1" || !msg.Deleted.At.Equal(first) {
		t.Errorf("Tombstone should be preserved on repeat deletion, got %+v", msg.Deleted)
	}
	if msg.Content != DeletedContent {
		t.Errorf("Content should remain tombstoned, got %q", msg.Content)
	}
}

// TestMessage_IsProtected tests protected-category classification
func TestMessage_IsProtected(t *testing.T) {
	cases := []struct {
		name      string
		msg       Message
		protected bool
	}{
		{"plain", Message{Kind: KindPlain}, false},
		{"threaded", Message{Kind: KindPlain, ThreadID: "t1"}, true},
		{"alert", Message{Kind: KindAlert}, true},
		{"call invitation", Message{Kind: KindCallInvitation}, true},
		{"call join", Message{Kind: KindCallJoin}, true},
	}

	for _, tc := range cases {
		if got := tc.msg.IsProtected(); got != tc.protected {
			t.Errorf("%s: expected protected=%v, got %v", tc.name, tc.protected, got)
		}
	}
}

// TestIsValidUserID tests user ID format boundaries
func TestIsValidUserID(t *testing.T) {
	if !IsValidUserID("alice_1") {
		t.Error("alice_1 should be valid")
	}
	if IsValidUserID("") {
		t.Error("Empty user ID should be invalid")
	}
	if IsValidUserID("bad user!") {
		t.Error("User ID with spaces/punctuation should be invalid")
	}
}

// TestAlert_Validate tests alert creator requirements
func TestAlert_Validate(t *testing.T) {
	alert := &Alert{Message: "code blue"}
	if err := alert.Validate(); err != ErrMissingAlertSender {
		t.Errorf("Expected ErrMissingAlertSender, got %v", err)
	}

	alert.CreatedBy = &Identity{ID: "u1", DisplayName: "Alice"}
	if err := alert.Validate(); err != nil {
		t.Errorf("Expected valid alert, got %v", err)
	}
}
