package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	dbconfig "wardline/pkg/database"
	"wardline/pkg/interfaces"
	"wardline/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	manager, err := NewManager(dbconfig.DefaultConfig(path))
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	t.Cleanup(func() {
		if err := manager.Close(); err != nil {
			t.Errorf("Failed to close manager: %v", err)
		}
	})
	return manager
}

// TestManager_CallSessionRoundtrip tests create, get and close of call records
func TestManager_CallSessionRoundtrip(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	session := &types.CallSession{
		ID:           "call-1",
		Room:         "ward-1",
		Participants: []string{"u1", "u2"},
		StartTime:    time.Now(),
		Status:       types.CallStatusActive,
	}

	if err := manager.CreateCallSession(ctx, session); err != nil {
		t.Fatalf("CreateCallSession failed: %v", err)
	}

	loaded, err := manager.GetCallSession(ctx, "call-1")
	if err != nil {
		t.Fatalf("GetCallSession failed: %v", err)
	}
	if loaded.Room != "ward-1" || len(loaded.Participants) != 2 {
		t.Errorf("Loaded session mismatch: %+v", loaded)
	}
	if loaded.EndTime != nil {
		t.Error("New session should have no end time")
	}

	if err := manager.CloseCallSession(ctx, "call-1"); err != nil {
		t.Fatalf("CloseCallSession failed: %v", err)
	}

	closed, err := manager.GetCallSession(ctx, "call-1")
	if err != nil {
		t.Fatalf("GetCallSession after close failed: %v", err)
	}
	if closed.EndTime == nil || closed.Status != types.CallStatusEnded {
		t.Errorf("Closed session should carry end time and ended status: %+v", closed)
	}
}

// TestManager_CallSessionNotFound tests the sentinel error paths
func TestManager_CallSessionNotFound(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.GetCallSession(ctx, "missing"); err != interfaces.ErrCallSessionNotFound {
		t.Errorf("Expected ErrCallSessionNotFound, got %v", err)
	}
	if err := manager.CloseCallSession(ctx, "missing"); err != interfaces.ErrCallSessionNotFound {
		t.Errorf("Expected ErrCallSessionNotFound on close, got %v", err)
	}
}

// TestManager_ArchiveRoundtrip tests message archival and chronological retrieval
func TestManager_ArchiveRoundtrip(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		msg := &types.Message{
			ID:        []string{"m1", "m2", "m3"}[i],
			Kind:      types.KindPlain,
			Content:   "hello",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := manager.ArchiveMessage(ctx, "ward-1", msg); err != nil {
			t.Fatalf("ArchiveMessage failed: %v", err)
		}
	}

	messages, err := manager.RoomArchive(ctx, "ward-1", 10)
	if err != nil {
		t.Fatalf("RoomArchive failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("Expected 3 archived messages, got %d", len(messages))
	}
	if messages[0].ID != "m1" || messages[2].ID != "m3" {
		t.Errorf("Expected chronological order [m1 m2 m3], got [%s %s %s]",
			messages[0].ID, messages[1].ID, messages[2].ID)
	}

	// Limit trims from the oldest side.
	recent, err := manager.RoomArchive(ctx, "ward-1", 2)
	if err != nil {
		t.Fatalf("RoomArchive with limit failed: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "m2" {
		t.Errorf("Expected [m2 m3] with limit 2, got %d entries", len(recent))
	}

	// Other rooms are isolated.
	other, err := manager.RoomArchive(ctx, "ward-2", 10)
	if err != nil {
		t.Fatalf("RoomArchive for empty room failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no messages for ward-2, got %d", len(other))
	}
}

// TestManager_ArchiveUpsert tests that re-archiving an updated message replaces it
func TestManager_ArchiveUpsert(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	msg := &types.Message{ID: "m1", Kind: types.KindPlain, Content: "original", CreatedAt: time.Now()}
	if err := manager.ArchiveMessage(ctx, "ward-1", msg); err != nil {
		t.Fatalf("ArchiveMessage failed: %v", err)
	}

	msg.MarkDeleted("u1", time.Now())
	if err := manager.ArchiveMessage(ctx, "ward-1", msg); err != nil {
		t.Fatalf("Re-archive failed: %v", err)
	}

	messages, err := manager.RoomArchive(ctx, "ward-1", 10)
	if err != nil {
		t.Fatalf("RoomArchive failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("Expected 1 message after upsert, got %d", len(messages))
	}
	if messages[0].Content != types.DeletedContent || messages[0].Deleted == nil {
		t.Errorf("Expected tombstoned archive entry, got %+v", messages[0])
	}
}

// TestManager_HealthCheck tests connectivity validation
func TestManager_HealthCheck(t *testing.T) {
	manager := newTestManager(t)
	if err := manager.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck should pass on a fresh database: %v", err)
	}
}

// TestManager_SchemaValidation tests the bootstrap schema
func TestManager_SchemaValidation(t *testing.T) {
	manager := newTestManager(t)
	validator := dbconfig.NewSchemaValidator(manager.GetDB())
	if err := validator.ValidateTablesExist(); err != nil {
		t.Errorf("Bootstrapped schema should validate: %v", err)
	}
}
