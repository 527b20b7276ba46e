package interfaces

import (
	"context"

	"wardline/pkg/types"
)

// CallSessionStore owns the database-backed call session records. Rooms hold
// only the record ID; all reads and writes go through this interface so
// actors never share the underlying connection state.
type CallSessionStore interface {
	// CreateCallSession inserts a new active call record for a room.
	CreateCallSession(ctx context.Context, session *types.CallSession) error

	// GetCallSession retrieves a call record by ID.
	GetCallSession(ctx context.Context, id string) (*types.CallSession, error)

	// CloseCallSession sets the record's end time and marks it ended.
	CloseCallSession(ctx context.Context, id string) error
}

// MessageArchive persists room messages and alerts for later inspection.
// Archival is best effort: callers log failures and continue broadcasting.
type MessageArchive interface {
	// ArchiveMessage stores a message under its room name.
	ArchiveMessage(ctx context.Context, room string, message *types.Message) error

	// RoomArchive returns the most recent archived messages for a room in
	// chronological order.
	RoomArchive(ctx context.Context, room string, limit int) ([]*types.Message, error)
}

// RecordStore combines persistence surfaces with lifecycle operations.
type RecordStore interface {
	CallSessionStore
	MessageArchive

	// HealthCheck verifies database connectivity and basic operations.
	HealthCheck(ctx context.Context) error

	// Close closes the database and waits for pending writes.
	Close() error
}
