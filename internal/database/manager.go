package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	dbconfig "wardline/pkg/database"
	"wardline/pkg/interfaces"
	"wardline/pkg/types"
)

// Manager implements interfaces.RecordStore on SQLite. All writes flow
// through a single writer goroutine; reads run concurrently on the pool.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

// writeOperation represents a queued database write.
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies pragmas and schema, and starts the
// writer goroutine.
func NewManager(config *dbconfig.Config) (*Manager, error) {
	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := applySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	if err := dbconfig.Bootstrap(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine, retrying
// each failed write once.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil {
				log.Printf("Database write failed, retrying in 5 seconds: %v", err)
				time.Sleep(5 * time.Second)
				err = op.operation(m.db)
				if err != nil {
					log.Printf("Database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			log.Println("Database write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion.
func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("record store is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("record store is shutting down")
	}
}

// CreateCallSession inserts a new active call record.
func (m *Manager) CreateCallSession(ctx context.Context, session *types.CallSession) error {
	return m.executeWrite(func(db *sql.DB) error {
		participantsJSON, err := json.Marshal(session.Participants)
		if err != nil {
			return fmt.Errorf("failed to marshal participants: %w", err)
		}

		query := `
			INSERT INTO call_sessions (id, room, participants, start_time, end_time, status)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		_, err = db.ExecContext(ctx, query,
			session.ID,
			session.Room,
			string(participantsJSON),
			session.StartTime,
			session.EndTime,
			session.Status,
		)
		if err != nil {
			return fmt.Errorf("failed to insert call session: %w", err)
		}

		return nil
	})
}

// GetCallSession retrieves a call record by ID.
func (m *Manager) GetCallSession(ctx context.Context, id string) (*types.CallSession, error) {
	query := `
		SELECT id, room, participants, start_time, end_time, status
		FROM call_sessions
		WHERE id = ?
	`

	row := m.db.QueryRowContext(ctx, query, id)

	var session types.CallSession
	var participantsJSON string
	var endTime sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.Room,
		&participantsJSON,
		&session.StartTime,
		&endTime,
		&session.Status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrCallSessionNotFound
		}
		return nil, fmt.Errorf("failed to query call session: %w", err)
	}

	if err := json.Unmarshal([]byte(participantsJSON), &session.Participants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
	}

	if endTime.Valid {
		session.EndTime = &endTime.Time
	}

	return &session, nil
}

// CloseCallSession sets the record's end time and marks it ended.
func (m *Manager) CloseCallSession(ctx context.Context, id string) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			UPDATE call_sessions
			SET end_time = ?, status = ?
			WHERE id = ?
		`
		result, err := db.ExecContext(ctx, query, time.Now(), types.CallStatusEnded, id)
		if err != nil {
			return fmt.Errorf("failed to close call session: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check close result: %w", err)
		}
		if affected == 0 {
			return interfaces.ErrCallSessionNotFound
		}

		return nil
	})
}

// ArchiveMessage stores a message under its room name. The full envelope is
// serialized as JSON so schema changes never lose fields.
func (m *Manager) ArchiveMessage(ctx context.Context, room string, message *types.Message) error {
	return m.executeWrite(func(db *sql.DB) error {
		payloadJSON, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		query := `
			INSERT OR REPLACE INTO archived_messages (id, room, kind, payload, created_at)
			VALUES (?, ?, ?, ?, ?)
		`
		_, err = db.ExecContext(ctx, query,
			message.ID,
			room,
			message.Kind,
			string(payloadJSON),
			message.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert archived message: %w", err)
		}

		return nil
	})
}

// RoomArchive returns the most recent archived messages for a room in
// chronological order.
func (m *Manager) RoomArchive(ctx context.Context, room string, limit int) ([]*types.Message, error) {
	query := `
		SELECT payload
		FROM archived_messages
		WHERE room = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := m.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query room archive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*types.Message

	for rows.Next() {
		var payloadJSON string
		if err := rows.Scan(&payloadJSON); err != nil {
			return nil, fmt.Errorf("failed to scan archived message: %w", err)
		}

		var message types.Message
		if err := json.Unmarshal([]byte(payloadJSON), &message); err != nil {
			return nil, fmt.Errorf("failed to unmarshal archived message: %w", err)
		}

		messages = append(messages, &message)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archive rows: %w", err)
	}

	// Query returns newest first; reverse to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// HealthCheck validates database connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, "SELECT COUNT(*) FROM call_sessions LIMIT 1")
	if err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	_ = rows.Close()

	return nil
}

// GetDB returns the underlying connection for schema validation.
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close shuts down the writer goroutine and the connection pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// applySQLiteOptimizations applies performance pragmas.
func applySQLiteOptimizations(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	return nil
}
