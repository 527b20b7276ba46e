package database

import (
	"database/sql"
	"fmt"
)

// Schema statements applied at startup. Kept idempotent so restarts reuse an
// existing database file.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS call_sessions (
		id           TEXT PRIMARY KEY,
		room         TEXT NOT NULL,
		participants TEXT NOT NULL,
		start_time   DATETIME NOT NULL,
		end_time     DATETIME,
		status       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_call_sessions_room ON call_sessions(room)`,
	`CREATE TABLE IF NOT EXISTS archived_messages (
		id         TEXT NOT NULL,
		room       TEXT NOT NULL,
		kind       TEXT NOT NULL,
		payload    TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (room, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_archived_messages_room_time ON archived_messages(room, created_at)`,
}

// Bootstrap creates the schema if it does not exist.
func Bootstrap(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

// SchemaValidator provides database schema validation for deployment checks.
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// ValidateTablesExist verifies that all required tables exist.
func (v *SchemaValidator) ValidateTablesExist() error {
	requiredTables := map[string]string{
		"call_sessions":     "Call session records",
		"archived_messages": "Message archive",
	}

	for table, description := range requiredTables {
		exists, err := v.tableExists(table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}

	return nil
}

func (v *SchemaValidator) tableExists(name string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
	if err := v.db.QueryRow(query, name).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
