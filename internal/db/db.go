// Package db provides the SQLite connection and schema for the
// command audit ledger.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Command ledger - append-only history of accepted protocol
	// commands, for auditing who asked the LEDs to do what.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS command_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			session TEXT NOT NULL,
			led INTEGER NOT NULL,
			command TEXT NOT NULL,
			args TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_ts ON command_ledger(timestamp);
		CREATE INDEX IF NOT EXISTS idx_ledger_session ON command_ledger(session);
	`)
	if err != nil {
		return fmt.Errorf("failed to create command_ledger table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
