package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

// InitDatabase initializes the SQLite database and creates tables
func InitDatabase(dbPath string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	var err error
	DB, err = sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Create tables
	if err := CreateTables(DB); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("Database initialized at: %s", dbPath)
	return nil
}

// CreateTables creates the session journal schema
func CreateTables(database *sql.DB) error {
	createSessionsTable := `
	CREATE TABLE IF NOT EXISTS room_sessions (
		id TEXT PRIMARY KEY,
		room_code TEXT NOT NULL,
		opened_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		closed_at DATETIME,
		peak_devices INTEGER NOT NULL DEFAULT 0,
		events_applied INTEGER NOT NULL DEFAULT 0
	);`

	if _, err := database.Exec(createSessionsTable); err != nil {
		return fmt.Errorf("failed to create room_sessions table: %w", err)
	}

	// Create index on room_code for lookups by code
	createCodeIndex := `CREATE INDEX IF NOT EXISTS idx_room_code ON room_sessions(room_code);`
	if _, err := database.Exec(createCodeIndex); err != nil {
		return fmt.Errorf("failed to create room_code index: %w", err)
	}

	// Create index on opened_at for the recent-sessions query
	createOpenedIndex := `CREATE INDEX IF NOT EXISTS idx_opened_at ON room_sessions(opened_at);`
	if _, err := database.Exec(createOpenedIndex); err != nil {
		return fmt.Errorf("failed to create opened_at index: %w", err)
	}

	return nil
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
