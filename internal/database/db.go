// Package database provides database connection and initialization functionality.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Open opens the tradesim sqlite database, applying production PRAGMAs and
// creating the schema if needed. Pass a "file:" URI (e.g. in-memory for
// tests) to skip filesystem preparation.
func Open(path string) (*sql.DB, error) {
	if !strings.HasPrefix(path, "file:") {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path to absolute: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		path = absPath
	}

	conn, err := sql.Open("sqlite", buildConnectionString(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Results are written by one run at a time; a small pool is plenty.
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// buildConnectionString creates the SQLite connection string with PRAGMAs.
func buildConnectionString(path string) string {
	connStr := path
	if strings.Contains(connStr, "?") {
		connStr += "&"
	} else {
		connStr += "?"
	}
	connStr += "_pragma=journal_mode(WAL)"
	connStr += "&_pragma=synchronous(NORMAL)"   // Fsync at checkpoints
	connStr += "&_pragma=busy_timeout(5000)"    // Wait up to 5s on a locked db
	connStr += "&_pragma=foreign_keys(1)"       // Enable foreign key constraints
	connStr += "&_pragma=temp_store(MEMORY)"    // Temp tables in RAM
	return connStr
}

// Migrate creates the schema. Statements are idempotent so this runs on
// every startup.
func Migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS simulations (
		id            TEXT PRIMARY KEY,
		status        TEXT NOT NULL DEFAULT 'pending',
		created_at    INTEGER NOT NULL,
		start_date    TEXT NOT NULL,
		end_date      TEXT NOT NULL,
		tickers       TEXT NOT NULL,
		agent_ids     TEXT NOT NULL,
		agent_results BLOB,
		error         TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_simulations_created_at
		ON simulations(created_at DESC);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
