// Package store persists operator data between sessions: the run log, user
// playbooks, knowledge entries, reply templates, training examples and the
// last collected numbers result. Backed by a single-connection sqlite
// database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store owns the database connection. One writer at a time; the connection
// pool is capped at a single connection, which sqlite wants anyway.
type Store struct {
	conn *sql.DB
}

// Open opens (and creates, if needed) the database at path and applies
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %q: %w", path, err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &Store{conn: conn}, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func migrate(ctx context.Context, conn *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS run_logs (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			ts     TEXT NOT NULL,
			system TEXT NOT NULL,
			action TEXT NOT NULL,
			ok     INTEGER NOT NULL,
			error  TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS playbooks (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			steps      TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS knowledge (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			body       TEXT NOT NULL DEFAULT '',
			tags       TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS templates (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			category     TEXT NOT NULL DEFAULT '',
			tags         TEXT NOT NULL DEFAULT '',
			body         TEXT NOT NULL DEFAULT '',
			placeholders TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS template_usages (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			ts          TEXT NOT NULL,
			template_id TEXT NOT NULL,
			ticket_id   TEXT NOT NULL DEFAULT '',
			client_code TEXT NOT NULL DEFAULT '',
			queue       TEXT NOT NULL DEFAULT '',
			subject     TEXT NOT NULL DEFAULT '',
			keywords    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS training_examples (
			id          TEXT PRIMARY KEY,
			ts          TEXT NOT NULL,
			ticket_text TEXT NOT NULL DEFAULT '',
			metadata    TEXT NOT NULL DEFAULT '',
			chosen_case TEXT NOT NULL DEFAULT '',
			params      TEXT NOT NULL DEFAULT '',
			result      TEXT NOT NULL DEFAULT 'OK',
			corrections TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS last_numbers (
			id       INTEGER PRIMARY KEY CHECK (id = 1),
			numbers  TEXT NOT NULL,
			saved_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
