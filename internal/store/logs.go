package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// maxLogEntries caps the run log; the oldest rows are trimmed first.
const maxLogEntries = 5000

// LogEntry is one operator-facing run log line.
type LogEntry struct {
	TS     time.Time `json:"ts"`
	System string    `json:"system"`
	Action string    `json:"action"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
}

// AddLog appends one entry and trims the log to its cap.
func (s *Store) AddLog(ctx context.Context, system, action string, ok bool, errText string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO run_logs (ts, system, action, ok, error) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), system, action, boolToInt(ok), errText)
	if err != nil {
		return fmt.Errorf("adding log entry: %w", err)
	}

	_, err = s.conn.ExecContext(ctx,
		`DELETE FROM run_logs WHERE id NOT IN (SELECT id FROM run_logs ORDER BY id DESC LIMIT ?)`,
		maxLogEntries)
	if err != nil {
		return fmt.Errorf("trimming log: %w", err)
	}
	return nil
}

// Logs returns the most recent entries, oldest first.
func (s *Store) Logs(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT ts, system, action, ok, error FROM run_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var ts string
		var ok int
		if err := rows.Scan(&ts, &e.System, &e.Action, &ok, &e.Error); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		e.TS, _ = time.Parse(time.RFC3339, ts)
		e.OK = ok != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ClearLogs removes every entry.
func (s *Store) ClearLogs(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM run_logs`)
	return err
}

// ExportLogs renders the whole log as indented JSON.
func (s *Store) ExportLogs(ctx context.Context) ([]byte, error) {
	entries, err := s.Logs(ctx, maxLogEntries)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(entries, "", "  ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
