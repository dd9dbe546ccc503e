package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoLastResult means no numbers have been collected yet (or they were
// cleared).
var ErrNoLastResult = errors.New("no stored numbers result")

// SaveNumbers replaces the "last result" with the given set. The last result
// is the one piece of state deliberately shared across runs, so an operator
// can collect now and insert later.
func (s *Store) SaveNumbers(ctx context.Context, numbers []string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO last_numbers (id, numbers, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET numbers = excluded.numbers, saved_at = excluded.saved_at`,
		strings.Join(numbers, "\n"), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving numbers result: %w", err)
	}
	return nil
}

// LastNumbers returns the stored result and when it was saved.
func (s *Store) LastNumbers(ctx context.Context) ([]string, time.Time, error) {
	var joined, saved string
	err := s.conn.QueryRowContext(ctx,
		`SELECT numbers, saved_at FROM last_numbers WHERE id = 1`).Scan(&joined, &saved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNoLastResult
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading numbers result: %w", err)
	}

	savedAt, _ := time.Parse(time.RFC3339, saved)
	if joined == "" {
		return nil, savedAt, nil
	}
	return strings.Split(joined, "\n"), savedAt, nil
}

// ClearNumbers drops the stored result.
func (s *Store) ClearNumbers(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM last_numbers WHERE id = 1`)
	return err
}
