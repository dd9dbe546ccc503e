package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teleassist/robotnik/internal/playbook"
)

var (
	ErrPlaybookNotFound = errors.New("playbook not found")
	ErrBuiltInPlaybook  = errors.New("built-in playbooks are read-only")
)

// SavedPlaybook is a stored user playbook with bookkeeping timestamps.
type SavedPlaybook struct {
	playbook.Playbook
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SavePlaybook inserts or updates a user playbook. Ids colliding with a
// built-in scenario are rejected.
func (s *Store) SavePlaybook(ctx context.Context, pb playbook.Playbook) (*SavedPlaybook, error) {
	if pb.ID == "" {
		pb.ID = uuid.New().String()
	}
	if _, builtin := playbook.BuiltinScenario(pb.ID); builtin || pb.BuiltIn {
		return nil, ErrBuiltInPlaybook
	}
	if pb.Name == "" {
		pb.Name = "Untitled"
	}

	steps, err := json.Marshal(pb.Steps)
	if err != nil {
		return nil, fmt.Errorf("encoding steps: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO playbooks (id, name, steps, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, steps = excluded.steps, updated_at = excluded.updated_at`,
		pb.ID, pb.Name, string(steps), now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("saving playbook: %w", err)
	}

	return &SavedPlaybook{Playbook: pb, CreatedAt: now, UpdatedAt: now}, nil
}

// Playbook fetches one stored playbook by id. Built-in ids resolve to the
// shipped scenarios.
func (s *Store) Playbook(ctx context.Context, id string) (*SavedPlaybook, error) {
	if pb, ok := playbook.BuiltinScenario(id); ok {
		return &SavedPlaybook{Playbook: *pb}, nil
	}

	row := s.conn.QueryRowContext(ctx,
		`SELECT id, name, steps, created_at, updated_at FROM playbooks WHERE id = ?`, id)
	saved, err := scanPlaybook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlaybookNotFound
	}
	return saved, err
}

// Playbooks lists built-in scenarios followed by user playbooks.
func (s *Store) Playbooks(ctx context.Context) ([]SavedPlaybook, error) {
	out := make([]SavedPlaybook, 0, len(playbook.BuiltinScenarios))
	for _, pb := range playbook.BuiltinScenarios {
		out = append(out, SavedPlaybook{Playbook: pb})
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, steps, created_at, updated_at FROM playbooks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying playbooks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		saved, err := scanPlaybook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *saved)
	}
	return out, rows.Err()
}

// DeletePlaybook removes a user playbook. Built-ins cannot be deleted.
func (s *Store) DeletePlaybook(ctx context.Context, id string) error {
	if _, builtin := playbook.BuiltinScenario(id); builtin {
		return ErrBuiltInPlaybook
	}
	res, err := s.conn.ExecContext(ctx, `DELETE FROM playbooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting playbook: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlaybookNotFound
	}
	return nil
}

// ExportPlaybooks renders user playbooks as indented JSON.
func (s *Store) ExportPlaybooks(ctx context.Context) ([]byte, error) {
	all, err := s.Playbooks(ctx)
	if err != nil {
		return nil, err
	}
	user := make([]SavedPlaybook, 0, len(all))
	for _, pb := range all {
		if !pb.BuiltIn {
			user = append(user, pb)
		}
	}
	return json.MarshalIndent(user, "", "  ")
}

// ImportPlaybooks upserts playbooks from a JSON export. Returns how many
// records were applied.
func (s *Store) ImportPlaybooks(ctx context.Context, data []byte) (int, error) {
	var imported []SavedPlaybook
	if err := json.Unmarshal(data, &imported); err != nil {
		return 0, fmt.Errorf("parsing playbook import: %w", err)
	}

	applied := 0
	for _, pb := range imported {
		pb.BuiltIn = false
		if _, err := s.SavePlaybook(ctx, pb.Playbook); err != nil {
			if errors.Is(err, ErrBuiltInPlaybook) {
				continue
			}
			return applied, err
		}
		applied++
	}
	return applied, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlaybook(row rowScanner) (*SavedPlaybook, error) {
	var saved SavedPlaybook
	var steps, created, updated string
	if err := row.Scan(&saved.ID, &saved.Name, &steps, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(steps), &saved.Steps); err != nil {
		return nil, fmt.Errorf("decoding steps for %q: %w", saved.ID, err)
	}
	saved.CreatedAt, _ = time.Parse(time.RFC3339, created)
	saved.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &saved, nil
}
