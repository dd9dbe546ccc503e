package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrEntryNotFound = errors.New("knowledge entry not found")

// KnowledgeEntry is one tagged note in the knowledge base.
type KnowledgeEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
}

// AddKnowledge stores a new entry and returns it with its generated id.
func (s *Store) AddKnowledge(ctx context.Context, entry KnowledgeEntry) (*KnowledgeEntry, error) {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now().UTC()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO knowledge (id, title, body, tags, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.Title, entry.Text, strings.Join(entry.Tags, ","),
		entry.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("adding knowledge entry: %w", err)
	}
	return &entry, nil
}

// UpdateKnowledge overwrites title, text and tags of an existing entry.
func (s *Store) UpdateKnowledge(ctx context.Context, entry KnowledgeEntry) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE knowledge SET title = ?, body = ?, tags = ? WHERE id = ?`,
		entry.Title, entry.Text, strings.Join(entry.Tags, ","), entry.ID)
	if err != nil {
		return fmt.Errorf("updating knowledge entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// DeleteKnowledge removes an entry.
func (s *Store) DeleteKnowledge(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM knowledge WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// KnowledgeEntries lists every entry, oldest first.
func (s *Store) KnowledgeEntries(ctx context.Context) ([]KnowledgeEntry, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, title, body, tags, created_at FROM knowledge ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge: %w", err)
	}
	defer rows.Close()

	var out []KnowledgeEntry
	for rows.Next() {
		e, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// SearchKnowledge ranks entries by how many query terms their title, text or
// tags contain, highest score first. An empty query returns everything.
func SearchKnowledge(entries []KnowledgeEntry, query string) []KnowledgeEntry {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return entries
	}

	type scored struct {
		entry KnowledgeEntry
		score int
	}
	var matched []scored
	for _, e := range entries {
		haystack := strings.ToLower(e.Title + " " + e.Text + " " + strings.Join(e.Tags, " "))
		score := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				score++
			}
		}
		if score > 0 {
			matched = append(matched, scored{e, score})
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].score > matched[j].score })

	out := make([]KnowledgeEntry, len(matched))
	for i, m := range matched {
		out[i] = m.entry
	}
	return out
}

// ExportKnowledge renders all entries as indented JSON.
func (s *Store) ExportKnowledge(ctx context.Context) ([]byte, error) {
	entries, err := s.KnowledgeEntries(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(entries, "", "  ")
}

// ImportKnowledge merges entries from a JSON export, generating ids where
// missing. Returns the applied count.
func (s *Store) ImportKnowledge(ctx context.Context, data []byte) (int, error) {
	var imported []KnowledgeEntry
	if err := json.Unmarshal(data, &imported); err != nil {
		return 0, fmt.Errorf("parsing knowledge import: %w", err)
	}

	applied := 0
	for _, e := range imported {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		_, err := s.conn.ExecContext(ctx,
			`INSERT INTO knowledge (id, title, body, tags, created_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET title = excluded.title, body = excluded.body, tags = excluded.tags`,
			e.ID, e.Title, e.Text, strings.Join(e.Tags, ","), e.CreatedAt.Format(time.RFC3339))
		if err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func scanKnowledge(rows *sql.Rows) (*KnowledgeEntry, error) {
	var e KnowledgeEntry
	var tags, created string
	if err := rows.Scan(&e.ID, &e.Title, &e.Text, &tags, &created); err != nil {
		return nil, err
	}
	if tags != "" {
		e.Tags = strings.Split(tags, ",")
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &e, nil
}
