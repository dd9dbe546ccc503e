package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Training outcome markers.
const (
	TrainingResultOK    = "OK"
	TrainingResultNotOK = "NOT_OK"
)

// TrainingExample records how one ticket was handled: the ticket text, the
// case the operator chose, the parameters used and whether the outcome was
// good, plus free-form corrections for review.
type TrainingExample struct {
	ID          string            `json:"id"`
	At          time.Time         `json:"ts"`
	TicketText  string            `json:"ticketText"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ChosenCase  string            `json:"chosenCase"`
	Params      map[string]string `json:"params,omitempty"`
	Result      string            `json:"result"`
	Corrections string            `json:"corrections,omitempty"`
}

// AddTraining stores a new example. An empty Result defaults to OK.
func (s *Store) AddTraining(ctx context.Context, ex TrainingExample) (*TrainingExample, error) {
	ex.ID = uuid.New().String()
	ex.At = time.Now().UTC()
	if ex.Result == "" {
		ex.Result = TrainingResultOK
	}

	if err := s.insertTraining(ctx, ex); err != nil {
		return nil, fmt.Errorf("adding training example: %w", err)
	}
	return &ex, nil
}

// DeleteTraining removes an example.
func (s *Store) DeleteTraining(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM training_examples WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// TrainingExamples lists every example, oldest first.
func (s *Store) TrainingExamples(ctx context.Context) ([]TrainingExample, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, ts, ticket_text, metadata, chosen_case, params, result, corrections
		 FROM training_examples ORDER BY ts`)
	if err != nil {
		return nil, fmt.Errorf("querying training examples: %w", err)
	}
	defer rows.Close()

	var out []TrainingExample
	for rows.Next() {
		ex, err := scanTraining(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ex)
	}
	return out, rows.Err()
}

// ExportTraining renders all examples as indented JSON.
func (s *Store) ExportTraining(ctx context.Context) ([]byte, error) {
	examples, err := s.TrainingExamples(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(examples, "", "  ")
}

// ImportTraining merges examples from a JSON export, generating ids and
// timestamps where missing. Returns the applied count.
func (s *Store) ImportTraining(ctx context.Context, data []byte) (int, error) {
	var imported []TrainingExample
	if err := json.Unmarshal(data, &imported); err != nil {
		return 0, fmt.Errorf("parsing training import: %w", err)
	}

	applied := 0
	for _, ex := range imported {
		if ex.ID == "" {
			ex.ID = uuid.New().String()
		}
		if ex.At.IsZero() {
			ex.At = time.Now().UTC()
		}
		if ex.Result == "" {
			ex.Result = TrainingResultOK
		}
		if err := s.insertTraining(ctx, ex); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func (s *Store) insertTraining(ctx context.Context, ex TrainingExample) error {
	metadata, err := encodeStringMap(ex.Metadata)
	if err != nil {
		return err
	}
	params, err := encodeStringMap(ex.Params)
	if err != nil {
		return err
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO training_examples (id, ts, ticket_text, metadata, chosen_case, params, result, corrections)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			ticket_text = excluded.ticket_text, metadata = excluded.metadata,
			chosen_case = excluded.chosen_case, params = excluded.params,
			result = excluded.result, corrections = excluded.corrections`,
		ex.ID, ex.At.Format(time.RFC3339), ex.TicketText, metadata,
		ex.ChosenCase, params, ex.Result, ex.Corrections)
	return err
}

func scanTraining(rows *sql.Rows) (*TrainingExample, error) {
	var ex TrainingExample
	var ts, metadata, params string
	if err := rows.Scan(&ex.ID, &ts, &ex.TicketText, &metadata, &ex.ChosenCase,
		&params, &ex.Result, &ex.Corrections); err != nil {
		return nil, err
	}
	ex.At, _ = time.Parse(time.RFC3339, ts)
	ex.Metadata = decodeStringMap(metadata)
	ex.Params = decodeStringMap(params)
	return &ex, nil
}

func encodeStringMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStringMap(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}
