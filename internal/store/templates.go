package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teleassist/robotnik/internal/playbook"
)

// maxUsageRecords caps the template usage history used for recommendations.
const maxUsageRecords = 2000

// placeholderRegex matches {UPPER_SNAKE} tokens in a template body.
var placeholderRegex = regexp.MustCompile(`\{[A-Z_]+\}`)

// Template is a canned reply with {PLACEHOLDER} tokens.
type Template struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Body         string    `json:"body"`
	Placeholders []string  `json:"placeholders,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TicketMeta carries the ticket features used to rank template
// recommendations.
type TicketMeta struct {
	TicketID   string
	ClientCode string
	Queue      string
	Subject    string
	Keywords   []string
}

// AddTemplate stores a new template, extracting its placeholders.
func (s *Store) AddTemplate(ctx context.Context, t Template) (*Template, error) {
	t.ID = uuid.New().String()
	if t.Name == "" {
		t.Name = "Untitled"
	}
	t.Placeholders = ExtractPlaceholders(t.Body)
	t.CreatedAt = time.Now().UTC()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO templates (id, name, category, tags, body, placeholders, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Category, strings.Join(t.Tags, ","), t.Body,
		strings.Join(t.Placeholders, ","), t.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("adding template: %w", err)
	}
	return &t, nil
}

// UpdateTemplate overwrites an existing template and re-extracts
// placeholders.
func (s *Store) UpdateTemplate(ctx context.Context, t Template) error {
	t.Placeholders = ExtractPlaceholders(t.Body)
	res, err := s.conn.ExecContext(ctx,
		`UPDATE templates SET name = ?, category = ?, tags = ?, body = ?, placeholders = ? WHERE id = ?`,
		t.Name, t.Category, strings.Join(t.Tags, ","), t.Body,
		strings.Join(t.Placeholders, ","), t.ID)
	if err != nil {
		return fmt.Errorf("updating template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// DeleteTemplate removes a template.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// Templates lists every template, oldest first.
func (s *Store) Templates(ctx context.Context) ([]Template, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, category, tags, body, placeholders, created_at FROM templates ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// RecordTemplateUsage remembers which template was chosen for which ticket
// features, trimming the history to its cap.
func (s *Store) RecordTemplateUsage(ctx context.Context, meta TicketMeta, templateID string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO template_usages (ts, template_id, ticket_id, client_code, queue, subject, keywords)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), templateID, meta.TicketID,
		meta.ClientCode, meta.Queue, meta.Subject, strings.Join(meta.Keywords, ","))
	if err != nil {
		return fmt.Errorf("recording template usage: %w", err)
	}

	_, err = s.conn.ExecContext(ctx,
		`DELETE FROM template_usages WHERE id NOT IN (SELECT id FROM template_usages ORDER BY id DESC LIMIT ?)`,
		maxUsageRecords)
	return err
}

// RecommendTemplates ranks templates by usage history relevance: every past
// use counts 1, +2 for the same client code, +3 for the same queue, +1 per
// shared keyword. Returns at most limit templates, best first.
func (s *Store) RecommendTemplates(ctx context.Context, meta TicketMeta, limit int) ([]Template, error) {
	if limit <= 0 {
		limit = 3
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT template_id, client_code, queue, keywords FROM template_usages`)
	if err != nil {
		return nil, fmt.Errorf("querying template usage: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]int)
	for rows.Next() {
		var templateID, clientCode, queue, keywords string
		if err := rows.Scan(&templateID, &clientCode, &queue, &keywords); err != nil {
			return nil, err
		}
		relevance := 1
		if meta.ClientCode != "" && clientCode == meta.ClientCode {
			relevance += 2
		}
		if meta.Queue != "" && queue == meta.Queue {
			relevance += 3
		}
		if keywords != "" {
			used := strings.Split(keywords, ",")
			for _, kw := range meta.Keywords {
				for _, u := range used {
					if kw == u {
						relevance++
					}
				}
			}
		}
		scores[templateID] += relevance
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}

	all, err := s.Templates(ctx)
	if err != nil {
		return nil, err
	}

	var ranked []Template
	for _, t := range all {
		if scores[t.ID] > 0 {
			ranked = append(ranked, t)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return scores[ranked[i].ID] > scores[ranked[j].ID] })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// ExtractPlaceholders returns the distinct {UPPER_SNAKE} tokens in a body.
func ExtractPlaceholders(body string) []string {
	matches := placeholderRegex.FindAllString(body, -1)
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// ResolvePlaceholders substitutes template placeholders from an execution
// context. Unknown placeholders stay literal.
func ResolvePlaceholders(body string, ctx playbook.Context) string {
	lookup := map[string]string{
		"{CLIENT_CODE}":   contextString(ctx, "clientCode"),
		"{TICKET_NUMBER}": firstNonEmpty(contextString(ctx, "ticketId"), contextString(ctx, "ticketNumber")),
		"{LINE_NUMBER}":   contextString(ctx, "lineNumber"),
		"{CLIENT_NAME}":   contextString(ctx, "clientName"),
		"{ATC_PLAN}":      contextString(ctx, "atcPlan"),
	}
	return placeholderRegex.ReplaceAllStringFunc(body, func(match string) string {
		if val, ok := lookup[match]; ok && val != "" {
			return val
		}
		return match
	})
}

func contextString(ctx playbook.Context, key string) string {
	if v, ok := ctx[key]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func scanTemplate(rows *sql.Rows) (*Template, error) {
	var t Template
	var tags, placeholders, created string
	if err := rows.Scan(&t.ID, &t.Name, &t.Category, &tags, &t.Body, &placeholders, &created); err != nil {
		return nil, err
	}
	if tags != "" {
		t.Tags = strings.Split(tags, ",")
	}
	if placeholders != "" {
		t.Placeholders = strings.Split(placeholders, ",")
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &t, nil
}
