package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const promptColumns = `id, title, content, description, tags, project_id, created_by, created_at, updated_at`

func scanPrompt(row interface{ Scan(...any) error }, p *Prompt) error {
	var tags, createdAt, updatedAt string
	var projectID sql.NullInt64
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Description, &tags, &projectID, &p.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return err
	}
	p.Tags = SplitTags(tags)
	p.ProjectID = nullInt(projectID)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return nil
}

// SplitTags parses a comma-separated tag list, dropping blanks and
// duplicates while keeping the first spelling seen.
func SplitTags(s string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, t)
	}
	return tags
}

func joinTags(tags []string) string {
	return strings.Join(SplitTags(strings.Join(tags, ",")), ",")
}

func validatePrompt(in *PromptInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return &ValidationError{Field: "title", Err: errors.New("required")}
	}
	if strings.TrimSpace(in.Content) == "" {
		return &ValidationError{Field: "content", Err: errors.New("required")}
	}
	return nil
}

func (s *Store) CreatePrompt(sess *Session, in PromptInput) (*Prompt, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if err := validatePrompt(&in); err != nil {
		return nil, err
	}
	ts := now()
	res, err := s.db.Exec(
		`INSERT INTO prompts (title, content, description, tags, project_id, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Title, in.Content, in.Description, joinTags(in.Tags), in.ProjectID, sess.User.ID, ts, ts,
	)
	if err != nil {
		return nil, queryErr("insert prompt", err)
	}
	id, _ := res.LastInsertId()
	return s.GetPrompt(id)
}

func (s *Store) GetPrompt(id int64) (*Prompt, error) {
	p := &Prompt{}
	err := scanPrompt(s.db.QueryRow(`SELECT `+promptColumns+` FROM prompts WHERE id = ?`, id), p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, queryErr(fmt.Sprintf("get prompt %d", id), err)
	}
	return p, nil
}

// ListPrompts returns all prompts, newest first.
func (s *Store) ListPrompts() ([]Prompt, error) {
	rows, err := s.db.Query(`SELECT ` + promptColumns + ` FROM prompts ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, queryErr("list prompts", err)
	}
	defer rows.Close()

	var prompts []Prompt
	for rows.Next() {
		var p Prompt
		if err := scanPrompt(rows, &p); err != nil {
			return nil, queryErr("scan prompt", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

func (s *Store) UpdatePrompt(sess *Session, id int64, in PromptInput) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if err := validatePrompt(&in); err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE prompts SET title = ?, content = ?, description = ?, tags = ?, project_id = ?, updated_at = ? WHERE id = ?`,
		in.Title, in.Content, in.Description, joinTags(in.Tags), in.ProjectID, now(), id,
	)
	if err != nil {
		return queryErr("update prompt", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeletePrompt(sess *Session, id int64) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	res, err := s.db.Exec(`DELETE FROM prompts WHERE id = ?`, id)
	if err != nil {
		return queryErr("delete prompt", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
