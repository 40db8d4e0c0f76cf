package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const projectColumns = `id, name, description, status, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }, p *Project) error {
	var status, createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &status, &createdAt, &updatedAt); err != nil {
		return err
	}
	p.Status = ProjectStatus(status)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return nil
}

func (s *Store) CreateProject(sess *Session, name, description string, status ProjectStatus) (*Project, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Err: errors.New("required")}
	}
	if status == "" {
		status = ProjectActive
	}
	ts := now()
	res, err := s.db.Exec(
		`INSERT INTO projects (name, description, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		name, description, string(status), ts, ts,
	)
	if err != nil {
		return nil, queryErr("insert project", err)
	}
	id, _ := res.LastInsertId()
	return s.GetProject(id)
}

func (s *Store) GetProject(id int64) (*Project, error) {
	p := &Project{}
	err := scanProject(s.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id), p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, queryErr(fmt.Sprintf("get project %d", id), err)
	}
	return p, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects() ([]Project, error) {
	rows, err := s.db.Query(`SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, queryErr("list projects", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := scanProject(rows, &p); err != nil {
			return nil, queryErr("scan project", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ListProjectStats returns every project with its derived fields.
func (s *Store) ListProjectStats() ([]ProjectStats, error) {
	projects, err := s.ListProjects()
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, nil
	}

	stats := make([]ProjectStats, len(projects))
	index := make(map[int64]int, len(projects))
	for i, p := range projects {
		stats[i] = ProjectStats{Project: p}
		index[p.ID] = i
	}

	rows, err := s.db.Query(`
		SELECT project_id, COUNT(*),
		       SUM(CASE WHEN status IN ('done', 'completed') THEN 1 ELSE 0 END),
		       COUNT(DISTINCT assignee_id)
		FROM tasks WHERE project_id IS NOT NULL GROUP BY project_id`)
	if err != nil {
		return nil, queryErr("project task stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pid int64
		var total, done, team int
		if err := rows.Scan(&pid, &total, &done, &team); err != nil {
			return nil, queryErr("scan project task stats", err)
		}
		i, ok := index[pid]
		if !ok {
			continue
		}
		stats[i].TaskCount = total
		stats[i].TeamSize = team
		if total > 0 {
			stats[i].Progress = done * 100 / total
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	arows, err := s.db.Query(`
		SELECT project_id, type, name, url FROM accounts
		WHERE project_id IS NOT NULL AND type IN (?, ?) ORDER BY name`,
		string(AccountDomain), string(AccountSocialMedia))
	if err != nil {
		return nil, queryErr("project account links", err)
	}
	defer arows.Close()
	for arows.Next() {
		var pid int64
		var typ, name, url string
		if err := arows.Scan(&pid, &typ, &name, &url); err != nil {
			return nil, queryErr("scan project account links", err)
		}
		i, ok := index[pid]
		if !ok {
			continue
		}
		if AccountType(typ) == AccountDomain {
			stats[i].Domains = append(stats[i].Domains, name)
		} else if url != "" {
			stats[i].SocialLinks = append(stats[i].SocialLinks, url)
		}
	}
	return stats, arows.Err()
}

func (s *Store) UpdateProject(sess *Session, id int64, name, description string, status ProjectStatus) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Err: errors.New("required")}
	}
	res, err := s.db.Exec(
		`UPDATE projects SET name = ?, description = ?, status = ?, updated_at = ? WHERE id = ?`,
		name, description, string(status), now(), id,
	)
	if err != nil {
		return queryErr("update project", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProject removes the project. Tasks, accounts and prompts that
// referenced it keep a dangling reference and show up as "Unknown".
func (s *Store) DeleteProject(sess *Session, id int64) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	res, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return queryErr("delete project", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
