package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const taskColumns = `id, title, description, project_id, assignee_id, priority, status, deadline, created_by, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }, t *Task) error {
	var projectID, assigneeID sql.NullInt64
	var deadline sql.NullString
	var priority, status, createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.Title, &t.Description, &projectID, &assigneeID, &priority, &status,
		&deadline, &t.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return err
	}
	t.ProjectID = nullInt(projectID)
	t.AssigneeID = nullInt(assigneeID)
	t.Priority = TaskPriority(priority)
	t.Status = NormalizeTaskStatus(status)
	t.Deadline = nullTime(deadline)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return nil
}

func validateTask(in *TaskInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return &ValidationError{Field: "title", Err: errors.New("required")}
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if in.Status == "" {
		in.Status = StatusTodo
	}
	return nil
}

func (s *Store) CreateTask(sess *Session, in TaskInput) (*Task, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if err := validateTask(&in); err != nil {
		return nil, err
	}
	ts := now()
	res, err := s.db.Exec(
		`INSERT INTO tasks (title, description, project_id, assignee_id, priority, status, deadline, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Title, in.Description, in.ProjectID, in.AssigneeID, string(in.Priority), string(in.Status),
		timeArg(in.Deadline), sess.User.ID, ts, ts,
	)
	if err != nil {
		return nil, queryErr("insert task", err)
	}
	id, _ := res.LastInsertId()
	return s.GetTask(id)
}

func (s *Store) GetTask(id int64) (*Task, error) {
	t := &Task{}
	err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id), t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, queryErr(fmt.Sprintf("get task %d", id), err)
	}
	return t, nil
}

// ListTasks returns every task, newest first.
func (s *Store) ListTasks() ([]Task, error) {
	return s.queryTasks("list tasks", `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id DESC`)
}

// ListTasksByProject returns the project's tasks. A project that does not
// exist simply has no tasks.
func (s *Store) ListTasksByProject(projectID int64) ([]Task, error) {
	tasks, err := s.queryTasks("list project tasks",
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

func (s *Store) queryTasks(op, query string, args ...any) ([]Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, queryErr(op, err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := scanTask(rows, &t); err != nil {
			return nil, queryErr(op, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateTask(sess *Session, id int64, in TaskInput) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if err := validateTask(&in); err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE tasks SET title = ?, description = ?, project_id = ?, assignee_id = ?, priority = ?, status = ?, deadline = ?, updated_at = ?
		 WHERE id = ?`,
		in.Title, in.Description, in.ProjectID, in.AssigneeID, string(in.Priority), string(in.Status),
		timeArg(in.Deadline), now(), id,
	)
	if err != nil {
		return queryErr("update task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTaskStatus moves a task across the board columns.
func (s *Store) SetTaskStatus(sess *Session, id int64, status TaskStatus) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`, string(status), now(), id)
	if err != nil {
		return queryErr("update task status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTask(sess *Session, id int64) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return queryErr("delete task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListComments returns the task's comments, oldest first, with author
// names resolved.
func (s *Store) ListComments(taskID int64) ([]Comment, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.task_id, c.author_id, COALESCE(NULLIF(u.full_name, ''), u.email, ''), c.body, c.created_at
		FROM task_comments c LEFT JOIN users u ON u.id = c.author_id
		WHERE c.task_id = ? ORDER BY c.id`, taskID)
	if err != nil {
		return nil, queryErr("list comments", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Author, &c.Body, &createdAt); err != nil {
			return nil, queryErr("scan comment", err)
		}
		c.CreatedAt = parseTime(createdAt)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *Store) AddComment(sess *Session, taskID int64, body string) (*Comment, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, &ValidationError{Field: "comment", Err: errors.New("empty")}
	}
	if _, err := s.GetTask(taskID); err != nil {
		return nil, err
	}
	ts := now()
	res, err := s.db.Exec(`INSERT INTO task_comments (task_id, author_id, body, created_at) VALUES (?, ?, ?, ?)`,
		taskID, sess.User.ID, body, ts)
	if err != nil {
		return nil, queryErr("insert comment", err)
	}
	id, _ := res.LastInsertId()
	return &Comment{
		ID:        id,
		TaskID:    taskID,
		AuthorID:  sess.User.ID,
		Author:    displayName(sess.User),
		Body:      body,
		CreatedAt: parseTime(ts),
	}, nil
}

func displayName(u User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
