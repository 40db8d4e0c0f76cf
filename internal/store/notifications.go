package store

import "fmt"

// AddNotification records a toast for the user's notification list.
func (s *Store) AddNotification(userID int64, title, description, variant string) (*Notification, error) {
	if variant == "" {
		variant = "default"
	}
	ts := now()
	res, err := s.db.Exec(
		`INSERT INTO notifications (user_id, title, description, variant, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, title, description, variant, ts,
	)
	if err != nil {
		return nil, queryErr("insert notification", err)
	}
	id, _ := res.LastInsertId()
	return &Notification{
		ID:          id,
		UserID:      userID,
		Title:       title,
		Description: description,
		Variant:     variant,
		CreatedAt:   parseTime(ts),
	}, nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *Store) ListNotifications(userID int64) ([]Notification, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, title, description, variant, read, created_at FROM notifications
		 WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, queryErr("list notifications", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var read int
		var createdAt string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Description, &n.Variant, &read, &createdAt); err != nil {
			return nil, queryErr("scan notification", err)
		}
		n.Read = read == 1
		n.CreatedAt = parseTime(createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) UnreadCount(userID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID).Scan(&n)
	if err != nil {
		return 0, queryErr("count unread notifications", err)
	}
	return n, nil
}

func (s *Store) MarkNotificationRead(sess *Session, id int64) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, sess.User.ID)
	if err != nil {
		return queryErr(fmt.Sprintf("mark notification %d", id), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(sess *Session) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	_, err := s.db.Exec(`UPDATE notifications SET read = 1 WHERE user_id = ?`, sess.User.ID)
	return queryErr("mark notifications read", err)
}
