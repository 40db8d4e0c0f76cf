package store

import (
	"errors"
	"strings"
)

// CreateInvitation records a pending invitation. Only admins may invite.
func (s *Store) CreateInvitation(sess *Session, email string, role Role) (*Invitation, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, &ValidationError{Field: "email", Err: errors.New("not an email address")}
	}
	if role != RoleUser && role != RoleAdmin {
		return nil, &ValidationError{Field: "role", Err: errors.New("must be user or admin")}
	}
	ts := now()
	res, err := s.db.Exec(
		`INSERT INTO invitations (email, role, invited_by, created_at) VALUES (?, ?, ?, ?)`,
		email, string(role), sess.User.ID, ts,
	)
	if err != nil {
		return nil, queryErr("insert invitation", err)
	}
	id, _ := res.LastInsertId()
	return &Invitation{
		ID:        id,
		Email:     email,
		Role:      role,
		InvitedBy: sess.User.ID,
		Status:    "pending",
		CreatedAt: parseTime(ts),
	}, nil
}

// SetInvitationStatus moves an invitation to sent or failed.
func (s *Store) SetInvitationStatus(id int64, status string) error {
	_, err := s.db.Exec(`UPDATE invitations SET status = ? WHERE id = ?`, status, id)
	return queryErr("update invitation", err)
}

func (s *Store) ListInvitations() ([]Invitation, error) {
	rows, err := s.db.Query(`SELECT id, email, role, invited_by, status, created_at FROM invitations ORDER BY id DESC`)
	if err != nil {
		return nil, queryErr("list invitations", err)
	}
	defer rows.Close()

	var out []Invitation
	for rows.Next() {
		var inv Invitation
		var role, createdAt string
		if err := rows.Scan(&inv.ID, &inv.Email, &role, &inv.InvitedBy, &inv.Status, &createdAt); err != nil {
			return nil, queryErr("scan invitation", err)
		}
		inv.Role = Role(role)
		inv.CreatedAt = parseTime(createdAt)
		out = append(out, inv)
	}
	return out, rows.Err()
}
