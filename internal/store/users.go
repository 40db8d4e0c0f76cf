package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Session is the capability write accessors require. It is handed out by
// Login and passed explicitly; the store keeps no notion of a current user.
type Session struct {
	Token     string
	User      User
	ExpiresAt time.Time
}

// Valid reports whether s is non-nil and not expired.
func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && time.Now().Before(s.ExpiresAt)
}

func requireSession(s *Session) error {
	if !s.Valid() {
		return ErrAuthRequired
	}
	return nil
}

func requireAdmin(s *Session) error {
	if err := requireSession(s); err != nil {
		return err
	}
	if !s.User.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

const userColumns = `id, email, full_name, avatar_url, role, created_at`

func scanUser(row interface{ Scan(...any) error }, u *User) error {
	var role, createdAt string
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.AvatarURL, &role, &createdAt); err != nil {
		return err
	}
	u.Role = Role(role)
	u.CreatedAt = parseTime(createdAt)
	return nil
}

// Register creates a user with a bcrypt-hashed password.
func (s *Store) Register(email, password, fullName string, role Role) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &ValidationError{Field: "email", Err: errors.New("required")}
	}
	if len(password) < 6 {
		return nil, &ValidationError{Field: "password", Err: errors.New("too short")}
	}
	if role == "" {
		role = RoleUser
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO users (email, password_hash, full_name, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		email, string(hash), strings.TrimSpace(fullName), string(role), now(),
	)
	if err != nil {
		return nil, queryErr("insert user", err)
	}
	id, _ := res.LastInsertId()
	return s.GetUser(id)
}

func (s *Store) GetUser(id int64) (*User, error) {
	u := &User{}
	err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id), u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, queryErr(fmt.Sprintf("get user %d", id), err)
	}
	return u, nil
}

func (s *Store) UserByEmail(email string) (*User, error) {
	u := &User{}
	err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email)), u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, queryErr("get user by email", err)
	}
	return u, nil
}

func (s *Store) ListUsers() ([]User, error) {
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY full_name, email`)
	if err != nil {
		return nil, queryErr("list users", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := scanUser(rows, &u); err != nil {
			return nil, queryErr("scan user", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateProfile changes the signed-in user's display fields.
func (s *Store) UpdateProfile(sess *Session, fullName, avatarURL string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	_, err := s.db.Exec(`UPDATE users SET full_name = ?, avatar_url = ? WHERE id = ?`,
		strings.TrimSpace(fullName), strings.TrimSpace(avatarURL), sess.User.ID)
	return queryErr("update profile", err)
}

// Login verifies the password and opens a session valid for ttl.
func (s *Store) Login(email, password string, ttl time.Duration) (*Session, error) {
	var hash string
	var id int64
	err := s.db.QueryRow(`SELECT id, password_hash FROM users WHERE email = ?`, strings.TrimSpace(email)).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAuthRequired
	}
	if err != nil {
		return nil, queryErr("login", err)
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrAuthRequired
	}
	return s.CreateSession(id, ttl)
}

func (s *Store) CreateSession(userID int64, ttl time.Duration) (*Session, error) {
	token, err := randomToken(32)
	if err != nil {
		return nil, err
	}
	u, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	expires := time.Now().Add(ttl).UTC().Truncate(time.Second)
	_, err = s.db.Exec(`INSERT INTO sessions (user_id, token, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		userID, token, now(), expires.Format(time.RFC3339))
	if err != nil {
		return nil, queryErr("create session", err)
	}
	return &Session{Token: token, User: *u, ExpiresAt: expires}, nil
}

// SessionByToken resolves a bearer token. Expired or unknown tokens yield
// ErrAuthRequired.
func (s *Store) SessionByToken(token string) (*Session, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	var userID int64
	var expiresAt string
	err := s.db.QueryRow(`SELECT user_id, expires_at FROM sessions WHERE token = ?`, token).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAuthRequired
	}
	if err != nil {
		return nil, queryErr("get session", err)
	}
	sess := &Session{Token: token, ExpiresAt: parseTime(expiresAt)}
	if !sess.Valid() {
		return nil, ErrAuthRequired
	}
	u, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	sess.User = *u
	return sess, nil
}

func (s *Store) Logout(sess *Session) error {
	if sess == nil {
		return nil
	}
	_, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, sess.Token)
	return queryErr("delete session", err)
}

// CreatePasswordReset stores a one-time token that lets the user pick a
// new password.
func (s *Store) CreatePasswordReset(userID int64, ttl time.Duration) (string, error) {
	token, err := randomToken(24)
	if err != nil {
		return "", err
	}
	expires := time.Now().Add(ttl).UTC().Format(time.RFC3339)
	_, err = s.db.Exec(`INSERT INTO password_resets (token, user_id, expires_at) VALUES (?, ?, ?)`, token, userID, expires)
	if err != nil {
		return "", queryErr("create password reset", err)
	}
	return token, nil
}

// ResetPassword consumes a reset token and replaces the password.
func (s *Store) ResetPassword(token, password string) error {
	_, err := s.consumeReset(token, password)
	return err
}

// AcceptReset consumes a reset token, such as the one mailed with an
// invitation, sets the password and opens a session for its owner.
func (s *Store) AcceptReset(token, password string, ttl time.Duration) (*Session, error) {
	userID, err := s.consumeReset(token, password)
	if err != nil {
		return nil, err
	}
	return s.CreateSession(userID, ttl)
}

func (s *Store) consumeReset(token, password string) (int64, error) {
	if len(password) < 6 {
		return 0, &ValidationError{Field: "password", Err: errors.New("too short")}
	}
	var userID int64
	var expiresAt string
	err := s.db.QueryRow(`SELECT user_id, expires_at FROM password_resets WHERE token = ?`, strings.TrimSpace(token)).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, queryErr("get password reset", err)
	}
	if _, err := s.db.Exec(`DELETE FROM password_resets WHERE token = ?`, strings.TrimSpace(token)); err != nil {
		return 0, queryErr("delete password reset", err)
	}
	if time.Now().After(parseTime(expiresAt)) {
		return 0, ErrNotFound
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, string(hash), userID); err != nil {
		return 0, queryErr("update password", err)
	}
	return userID, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
