package invite

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sadopc/opsdeck/internal/store"
)

type fakeMailer struct {
	sent []Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func setup(t *testing.T) (*store.Store, *store.Session, *store.Session) {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	if _, err := s.Register("admin@example.com", "secret-admin", "Ada Admin", store.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Register("user@example.com", "secret-user", "Uma User", store.RoleUser); err != nil {
		t.Fatal(err)
	}
	admin, err := s.Login("admin@example.com", "secret-admin", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	user, err := s.Login("user@example.com", "secret-user", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return s, admin, user
}

func lastInvitation(t *testing.T, s *store.Store) store.Invitation {
	t.Helper()
	list, err := s.ListInvitations()
	if err != nil || len(list) == 0 {
		t.Fatalf("ListInvitations: %v (%d)", err, len(list))
	}
	return list[0]
}

func TestInviteProvisionsUserAndMailsToken(t *testing.T) {
	s, admin, _ := setup(t)
	mailer := &fakeMailer{}
	svc := NewService(s, mailer, time.Hour, quietLogger())

	user, err := svc.Invite(context.Background(), admin, "new@example.com", store.RoleUser)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if user.Email != "new@example.com" || user.Role != store.RoleUser {
		t.Fatalf("unexpected user %+v", user)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].To != "new@example.com" {
		t.Fatalf("unexpected mail %+v", mailer.sent)
	}
	if inv := lastInvitation(t, s); inv.Status != "sent" {
		t.Fatalf("invitation status = %q", inv.Status)
	}

	// The mailed token lets the invitee choose a password.
	if err := s.ResetPassword(mailer.sent[0].ResetToken, "chosen-pass"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := s.Login("new@example.com", "chosen-pass", time.Hour); err != nil {
		t.Fatalf("login after reset: %v", err)
	}
}

func TestInviteRequiresAdmin(t *testing.T) {
	s, _, user := setup(t)
	mailer := &fakeMailer{}
	svc := NewService(s, mailer, time.Hour, quietLogger())

	if _, err := svc.Invite(context.Background(), user, "x@example.com", store.RoleUser); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Invite(context.Background(), nil, "x@example.com", store.RoleUser); !errors.Is(err, store.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatal("no mail expected")
	}
}

func TestInviteExistingUserMarksFailed(t *testing.T) {
	s, admin, _ := setup(t)
	svc := NewService(s, &fakeMailer{}, time.Hour, quietLogger())

	_, err := svc.Invite(context.Background(), admin, "user@example.com", store.RoleUser)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
	if inv := lastInvitation(t, s); inv.Status != "failed" {
		t.Fatalf("invitation status = %q", inv.Status)
	}
}

func TestInviteMailFailure(t *testing.T) {
	s, admin, _ := setup(t)
	svc := NewService(s, &fakeMailer{err: errors.New("smtp down")}, time.Hour, quietLogger())

	if _, err := svc.Invite(context.Background(), admin, "late@example.com", store.RoleUser); err == nil {
		t.Fatal("expected mail error")
	}
	if inv := lastInvitation(t, s); inv.Status != "failed" {
		t.Fatalf("invitation status = %q", inv.Status)
	}
}

// ============================================================
// HTTP
// ============================================================

func newRouter(t *testing.T) (*gin.Engine, *store.Session, *store.Session) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, admin, user := setup(t)
	log := quietLogger()
	h := NewHandler(NewService(s, &fakeMailer{}, time.Hour, log), s, log)
	return NewRouter(h, []string{"https://deck.example.com"}), admin, user
}

func post(router http.Handler, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, "/invite", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestHandlerInvite(t *testing.T) {
	router, admin, user := newRouter(t)

	tests := []struct {
		name   string
		token  string
		body   string
		status int
	}{
		{"no token", "", `{"email":"a@example.com"}`, http.StatusUnauthorized},
		{"bad token", "nope", `{"email":"a@example.com"}`, http.StatusUnauthorized},
		{"not admin", user.Token, `{"email":"a@example.com"}`, http.StatusForbidden},
		{"malformed body", admin.Token, `{`, http.StatusBadRequest},
		{"missing email", admin.Token, `{"role":"user"}`, http.StatusBadRequest},
		{"bad role", admin.Token, `{"email":"a@example.com","role":"owner"}`, http.StatusBadRequest},
		{"existing user", admin.Token, `{"email":"user@example.com"}`, http.StatusConflict},
		{"ok", admin.Token, `{"email":"b@example.com","role":"admin"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := post(router, tt.token, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.status != http.StatusOK {
				if out["error"] == nil || out["details"] == nil {
					t.Fatalf("expected error and details, got %v", out)
				}
				return
			}
			if out["success"] != true {
				t.Fatalf("expected success, got %v", out)
			}
			u, _ := out["user"].(map[string]any)
			if u["email"] != "b@example.com" || u["role"] != "admin" {
				t.Fatalf("unexpected user %v", u)
			}
		})
	}
}

func TestRouterAnswersPreflight(t *testing.T) {
	router, _, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/invite", nil)
	req.Header.Set("Origin", "https://deck.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://deck.example.com" {
		t.Fatalf("allow origin = %q", got)
	}
}
