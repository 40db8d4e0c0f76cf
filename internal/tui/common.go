package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/opsdeck/internal/fetch"
	"github.com/sadopc/opsdeck/internal/filter"
	"github.com/sadopc/opsdeck/internal/invite"
	"github.com/sadopc/opsdeck/internal/notify"
	"github.com/sadopc/opsdeck/internal/store"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewProjects
	viewTasks
	viewAccounts
	viewPrompts
	viewReports
	viewNotifications
	viewSettings
)

var viewNames = []string{"Dashboard", "Projects", "Tasks", "Accounts", "Prompts", "Reports", "Inbox", "Settings"}

// env is shared by every view. Views hold a pointer so a login is seen
// everywhere at once.
type env struct {
	store      *store.Store
	center     *notify.Center
	inviter    *invite.Service
	session    *store.Session
	sessionTTL time.Duration
	exportDir  string
	now        func() time.Time

	// horizonDays is the configured fallback for the expiring-soon window.
	horizonDays int
	// prefs mirrors the last settings load; views read it while rendering.
	prefs       map[string]string
}

func (e *env) signedIn() bool { return e.session.Valid() }

func (e *env) userID() int64 {
	if e.session == nil {
		return 0
	}
	return e.session.User.ID
}

func (e *env) isAdmin() bool {
	return e.signedIn() && e.session.User.IsAdmin()
}

func (e *env) setting(key, fallback string) string {
	if v, ok := e.prefs[key]; ok && v != "" {
		return v
	}
	return fallback
}

func (e *env) adoptSettings(list []store.Setting) {
	prefs := make(map[string]string, len(list))
	for _, s := range list {
		prefs[s.Key] = s.Value
	}
	e.prefs = prefs
}

// setPref records a value the user just changed, ahead of the next
// settings load.
func (e *env) setPref(key, value string) {
	if e.prefs == nil {
		e.prefs = map[string]string{}
	}
	e.prefs[key] = value
}

// horizon is the expiring-soon window: the stored setting, then the
// configured default.
func (e *env) horizon() filter.Window {
	days := e.horizonDays
	if days <= 0 {
		days = filter.DefaultHorizonDays
	}
	if n, err := strconv.Atoi(e.setting("expiry_horizon_days", "")); err == nil && n > 0 {
		days = n
	}
	return filter.NewWindow(e.now(), days)
}

// --- Messages ---

// mutationMsg reports a finished write. The owning view refreshes its
// loaders when it arrives.
type mutationMsg struct {
	view   viewState
	action string
	err    error
}

type loginMsg struct {
	session *store.Session
	err     error

	// viaToken marks a sign in through an invite or reset token.
	viaToken bool
}

type exportDoneMsg struct {
	path string
	err  error
}

type formDoneMsg struct{}

// mutate runs fn off the UI goroutine.
func mutate(view viewState, action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return mutationMsg{view: view, action: action, err: fn()}
	}
}

// --- Helpers ---

// errorText turns a write failure into something a user can act on.
func errorText(err error) string {
	var ve *store.ValidationError
	switch {
	case errors.Is(err, store.ErrAuthRequired):
		return "Sign in first."
	case errors.Is(err, store.ErrForbidden):
		return "Only admins can do that."
	case errors.Is(err, store.ErrNotFound):
		return "It no longer exists."
	case errors.Is(err, invite.ErrAlreadyRegistered):
		return "That email already has an account."
	case errors.As(err, &ve):
		return ve.Error()
	}
	return err.Error()
}

func toastFor(m mutationMsg) notify.Toast {
	if m.err != nil {
		return notify.Error("Could not "+m.action, errorText(m.err))
	}
	return notify.Info(capitalize(m.action), "Done.")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

// parseDate accepts an empty string as "no date".
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("use YYYY-MM-DD")
	}
	return &t, nil
}

func validDate(s string) error {
	_, err := parseDate(s)
	return err
}

func parseOptionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number")
	}
	return &f, nil
}

func validFloat(s string) error {
	_, err := parseOptionalFloat(s)
	return err
}

// parseRef turns a select value back into an optional id.
func parseRef(s string) *int64 {
	if s == "" || s == filter.NoProject {
		return nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

func refValue(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func clampCursor(cursor, n int) int {
	if cursor >= n {
		cursor = n - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}

// loadState renders what a list shows before it has rows: a spinner line
// while loading, the error panel with a retry hint, or the empty message.
func loadState[T any](l *fetch.Loader[T], empty string) (string, bool) {
	switch {
	case l.Err != nil && !l.Loaded():
		return lipgloss.JoinVertical(lipgloss.Left,
			errorStyle.Render(l.Err.Title),
			mutedStyle.Render(l.Err.Message),
			"",
			mutedStyle.Render("r: retry"),
		), true
	case l.Loading && !l.Loaded():
		return mutedStyle.Render("Loading..."), true
	case empty != "":
		return mutedStyle.Render(empty), true
	}
	return "", false
}

// staleBanner marks data kept from before a failed refresh.
func staleBanner(err *fetch.Error) string {
	if err == nil {
		return ""
	}
	return warningStyle.Render("! "+err.Title+": "+err.Message) + mutedStyle.Render("  (r: retry)")
}

func badge(n int) string {
	if n == 0 {
		return ""
	}
	return badgeStyle.Render(fmt.Sprintf(" %d ", n))
}

func cursorPrefix(selected bool) (string, lipgloss.Style) {
	if selected {
		return "> ", selectedItemStyle
	}
	return "  ", normalItemStyle
}
