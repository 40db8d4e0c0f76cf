package tui

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

type loginModel struct {
	env    *env
	width  int
	height int

	form    *huh.Form
	pending bool

	// viaToken switches the form to choosing a password with a mailed token.
	viaToken bool

	// Form field pointers (survive value copies)
	email    *string
	password *string
	token    *string
	confirm  *string
}

func newLoginModel(e *env) loginModel {
	email, password, token, confirm := "", "", "", ""
	return loginModel{env: e, email: &email, password: &password, token: &token, confirm: &confirm}
}

func (l *loginModel) setSize(w, h int) {
	l.width = w
	l.height = h
}

func (l loginModel) start() (loginModel, tea.Cmd) {
	*l.password, *l.confirm = "", ""
	l.pending = false
	if l.viaToken {
		l.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().Title("Token").Description("From your invitation email").Value(l.token),
				huh.NewInput().Title("New password").EchoMode(huh.EchoModePassword).Value(l.password),
				huh.NewInput().Title("Repeat password").EchoMode(huh.EchoModePassword).Value(l.confirm).
					Validate(func(v string) error {
						if v != *l.password {
							return errors.New("passwords do not match")
						}
						return nil
					}),
			).Title("Choose a password"),
		).WithShowHelp(true).WithShowErrors(true)
	} else {
		l.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().Title("Email").Value(l.email),
				huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(l.password),
			).Title("Sign in"),
		).WithShowHelp(true).WithShowErrors(true)
	}
	cmd := l.form.Init()
	return l, cmd
}

func (l loginModel) submit() tea.Cmd {
	st, ttl := l.env.store, l.env.sessionTTL
	password := *l.password
	if l.viaToken {
		token := *l.token
		return func() tea.Msg {
			sess, err := st.AcceptReset(token, password, ttl)
			return loginMsg{session: sess, err: err, viaToken: true}
		}
	}
	email := *l.email
	return func() tea.Msg {
		sess, err := st.Login(email, password, ttl)
		return loginMsg{session: sess, err: err}
	}
}

func (l loginModel) update(msg tea.Msg) (loginModel, tea.Cmd) {
	if l.form == nil {
		return l.start()
	}
	if _, ok := msg.(loginMsg); ok {
		// failed attempt; App handles success
		return l.start()
	}
	if l.pending {
		return l, nil
	}
	if km, ok := msg.(tea.KeyMsg); ok && key.Matches(km, keys.Redeem) {
		l.viaToken = !l.viaToken
		return l.start()
	}

	form, cmd := l.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		l.form = f
	}
	switch l.form.State {
	case huh.StateCompleted:
		l.pending = true
		return l, l.submit()
	case huh.StateAborted:
		return l.start()
	}
	return l, cmd
}

func (l loginModel) view() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("opsdeck")
	body := mutedStyle.Render("Starting...")
	if l.form != nil {
		body = l.form.View()
	}
	if l.pending {
		body = mutedStyle.Render("Signing in...")
	}
	hint := "ctrl+t: use an invite token"
	if l.viaToken {
		hint = "ctrl+t: sign in with a password"
	}
	w := min(l.width-4, 60)
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", mutedStyle.Render(hint)))
}
