package tui

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/opsdeck/internal/fetch"
	"github.com/sadopc/opsdeck/internal/store"
)

const inviteTimeout = 15 * time.Second

type settingsSection int

const (
	sectionPreferences settingsSection = iota
	sectionProfile
	sectionTeam
)

var sectionNames = []string{"Preferences", "Profile", "Team"}

type settingsModel struct {
	env    *env
	width  int
	height int

	section     settingsSection
	settings    fetch.Loader[[]store.Setting]
	profile     fetch.Loader[*store.User]
	users       fetch.Loader[[]store.User]
	invitations fetch.Loader[[]store.Invitation]

	formType string // "preferences", "profile", "invite"
	form     *huh.Form

	// Form values as pointers (survive value copies)
	fields *settingsForm
}

type settingsForm struct {
	horizonDays, taskPriority, projectStatus string
	showPasswords                            bool

	fullName, avatarURL string

	inviteEmail, inviteRole string
}

func newSettingsModel(e *env) settingsModel {
	return settingsModel{
		env:         e,
		settings:    fetch.New("settings", e.store.GetAllSettings, e.center),
		profile:     fetch.New[*store.User]("profile", nil, e.center),
		users:       fetch.New("users", e.store.ListUsers, e.center),
		invitations: fetch.New("invitations", e.store.ListInvitations, e.center),
		fields:      &settingsForm{},
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s settingsModel) formActive() bool { return s.form != nil }

func (s *settingsModel) refresh() tea.Cmd {
	return tea.Batch(s.settings.Refresh(), s.profile.Refresh(), s.users.Refresh(), s.invitations.Refresh())
}

// signIn points the profile loader at the signed-in user.
func (s *settingsModel) signIn(userID int64) tea.Cmd {
	st := s.env.store
	return s.profile.Retarget(func() (*store.User, error) { return st.GetUser(userID) })
}

func (s settingsModel) receive(msg tea.Msg) (settingsModel, tea.Cmd, bool) {
	if ok, cmd := s.settings.Update(msg); ok {
		if s.settings.Err == nil {
			s.env.adoptSettings(s.settings.Data)
		}
		return s, cmd, true
	}
	if ok, cmd := s.profile.Update(msg); ok {
		// keep the header name current after a profile edit
		if u := s.profile.Data; u != nil && s.env.session != nil && s.env.session.User.ID == u.ID {
			s.env.session.User = *u
		}
		return s, cmd, true
	}
	if ok, cmd := s.users.Update(msg); ok {
		return s, cmd, true
	}
	if ok, cmd := s.invitations.Update(msg); ok {
		return s, cmd, true
	}
	return s, nil, false
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.form != nil {
		return s.updateForm(msg)
	}
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return s, nil
	}

	switch {
	case key.Matches(km, keys.Tab):
		s.section = (s.section + 1) % settingsSection(len(sectionNames))
	case key.Matches(km, keys.Refresh):
		cmd := s.refresh()
		return s, cmd
	case key.Matches(km, keys.Enter), key.Matches(km, keys.Edit):
		switch s.section {
		case sectionPreferences:
			return s.showPreferencesForm()
		case sectionProfile:
			return s.showProfileForm()
		}
	case key.Matches(km, keys.Invite):
		if s.section == sectionTeam && s.env.isAdmin() {
			return s.showInviteForm()
		}
	}
	return s, nil
}

func (s settingsModel) value(k, fallback string) string {
	for _, setting := range s.settings.Data {
		if setting.Key == k {
			return setting.Value
		}
	}
	return fallback
}

func (s settingsModel) showPreferencesForm() (settingsModel, tea.Cmd) {
	f := s.fields
	f.horizonDays = strconv.Itoa(s.env.horizon().Days)
	f.taskPriority = s.value("default_task_priority", string(store.PriorityMedium))
	f.projectStatus = s.value("default_project_status", string(store.ProjectActive))
	f.showPasswords = s.value("show_passwords", "false") == "true"

	s.formType = "preferences"
	s.form = newForm(
		huh.NewGroup(
			huh.NewInput().Title("Expiring-soon window (days)").Value(&f.horizonDays).Validate(validDays),
			huh.NewSelect[string]().Title("Default task priority").Options(stringOptions(store.TaskPriorities)...).Value(&f.taskPriority),
			huh.NewSelect[string]().Title("Default project status").Options(stringOptions(store.ProjectStatuses)...).Value(&f.projectStatus),
			huh.NewConfirm().Title("Show account passwords").Value(&f.showPasswords),
		).Title("Preferences"),
	)
	return s, s.form.Init()
}

func validDays(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number of days")
	}
	return nil
}

func (s settingsModel) showProfileForm() (settingsModel, tea.Cmd) {
	if !s.env.signedIn() {
		return s, nil
	}
	f := s.fields
	u := s.env.session.User
	f.fullName, f.avatarURL = u.FullName, u.AvatarURL

	s.formType = "profile"
	s.form = newForm(
		huh.NewGroup(
			huh.NewInput().Title("Full name").Value(&f.fullName),
			huh.NewInput().Title("Avatar URL").Value(&f.avatarURL),
		).Title("Profile"),
	)
	return s, s.form.Init()
}

func (s settingsModel) showInviteForm() (settingsModel, tea.Cmd) {
	f := s.fields
	f.inviteEmail, f.inviteRole = "", string(store.RoleUser)

	s.formType = "invite"
	s.form = newForm(
		huh.NewGroup(
			huh.NewInput().Title("Email").Value(&f.inviteEmail).Validate(validEmail),
			huh.NewSelect[string]().Title("Role").Options(
				huh.NewOption("User", string(store.RoleUser)),
				huh.NewOption("Admin", string(store.RoleAdmin)),
			).Value(&f.inviteRole),
		).Title("Invite a teammate"),
	)
	return s, s.form.Init()
}

func validEmail(v string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(v)); err != nil {
		return fmt.Errorf("enter a valid email")
	}
	return nil
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	form, cmd, state := stepForm(s.form, msg)
	s.form = form
	if state != formSubmitted {
		return s, cmd
	}
	s.form = nil

	sess, st, f := s.env.session, s.env.store, *s.fields
	switch s.formType {
	case "preferences":
		values := []store.Setting{
			{Key: "expiry_horizon_days", Value: strings.TrimSpace(f.horizonDays)},
			{Key: "default_task_priority", Value: f.taskPriority},
			{Key: "default_project_status", Value: f.projectStatus},
			{Key: "show_passwords", Value: strconv.FormatBool(f.showPasswords)},
		}
		return s, mutate(viewSettings, "save settings", func() error {
			for _, v := range values {
				if err := st.SetSetting(sess, v.Key, v.Value); err != nil {
					return err
				}
			}
			return nil
		})
	case "profile":
		return s, mutate(viewSettings, "update profile", func() error {
			return st.UpdateProfile(sess, strings.TrimSpace(f.fullName), strings.TrimSpace(f.avatarURL))
		})
	case "invite":
		inviter := s.env.inviter
		email, role := strings.TrimSpace(f.inviteEmail), store.Role(f.inviteRole)
		return s, mutate(viewSettings, "send invitation", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), inviteTimeout)
			defer cancel()
			_, err := inviter.Invite(ctx, sess, email, role)
			return err
		})
	}
	return s, nil
}

func (s settingsModel) view() string {
	w := s.width - 4
	if s.form != nil {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Settings"), "", s.form.View()))
	}

	var tabs []string
	for i, name := range sectionNames {
		if settingsSection(i) == s.section {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom, titleStyle.Render("Settings"), "  ", lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...))

	var body, hint string
	switch s.section {
	case sectionPreferences:
		body, hint = s.renderPreferences(), "enter: edit  tab: section"
	case sectionProfile:
		body, hint = s.renderProfile(), "enter: edit  tab: section"
	case sectionTeam:
		body, hint = s.renderTeam(), "tab: section"
		if s.env.isAdmin() {
			hint = "i: invite  " + hint
		}
	}
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", mutedStyle.Render("  "+hint)))
}

var settingLabels = map[string]string{
	"expiry_horizon_days":    "Expiring-soon window",
	"default_task_priority":  "Default task priority",
	"default_project_status": "Default project status",
	"show_passwords":         "Show passwords",
}

func (s settingsModel) renderPreferences() string {
	if st, ok := loadState(&s.settings, emptyIf(len(s.settings.Data) == 0, "No settings stored")); ok {
		return st
	}
	var rows []string
	if s.value("expiry_horizon_days", "") == "" {
		rows = append(rows, fmt.Sprintf("  %s %s", lipgloss.NewStyle().Width(26).Render(settingLabels["expiry_horizon_days"]),
			highlightStyle.Render(fmt.Sprintf("%d days", s.env.horizon().Days))+mutedStyle.Render(" (default)")))
	}
	for _, setting := range s.settings.Data {
		label := settingLabels[setting.Key]
		if label == "" {
			label = setting.Key
		}
		value := setting.Value
		if setting.Key == "expiry_horizon_days" {
			value += " days"
		}
		rows = append(rows, fmt.Sprintf("  %s %s", lipgloss.NewStyle().Width(26).Render(label), highlightStyle.Render(value)))
	}
	return strings.Join(rows, "\n")
}

func (s settingsModel) renderProfile() string {
	if !s.env.signedIn() {
		return mutedStyle.Render("  Not signed in")
	}
	u := s.env.session.User
	field := func(label, value string) string {
		if value == "" {
			value = "-"
		}
		return fmt.Sprintf("  %s %s", lipgloss.NewStyle().Width(14).Render(label), value)
	}
	return strings.Join([]string{
		field("Name", u.FullName),
		field("Email", u.Email),
		field("Role", string(u.Role)),
		field("Avatar", u.AvatarURL),
		field("Session ends", s.env.session.ExpiresAt.Local().Format("Jan 02 15:04")),
	}, "\n")
}

func (s settingsModel) renderTeam() string {
	rows := []string{subtitleStyle.Render("Members")}
	if st, ok := loadState(&s.users, emptyIf(len(s.users.Data) == 0, "No members")); ok {
		rows = append(rows, st)
	} else {
		for _, u := range s.users.Data {
			role := mutedStyle.Render(string(u.Role))
			if u.IsAdmin() {
				role = highlightStyle.Render(string(u.Role))
			}
			rows = append(rows, fmt.Sprintf("  %-24s %-30s %s", truncate(displayName(u), 24), truncate(u.Email, 30), role))
		}
	}

	rows = append(rows, "", subtitleStyle.Render("Invitations"))
	if st, ok := loadState(&s.invitations, emptyIf(len(s.invitations.Data) == 0, "No invitations sent")); ok {
		rows = append(rows, st)
	} else {
		for _, inv := range s.invitations.Data {
			status := mutedStyle.Render(inv.Status)
			switch inv.Status {
			case "sent":
				status = successStyle.Render(inv.Status)
			case "failed":
				status = errorStyle.Render(inv.Status)
			}
			rows = append(rows, fmt.Sprintf("  %-30s %-6s %s  %s",
				truncate(inv.Email, 30), inv.Role, inv.CreatedAt.Local().Format("Jan 02"), status))
		}
	}
	return strings.Join(rows, "\n")
}
