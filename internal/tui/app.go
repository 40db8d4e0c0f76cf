package tui

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/sadopc/opsdeck/internal/export"
	"github.com/sadopc/opsdeck/internal/filter"
	"github.com/sadopc/opsdeck/internal/invite"
	"github.com/sadopc/opsdeck/internal/notify"
	"github.com/sadopc/opsdeck/internal/store"
)

// Options wires the App to its collaborators.
type Options struct {
	Store      *store.Store
	Center     *notify.Center
	Inviter    *invite.Service
	Session    *store.Session // optional; nil shows the login form
	SessionTTL time.Duration
	ExportDir  string
	Log        logrus.FieldLogger
	Now        func() time.Time

	// HorizonDays is the expiring-soon window used until a setting
	// overrides it.
	HorizonDays int
}

type exportChoice struct {
	label  string
	kind   export.Kind
	format export.Format
}

var exportChoices = []exportChoice{
	{"Accounts as CSV", export.KindAccounts, export.FormatCSV},
	{"Accounts as JSON", export.KindAccounts, export.FormatJSON},
	{"Tasks as CSV", export.KindTasks, export.FormatCSV},
	{"Tasks as JSON", export.KindTasks, export.FormatJSON},
}

// App is the root Bubble Tea model.
type App struct {
	env    *env
	log    logrus.FieldLogger
	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	login         loginModel
	dashboard     dashboardModel
	projects      projectsModel
	tasks         tasksModel
	accounts      accountsModel
	prompts       promptsModel
	reports       reportsModel
	notifications notificationsModel
	settings      settingsModel

	help help.Model
}

func NewApp(opts Options) App {
	h := help.New()
	h.ShowAll = false

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &env{
		store:      opts.Store,
		center:     opts.Center,
		inviter:    opts.Inviter,
		sessionTTL: opts.SessionTTL,
		exportDir:  opts.ExportDir,
		now:        now,

		horizonDays: opts.HorizonDays,
	}

	a := App{
		env:           e,
		log:           log,
		activeView:    viewDashboard,
		login:         newLoginModel(e),
		dashboard:     newDashboardModel(e),
		projects:      newProjectsModel(e),
		tasks:         newTasksModel(e),
		accounts:      newAccountsModel(e),
		prompts:       newPromptsModel(e),
		reports:       newReportsModel(e),
		notifications: newNotificationsModel(e),
		settings:      newSettingsModel(e),
		help:          h,
	}
	if opts.Session.Valid() {
		e.session = opts.Session
		e.center.SetUser(opts.Session.User.ID)
	}
	return a
}

// startMsg kicks off the first load for a restored session. Loader
// state has to change inside Update, so Init only schedules it.
type startMsg struct{}

// Init loads every view when a session was restored. Without one the
// login form starts on the first message.
func (a App) Init() tea.Cmd {
	if !a.env.signedIn() {
		return nil
	}
	return func() tea.Msg { return startMsg{} }
}

// loadAll points the per-user loaders at the signed-in user and reloads
// everything.
func (a *App) loadAll() tea.Cmd {
	id := a.env.userID()
	return tea.Batch(
		a.dashboard.refresh(),
		a.projects.refresh(),
		a.tasks.refresh(),
		a.accounts.refresh(),
		a.prompts.refresh(),
		a.reports.refresh(),
		a.notifications.signIn(id),
		a.settings.refresh(),
		a.settings.signIn(id),
	)
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startMsg:
		cmd := a.loadAll()
		return a, cmd

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.login.setSize(a.width, contentHeight)
		a.dashboard.setSize(a.width, contentHeight)
		a.projects.setSize(a.width, contentHeight)
		a.tasks.setSize(a.width, contentHeight)
		a.accounts.setSize(a.width, contentHeight)
		a.prompts.setSize(a.width, contentHeight)
		a.reports.setSize(a.width, contentHeight)
		a.notifications.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		if !a.env.signedIn() && a.login.form == nil {
			var cmd tea.Cmd
			a.login, cmd = a.login.start()
			return a, cmd
		}
		return a, nil

	case loginMsg:
		if msg.err != nil {
			a.log.WithError(msg.err).Info("sign in failed")
			var cmd tea.Cmd
			a.login, cmd = a.login.update(msg)
			text := "Check your email and password."
			switch {
			case msg.viaToken && errors.Is(msg.err, store.ErrNotFound):
				text = "That token is invalid or has expired."
			case !errors.Is(msg.err, store.ErrAuthRequired):
				text = errorText(msg.err)
			}
			return a, tea.Batch(cmd, notify.Cmd(a.env.center, notify.Error("Sign in failed", text)))
		}
		return a.signIn(msg.session)

	case mutationMsg:
		if msg.err != nil {
			a.log.WithError(msg.err).WithField("action", msg.action).Warn("write failed")
		}
		cmds := []tea.Cmd{notify.Cmd(a.env.center, toastFor(msg))}
		if errors.Is(msg.err, store.ErrAuthRequired) && a.env.session != nil {
			// session expired under us
			var cmd tea.Cmd
			a, cmd = a.signOut()
			return a, tea.Batch(append(cmds, cmd)...)
		}
		if msg.err == nil {
			cmds = append(cmds, a.refreshAll())
		}
		return a, tea.Batch(cmds...)

	case notify.Msg:
		// the toast was recorded by the time Msg arrives; skip the inbox's
		// own load failures so a broken inbox does not reload forever
		if a.env.signedIn() && !a.notifications.failedWith(msg.Toast) {
			cmd := a.notifications.refresh()
			return a, cmd
		}
		return a, nil

	case exportDoneMsg:
		if msg.err != nil {
			a.log.WithError(msg.err).Warn("export failed")
			return a, notify.Cmd(a.env.center, notify.Error("Export failed", msg.err.Error()))
		}
		a.log.WithField("path", msg.path).Info("exported")
		return a, notify.Cmd(a.env.center, notify.Info("Export complete", "Saved to "+msg.path))

	case tea.KeyMsg:
		if !a.env.signedIn() {
			if msg.String() == "ctrl+c" {
				return a, tea.Quit
			}
			var cmd tea.Cmd
			a.login, cmd = a.login.update(msg)
			return a, cmd
		}
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}
		// A child view capturing input (form or search) sees keys first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Logout):
			return a.signOut()
		case key.Matches(msg, keys.Tab1):
			return a.switchTo(viewDashboard)
		case key.Matches(msg, keys.Tab2):
			return a.switchTo(viewProjects)
		case key.Matches(msg, keys.Tab3):
			return a.switchTo(viewTasks)
		case key.Matches(msg, keys.Tab4):
			return a.switchTo(viewAccounts)
		case key.Matches(msg, keys.Tab5):
			return a.switchTo(viewPrompts)
		case key.Matches(msg, keys.Tab6):
			return a.switchTo(viewReports)
		case key.Matches(msg, keys.Tab7):
			return a.switchTo(viewNotifications)
		case key.Matches(msg, keys.Tab8):
			return a.switchTo(viewSettings)
		case key.Matches(msg, keys.Tab) && a.activeView != viewReports && a.activeView != viewSettings:
			// reports and settings use tab for their own sections
			return a.switchTo((a.activeView + 1) % viewState(len(viewNames)))
		}
		return a.updateActiveView(msg)
	}

	next, cmd, ok := a.receive(msg)
	if ok {
		return next, cmd
	}
	if !a.env.signedIn() {
		var cmd tea.Cmd
		a.login, cmd = a.login.update(msg)
		return a, cmd
	}
	return a.updateActiveView(msg)
}

// receive offers msg to every view's loaders, so results for views that
// are not on screen still land.
func (a App) receive(msg tea.Msg) (App, tea.Cmd, bool) {
	var cmd tea.Cmd
	var ok bool
	if a.dashboard, cmd, ok = a.dashboard.receive(msg); ok {
		return a, cmd, true
	}
	if a.projects, cmd, ok = a.projects.receive(msg); ok {
		return a, cmd, true
	}
	if a.tasks, cmd, ok = a.tasks.receive(msg); ok {
		return a, cmd, true
	}
	if a.accounts, cmd, ok = a.accounts.receive(msg); ok {
		return a, cmd, true
	}
	if a.prompts, cmd, ok = a.prompts.receive(msg); ok {
		return a, cmd, true
	}
	if a.reports, cmd, ok = a.reports.receive(msg); ok {
		return a, cmd, true
	}
	if a.notifications, cmd, ok = a.notifications.receive(msg); ok {
		return a, cmd, true
	}
	if a.settings, cmd, ok = a.settings.receive(msg); ok {
		return a, cmd, true
	}
	return a, nil, false
}

func (a App) signIn(sess *store.Session) (tea.Model, tea.Cmd) {
	a.env.session = sess
	a.env.center.SetUser(sess.User.ID)
	a.log.WithField("user", sess.User.Email).Info("signed in")
	a.activeView = viewDashboard
	load := a.loadAll()
	return a, tea.Batch(load, notify.Cmd(a.env.center, notify.Info("Signed in", "Welcome, "+displayName(sess.User))))
}

func (a App) signOut() (App, tea.Cmd) {
	sess, st := a.env.session, a.env.store
	a.env.session = nil
	a.env.center.SetUser(0)
	a.notifications.signOut()
	a.exportPicking = false
	a.log.Info("signed out")

	var cmd tea.Cmd
	a.login, cmd = a.login.start()
	logout := func() tea.Msg {
		if err := st.Logout(sess); err != nil && !errors.Is(err, store.ErrAuthRequired) {
			return notify.Msg{Toast: notify.Error("Sign out", errorText(err))}
		}
		return nil
	}
	return a, tea.Batch(cmd, logout)
}

func (a App) switchTo(v viewState) (tea.Model, tea.Cmd) {
	a.activeView = v
	cmd := a.refreshCurrentView()
	return a, cmd
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewProjects:
		a.projects, cmd = a.projects.update(msg)
	case viewTasks:
		a.tasks, cmd = a.tasks.update(msg)
	case viewAccounts:
		a.accounts, cmd = a.accounts.update(msg)
	case viewPrompts:
		a.prompts, cmd = a.prompts.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewNotifications:
		a.notifications, cmd = a.notifications.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewProjects:
		return a.projects.formActive()
	case viewTasks:
		return a.tasks.formActive()
	case viewAccounts:
		return a.accounts.formActive()
	case viewPrompts:
		return a.prompts.formActive()
	case viewSettings:
		return a.settings.formActive()
	}
	return false
}

func (a *App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.refresh()
	case viewProjects:
		return a.projects.refresh()
	case viewTasks:
		return a.tasks.refresh()
	case viewAccounts:
		return a.accounts.refresh()
	case viewPrompts:
		return a.prompts.refresh()
	case viewReports:
		return a.reports.refresh()
	case viewNotifications:
		return a.notifications.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

// refreshAll reloads every view after a write. Views share no cache, so
// each refetches what it shows.
func (a *App) refreshAll() tea.Cmd {
	return tea.Batch(
		a.dashboard.refresh(),
		a.projects.refresh(),
		a.tasks.refresh(),
		a.accounts.refresh(),
		a.prompts.refresh(),
		a.reports.refresh(),
		a.notifications.refresh(),
		a.settings.refresh(),
	)
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	if !a.env.signedIn() {
		login := lipgloss.Place(a.width, a.height-1, lipgloss.Center, lipgloss.Center, a.login.view())
		return lipgloss.JoinVertical(lipgloss.Left, login, a.renderStatus())
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewDashboard:
		content = a.dashboard.view()
	case viewProjects:
		content = a.projects.view()
	case viewTasks:
		content = a.tasks.view()
	case viewAccounts:
		content = a.accounts.view()
	case viewPrompts:
		content = a.prompts.view()
	case viewReports:
		content = a.reports.view()
	case viewNotifications:
		content = a.notifications.view()
	case viewSettings:
		content = a.settings.view()
	}

	contentHeight := max(a.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)
	if a.exportPicking {
		content = a.renderExportPicker()
	}
	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		MaxHeight(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if viewState(i) == viewNotifications {
			if n := a.notifications.unread(); n > 0 {
				label += " " + badge(n)
			}
		}
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("opsdeck")
	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderStatus() string {
	t, ok := a.env.center.Latest()
	if !ok {
		return ""
	}
	return toastLine(t)
}

func toastLine(t notify.Toast) string {
	style := successStyle
	if t.Variant == notify.VariantDestructive {
		style = errorStyle
	}
	text := t.Title
	if t.Description != "" {
		text += ": " + t.Description
	}
	return style.Render(" " + text)
}

const historyLines = 5

// renderHistory lists the latest toasts, newest first, under the full help.
func (a App) renderHistory() string {
	recent := a.env.center.Recent()
	if len(recent) == 0 {
		return ""
	}
	rows := []string{footerStyle.Render(subtitleStyle.Render("Recent notices"))}
	for i := len(recent) - 1; i >= 0 && len(rows) <= historyLines; i-- {
		at := mutedStyle.Render(" " + recent[i].At.Local().Format("15:04"))
		rows = append(rows, footerStyle.Render(at+toastLine(recent[i])))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (a App) renderFooter() string {
	left := footerStyle.Render(a.help.View(keys))

	user := ""
	if a.env.signedIn() {
		user = mutedStyle.Render(" " + displayName(a.env.session.User))
		if a.env.isAdmin() {
			user += highlightStyle.Render(" (admin)")
		}
	}
	right := a.renderStatus() + user

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	footer := lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
	if a.help.ShowAll {
		if history := a.renderHistory(); history != "" {
			footer = lipgloss.JoinVertical(lipgloss.Left, footer, history)
		}
	}
	return footer
}

func (a App) renderExportPicker() string {
	rows := []string{titleStyle.Render("Export"), mutedStyle.Render("Passwords are never exported."), ""}
	for i, c := range exportChoices {
		cursor, style := cursorPrefix(i == a.exportCursor)
		rows = append(rows, style.Render(cursor+c.label))
	}
	rows = append(rows, "", mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportChoices)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(exportChoices[a.exportCursor])
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(c exportChoice) tea.Cmd {
	st, path := a.env.store, export.FileName(a.env.exportDir, c.kind, c.format, a.env.now())
	return func() tea.Msg {
		plist, err := st.ListProjects()
		if err != nil {
			return exportDoneMsg{err: err}
		}
		projects := filter.ProjectNames(plist)

		switch c.kind {
		case export.KindAccounts:
			accounts, err := st.ListAccounts()
			if err != nil {
				return exportDoneMsg{err: err}
			}
			if c.format == export.FormatCSV {
				err = export.AccountsToCSV(accounts, projects, path)
			} else {
				err = export.AccountsToJSON(accounts, projects, path)
			}
			return exportDoneMsg{path: path, err: err}

		default:
			tasks, err := st.ListTasks()
			if err != nil {
				return exportDoneMsg{err: err}
			}
			ulist, err := st.ListUsers()
			if err != nil {
				return exportDoneMsg{err: err}
			}
			users := make(map[int64]string, len(ulist))
			for _, u := range ulist {
				users[u.ID] = displayName(u)
			}
			if c.format == export.FormatCSV {
				err = export.TasksToCSV(tasks, projects, users, path)
			} else {
				err = export.TasksToJSON(tasks, projects, users, path)
			}
			return exportDoneMsg{path: path, err: err}
		}
	}
}
