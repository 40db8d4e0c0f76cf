package tui

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sadopc/opsdeck/internal/fetch"
	"github.com/sadopc/opsdeck/internal/filter"
	"github.com/sadopc/opsdeck/internal/invite"
	"github.com/sadopc/opsdeck/internal/notify"
	"github.com/sadopc/opsdeck/internal/store"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "correct-horse"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestCenter(s *store.Store) *notify.Center {
	log, _ := test.NewNullLogger()
	return notify.NewCenter(notify.RecorderFunc(func(userID int64, title, description, variant string) error {
		_, err := s.AddNotification(userID, title, description, variant)
		return err
	}), log, 20)
}

// newTestApp returns an App over a fresh store with an admin account.
// The App is not signed in.
func newTestApp(t *testing.T) (App, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	if _, err := s.Register(adminEmail, adminPassword, "Ada Admin", store.RoleAdmin); err != nil {
		t.Fatalf("register: %v", err)
	}
	log, _ := test.NewNullLogger()
	app := NewApp(Options{
		Store:      s,
		Center:     newTestCenter(s),
		SessionTTL: time.Hour,
		ExportDir:  t.TempDir(),
		Log:        log,
	})
	app.width, app.height = 120, 40
	return app, s
}

func signIn(t *testing.T, app App, s *store.Store) App {
	t.Helper()
	sess, err := s.Login(adminEmail, adminPassword, time.Hour)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return pump(t, app, func() tea.Msg { return loginMsg{session: sess} })
}

// runCmd executes cmd, giving up on commands that wait (cursor blinks,
// ticks).
func runCmd(cmd tea.Cmd) (tea.Msg, bool) {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg, true
	case <-time.After(250 * time.Millisecond):
		return nil, false
	}
}

// pump runs cmd and every command it leads to through app.Update.
func pump(t *testing.T, app App, cmd tea.Cmd) App {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0 && steps < 200; steps++ {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg, ok := runCmd(next)
		if !ok || msg == nil {
			continue
		}
		switch msg := msg.(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
			continue
		case tea.QuitMsg:
			continue
		}
		model, c := app.Update(msg)
		app = model.(App)
		queue = append(queue, c)
	}
	return app
}

// submit marks f completed so the next update takes the submit path.
func submit(f *huh.Form) {
	f.State = huh.StateCompleted
}

func press(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func latestToast(app App) notify.Toast {
	t, _ := app.env.center.Latest()
	return t
}

func mustMutation(t *testing.T, cmd tea.Cmd) mutationMsg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a write command")
	}
	msg, ok := cmd().(mutationMsg)
	if !ok {
		t.Fatal("command did not produce a mutationMsg")
	}
	return msg
}

// ============================================================
// View state
// ============================================================

func TestViewNames(t *testing.T) {
	if len(viewNames) != int(viewSettings)+1 {
		t.Fatalf("expected %d view names, got %d", viewSettings+1, len(viewNames))
	}
	if viewNames[viewNotifications] != "Inbox" {
		t.Fatalf("unexpected name for notifications: %q", viewNames[viewNotifications])
	}
}

// ============================================================
// App model
// ============================================================

func TestNewAppWithoutSession(t *testing.T) {
	app, _ := newTestApp(t)

	if app.env.signedIn() {
		t.Fatal("app should start signed out")
	}
	if app.Init() != nil {
		t.Fatal("Init should not load anything without a session")
	}
	model, _ := app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	app = model.(App)
	if app.login.form == nil {
		t.Fatal("login form should start on the first resize")
	}
}

func TestAppLoadingState(t *testing.T) {
	app, _ := newTestApp(t)
	app.width = 0
	if out := app.View(); out != "Loading..." {
		t.Fatalf("expected 'Loading...', got %q", out)
	}
}

func TestAppSignInLoadsViews(t *testing.T) {
	app, s := newTestApp(t)
	if _, err := s.CreateProject(mustSession(t, s), "Website", "", store.ProjectActive); err != nil {
		t.Fatal(err)
	}

	app = signIn(t, app, s)

	if !app.env.signedIn() {
		t.Fatal("should be signed in")
	}
	if !app.dashboard.projects.Loaded() || len(app.dashboard.projects.Data) != 1 {
		t.Fatalf("dashboard projects not loaded: %+v", app.dashboard.projects.Data)
	}
	if !app.projects.projects.Loaded() {
		t.Fatal("projects view should load even while not on screen")
	}
	if u := app.settings.profile.Data; u == nil || u.Email != adminEmail {
		t.Fatalf("profile not loaded: %+v", u)
	}
	// the welcome toast is recorded and shows up in the inbox
	if app.notifications.unread() != 1 {
		t.Fatalf("expected 1 unread notification, got %d", app.notifications.unread())
	}
	if latestToast(app).Title != "Signed in" {
		t.Fatalf("unexpected status %q", latestToast(app).Title)
	}
}

func TestAppRestoredSession(t *testing.T) {
	app, s := newTestApp(t)
	sess := mustSession(t, s)
	log, _ := test.NewNullLogger()
	app = NewApp(Options{Store: s, Center: newTestCenter(s), Session: sess, Log: log})
	app.width, app.height = 120, 40

	cmd := app.Init()
	if cmd == nil {
		t.Fatal("Init should schedule the first load")
	}
	app = pump(t, app, cmd)
	if !app.tasks.tasks.Loaded() {
		t.Fatal("tasks should be loaded after Init")
	}
}

func TestAppFailedSignIn(t *testing.T) {
	app, s := newTestApp(t)
	_, err := s.Login(adminEmail, "wrong", time.Hour)
	if !errors.Is(err, store.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}

	app = pump(t, app, func() tea.Msg { return loginMsg{err: err} })
	if app.env.signedIn() {
		t.Fatal("failed login must not sign in")
	}
	if latestToast(app).Variant != notify.VariantDestructive || latestToast(app).Description != "Check your email and password." {
		t.Fatalf("unexpected status %+v", latestToast(app))
	}
}

type mailbox struct{ sent []invite.Message }

func (m *mailbox) Send(_ context.Context, msg invite.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

func TestAppSignInWithInviteToken(t *testing.T) {
	app, s := newTestApp(t)
	log, _ := test.NewNullLogger()
	box := &mailbox{}
	svc := invite.NewService(s, box, time.Hour, log)
	if _, err := svc.Invite(context.Background(), mustSession(t, s), "new@example.com", store.RoleUser); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if len(box.sent) != 1 || box.sent[0].ResetToken == "" {
		t.Fatalf("expected one mailed token, got %+v", box.sent)
	}

	app.login, _ = app.login.start()
	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	app = model.(App)
	if !app.login.viaToken {
		t.Fatal("ctrl+t should switch to the token form")
	}

	*app.login.token = box.sent[0].ResetToken
	*app.login.password, *app.login.confirm = "chosen-pass", "chosen-pass"
	app = pump(t, app, app.login.submit())

	if !app.env.signedIn() || app.env.session.User.Email != "new@example.com" {
		t.Fatalf("invitee should be signed in, session %+v", app.env.session)
	}
	if _, err := s.Login("new@example.com", "chosen-pass", time.Hour); err != nil {
		t.Fatalf("chosen password should work for later sign ins: %v", err)
	}
}

func TestAppSignInWithSpentToken(t *testing.T) {
	app, _ := newTestApp(t)
	app.login, _ = app.login.start()
	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	app = model.(App)

	*app.login.token = "no-such-token"
	*app.login.password, *app.login.confirm = "chosen-pass", "chosen-pass"
	app = pump(t, app, app.login.submit())

	if app.env.signedIn() {
		t.Fatal("an unknown token must not sign in")
	}
	if latestToast(app).Description != "That token is invalid or has expired." {
		t.Fatalf("unexpected status %+v", latestToast(app))
	}
	if !app.login.viaToken || app.login.form == nil {
		t.Fatal("the token form should stay open after a failure")
	}
}

func TestAppTabSwitching(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)

	tests := []struct {
		key  string
		want viewState
	}{
		{"2", viewProjects},
		{"3", viewTasks},
		{"4", viewAccounts},
		{"5", viewPrompts},
		{"6", viewReports},
		{"7", viewNotifications},
		{"8", viewSettings},
		{"1", viewDashboard},
	}
	for _, tt := range tests {
		model, _ := app.Update(press(tt.key))
		app = model.(App)
		if app.activeView != tt.want {
			t.Fatalf("key %s: expected view %d, got %d", tt.key, tt.want, app.activeView)
		}
		if out := app.View(); out == "" {
			t.Fatalf("view %d rendered empty", tt.want)
		}
	}
}

func TestAppRenderHeaderContainsAllTabs(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)

	header := app.renderHeader()
	for _, name := range viewNames {
		if !strings.Contains(header, name) {
			t.Fatalf("header missing tab %q", name)
		}
	}
}

func TestAppHelpShowsRecentToasts(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)
	app.env.center.Notify(notify.Error("Save failed", "disk full"))

	if strings.Contains(app.View(), "Recent notices") {
		t.Fatal("history should stay hidden until help is expanded")
	}
	model, _ := app.Update(press("?"))
	app = model.(App)
	view := app.View()
	if !strings.Contains(view, "Recent notices") || !strings.Contains(view, "Save failed: disk full") || !strings.Contains(view, "Signed in") {
		t.Fatalf("expanded help should list recent toasts:\n%s", view)
	}
}

func TestAppMutationRefreshesViews(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)
	app.activeView = viewTasks

	app.tasks, _ = app.tasks.showTaskForm(nil)
	app.tasks.fields.title = "Renew TLS certificate"
	app.tasks.fields.deadline = "2030-01-15"
	submit(app.tasks.form)

	var cmd tea.Cmd
	app.tasks, cmd = app.tasks.update(press("enter"))
	if app.tasks.form != nil {
		t.Fatal("form should close after submit")
	}
	app = pump(t, app, cmd)

	if len(app.tasks.tasks.Data) != 1 || app.tasks.tasks.Data[0].Title != "Renew TLS certificate" {
		t.Fatalf("tasks view not refreshed: %+v", app.tasks.tasks.Data)
	}
	if len(app.dashboard.tasks.Data) != 1 {
		t.Fatal("dashboard should see the new task too")
	}
	if latestToast(app).Title != "Create task" {
		t.Fatalf("unexpected status %q", latestToast(app).Title)
	}
}

func TestAppLogout(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)

	model, _ := app.Update(press("L"))
	app = model.(App)
	if app.env.signedIn() {
		t.Fatal("should be signed out")
	}
	if app.login.form == nil {
		t.Fatal("login form should be shown")
	}
	if !app.notifications.list.Mounted() || app.notifications.list.Loaded() {
		t.Fatal("inbox should drop the previous user's data")
	}
}

func TestAppExport(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)
	sess := mustSession(t, s)
	if _, err := s.CreateAccount(sess, store.AccountInput{Name: "example.com", Type: store.AccountDomain, Password: "hunter2"}); err != nil {
		t.Fatal(err)
	}

	model, _ := app.Update(press("E"))
	app = model.(App)
	if !app.exportPicking {
		t.Fatal("export picker should open")
	}
	model, _ = app.Update(press("down")) // accounts as JSON
	app = model.(App)
	model, cmd := app.Update(press("enter"))
	app = model.(App)
	if app.exportPicking {
		t.Fatal("picker should close")
	}

	done, ok := cmd().(exportDoneMsg)
	if !ok || done.err != nil {
		t.Fatalf("export failed: %+v", done)
	}
	if !strings.HasSuffix(done.path, ".json") {
		t.Fatalf("expected a json file, got %s", done.path)
	}
	data, err := os.ReadFile(done.path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "example.com") || strings.Contains(string(data), "hunter2") {
		t.Fatalf("unexpected export content: %s", data)
	}
}

func mustSession(t *testing.T, s *store.Store) *store.Session {
	t.Helper()
	sess, err := s.Login(adminEmail, adminPassword, time.Hour)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return sess
}

// ============================================================
// Views
// ============================================================

func TestTasksCycleStatus(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)
	task, err := s.CreateTask(mustSession(t, s), store.TaskInput{Title: "Write docs"})
	if err != nil {
		t.Fatal(err)
	}

	want := []store.TaskStatus{store.StatusInProgress, store.StatusDone, store.StatusTodo}
	for _, w := range want {
		current, _ := s.GetTask(task.ID)
		if m := mustMutation(t, app.tasks.cycleStatus(*current)); m.err != nil {
			t.Fatal(m.err)
		}
		got, _ := s.GetTask(task.ID)
		if got.Status != w {
			t.Fatalf("expected %s, got %s", w, got.Status)
		}
	}
}

func TestTasksComments(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)
	task, _ := s.CreateTask(mustSession(t, s), store.TaskInput{Title: "Migrate DNS"})
	app = pump(t, app, app.tasks.refresh())

	var cmd tea.Cmd
	app.tasks, cmd = app.tasks.openDetail(task.ID)
	app = pump(t, app, cmd)
	if !app.tasks.comments.Loaded() || len(app.tasks.comments.Data) != 0 {
		t.Fatal("comments should load empty")
	}

	app.tasks, _ = app.tasks.showCommentForm()
	app.tasks.fields.comment = "  registrar unlocked  "
	submit(app.tasks.form)
	app.tasks, cmd = app.tasks.update(press("enter"))
	app = pump(t, app, cmd)

	if len(app.tasks.comments.Data) != 1 || app.tasks.comments.Data[0].Body != "registrar unlocked" {
		t.Fatalf("unexpected comments: %+v", app.tasks.comments.Data)
	}
}

func TestTasksSignedOutWrite(t *testing.T) {
	app, _ := newTestApp(t)
	m := mustMutation(t, app.tasks.cycleStatus(store.Task{ID: 1, Status: store.StatusTodo}))
	if !errors.Is(m.err, store.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", m.err)
	}
}

func TestAccountFormInput(t *testing.T) {
	tests := []struct {
		name  string
		form  accountForm
		check func(store.AccountInput) error
	}{
		{
			name: "service keeps service fields only",
			form: accountForm{name: " Mail ", typ: "Service", provider: "Fastmail", monthlyCost: "9.5", hostingProvider: "ignored"},
			check: func(in store.AccountInput) error {
				if in.Name != "Mail" || in.ServiceProvider != "Fastmail" || in.MonthlyCost == nil || *in.MonthlyCost != 9.5 {
					return errors.New("service fields not carried")
				}
				if in.HostingProvider != "" {
					return errors.New("domain field leaked into service input")
				}
				return nil
			},
		},
		{
			name: "social media platform and followers",
			form: accountForm{name: "Brand", typ: "SocialMedia", platform: "Instagram", followers: "1200", project: filter.NoProject},
			check: func(in store.AccountInput) error {
				if in.Platform != "Instagram" || in.Followers != 1200 || in.ProjectID != nil {
					return errors.New("social fields not carried")
				}
				return nil
			},
		},
		{
			name: "domain with expiry and project",
			form: accountForm{name: "example.com", typ: "Domain", expiry: "2030-03-01", project: "7", yearlyCost: ""},
			check: func(in store.AccountInput) error {
				if in.ExpiryDate == nil || in.ExpiryDate.Format("2006-01-02") != "2030-03-01" {
					return errors.New("expiry not parsed")
				}
				if in.ProjectID == nil || *in.ProjectID != 7 || in.YearlyCost != nil {
					return errors.New("project or cost wrong")
				}
				return nil
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.check(tt.form.input()); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestAccountsPasswordToggle(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)
	app.activeView = viewAccounts

	if app.accounts.secret("pw") == "pw" {
		t.Fatal("passwords should be hidden by default")
	}
	var cmd tea.Cmd
	app.accounts, cmd = app.accounts.update(press("p"))
	if m := mustMutation(t, cmd); m.err != nil {
		t.Fatal(m.err)
	}
	if app.accounts.secret("pw") != "pw" {
		t.Fatal("passwords should be visible after toggle")
	}
	if v, _ := s.GetSetting("show_passwords"); v != "true" {
		t.Fatalf("setting not saved: %q", v)
	}
}

func TestAccountsFilterBadge(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)
	sess := mustSession(t, s)
	s.CreateAccount(sess, store.AccountInput{Name: "Repo", Type: store.AccountRepository})
	s.CreateAccount(sess, store.AccountInput{Name: "Site", Type: store.AccountDomain})
	app = pump(t, app, app.accounts.refresh())

	app.accounts.filters.Type = string(store.AccountDomain)
	if got := app.accounts.visible(); len(got) != 1 || got[0].Name != "Site" {
		t.Fatalf("unexpected filtered accounts: %+v", got)
	}
	app.accounts, _ = app.accounts.update(press("F"))
	if app.accounts.filters.ActiveCount() != 0 || len(app.accounts.visible()) != 2 {
		t.Fatal("F should clear filters")
	}
}

func TestPromptsCreate(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)

	app.prompts, _ = app.prompts.showPromptForm(nil)
	app.prompts.fields.title = "Release notes"
	app.prompts.fields.content = "Summarize the changes"
	app.prompts.fields.tags = "writing, release, writing"
	submit(app.prompts.form)

	var cmd tea.Cmd
	app.prompts, cmd = app.prompts.update(press("enter"))
	app = pump(t, app, cmd)

	if len(app.prompts.prompts.Data) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(app.prompts.prompts.Data))
	}
	app.prompts.filters.Tag = "release"
	if len(app.prompts.visible()) != 1 {
		t.Fatal("tag filter should match")
	}
}

func TestNotificationsMarkRead(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)
	if app.notifications.unread() == 0 {
		t.Fatal("expected the sign-in notification")
	}

	var cmd tea.Cmd
	app.notifications, cmd = app.notifications.update(press("M"))
	app = pump(t, app, cmd)
	// marking read produces its own toast, which is recorded unread
	if n, _ := s.UnreadCount(app.env.userID()); n != app.notifications.unread() {
		t.Fatalf("inbox out of sync: store %d, view %d", n, app.notifications.unread())
	}
}

func TestSettingsSavePreferences(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)

	app.settings, _ = app.settings.showPreferencesForm()
	if app.settings.fields.horizonDays != "30" {
		t.Fatalf("expected stored horizon, got %q", app.settings.fields.horizonDays)
	}
	app.settings.fields.horizonDays = "45"
	app.settings.fields.taskPriority = string(store.PriorityHigh)
	submit(app.settings.form)

	var cmd tea.Cmd
	app.settings, cmd = app.settings.update(press("enter"))
	m := mustMutation(t, cmd)
	if m.err != nil {
		t.Fatal(m.err)
	}
	app = pump(t, app, func() tea.Msg { return m })
	if app.env.horizon().Days != 45 {
		t.Fatalf("horizon not applied: %d", app.env.horizon().Days)
	}
	if app.tasks.defaultPriority() != string(store.PriorityHigh) {
		t.Fatal("task default priority not applied")
	}
}

func TestHorizonFallsBackToConfig(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Register(adminEmail, adminPassword, "Ada Admin", store.RoleAdmin); err != nil {
		t.Fatalf("register: %v", err)
	}
	log, _ := test.NewNullLogger()
	app := NewApp(Options{Store: s, Center: newTestCenter(s), SessionTTL: time.Hour, Log: log, HorizonDays: 14})
	app.width, app.height = 120, 40

	if got := app.env.horizon().Days; got != 14 {
		t.Fatalf("expected configured horizon 14 before sign in, got %d", got)
	}
	app = signIn(t, app, s)
	if !app.settings.settings.Loaded() {
		t.Fatal("settings should be loaded after sign in")
	}
	if got := app.env.horizon().Days; got != 14 {
		t.Fatalf("expected configured horizon 14 without a stored row, got %d", got)
	}

	app.settings, _ = app.settings.showPreferencesForm()
	if app.settings.fields.horizonDays != "14" {
		t.Fatalf("preferences form should start from 14, got %q", app.settings.fields.horizonDays)
	}
}

func TestHorizonReadsLoadedSettings(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)
	sess := mustSession(t, s)

	if err := s.SetSetting(sess, "expiry_horizon_days", "7"); err != nil {
		t.Fatal(err)
	}
	// rendering uses the last load, not the database
	if got := app.env.horizon().Days; got != filter.DefaultHorizonDays {
		t.Fatalf("horizon changed before a reload: %d", got)
	}
	_ = app.View()

	cmd := app.settings.refresh()
	app = pump(t, app, cmd)
	if got := app.env.horizon().Days; got != 7 {
		t.Fatalf("expected 7 after reload, got %d", got)
	}
}

func TestSettingsProfileUpdatesHeader(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)

	app.settings, _ = app.settings.showProfileForm()
	app.settings.fields.fullName = "Ada Lovelace"
	submit(app.settings.form)

	var cmd tea.Cmd
	app.settings, cmd = app.settings.update(press("enter"))
	app = pump(t, app, cmd)

	if app.env.session.User.FullName != "Ada Lovelace" {
		t.Fatalf("session user not refreshed: %q", app.env.session.User.FullName)
	}
}

func TestReportsTaskBars(t *testing.T) {
	app, s := newTestApp(t)
	app = signIn(t, app, s)
	sess := mustSession(t, s)
	p, _ := s.CreateProject(sess, "Website", "", store.ProjectActive)
	s.CreateTask(sess, store.TaskInput{Title: "a", ProjectID: &p.ID, Status: store.StatusDone})
	s.CreateTask(sess, store.TaskInput{Title: "b", ProjectID: &p.ID})
	s.CreateTask(sess, store.TaskInput{Title: "c"})
	app = pump(t, app, app.reports.refresh())

	bars := app.reports.taskBars()
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].label != "No Project" || bars[1].label != "Website" {
		t.Fatalf("unexpected labels %q %q", bars[0].label, bars[1].label)
	}
	var total float64
	for _, v := range bars[1].values {
		total += v.Value
	}
	if total != 2 {
		t.Fatalf("expected 2 tasks in Website, got %v", total)
	}
}

func TestMonthlyCost(t *testing.T) {
	yearly := 120.0
	tests := []struct {
		name            string
		account         store.Account
		service, domain float64
	}{
		{"monthly service", store.Account{Service: &store.ServiceDetails{MonthlyCost: 10, BillingCycle: "monthly"}}, 10, 0},
		{"yearly service", store.Account{Service: &store.ServiceDetails{MonthlyCost: 24, BillingCycle: "yearly"}}, 2, 0},
		{"domain", store.Account{Domain: &store.DomainDetails{YearlyCost: &yearly}}, 0, 10},
		{"domain without cost", store.Account{Domain: &store.DomainDetails{}}, 0, 0},
	}
	for _, tt := range tests {
		service, domain := monthlyCost(tt.account)
		if service != tt.service || domain != tt.domain {
			t.Fatalf("%s: got (%v, %v), want (%v, %v)", tt.name, service, domain, tt.service, tt.domain)
		}
	}
}

// ============================================================
// Helpers
// ============================================================

func TestLoadState(t *testing.T) {
	failing := fetch.New("tasks", func() ([]store.Task, error) {
		return nil, &store.QueryError{Op: "list tasks", Err: errors.New("disk I/O error")}
	}, nil)
	failing.Update(failing.Load()())
	s, ok := loadState(&failing, "")
	if !ok || !strings.Contains(s, "r: retry") || !strings.Contains(s, "disk I/O error") {
		t.Fatalf("expected error panel, got %q", s)
	}

	loading := fetch.New("tasks", func() ([]store.Task, error) { return nil, nil }, nil)
	loading.Load()
	if s, ok := loadState(&loading, "empty"); !ok || !strings.Contains(s, "Loading...") {
		t.Fatalf("expected loading line, got %q", s)
	}

	loaded := fetch.New("tasks", func() ([]store.Task, error) { return []store.Task{{ID: 1}}, nil }, nil)
	loaded.Update(loaded.Load()())
	if _, ok := loadState(&loaded, ""); ok {
		t.Fatal("loaded data should render rows")
	}
	if s, _ := loadState(&loaded, "Nothing"); !strings.Contains(s, "Nothing") {
		t.Fatal("empty message should win once loaded")
	}
}

func TestToastFor(t *testing.T) {
	tests := []struct {
		msg     mutationMsg
		variant notify.Variant
		title   string
		desc    string
	}{
		{mutationMsg{action: "create task"}, notify.VariantDefault, "Create task", "Done."},
		{mutationMsg{action: "delete project", err: store.ErrForbidden}, notify.VariantDestructive, "Could not delete project", "Only admins can do that."},
		{mutationMsg{action: "create task", err: store.ErrAuthRequired}, notify.VariantDestructive, "Could not create task", "Sign in first."},
	}
	for _, tt := range tests {
		got := toastFor(tt.msg)
		if got.Variant != tt.variant || got.Title != tt.title || got.Description != tt.desc {
			t.Fatalf("toastFor(%+v) = %+v", tt.msg, got)
		}
	}
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		in   string
		want *int64
	}{
		{"", nil},
		{filter.NoProject, nil},
		{"abc", nil},
		{"12", ptr(int64(12))},
	}
	for _, tt := range tests {
		got := parseRef(tt.in)
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Fatalf("parseRef(%q) = %v", tt.in, got)
		}
	}
}

func ptr[T any](v T) *T { return &v }

func TestParseDate(t *testing.T) {
	if d, err := parseDate(""); d != nil || err != nil {
		t.Fatal("empty date should be nil without error")
	}
	if _, err := parseDate("15/01/2030"); err == nil {
		t.Fatal("expected an error for a non-ISO date")
	}
	d, err := parseDate(" 2030-01-15 ")
	if err != nil || formatDate(d) != "2030-01-15" {
		t.Fatalf("round trip failed: %v %v", d, err)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"longer text", 6, "longe…"},
		{"ünïcödé", 4, "ünï…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestClampCursor(t *testing.T) {
	if clampCursor(5, 3) != 2 || clampCursor(-1, 3) != 0 || clampCursor(2, 0) != 0 {
		t.Fatal("clampCursor out of range")
	}
}

func TestSearchBox(t *testing.T) {
	sb := newSearchBox("search")
	sb, _ = sb.open()
	if !sb.active {
		t.Fatal("search should be active after open")
	}
	sb, _ = sb.update(press("abc"))
	sb, _ = sb.update(press("enter"))
	if sb.active || sb.query() != "abc" {
		t.Fatalf("enter should keep the query, got active=%v query=%q", sb.active, sb.query())
	}
	sb, _ = sb.open()
	sb, _ = sb.update(press("esc"))
	if sb.query() != "" {
		t.Fatal("esc should clear the query")
	}
}

func TestStepFormCancel(t *testing.T) {
	var v string
	f := newForm(huh.NewGroup(huh.NewInput().Value(&v)))
	f.Init()
	form, _, state := stepForm(f, press("esc"))
	if form != nil || state != formCancelled {
		t.Fatal("esc should cancel the form")
	}
}

// ============================================================
// Key bindings
// ============================================================

func TestKeyMapFullHelp(t *testing.T) {
	if len(keys.ShortHelp()) == 0 {
		t.Fatal("short help should have bindings")
	}
	for i, g := range keys.FullHelp() {
		if len(g) == 0 {
			t.Fatalf("full help group %d is empty", i)
		}
	}
}
