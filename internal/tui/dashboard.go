package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/opsdeck/internal/fetch"
	"github.com/sadopc/opsdeck/internal/filter"
	"github.com/sadopc/opsdeck/internal/store"
)

const dashboardListLimit = 6

type dashboardModel struct {
	env    *env
	width  int
	height int

	projects fetch.Loader[[]store.ProjectStats]
	tasks    fetch.Loader[[]store.Task]
	accounts fetch.Loader[[]store.Account]
}

func newDashboardModel(e *env) dashboardModel {
	return dashboardModel{
		env:      e,
		projects: fetch.New("projects", e.store.ListProjectStats, e.center),
		tasks:    fetch.New("tasks", e.store.ListTasks, e.center),
		accounts: fetch.New("accounts", e.store.ListAccounts, e.center),
	}
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d *dashboardModel) refresh() tea.Cmd {
	return tea.Batch(d.projects.Refresh(), d.tasks.Refresh(), d.accounts.Refresh())
}

// receive applies loader results. It reports whether msg was consumed.
func (d dashboardModel) receive(msg tea.Msg) (dashboardModel, tea.Cmd, bool) {
	if ok, cmd := d.projects.Update(msg); ok {
		return d, cmd, true
	}
	if ok, cmd := d.tasks.Update(msg); ok {
		return d, cmd, true
	}
	if ok, cmd := d.accounts.Update(msg); ok {
		return d, cmd, true
	}
	return d, nil, false
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Refresh) {
		cmd := d.refresh()
		return d, cmd
	}
	return d, nil
}

// expiring returns accounts expiring inside the horizon, soonest first.
func (d dashboardModel) expiring(w filter.Window) []store.Account {
	list := filter.Accounts(d.accounts.Data, "", filter.AccountFilter{ExpiryStatus: string(filter.ExpiringSoon)}, w)
	slices.SortStableFunc(list, func(a, b store.Account) int {
		return a.ExpiryDate.Compare(*b.ExpiryDate)
	})
	return list
}

func (d dashboardModel) dueSoon() []store.Task {
	list := filter.Tasks(d.tasks.Data, "", filter.TaskFilter{Deadline: string(filter.DueSoon)}, d.env.now())
	list = slices.DeleteFunc(list, func(t store.Task) bool { return t.Status == store.StatusDone })
	slices.SortStableFunc(list, func(a, b store.Task) int {
		return a.Deadline.Compare(*b.Deadline)
	})
	return list
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}
	w := d.width - 4
	window := d.env.horizon()

	return lipgloss.JoinVertical(lipgloss.Left,
		d.renderSummary(w, window),
		d.renderExpiring(w, window),
		d.renderDueSoon(w),
	)
}

func (d dashboardModel) renderSummary(w int, window filter.Window) string {
	greeting := "Overview"
	if d.env.signedIn() {
		greeting = "Welcome back, " + displayName(d.env.session.User)
	}

	counts := filter.CountByStatus(d.tasks.Data)
	overdue := len(filter.Tasks(d.tasks.Data, "", filter.TaskFilter{Deadline: string(filter.Overdue)}, d.env.now()))
	expired := len(filter.Accounts(d.accounts.Data, "", filter.AccountFilter{ExpiryStatus: string(filter.Expired)}, window))

	stat := func(label string, n int, style lipgloss.Style) string {
		return lipgloss.JoinVertical(lipgloss.Left,
			style.Bold(true).Render(fmt.Sprintf("%d", n)),
			mutedStyle.Render(label),
		)
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top,
		stat("projects", len(d.projects.Data), highlightStyle), "    ",
		stat("open tasks", counts[store.StatusTodo]+counts[store.StatusInProgress], highlightStyle), "    ",
		stat("overdue", overdue, errorStyle), "    ",
		stat("accounts", len(d.accounts.Data), highlightStyle), "    ",
		stat("expired", expired, errorStyle),
	)

	rows := []string{titleStyle.Render(greeting), "", row}
	for _, l := range []*fetch.Error{d.projects.Err, d.tasks.Err, d.accounts.Err} {
		if l != nil {
			rows = append(rows, "", staleBanner(l))
			break
		}
	}
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (d dashboardModel) renderExpiring(w int, window filter.Window) string {
	title := titleStyle.Render(fmt.Sprintf("Expiring in the next %d days", window.Days))
	if s, ok := loadState(&d.accounts, ""); ok {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, s))
	}
	list := d.expiring(window)
	if len(list) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render("Nothing expiring soon")))
	}

	rows := []string{title}
	for _, a := range list[:min(len(list), dashboardListLimit)] {
		days := int(a.ExpiryDate.Sub(window.Today).Hours() / 24)
		when := fmt.Sprintf("in %d days", days)
		if days <= 0 {
			when = "today"
		}
		rows = append(rows, fmt.Sprintf("  %s %-28s %-12s %s",
			warningStyle.Render("●"), truncate(a.Name, 28), string(a.Type), mutedStyle.Render(when)))
	}
	if len(list) > dashboardListLimit {
		rows = append(rows, mutedStyle.Render(fmt.Sprintf("  and %d more", len(list)-dashboardListLimit)))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderDueSoon(w int) string {
	title := titleStyle.Render("Due this week")
	if s, ok := loadState(&d.tasks, ""); ok {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, s))
	}
	list := d.dueSoon()
	if len(list) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render("No deadlines this week")))
	}

	rows := []string{title}
	for _, t := range list[:min(len(list), dashboardListLimit)] {
		rows = append(rows, fmt.Sprintf("  %s  %-32s %s",
			formatDate(t.Deadline), truncate(t.Title, 32), priorityLabel(t.Priority)))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func displayName(u store.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
