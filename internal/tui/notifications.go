package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/opsdeck/internal/fetch"
	"github.com/sadopc/opsdeck/internal/notify"
	"github.com/sadopc/opsdeck/internal/store"
)

// notificationsModel is the inbox of toasts recorded for the signed-in
// user.
type notificationsModel struct {
	env    *env
	width  int
	height int

	list   fetch.Loader[[]store.Notification]
	cursor int
}

func newNotificationsModel(e *env) notificationsModel {
	return notificationsModel{
		env:  e,
		list: fetch.New[[]store.Notification]("notifications", nil, e.center),
	}
}

func (n *notificationsModel) setSize(w, h int) {
	n.width = w
	n.height = h
}

// signIn switches the inbox to userID, dropping the previous user's rows.
func (n *notificationsModel) signIn(userID int64) tea.Cmd {
	st := n.env.store
	n.cursor = 0
	return n.list.Retarget(func() ([]store.Notification, error) { return st.ListNotifications(userID) })
}

func (n *notificationsModel) signOut() {
	n.list.Retarget(nil)
}

func (n *notificationsModel) refresh() tea.Cmd { return n.list.Refresh() }

func (n notificationsModel) failedWith(t notify.Toast) bool {
	return n.list.Err != nil && n.list.Err.Title == t.Title
}

func (n notificationsModel) receive(msg tea.Msg) (notificationsModel, tea.Cmd, bool) {
	if ok, cmd := n.list.Update(msg); ok {
		n.cursor = clampCursor(n.cursor, len(n.list.Data))
		return n, cmd, true
	}
	return n, nil, false
}

func (n notificationsModel) unread() int {
	count := 0
	for _, item := range n.list.Data {
		if !item.Read {
			count++
		}
	}
	return count
}

func (n notificationsModel) update(msg tea.Msg) (notificationsModel, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return n, nil
	}
	sess, st := n.env.session, n.env.store
	switch {
	case key.Matches(km, keys.Up):
		if n.cursor > 0 {
			n.cursor--
		}
	case key.Matches(km, keys.Down):
		if n.cursor < len(n.list.Data)-1 {
			n.cursor++
		}
	case key.Matches(km, keys.Refresh):
		cmd := n.refresh()
		return n, cmd
	case key.Matches(km, keys.MarkRead), key.Matches(km, keys.Enter):
		if n.cursor < len(n.list.Data) && !n.list.Data[n.cursor].Read {
			id := n.list.Data[n.cursor].ID
			return n, mutate(viewNotifications, "mark notification read", func() error {
				return st.MarkNotificationRead(sess, id)
			})
		}
	case key.Matches(km, keys.MarkAllRead):
		if n.unread() > 0 {
			return n, mutate(viewNotifications, "mark all read", func() error {
				return st.MarkAllNotificationsRead(sess)
			})
		}
	}
	return n, nil
}

func (n notificationsModel) view() string {
	w := n.width - 4
	rows := []string{titleStyle.Render("Inbox") + " " + badge(n.unread())}
	if n.list.Loaded() {
		if banner := staleBanner(n.list.Err); banner != "" {
			rows = append(rows, banner)
		}
	}
	rows = append(rows, "")

	if s, ok := loadState(&n.list, emptyIf(len(n.list.Data) == 0, "Nothing here yet.")); ok {
		rows = append(rows, s)
		return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
	}

	for i, item := range n.list.Data {
		cursor, style := cursorPrefix(i == n.cursor)
		dot := mutedStyle.Render("○")
		if !item.Read {
			dot = highlightStyle.Render("●")
		}
		title := item.Title
		if item.Variant == "destructive" {
			title = errorStyle.Render(title)
		}
		rows = append(rows, style.Render(cursor)+dot+" "+title+"  "+
			mutedStyle.Render(item.CreatedAt.Local().Format("Jan 02 15:04")))
		if item.Description != "" {
			rows = append(rows, "    "+mutedStyle.Render(truncate(item.Description, max(w-8, 10))))
		}
	}
	rows = append(rows, "", mutedStyle.Render(fmt.Sprintf("  m: mark read  M: mark all read (%d unread)", n.unread())))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
