package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/opsdeck/internal/store"
)

var (
	colorPrimary   = lipgloss.Color("#6C63FF")
	colorSecondary = lipgloss.Color("#2EC4B6")
	colorMuted     = lipgloss.Color("#666666")
	colorSuccess   = lipgloss.Color("#2ECC71")
	colorWarning   = lipgloss.Color("#F39C12")
	colorError     = lipgloss.Color("#E74C3C")
	colorFg        = lipgloss.Color("#C0CAF5")
	colorSubtle    = lipgloss.Color("#414868")
	colorHighlight = lipgloss.Color("#7AA2F7")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func boxed(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(c).Padding(1, 2)
}

var (
	activeTabStyle = fg(colorPrimary).Bold(true).Padding(0, 1).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(colorPrimary)
	inactiveTabStyle = fg(colorMuted).Padding(0, 1)

	panelStyle       = boxed(colorSubtle)
	activePanelStyle = boxed(colorPrimary)
	errorPanelStyle  = boxed(colorError)

	titleStyle     = fg(colorFg).Bold(true)
	subtitleStyle  = fg(colorMuted)
	mutedStyle     = fg(colorMuted)
	successStyle   = fg(colorSuccess)
	warningStyle   = fg(colorWarning)
	errorStyle     = fg(colorError)
	highlightStyle = fg(colorHighlight)
	badgeStyle     = fg(lipgloss.Color("#FFFFFF")).Background(colorPrimary).Bold(true)

	headerStyle = lipgloss.NewStyle().Padding(0, 1)
	footerStyle = fg(colorMuted).Padding(0, 1)

	selectedItemStyle = fg(colorPrimary).Bold(true)
	normalItemStyle   = fg(colorFg)
)

var priorityColors = map[store.TaskPriority]lipgloss.Color{
	store.PriorityLow:    colorMuted,
	store.PriorityMedium: colorHighlight,
	store.PriorityHigh:   colorWarning,
	store.PriorityUrgent: colorError,
}

var statusColors = map[store.TaskStatus]lipgloss.Color{
	store.StatusTodo:       colorHighlight,
	store.StatusInProgress: colorWarning,
	store.StatusDone:       colorSuccess,
}

var accountTypeColors = map[store.AccountType]lipgloss.Color{
	store.AccountDomain:      colorPrimary,
	store.AccountSocialMedia: colorSecondary,
	store.AccountEmail:       colorHighlight,
	store.AccountRepository:  colorWarning,
	store.AccountService:     colorSuccess,
}

func priorityLabel(p store.TaskPriority) string { return fg(priorityColors[p]).Render(string(p)) }

func statusLabel(s store.TaskStatus) string { return fg(statusColors[s]).Render(string(s)) }
