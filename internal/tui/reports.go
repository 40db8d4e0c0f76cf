package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/opsdeck/internal/fetch"
	"github.com/sadopc/opsdeck/internal/filter"
	"github.com/sadopc/opsdeck/internal/store"
)

type reportMode int

const (
	reportTasks reportMode = iota
	reportAccounts
	reportCosts
)

var reportModeNames = []string{"Tasks", "Accounts", "Costs"}

type reportsModel struct {
	env    *env
	width  int
	height int

	mode     reportMode
	projects fetch.Loader[[]store.Project]
	tasks    fetch.Loader[[]store.Task]
	accounts fetch.Loader[[]store.Account]

	chart barchart.Model
}

func newReportsModel(e *env) reportsModel {
	return reportsModel{
		env:      e,
		projects: fetch.New("projects", e.store.ListProjects, e.center),
		tasks:    fetch.New("tasks", e.store.ListTasks, e.center),
		accounts: fetch.New("accounts", e.store.ListAccounts, e.center),
		chart:    barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
	r.buildChart()
}

func (r *reportsModel) refresh() tea.Cmd {
	return tea.Batch(r.projects.Refresh(), r.tasks.Refresh(), r.accounts.Refresh())
}

func (r reportsModel) receive(msg tea.Msg) (reportsModel, tea.Cmd, bool) {
	ok, cmd := r.projects.Update(msg)
	if !ok {
		ok, cmd = r.tasks.Update(msg)
	}
	if !ok {
		ok, cmd = r.accounts.Update(msg)
	}
	if ok {
		r.buildChart()
	}
	return r, cmd, ok
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return r, nil
	}
	switch {
	case key.Matches(km, keys.Tab):
		r.mode = (r.mode + 1) % reportMode(len(reportModeNames))
		r.buildChart()
	case key.Matches(km, keys.Refresh):
		cmd := r.refresh()
		return r, cmd
	}
	return r, nil
}

// bar is one labelled bar of stacked values.
type bar struct {
	label  string
	values []barchart.BarValue
}

// taskBars stacks task statuses per project. Tasks without a project
// share one bar.
func (r reportsModel) taskBars() []bar {
	names := filter.ProjectNames(r.projects.Data)
	var order []string
	byLabel := make(map[string][]store.Task)
	for _, t := range r.tasks.Data {
		label := filter.ProjectLabel(t.ProjectID, names)
		if _, ok := byLabel[label]; !ok {
			order = append(order, label)
		}
		byLabel[label] = append(byLabel[label], t)
	}
	slices.Sort(order)

	bars := make([]bar, 0, len(order))
	for _, label := range order {
		counts := filter.CountByStatus(byLabel[label])
		var values []barchart.BarValue
		for _, s := range store.TaskStatuses {
			values = append(values, barchart.BarValue{
				Name:  string(s),
				Value: float64(counts[s]),
				Style: lipgloss.NewStyle().Foreground(statusColors[s]),
			})
		}
		bars = append(bars, bar{label: label, values: values})
	}
	return bars
}

func (r reportsModel) accountBars() []bar {
	counts := make(map[store.AccountType]int)
	for _, a := range r.accounts.Data {
		counts[a.Type]++
	}
	bars := make([]bar, 0, len(store.AccountTypes))
	for _, t := range store.AccountTypes {
		bars = append(bars, bar{label: string(t), values: []barchart.BarValue{{
			Name:  string(t),
			Value: float64(counts[t]),
			Style: lipgloss.NewStyle().Foreground(accountTypeColors[t]),
		}}})
	}
	return bars
}

// monthlyCost normalizes an account's recorded cost to a month. Yearly
// domain costs are spread over twelve months.
func monthlyCost(a store.Account) (service, domain float64) {
	if a.Service != nil {
		service = a.Service.MonthlyCost
		if a.Service.BillingCycle == "yearly" {
			service /= 12
		}
	}
	if a.Domain != nil && a.Domain.YearlyCost != nil {
		domain = *a.Domain.YearlyCost / 12
	}
	return service, domain
}

func (r reportsModel) costBars() []bar {
	type split struct{ service, domain float64 }
	var order []string
	totals := make(map[string]*split)
	for _, a := range r.accounts.Data {
		service, domain := monthlyCost(a)
		if service == 0 && domain == 0 {
			continue
		}
		label := projectName(a)
		if totals[label] == nil {
			totals[label] = &split{}
			order = append(order, label)
		}
		totals[label].service += service
		totals[label].domain += domain
	}
	slices.Sort(order)

	bars := make([]bar, 0, len(order))
	for _, label := range order {
		s := totals[label]
		bars = append(bars, bar{label: label, values: []barchart.BarValue{
			{Name: "services", Value: s.service, Style: lipgloss.NewStyle().Foreground(colorSuccess)},
			{Name: "domains", Value: s.domain, Style: lipgloss.NewStyle().Foreground(colorPrimary)},
		}})
	}
	return bars
}

func (r reportsModel) bars() []bar {
	switch r.mode {
	case reportAccounts:
		return r.accountBars()
	case reportCosts:
		return r.costBars()
	}
	return r.taskBars()
}

func (r *reportsModel) buildChart() {
	chartWidth := max(r.width-8, 20)
	chartHeight := 12
	if r.height > 30 {
		chartHeight = 16
	}
	r.chart = barchart.New(chartWidth, chartHeight)

	var data []barchart.BarData
	for _, b := range r.bars() {
		data = append(data, barchart.BarData{Label: truncate(b.label, 10), Values: b.values})
	}
	if len(data) == 0 {
		return
	}
	r.chart.PushAll(data)
	r.chart.Draw()
}

func (r reportsModel) view() string {
	w := r.width - 4

	var tabs []string
	for i, name := range reportModeNames {
		if reportMode(i) == r.mode {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ", lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...))

	s, waiting := loadState(&r.accounts, "")
	if r.mode == reportTasks {
		s, waiting = loadState(&r.tasks, "")
	}

	body := s
	if !waiting {
		bars := r.bars()
		if len(bars) == 0 {
			body = mutedStyle.Render("  No data yet")
		} else {
			body = lipgloss.JoinVertical(lipgloss.Left, r.chart.View(), "", renderLegend(bars), "", renderTable(r.mode, bars, w))
		}
	}

	nav := mutedStyle.Render("  tab: switch report  r: refresh")
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", nav))
}

func renderLegend(bars []bar) string {
	seen := make(map[string]bool)
	var items []string
	for _, b := range bars {
		for _, v := range b.values {
			if seen[v.Name] {
				continue
			}
			seen[v.Name] = true
			items = append(items, v.Style.Render("●")+" "+v.Name)
		}
	}
	return "  " + strings.Join(items, "  ")
}

func renderTable(mode reportMode, bars []bar, w int) string {
	var rows []string
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", max(min(w-6, 54), 0))))
	for _, b := range bars {
		var total float64
		var parts []string
		for _, v := range b.values {
			total += v.Value
			if mode == reportCosts {
				parts = append(parts, fmt.Sprintf("%s %.2f", v.Name, v.Value))
			} else if len(b.values) > 1 {
				parts = append(parts, fmt.Sprintf("%s %d", v.Name, int(v.Value)))
			}
		}
		amount := fmt.Sprintf("%10d", int(total))
		if mode == reportCosts {
			amount = fmt.Sprintf("%10.2f", total)
		}
		rows = append(rows, fmt.Sprintf("  %-20s %s  %s", truncate(b.label, 20), amount, mutedStyle.Render(strings.Join(parts, " · "))))
	}
	return strings.Join(rows, "\n")
}
