package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/opsdeck/internal/fetch"
	"github.com/sadopc/opsdeck/internal/filter"
	"github.com/sadopc/opsdeck/internal/store"
)

type projectsModel struct {
	env    *env
	width  int
	height int

	projects fetch.Loader[[]store.ProjectStats]
	// detail loaders follow the selected project through Retarget
	tasks    fetch.Loader[[]store.Task]
	accounts fetch.Loader[[]store.Account]

	cursor    int
	detail    bool
	detailID  int64
	search    searchBox
	filters   *filter.ProjectFilter
	formType  string // "project", "edit_project", "filter"
	form      *huh.Form
	editingID int64

	// Form field pointers (survive value copies)
	formName        *string
	formDescription *string
	formStatus      *string
}

func newProjectsModel(e *env) projectsModel {
	name, desc, status := "", "", string(store.ProjectActive)
	return projectsModel{
		env:             e,
		projects:        fetch.New("projects", e.store.ListProjectStats, e.center),
		tasks:           fetch.New[[]store.Task]("project tasks", nil, e.center),
		accounts:        fetch.New[[]store.Account]("project accounts", nil, e.center),
		search:          newSearchBox("search projects"),
		filters:         &filter.ProjectFilter{},
		formName:        &name,
		formDescription: &desc,
		formStatus:      &status,
	}
}

func (p *projectsModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

func (p projectsModel) formActive() bool { return p.form != nil || p.search.active }

func (p *projectsModel) refresh() tea.Cmd {
	cmds := []tea.Cmd{p.projects.Refresh()}
	if p.detail {
		cmds = append(cmds, p.tasks.Refresh(), p.accounts.Refresh())
	}
	return tea.Batch(cmds...)
}

func (p projectsModel) receive(msg tea.Msg) (projectsModel, tea.Cmd, bool) {
	if ok, cmd := p.projects.Update(msg); ok {
		p.cursor = clampCursor(p.cursor, len(p.visible()))
		return p, cmd, true
	}
	if ok, cmd := p.tasks.Update(msg); ok {
		return p, cmd, true
	}
	if ok, cmd := p.accounts.Update(msg); ok {
		return p, cmd, true
	}
	return p, nil, false
}

func (p projectsModel) visible() []store.ProjectStats {
	f := *p.filters
	f.SearchQuery = p.search.query()
	return filter.Projects(p.projects.Data, f)
}

func (p projectsModel) selected() (store.ProjectStats, bool) {
	list := p.visible()
	if p.cursor < 0 || p.cursor >= len(list) {
		return store.ProjectStats{}, false
	}
	return list[p.cursor], true
}

func (p projectsModel) update(msg tea.Msg) (projectsModel, tea.Cmd) {
	if p.form != nil {
		return p.updateForm(msg)
	}
	if p.search.active {
		var cmd tea.Cmd
		p.search, cmd = p.search.update(msg)
		p.cursor = clampCursor(p.cursor, len(p.visible()))
		return p, cmd
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	if p.detail {
		return p.updateDetail(km)
	}

	switch {
	case key.Matches(km, keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(km, keys.Down):
		if p.cursor < len(p.visible())-1 {
			p.cursor++
		}
	case key.Matches(km, keys.Refresh):
		cmd := p.refresh()
		return p, cmd
	case key.Matches(km, keys.Search):
		var cmd tea.Cmd
		p.search, cmd = p.search.open()
		return p, cmd
	case key.Matches(km, keys.Filter):
		return p.showFilterForm()
	case key.Matches(km, keys.ClearFilter):
		*p.filters = filter.ProjectFilter{}
		p.search.input.SetValue("")
		p.cursor = 0
	case key.Matches(km, keys.Enter):
		if proj, ok := p.selected(); ok {
			return p.openDetail(proj.ID)
		}
	case key.Matches(km, keys.New):
		return p.showProjectForm(nil)
	case key.Matches(km, keys.Edit):
		if proj, ok := p.selected(); ok {
			return p.showProjectForm(&proj.Project)
		}
	case key.Matches(km, keys.Delete):
		if proj, ok := p.selected(); ok {
			sess, st, id := p.env.session, p.env.store, proj.ID
			return p, mutate(viewProjects, "delete project", func() error {
				return st.DeleteProject(sess, id)
			})
		}
	}
	return p, nil
}

// openDetail points the detail loaders at project id. Data from the
// previously opened project is dropped by Retarget.
func (p projectsModel) openDetail(id int64) (projectsModel, tea.Cmd) {
	st := p.env.store
	p.detail = true
	p.detailID = id
	cmd := tea.Batch(
		p.tasks.Retarget(func() ([]store.Task, error) { return st.ListTasksByProject(id) }),
		p.accounts.Retarget(func() ([]store.Account, error) { return st.ListAccountsByProject(id) }),
	)
	return p, cmd
}

func (p projectsModel) updateDetail(msg tea.KeyMsg) (projectsModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		p.detail = false
		p.tasks.Unmount()
		p.accounts.Unmount()
	case key.Matches(msg, keys.Refresh):
		cmd := p.refresh()
		return p, cmd
	case key.Matches(msg, keys.Edit):
		if proj, ok := p.byID(p.detailID); ok {
			return p.showProjectForm(&proj.Project)
		}
	}
	return p, nil
}

func (p projectsModel) byID(id int64) (store.ProjectStats, bool) {
	for _, proj := range p.projects.Data {
		if proj.ID == id {
			return proj, true
		}
	}
	return store.ProjectStats{}, false
}

func (p projectsModel) showProjectForm(existing *store.Project) (projectsModel, tea.Cmd) {
	*p.formName, *p.formDescription, *p.formStatus = "", "", p.defaultStatus()
	p.formType = "project"
	if existing != nil {
		*p.formName = existing.Name
		*p.formDescription = existing.Description
		*p.formStatus = string(existing.Status)
		p.formType = "edit_project"
		p.editingID = existing.ID
	}

	p.form = newForm(
		huh.NewGroup(
			huh.NewInput().Title("Project Name").Value(p.formName).Validate(required("name")),
			huh.NewText().Title("Description").Lines(3).Value(p.formDescription),
			huh.NewSelect[string]().Title("Status").Options(stringOptions(store.ProjectStatuses)...).Value(p.formStatus),
		),
	)
	return p, p.form.Init()
}

func (p projectsModel) defaultStatus() string {
	return p.env.setting("default_project_status", string(store.ProjectActive))
}

func (p projectsModel) showFilterForm() (projectsModel, tea.Cmd) {
	p.formType = "filter"
	opts := append([]huh.Option[string]{anyOption("Any status")}, stringOptions(store.ProjectStatuses)...)
	p.form = newForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Status").Options(opts...).Value(&p.filters.Status),
		).Title("Filter projects"),
	)
	return p, p.form.Init()
}

func (p projectsModel) updateForm(msg tea.Msg) (projectsModel, tea.Cmd) {
	form, cmd, state := stepForm(p.form, msg)
	p.form = form
	if state != formSubmitted {
		return p, cmd
	}
	p.form = nil

	sess, st := p.env.session, p.env.store
	name, desc, status := *p.formName, *p.formDescription, store.ProjectStatus(*p.formStatus)
	switch p.formType {
	case "filter":
		p.cursor = 0
		return p, nil
	case "project":
		return p, mutate(viewProjects, "create project", func() error {
			_, err := st.CreateProject(sess, name, desc, status)
			return err
		})
	case "edit_project":
		id := p.editingID
		return p, mutate(viewProjects, "update project", func() error {
			return st.UpdateProject(sess, id, name, desc, status)
		})
	}
	return p, nil
}

func (p projectsModel) view() string {
	w := p.width - 4
	if p.form != nil {
		title := "New Project"
		switch p.formType {
		case "edit_project":
			title = "Edit Project"
		case "filter":
			title = "Filter"
		}
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", p.form.View()))
	}
	if p.detail {
		return p.renderDetail(w)
	}
	return p.renderList(w)
}

func (p projectsModel) renderList(w int) string {
	f := *p.filters
	f.SearchQuery = p.search.query()
	title := titleStyle.Render("Projects") + " " + badge(f.ActiveCount())

	rows := []string{title}
	if s := p.search.view(); s != "" {
		rows = append(rows, s)
	}
	if banner := staleBanner(p.projects.Err); banner != "" && p.projects.Loaded() {
		rows = append(rows, banner)
	}
	rows = append(rows, "")

	list := p.visible()
	empty := ""
	if len(list) == 0 {
		empty = "No projects yet. Press n to create one."
		if len(p.projects.Data) > 0 {
			empty = "No projects match. Press F to clear filters."
		}
	}
	if s, ok := loadState(&p.projects, empty); ok {
		rows = append(rows, s)
		return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
	}

	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-26s %-12s %8s %6s %5s  %s", "Name", "Status", "Progress", "Tasks", "Team", "Domains")))
	for i, proj := range list {
		cursor, style := cursorPrefix(i == p.cursor)
		rows = append(rows, style.Render(fmt.Sprintf("%s%-26s %-12s %7d%% %6d %5d  %s",
			cursor, truncate(proj.Name, 26), proj.Status, proj.Progress, proj.TaskCount, proj.TeamSize,
			truncate(strings.Join(proj.Domains, ", "), 30))))
	}
	rows = append(rows, "", mutedStyle.Render("  n: new  e: edit  d: delete  enter: open  f: filter  /: search"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (p projectsModel) renderDetail(w int) string {
	proj, ok := p.byID(p.detailID)
	if !ok {
		return errorPanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			errorStyle.Render("Project not found"), "", mutedStyle.Render("esc: back")))
	}

	header := []string{
		titleStyle.Render(proj.Name) + "  " + mutedStyle.Render(string(proj.Status)),
	}
	if proj.Description != "" {
		header = append(header, subtitleStyle.Render(proj.Description))
	}
	header = append(header, highlightStyle.Render(fmt.Sprintf("%d%% done · %d tasks · %d people", proj.Progress, proj.TaskCount, proj.TeamSize)))
	if len(proj.SocialLinks) > 0 {
		header = append(header, mutedStyle.Render("social: "+strings.Join(proj.SocialLinks, "  ")))
	}

	taskRows := []string{titleStyle.Render("Tasks")}
	if s, ok := loadState(&p.tasks, emptyIf(len(p.tasks.Data) == 0, "No tasks")); ok {
		taskRows = append(taskRows, s)
	} else {
		for _, t := range p.tasks.Data {
			taskRows = append(taskRows, fmt.Sprintf("  %-32s %-12s %s", truncate(t.Title, 32), statusLabel(t.Status), formatDate(t.Deadline)))
		}
	}

	accountRows := []string{titleStyle.Render("Accounts")}
	if s, ok := loadState(&p.accounts, emptyIf(len(p.accounts.Data) == 0, "No accounts")); ok {
		accountRows = append(accountRows, s)
	} else {
		for _, a := range p.accounts.Data {
			accountRows = append(accountRows, fmt.Sprintf("  %-28s %-12s %s", truncate(a.Name, 28), a.Type, formatDate(a.ExpiryDate)))
		}
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		strings.Join(header, "\n"), "",
		strings.Join(taskRows, "\n"), "",
		strings.Join(accountRows, "\n"), "",
		mutedStyle.Render("  e: edit  r: refresh  esc: back"),
	)
	return panelStyle.Width(w).Render(body)
}

func emptyIf(cond bool, msg string) string {
	if cond {
		return msg
	}
	return ""
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
