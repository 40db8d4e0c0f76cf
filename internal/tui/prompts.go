package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/opsdeck/internal/fetch"
	"github.com/sadopc/opsdeck/internal/filter"
	"github.com/sadopc/opsdeck/internal/store"
)

type promptsModel struct {
	env    *env
	width  int
	height int

	prompts  fetch.Loader[[]store.Prompt]
	projects fetch.Loader[[]store.Project]

	cursor    int
	detail    bool
	detailID  int64
	search    searchBox
	filters   *filter.PromptFilter
	formType  string // "prompt", "edit_prompt", "filter"
	form      *huh.Form
	editingID int64

	// Form field pointers (survive value copies)
	fields *promptForm
}

type promptForm struct {
	title, content, description, tags, project string
}

func newPromptsModel(e *env) promptsModel {
	return promptsModel{
		env:      e,
		prompts:  fetch.New("prompts", e.store.ListPrompts, e.center),
		projects: fetch.New("projects", e.store.ListProjects, e.center),
		search:   newSearchBox("search prompts and tags"),
		filters:  &filter.PromptFilter{},
		fields:   &promptForm{},
	}
}

func (p *promptsModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

func (p promptsModel) formActive() bool { return p.form != nil || p.search.active }

func (p *promptsModel) refresh() tea.Cmd {
	return tea.Batch(p.prompts.Refresh(), p.projects.Refresh())
}

func (p promptsModel) receive(msg tea.Msg) (promptsModel, tea.Cmd, bool) {
	if ok, cmd := p.prompts.Update(msg); ok {
		p.cursor = clampCursor(p.cursor, len(p.visible()))
		return p, cmd, true
	}
	if ok, cmd := p.projects.Update(msg); ok {
		return p, cmd, true
	}
	return p, nil, false
}

func (p promptsModel) currentFilter() filter.PromptFilter {
	f := *p.filters
	f.SearchQuery = p.search.query()
	return f
}

func (p promptsModel) visible() []store.Prompt {
	return filter.Prompts(p.prompts.Data, p.currentFilter())
}

func (p promptsModel) selected() (store.Prompt, bool) {
	list := p.visible()
	if p.cursor < 0 || p.cursor >= len(list) {
		return store.Prompt{}, false
	}
	return list[p.cursor], true
}

func (p promptsModel) byID(id int64) (store.Prompt, bool) {
	i := slices.IndexFunc(p.prompts.Data, func(x store.Prompt) bool { return x.ID == id })
	if i < 0 {
		return store.Prompt{}, false
	}
	return p.prompts.Data[i], true
}

func (p promptsModel) update(msg tea.Msg) (promptsModel, tea.Cmd) {
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
		switch {
		case key.Matches(km, keys.Back):
			p.detail = false
		case key.Matches(km, keys.Edit):
			if prompt, ok := p.byID(p.detailID); ok {
				return p.showPromptForm(&prompt)
			}
		}
		return p, nil
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
		*p.filters = filter.PromptFilter{}
		p.search.input.SetValue("")
		p.cursor = 0
	case key.Matches(km, keys.Enter):
		if prompt, ok := p.selected(); ok {
			p.detail = true
			p.detailID = prompt.ID
		}
	case key.Matches(km, keys.New):
		return p.showPromptForm(nil)
	case key.Matches(km, keys.Edit):
		if prompt, ok := p.selected(); ok {
			return p.showPromptForm(&prompt)
		}
	case key.Matches(km, keys.Delete):
		if prompt, ok := p.selected(); ok {
			sess, st, id := p.env.session, p.env.store, prompt.ID
			return p, mutate(viewPrompts, "delete prompt", func() error {
				return st.DeletePrompt(sess, id)
			})
		}
	}
	return p, nil
}

func (p promptsModel) showPromptForm(existing *store.Prompt) (promptsModel, tea.Cmd) {
	f := p.fields
	*f = promptForm{project: filter.NoProject}
	p.formType = "prompt"
	if existing != nil {
		p.formType = "edit_prompt"
		p.editingID = existing.ID
		*f = promptForm{
			title:       existing.Title,
			content:     existing.Content,
			description: existing.Description,
			tags:        strings.Join(existing.Tags, ", "),
			project:     refValue(existing.ProjectID),
		}
		if f.project == "" {
			f.project = filter.NoProject
		}
	}

	p.form = newForm(
		huh.NewGroup(
			huh.NewInput().Title("Title").Value(&f.title).Validate(required("title")),
			huh.NewText().Title("Prompt").Lines(8).Value(&f.content).Validate(required("content")),
		),
		huh.NewGroup(
			huh.NewInput().Title("Description").Value(&f.description),
			huh.NewInput().Title("Tags").Description("comma separated").Value(&f.tags),
			huh.NewSelect[string]().Title("Project").Options(projectOptions(p.projects.Data, "No Project")...).Value(&f.project),
		),
	)
	return p, p.form.Init()
}

func (p promptsModel) showFilterForm() (promptsModel, tea.Cmd) {
	p.formType = "filter"
	tags := []huh.Option[string]{anyOption("Any tag")}
	for _, t := range filter.Tags(p.prompts.Data) {
		tags = append(tags, huh.NewOption(t, t))
	}
	projects := append([]huh.Option[string]{anyOption("Any project")}, projectOptions(p.projects.Data, "No Project")...)

	p.form = newForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Tag").Options(tags...).Value(&p.filters.Tag),
			huh.NewSelect[string]().Title("Project").Options(projects...).Value(&p.filters.ProjectID),
		).Title("Filter prompts"),
	)
	return p, p.form.Init()
}

func (p promptsModel) updateForm(msg tea.Msg) (promptsModel, tea.Cmd) {
	form, cmd, state := stepForm(p.form, msg)
	p.form = form
	if state != formSubmitted {
		return p, cmd
	}
	p.form = nil
	if p.formType == "filter" {
		p.cursor = 0
		return p, nil
	}

	f := *p.fields
	in := store.PromptInput{
		Title:       strings.TrimSpace(f.title),
		Content:     f.content,
		Description: strings.TrimSpace(f.description),
		Tags:        store.SplitTags(f.tags),
		ProjectID:   parseRef(f.project),
	}
	sess, st := p.env.session, p.env.store
	if p.formType == "edit_prompt" {
		id := p.editingID
		return p, mutate(viewPrompts, "update prompt", func() error {
			return st.UpdatePrompt(sess, id, in)
		})
	}
	return p, mutate(viewPrompts, "create prompt", func() error {
		_, err := st.CreatePrompt(sess, in)
		return err
	})
}

func (p promptsModel) view() string {
	w := p.width - 4
	if p.form != nil {
		title := map[string]string{"prompt": "New Prompt", "edit_prompt": "Edit Prompt", "filter": "Filter"}[p.formType]
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", p.form.View()))
	}
	if p.detail {
		return p.renderDetail(w)
	}
	return p.renderList(w)
}

func renderTags(tags []string) string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = highlightStyle.Render("#" + t)
	}
	return strings.Join(out, " ")
}

func (p promptsModel) renderList(w int) string {
	rows := []string{titleStyle.Render("Prompts") + " " + badge(p.currentFilter().ActiveCount())}
	if s := p.search.view(); s != "" {
		rows = append(rows, s)
	}
	if p.prompts.Loaded() {
		if banner := staleBanner(p.prompts.Err); banner != "" {
			rows = append(rows, banner)
		}
	}
	rows = append(rows, "")

	list := p.visible()
	empty := ""
	if len(list) == 0 {
		empty = "No prompts yet. Press n to write one."
		if len(p.prompts.Data) > 0 {
			empty = "No prompts match. Press F to clear filters."
		}
	}
	if s, ok := loadState(&p.prompts, empty); ok {
		rows = append(rows, s)
		return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
	}

	names := filter.ProjectNames(p.projects.Data)
	for i, prompt := range list {
		cursor, style := cursorPrefix(i == p.cursor)
		rows = append(rows,
			style.Render(fmt.Sprintf("%s%-32s %-16s ", cursor, truncate(prompt.Title, 32),
				truncate(filter.ProjectLabel(prompt.ProjectID, names), 16)))+renderTags(prompt.Tags))
	}
	rows = append(rows, "", mutedStyle.Render("  n: new  e: edit  d: delete  enter: read  f: filter  /: search"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (p promptsModel) renderDetail(w int) string {
	prompt, ok := p.byID(p.detailID)
	if !ok {
		return errorPanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			errorStyle.Render("Prompt not found"), "", mutedStyle.Render("esc: back")))
	}
	rows := []string{titleStyle.Render(prompt.Title)}
	if prompt.Description != "" {
		rows = append(rows, subtitleStyle.Render(prompt.Description))
	}
	if len(prompt.Tags) > 0 {
		rows = append(rows, renderTags(prompt.Tags))
	}
	rows = append(rows, "",
		lipgloss.NewStyle().Width(max(w-4, 20)).Render(prompt.Content),
		"", mutedStyle.Render("  e: edit  esc: back"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
