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

type tasksModel struct {
	env    *env
	width  int
	height int

	tasks    fetch.Loader[[]store.Task]
	projects fetch.Loader[[]store.Project]
	users    fetch.Loader[[]store.User]
	comments fetch.Loader[[]store.Comment]

	cursor    int
	detail    bool
	detailID  int64
	search    searchBox
	filters   *filter.TaskFilter
	formType  string // "task", "edit_task", "comment", "filter"
	form      *huh.Form
	editingID int64

	// Form field pointers (survive value copies)
	fields *taskForm
}

type taskForm struct {
	title, description, project, assignee string
	priority, status, deadline, comment   string
}

func newTasksModel(e *env) tasksModel {
	return tasksModel{
		env:      e,
		tasks:    fetch.New("tasks", e.store.ListTasks, e.center),
		projects: fetch.New("projects", e.store.ListProjects, e.center),
		users:    fetch.New("users", e.store.ListUsers, e.center),
		comments: fetch.New[[]store.Comment]("comments", nil, e.center),
		search:   newSearchBox("search title or description"),
		filters:  &filter.TaskFilter{},
		fields:   &taskForm{},
	}
}

func (t *tasksModel) setSize(w, h int) {
	t.width = w
	t.height = h
}

func (t tasksModel) formActive() bool { return t.form != nil || t.search.active }

func (t *tasksModel) refresh() tea.Cmd {
	cmds := []tea.Cmd{t.tasks.Refresh(), t.projects.Refresh(), t.users.Refresh()}
	if t.detail {
		cmds = append(cmds, t.comments.Refresh())
	}
	return tea.Batch(cmds...)
}

func (t tasksModel) receive(msg tea.Msg) (tasksModel, tea.Cmd, bool) {
	if ok, cmd := t.tasks.Update(msg); ok {
		t.cursor = clampCursor(t.cursor, len(t.visible()))
		return t, cmd, true
	}
	if ok, cmd := t.projects.Update(msg); ok {
		return t, cmd, true
	}
	if ok, cmd := t.users.Update(msg); ok {
		return t, cmd, true
	}
	if ok, cmd := t.comments.Update(msg); ok {
		return t, cmd, true
	}
	return t, nil, false
}

func (t tasksModel) visible() []store.Task {
	return filter.Tasks(t.tasks.Data, t.search.query(), *t.filters, t.env.now())
}

func (t tasksModel) selected() (store.Task, bool) {
	list := t.visible()
	if t.cursor < 0 || t.cursor >= len(list) {
		return store.Task{}, false
	}
	return list[t.cursor], true
}

func (t tasksModel) byID(id int64) (store.Task, bool) {
	i := slices.IndexFunc(t.tasks.Data, func(x store.Task) bool { return x.ID == id })
	if i < 0 {
		return store.Task{}, false
	}
	return t.tasks.Data[i], true
}

func (t tasksModel) update(msg tea.Msg) (tasksModel, tea.Cmd) {
	if t.form != nil {
		return t.updateForm(msg)
	}
	if t.search.active {
		var cmd tea.Cmd
		t.search, cmd = t.search.update(msg)
		t.cursor = clampCursor(t.cursor, len(t.visible()))
		return t, cmd
	}
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return t, nil
	}
	if t.detail {
		return t.updateDetail(km)
	}

	switch {
	case key.Matches(km, keys.Up):
		if t.cursor > 0 {
			t.cursor--
		}
	case key.Matches(km, keys.Down):
		if t.cursor < len(t.visible())-1 {
			t.cursor++
		}
	case key.Matches(km, keys.Refresh):
		cmd := t.refresh()
		return t, cmd
	case key.Matches(km, keys.Search):
		var cmd tea.Cmd
		t.search, cmd = t.search.open()
		return t, cmd
	case key.Matches(km, keys.Filter):
		return t.showFilterForm()
	case key.Matches(km, keys.ClearFilter):
		*t.filters = filter.TaskFilter{}
		t.search.input.SetValue("")
		t.cursor = 0
	case key.Matches(km, keys.Enter):
		if task, ok := t.selected(); ok {
			return t.openDetail(task.ID)
		}
	case key.Matches(km, keys.New):
		return t.showTaskForm(nil)
	case key.Matches(km, keys.Edit):
		if task, ok := t.selected(); ok {
			return t.showTaskForm(&task)
		}
	case key.Matches(km, keys.Status):
		if task, ok := t.selected(); ok {
			return t, t.cycleStatus(task)
		}
	case key.Matches(km, keys.Delete):
		if task, ok := t.selected(); ok {
			sess, st, id := t.env.session, t.env.store, task.ID
			return t, mutate(viewTasks, "delete task", func() error {
				return st.DeleteTask(sess, id)
			})
		}
	}
	return t, nil
}

func (t tasksModel) openDetail(id int64) (tasksModel, tea.Cmd) {
	st := t.env.store
	t.detail = true
	t.detailID = id
	cmd := t.comments.Retarget(func() ([]store.Comment, error) { return st.ListComments(id) })
	return t, cmd
}

func (t tasksModel) updateDetail(km tea.KeyMsg) (tasksModel, tea.Cmd) {
	task, ok := t.byID(t.detailID)
	switch {
	case key.Matches(km, keys.Back):
		t.detail = false
		t.comments.Unmount()
	case key.Matches(km, keys.Refresh):
		cmd := t.refresh()
		return t, cmd
	case key.Matches(km, keys.Comment):
		return t.showCommentForm()
	case key.Matches(km, keys.Edit):
		if ok {
			return t.showTaskForm(&task)
		}
	case key.Matches(km, keys.Status):
		if ok {
			return t, t.cycleStatus(task)
		}
	}
	return t, nil
}

func (t tasksModel) cycleStatus(task store.Task) tea.Cmd {
	i := slices.Index(store.TaskStatuses, task.Status)
	next := store.TaskStatuses[(i+1)%len(store.TaskStatuses)]
	sess, st, id := t.env.session, t.env.store, task.ID
	return mutate(viewTasks, "update task status", func() error {
		return st.SetTaskStatus(sess, id, next)
	})
}

func (t tasksModel) showTaskForm(existing *store.Task) (tasksModel, tea.Cmd) {
	f := t.fields
	*f = taskForm{priority: t.defaultPriority(), status: string(store.StatusTodo)}
	t.formType = "task"
	if existing != nil {
		t.formType = "edit_task"
		t.editingID = existing.ID
		*f = taskForm{
			title:       existing.Title,
			description: existing.Description,
			project:     refValue(existing.ProjectID),
			assignee:    refValue(existing.AssigneeID),
			priority:    string(existing.Priority),
			status:      string(existing.Status),
		}
		if existing.Deadline != nil {
			f.deadline = formatDate(existing.Deadline)
		}
	}
	if f.project == "" {
		f.project = filter.NoProject
	}

	t.form = newForm(
		huh.NewGroup(
			huh.NewInput().Title("Title").Value(&f.title).Validate(required("title")),
			huh.NewText().Title("Description").Lines(3).Value(&f.description),
			huh.NewSelect[string]().Title("Project").Options(projectOptions(t.projects.Data, "No Project")...).Value(&f.project),
			huh.NewSelect[string]().Title("Assignee").Options(userOptions(t.users.Data)...).Value(&f.assignee),
		),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Priority").Options(stringOptions(store.TaskPriorities)...).Value(&f.priority),
			huh.NewSelect[string]().Title("Status").Options(stringOptions(store.TaskStatuses)...).Value(&f.status),
			huh.NewInput().Title("Deadline (YYYY-MM-DD)").Value(&f.deadline).Validate(validDate),
		),
	)
	return t, t.form.Init()
}

func (t tasksModel) defaultPriority() string {
	return t.env.setting("default_task_priority", string(store.PriorityMedium))
}

func (t tasksModel) showCommentForm() (tasksModel, tea.Cmd) {
	t.formType = "comment"
	t.fields.comment = ""
	t.form = newForm(
		huh.NewGroup(
			huh.NewText().Title("Comment").Lines(4).Value(&t.fields.comment).Validate(required("comment")),
		),
	)
	return t, t.form.Init()
}

func (t tasksModel) showFilterForm() (tasksModel, tea.Cmd) {
	t.formType = "filter"
	f := t.filters

	projects := append([]huh.Option[string]{anyOption("Any project")}, projectOptions(t.projects.Data, "No Project")...)
	assignees := []huh.Option[string]{anyOption("Anyone"), huh.NewOption("Unassigned", filter.Unassigned)}
	for _, u := range t.users.Data {
		assignees = append(assignees, huh.NewOption(displayName(u), refValue(&u.ID)))
	}
	deadlines := []huh.Option[string]{
		anyOption("Any deadline"),
		huh.NewOption("Overdue", string(filter.Overdue)),
		huh.NewOption("Due within a week", string(filter.DueSoon)),
		huh.NewOption("No deadline", string(filter.NoDeadline)),
	}

	t.form = newForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Project").Options(projects...).Value(&f.Project),
			huh.NewSelect[string]().Title("Assignee").Options(assignees...).Value(&f.Assignee),
			huh.NewSelect[string]().Title("Priority").Options(append([]huh.Option[string]{anyOption("Any priority")}, stringOptions(store.TaskPriorities)...)...).Value(&f.Priority),
			huh.NewSelect[string]().Title("Status").Options(append([]huh.Option[string]{anyOption("Any status")}, stringOptions(store.TaskStatuses)...)...).Value(&f.Status),
			huh.NewSelect[string]().Title("Deadline").Options(deadlines...).Value(&f.Deadline),
		).Title("Filter tasks"),
	)
	return t, t.form.Init()
}

func (t tasksModel) updateForm(msg tea.Msg) (tasksModel, tea.Cmd) {
	form, cmd, state := stepForm(t.form, msg)
	t.form = form
	if state != formSubmitted {
		return t, cmd
	}
	t.form = nil

	sess, st := t.env.session, t.env.store
	switch t.formType {
	case "filter":
		t.cursor = 0
		return t, nil
	case "comment":
		id, body := t.detailID, strings.TrimSpace(t.fields.comment)
		return t, mutate(viewTasks, "add comment", func() error {
			_, err := st.AddComment(sess, id, body)
			return err
		})
	}

	f := *t.fields
	deadline, _ := parseDate(f.deadline)
	in := store.TaskInput{
		Title:       f.title,
		Description: f.description,
		ProjectID:   parseRef(f.project),
		AssigneeID:  parseRef(f.assignee),
		Priority:    store.TaskPriority(f.priority),
		Status:      store.TaskStatus(f.status),
		Deadline:    deadline,
	}
	if t.formType == "edit_task" {
		id := t.editingID
		return t, mutate(viewTasks, "update task", func() error {
			return st.UpdateTask(sess, id, in)
		})
	}
	return t, mutate(viewTasks, "create task", func() error {
		_, err := st.CreateTask(sess, in)
		return err
	})
}

func (t tasksModel) view() string {
	w := t.width - 4
	if t.form != nil {
		title := map[string]string{
			"task": "New Task", "edit_task": "Edit Task", "comment": "New Comment", "filter": "Filter",
		}[t.formType]
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", t.form.View()))
	}
	if t.detail {
		return t.renderDetail(w)
	}
	return t.renderList(w)
}

func (t tasksModel) names() (map[int64]string, map[int64]string) {
	users := make(map[int64]string, len(t.users.Data))
	for _, u := range t.users.Data {
		users[u.ID] = displayName(u)
	}
	return filter.ProjectNames(t.projects.Data), users
}

func (t tasksModel) renderList(w int) string {
	active := t.filters.ActiveCount()
	if t.search.query() != "" {
		active++
	}
	rows := []string{titleStyle.Render("Tasks") + " " + badge(active)}
	if s := t.search.view(); s != "" {
		rows = append(rows, s)
	}
	if t.tasks.Loaded() {
		if banner := staleBanner(t.tasks.Err); banner != "" {
			rows = append(rows, banner)
		}
	}
	rows = append(rows, "")

	list := t.visible()
	empty := ""
	if len(list) == 0 {
		empty = "No tasks yet. Press n to create one."
		if len(t.tasks.Data) > 0 {
			empty = "No tasks match. Press F to clear filters."
		}
	}
	if s, ok := loadState(&t.tasks, empty); ok {
		rows = append(rows, s)
		return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
	}

	projects, users := t.names()
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-30s %-16s %-14s %-8s %-12s %s", "Title", "Project", "Assignee", "Priority", "Status", "Deadline")))
	for i, task := range list {
		cursor, style := cursorPrefix(i == t.cursor)
		assignee := "-"
		if task.AssigneeID != nil {
			assignee = users[*task.AssigneeID]
		}
		line := style.Render(fmt.Sprintf("%s%-30s %-16s %-14s ", cursor,
			truncate(task.Title, 30),
			truncate(filter.ProjectLabel(task.ProjectID, projects), 16),
			truncate(assignee, 14)))
		line += lipgloss.NewStyle().Width(9).Render(priorityLabel(task.Priority)) +
			lipgloss.NewStyle().Width(13).Render(statusLabel(task.Status)) + formatDate(task.Deadline)
		rows = append(rows, line)
	}
	rows = append(rows, "", mutedStyle.Render("  n: new  e: edit  s: status  d: delete  enter: comments  f: filter  /: search"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (t tasksModel) renderDetail(w int) string {
	task, ok := t.byID(t.detailID)
	if !ok {
		return errorPanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			errorStyle.Render("Task not found"), "", mutedStyle.Render("esc: back")))
	}
	projects, users := t.names()
	assignee := "Unassigned"
	if task.AssigneeID != nil {
		assignee = users[*task.AssigneeID]
	}

	rows := []string{
		titleStyle.Render(task.Title),
		fmt.Sprintf("%s · %s · %s · due %s",
			filter.ProjectLabel(task.ProjectID, projects), assignee, priorityLabel(task.Priority), formatDate(task.Deadline)),
		statusLabel(task.Status),
	}
	if task.Description != "" {
		rows = append(rows, "", task.Description)
	}
	rows = append(rows, "", titleStyle.Render("Comments"))

	if s, ok := loadState(&t.comments, emptyIf(len(t.comments.Data) == 0, "No comments yet")); ok {
		rows = append(rows, s)
	} else {
		for _, c := range t.comments.Data {
			rows = append(rows,
				highlightStyle.Render(c.Author)+" "+mutedStyle.Render(c.CreatedAt.Local().Format("Jan 02 15:04")),
				"  "+c.Body)
		}
	}
	rows = append(rows, "", mutedStyle.Render("  c: comment  s: status  e: edit  esc: back"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
