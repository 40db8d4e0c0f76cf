package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/sadopc/opsdeck/internal/filter"
	"github.com/sadopc/opsdeck/internal/store"
)

// formState is what a view does after feeding a form one message.
type formState int

const (
	formRunning formState = iota
	formSubmitted
	formCancelled
)

func newForm(groups ...*huh.Group) *huh.Form {
	return huh.NewForm(groups...).WithShowHelp(true).WithShowErrors(true)
}

// stepForm feeds msg to f. esc cancels.
func stepForm(f *huh.Form, msg tea.Msg) (*huh.Form, tea.Cmd, formState) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		return nil, nil, formCancelled
	}
	form, cmd := f.Update(msg)
	if nf, ok := form.(*huh.Form); ok {
		f = nf
	}
	switch f.State {
	case huh.StateCompleted:
		return f, cmd, formSubmitted
	case huh.StateAborted:
		return nil, cmd, formCancelled
	}
	return f, cmd, formRunning
}

// searchBox is the one-line search input shown above lists.
type searchBox struct {
	input  textinput.Model
	active bool
}

func newSearchBox(placeholder string) searchBox {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = placeholder
	ti.CharLimit = 80
	return searchBox{input: ti}
}

func (s searchBox) open() (searchBox, tea.Cmd) {
	s.active = true
	cmd := s.input.Focus()
	return s, cmd
}

// update edits the query. enter keeps it, esc clears it.
func (s searchBox) update(msg tea.Msg) (searchBox, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			s.active = false
			s.input.Blur()
			return s, nil
		case "esc":
			s.active = false
			s.input.Blur()
			s.input.SetValue("")
			return s, nil
		}
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s searchBox) query() string { return s.input.Value() }

func (s searchBox) view() string {
	if !s.active && s.query() == "" {
		return ""
	}
	return s.input.View()
}

// Option builders shared by forms and filter forms.

func anyOption(label string) huh.Option[string] { return huh.NewOption(label, "") }

func projectOptions(projects []store.Project, noneLabel string) []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption(noneLabel, filter.NoProject)}
	for _, p := range projects {
		opts = append(opts, huh.NewOption(p.Name, filter.ProjectOptionValue(p.ID)))
	}
	return opts
}

func userOptions(users []store.User) []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("Unassigned", "")}
	for _, u := range users {
		opts = append(opts, huh.NewOption(displayName(u), refValue(&u.ID)))
	}
	return opts
}

func stringOptions[T ~string](values []T) []huh.Option[string] {
	opts := make([]huh.Option[string], len(values))
	for i, v := range values {
		opts[i] = huh.NewOption(string(v), string(v))
	}
	return opts
}
