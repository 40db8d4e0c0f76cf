package filter

import (
	"slices"
	"strconv"
	"strings"

	"github.com/sadopc/opsdeck/internal/store"
)

type ProjectFilter struct {
	Status      string
	SearchQuery string
}

func (f ProjectFilter) ActiveCount() int {
	return countSet(f.Status, f.SearchQuery)
}

func MatchProject(p store.Project, f ProjectFilter) bool {
	if f.Status != "" && string(p.Status) != f.Status {
		return false
	}
	return f.SearchQuery == "" || containsFold(f.SearchQuery, p.Name, p.Description)
}

func Projects(list []store.ProjectStats, f ProjectFilter) []store.ProjectStats {
	out := make([]store.ProjectStats, 0, len(list))
	for _, p := range list {
		if MatchProject(p.Project, f) {
			out = append(out, p)
		}
	}
	return out
}

type PromptFilter struct {
	Tag         string
	ProjectID   string
	SearchQuery string
}

func (f PromptFilter) ActiveCount() int {
	return countSet(f.Tag, f.ProjectID, f.SearchQuery)
}

// MatchPrompt searches title, content, description and tags.
func MatchPrompt(p store.Prompt, f PromptFilter) bool {
	if f.SearchQuery != "" && !containsFold(f.SearchQuery, append([]string{p.Title, p.Content, p.Description}, p.Tags...)...) {
		return false
	}
	if f.Tag != "" && !slices.ContainsFunc(p.Tags, func(t string) bool { return strings.EqualFold(t, f.Tag) }) {
		return false
	}
	return matchProjectRef(p.ProjectID, f.ProjectID)
}

func Prompts(list []store.Prompt, f PromptFilter) []store.Prompt {
	out := make([]store.Prompt, 0, len(list))
	for _, p := range list {
		if MatchPrompt(p, f) {
			out = append(out, p)
		}
	}
	return out
}

// Tags collects the distinct prompt tags in first-seen order.
func Tags(list []store.Prompt) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, p := range list {
		for _, t := range p.Tags {
			k := strings.ToLower(t)
			if !seen[k] {
				seen[k] = true
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// ProjectLabel names a project reference for display: "No Project" for
// none, "Unknown" for an id missing from names.
func ProjectLabel(ref *int64, names map[int64]string) string {
	if ref == nil {
		return "No Project"
	}
	if n, ok := names[*ref]; ok {
		return n
	}
	return "Unknown"
}

// ProjectNames indexes project names by id.
func ProjectNames(list []store.Project) map[int64]string {
	m := make(map[int64]string, len(list))
	for _, p := range list {
		m[p.ID] = p.Name
	}
	return m
}

// ProjectOptionValue is the filter value for a project id.
func ProjectOptionValue(id int64) string { return strconv.FormatInt(id, 10) }
