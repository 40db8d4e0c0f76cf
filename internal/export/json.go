package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/opsdeck/internal/filter"
	"github.com/sadopc/opsdeck/internal/store"
)

type jsonExport[T any] struct {
	ExportedAt string `json:"exported_at"`
	Count      int    `json:"count"`
	Items      []T    `json:"items"`
}

type jsonAccount struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Platform string `json:"platform,omitempty"`
	Project  string `json:"project"`
	URL      string `json:"url,omitempty"`
	Username string `json:"username,omitempty"`
	Expiry   string `json:"expiry_date,omitempty"`

	Domain  *store.DomainDetails      `json:"domain,omitempty"`
	Social  *store.SocialMediaDetails `json:"social_media,omitempty"`
	Service *store.ServiceDetails     `json:"service,omitempty"`
}

type jsonTask struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Project     string `json:"project"`
	Assignee    string `json:"assignee"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	Deadline    string `json:"deadline,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// AccountsToJSON writes accounts with their detail records. Passwords are
// never written.
func AccountsToJSON(accounts []store.Account, projects map[int64]string, path string) error {
	items := make([]jsonAccount, 0, len(accounts))
	for _, a := range accounts {
		items = append(items, jsonAccount{
			ID:       a.ID,
			Name:     a.Name,
			Type:     string(a.Type),
			Platform: a.Platform,
			Project:  filter.ProjectLabel(a.ProjectID, projects),
			URL:      a.URL,
			Username: a.Username,
			Expiry:   formatDate(a.ExpiryDate),
			Domain:   a.Domain,
			Social:   a.Social,
			Service:  a.Service,
		})
	}
	return writeJSON(path, items)
}

func TasksToJSON(tasks []store.Task, projects map[int64]string, users map[int64]string, path string) error {
	items := make([]jsonTask, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, jsonTask{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Project:     filter.ProjectLabel(t.ProjectID, projects),
			Assignee:    assigneeLabel(t.AssigneeID, users),
			Priority:    string(t.Priority),
			Status:      string(t.Status),
			Deadline:    formatDate(t.Deadline),
			CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return writeJSON(path, items)
}

func writeJSON[T any](path string, items []T) error {
	data, err := json.MarshalIndent(jsonExport[T]{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(items),
		Items:      items,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
