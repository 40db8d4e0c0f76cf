package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/sadopc/opsdeck/internal/filter"
	"github.com/sadopc/opsdeck/internal/store"
)

// AccountsToCSV writes one row per account. Passwords are never written.
func AccountsToCSV(accounts []store.Account, projects map[int64]string, path string) error {
	header := []string{"ID", "Name", "Type", "Platform", "Project", "URL", "Username", "Expiry", "Provider", "Plan", "Cost"}
	rows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		provider, plan, cost := accountBilling(a)
		rows = append(rows, []string{
			a.ID,
			a.Name,
			string(a.Type),
			a.Platform,
			filter.ProjectLabel(a.ProjectID, projects),
			a.URL,
			a.Username,
			formatDate(a.ExpiryDate),
			provider,
			plan,
			cost,
		})
	}
	return writeCSV(path, header, rows)
}

func TasksToCSV(tasks []store.Task, projects map[int64]string, users map[int64]string, path string) error {
	header := []string{"ID", "Title", "Project", "Assignee", "Priority", "Status", "Deadline", "Description"}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.Title,
			filter.ProjectLabel(t.ProjectID, projects),
			assigneeLabel(t.AssigneeID, users),
			string(t.Priority),
			string(t.Status),
			formatDate(t.Deadline),
			t.Description,
		})
	}
	return writeCSV(path, header, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
