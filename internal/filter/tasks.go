package filter

import (
	"strconv"
	"time"

	"github.com/sadopc/opsdeck/internal/store"
)

// Unassigned is the Assignee value selecting tasks nobody owns.
const Unassigned = "unassigned"

type DeadlineStatus string

const (
	Overdue    DeadlineStatus = "overdue"
	DueSoon    DeadlineStatus = "due-soon"
	NoDeadline DeadlineStatus = "no-deadline"
)

// DueSoonDays is the look-ahead for DueSoon.
const DueSoonDays = 7

// TaskFilter is the task screen's filter state.
type TaskFilter struct {
	Project  string
	Assignee string
	Priority string
	Status   string
	Deadline string
}

func (f TaskFilter) ActiveCount() int {
	return countSet(f.Project, f.Assignee, f.Priority, f.Status, f.Deadline)
}

// MatchTask checks t against search (title and description) and f.
// today is only consulted for the deadline field.
func MatchTask(t store.Task, search string, f TaskFilter, today time.Time) bool {
	if search != "" && !containsFold(search, t.Title, t.Description) {
		return false
	}
	if !matchProjectRef(t.ProjectID, f.Project) {
		return false
	}
	switch f.Assignee {
	case "":
	case Unassigned:
		if t.AssigneeID != nil {
			return false
		}
	default:
		if t.AssigneeID == nil || strconv.FormatInt(*t.AssigneeID, 10) != f.Assignee {
			return false
		}
	}
	if f.Priority != "" && string(t.Priority) != f.Priority {
		return false
	}
	if f.Status != "" && t.Status != store.NormalizeTaskStatus(f.Status) {
		return false
	}
	if f.Deadline != "" && !matchDeadline(t, DeadlineStatus(f.Deadline), dateOf(today)) {
		return false
	}
	return true
}

func matchDeadline(t store.Task, status DeadlineStatus, today time.Time) bool {
	switch status {
	case NoDeadline:
		return t.Deadline == nil
	case Overdue:
		return t.Deadline != nil && t.Status != store.StatusDone && dateOf(*t.Deadline).Before(today)
	case DueSoon:
		if t.Deadline == nil {
			return false
		}
		day := dateOf(*t.Deadline)
		return !day.Before(today) && !day.After(today.AddDate(0, 0, DueSoonDays))
	}
	return true
}

// Tasks returns the tasks matching search and f.
func Tasks(list []store.Task, search string, f TaskFilter, today time.Time) []store.Task {
	out := make([]store.Task, 0, len(list))
	for _, t := range list {
		if MatchTask(t, search, f, today) {
			out = append(out, t)
		}
	}
	return out
}

// CountByStatus tallies tasks per status for the dashboard chart.
func CountByStatus(list []store.Task) map[store.TaskStatus]int {
	counts := make(map[store.TaskStatus]int, len(store.TaskStatuses))
	for _, t := range list {
		counts[t.Status]++
	}
	return counts
}
