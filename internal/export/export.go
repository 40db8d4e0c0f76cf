// Package export writes accounts and tasks to CSV or JSON files.
package export

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sadopc/opsdeck/internal/store"
)

type Kind string

const (
	KindAccounts Kind = "accounts"
	KindTasks    Kind = "tasks"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// FileName builds "opsdeck-<kind>-<date>.<format>" inside dir.
func FileName(dir string, kind Kind, format Format, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("opsdeck-%s-%s.%s", kind, now.Format("2006-01-02"), format))
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func assigneeLabel(id *int64, users map[int64]string) string {
	if id == nil {
		return "Unassigned"
	}
	if n, ok := users[*id]; ok {
		return n
	}
	return "Unknown"
}

// accountBilling flattens whichever detail record carries provider and cost.
func accountBilling(a store.Account) (provider, plan, cost string) {
	switch {
	case a.Service != nil:
		return a.Service.Provider, a.Service.Plan,
			strconv.FormatFloat(a.Service.MonthlyCost, 'f', 2, 64) + "/" + a.Service.BillingCycle
	case a.Domain != nil:
		if a.Domain.YearlyCost != nil {
			cost = strconv.FormatFloat(*a.Domain.YearlyCost, 'f', 2, 64) + "/yearly"
		}
		return a.Domain.Registrar, a.Domain.HostingPlan, cost
	}
	return "", "", ""
}
