// Package filter derives filtered views of fetched collections. Every
// function is pure: results are subsets of the input in input order, and
// a filter field holding the empty string imposes no constraint.
package filter

import (
	"strconv"
	"strings"
	"time"

	"github.com/sadopc/opsdeck/internal/store"
)

// NoProject is the ProjectID value selecting records without a project.
const NoProject = "none"

// DefaultHorizonDays is how far ahead "expiring soon" looks.
const DefaultHorizonDays = 30

type ExpiryStatus string

const (
	Expired      ExpiryStatus = "expired"
	ExpiringSoon ExpiryStatus = "expiring-soon"
	Active       ExpiryStatus = "active"
	NoExpiry     ExpiryStatus = "no-expiry"
)

var ExpiryStatuses = []ExpiryStatus{Expired, ExpiringSoon, Active, NoExpiry}

// AccountFilter is the account screen's filter state.
type AccountFilter struct {
	Type         string
	Platform     string
	ProjectID    string
	ExpiryStatus string
}

// ActiveCount is the number of fields holding a value.
func (f AccountFilter) ActiveCount() int {
	return countSet(f.Type, f.Platform, f.ProjectID, f.ExpiryStatus)
}

// Window fixes "today" (date only) and the expiring-soon horizon.
type Window struct {
	Today time.Time
	Days  int
}

// NewWindow truncates now to its calendar date.
func NewWindow(now time.Time, days int) Window {
	if days <= 0 {
		days = DefaultHorizonDays
	}
	return Window{Today: dateOf(now), Days: days}
}

func (w Window) horizon() time.Time { return w.Today.AddDate(0, 0, w.Days) }

// dateOf reads the calendar date of t in t's location and returns it as
// UTC midnight, so dates from different zones compare by day.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ClassifyExpiry lists every status an expiry date satisfies. A date
// inside the horizon is both ExpiringSoon and Active.
func ClassifyExpiry(expiry *time.Time, w Window) []ExpiryStatus {
	var out []ExpiryStatus
	for _, s := range ExpiryStatuses {
		if matchExpiry(expiry, s, w) {
			out = append(out, s)
		}
	}
	return out
}

func matchExpiry(expiry *time.Time, status ExpiryStatus, w Window) bool {
	switch status {
	case NoExpiry:
		return expiry == nil
	case Expired, ExpiringSoon, Active:
	default:
		// an unknown status is still a set filter; like a bad project id it
		// matches nothing
		return false
	}
	if expiry == nil {
		return false
	}
	day := dateOf(*expiry)
	switch status {
	case Expired:
		return day.Before(w.Today)
	case ExpiringSoon:
		return !day.Before(w.Today) && !day.After(w.horizon())
	case Active:
		// TODO: exclude dates inside the horizon once the accounts screen
		// stops relying on the overlap with ExpiringSoon.
		return !day.Before(w.Today)
	}
	return false
}

// MatchAccount reports whether a satisfies the search text and every set
// filter field.
func MatchAccount(a store.Account, search string, f AccountFilter, w Window) bool {
	if search != "" && !containsFold(search, a.Name, a.Username, a.ProjectName) {
		return false
	}
	if f.Type != "" && string(a.Type) != f.Type {
		return false
	}
	// platform means nothing outside social media accounts
	if f.Type == string(store.AccountSocialMedia) && f.Platform != "" && a.Platform != f.Platform {
		return false
	}
	if !matchProjectRef(a.ProjectID, f.ProjectID) {
		return false
	}
	if f.ExpiryStatus != "" && !matchExpiry(a.ExpiryDate, ExpiryStatus(f.ExpiryStatus), w) {
		return false
	}
	return true
}

// Accounts returns the accounts matching search and f.
func Accounts(list []store.Account, search string, f AccountFilter, w Window) []store.Account {
	out := make([]store.Account, 0, len(list))
	for _, a := range list {
		if MatchAccount(a, search, f, w) {
			out = append(out, a)
		}
	}
	return out
}

func matchProjectRef(ref *int64, want string) bool {
	switch want {
	case "":
		return true
	case NoProject:
		return ref == nil
	}
	return ref != nil && strconv.FormatInt(*ref, 10) == want
}

// containsFold reports whether any field contains needle, ignoring case.
func containsFold(needle string, fields ...string) bool {
	needle = strings.ToLower(needle)
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func countSet(values ...string) int {
	n := 0
	for _, v := range values {
		if v != "" {
			n++
		}
	}
	return n
}
