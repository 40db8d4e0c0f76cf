// Package notify carries user-facing toasts from the data layer to the
// screen and to the stored notification list.
package notify

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Toast is a short notification.
type Toast struct {
	Title       string
	Description string
	Variant     Variant
	At          time.Time
}

// Notifier receives toasts. Implementations must be safe to call from any
// goroutine.
type Notifier interface {
	Notify(Toast)
}

// Error builds a destructive toast.
func Error(title, description string) Toast {
	return Toast{Title: title, Description: description, Variant: VariantDestructive}
}

// Info builds a default toast.
func Info(title, description string) Toast {
	return Toast{Title: title, Description: description, Variant: VariantDefault}
}

// Recorder persists toasts for a user.
type Recorder interface {
	AddNotification(userID int64, title, description, variant string) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(userID int64, title, description, variant string) error

func (f RecorderFunc) AddNotification(userID int64, title, description, variant string) error {
	return f(userID, title, description, variant)
}

// Center keeps the most recent toasts for display and forwards them to a
// Recorder when a user is signed in.
type Center struct {
	mu     sync.Mutex
	toasts []Toast
	limit  int
	userID int64
	rec    Recorder
	log    logrus.FieldLogger
}

func NewCenter(rec Recorder, log logrus.FieldLogger, limit int) *Center {
	if limit <= 0 {
		limit = 20
	}
	return &Center{rec: rec, log: log, limit: limit}
}

// SetUser switches the user toasts are recorded for; 0 disables recording.
func (c *Center) SetUser(id int64) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

func (c *Center) Notify(t Toast) {
	if t.Variant == "" {
		t.Variant = VariantDefault
	}
	if t.At.IsZero() {
		t.At = time.Now()
	}

	c.mu.Lock()
	c.toasts = append(c.toasts, t)
	if len(c.toasts) > c.limit {
		c.toasts = c.toasts[len(c.toasts)-c.limit:]
	}
	userID := c.userID
	c.mu.Unlock()

	entry := c.log.WithFields(logrus.Fields{"title": t.Title, "variant": t.Variant})
	if t.Variant == VariantDestructive {
		entry.Warn(t.Description)
	} else {
		entry.Debug(t.Description)
	}

	if c.rec != nil && userID != 0 {
		if err := c.rec.AddNotification(userID, t.Title, t.Description, string(t.Variant)); err != nil {
			c.log.WithError(err).Error("record notification")
		}
	}
}

// Latest returns the newest toast, if any.
func (c *Center) Latest() (Toast, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.toasts) == 0 {
		return Toast{}, false
	}
	return c.toasts[len(c.toasts)-1], true
}

// Recent returns a copy of the kept toasts, oldest first.
func (c *Center) Recent() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Toast, len(c.toasts))
	copy(out, c.toasts)
	return out
}

// Msg is delivered to the Bubble Tea program when a toast should be shown.
type Msg struct {
	Toast Toast
}

// Cmd reports t through n and returns a command that redraws with it.
func Cmd(n Notifier, t Toast) tea.Cmd {
	return func() tea.Msg {
		n.Notify(t)
		return Msg{Toast: t}
	}
}
