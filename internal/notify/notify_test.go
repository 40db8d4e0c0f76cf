package notify

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type call struct {
	userID  int64
	title   string
	variant string
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestCenterKeepsLatestToasts(t *testing.T) {
	c := NewCenter(nil, quietLogger(), 2)
	if _, ok := c.Latest(); ok {
		t.Fatal("expected no toast yet")
	}
	c.Notify(Info("one", ""))
	c.Notify(Info("two", ""))
	c.Notify(Error("three", "boom"))

	recent := c.Recent()
	if len(recent) != 2 || recent[0].Title != "two" || recent[1].Title != "three" {
		t.Fatalf("unexpected toasts: %+v", recent)
	}
	latest, _ := c.Latest()
	if latest.Variant != VariantDestructive || latest.At.IsZero() {
		t.Fatalf("unexpected latest toast: %+v", latest)
	}
}

func TestCenterRecordsOnlyForSignedInUser(t *testing.T) {
	var calls []call
	rec := RecorderFunc(func(userID int64, title, _, variant string) error {
		calls = append(calls, call{userID, title, variant})
		return nil
	})
	c := NewCenter(rec, quietLogger(), 0)

	c.Notify(Info("anonymous", ""))
	if len(calls) != 0 {
		t.Fatalf("recorded without a user: %+v", calls)
	}

	c.SetUser(5)
	c.Notify(Toast{Title: "saved"})
	if len(calls) != 1 || calls[0] != (call{5, "saved", "default"}) {
		t.Fatalf("unexpected calls: %+v", calls)
	}

	c.SetUser(0)
	c.Notify(Error("failed", ""))
	if len(calls) != 1 {
		t.Fatalf("recorded after sign out: %+v", calls)
	}
}

func TestCenterLogsRecorderFailure(t *testing.T) {
	log, hook := test.NewNullLogger()
	rec := RecorderFunc(func(int64, string, string, string) error { return errors.New("disk full") })
	c := NewCenter(rec, log, 0)
	c.SetUser(1)
	c.Notify(Error("Failed to load tasks", "database is locked"))

	var sawWarn, sawError bool
	for _, e := range hook.AllEntries() {
		switch e.Level {
		case logrus.WarnLevel:
			sawWarn = e.Data["title"] == "Failed to load tasks"
		case logrus.ErrorLevel:
			sawError = true
		}
	}
	if !sawWarn || !sawError {
		t.Fatalf("expected warn and error entries, got %+v", hook.AllEntries())
	}
}

func TestCmdNotifiesAndReturnsMsg(t *testing.T) {
	c := NewCenter(nil, quietLogger(), 0)
	msg := Cmd(c, Info("hello", "world"))()
	m, ok := msg.(Msg)
	if !ok || m.Toast.Title != "hello" {
		t.Fatalf("unexpected msg %#v", msg)
	}
	if latest, _ := c.Latest(); latest.Title != "hello" {
		t.Fatalf("center did not receive toast: %+v", latest)
	}
}
