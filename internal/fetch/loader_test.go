package fetch

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/opsdeck/internal/notify"
	"github.com/sadopc/opsdeck/internal/store"
)

type recordingNotifier struct {
	mu     sync.Mutex
	toasts []notify.Toast
}

func (r *recordingNotifier) Notify(t notify.Toast) {
	r.mu.Lock()
	r.toasts = append(r.toasts, t)
	r.mu.Unlock()
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.toasts)
}

// counter returns an accessor yielding 1, 2, 3... on each call.
func counter() (Accessor[int], *int) {
	n := 0
	return func() (int, error) {
		n++
		return n, nil
	}, &n
}

func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return cmd()
}

func TestLoadAppliesResult(t *testing.T) {
	acc, _ := counter()
	l := New("tasks", acc, nil)

	cmd := l.Load()
	if !l.Loading {
		t.Fatal("expected Loading while in flight")
	}
	handled, follow := l.Update(run(t, cmd))
	if !handled || follow != nil {
		t.Fatalf("handled=%v follow=%v", handled, follow)
	}
	if l.Loading || l.Data != 1 || l.Err != nil || !l.Loaded() {
		t.Fatalf("unexpected state: %+v", l)
	}
}

func TestLatestRequestWins(t *testing.T) {
	acc, _ := counter()
	l := New("tasks", acc, nil)

	first := l.Load()
	second := l.Load()

	// The second request resolves first, then the stale one arrives.
	secondMsg := run(t, second)
	firstMsg := run(t, first)

	l.Update(secondMsg)
	want := l.Data
	handled, _ := l.Update(firstMsg)
	if !handled {
		t.Fatal("stale result should still be recognised as ours")
	}
	if l.Data != want {
		t.Fatalf("stale result overwrote data: got %d, want %d", l.Data, want)
	}
	if l.Loading {
		t.Fatal("expected loading cleared by the latest result")
	}
}

func TestStaleResultDoesNotClearLoading(t *testing.T) {
	acc, _ := counter()
	l := New("tasks", acc, nil)

	first := l.Load()
	_ = l.Load()
	l.Update(run(t, first))
	if !l.Loading {
		t.Fatal("an outdated result must not end the newer load")
	}
}

func TestUnmountedLoaderIgnoresResults(t *testing.T) {
	acc, _ := counter()
	n := &recordingNotifier{}
	l := New("tasks", acc, n)

	cmd := l.Load()
	l.Unmount()
	msg := run(t, cmd)
	handled, follow := l.Update(msg)
	if !handled || follow != nil {
		t.Fatalf("handled=%v follow=%v", handled, follow)
	}
	if l.Data != 0 || l.Loaded() {
		t.Fatalf("unmounted loader applied data: %+v", l)
	}
	if l.Load() != nil {
		t.Fatal("unmounted loader should not issue loads")
	}
}

func TestErrorKeepsDataAndNotifies(t *testing.T) {
	fail := false
	acc := func() ([]string, error) {
		if fail {
			return nil, &store.QueryError{Op: "list tasks", Err: errors.New("database is locked")}
		}
		return []string{"a", "b"}, nil
	}
	n := &recordingNotifier{}
	l := New("tasks", acc, n)
	l.Update(run(t, l.Load()))

	fail = true
	_, follow := l.Update(run(t, l.Refresh()))
	if !slices.Equal(l.Data, []string{"a", "b"}) {
		t.Fatalf("previous data lost: %v", l.Data)
	}
	if l.Err == nil || l.Err.Kind != KindQuery || l.Err.Message != "database is locked" {
		t.Fatalf("unexpected error: %+v", l.Err)
	}
	if l.Loading {
		t.Fatal("loading should be cleared on error")
	}

	msg := run(t, follow)
	toast, ok := msg.(notify.Msg)
	if !ok {
		t.Fatalf("expected notify.Msg, got %T", msg)
	}
	if toast.Toast.Variant != notify.VariantDestructive || toast.Toast.Title != "Failed to load tasks" {
		t.Fatalf("unexpected toast: %+v", toast.Toast)
	}
	if n.count() != 1 {
		t.Fatalf("expected one notification, got %d", n.count())
	}

	fail = false
	l.Update(run(t, l.Refresh()))
	if l.Err != nil {
		t.Fatal("successful refresh should clear the error")
	}
}

func TestErrorWithoutNotifier(t *testing.T) {
	l := New("accounts", func() (int, error) { return 0, store.ErrAuthRequired }, nil)
	_, follow := l.Update(run(t, l.Load()))
	if follow != nil {
		t.Fatal("no notifier means no follow-up command")
	}
	if l.Err.Kind != KindAuth {
		t.Fatalf("expected auth error, got %+v", l.Err)
	}
}

func TestRetargetDropsOldData(t *testing.T) {
	l := New("project tasks", func() (string, error) { return "project 1", nil }, nil)
	old := l.Load()
	l.Update(run(t, l.Load()))
	if l.Data != "project 1" {
		t.Fatalf("got %q", l.Data)
	}

	cmd := l.Retarget(func() (string, error) { return "project 2", nil })
	if l.Data != "" || l.Loaded() {
		t.Fatal("retarget should clear data from the previous accessor")
	}
	// A result from before the retarget must not land.
	l.Update(run(t, old))
	if l.Data != "" {
		t.Fatalf("pre-retarget result applied: %q", l.Data)
	}
	l.Update(run(t, cmd))
	if l.Data != "project 2" {
		t.Fatalf("got %q", l.Data)
	}
}

func TestForeignResultsIgnored(t *testing.T) {
	a := New("a", func() (int, error) { return 1, nil }, nil)
	b := New("b", func() (int, error) { return 2, nil }, nil)

	msg := run(t, a.Load())
	_ = b.Load()
	if handled, _ := b.Update(msg); handled {
		t.Fatal("b handled a's result")
	}
	if handled, _ := b.Update("unrelated"); handled {
		t.Fatal("b handled a non-result message")
	}
}

func TestConcurrentLoadsShareOneCall(t *testing.T) {
	var calls int
	var mu sync.Mutex
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	acc := func() (int, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		started <- struct{}{}
		<-release
		return 42, nil
	}
	l := New("tasks", acc, nil)
	c1, c2 := l.Load(), l.Load()

	msgs := make(chan tea.Msg, 2)
	go func() { msgs <- c1() }()
	<-started
	go func() { msgs <- c2() }()
	// Give the second caller a chance to join the running call.
	for i := 0; i < 1000; i++ {
		select {
		case <-started:
			t.Fatal("second load ran its own call")
		default:
		}
	}
	close(release)
	for i := 0; i < 2; i++ {
		l.Update(<-msgs)
	}
	if l.Data != 42 || l.Loading {
		t.Fatalf("unexpected state: %+v", l)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls < 1 || calls > 2 {
		t.Fatalf("unexpected call count %d", calls)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		err   error
		kind  Kind
		msg   string
		title string
	}{
		{store.ErrAuthRequired, KindAuth, "Sign in to load accounts.", "Authentication required"},
		{fmt.Errorf("get account: %w", store.ErrNotFound), KindNotFound, "Accounts not found.", "Failed to load accounts"},
		{&store.ValidationError{Field: "name", Err: errors.New("required")}, KindValidation, "invalid name: required", "Failed to load accounts"},
		{errors.New("boom"), KindUnknown, "boom", "Failed to load accounts"},
	}
	for _, tt := range tests {
		got := Normalize("accounts", tt.err)
		if got.Kind != tt.kind || got.Message != tt.msg || got.Title != tt.title {
			t.Errorf("Normalize(%v) = %+v", tt.err, got)
		}
	}
	if Normalize("accounts", nil) != nil {
		t.Fatal("nil error should normalize to nil")
	}
}

func TestRetargetRemounts(t *testing.T) {
	l := New("comments", func() (string, error) { return "task 1", nil }, nil)
	l.Unmount()

	cmd := l.Retarget(func() (string, error) { return "task 2", nil })
	if !l.Mounted() {
		t.Fatal("expected Retarget to mount the loader")
	}
	l.Update(run(t, cmd))
	if l.Data != "task 2" {
		t.Fatalf("expected task 2, got %q", l.Data)
	}
}

func TestUnknownProjectLoadsEmpty(t *testing.T) {
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	defer s.Close()

	rec := &recordingNotifier{}
	l := New("project tasks", func() ([]store.Task, error) { return s.ListTasksByProject(999) }, rec)
	l.Update(run(t, l.Load()))

	if l.Data == nil || len(l.Data) != 0 {
		t.Fatalf("expected an empty slice, got %#v", l.Data)
	}
	if l.Loading || l.Err != nil || !l.Loaded() {
		t.Fatalf("loading=%v err=%v loaded=%v", l.Loading, l.Err, l.Loaded())
	}
	if rec.count() != 0 {
		t.Fatal("an empty result must not raise a toast")
	}
}
