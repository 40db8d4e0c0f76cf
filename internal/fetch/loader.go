// Package fetch holds the loading state for one accessor: data, loading
// flag, normalized error, and a refresh operation that runs off the UI
// goroutine as a Bubble Tea command.
package fetch

import (
	"strconv"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/singleflight"

	"github.com/sadopc/opsdeck/internal/notify"
)

// Accessor performs one read against the store.
type Accessor[T any] func() (T, error)

var loaderIDs atomic.Int64

// Result is the message a load command produces. It is routed back to the
// loader that issued it by Update.
type Result[T any] struct {
	loader int64
	seq    uint64
	data   T
	err    error
}

// Loader tracks one accessor's data. The zero value is not usable; use New.
//
// Every Load bumps a request sequence; only the result carrying the latest
// sequence is applied, so when refreshes race the last one issued wins.
// Loads that overlap on the same accessor share one call through a
// singleflight group.
type Loader[T any] struct {
	Data    T
	Loading bool
	Err     *Error

	id       int64
	name     string
	accessor Accessor[T]
	notifier notify.Notifier
	group    *singleflight.Group
	gen      int
	seq      uint64
	loaded   bool
	mounted  bool
}

// New returns a mounted loader. name is used in error messages ("tasks",
// "accounts"). notifier may be nil.
func New[T any](name string, accessor Accessor[T], notifier notify.Notifier) Loader[T] {
	return Loader[T]{
		id:       loaderIDs.Add(1),
		name:     name,
		accessor: accessor,
		notifier: notifier,
		group:    &singleflight.Group{},
		mounted:  true,
	}
}

// Loaded reports whether at least one load has succeeded since the last
// Retarget.
func (l *Loader[T]) Loaded() bool { return l.loaded }

// Mounted reports whether results are still being applied.
func (l *Loader[T]) Mounted() bool { return l.mounted }

// Load issues a fetch. Previous data stays visible while it runs.
func (l *Loader[T]) Load() tea.Cmd {
	if !l.mounted || l.accessor == nil {
		return nil
	}
	l.seq++
	l.Loading = true

	id, seq, accessor, group, key := l.id, l.seq, l.accessor, l.group, l.key()
	return func() tea.Msg {
		v, err, _ := group.Do(key, func() (any, error) {
			return accessor()
		})
		r := Result[T]{loader: id, seq: seq, err: err}
		if err == nil {
			r.data, _ = v.(T)
		}
		return r
	}
}

// Refresh forces a repeat fetch. Unlike Load it never joins a call that
// is already running, so data written just before is seen.
func (l *Loader[T]) Refresh() tea.Cmd {
	l.group.Forget(l.key())
	return l.Load()
}

func (l *Loader[T]) key() string {
	return strconv.FormatInt(l.id, 10) + "/" + strconv.Itoa(l.gen)
}

// Retarget swaps the accessor after a dependency changed, drops data that
// belonged to the old accessor, and loads. An unmounted loader is mounted
// again.
func (l *Loader[T]) Retarget(accessor Accessor[T]) tea.Cmd {
	var zero T
	l.mounted = true
	l.accessor = accessor
	l.gen++
	l.Data = zero
	l.Err = nil
	l.loaded = false
	return l.Load()
}

// Unmount stops the loader from applying any result, including ones
// already in flight.
func (l *Loader[T]) Unmount() {
	l.mounted = false
	l.Loading = false
}

// Update applies msg if it is this loader's latest result. It reports
// whether msg belonged to the loader and returns a notification command
// when the fetch failed.
func (l *Loader[T]) Update(msg tea.Msg) (bool, tea.Cmd) {
	r, ok := msg.(Result[T])
	if !ok || r.loader != l.id {
		return false, nil
	}
	if !l.mounted || r.seq != l.seq {
		return true, nil
	}

	l.Loading = false
	if r.err != nil {
		l.Err = Normalize(l.name, r.err)
		if l.notifier == nil {
			return true, nil
		}
		return true, notify.Cmd(l.notifier, notify.Error(l.Err.Title, l.Err.Message))
	}
	l.Data = r.data
	l.Err = nil
	l.loaded = true
	return true, nil
}
