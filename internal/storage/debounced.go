package storage

import (
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adpacks/internal/shared"
)

// DefaultWindow is the debounce window used when none is configured.
const DefaultWindow = 500 * time.Millisecond

// AfterFunc schedules f after d and returns a function that cancels it.
//
// The returned stop function reports whether the call was cancelled before running, like [time.Timer.Stop].
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type pendingWrite struct {
	value string
	stop  func() bool
}

// Debounced is a trailing-edge debounced writer over a [Backend].
//
// Each key has at most one pending write. A new SetItem for the same key replaces the pending
// value and restarts the window. Backend write failures are logged and dropped.
type Debounced struct {
	backend   Backend
	window    time.Duration
	afterFunc AfterFunc
	logger    *log.Logger

	mu      sync.Mutex
	pending map[string]*pendingWrite
	closed  bool
}

// Option configures a [Debounced].
type Option func(*Debounced)

// WithWindow sets the debounce window. Non-positive values keep the default.
func WithWindow(d time.Duration) Option {
	return func(db *Debounced) {
		if d > 0 {
			db.window = d
		}
	}
}

// WithScheduler replaces [time.AfterFunc], letting tests fire timers deterministically.
func WithScheduler(fn AfterFunc) Option {
	return func(db *Debounced) {
		if fn != nil {
			db.afterFunc = fn
		}
	}
}

// WithLogger sets the logger used to report dropped writes.
func WithLogger(l *log.Logger) Option {
	return func(db *Debounced) {
		if l != nil {
			db.logger = l
		}
	}
}

// NewDebounced wraps backend with debounced writes.
func NewDebounced(backend Backend, opts ...Option) *Debounced {
	d := &Debounced{
		backend:   backend,
		window:    DefaultWindow,
		afterFunc: timeAfterFunc,
		logger:    shared.NewLogger(io.Discard),
		pending:   make(map[string]*pendingWrite),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GetItem reads key from the backend. Pending writes are not visible.
func (d *Debounced) GetItem(key string) (string, bool, error) {
	return d.backend.GetItem(key)
}

// SetItem schedules value to be written under key after the debounce window.
//
// After [Debounced.Close] the call is dropped.
func (d *Debounced) SetItem(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.logger.Debug("dropping write after close", "key", key)
		return
	}

	if prev, ok := d.pending[key]; ok {
		prev.stop()
	}

	pw := &pendingWrite{value: value}
	d.pending[key] = pw
	pw.stop = d.afterFunc(d.window, func() { d.fire(key, pw) })
}

// fire persists pw if it is still the pending write for key.
func (d *Debounced) fire(key string, pw *pendingWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending[key] != pw {
		return
	}
	delete(d.pending, key)
	d.write(key, pw.value)
}

func (d *Debounced) write(key, value string) {
	if err := d.backend.SetItem(key, value); err != nil {
		d.logger.Warn("failed to persist item", "key", key, "error", err)
	}
}

// RemoveItem cancels any pending write for key and removes it from the backend immediately.
func (d *Debounced) RemoveItem(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if pw, ok := d.pending[key]; ok {
		pw.stop()
		delete(d.pending, key)
	}
	return d.backend.RemoveItem(key)
}

// Pending reports whether key has a write waiting for its timer.
func (d *Debounced) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Flush writes every pending value now.
func (d *Debounced) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, pw := range d.pending {
		pw.stop()
		delete(d.pending, key)
		d.write(key, pw.value)
	}
}

// Close cancels every pending write without flushing and drops later writes.
func (d *Debounced) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, pw := range d.pending {
		pw.stop()
		delete(d.pending, key)
	}
	d.closed = true
}
