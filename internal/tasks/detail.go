package tasks

import (
	"context"
	"sync"

	"github.com/desertthunder/adpacks/internal/models"
)

// PackGetter fetches one pack with full detail.
type PackGetter interface {
	GetPack(ctx context.Context, packID string) (*models.Pack, error)
}

// DetailLoader fetches pack detail in the background for a view.
//
// Once [DetailLoader.Close] returns, no result is applied, even one that resolved earlier but had not
// yet been delivered.
type DetailLoader struct {
	backend PackGetter
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDetailLoader creates a loader bound to parent.
func NewDetailLoader(parent context.Context, backend PackGetter) *DetailLoader {
	ctx, cancel := context.WithCancel(parent)
	return &DetailLoader{backend: backend, ctx: ctx, cancel: cancel}
}

// Load fetches packID and calls apply with the result, or onErr on failure. onErr may be nil.
func (l *DetailLoader) Load(packID string, apply func(models.Pack), onErr func(error)) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		pack, err := l.backend.GetPack(l.ctx, packID)

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed {
			return
		}
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		apply(*pack)
	}()
}

// Close cancels in-flight fetches and discards their results.
func (l *DetailLoader) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cancel()
}

// Closed reports whether Close was called.
func (l *DetailLoader) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Wait blocks until every started fetch has finished.
func (l *DetailLoader) Wait() {
	l.wg.Wait()
}
