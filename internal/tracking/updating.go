package tracking

import (
	"slices"
	"sync"
	"sync/atomic"
)

type idSet map[string]struct{}

// UpdatingPacks is the set of pack ids with a refresh in flight.
//
// Callers claim a pack with [UpdatingPacks.TryAdd] before starting a refresh. It is never persisted.
type UpdatingPacks struct {
	mu  sync.Mutex
	ids atomic.Pointer[idSet]
}

// NewUpdatingPacks creates an empty tracker.
func NewUpdatingPacks() *UpdatingPacks {
	u := &UpdatingPacks{}
	u.ids.Store(&idSet{})
	return u
}

func (u *UpdatingPacks) snapshot() idSet {
	return *u.ids.Load()
}

// Add marks packID as updating. Adding an id twice leaves a single entry.
func (u *UpdatingPacks) Add(packID string) {
	u.TryAdd(packID)
}

// TryAdd marks packID as updating and reports whether it was absent before.
func (u *UpdatingPacks) TryAdd(packID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	cur := u.snapshot()
	if _, ok := cur[packID]; ok {
		return false
	}
	next := make(idSet, len(cur)+1)
	for id := range cur {
		next[id] = struct{}{}
	}
	next[packID] = struct{}{}
	u.ids.Store(&next)
	return true
}

// Remove clears packID. Removing an absent id is a no-op.
func (u *UpdatingPacks) Remove(packID string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	cur := u.snapshot()
	if _, ok := cur[packID]; !ok {
		return
	}
	next := make(idSet, len(cur))
	for id := range cur {
		if id != packID {
			next[id] = struct{}{}
		}
	}
	u.ids.Store(&next)
}

// Is reports whether packID is updating.
func (u *UpdatingPacks) Is(packID string) bool {
	_, ok := u.snapshot()[packID]
	return ok
}

// ClearAll empties the set.
func (u *UpdatingPacks) ClearAll() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ids.Store(&idSet{})
}

// List returns the updating ids in sorted order.
func (u *UpdatingPacks) List() []string {
	cur := u.snapshot()
	ids := make([]string, 0, len(cur))
	for id := range cur {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
