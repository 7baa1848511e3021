package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/repositories"
	"github.com/desertthunder/adpacks/internal/shared"
	"golang.org/x/sync/errgroup"
)

// DefaultCacheConcurrency bounds concurrent raw-record cache lookups.
const DefaultCacheConcurrency = 4

// PackLister fetches the authoritative pack list.
type PackLister interface {
	ListPacks(ctx context.Context) ([]models.Pack, error)
}

// RecordCache looks up cached raw records by pack id. repositories.RecordCacheAdapter implements it.
type RecordCache interface {
	GetCachedRecords(ctx context.Context, packID string) repositories.CacheResult
}

// PackStore is the part of the session store the coordinator writes to.
type PackStore interface {
	Snapshot() models.Session
	ModifyPacksFor(userID string, fn func(current []models.Pack) ([]models.Pack, bool)) bool
}

// SessionWatcher lets the coordinator observe user changes. session.Store implements it.
type SessionWatcher interface {
	Subscribe(fn func(models.Session)) (unsubscribe func())
}

// SyncResult summarizes one reconciliation.
type SyncResult struct {
	Skipped     bool // Already loaded for this user
	Fetched     int  // Packs returned by the backend
	Inserted    int  // Packs new to the session
	Updated     int  // Known packs whose stats changed
	Unchanged   int  // Known packs left as they were
	Derived     int  // Packs whose stats were computed from the cache
	CacheMisses int  // Packs needing stats with nothing cached
	Discarded   bool // The session changed owner during the fetch; nothing was merged
}

// Changed reports whether the store was written.
func (r *SyncResult) Changed() bool {
	return r.Inserted+r.Updated > 0
}

// PackSyncCoordinator reconciles the backend pack list into the session store once per login.
type PackSyncCoordinator struct {
	backend     PackLister
	cache       RecordCache
	store       PackStore
	logger      *log.Logger
	concurrency int

	mu        sync.Mutex
	loadedFor string
}

// NewPackSyncCoordinator creates a coordinator. cache may be nil, in which case invalid stats stay unset.
func NewPackSyncCoordinator(backend PackLister, cache RecordCache, store PackStore, logger *log.Logger, concurrency int) *PackSyncCoordinator {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	if concurrency <= 0 {
		concurrency = DefaultCacheConcurrency
	}
	return &PackSyncCoordinator{
		backend:     backend,
		cache:       cache,
		store:       store,
		logger:      logger,
		concurrency: concurrency,
	}
}

// LoadedFor returns the user id the guard is currently held for, or "".
func (c *PackSyncCoordinator) LoadedFor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedFor
}

// Reset clears the guard so the next EnsureLoaded fetches again.
func (c *PackSyncCoordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadedFor = ""
}

// Watch resets the guard whenever the session's user id stops matching the loaded user.
//
// Publishes for the same user leave the guard alone.
func (c *PackSyncCoordinator) Watch(w SessionWatcher) (unsubscribe func()) {
	return w.Subscribe(func(s models.Session) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.loadedFor != "" && c.loadedFor != s.UserID() {
			c.logger.Debug("user changed, resetting pack guard", "from", c.loadedFor, "to", s.UserID())
			c.loadedFor = ""
		}
	})
}

// claim takes the guard for userID. It returns false when the guard already belongs to userID.
func (c *PackSyncCoordinator) claim(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadedFor == userID {
		return false
	}
	c.loadedFor = userID
	return true
}

func (c *PackSyncCoordinator) release(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadedFor == userID {
		c.loadedFor = ""
	}
}

// EnsureLoaded fetches and merges packs for userID unless that was already done for this login.
//
// On fetch failure the guard is cleared so a later call retries, and the error wraps [shared.ErrFetchFailed].
func (c *PackSyncCoordinator) EnsureLoaded(ctx context.Context, userID string, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if userID == "" {
		return nil, shared.ErrNotAuthenticated
	}
	if !c.claim(userID) {
		return &SyncResult{Skipped: true}, nil
	}

	result, err := c.sync(ctx, userID, progress)
	if err != nil {
		c.release(userID)
		c.logger.Error("pack sync failed", "user", userID, "error", err)
		return nil, err
	}
	if result.Discarded {
		c.release(userID)
		c.logger.Warn("session changed during pack sync, result dropped", "user", userID)
		return result, nil
	}

	c.logger.Info("packs synchronized",
		"user", userID,
		"fetched", result.Fetched,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"derived", result.Derived,
	)
	return result, nil
}

func (c *PackSyncCoordinator) sync(ctx context.Context, userID string, progress chan<- ProgressUpdate) (*SyncResult, error) {
	sendProgress(progress, fetchPacksUpdate())

	packs, err := c.backend.ListPacks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrFetchFailed, err)
	}

	result := &SyncResult{Fetched: len(packs)}
	resolved, err := c.resolveAll(ctx, packs, result, progress)
	if err != nil {
		return nil, err
	}

	c.merge(userID, resolved, result)
	sendProgress(progress, mergeUpdate(result))
	return result, nil
}

// resolveAll fills in stats for every pack, looking up the cache concurrently.
func (c *PackSyncCoordinator) resolveAll(ctx context.Context, packs []models.Pack, result *SyncResult, progress chan<- ProgressUpdate) ([]models.Pack, error) {
	resolved := make([]models.Pack, len(packs))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, pack := range packs {
		g.Go(func() error {
			p, derived, miss := c.resolveStats(gctx, pack)
			resolved[i] = p

			mu.Lock()
			defer mu.Unlock()
			if derived {
				result.Derived++
			}
			if miss {
				result.CacheMisses++
			}
			done++
			sendProgress(progress, resolvedStatsUpdate(done, len(packs), p))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// resolveStats keeps valid stats or derives them from cached records.
//
// A cache miss leaves stats nil; it is not an error.
func (c *PackSyncCoordinator) resolveStats(ctx context.Context, pack models.Pack) (models.Pack, bool, bool) {
	if models.ValidStats(pack.Stats) {
		return pack, false, false
	}

	pack.Stats = nil
	if c.cache == nil {
		return pack, false, true
	}

	cached := c.cache.GetCachedRecords(ctx, pack.ID)
	if !cached.Found() {
		c.logger.Debug("no cached records for pack", "pack", pack.ID, "error", shared.ErrCacheMiss)
		return pack, false, true
	}

	stats := models.ComputeStats(cached.Data)
	pack.Stats = &stats
	return pack, true, false
}

// merge inserts unknown packs and overwrites stats of known packs when they differ by value.
//
// The merge only applies while the session still belongs to userID; otherwise result is marked discarded.
func (c *PackSyncCoordinator) merge(userID string, fetched []models.Pack, result *SyncResult) {
	owned := false
	c.store.ModifyPacksFor(userID, func(current []models.Pack) ([]models.Pack, bool) {
		owned = true
		next := current
		index := make(map[string]int, len(current))
		for i, p := range current {
			index[p.ID] = i
		}

		for _, p := range fetched {
			i, known := index[p.ID]
			switch {
			case !known:
				index[p.ID] = len(next)
				next = append(next, p)
				result.Inserted++
			case next[i].Stats.Equal(p.Stats):
				result.Unchanged++
			default:
				updated := next[i]
				if p.Stats != nil {
					stats := p.Stats.Clone()
					updated.Stats = &stats
				} else {
					updated.Stats = nil
				}
				next[i] = updated
				result.Updated++
			}
		}
		return next, result.Changed()
	})
	result.Discarded = !owned
}
