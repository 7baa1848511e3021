package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/notify"
	"github.com/desertthunder/adpacks/internal/repositories"
	"github.com/desertthunder/adpacks/internal/services"
	"github.com/desertthunder/adpacks/internal/session"
	"github.com/desertthunder/adpacks/internal/shared"
	"github.com/desertthunder/adpacks/internal/tracking"
)

type mockBackend struct {
	mu sync.Mutex

	packs    []models.Pack
	listErr  error
	listCall int
	listGate chan struct{}

	refreshed   map[string]*models.Pack
	refreshErr  error
	refreshGate chan struct{}
	refreshes   int

	syncErr    map[string]error
	syncJobID  string
	syncCalls  int
	resumeErr  map[string]error
	resumed    []string
	detail     map[string]*models.Pack
	detailGate chan struct{}
}

func (m *mockBackend) ListPacks(ctx context.Context) ([]models.Pack, error) {
	m.mu.Lock()
	m.listCall++
	gate := m.listGate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.Pack, len(m.packs))
	for i, p := range m.packs {
		out[i] = p.Clone()
	}
	return out, nil
}

func (m *mockBackend) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCall
}

func (m *mockBackend) RefreshPack(ctx context.Context, packID string) (*models.Pack, error) {
	if m.refreshGate != nil {
		<-m.refreshGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	if p, ok := m.refreshed[packID]; ok {
		cp := p.Clone()
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPackNotFound, packID)
}

func (m *mockBackend) SyncSheet(ctx context.Context, packID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCalls++
	if err, ok := m.syncErr[packID]; ok {
		return "", err
	}
	return m.syncJobID, nil
}

func (m *mockBackend) ResumeSheetSync(ctx context.Context, syncJobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.resumeErr[syncJobID]; ok {
		return err
	}
	m.resumed = append(m.resumed, syncJobID)
	return nil
}

func (m *mockBackend) GetPack(ctx context.Context, packID string) (*models.Pack, error) {
	if m.detailGate != nil {
		select {
		case <-m.detailGate:
		case <-ctx.Done():
		}
	}
	if p, ok := m.detail[packID]; ok {
		cp := p.Clone()
		return &cp, nil
	}
	return nil, shared.ErrPackNotFound
}

type mockCache struct {
	records map[string][]models.RawAdRecord
	fail    bool
	lookups atomic.Int32
}

func (m *mockCache) GetCachedRecords(ctx context.Context, packID string) repositories.CacheResult {
	m.lookups.Add(1)
	if m.fail {
		return repositories.CacheResult{}
	}
	return repositories.CacheResult{Success: true, Data: m.records[packID]}
}

func tenRecords() []models.RawAdRecord {
	records := make([]models.RawAdRecord, 10)
	for i := range records {
		records[i] = models.RawAdRecord{
			AdID:       fmt.Sprintf("ad-%d", i%4),
			CampaignID: fmt.Sprintf("c-%d", i%2),
			AdsetID:    fmt.Sprintf("s-%d", i%3),
			Spend:      2.5,
		}
	}
	return records
}

func validStats() *models.PackStats {
	return &models.PackStats{
		TotalAds:        models.Int(3),
		UniqueAds:       models.Int(3),
		UniqueCampaigns: models.Int(1),
		UniqueAdsets:    models.Int(2),
		TotalSpend:      models.Float(42),
	}
}

func newPack(id string) models.Pack {
	return models.Pack{ID: id, Name: "Pack " + id, AdAccountID: "act_1", DateStart: "2024-01-01", DateStop: "2024-01-31", Level: models.LevelAd}
}

func signedIn(userID string) *session.Store {
	store := session.NewStore()
	store.Login("tok-"+userID, models.User{ID: userID}, nil)
	return store
}

func countPublishes(store *session.Store) *atomic.Int32 {
	var n atomic.Int32
	store.Subscribe(func(models.Session) { n.Add(1) })
	return &n
}

func TestPackSyncCoordinator(t *testing.T) {
	ctx := context.Background()

	t.Run("derives missing stats from ten cached records", func(t *testing.T) {
		backend := &mockBackend{packs: []models.Pack{newPack("p1")}}
		cache := &mockCache{records: map[string][]models.RawAdRecord{"p1": tenRecords()}}
		store := signedIn("u1")
		writes := countPublishes(store)

		c := NewPackSyncCoordinator(backend, cache, store, nil, 2)
		result, err := c.EnsureLoaded(ctx, "u1", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Inserted != 1 || result.Derived != 1 {
			t.Errorf("unexpected result %+v", result)
		}
		if writes.Load() != 1 {
			t.Errorf("expected the store to be updated once, got %d", writes.Load())
		}

		stats := store.Snapshot().Packs[0].Stats
		if !models.ValidStats(stats) {
			t.Fatalf("expected valid derived stats, got %+v", stats)
		}
		if *stats.TotalAds != 10 || *stats.UniqueAds != 4 || *stats.UniqueCampaigns != 2 || *stats.UniqueAdsets != 3 || *stats.TotalSpend != 25 {
			t.Errorf("unexpected derived stats %+v", stats)
		}
	})

	t.Run("valid stats are kept without a cache lookup", func(t *testing.T) {
		p := newPack("p1")
		p.Stats = validStats()
		backend := &mockBackend{packs: []models.Pack{p}}
		cache := &mockCache{}
		store := signedIn("u1")

		c := NewPackSyncCoordinator(backend, cache, store, nil, 0)
		if _, err := c.EnsureLoaded(ctx, "u1", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cache.lookups.Load() != 0 {
			t.Errorf("expected no cache lookups, got %d", cache.lookups.Load())
		}
		if !store.Snapshot().Packs[0].Stats.Equal(validStats()) {
			t.Error("expected backend stats to be kept")
		}
	})

	t.Run("zero stats are valid", func(t *testing.T) {
		p := newPack("p1")
		p.Stats = &models.PackStats{UniqueAds: models.Int(0), UniqueCampaigns: models.Int(0), UniqueAdsets: models.Int(0), TotalSpend: models.Float(0)}
		cache := &mockCache{}

		c := NewPackSyncCoordinator(&mockBackend{packs: []models.Pack{p}}, cache, signedIn("u1"), nil, 0)
		c.EnsureLoaded(ctx, "u1", nil)

		if cache.lookups.Load() != 0 {
			t.Error("zero-valued stats should not trigger a cache lookup")
		}
	})

	t.Run("cache miss leaves stats unset", func(t *testing.T) {
		p := newPack("p1")
		p.Stats = &models.PackStats{UniqueAds: models.Int(1)}
		store := signedIn("u1")

		c := NewPackSyncCoordinator(&mockBackend{packs: []models.Pack{p}}, &mockCache{}, store, nil, 0)
		result, err := c.EnsureLoaded(ctx, "u1", nil)
		if err != nil {
			t.Fatalf("cache miss should not fail: %v", err)
		}
		if result.CacheMisses != 1 {
			t.Errorf("expected 1 cache miss, got %d", result.CacheMisses)
		}
		if store.Snapshot().Packs[0].Stats != nil {
			t.Error("expected nil stats")
		}
	})

	t.Run("broken cache degrades like a miss", func(t *testing.T) {
		store := signedIn("u1")
		c := NewPackSyncCoordinator(&mockBackend{packs: []models.Pack{newPack("p1")}}, &mockCache{fail: true}, store, nil, 0)
		if _, err := c.EnsureLoaded(ctx, "u1", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.Snapshot().Packs[0].Stats != nil {
			t.Error("expected nil stats")
		}
	})

	t.Run("value-equal stats produce no store write", func(t *testing.T) {
		p := newPack("p1")
		p.Stats = validStats()

		store := signedIn("u1")
		store.AddPack(p)
		writes := countPublishes(store)

		c := NewPackSyncCoordinator(&mockBackend{packs: []models.Pack{p}}, &mockCache{}, store, nil, 0)
		result, err := c.EnsureLoaded(ctx, "u1", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Unchanged != 1 || result.Changed() {
			t.Errorf("expected unchanged merge, got %+v", result)
		}
		if writes.Load() != 0 {
			t.Errorf("expected no store writes, got %d", writes.Load())
		}
	})

	t.Run("changed stats overwrite only stats", func(t *testing.T) {
		stored := newPack("p1")
		stored.Name = "local name"
		stored.Stats = validStats()

		fetched := newPack("p1")
		fetched.Stats = validStats()
		fetched.Stats.TotalSpend = models.Float(99)

		store := signedIn("u1")
		store.AddPack(stored)

		c := NewPackSyncCoordinator(&mockBackend{packs: []models.Pack{fetched}}, nil, store, nil, 0)
		result, _ := c.EnsureLoaded(ctx, "u1", nil)

		got := store.Snapshot().Packs[0]
		if result.Updated != 1 || *got.Stats.TotalSpend != 99 {
			t.Errorf("expected updated stats, got %+v", got.Stats)
		}
		if got.Name != "local name" {
			t.Errorf("expected other fields untouched, got name %q", got.Name)
		}
	})

	t.Run("guard holds for the same user", func(t *testing.T) {
		backend := &mockBackend{packs: []models.Pack{newPack("p1")}}
		c := NewPackSyncCoordinator(backend, nil, signedIn("u1"), nil, 0)

		c.EnsureLoaded(ctx, "u1", nil)
		result, err := c.EnsureLoaded(ctx, "u1", nil)
		if err != nil || !result.Skipped {
			t.Errorf("expected skipped second load, got %+v, %v", result, err)
		}
		if backend.calls() != 1 {
			t.Errorf("expected 1 fetch, got %d", backend.calls())
		}
	})

	t.Run("guard resets when the user changes", func(t *testing.T) {
		backend := &mockBackend{packs: []models.Pack{newPack("p1")}}
		store := signedIn("u1")
		c := NewPackSyncCoordinator(backend, nil, store, nil, 0)

		c.EnsureLoaded(ctx, "u1", nil)
		store.Login("tok-u2", models.User{ID: "u2"}, nil)
		c.EnsureLoaded(ctx, "u2", nil)
		if backend.calls() != 2 {
			t.Errorf("expected a fetch per user, got %d", backend.calls())
		}
		if c.LoadedFor() != "u2" {
			t.Errorf("expected guard for u2, got %q", c.LoadedFor())
		}
	})

	t.Run("watch resets on user change only", func(t *testing.T) {
		store := signedIn("u1")

		backend := &mockBackend{packs: []models.Pack{newPack("p1")}}
		c := NewPackSyncCoordinator(backend, nil, store, nil, 0)
		unsubscribe := c.Watch(store)
		defer unsubscribe()

		c.EnsureLoaded(ctx, "u1", nil)
		store.AddPack(newPack("p9"))
		store.SetAdAccounts([]models.AdAccount{{ID: "act_2"}})
		if c.LoadedFor() != "u1" {
			t.Fatalf("unrelated publishes reset the guard")
		}

		store.Logout()
		if c.LoadedFor() != "" {
			t.Error("expected guard reset on logout")
		}

		store.SetUser(&models.User{ID: "u1"})
		c.EnsureLoaded(ctx, "u1", nil)
		if backend.calls() != 2 {
			t.Errorf("expected a fetch after re-login, got %d", backend.calls())
		}
	})

	t.Run("fetch failure clears the guard", func(t *testing.T) {
		backend := &mockBackend{listErr: errors.New("boom")}
		store := signedIn("u1")
		c := NewPackSyncCoordinator(backend, nil, store, nil, 0)

		_, err := c.EnsureLoaded(ctx, "u1", nil)
		if !errors.Is(err, shared.ErrFetchFailed) {
			t.Fatalf("expected ErrFetchFailed, got %v", err)
		}
		if c.LoadedFor() != "" {
			t.Error("expected guard cleared after failure")
		}

		backend.mu.Lock()
		backend.listErr = nil
		backend.packs = []models.Pack{newPack("p1")}
		backend.mu.Unlock()

		if _, err := c.EnsureLoaded(ctx, "u1", nil); err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if len(store.Snapshot().Packs) != 1 {
			t.Error("expected retry to load packs")
		}
	})

	t.Run("requires a user", func(t *testing.T) {
		c := NewPackSyncCoordinator(&mockBackend{}, nil, signedIn("u1"), nil, 0)
		if _, err := c.EnsureLoaded(ctx, "", nil); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("concurrent calls fetch once", func(t *testing.T) {
		backend := &mockBackend{packs: []models.Pack{newPack("p1")}}
		c := NewPackSyncCoordinator(backend, nil, signedIn("u1"), nil, 0)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.EnsureLoaded(ctx, "u1", nil)
			}()
		}
		wg.Wait()

		if backend.calls() != 1 {
			t.Errorf("expected 1 fetch, got %d", backend.calls())
		}
	})

	t.Run("progress updates", func(t *testing.T) {
		backend := &mockBackend{packs: []models.Pack{newPack("p1"), newPack("p2")}}
		progress := make(chan ProgressUpdate, 10)
		c := NewPackSyncCoordinator(backend, nil, signedIn("u1"), nil, 0)

		c.EnsureLoaded(ctx, "u1", progress)
		close(progress)

		phases := map[Phase]int{}
		for u := range progress {
			phases[u.Phase]++
		}
		if phases[FetchPacks] != 1 || phases[ResolveStats] != 2 || phases[MergePacks] != 1 {
			t.Errorf("unexpected phases %v", phases)
		}
	})

	t.Run("logout during fetch drops the result", func(t *testing.T) {
		store := signedIn("u1")
		backend := &mockBackend{packs: []models.Pack{newPack("u1-pack")}, listGate: make(chan struct{})}
		c := NewPackSyncCoordinator(backend, nil, store, nil, 0)
		unsubscribe := c.Watch(store)
		defer unsubscribe()

		done := make(chan *SyncResult)
		go func() {
			result, _ := c.EnsureLoaded(ctx, "u1", nil)
			done <- result
		}()
		for backend.calls() == 0 {
			time.Sleep(time.Millisecond)
		}

		store.Logout()
		close(backend.listGate)
		result := <-done

		if snap := store.Snapshot(); len(snap.Packs) != 0 {
			t.Errorf("logged-out session holds packs %v", snap.Packs)
		}
		if result == nil || !result.Discarded {
			t.Errorf("expected a discarded result, got %+v", result)
		}
		if c.LoadedFor() != "" {
			t.Errorf("expected guard released, got %q", c.LoadedFor())
		}
	})

	t.Run("user change during fetch keeps the new session clean", func(t *testing.T) {
		store := signedIn("u1")
		backend := &mockBackend{packs: []models.Pack{newPack("u1-pack")}, listGate: make(chan struct{})}
		c := NewPackSyncCoordinator(backend, nil, store, nil, 0)

		done := make(chan struct{})
		go func() {
			c.EnsureLoaded(ctx, "u1", nil)
			close(done)
		}()
		for backend.calls() == 0 {
			time.Sleep(time.Millisecond)
		}

		store.Login("tok-u2", models.User{ID: "u2"}, nil)
		close(backend.listGate)
		<-done

		if snap := store.Snapshot(); snap.UserID() != "u2" || len(snap.Packs) != 0 {
			t.Errorf("expected empty session for u2, got %q with %v", snap.UserID(), snap.Packs)
		}
	})
}

type refresherFixture struct {
	backend   *mockBackend
	store     *session.Store
	updating  *tracking.UpdatingPacks
	paused    *tracking.PausedJobs
	notifier  *notify.Center
	refresher *PackRefresher
}

func newRefresherFixture(packs ...models.Pack) *refresherFixture {
	f := &refresherFixture{
		backend:  &mockBackend{refreshed: map[string]*models.Pack{}, syncErr: map[string]error{}, resumeErr: map[string]error{}, syncJobID: "J-ok"},
		store:    session.NewStore(),
		updating: tracking.NewUpdatingPacks(),
		paused:   tracking.NewPausedJobs(),
		notifier: notify.NewCenter(nil),
	}
	for _, p := range packs {
		f.store.AddPack(p)
		cp := p.Clone()
		f.backend.refreshed[p.ID] = &cp
	}
	f.refresher = NewPackRefresher(f.backend, f.store, f.updating, f.paused, f.notifier, nil)
	return f
}

func sheetPack(id string) models.Pack {
	p := newPack(id)
	p.SheetIntegration = &models.SheetIntegration{ID: "I-" + id, SpreadsheetID: "S-" + id}
	return p
}

func TestPackRefresher(t *testing.T) {
	ctx := context.Background()

	t.Run("refresh updates stats and clears updating", func(t *testing.T) {
		f := newRefresherFixture(newPack("p1"))
		f.backend.refreshed["p1"].Stats = validStats()

		result, err := f.refresher.Refresh(ctx, "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.StatsChanged {
			t.Error("expected stats to change")
		}
		if !f.store.Snapshot().Packs[0].Stats.Equal(validStats()) {
			t.Error("expected stats stored")
		}
		if f.updating.Is("p1") {
			t.Error("expected p1 no longer updating")
		}
		if f.backend.syncCalls != 0 {
			t.Error("pack without sheet integration should not sync")
		}
	})

	t.Run("equal stats skip the store write", func(t *testing.T) {
		p := newPack("p1")
		p.Stats = validStats()
		f := newRefresherFixture(p)
		writes := countPublishes(f.store)

		result, _ := f.refresher.Refresh(ctx, "p1")
		if result.StatsChanged || writes.Load() != 0 {
			t.Errorf("expected no write, got %d", writes.Load())
		}
	})

	t.Run("refresh in progress", func(t *testing.T) {
		f := newRefresherFixture(newPack("p1"))
		f.updating.Add("p1")

		_, err := f.refresher.Refresh(ctx, "p1")
		if !IsBusy(err) {
			t.Errorf("expected ErrRefreshInProgress, got %v", err)
		}
	})

	t.Run("concurrent refreshes of one pack reach the backend once", func(t *testing.T) {
		f := newRefresherFixture(newPack("p1"))
		f.backend.refreshGate = make(chan struct{})

		const workers = 8
		errs := make(chan error, workers)
		var started sync.WaitGroup
		var wg sync.WaitGroup
		started.Add(workers)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				started.Done()
				_, err := f.refresher.Refresh(ctx, "p1")
				errs <- err
			}()
		}
		started.Wait()

		deadline := time.Now().Add(time.Second)
		for len(errs) < workers-1 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		close(f.backend.refreshGate)
		wg.Wait()
		close(errs)

		busy := 0
		for err := range errs {
			if IsBusy(err) {
				busy++
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}
		if busy != workers-1 {
			t.Errorf("expected %d busy results, got %d", workers-1, busy)
		}
		f.backend.mu.Lock()
		defer f.backend.mu.Unlock()
		if f.backend.refreshes != 1 {
			t.Errorf("expected 1 backend refresh, got %d", f.backend.refreshes)
		}
	})

	t.Run("updating while in flight", func(t *testing.T) {
		f := newRefresherFixture(newPack("p1"))
		f.backend.refreshGate = make(chan struct{})

		done := make(chan struct{})
		go func() {
			f.refresher.Refresh(ctx, "p1")
			close(done)
		}()

		deadline := time.Now().Add(time.Second)
		for !f.updating.Is("p1") && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		if !f.updating.Is("p1") {
			t.Fatal("expected p1 to be updating during the refresh")
		}
		close(f.backend.refreshGate)
		<-done
		if f.updating.Is("p1") {
			t.Error("expected p1 cleared after the refresh")
		}
	})

	t.Run("failure clears updating", func(t *testing.T) {
		f := newRefresherFixture(newPack("p1"))
		f.backend.refreshErr = errors.New("boom")

		if _, err := f.refresher.Refresh(ctx, "p1"); err == nil {
			t.Fatal("expected error")
		}
		if f.updating.Is("p1") {
			t.Error("expected p1 cleared after failure")
		}
	})

	t.Run("unknown pack", func(t *testing.T) {
		f := newRefresherFixture()
		if _, err := f.refresher.Refresh(ctx, "nope"); !errors.Is(err, shared.ErrPackNotFound) {
			t.Errorf("expected ErrPackNotFound, got %v", err)
		}
	})

	t.Run("expired token pauses and reuses the toast", func(t *testing.T) {
		f := newRefresherFixture(sheetPack("P1"))
		f.backend.syncErr["P1"] = &services.TokenExpiredError{SyncJobID: "J1", IntegrationID: "I-P1"}

		result, err := f.refresher.Refresh(ctx, "P1")
		if err != nil || !result.Paused {
			t.Fatalf("expected paused result, got %+v, %v", result, err)
		}

		first, ok := f.paused.GetJob("P1")
		if !ok || first.SyncJobID != "J1" || first.Reason != models.ReasonTokenExpired {
			t.Fatalf("unexpected paused job %+v", first)
		}
		if n, ok := f.notifier.Get(first.ToastID); !ok || !n.Persistent || n.Action != ReconnectAction {
			t.Errorf("expected persistent reconnect toast, got %+v", n)
		}

		f.backend.syncErr["P1"] = &services.TokenExpiredError{SyncJobID: "J2"}
		f.refresher.Refresh(ctx, "P1")

		second, _ := f.paused.GetJob("P1")
		if second.SyncJobID != "J2" {
			t.Errorf("expected latest job J2, got %s", second.SyncJobID)
		}
		if second.ToastID != first.ToastID {
			t.Errorf("expected toast reuse, got %s then %s", first.ToastID, second.ToastID)
		}
		if second.IntegrationID != "I-P1" {
			t.Errorf("expected integration id from the pack, got %q", second.IntegrationID)
		}
		if len(f.notifier.Active()) != 1 {
			t.Errorf("expected a single notification, got %d", len(f.notifier.Active()))
		}
	})

	t.Run("successful sync clears a stale pause", func(t *testing.T) {
		f := newRefresherFixture(sheetPack("P1"))
		f.backend.syncErr["P1"] = &services.TokenExpiredError{SyncJobID: "J1"}
		f.refresher.Refresh(ctx, "P1")

		delete(f.backend.syncErr, "P1")
		result, err := f.refresher.Refresh(ctx, "P1")
		if err != nil || result.SyncJobID != "J-ok" {
			t.Fatalf("unexpected result %+v, %v", result, err)
		}
		if f.paused.HasPausedJob("P1") || len(f.notifier.Active()) != 0 {
			t.Error("expected pause and toast cleared")
		}
	})

	t.Run("other sync errors propagate", func(t *testing.T) {
		f := newRefresherFixture(sheetPack("P1"))
		f.backend.syncErr["P1"] = shared.ErrAPIRequest

		if _, err := f.refresher.Refresh(ctx, "P1"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if f.paused.HasPausedJob("P1") {
			t.Error("non-expiry errors must not pause")
		}
	})

	t.Run("ResumePaused", func(t *testing.T) {
		f := newRefresherFixture(sheetPack("P1"), sheetPack("P2"))
		f.backend.syncErr["P1"] = &services.TokenExpiredError{SyncJobID: "J1"}
		f.backend.syncErr["P2"] = &services.TokenExpiredError{SyncJobID: "J2"}
		f.refresher.Refresh(ctx, "P1")
		f.refresher.Refresh(ctx, "P2")
		f.backend.resumeErr["J2"] = errors.New("still expired")

		result := f.refresher.ResumePaused(ctx, nil)

		if len(result.Resumed) != 1 || result.Resumed[0] != "P1" {
			t.Errorf("expected P1 resumed, got %v", result.Resumed)
		}
		if len(result.Failed) != 1 || result.Failed[0] != "P2" {
			t.Errorf("expected P2 failed, got %v", result.Failed)
		}
		if f.paused.HasPausedJob("P1") || !f.paused.HasPausedJob("P2") {
			t.Error("expected only P2 to stay paused")
		}
		job, _ := f.paused.GetJob("P2")
		if _, ok := f.notifier.Get(job.ToastID); !ok {
			t.Error("expected P2 toast to remain")
		}
	})

	t.Run("Dismiss", func(t *testing.T) {
		f := newRefresherFixture(sheetPack("P1"))
		f.backend.syncErr["P1"] = &services.TokenExpiredError{SyncJobID: "J1"}
		f.refresher.Refresh(ctx, "P1")

		if err := f.refresher.Dismiss("P1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.paused.HasPausedJob("P1") || len(f.notifier.Active()) != 0 {
			t.Error("expected job and toast cleared")
		}
		if err := f.refresher.Dismiss("P1"); !errors.Is(err, shared.ErrPausedJobNotFound) {
			t.Errorf("expected ErrPausedJobNotFound, got %v", err)
		}
	})
}

func TestRefreshAll(t *testing.T) {
	ctx := context.Background()

	auto := func(id string) models.Pack {
		p := newPack(id)
		p.AutoRefresh = true
		return p
	}

	t.Run("auto refresh packs only", func(t *testing.T) {
		f := newRefresherFixture(auto("a1"), auto("a2"), newPack("m1"))
		progress := make(chan ProgressUpdate, 20)

		result, err := f.refresher.RefreshAll(ctx, progress, RefreshAllOpts{NumWorkers: 2, RateLimit: 100})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Total != 2 || result.Succeeded != 2 {
			t.Errorf("unexpected result %+v", result)
		}
		if len(f.updating.List()) != 0 {
			t.Error("expected no packs left updating")
		}
		if len(progress) == 0 {
			t.Error("expected progress updates")
		}
	})

	t.Run("all packs with mixed outcomes", func(t *testing.T) {
		f := newRefresherFixture(sheetPack("s1"), newPack("m1"), newPack("busy"))
		f.backend.syncErr["s1"] = &services.TokenExpiredError{SyncJobID: "J1"}
		delete(f.backend.refreshed, "m1")
		f.updating.Add("busy")

		result, err := f.refresher.RefreshAll(ctx, nil, RefreshAllOpts{All: true, RateLimit: 100})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Paused != 1 || result.Failed != 1 || result.Skipped != 1 {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("nothing to refresh", func(t *testing.T) {
		f := newRefresherFixture(newPack("m1"))
		result, err := f.refresher.RefreshAll(ctx, nil, RefreshAllOpts{})
		if err != nil || result.Total != 0 {
			t.Errorf("expected empty run, got %+v, %v", result, err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := newRefresherFixture(auto("a1"), auto("a2"))
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := f.refresher.RefreshAll(cctx, nil, RefreshAllOpts{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestDetailLoader(t *testing.T) {
	t.Run("applies the result", func(t *testing.T) {
		p := newPack("p1")
		backend := &mockBackend{detail: map[string]*models.Pack{"p1": &p}}
		l := NewDetailLoader(context.Background(), backend)

		var got models.Pack
		l.Load("p1", func(p models.Pack) { got = p }, nil)
		l.Wait()

		if got.ID != "p1" {
			t.Errorf("expected p1 applied, got %+v", got)
		}
	})

	t.Run("reports errors", func(t *testing.T) {
		l := NewDetailLoader(context.Background(), &mockBackend{})

		var gotErr error
		l.Load("missing", func(models.Pack) {}, func(err error) { gotErr = err })
		l.Wait()

		if !errors.Is(gotErr, shared.ErrPackNotFound) {
			t.Errorf("expected ErrPackNotFound, got %v", gotErr)
		}
	})

	t.Run("results after Close are discarded", func(t *testing.T) {
		p := newPack("p1")
		backend := &mockBackend{detail: map[string]*models.Pack{"p1": &p}, detailGate: make(chan struct{})}
		l := NewDetailLoader(context.Background(), backend)

		var applied atomic.Bool
		l.Load("p1", func(models.Pack) { applied.Store(true) }, func(error) { applied.Store(true) })

		l.Close()
		close(backend.detailGate)
		l.Wait()

		if applied.Load() {
			t.Error("stale result was applied after Close")
		}
		if !l.Closed() {
			t.Error("expected loader closed")
		}
	})
}
