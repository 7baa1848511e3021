package tracking

import (
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/storage"
	tu "github.com/desertthunder/adpacks/internal/testing"
)

func TestUpdatingPacks(t *testing.T) {
	t.Run("add, check, remove", func(t *testing.T) {
		u := NewUpdatingPacks()

		u.Add("p1")
		u.Add("p1")
		u.Add("p2")

		if !u.Is("p1") || !u.Is("p2") {
			t.Error("expected p1 and p2 to be updating")
		}
		if got := u.List(); len(got) != 2 || got[0] != "p1" || got[1] != "p2" {
			t.Errorf("expected [p1 p2], got %v", got)
		}

		u.Remove("p1")
		u.Remove("missing")

		if u.Is("p1") {
			t.Error("expected p1 removed")
		}
		if !u.Is("p2") {
			t.Error("expected p2 to remain")
		}
	})

	t.Run("ClearAll", func(t *testing.T) {
		u := NewUpdatingPacks()
		u.Add("p1")
		u.ClearAll()
		if u.Is("p1") || len(u.List()) != 0 {
			t.Error("expected empty set after ClearAll")
		}
	})

	t.Run("snapshots are not mutated by later writes", func(t *testing.T) {
		u := NewUpdatingPacks()
		u.Add("p1")
		before := u.snapshot()
		u.Add("p2")
		if len(before) != 1 {
			t.Errorf("published snapshot changed: %v", before)
		}
	})

	t.Run("concurrent writers", func(t *testing.T) {
		u := NewUpdatingPacks()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				u.Add(id)
				_ = u.Is(id)
			}(string(rune('a' + i%26)))
		}
		wg.Wait()
		if len(u.List()) != 26 {
			t.Errorf("expected 26 ids, got %d", len(u.List()))
		}
	})

	t.Run("TryAdd admits one claimant", func(t *testing.T) {
		u := NewUpdatingPacks()
		var wg sync.WaitGroup
		var mu sync.Mutex
		won := 0
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if u.TryAdd("p1") {
					mu.Lock()
					won++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if won != 1 {
			t.Errorf("expected a single winner, got %d", won)
		}

		u.Remove("p1")
		if !u.TryAdd("p1") {
			t.Error("expected TryAdd to succeed after Remove")
		}
	})
}

func job(packID, syncJobID string, at time.Time) models.PausedSheetJob {
	return models.PausedSheetJob{
		SyncJobID: syncJobID,
		PackID:    packID,
		PackName:  "Pack " + packID,
		ToastID:   "toast-" + packID,
		PausedAt:  at,
		Reason:    models.ReasonTokenExpired,
	}
}

func TestPausedJobs(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("pause twice keeps the latest job", func(t *testing.T) {
		p := NewPausedJobs()

		p.PauseJob(job("P1", "J1", now))
		p.PauseJob(job("P1", "J2", now.Add(time.Minute)))

		got, ok := p.GetJob("P1")
		if !ok || got.SyncJobID != "J2" {
			t.Errorf("expected J2, got %+v (ok=%v)", got, ok)
		}
		if !p.HasPausedJob("P1") {
			t.Error("expected P1 to have a paused job")
		}
		if p.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", p.Len())
		}

		p.ClearJob("P1")
		if p.HasPausedJob("P1") {
			t.Error("expected P1 cleared")
		}
	})

	t.Run("clear absent is a no-op", func(t *testing.T) {
		p := NewPausedJobs()
		p.ClearJob("nope")
		if p.Len() != 0 {
			t.Error("expected empty registry")
		}
	})

	t.Run("GetAllPausedJobs ordering", func(t *testing.T) {
		p := NewPausedJobs()
		p.PauseJob(job("P3", "J3", now.Add(time.Minute)))
		p.PauseJob(job("P2", "J2", now))
		p.PauseJob(job("P1", "J1", now))

		all := p.GetAllPausedJobs()
		want := []string{"P1", "P2", "P3"}
		for i, j := range all {
			if j.PackID != want[i] {
				t.Errorf("position %d: expected %s, got %s", i, want[i], j.PackID)
			}
		}
	})

	t.Run("ClearAll", func(t *testing.T) {
		p := NewPausedJobs()
		p.PauseJob(job("P1", "J1", now))
		p.PauseJob(job("P2", "J2", now))
		p.ClearAll()
		if len(p.GetAllPausedJobs()) != 0 {
			t.Error("expected no jobs after ClearAll")
		}
	})
}

func TestPausedJobsPersistence(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("round trip through debounced storage", func(t *testing.T) {
		backend := storage.NewMemoryBackend()
		sched := &tu.ManualScheduler{}
		store := storage.NewDebounced(backend, storage.WithScheduler(sched.AfterFunc))

		p := NewPausedJobs(WithStore(store))
		p.PauseJob(job("P1", "J1", now))
		p.PauseJob(job("P2", "J2", now))
		p.ClearJob("P2")

		if backend.Writes() != 0 {
			t.Fatalf("expected debounced writes, got %d", backend.Writes())
		}
		sched.FireAll()
		if backend.Writes() != 1 {
			t.Errorf("expected a single write, got %d", backend.Writes())
		}

		restored := NewPausedJobs(WithStore(store))
		got, ok := restored.GetJob("P1")
		if !ok || got.SyncJobID != "J1" || !got.PausedAt.Equal(now) {
			t.Errorf("expected J1 restored, got %+v", got)
		}
		if restored.HasPausedJob("P2") {
			t.Error("cleared job should not be restored")
		}
	})

	t.Run("corrupt snapshot is discarded", func(t *testing.T) {
		backend := storage.NewMemoryBackend()
		_ = backend.SetItem(PausedJobsKey, "{not json")

		p := NewPausedJobs(WithStore(storage.NewDebounced(backend)))
		if p.Len() != 0 {
			t.Errorf("expected empty registry, got %d", p.Len())
		}
	})

	t.Run("invalid entries are dropped", func(t *testing.T) {
		backend := storage.NewMemoryBackend()
		_ = backend.SetItem(PausedJobsKey, `{"pausedJobs":{"P1":{"syncJobId":"J1","packId":"P1","reason":"token_expired"},"P2":{"packId":"P2","reason":"bogus"}}}`)

		p := NewPausedJobs(WithStore(storage.NewDebounced(backend)))
		if !p.HasPausedJob("P1") || p.HasPausedJob("P2") {
			t.Errorf("expected only P1 restored, got %v", p.GetAllPausedJobs())
		}
	})

	t.Run("ClearAll removes the durable snapshot", func(t *testing.T) {
		backend := storage.NewMemoryBackend()
		sched := &tu.ManualScheduler{}
		store := storage.NewDebounced(backend, storage.WithScheduler(sched.AfterFunc))

		p := NewPausedJobs(WithStore(store))
		p.PauseJob(job("P1", "J1", now))
		sched.FireAll()
		p.ClearAll()

		if _, ok, _ := backend.GetItem(PausedJobsKey); ok {
			t.Error("expected snapshot removed")
		}
	})
}
