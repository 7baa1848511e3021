package tracking

import (
	"cmp"
	"encoding/json"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/shared"
)

// PausedJobsKey is the durable storage key of the paused job registry.
const PausedJobsKey = "adpacks-paused-sheet-jobs"

// Store is the persistence used by [PausedJobs]. storage.Debounced satisfies it.
type Store interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string)
	RemoveItem(key string) error
}

type jobMap map[string]models.PausedSheetJob

// PausedJobs maps pack id to its paused sheet sync job. At most one job exists per pack.
type PausedJobs struct {
	mu     sync.Mutex
	jobs   atomic.Pointer[jobMap]
	store  Store
	logger *log.Logger
}

// PausedOption configures [PausedJobs].
type PausedOption func(*PausedJobs)

// WithStore persists the registry under [PausedJobsKey] and restores it on construction.
func WithStore(s Store) PausedOption {
	return func(p *PausedJobs) { p.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) PausedOption {
	return func(p *PausedJobs) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPausedJobs creates a registry, restoring persisted entries when a store is configured.
//
// A corrupt snapshot is logged and discarded.
func NewPausedJobs(opts ...PausedOption) *PausedJobs {
	p := &PausedJobs{logger: shared.NewLogger(io.Discard)}
	for _, opt := range opts {
		opt(p)
	}
	p.jobs.Store(&jobMap{})
	p.restore()
	return p
}

func (p *PausedJobs) restore() {
	if p.store == nil {
		return
	}

	raw, ok, err := p.store.GetItem(PausedJobsKey)
	if err != nil {
		p.logger.Warn("failed to read paused jobs", "error", err)
		return
	}
	if !ok {
		return
	}

	var persisted struct {
		Jobs map[string]models.PausedSheetJob `json:"pausedJobs"`
	}
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		p.logger.Warn("discarding corrupt paused jobs snapshot", "error", err)
		return
	}

	restored := make(jobMap, len(persisted.Jobs))
	for packID, job := range persisted.Jobs {
		if err := models.Validate(job); err != nil || job.PackID != packID {
			p.logger.Warn("dropping invalid paused job", "pack", packID, "error", err)
			continue
		}
		restored[packID] = job
	}
	p.jobs.Store(&restored)
}

func (p *PausedJobs) publish(next jobMap) {
	p.jobs.Store(&next)
	if p.store == nil {
		return
	}

	data, err := json.Marshal(struct {
		Jobs jobMap `json:"pausedJobs"`
	}{next})
	if err != nil {
		p.logger.Warn("failed to encode paused jobs", "error", err)
		return
	}
	p.store.SetItem(PausedJobsKey, string(data))
}

func (p *PausedJobs) copyJobs() jobMap {
	cur := *p.jobs.Load()
	next := make(jobMap, len(cur))
	for k, v := range cur {
		next[k] = v
	}
	return next
}

// PauseJob records job under its pack id, replacing any previous entry for that pack.
func (p *PausedJobs) PauseJob(job models.PausedSheetJob) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.copyJobs()
	next[job.PackID] = job
	p.publish(next)
}

// GetJob returns the paused job for packID.
func (p *PausedJobs) GetJob(packID string) (models.PausedSheetJob, bool) {
	job, ok := (*p.jobs.Load())[packID]
	return job, ok
}

// HasPausedJob reports whether packID has a paused job.
func (p *PausedJobs) HasPausedJob(packID string) bool {
	_, ok := p.GetJob(packID)
	return ok
}

// ClearJob removes the entry for packID. Clearing an absent id is a no-op.
func (p *PausedJobs) ClearJob(packID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.HasPausedJob(packID) {
		return
	}
	next := p.copyJobs()
	delete(next, packID)
	p.publish(next)
}

// GetAllPausedJobs returns every paused job ordered by pause time, then pack id.
func (p *PausedJobs) GetAllPausedJobs() []models.PausedSheetJob {
	cur := *p.jobs.Load()
	jobs := make([]models.PausedSheetJob, 0, len(cur))
	for _, job := range cur {
		jobs = append(jobs, job)
	}
	slices.SortFunc(jobs, func(a, b models.PausedSheetJob) int {
		if c := a.PausedAt.Compare(b.PausedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.PackID, b.PackID)
	})
	return jobs
}

// Len returns the number of paused jobs.
func (p *PausedJobs) Len() int {
	return len(*p.jobs.Load())
}

// ClearAll removes every entry and the durable snapshot.
func (p *PausedJobs) ClearAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.jobs.Store(&jobMap{})
	if p.store != nil {
		if err := p.store.RemoveItem(PausedJobsKey); err != nil {
			p.logger.Warn("failed to remove paused jobs", "error", err)
		}
	}
}
