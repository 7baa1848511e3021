package tasks

import (
	"fmt"

	"github.com/desertthunder/adpacks/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPacks Phase = iota
	ResolveStats
	MergePacks
	RefreshPacks
	SyncSheets
	ResumeJobs
)

func (p Phase) String() string {
	switch p {
	case FetchPacks:
		return "fetch_packs"
	case ResolveStats:
		return "resolve_stats"
	case MergePacks:
		return "merge_packs"
	case RefreshPacks:
		return "refresh_packs"
	case SyncSheets:
		return "sync_sheets"
	case ResumeJobs:
		return "resume_jobs"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchPacksUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: FetchPacks, Step: 1, Total: 1, Message: "Fetching packs from backend..."}
}

func resolvedStatsUpdate(step, total int, pack models.Pack) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s: stats from backend", step, total, pack.Name)
	if pack.Stats == nil {
		msg = fmt.Sprintf("[%d/%d] %s: no stats available", step, total, pack.Name)
	}
	return ProgressUpdate{Phase: ResolveStats, Step: step, Total: total, Message: msg, Data: pack.ID}
}

func mergeUpdate(result *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MergePacks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Merged packs: %d new, %d updated, %d unchanged", result.Inserted, result.Updated, result.Unchanged),
		Data:    result,
	}
}

func refreshingUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshPacks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Refreshing: %s...", step, total, name),
	}
}

func refreshCompletedUpdate(step, total int, res PackRefreshResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.PackName)
	if res.Paused {
		msg = fmt.Sprintf("[%d/%d] ⏸ %s (sheet sync paused)", step, total, res.PackName)
	}
	return ProgressUpdate{Phase: RefreshPacks, Step: step, Total: total, Message: msg, Data: res}
}

func refreshFailedUpdate(step, total int, res PackRefreshResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshPacks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.PackName, res.Error),
		Data:    res,
	}
}

func resumeUpdate(step, total int, job models.PausedSheetJob, err error) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] Resumed sheet sync for %s", step, total, job.PackName)
	if err != nil {
		msg = fmt.Sprintf("[%d/%d] Could not resume %s: %v", step, total, job.PackName, err)
	}
	return ProgressUpdate{Phase: ResumeJobs, Step: step, Total: total, Message: msg, Data: job.PackID}
}
