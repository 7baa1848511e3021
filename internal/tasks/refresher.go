package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/notify"
	"github.com/desertthunder/adpacks/internal/services"
	"github.com/desertthunder/adpacks/internal/shared"
	"github.com/desertthunder/adpacks/internal/tracking"
)

// ReconnectAction is the notification action that restarts the Google Sheets consent flow.
const ReconnectAction = "/auth/google-sheets"

// RefreshBackend is the part of the backend used for refreshes and sheet syncs.
type RefreshBackend interface {
	RefreshPack(ctx context.Context, packID string) (*models.Pack, error)
	SyncSheet(ctx context.Context, packID string) (string, error)
	ResumeSheetSync(ctx context.Context, syncJobID string) error
}

// RefreshStore is the part of the session store the refresher reads and writes.
type RefreshStore interface {
	Snapshot() models.Session
	UpdatePack(id string, fn func(models.Pack) models.Pack) bool
}

// PackRefreshResult is the outcome of refreshing one pack.
type PackRefreshResult struct {
	PackID       string
	PackName     string
	StatsChanged bool
	SyncJobID    string // Sheet sync job started, if any
	Paused       bool   // Sheet sync paused on an expired Google token
	Error        error
}

// PackRefresher runs user and automatic pack refreshes.
type PackRefresher struct {
	backend  RefreshBackend
	store    RefreshStore
	updating *tracking.UpdatingPacks
	paused   *tracking.PausedJobs
	notifier notify.Notifier
	logger   *log.Logger
	now      func() time.Time
}

// NewPackRefresher creates a refresher.
func NewPackRefresher(
	backend RefreshBackend,
	store RefreshStore,
	updating *tracking.UpdatingPacks,
	paused *tracking.PausedJobs,
	notifier notify.Notifier,
	logger *log.Logger,
) *PackRefresher {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &PackRefresher{
		backend:  backend,
		store:    store,
		updating: updating,
		paused:   paused,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Refresh refreshes packID and, when the pack is bound to a spreadsheet, starts its sheet sync.
//
// Returns [shared.ErrRefreshInProgress] when the pack is already updating. An expired Google token
// is not an error: the job is paused and the result reports Paused.
func (r *PackRefresher) Refresh(ctx context.Context, packID string) (*PackRefreshResult, error) {
	if r.updating.Is(packID) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRefreshInProgress, packID)
	}

	current, i := r.store.Snapshot().FindPack(packID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrPackNotFound, packID)
	}

	if !r.updating.TryAdd(packID) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRefreshInProgress, packID)
	}
	defer r.updating.Remove(packID)

	result := &PackRefreshResult{PackID: packID, PackName: current.Name}

	refreshed, err := r.backend.RefreshPack(ctx, packID)
	if err != nil {
		result.Error = err
		return result, err
	}

	if !current.Stats.Equal(refreshed.Stats) {
		result.StatsChanged = r.store.UpdatePack(packID, func(p models.Pack) models.Pack {
			p.Stats = refreshed.Stats
			p.UpdatedAt = refreshed.UpdatedAt
			return p
		})
	}

	if refreshed.SheetIntegration == nil && current.SheetIntegration == nil {
		return result, nil
	}

	jobID, err := r.backend.SyncSheet(ctx, packID)
	if expired, ok := services.IsTokenExpired(err); ok {
		integrationID := expired.IntegrationID
		if integrationID == "" && refreshed.SheetIntegration != nil {
			integrationID = refreshed.SheetIntegration.ID
		}
		r.pause(current, expired.SyncJobID, integrationID)
		result.Paused = true
		result.SyncJobID = expired.SyncJobID
		return result, nil
	}
	if err != nil {
		result.Error = err
		return result, err
	}

	result.SyncJobID = jobID
	if job, ok := r.paused.GetJob(packID); ok {
		r.paused.ClearJob(packID)
		r.notifier.Dismiss(job.ToastID)
	}
	return result, nil
}

// pause records the paused job, reusing the pack's existing notification so the user sees one toast per pack.
func (r *PackRefresher) pause(pack models.Pack, syncJobID, integrationID string) {
	var toastID string
	if existing, ok := r.paused.GetJob(pack.ID); ok {
		toastID = existing.ToastID
	}

	toastID = r.notifier.Show(notify.Notification{
		ID:         toastID,
		Level:      notify.LevelWarning,
		Title:      "Google Sheets authorization expired",
		Message:    fmt.Sprintf("Sheet sync for %q is paused. Reconnect Google Sheets to resume.", pack.Name),
		Persistent: true,
		Action:     ReconnectAction,
	})

	r.paused.PauseJob(models.PausedSheetJob{
		SyncJobID:     syncJobID,
		PackID:        pack.ID,
		PackName:      pack.Name,
		ToastID:       toastID,
		IntegrationID: integrationID,
		PausedAt:      r.now(),
		Reason:        models.ReasonTokenExpired,
	})

	r.logger.Warn("sheet sync paused", "pack", pack.ID, "job", syncJobID)
}

// ResumeResult summarizes a resume pass.
type ResumeResult struct {
	Resumed []string // Pack ids whose jobs resumed
	Failed  []string // Pack ids left paused
}

// ResumePaused resumes every paused sheet job. Failed resumes stay paused for a later attempt.
func (r *PackRefresher) ResumePaused(ctx context.Context, progress chan<- ProgressUpdate) *ResumeResult {
	jobs := r.paused.GetAllPausedJobs()
	result := &ResumeResult{}

	for i, job := range jobs {
		err := r.backend.ResumeSheetSync(ctx, job.SyncJobID)
		sendProgress(progress, resumeUpdate(i+1, len(jobs), job, err))

		if err != nil {
			r.logger.Warn("failed to resume sheet sync", "pack", job.PackID, "job", job.SyncJobID, "error", err)
			result.Failed = append(result.Failed, job.PackID)
			continue
		}

		r.paused.ClearJob(job.PackID)
		r.notifier.Dismiss(job.ToastID)
		result.Resumed = append(result.Resumed, job.PackID)
	}

	if len(result.Resumed) > 0 {
		r.notifier.Show(notify.Notification{
			Level:   notify.LevelSuccess,
			Title:   "Google Sheets reconnected",
			Message: fmt.Sprintf("Resumed %d sheet sync job(s).", len(result.Resumed)),
		})
	}
	return result
}

// Dismiss clears the paused job of packID without resuming it and removes its notification.
func (r *PackRefresher) Dismiss(packID string) error {
	job, ok := r.paused.GetJob(packID)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrPausedJobNotFound, packID)
	}
	r.paused.ClearJob(packID)
	r.notifier.Dismiss(job.ToastID)
	return nil
}

// IsBusy reports whether err means the refresh was skipped because another one is running.
func IsBusy(err error) bool {
	return errors.Is(err, shared.ErrRefreshInProgress)
}
