package repositories

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/shared"
)

// CacheResult is the outcome of a raw-record cache lookup.
//
// Success is false when the lookup itself failed; an empty Data with Success set means nothing is cached.
type CacheResult struct {
	Success bool
	Data    []models.RawAdRecord
}

// Found reports whether the lookup produced usable records.
func (c CacheResult) Found() bool {
	return c.Success && len(c.Data) > 0
}

// RecordCacheAdapter implements tasks.RecordCache using AdRecordRepository.
//
// Lookup failures are logged and folded into an unsuccessful [CacheResult] rather than returned.
type RecordCacheAdapter struct {
	repo   *AdRecordRepository
	logger *log.Logger
}

// NewRecordCacheAdapter creates a new RecordCacheAdapter with the given repository. logger may be nil.
func NewRecordCacheAdapter(repo *AdRecordRepository, logger *log.Logger) *RecordCacheAdapter {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &RecordCacheAdapter{repo: repo, logger: logger}
}

// GetCachedRecords returns the cached records for packID.
func (a *RecordCacheAdapter) GetCachedRecords(ctx context.Context, packID string) CacheResult {
	records, err := a.repo.ListByPack(ctx, packID)
	if err != nil {
		a.logger.Warn("record cache lookup failed", "pack", packID, "error", err)
		return CacheResult{}
	}
	return CacheResult{Success: true, Data: records}
}
