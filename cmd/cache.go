package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheImport replaces a pack's cached records with those in --file. Invalid records are skipped.
func (r *Runner) CacheImport(ctx context.Context, cmd *cli.Command) error {
	packID := cmd.String("pack")
	path := cmd.String("file")

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	var records []models.RawAdRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("%w: records file must be a JSON array: %v", shared.ErrInvalidInput, err)
	}

	valid, errs := models.ValidateRecords(records)
	for _, e := range errs {
		r.logger.Warn("skipping invalid record", "error", e)
	}

	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.records.ReplaceForPack(ctx, packID, valid); err != nil {
		return err
	}

	r.logger.Info("records cached", "pack", packID, "count", len(valid), "skipped", len(errs))
	r.writePlain("✓ Cached %d records for %s\n", len(valid), packID)
	if len(errs) > 0 {
		r.writePlain("  Skipped %d invalid records\n", len(errs))
	}
	return nil
}

// CacheStats prints cached record counts per pack.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	counts, err := c.records.CountByPack(ctx)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		return r.writePlain("Cache is empty\n")
	}

	snap := c.session.Snapshot()
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	r.writePlainHeader("Cached records")
	for _, id := range ids {
		label := id
		if p, i := snap.FindPack(id); i >= 0 {
			label = fmt.Sprintf("%s (%s)", p.Name, id)
		}
		r.writePlain("%-40s %d\n", label, counts[id])
	}
	return nil
}

// CacheClear deletes a pack's cached records.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	packID := cmd.String("pack")
	if err := c.records.DeleteForPack(ctx, packID); err != nil {
		return err
	}
	return r.writePlain("✓ Cleared cached records for %s\n", packID)
}
