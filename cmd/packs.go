package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/adpacks/internal/formatter"
	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/shared"
	"github.com/desertthunder/adpacks/internal/tasks"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
)

// PacksList prints the session's packs.
func (r *Runner) PacksList(ctx context.Context, cmd *cli.Command) error {
	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	packs := c.session.Snapshot().Packs
	if cmd.Bool("json") {
		return r.writeJSON(packs, cmd.Bool("pretty"))
	}

	if len(packs) == 0 {
		return r.writePlain("No packs. Run 'adpacks packs sync' to load them.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Packs (%d)", len(packs)))
	table := tablewriter.NewWriter(r.output)
	table.Header("ID", "Name", "Range", "Level", "Ads", "Spend", "Status")
	for _, p := range packs {
		ads, spend := "-", "-"
		if p.Stats != nil {
			ads, spend = formatter.StatValue(p.Stats.TotalAds), formatter.StatValue(p.Stats.TotalSpend)
		}

		var status []string
		if p.AutoRefresh {
			status = append(status, "auto refresh")
		}
		if c.paused.HasPausedJob(p.ID) {
			status = append(status, "sheet sync paused")
		}

		if err := table.Append(p.ID, p.Name, p.DateStart+" → "+p.DateStop, p.Level, ads, spend, strings.Join(status, ", ")); err != nil {
			return fmt.Errorf("failed to write table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}
	return nil
}

// PacksSync loads the user's packs, deriving missing stats from the local record cache.
func (r *Runner) PacksSync(ctx context.Context, cmd *cli.Command) error {
	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	userID, err := c.requireSession()
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := r.logProgress(progress)
	result, err := c.coordinator.EnsureLoaded(ctx, userID, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlain("✓ Synced %d packs\n", result.Fetched)
	r.writePlain("  New: %d  Updated: %d  Unchanged: %d\n", result.Inserted, result.Updated, result.Unchanged)
	if result.Derived > 0 || result.CacheMisses > 0 {
		r.writePlain("  Stats from cache: %d  Cache misses: %d\n", result.Derived, result.CacheMisses)
	}
	return nil
}

// PacksRefresh refreshes one pack by --id, or every auto-refresh pack (every pack with --all).
func (r *Runner) PacksRefresh(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	all := cmd.Bool("all")
	if id != "" && all {
		return fmt.Errorf("%w: cannot specify both --id and --all", shared.ErrInvalidArgument)
	}

	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.requireSession(); err != nil {
		return err
	}

	if id != "" {
		res, err := c.refresher.Refresh(ctx, id)
		if err != nil {
			return err
		}
		r.writeRefreshResult(*res)
		return nil
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := r.logProgress(progress)
	result, err := c.refresher.RefreshAll(ctx, progress, r.refreshOpts(all))
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if result.Total == 0 {
		return r.writePlain("Nothing to refresh\n")
	}
	for _, res := range result.Results {
		r.writeRefreshResult(res)
	}
	r.writePlainln("Refreshed %d/%d (paused %d, skipped %d, failed %d)",
		result.Succeeded, result.Total, result.Paused, result.Skipped, result.Failed)
	if result.Failed > 0 {
		return fmt.Errorf("%w: %d packs failed to refresh", shared.ErrAPIRequest, result.Failed)
	}
	return nil
}

func (r *Runner) writeRefreshResult(res tasks.PackRefreshResult) {
	name := res.PackName
	if name == "" {
		name = res.PackID
	}
	switch {
	case res.Error != nil && tasks.IsBusy(res.Error):
		r.writePlain("• %s: already refreshing\n", name)
	case res.Error != nil:
		r.writePlain("✗ %s: %v\n", name, res.Error)
	case res.Paused:
		r.writePlain("⚠ %s: refreshed, sheet sync paused until Google Sheets is reconnected\n", name)
	case res.StatsChanged:
		r.writePlain("✓ %s: stats updated\n", name)
	default:
		r.writePlain("✓ %s: up to date\n", name)
	}
}

// PacksExport writes a pack and its cached records in the requested format.
func (r *Runner) PacksExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	id := cmd.String("id")
	pack, i := c.session.Snapshot().FindPack(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", shared.ErrPackNotFound, id)
	}

	records, err := c.records.ListByPack(ctx, id)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		r.logger.Warn("no cached records, exporting pack metadata only", "pack", id)
	}

	files, err := formatter.Write(format, &models.PackExport{Pack: pack, Records: records}, cmd.String("output"))
	if err != nil {
		return err
	}

	r.writePlain("✓ Exported %s (%d records)\n", pack.Name, len(records))
	for _, f := range files {
		r.writePlain("  %s\n", f)
	}
	return nil
}

// logProgress logs updates until progress is closed; the returned channel closes once drained.
func (r *Runner) logProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			r.logger.Info(u.Message, "phase", u.Phase.String(), "step", u.Step, "total", u.Total)
		}
	}()
	return done
}
