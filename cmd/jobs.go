package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/adpacks/internal/tasks"
	"github.com/urfave/cli/v3"
)

// JobsList prints paused sheet sync jobs.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	jobs := c.paused.GetAllPausedJobs()
	if cmd.Bool("json") {
		return r.writeJSON(jobs, true)
	}
	if len(jobs) == 0 {
		return r.writePlain("No paused jobs\n")
	}

	r.writePlainHeader(fmt.Sprintf("Paused sheet syncs (%d)", len(jobs)))
	for _, j := range jobs {
		name := j.PackName
		if name == "" {
			name = j.PackID
		}
		r.writePlain("%s  job %s  paused %s  (%s)\n", name, j.SyncJobID, j.PausedAt.Format("2006-01-02 15:04"), j.Reason)
	}
	r.writePlainln("Reconnect Google Sheets, then run 'adpacks jobs resume'.")
	return nil
}

// JobsDismiss forgets the paused job of --pack.
func (r *Runner) JobsDismiss(ctx context.Context, cmd *cli.Command) error {
	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	packID := cmd.String("pack")
	if err := c.refresher.Dismiss(packID); err != nil {
		return err
	}
	return r.writePlain("✓ Dismissed paused job for %s\n", packID)
}

// JobsResume resumes every paused job. Jobs that fail stay paused.
func (r *Runner) JobsResume(ctx context.Context, cmd *cli.Command) error {
	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.requireSession(); err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := r.logProgress(progress)
	result := c.refresher.ResumePaused(ctx, progress)
	close(progress)
	<-done

	if len(result.Resumed) == 0 && len(result.Failed) == 0 {
		return r.writePlain("No paused jobs\n")
	}
	r.writePlain("✓ Resumed %d jobs\n", len(result.Resumed))
	if len(result.Failed) > 0 {
		r.writePlain("⚠ %d jobs still paused: %v\n", len(result.Failed), result.Failed)
	}
	return nil
}
