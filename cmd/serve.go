package main

import (
	"context"

	"github.com/desertthunder/adpacks/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the web companion until interrupted, then flushes pending persistence.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	unlock, err := shared.LockDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer unlock()

	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	srv := c.server(r.config.Server)
	r.logger.Info("open the dashboard", "url", r.config.Server.Origin())
	return srv.ListenAndServe(ctx)
}
