package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/adpacks/internal/shared"
	"github.com/desertthunder/adpacks/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive pack dashboard.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

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

	if _, err := c.requireSession(); err != nil {
		return err
	}

	model := ui.NewModel(ctx, ui.Deps{
		Session:     c.session,
		Coordinator: c.coordinator,
		Refresher:   c.refresher,
		Details:     c.client,
		Updating:    c.updating,
		Paused:      c.paused,
		RefreshOpts: r.refreshOpts(false),
	})
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
