package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/server"
	"github.com/desertthunder/adpacks/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin serves the callback locally, sends the user to Facebook in the browser, and waits for the session.
//
// Redirect mode opens the login route directly. Popup mode opens the landing page, whose button starts the popup.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	mode := cmd.String("mode")
	if mode != server.TransportPopup && mode != server.TransportRedirect {
		return fmt.Errorf("%w: mode must be %q or %q, got %q", shared.ErrInvalidArgument, server.TransportPopup, server.TransportRedirect, mode)
	}
	if !r.config.Credentials.Facebook.Configured() {
		return fmt.Errorf("%w: credentials.facebook", shared.ErrMissingCredentials)
	}

	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	signedIn := make(chan models.Session, 1)
	unsubscribe := c.session.Subscribe(func(s models.Session) {
		if s.Authenticated() {
			select {
			case signedIn <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	srvCtx, stop := context.WithCancel(ctx)
	defer stop()
	errCh := make(chan error, 1)
	go func() { errCh <- c.server(r.config.Server).ListenAndServe(srvCtx) }()

	loginURL := r.config.Server.Origin() + "/"
	if mode == server.TransportRedirect {
		loginURL = r.config.Server.Origin() + "/auth/facebook?mode=" + mode
	}

	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL to sign in:\n%s\n", loginURL)
	} else if err := shared.OpenBrowser(loginURL); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		r.writePlain("Open this URL to sign in:\n%s\n", loginURL)
	}

	r.logger.Info("waiting for sign-in", "mode", mode, "timeout", cmd.Duration("timeout"))

	select {
	case s := <-signedIn:
		stop()
		<-errCh
		r.writePlain("✓ Signed in as %s\n", displayUser(s.User))
		r.writePlain("Ad accounts: %d\n", len(s.AdAccounts))
		return nil
	case err := <-errCh:
		if err == nil {
			err = ctx.Err()
		}
		return fmt.Errorf("server stopped before sign-in: %w", err)
	case <-time.After(cmd.Duration("timeout")):
		return fmt.Errorf("%w: no sign-in within %s", shared.ErrTimeout, cmd.Duration("timeout"))
	}
}

type authStatus struct {
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user,omitempty"`
	AdAccounts    int          `json:"adAccounts"`
	Packs         int          `json:"packs"`
	PausedJobs    int          `json:"pausedJobs"`
}

// AuthStatus prints the stored session state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	snap := c.session.Snapshot()
	status := authStatus{
		Authenticated: snap.Authenticated(),
		User:          snap.User,
		AdAccounts:    len(snap.AdAccounts),
		Packs:         len(snap.Packs),
		PausedJobs:    c.paused.Len(),
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	if !status.Authenticated {
		return r.writePlain("✗ Not signed in\nRun 'adpacks auth login' to sign in.\n")
	}

	r.writePlain("✓ Signed in as %s\n", displayUser(status.User))
	r.writePlain("Ad accounts: %d\n", status.AdAccounts)
	r.writePlain("Packs: %d\n", status.Packs)
	if status.PausedJobs > 0 {
		r.writePlain("Paused sheet syncs: %d (run 'adpacks jobs list')\n", status.PausedJobs)
	}
	return nil
}

// AuthLogout clears the session and the sync guard.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if !c.session.Snapshot().Authenticated() {
		return r.writePlain("Already signed out\n")
	}

	c.session.Logout()
	c.coordinator.Reset()
	r.logger.Info("signed out")
	return r.writePlain("✓ Signed out\n")
}

func displayUser(u *models.User) string {
	if u == nil {
		return "unknown"
	}
	if u.Name == "" {
		return u.ID
	}
	if u.Email != "" {
		return fmt.Sprintf("%s <%s>", u.Name, u.Email)
	}
	return u.Name
}
