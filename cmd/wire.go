package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adpacks/internal/notify"
	"github.com/desertthunder/adpacks/internal/repositories"
	"github.com/desertthunder/adpacks/internal/server"
	"github.com/desertthunder/adpacks/internal/services"
	"github.com/desertthunder/adpacks/internal/session"
	"github.com/desertthunder/adpacks/internal/shared"
	"github.com/desertthunder/adpacks/internal/storage"
	"github.com/desertthunder/adpacks/internal/tasks"
	"github.com/desertthunder/adpacks/internal/tracking"
)

// components is the wired application graph shared by every command.
type components struct {
	db            *sql.DB
	records       *repositories.AdRecordRepository
	persist       *storage.Debounced
	client        *services.Client
	providers     *services.Providers
	session       *session.Store
	updating      *tracking.UpdatingPacks
	paused        *tracking.PausedJobs
	notifications *notify.Center
	coordinator   *tasks.PackSyncCoordinator
	refresher     *tasks.PackRefresher
	unwatch       func()
	logger        *log.Logger
}

// open builds the application graph: the sqlite database backs both the raw-record cache and the
// debounced key-value store that persists the session and the paused job registry.
func (r *Runner) open(ctx context.Context) (*components, error) {
	cfg := r.config

	db, err := shared.OpenDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	c := &components{db: db, logger: r.logger}

	c.persist = storage.NewDebounced(
		repositories.NewKVRepository(db),
		storage.WithWindow(cfg.Storage.Debounce.Duration),
		storage.WithLogger(shared.WithLogger(r.logger, "component", "storage")),
	)

	if r.httpClient != nil {
		c.client = services.NewClient(cfg.Backend.URL, r.httpClient, shared.WithLogger(r.logger, "component", "backend"))
	} else {
		c.client = services.NewClientFromConfig(cfg.Backend, shared.WithLogger(r.logger, "component", "backend"))
	}
	c.providers = services.NewProviders(cfg.Credentials, cfg.Server.Origin())

	c.session = session.NewStore(
		session.WithPersister(c.persist),
		session.WithTokenSink(c.client),
		session.WithLogger(shared.WithLogger(r.logger, "component", "session")),
	)

	c.records = repositories.NewAdRecordRepository(db)
	c.updating = tracking.NewUpdatingPacks()
	c.paused = tracking.NewPausedJobs(
		tracking.WithStore(c.persist),
		tracking.WithLogger(shared.WithLogger(r.logger, "component", "paused_jobs")),
	)
	c.notifications = notify.NewCenter(shared.WithLogger(r.logger, "component", "notify"))

	c.coordinator = tasks.NewPackSyncCoordinator(
		c.client,
		repositories.NewRecordCacheAdapter(c.records, shared.WithLogger(r.logger, "component", "record_cache")),
		c.session,
		shared.WithLogger(r.logger, "component", "sync"),
		cfg.Sync.CacheConcurrency,
	)
	c.unwatch = c.coordinator.Watch(c.session)

	c.refresher = tasks.NewPackRefresher(
		c.client,
		c.session,
		c.updating,
		c.paused,
		c.notifications,
		shared.WithLogger(r.logger, "component", "refresh"),
	)

	return c, nil
}

// refreshOpts maps sync settings to bulk refresh options.
func (r *Runner) refreshOpts(all bool) tasks.RefreshAllOpts {
	return tasks.RefreshAllOpts{
		NumWorkers: r.config.Sync.Workers,
		RateLimit:  r.config.Sync.RateLimit,
		All:        all,
	}
}

// server builds the web companion over the wired components.
func (c *components) server(cfg shared.ServerConfig) *server.Server {
	return server.New(server.Deps{
		Config:        cfg,
		Providers:     c.providers,
		Backend:       c.client,
		Session:       c.session,
		Coordinator:   c.coordinator,
		Refresher:     c.refresher,
		Updating:      c.updating,
		Paused:        c.paused,
		Notifications: c.notifications,
		Logger:        shared.WithLogger(c.logger, "component", "server"),
	})
}

// requireSession returns the current session or [shared.ErrNotAuthenticated].
func (c *components) requireSession() (string, error) {
	snap := c.session.Snapshot()
	if !snap.Authenticated() {
		return "", fmt.Errorf("%w: run 'adpacks auth login' first", shared.ErrNotAuthenticated)
	}
	return snap.UserID(), nil
}

// Close writes pending persistence and releases the database.
func (c *components) Close() error {
	if c.unwatch != nil {
		c.unwatch()
	}
	c.persist.Flush()
	c.persist.Close()
	return c.db.Close()
}
