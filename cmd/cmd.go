// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config file from the built-in template",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing config file",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// serveCommand runs the local web companion.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve login, the OAuth callback and the pack dashboard",
		Action: r.Serve,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with Facebook in the browser",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Login transport: popup or redirect",
						Value: "redirect",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser sign-in",
						Value: 5 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the login URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show the signed-in user and session state",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Clear the stored session",
				Action: r.AuthLogout,
			},
		},
	}
}

// packsCommand handles pack operations
func packsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "packs",
		Usage: "List, sync, refresh and export packs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List packs in the session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.PacksList,
			},
			{
				Name:   "sync",
				Usage:  "Load packs from the backend and fill in stats from the local cache",
				Action: r.PacksSync,
			},
			{
				Name:  "refresh",
				Usage: "Refresh one pack, or every auto-refresh pack",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Pack ID to refresh",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Refresh every pack, not only auto-refresh ones",
					},
				},
				Action: r.PacksRefresh,
			},
			{
				Name:  "export",
				Usage: "Export a pack and its cached records",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Pack ID to export",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: csv, markdown, text or json",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (a directory for markdown)",
					},
				},
				Action: r.PacksExport,
			},
		},
	}
}

// jobsCommand handles paused sheet sync jobs
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Manage sheet sync jobs paused on an expired Google token",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List paused jobs",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.JobsList,
			},
			{
				Name:  "dismiss",
				Usage: "Forget a paused job",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "pack",
						Usage:    "Pack ID of the paused job",
						Required: true,
					},
				},
				Action: r.JobsDismiss,
			},
			{
				Name:   "resume",
				Usage:  "Resume every paused job after reconnecting Google Sheets",
				Action: r.JobsResume,
			},
		},
	}
}

// cacheCommand handles the local raw-record cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the local raw-record cache",
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Replace a pack's cached records with a JSON array of records",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "pack",
						Usage:    "Pack ID the records belong to",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "file",
						Usage:    "Path to the JSON records file",
						Required: true,
					},
				},
				Action: r.CacheImport,
			},
			{
				Name:   "stats",
				Usage:  "Show cached record counts per pack",
				Action: r.CacheStats,
			},
			{
				Name:  "clear",
				Usage: "Delete a pack's cached records",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "pack",
						Usage:    "Pack ID to clear",
						Required: true,
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// apiCommand handles direct backend API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the pack backend",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET to the backend, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "GJSON path to extract from the response (e.g. packs.#.name)",
					},
				},
				Action: r.APIGet,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for the interactive pack dashboard.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive pack dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the TUI owns the terminal",
				Value: "./tmp/adpacks-tui.log",
			},
		},
		Action: r.TUI,
	}
}
