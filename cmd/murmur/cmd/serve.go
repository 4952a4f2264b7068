package cmd

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/murmurnotes/murmur/internal/logging"
	"github.com/murmurnotes/murmur/internal/mcp"
	"github.com/murmurnotes/murmur/internal/watch"
)

func newServeCmd() *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Serves search_notes, sync_index and index_status tools to MCP clients
over stdio. The notes directory is watched for changes and the index
re-synced automatically unless --no-watch is given.

Stdout carries the protocol, so logs go to a file under the index
directory (and stderr with --debug).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			// Reconfigure logging: stdout is the JSON-RPC channel.
			logCfg := logging.Config{
				Level:     app.cfg.Server.LogLevel,
				FilePath:  filepath.Join(app.cfg.Paths.IndexDir, "server.log"),
				MaxSizeMB: 10,
				MaxFiles:  5,
				Stderr:    debugMode,
			}
			if debugMode {
				logCfg.Level = "debug"
			}
			cleanup, err := logging.Setup(logCfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()

			// Bring the index up to date before accepting queries.
			if err := app.svc.SyncIndexes(ctx); err != nil {
				slog.Warn("initial sync failed, serving stale index",
					slog.String("error", err.Error()))
			}

			if !noWatch {
				watcher := watch.New(app.cfg.Paths.NotesDir, app.cfg.Watch.Debounce,
					func(ctx context.Context) {
						if err := app.svc.SyncIndexes(ctx); err != nil {
							slog.Warn("watch-triggered sync failed",
								slog.String("error", err.Error()))
						}
					})
				if err := watcher.Start(ctx); err != nil {
					return err
				}
				defer func() { _ = watcher.Stop() }()
			}

			srv, err := mcp.NewServer(app.svc)
			if err != nil {
				return err
			}
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not watch the notes directory for changes")
	return cmd
}
