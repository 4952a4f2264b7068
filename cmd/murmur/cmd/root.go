// Package cmd provides the CLI commands for murmur.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/murmurnotes/murmur/internal/config"
	"github.com/murmurnotes/murmur/internal/logging"
	"github.com/murmurnotes/murmur/pkg/version"
)

var (
	notesDir       string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "murmur",
		Short: "Local hybrid search for your voice notes",
		Long: `Murmur keeps a local search index over a directory of markdown voice
notes: a semantic (vector) index for searching by meaning and a keyword
(BM25) index for exact terms. Only changed notes are re-embedded.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("murmur version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&notesDir, "notes-dir", "",
		"notes directory (default: $MURMUR_NOTES_DIR or ~/murmur)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func setupLogging(*cobra.Command, []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg.Level = "debug"
	}

	cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Debug("logging configured", slog.String("level", cfg.Level))
	return nil
}

// resolveNotesDir picks the notes directory: flag, then environment, then
// the built-in default.
func resolveNotesDir() string {
	if notesDir != "" {
		return notesDir
	}
	if env := os.Getenv("MURMUR_NOTES_DIR"); env != "" {
		return env
	}
	return config.Default().Paths.NotesDir
}
