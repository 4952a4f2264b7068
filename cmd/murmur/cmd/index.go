package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/murmurnotes/murmur/internal/output"
	"github.com/murmurnotes/murmur/pkg/version"
)

func newIndexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Sync the search index with the notes on disk",
		Long: `Reconciles both indexes with the notes directory. Unchanged notes are
detected by content hash and skipped; only new and edited notes are
re-embedded. Notes deleted from disk are removed from the index.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			out := output.New(cmd.OutOrStdout())
			start := time.Now()

			if force {
				err = app.svc.ForceFullReindex(cmd.Context())
			} else {
				err = app.svc.SyncIndexes(cmd.Context())
			}
			if err != nil {
				return err
			}

			snap := app.svc.Status()
			out.Printf("indexed %d of %d notes (%d unchanged)\n",
				snap.IndexedCount, snap.TotalToIndex, snap.TotalToIndex-snap.IndexedCount)
			out.Timing(time.Since(start))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "wipe the index and reindex everything")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
