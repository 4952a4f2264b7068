package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/murmurnotes/murmur/internal/output"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			stats, err := app.svc.GetStats(cmd.Context())
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Heading("vector index")
			out.Field("recordings", fmt.Sprintf("%d", stats.Vector.TotalRecordings))
			out.Field("chunks", fmt.Sprintf("%d", stats.Vector.TotalChunks))
			out.Field("size", formatBytes(stats.Vector.TotalSizeBytes))

			out.Heading("keyword index")
			out.Field("documents", fmt.Sprintf("%d", stats.Keyword.DocCount))
			if stats.Keyword.LastBuilt.IsZero() {
				out.Field("last built", "never")
			} else {
				out.Field("last built", stats.Keyword.LastBuilt.Format("2006-01-02 15:04:05"))
			}

			out.Heading("sync")
			out.Field("status", string(stats.Snapshot.Status))
			if stats.Snapshot.ErrorMessage != "" {
				out.Field("error", stats.Snapshot.ErrorMessage)
			}
			return nil
		},
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
