package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/murmurnotes/murmur/internal/output"
	"github.com/murmurnotes/murmur/internal/store"
)

func newSearchCmd() *cobra.Command {
	var (
		keyword  bool
		limit    int
		minScore float64
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search your notes",
		Long: `Searches the index. The default mode is semantic: notes are ranked by
meaning, so "that talk about fermentation" finds the sourdough note.
Keyword mode (--keyword) ranks by exact term matches instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			out := output.New(cmd.OutOrStdout())
			if limit <= 0 {
				limit = app.cfg.Search.MaxResults
			}
			start := time.Now()

			if keyword {
				hits, err := app.svc.KeywordSearch(cmd.Context(), query, limit)
				if err != nil {
					return err
				}
				if len(hits) == 0 {
					out.Printf("no matches\n")
					return nil
				}
				for i, h := range hits {
					out.Result(i+1, h.Title, h.Score, h.Fragment)
				}
				out.Timing(time.Since(start))
				return nil
			}

			score := minScore
			if score == 0 {
				score = app.cfg.Search.MinScore
			}
			hits, err := app.svc.SemanticSearch(cmd.Context(), query, store.SearchOptions{
				Limit:    limit,
				MinScore: float32(score),
			})
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				out.Printf("no matches\n")
				return nil
			}
			for i, h := range hits {
				title := fmt.Sprintf("%s (%s)", h.RecordingID, h.Field)
				out.Result(i+1, title, float64(h.Score), h.Text)
			}
			out.Timing(time.Since(start))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&keyword, "keyword", "k", false, "keyword (BM25) search instead of semantic")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results (default from config)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "drop semantic results below this similarity")
	return cmd
}
