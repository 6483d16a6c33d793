package commands

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/fitcoach-go/internal/corpus"
	"github.com/54b3r/fitcoach-go/internal/logging"
)

// maxSearchResults mirrors the HTTP search limit.
const maxSearchResults = 20

// NewSearchCmd constructs the `fitcoach search` command, which ranks the
// exercise corpus against a free-text query.
func NewSearchCmd() *cobra.Command {
	var limit int
	var difficulty string
	var muscles []string

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the exercise corpus",
		Long: `Rank the exercise corpus against a free-text query, as POST
/api/exercises/search does. When semantic search is unavailable, documents are
listed in corpus order without a score.

Examples:
  fitcoach search "renforcer le dos"
  fitcoach search --difficulty beginner --muscle jambes "squat"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			query := strings.TrimSpace(strings.Join(args, " "))
			if len([]rune(query)) < 2 {
				return fmt.Errorf("search: query must be at least 2 characters")
			}
			if limit < 1 || limit > maxSearchResults {
				return fmt.Errorf("search: --max must be between 1 and %d", maxSearchResults)
			}
			d, err := corpus.ParseDifficulty(difficulty)
			if err != nil {
				return fmt.Errorf("search: --difficulty: %w", err)
			}

			svc, err := buildService(log, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer svc.Close()

			if err := svc.index.Build(ctx); err != nil {
				log.Warn("search: semantic search disabled, listing in corpus order", slog.Any("error", err))
			}

			matches := svc.coach.SearchExercises(ctx, query, corpus.Filter{Difficulty: d, MuscleGroups: muscles}, limit)
			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "no matching exercises")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCORE\tTITLE\tDIFFICULTY\tMUSCLES")
			for _, m := range matches {
				score := "-"
				if m.Scored {
					score = fmt.Sprintf("%.3f", m.Score)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", score, m.Doc.Title, orDash(string(m.Doc.Difficulty)), orDash(strings.Join(m.Doc.Tags, ",")))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "max", "n", 5, "Maximum number of results (1-20)")
	cmd.Flags().StringVarP(&difficulty, "difficulty", "d", "", "Filter by difficulty: beginner, intermediate, advanced")
	cmd.Flags().StringSliceVar(&muscles, "muscle", nil, "Filter by muscle group (repeatable)")

	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
