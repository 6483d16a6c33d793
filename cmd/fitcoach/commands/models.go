package commands

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/fitcoach-go/internal/logging"
)

// NewModelsCmd constructs the `fitcoach models` command, which loads every
// configured model family and reports its state.
func NewModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List model families and their load state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			svc, err := buildService(log, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("models: %w", err)
			}
			defer svc.Close()

			if err := svc.registry.LoadAll(ctx); err != nil {
				log.Warn("models: some models failed to load", slog.Any("error", err))
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tBACKEND\tLOADED\tBREAKER\tCURRENT")
			for _, m := range svc.coach.Models() {
				f := m.Profile.Family
				current := ""
				if m.Current {
					current = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n",
					f, m.Profile.Name, orDash(string(svc.registry.Backend(f))), m.Loaded,
					orDash(svc.registry.BreakerState(f)), current)
			}
			return tw.Flush()
		},
	}
}
