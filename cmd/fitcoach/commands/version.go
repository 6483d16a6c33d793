package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/fitcoach-go/internal/version"
)

// NewVersionCmd constructs the `fitcoach version` subcommand.
// It prints the release, commit, build date, and Go toolchain.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fitcoach version, git commit, and build date",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}
