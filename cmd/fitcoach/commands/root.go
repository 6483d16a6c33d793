// Package commands defines all Cobra CLI commands for the fitcoach binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/fitcoach-go/internal/audit"
	"github.com/54b3r/fitcoach-go/internal/config"
	"github.com/54b3r/fitcoach-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFile holds the --env-file flag value.
var envFile string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fitcoach",
		Short: "FitCoach, a French-speaking fitness coach backed by small language models",
		Long: `FitCoach answers fitness and nutrition questions in French.

Each question is matched against a curated exercise corpus, the best documents
are placed in the prompt of a small language model, and the generation is
cleaned up before it is returned. When no model can produce a usable answer,
a canned coaching answer is served instead, so a question always gets a reply.

Model backends are selected per family with DISTILGPT2_* and PLAYPART_*
environment variables, a .env file, or a YAML config file
(~/.fitcoach/config.yaml). Environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// .env first so its values count as environment for config.Load.
			if err := config.LoadDotEnv(envFile, log); err != nil {
				return err
			}

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.fitcoach/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file; missing files are ignored")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewSearchCmd(),
		NewIndexCmd(),
		NewModelsCmd(),
		NewVersionCmd(),
	)

	return root
}
