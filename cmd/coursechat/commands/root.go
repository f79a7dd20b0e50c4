// Package commands defines all Cobra CLI commands for the coursechat binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/coursechat/coursechat-go/internal/audit"
	"github.com/coursechat/coursechat-go/internal/config"
	"github.com/coursechat/coursechat-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coursechat",
		Short: "coursechat — ask questions about your course materials",
		Long: `coursechat is a retrieval-augmented assistant for course materials.

It ingests course transcript files into a Qdrant vector store and answers
natural language questions about them, citing the lessons it drew from.
The model decides per question whether to search course content, fetch a
course outline, or answer from general knowledge.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.coursechat/config.yaml).
See 'coursechat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.coursechat/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewIngestCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
