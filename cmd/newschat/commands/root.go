// Package commands defines all Cobra CLI commands for the newschat binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/newschat-go/internal/audit"
	"github.com/54b3r/newschat-go/internal/config"
	"github.com/54b3r/newschat-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// loadedConfig holds the parsed YAML config. Most values are mirrored into
// env vars by config.Load; the ingestion source list is only reachable here.
var loadedConfig *config.Config

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "newschat",
		Short: "newschat — a retrieval-augmented news chatbot",
		Long: `newschat is a news chatbot that answers questions using recently
ingested articles.

It ingests news feeds into a Qdrant vector index, retrieves the most
relevant passages per question (category-aware, with graceful fallback),
and generates grounded answers with source attribution. Sessions live in
Redis with a sliding TTL.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.newschat/config.yaml).
See 'newschat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			cfg, path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfig = cfg
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.newschat/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
