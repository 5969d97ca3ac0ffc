package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deepreview/socratic/internal/config"
	"github.com/deepreview/socratic/internal/store"
)

var rootCmd = &cobra.Command{
	Use:          "deepreview",
	Short:        "Socratic assessment service for research articles",
	Long:         "DeepReview runs five-question adaptive Socratic assessments over articles a reader has uploaded.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (yaml, json or toml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(articleCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads settings using the --config flag when given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured database. The sqlite file defaults to
// DEEPREVIEW_DB, then the XDG data directory.
func openStore(cfg *config.Config) (*store.Store, error) {
	s, err := store.Open(store.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}
