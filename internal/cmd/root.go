// Package cmd wires the command line: serve, migrate, seed and token.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zaqqye/defense_backend_v1/internal/config"
	"github.com/zaqqye/defense_backend_v1/internal/logutils"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Defense evaluation backend",
	Long: `Records evaluator submissions for project defenses and cascades
completion from defense-objects to rooms and defenses.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logutils.SetLevel(cfg.LogLevel)
	return cfg, nil
}
