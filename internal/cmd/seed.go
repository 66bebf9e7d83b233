package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zaqqye/defense_backend_v1/internal/database"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert a demo defense with rooms, projects and evaluators",
	Long: `Seeds a two-room proposal defense and logs each evaluator's
access code. Codes are stored hashed and cannot be recovered later.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	_, err = database.SeedDemo(db, cfg.AccessCodeLength)
	return err
}
