package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zaqqye/defense_backend_v1/internal/database"
	"github.com/zaqqye/defense_backend_v1/internal/logutils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().Bool("rollback", false, "roll back the most recent migration instead")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	if rollback, _ := cmd.Flags().GetBool("rollback"); rollback {
		if err := database.RollbackLast(db); err != nil {
			return err
		}
		logutils.Log.Info("rolled back last migration")
		return nil
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	logutils.Log.Info("migrations applied")
	return nil
}
