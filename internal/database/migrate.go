package database

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/models"
)

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "202610170001_defense_evaluation_schema",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(models.All()...)
			},
			Rollback: func(tx *gorm.DB) error {
				all := models.All()
				for i := len(all) - 1; i >= 0; i-- {
					if err := tx.Migrator().DropTable(all[i]); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}

func Migrate(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, migrations()).Migrate()
}

// RollbackLast undoes the most recent migration.
func RollbackLast(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, migrations()).RollbackLast()
}
