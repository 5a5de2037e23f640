package repository

import (
	"fmt"

	"github.com/amirphl/leadflow/models"
	"gorm.io/gorm"
)

// Models lists every persisted entity in dependency order
func Models() []any {
	return []any{
		&models.Admin{},
		&models.Company{},
		&models.SequenceCounter{},
		&models.User{},
		&models.AssociateUser{},
		&models.Project{},
		&models.MasterStatus{},
		&models.Customer{},
		&models.CustomerStatusHistory{},
		&models.FollowUp{},
		&models.FollowUpEntry{},
		&models.Note{},
		&models.NoteEntry{},
		&models.CustomerLink{},
		&models.AssociateLink{},
	}
}

// Migrate creates or updates the schema for all entities
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
