package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowUpRepositoryImpl implements FollowUpRepository interface
type FollowUpRepositoryImpl struct {
	*BaseRepository[models.FollowUp, models.FollowUpFilter]
}

// NewFollowUpRepository creates a new follow-up repository
func NewFollowUpRepository(db *gorm.DB) FollowUpRepository {
	return &FollowUpRepositoryImpl{
		BaseRepository: NewBaseRepository[models.FollowUp, models.FollowUpFilter](db),
	}
}

// AppendEntry creates the lead's follow-up container if needed and appends entry to it
func (r *FollowUpRepositoryImpl) AppendEntry(ctx context.Context, customerID uint, entry *models.FollowUpEntry) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				err = db.Commit().Error
			}
		}()
	}

	container := models.FollowUp{CustomerID: customerID}
	err = db.Clauses(clause.OnConflict{DoNothing: true}).Create(&container).Error
	if err != nil {
		return fmt.Errorf("failed to create follow-up container: %w", err)
	}

	err = db.Where("customer_id = ?", customerID).First(&container).Error
	if err != nil {
		return fmt.Errorf("failed to load follow-up container: %w", err)
	}

	entry.FollowUpID = container.ID
	err = db.Create(entry).Error
	if err != nil {
		return fmt.Errorf("failed to append follow-up: %w", err)
	}

	return db.Model(&models.FollowUp{}).Where("id = ?", container.ID).Update("updated_at", utils.UTCNow()).Error
}

// ListEntries returns a lead's follow-ups oldest first
func (r *FollowUpRepositoryImpl) ListEntries(ctx context.Context, customerID uint) ([]*models.FollowUpEntry, error) {
	db := r.getDB(ctx)
	var rows []*models.FollowUpEntry
	err := db.Model(&models.FollowUpEntry{}).
		Joins("JOIN follow_ups ON follow_ups.id = follow_up_entries.follow_up_id").
		Where("follow_ups.customer_id = ?", customerID).
		Order("follow_up_entries.created_at ASC, follow_up_entries.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
