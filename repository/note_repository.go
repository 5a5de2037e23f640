package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NoteRepositoryImpl implements NoteRepository interface
type NoteRepositoryImpl struct {
	*BaseRepository[models.Note, models.NoteFilter]
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db *gorm.DB) NoteRepository {
	return &NoteRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Note, models.NoteFilter](db),
	}
}

// AppendEntry creates the lead's note container if needed and appends entry to it
func (r *NoteRepositoryImpl) AppendEntry(ctx context.Context, customerID uint, entry *models.NoteEntry) (err error) {
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

	container := models.Note{CustomerID: customerID}
	err = db.Clauses(clause.OnConflict{DoNothing: true}).Create(&container).Error
	if err != nil {
		return fmt.Errorf("failed to create note container: %w", err)
	}

	err = db.Where("customer_id = ?", customerID).First(&container).Error
	if err != nil {
		return fmt.Errorf("failed to load note container: %w", err)
	}

	entry.NoteID = container.ID
	err = db.Create(entry).Error
	if err != nil {
		return fmt.Errorf("failed to append note: %w", err)
	}

	return db.Model(&models.Note{}).Where("id = ?", container.ID).Update("updated_at", utils.UTCNow()).Error
}

// ListEntries returns a lead's notes oldest first
func (r *NoteRepositoryImpl) ListEntries(ctx context.Context, customerID uint) ([]*models.NoteEntry, error) {
	db := r.getDB(ctx)
	var rows []*models.NoteEntry
	err := db.Model(&models.NoteEntry{}).
		Joins("JOIN notes ON notes.id = note_entries.note_id").
		Where("notes.customer_id = ?", customerID).
		Order("note_entries.created_at ASC, note_entries.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
