package models

import (
	"time"

	"github.com/google/uuid"
)

// Note is the per-lead container of note entries, created on first write.
type Note struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"not null;uniqueIndex:uk_notes_customer_id" json:"customer_id"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	Entries []NoteEntry `gorm:"foreignKey:NoteID" json:"notes,omitempty"`
}

func (Note) TableName() string {
	return "notes"
}

type NoteEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	NoteID      uint      `gorm:"not null;index:idx_note_entries_note_id" json:"note_id"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	AddedByID   uuid.UUID `gorm:"type:uuid;not null" json:"added_by_id"`
	AddedByName string    `gorm:"size:255" json:"added_by_name"`
	AddedByRole string    `gorm:"size:32;not null" json:"added_by_role"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (NoteEntry) TableName() string {
	return "note_entries"
}

// NoteFilter represents filter criteria for note queries
type NoteFilter struct {
	ID         *uint
	CustomerID *uint
}
