package models

import (
	"time"

	"github.com/google/uuid"
)

// Call outcomes recorded on follow-ups
const (
	CallStatusConnected    = "connected"
	CallStatusNotConnected = "not connected"
)

// FollowUp is the per-lead container of follow-up entries, created on first write.
type FollowUp struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"not null;uniqueIndex:uk_follow_ups_customer_id" json:"customer_id"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	Entries []FollowUpEntry `gorm:"foreignKey:FollowUpID" json:"follow_ups,omitempty"`
}

func (FollowUp) TableName() string {
	return "follow_ups"
}

// FollowUpEntry is a single append-only follow-up record
type FollowUpEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FollowUpID   uint      `gorm:"not null;index:idx_follow_up_entries_follow_up_id" json:"follow_up_id"`
	Task         string    `gorm:"size:255;not null" json:"task"`
	Notes        string    `gorm:"type:text" json:"notes"`
	FollowUpDate string    `gorm:"size:10;not null" json:"follow_up_date"`
	CallStatus   string    `gorm:"size:20;not null" json:"call_status"`
	AddedByID    uuid.UUID `gorm:"type:uuid;not null" json:"added_by_id"`
	AddedByName  string    `gorm:"size:255" json:"added_by_name"`
	AddedByRole  string    `gorm:"size:32;not null" json:"added_by_role"`
	CreatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (FollowUpEntry) TableName() string {
	return "follow_up_entries"
}

// FollowUpFilter represents filter criteria for follow-up queries
type FollowUpFilter struct {
	ID         *uint
	CustomerID *uint
}
