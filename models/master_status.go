package models

import "time"

// MasterStatus is an admin curated lead status. Leads store the resolved name, not the id.
type MasterStatus struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"size:100;not null;uniqueIndex:uk_master_statuses_name_live,where:is_deleted = false" json:"name"`
	IsDeleted bool       `gorm:"not null;default:false" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (MasterStatus) TableName() string {
	return "master_statuses"
}

// MasterStatusFilter represents filter criteria for master status queries
type MasterStatusFilter struct {
	ID        *uint
	Name      *string
	IsDeleted *bool
}
