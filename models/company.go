package models

import (
	"time"
)

// Company is a tenant. Companies are soft deleted only; the name is unique among live rows.
type Company struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:255;not null;uniqueIndex:uk_companies_name_live,where:is_deleted = false" json:"name"`
	CompanyCode string     `gorm:"size:20;not null;uniqueIndex:uk_companies_code" json:"company_code"`
	IsDeleted   bool       `gorm:"not null;default:false;index:idx_companies_is_deleted" json:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_companies_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Company) TableName() string {
	return "companies"
}

// CompanyFilter represents filter criteria for company queries
type CompanyFilter struct {
	ID          *uint
	Name        *string
	NameLike    *string
	CompanyCode *string
	IsDeleted   *bool
}
