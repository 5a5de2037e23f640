package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssociateUser is a secondary principal created by a primary user and bound to the creator's company.
type AssociateUser struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_associate_users_uuid" json:"uuid"`
	FullName      string    `gorm:"size:255;not null" json:"full_name"`
	Email         string    `gorm:"size:255;not null;uniqueIndex:uk_associate_users_email" json:"email"`
	PhoneNumber   string    `gorm:"size:15;not null;uniqueIndex:uk_associate_users_phone_number" json:"phone_number"`
	Location      string    `gorm:"size:255" json:"location"`
	CompanyID     uint      `gorm:"not null;index:idx_associate_users_company_role_status,priority:1" json:"company_id"`
	CompanyName   string    `gorm:"size:255" json:"company_name"`
	Role          string    `gorm:"size:32;not null;index:idx_associate_users_company_role_status,priority:2" json:"role"`
	Status        string    `gorm:"size:20;not null;default:'active';index:idx_associate_users_company_role_status,priority:3" json:"status"`
	PasswordHash  string    `gorm:"size:255;not null" json:"-"`
	CreatedByID   uuid.UUID `gorm:"type:uuid;not null;index:idx_associate_users_created_by_id" json:"created_by_id"`
	CreatedByName string    `gorm:"size:255" json:"created_by_name"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (AssociateUser) TableName() string {
	return "associate_users"
}

func (a *AssociateUser) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	return nil
}

// AssociateUserFilter represents filter criteria for associate user queries
type AssociateUserFilter struct {
	ID          *uint
	UUID        *uuid.UUID
	Email       *string
	PhoneNumber *string
	CompanyID   *uint
	Role        *string
	Status      *string
	CreatedByID *uuid.UUID
}
