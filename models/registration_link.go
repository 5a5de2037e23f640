package models

import (
	"time"

	"github.com/google/uuid"
)

// Associate link purposes
const (
	LinkPurposeAssociateRegistration = "associate_registration"
	LinkPurposeCustomerRegistration  = "customer_registration"
)

// CustomerLink is a single-use code that lets a customer self-register under a channel partner.
type CustomerLink struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Code          string    `gorm:"size:64;not null;uniqueIndex:uk_customer_links_code" json:"code"`
	CreatedByID   uuid.UUID `gorm:"type:uuid;not null;index:idx_customer_links_created_by_id" json:"created_by_id"`
	CreatedByName string    `gorm:"size:255" json:"created_by_name"`
	CreatedByRole string    `gorm:"size:32;not null" json:"created_by_role"`
	ExpiresAt     time.Time `gorm:"not null;index:idx_customer_links_expires_at" json:"expires_at"`
	CreatedAt     time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (CustomerLink) TableName() string {
	return "customer_links"
}

// AssociateLink is a single-use code that registers an associate user or a customer
// under the creating principal.
type AssociateLink struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Code        string    `gorm:"size:64;not null;uniqueIndex:uk_associate_links_code" json:"code"`
	CreatedByID uuid.UUID `gorm:"type:uuid;not null;index:idx_associate_links_created_by_id" json:"created_by_id"`
	Purpose     string    `gorm:"size:40;not null" json:"purpose"`
	ExpiresAt   time.Time `gorm:"not null;index:idx_associate_links_expires_at" json:"expires_at"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (AssociateLink) TableName() string {
	return "associate_links"
}

// RegistrationLinkFilter represents filter criteria for link queries
type RegistrationLinkFilter struct {
	ID            *uint
	Code          *string
	CreatedByID   *uuid.UUID
	ExpiresBefore *time.Time
}
