package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Customer is a lead. Principal references (accepted_by, declined_by, broadcasted_to,
// created_by_id) hold principal UUIDs.
type Customer struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UUID                uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_customers_uuid" json:"uuid"`
	FullName            string    `gorm:"size:255;not null" json:"full_name"`
	PhoneNumber         string    `gorm:"size:15;not null;uniqueIndex:uk_customers_phone_number" json:"phone_number"`
	Email               string    `gorm:"size:255;not null;uniqueIndex:uk_customers_email" json:"email"`
	PersonalPhoneNumber *string   `gorm:"size:15" json:"personal_phone_number,omitempty"`
	ProjectID           uint      `gorm:"not null;index:idx_customers_project_id" json:"project_id"`
	CompanyID           uint      `gorm:"not null;index:idx_customers_company_id" json:"company_id"`
	Status              string    `gorm:"size:100;not null;default:'New';index:idx_customers_status" json:"status"`

	IsAccepted     bool       `gorm:"not null;default:false" json:"is_accepted"`
	AcceptedBy     *uuid.UUID `gorm:"type:uuid;index:idx_customers_accepted_by" json:"accepted_by,omitempty"`
	AcceptedByName *string    `gorm:"size:255" json:"accepted_by_name,omitempty"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`

	DeclinedBy pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"declined_by"`
	DeclinedAt *time.Time     `json:"declined_at,omitempty"`

	IsBroadcasted bool           `gorm:"not null;default:false" json:"is_broadcasted"`
	BroadcastedTo pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"broadcasted_to"`

	CreatedByID   uuid.UUID `gorm:"type:uuid;not null;index:idx_customers_created_by_id" json:"created_by_id"`
	CreatedByName string    `gorm:"size:255" json:"created_by_name"`
	CreatedByRole string    `gorm:"size:32;not null" json:"created_by_role"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_customers_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	Project *Project `gorm:"foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	Company *Company `gorm:"foreignKey:CompanyID;references:ID" json:"company,omitempty"`
}

func (Customer) TableName() string {
	return "customers"
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = "New"
	}
	if c.DeclinedBy == nil {
		c.DeclinedBy = pq.StringArray{}
	}
	if c.BroadcastedTo == nil {
		c.BroadcastedTo = pq.StringArray{}
	}
	return nil
}

// IsBroadcastedTo reports whether the principal is in the broadcast set
func (c *Customer) IsBroadcastedTo(principalID uuid.UUID) bool {
	return slices.Contains(c.BroadcastedTo, principalID.String())
}

// HasDeclined reports whether the principal already declined the lead
func (c *Customer) HasDeclined(principalID uuid.UUID) bool {
	return slices.Contains(c.DeclinedBy, principalID.String())
}

// IsAcceptedBy reports whether the principal holds the lead
func (c *Customer) IsAcceptedBy(principalID uuid.UUID) bool {
	return c.AcceptedBy != nil && *c.AcceptedBy == principalID
}

// CustomerFilter represents filter criteria for lead queries
type CustomerFilter struct {
	ID          *uint
	UUID        *uuid.UUID
	Email       *string
	PhoneNumber *string
	CompanyID   *uint
	ProjectID   *uint
	Status      *string
	CreatedByID *uuid.UUID
	AcceptedBy  *uuid.UUID
	// AssignedTo matches leads accepted by or broadcast to the principal
	AssignedTo    *uuid.UUID
	BroadcastedTo *uuid.UUID
	IsAccepted    *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// StatusCount is one row of a lead count grouped by status
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}
