package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Principal roles
const (
	RoleAdmin          = "admin"
	RoleAgent          = "agent"
	RoleChannelPartner = "channel_partner"
)

// Principal account statuses
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User is a primary principal: an agent or channel partner registered against a company.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid" json:"uuid"`
	FullName     string    `gorm:"size:255;not null" json:"full_name"`
	Email        string    `gorm:"size:255;not null;uniqueIndex:uk_users_email" json:"email"`
	PhoneNumber  string    `gorm:"size:15;not null;uniqueIndex:uk_users_phone_number" json:"phone_number"`
	Location     string    `gorm:"size:255" json:"location"`
	CompanyID    uint      `gorm:"not null;index:idx_users_company_role_status,priority:1" json:"company_id"`
	CompanyName  string    `gorm:"size:255" json:"company_name"`
	Role         string    `gorm:"size:32;not null;index:idx_users_company_role_status,priority:2" json:"role"`
	Status       string    `gorm:"size:20;not null;default:'active';index:idx_users_company_role_status,priority:3" json:"status"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_users_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	return nil
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID          *uint
	UUID        *uuid.UUID
	Email       *string
	PhoneNumber *string
	CompanyID   *uint
	Role        *string
	Status      *string
	Query       *string
}
