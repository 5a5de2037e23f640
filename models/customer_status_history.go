package models

import (
	"time"

	"github.com/google/uuid"
)

// CustomerStatusHistory is one append-only entry of a lead's status log.
// Rows are never updated; order is (created_at, id).
type CustomerStatusHistory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"not null;index:idx_customer_status_histories_customer_created,priority:1" json:"customer_id"`
	Status     string    `gorm:"size:100;not null" json:"status"`
	ActorID    uuid.UUID `gorm:"type:uuid;not null" json:"actor_id"`
	ActorName  string    `gorm:"size:255" json:"actor_name"`
	ActorRole  string    `gorm:"size:32;not null" json:"actor_role"`
	CreatedAt  time.Time `gorm:"not null;default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_customer_status_histories_customer_created,priority:2" json:"created_at"`
}

func (CustomerStatusHistory) TableName() string {
	return "customer_status_histories"
}

// CustomerStatusHistoryFilter represents filter criteria for status history queries
type CustomerStatusHistoryFilter struct {
	ID         *uint
	CustomerID *uint
	ActorID    *uuid.UUID
	Status     *string
}
