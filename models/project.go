package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Project is a property listing leads are raised against. Images and brochures are URLs
// of externally stored media.
type Project struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Title         string         `gorm:"size:255;not null" json:"project_title"`
	Description   string         `gorm:"type:text" json:"description"`
	Location      string         `gorm:"size:255" json:"location"`
	MinPrice      int64          `gorm:"not null;default:0" json:"min_price"`
	MaxPrice      int64          `gorm:"not null;default:0" json:"max_price"`
	Images        pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"images"`
	Brochures     pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"brochures"`
	ProjectCode   string         `gorm:"size:20;not null;uniqueIndex:uk_projects_code" json:"project_code"`
	CreatedByID   uuid.UUID      `gorm:"type:uuid;not null" json:"created_by_id"`
	CreatedByRole string         `gorm:"size:32;not null" json:"created_by_role"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_projects_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

// ProjectFilter represents filter criteria for project queries
type ProjectFilter struct {
	ID          *uint
	ProjectCode *string
	TitleLike   *string
}
