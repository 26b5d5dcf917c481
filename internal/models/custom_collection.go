package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomCollection is a named, curated subset of the catalog sourced from
// an external list.
type CustomCollection struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	URL         string    `gorm:"not null" json:"url"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	Badge       *string   `gorm:"size:64" json:"badge,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *CustomCollection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CustomCollectionPackage is a membership row. Position keeps the order of
// the source list.
type CustomCollectionPackage struct {
	CustomCollectionID uuid.UUID `gorm:"type:uuid;primaryKey" json:"custom_collection_id"`
	PackageID          uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"package_id"`
	Position           int       `gorm:"not null" json:"position"`
}
