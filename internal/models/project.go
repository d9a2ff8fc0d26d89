package models

import (
	"time"

	"gorm.io/datatypes"
)

// ContentProject is a video or print artifact that can be published. Both
// variants share one table and are told apart by Type.
type ContentProject struct {
	ID              string                      `gorm:"primaryKey;size:64" json:"id"`
	TenantID        string                      `gorm:"not null;size:64;index" json:"tenant_id"`
	Type            ProjectType                 `gorm:"not null;size:16;index" json:"type"`
	Title           string                      `gorm:"size:500" json:"title"`
	BrandID         string                      `gorm:"size:64" json:"brand_id"`
	Variants        datatypes.JSONSlice[string] `json:"variants"` // asset refs, stored as a JSON array
	Status          ProjectStatus               `gorm:"not null;size:32" json:"status"`
	PublishedAt     *time.Time                  `json:"published_at"`
	PublishMetadata datatypes.JSON              `json:"publish_metadata"`
	CreatedAt       time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}
