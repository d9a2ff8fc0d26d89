package models

import (
	"time"

	"gorm.io/datatypes"
)

// Schedule is a deferred intent to publish a project at ScheduledAt.
type Schedule struct {
	ID              string         `gorm:"primaryKey;size:64" json:"id"`
	TenantID        string         `gorm:"not null;size:64;index" json:"tenant_id"`
	ProjectID       string         `gorm:"not null;size:64;index" json:"project_id"`
	ProjectType     ProjectType    `gorm:"not null;size:16" json:"project_type"`
	ScheduledAt     time.Time      `gorm:"not null;index" json:"scheduled_at"`
	PublishMetadata datatypes.JSON `json:"publish_metadata"`
	Status          ScheduleStatus `gorm:"not null;size:16;index" json:"status"`
	ExecutedAt      *time.Time     `json:"executed_at"`
	JobID           *string        `gorm:"size:64" json:"job_id"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
