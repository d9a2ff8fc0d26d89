package models

import (
	"time"

	"gorm.io/datatypes"
)

// Job records one asynchronous publish attempt. ID equals the queue task id.
type Job struct {
	ID          string         `gorm:"primaryKey;size:64" json:"id"`
	Type        JobType        `gorm:"not null;size:32;index" json:"type"`
	Status      JobStatus      `gorm:"not null;size:32;index" json:"status"`
	ProjectID   string         `gorm:"not null;size:64;index" json:"project_id"`
	TenantID    string         `gorm:"not null;size:64;index" json:"tenant_id"`
	Metadata    datatypes.JSON `json:"metadata"`
	Result      datatypes.JSON `json:"result"`
	Error       *string        `gorm:"type:text" json:"error"`
	Attempts    int            `gorm:"default:0" json:"attempts"`
	StartedAt   *time.Time     `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
