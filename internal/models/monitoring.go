package models

import (
	"time"
)

// JobStats holds daily counters per tenant and job type
type JobStats struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Date           time.Time `gorm:"uniqueIndex:idx_job_stats_day;not null" json:"date"`
	TenantID       string    `gorm:"uniqueIndex:idx_job_stats_day;size:64;not null" json:"tenant_id"`
	JobType        JobType   `gorm:"uniqueIndex:idx_job_stats_day;size:32;not null" json:"job_type"`
	TotalJobs      int       `gorm:"default:0" json:"total_jobs"`
	PendingJobs    int       `gorm:"default:0" json:"pending_jobs"`
	ProcessingJobs int       `gorm:"default:0" json:"processing_jobs"`
	CompletedJobs  int       `gorm:"default:0" json:"completed_jobs"`
	FailedJobs     int       `gorm:"default:0" json:"failed_jobs"`
	AvgProcessTime float64   `gorm:"default:0" json:"avg_process_time"` // seconds, completed jobs only
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ErrorLog is an error surfaced by the pipeline
type ErrorLog struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Level       string     `gorm:"size:20;not null;index" json:"level"`   // ERROR, WARN, INFO
	Source      string     `gorm:"size:100;not null;index" json:"source"` // publisher, scheduler, worker
	TenantID    string     `gorm:"size:64;index" json:"tenant_id"`
	Destination string     `gorm:"size:32;index" json:"destination"`
	ProjectID   *string    `gorm:"size:64;index" json:"project_id"`
	JobID       *string    `gorm:"size:64;index" json:"job_id"`
	Title       string     `gorm:"size:500;not null" json:"title"`
	Message     string     `gorm:"type:text;not null" json:"message"`
	Context     string     `gorm:"type:text" json:"context"` // JSON encoded
	Resolved    bool       `gorm:"default:false;index" json:"resolved"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// MetricsSample is a single metric observation
type MetricsSample struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MetricName string    `gorm:"size:100;not null;index" json:"metric_name"`
	MetricType string    `gorm:"size:50;not null" json:"metric_type"` // gauge, counter, histogram
	Value      float64   `gorm:"not null" json:"value"`
	Tags       string    `gorm:"type:text" json:"tags"` // JSON encoded
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DashboardSummary is a point-in-time rollup for the admin API
type DashboardSummary struct {
	TotalJobsToday        int        `json:"total_jobs_today"`
	CompletedJobsToday    int        `json:"completed_jobs_today"`
	FailedJobsToday       int        `json:"failed_jobs_today"`
	PendingJobsCount      int        `json:"pending_jobs_count"`
	ProcessingJobsCount   int        `json:"processing_jobs_count"`
	PendingSchedules      int        `json:"pending_schedules"`
	UnresolvedErrorsCount int        `json:"unresolved_errors_count"`
	AvgProcessTimeToday   float64    `json:"avg_process_time_today"`
	LastPublishTime       *time.Time `json:"last_publish_time"`
}
