package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ifuryst/pressline/internal/models"
)

type MonitoringService struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewMonitoringService(db *gorm.DB, logger *zap.Logger) *MonitoringService {
	return &MonitoringService{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecordError stores an error log entry
func (m *MonitoringService) RecordError(ctx context.Context, level, source, title, message string, options ...ErrorLogOption) error {
	errorLog := &models.ErrorLog{
		Level:   level,
		Source:  source,
		Title:   title,
		Message: message,
	}

	for _, option := range options {
		option(errorLog)
	}

	return m.db.WithContext(ctx).Create(errorLog).Error
}

// ErrorLogOption sets optional ErrorLog fields
type ErrorLogOption func(*models.ErrorLog)

func WithTenant(tenantID string) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.TenantID = tenantID
	}
}

func WithDestination(destination string) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.Destination = destination
	}
}

func WithProject(projectID string) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.ProjectID = &projectID
	}
}

func WithJob(jobID string) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.JobID = &jobID
	}
}

func WithContext(context map[string]interface{}) ErrorLogOption {
	return func(e *models.ErrorLog) {
		if contextBytes, err := json.Marshal(context); err == nil {
			e.Context = string(contextBytes)
		}
	}
}

// RecordMetric stores a metric sample
func (m *MonitoringService) RecordMetric(ctx context.Context, name, metricType string, value float64, tags map[string]interface{}) error {
	var tagsJSON string
	if tags != nil {
		if tagsBytes, err := json.Marshal(tags); err == nil {
			tagsJSON = string(tagsBytes)
		}
	}

	metric := &models.MetricsSample{
		MetricName: name,
		MetricType: metricType,
		Value:      value,
		Tags:       tagsJSON,
		Timestamp:  m.now(),
	}

	return m.db.WithContext(ctx).Create(metric).Error
}

func (m *MonitoringService) today() time.Time {
	return m.now().Truncate(24 * time.Hour)
}

// processSeconds is the SQL for completed_at - started_at in seconds
func (m *MonitoringService) processSeconds() string {
	if m.db.Dialector.Name() == "sqlite" {
		return "(julianday(completed_at) - julianday(started_at)) * 86400.0"
	}
	return "CAST(EXTRACT(EPOCH FROM (completed_at - started_at)) AS DOUBLE PRECISION)"
}

type jobGroup struct {
	TenantID   string
	JobType    models.JobType
	Status     models.JobStatus
	Jobs       int
	AvgSeconds *float64
}

// UpdateJobStats refreshes today's counters for every tenant and job type
func (m *MonitoringService) UpdateJobStats(ctx context.Context) error {
	db := m.db.WithContext(ctx)
	today := m.today()

	var groups []jobGroup
	err := db.Model(&models.Job{}).
		Select("tenant_id, type AS job_type, status, COUNT(*) AS jobs, AVG("+m.processSeconds()+") AS avg_seconds").
		Where("created_at >= ?", today).
		Group("tenant_id, type, status").
		Scan(&groups).Error
	if err != nil {
		return fmt.Errorf("failed to count jobs: %w", err)
	}

	type key struct {
		tenantID string
		jobType  models.JobType
	}
	byKey := map[key]*models.JobStats{}
	var order []key
	for _, g := range groups {
		k := key{g.TenantID, g.JobType}
		stats, ok := byKey[k]
		if !ok {
			stats = &models.JobStats{Date: today, TenantID: g.TenantID, JobType: g.JobType}
			byKey[k] = stats
			order = append(order, k)
		}
		stats.TotalJobs += g.Jobs
		switch g.Status {
		case models.JobStatusPending:
			stats.PendingJobs = g.Jobs
		case models.JobStatusProcessing:
			stats.ProcessingJobs = g.Jobs
		case models.JobStatusCompleted:
			stats.CompletedJobs = g.Jobs
			if g.AvgSeconds != nil {
				stats.AvgProcessTime = *g.AvgSeconds
			}
		case models.JobStatusFailed:
			stats.FailedJobs = g.Jobs
		}
	}
	if len(order) == 0 {
		return nil
	}

	rows := make([]models.JobStats, 0, len(order))
	for _, k := range order {
		rows = append(rows, *byKey[k])
	}
	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}, {Name: "tenant_id"}, {Name: "job_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_jobs", "pending_jobs", "processing_jobs", "completed_jobs", "failed_jobs",
			"avg_process_time", "updated_at",
		}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to save job stats: %w", err)
	}
	return nil
}

// GetJobStats returns a tenant's daily counters of the last days
func (m *MonitoringService) GetJobStats(ctx context.Context, tenantID string, days int) ([]models.JobStats, error) {
	var stats []models.JobStats
	startDate := m.today().AddDate(0, 0, -days)

	err := m.db.WithContext(ctx).
		Where("tenant_id = ? AND date >= ?", tenantID, startDate).
		Order("date desc, job_type").
		Find(&stats).Error
	return stats, err
}

// GetDashboardSummary computes the summary for a tenant
func (m *MonitoringService) GetDashboardSummary(ctx context.Context, tenantID string) (*models.DashboardSummary, error) {
	db := m.db.WithContext(ctx)
	today := m.today()
	jobs := func() *gorm.DB { return db.Model(&models.Job{}).Where("tenant_id = ?", tenantID) }

	var totalToday, completedToday, failedToday, pending, processing, pendingSchedules, unresolved int64
	queries := []struct {
		q   *gorm.DB
		out *int64
	}{
		{jobs().Where("created_at >= ?", today), &totalToday},
		{jobs().Where("created_at >= ? AND status = ?", today, models.JobStatusCompleted), &completedToday},
		{jobs().Where("created_at >= ? AND status = ?", today, models.JobStatusFailed), &failedToday},
		{jobs().Where("status = ?", models.JobStatusPending), &pending},
		{jobs().Where("status = ?", models.JobStatusProcessing), &processing},
		{db.Model(&models.Schedule{}).Where("tenant_id = ? AND status = ?", tenantID, models.ScheduleStatusPending), &pendingSchedules},
		{db.Model(&models.ErrorLog{}).Where("tenant_id = ? AND resolved = ?", tenantID, false), &unresolved},
	}
	for _, q := range queries {
		if err := q.q.Count(q.out).Error; err != nil {
			return nil, fmt.Errorf("failed to build dashboard summary: %w", err)
		}
	}

	var avgToday float64
	if err := jobs().Where("completed_at >= ? AND status = ?", today, models.JobStatusCompleted).
		Select("COALESCE(AVG(" + m.processSeconds() + "), 0)").
		Row().Scan(&avgToday); err != nil {
		return nil, fmt.Errorf("failed to average process time: %w", err)
	}

	summary := &models.DashboardSummary{
		TotalJobsToday:        int(totalToday),
		CompletedJobsToday:    int(completedToday),
		FailedJobsToday:       int(failedToday),
		PendingJobsCount:      int(pending),
		ProcessingJobsCount:   int(processing),
		PendingSchedules:      int(pendingSchedules),
		UnresolvedErrorsCount: int(unresolved),
		AvgProcessTimeToday:   avgToday,
	}

	var lastPublished models.ContentProject
	err := db.Where("tenant_id = ? AND status = ?", tenantID, models.ProjectStatusPublished).
		Order("published_at desc").Limit(1).Find(&lastPublished).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load last publish: %w", err)
	}
	if lastPublished.ID != "" {
		summary.LastPublishTime = lastPublished.PublishedAt
	}

	return summary, nil
}

// GetRecentErrors returns the latest error logs of a tenant
func (m *MonitoringService) GetRecentErrors(ctx context.Context, tenantID string, limit int) ([]models.ErrorLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var errorLogs []models.ErrorLog
	err := m.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&errorLogs).Error
	return errorLogs, err
}

// ResolveError marks an error log entry resolved
func (m *MonitoringService) ResolveError(ctx context.Context, tenantID string, id uint) error {
	now := m.now()
	result := m.db.WithContext(ctx).Model(&models.ErrorLog{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(map[string]interface{}{"resolved": true, "resolved_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound("error log %d", id)
	}
	return nil
}

// CleanupOldData drops samples, stats and resolved errors older than daysToKeep
func (m *MonitoringService) CleanupOldData(ctx context.Context, daysToKeep int) error {
	db := m.db.WithContext(ctx)
	cutoffDate := m.now().AddDate(0, 0, -daysToKeep)

	if err := db.Where("timestamp < ?", cutoffDate).Delete(&models.MetricsSample{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup metrics samples: %w", err)
	}

	if err := db.Where("date < ?", cutoffDate).Delete(&models.JobStats{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup job stats: %w", err)
	}

	if err := db.Where("created_at < ? AND resolved = ?", cutoffDate, true).Delete(&models.ErrorLog{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup resolved errors: %w", err)
	}

	return nil
}
