package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ifuryst/pressline/internal/models"
	"github.com/ifuryst/pressline/internal/queue"
	"github.com/ifuryst/pressline/internal/service/publisher"
)

// ScheduleService creates schedules and promotes due ones into jobs
type ScheduleService struct {
	logger     *zap.Logger
	db         *gorm.DB
	queue      *queue.Client
	publishers *PublisherService
	now        func() time.Time
}

func NewScheduleService(db *gorm.DB, logger *zap.Logger, queueClient *queue.Client, publishers *PublisherService) *ScheduleService {
	return &ScheduleService{
		logger:     logger,
		db:         db,
		queue:      queueClient,
		publishers: publishers,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ScheduleJobID derives the job id a schedule executes as. The same schedule
// always yields the same id, so a retried trigger cannot create a second job.
func ScheduleJobID(scheduleID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("pressline/schedule/"+scheduleID)).String()
}

// Create stores a PENDING schedule and arms its trigger for scheduledAt
func (s *ScheduleService) Create(ctx context.Context, tenantID, projectID string, projectType models.ProjectType, scheduledAt time.Time, req publisher.PublishRequest) (*models.Schedule, error) {
	if !projectType.Valid() {
		return nil, invalid("unknown project type %q", projectType)
	}
	if err := req.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	if scheduledAt.IsZero() {
		return nil, invalid("scheduled_at is required")
	}
	if _, err := s.publishers.GetProject(ctx, tenantID, projectID, projectType); err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal publish request: %w", err)
	}

	schedule := &models.Schedule{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		ProjectID:       projectID,
		ProjectType:     projectType,
		ScheduledAt:     scheduledAt.UTC(),
		PublishMetadata: datatypes.JSON(metadata),
		Status:          models.ScheduleStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(schedule).Error; err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	payload := queue.SchedulePayload{ScheduleID: schedule.ID, TenantID: tenantID}
	if err := s.queue.EnqueueScheduleCheck(ctx, payload, schedule.ScheduledAt); err != nil {
		// the sweeper re-arms overdue schedules
		s.logger.Warn("Failed to arm schedule trigger",
			zap.String("schedule_id", schedule.ID),
			zap.Error(err))
	}

	s.logger.Info("Schedule created",
		zap.String("schedule_id", schedule.ID),
		zap.String("project_id", projectID),
		zap.Time("scheduled_at", schedule.ScheduledAt))
	return schedule, nil
}

// Get loads a schedule owned by tenantID
func (s *ScheduleService) Get(ctx context.Context, tenantID, scheduleID string) (*models.Schedule, error) {
	var schedule models.Schedule
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", scheduleID, tenantID).First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("schedule %s", scheduleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	return &schedule, nil
}

// HandleScheduleTask is the queue handler for schedule-publish
func (s *ScheduleService) HandleScheduleTask(ctx context.Context, t *asynq.Task) error {
	payload, err := queue.DecodeSchedulePayload(t)
	if err != nil {
		return taskError(invalid("%v", err))
	}
	_, err = s.Trigger(ctx, payload.TenantID, payload.ScheduleID)
	return taskError(err)
}

// Trigger examines a schedule. A schedule that is not yet due is re-armed
// for the remaining delay and nil is returned. A due schedule becomes exactly
// one PENDING job whose publish task is then enqueued; that job is returned.
func (s *ScheduleService) Trigger(ctx context.Context, tenantID, scheduleID string) (*models.Job, error) {
	schedule, err := s.Get(ctx, tenantID, scheduleID)
	if err != nil {
		return nil, err
	}

	if schedule.Status == models.ScheduleStatusExecuted {
		return s.resumeExecuted(ctx, schedule)
	}

	now := s.now()
	if remaining := schedule.ScheduledAt.Sub(now); remaining > 0 {
		payload := queue.SchedulePayload{ScheduleID: schedule.ID, TenantID: schedule.TenantID}
		if err := s.queue.DeferScheduleCheck(ctx, payload, remaining); err != nil {
			return nil, err
		}
		s.logger.Debug("Schedule not due, deferred",
			zap.String("schedule_id", schedule.ID),
			zap.Duration("remaining", remaining))
		return nil, nil
	}

	var req publisher.PublishRequest
	if err := json.Unmarshal(schedule.PublishMetadata, &req); err != nil {
		return nil, invalid("schedule %s has unreadable publish metadata: %v", schedule.ID, err)
	}
	payload := queue.PublishPayload{
		ProjectID:      schedule.ProjectID,
		TenantID:       schedule.TenantID,
		ProjectType:    schedule.ProjectType,
		PublishRequest: req,
	}
	metadata, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job metadata: %w", err)
	}

	jobID := ScheduleJobID(schedule.ID)
	job := &models.Job{
		ID:        jobID,
		Type:      schedule.ProjectType.JobType(),
		Status:    models.JobStatusPending,
		ProjectID: schedule.ProjectID,
		TenantID:  schedule.TenantID,
		Metadata:  datatypes.JSON(metadata),
	}

	executed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Schedule{}).
			Where("id = ? AND status = ?", schedule.ID, models.ScheduleStatusPending).
			Updates(map[string]interface{}{
				"status":      models.ScheduleStatusExecuted,
				"executed_at": now,
				"job_id":      jobID,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark schedule executed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// lost the race to a concurrent trigger
			return nil
		}
		executed = true
		if err := tx.Create(job).Error; err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !executed {
		current, err := s.Get(ctx, tenantID, scheduleID)
		if err != nil {
			return nil, err
		}
		return s.resumeExecuted(ctx, current)
	}

	s.logger.Info("Schedule executed",
		zap.String("schedule_id", schedule.ID),
		zap.String("job_id", jobID),
		zap.String("project_id", schedule.ProjectID))

	if err := s.queue.EnqueuePublish(ctx, jobID, payload); err != nil {
		return nil, err
	}
	return job, nil
}

// resumeExecuted re-enqueues the publish task of an executed schedule whose
// job never started, covering a crash between the commit and the enqueue.
func (s *ScheduleService) resumeExecuted(ctx context.Context, schedule *models.Schedule) (*models.Job, error) {
	if schedule.JobID == nil {
		return nil, nil
	}

	var job models.Job
	err := s.db.WithContext(ctx).Where("id = ?", *schedule.JobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job.Status != models.JobStatusPending {
		return &job, nil
	}

	var payload queue.PublishPayload
	if err := json.Unmarshal(job.Metadata, &payload); err != nil {
		return nil, invalid("job %s has unreadable metadata: %v", job.ID, err)
	}
	if err := s.queue.EnqueuePublish(ctx, job.ID, payload); err != nil {
		return nil, err
	}
	return &job, nil
}

// RearmOverdue enqueues an immediate trigger for PENDING schedules due
// before cutoff. It returns how many were re-armed.
func (s *ScheduleService) RearmOverdue(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	var schedules []models.Schedule
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", models.ScheduleStatusPending, cutoff).
		Order("scheduled_at").
		Limit(limit).
		Find(&schedules).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load overdue schedules: %w", err)
	}

	count := 0
	for _, schedule := range schedules {
		payload := queue.SchedulePayload{ScheduleID: schedule.ID, TenantID: schedule.TenantID}
		if err := s.queue.EnqueueScheduleCheck(ctx, payload, s.now()); err != nil {
			s.logger.Error("Failed to re-arm schedule", zap.String("schedule_id", schedule.ID), zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}
