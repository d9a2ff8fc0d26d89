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
	"github.com/ifuryst/pressline/internal/service/events"
	"github.com/ifuryst/pressline/internal/service/publisher"
)

// PublisherService drives content projects through publish attempts
type PublisherService struct {
	logger            *zap.Logger
	db                *gorm.DB
	manager           *publisher.Manager
	monitoringService *MonitoringService
	emitter           events.Emitter
	queue             *queue.Client
	now               func() time.Time
}

func NewPublisherService(db *gorm.DB, logger *zap.Logger, manager *publisher.Manager, monitoringService *MonitoringService, emitter events.Emitter, queueClient *queue.Client) *PublisherService {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &PublisherService{
		logger:            logger,
		db:                db,
		manager:           manager,
		monitoringService: monitoringService,
		emitter:           emitter,
		queue:             queueClient,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// RequestPublish records a PENDING job and enqueues its publish task
func (s *PublisherService) RequestPublish(ctx context.Context, tenantID, projectID string, projectType models.ProjectType, req publisher.PublishRequest) (*models.Job, error) {
	if !projectType.Valid() {
		return nil, invalid("unknown project type %q", projectType)
	}
	if err := req.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	if _, err := s.GetProject(ctx, tenantID, projectID, projectType); err != nil {
		return nil, err
	}

	payload := queue.PublishPayload{
		ProjectID:      projectID,
		TenantID:       tenantID,
		ProjectType:    projectType,
		PublishRequest: req,
	}
	metadata, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job metadata: %w", err)
	}

	job := &models.Job{
		ID:        uuid.NewString(),
		Type:      projectType.JobType(),
		Status:    models.JobStatusPending,
		ProjectID: projectID,
		TenantID:  tenantID,
		Metadata:  datatypes.JSON(metadata),
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := s.queue.EnqueuePublish(ctx, job.ID, payload); err != nil {
		// never delivered, so the row would stay PENDING forever
		if delErr := s.db.WithContext(context.WithoutCancel(ctx)).Delete(job).Error; delErr != nil {
			s.logger.Error("Failed to remove unqueued job", zap.String("job_id", job.ID), zap.Error(delErr))
		}
		return nil, err
	}

	return job, nil
}

// HandlePublishTask is the queue handler for publish-video and publish-print
func (s *PublisherService) HandlePublishTask(ctx context.Context, t *asynq.Task) error {
	jobID, ok := asynq.GetTaskID(ctx)
	if !ok {
		return fmt.Errorf("task %s has no id", t.Type())
	}
	payload, err := queue.DecodePublishPayload(t)
	if err != nil {
		return taskError(s.abandon(ctx, jobID, invalid("%v", err)))
	}
	return taskError(s.Publish(ctx, jobID, payload))
}

// HandleArchivedTask settles the job of a publish task the queue gave up on,
// either because it was never retryable or because its retries ran out.
func (s *PublisherService) HandleArchivedTask(ctx context.Context, t *asynq.Task, err error) {
	if t.Type() != queue.TypePublishVideo && t.Type() != queue.TypePublishPrint {
		return
	}
	jobID, ok := asynq.GetTaskID(ctx)
	if !ok {
		s.logger.Warn("Archived task has no id", zap.String("type", t.Type()))
		return
	}
	if ferr := s.FailJob(ctx, jobID, err); ferr != nil {
		s.logger.Error("Failed to settle archived job", zap.String("job_id", jobID), zap.Error(ferr))
	}
}

// Publish runs one publish attempt for jobID. Destinations are called in
// request order and the first failure stops the attempt; the project and job
// then end FAILED and the destination error is returned.
func (s *PublisherService) Publish(ctx context.Context, jobID string, payload queue.PublishPayload) error {
	req := payload.PublishRequest
	if !payload.ProjectType.Valid() {
		return s.abandon(ctx, jobID, invalid("unknown project type %q", payload.ProjectType))
	}
	if err := req.Validate(); err != nil {
		return s.abandon(ctx, jobID, invalid("%v", err))
	}

	project, err := s.GetProject(ctx, payload.TenantID, payload.ProjectID, payload.ProjectType)
	if errors.Is(err, ErrNotFound) {
		return s.abandon(ctx, jobID, err)
	}
	if err != nil {
		return err
	}

	job, err := s.startAttempt(ctx, jobID, project, payload)
	if err != nil {
		if errors.Is(err, errAlreadyCompleted) {
			s.logger.Info("Job already completed, skipping redelivery",
				zap.String("job_id", jobID),
				zap.String("project_id", project.ID))
			return nil
		}
		return err
	}

	s.logger.Info("Publishing project",
		zap.String("job_id", job.ID),
		zap.String("project_id", project.ID),
		zap.String("tenant_id", project.TenantID),
		zap.String("type", string(project.Type)),
		zap.Int("attempt", job.Attempts),
		zap.Any("destinations", req.Destinations))
	s.emit(ctx, events.TypeJobStarted, job, "", nil)

	results, publishErr := s.manager.Publish(ctx, publisher.FromProject(project), req)

	// terminal writes must land even when the task deadline has passed
	writeCtx := context.WithoutCancel(ctx)
	if publishErr != nil {
		return s.fail(writeCtx, job, project, results, publishErr)
	}
	return s.complete(writeCtx, job, project, results)
}

var errAlreadyCompleted = errors.New("job already completed")

// startAttempt moves the project to PUBLISHING and the job to PROCESSING
func (s *PublisherService) startAttempt(ctx context.Context, jobID string, project *models.ContentProject, payload queue.PublishPayload) (*models.Job, error) {
	metadata, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job metadata: %w", err)
	}

	now := s.now()
	var job models.Job
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", jobID).First(&job).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load job: %w", err)
		}

		// a PROCESSING job seen on delivery was abandoned by a crashed
		// worker; the task lock keeps live workers apart
		resuming := exists && job.Status == models.JobStatusProcessing
		if exists {
			if job.Status == models.JobStatusCompleted {
				return errAlreadyCompleted
			}
			if job.TenantID != project.TenantID || job.ProjectID != project.ID {
				return invalid("job %s belongs to another project", jobID)
			}
			if !resuming && !job.Status.CanTransition(models.JobStatusProcessing) {
				return fmt.Errorf("job %s cannot move from %s to %s", jobID, job.Status, models.JobStatusProcessing)
			}
		}

		if !resuming && !project.Status.CanTransition(models.ProjectStatusPublishing) {
			return fmt.Errorf("%w: %s", ErrProjectBusy, project.ID)
		}
		if project.Status != models.ProjectStatusPublishing {
			res := tx.Model(&models.ContentProject{}).
				Where("id = ? AND status = ?", project.ID, project.Status).
				Update("status", models.ProjectStatusPublishing)
			if res.Error != nil {
				return fmt.Errorf("failed to mark project publishing: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: %s", ErrProjectBusy, project.ID)
			}
			project.Status = models.ProjectStatusPublishing
		}

		if !exists {
			job = models.Job{
				ID:        jobID,
				Type:      project.Type.JobType(),
				Status:    models.JobStatusProcessing,
				ProjectID: project.ID,
				TenantID:  project.TenantID,
				Metadata:  datatypes.JSON(metadata),
				Attempts:  1,
				StartedAt: &now,
			}
			if err := tx.Create(&job).Error; err != nil {
				return fmt.Errorf("failed to create job: %w", err)
			}
			return nil
		}

		job.Status = models.JobStatusProcessing
		job.Attempts++
		job.StartedAt = &now
		job.CompletedAt = nil
		job.Error = nil
		job.Result = nil
		err = tx.Model(&models.Job{}).Where("id = ?", jobID).Updates(map[string]interface{}{
			"status":       job.Status,
			"attempts":     job.Attempts,
			"started_at":   now,
			"completed_at": nil,
			"error":        nil,
			"result":       nil,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to mark job processing: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *PublisherService) complete(ctx context.Context, job *models.Job, project *models.ContentProject, results []publisher.DestinationResult) error {
	resultJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal publish results: %w", err)
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ContentProject{}).Where("id = ?", project.ID).Updates(map[string]interface{}{
			"status":           models.ProjectStatusPublished,
			"published_at":     now,
			"publish_metadata": datatypes.JSON(resultJSON),
		}).Error; err != nil {
			return fmt.Errorf("failed to mark project published: %w", err)
		}
		if err := tx.Model(&models.Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":       models.JobStatusCompleted,
			"result":       datatypes.JSON(resultJSON),
			"completed_at": now,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark job completed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now

	s.logger.Info("Project published",
		zap.String("job_id", job.ID),
		zap.String("project_id", project.ID),
		zap.Int("destinations", len(results)))

	for _, r := range results {
		s.recordMetric(ctx, "publish_success", r.Destination, job)
	}
	s.recordDuration(ctx, job, now)
	s.emit(ctx, events.TypeJobCompleted, job, "", results)
	return nil
}

func (s *PublisherService) fail(ctx context.Context, job *models.Job, project *models.ContentProject, results []publisher.DestinationResult, publishErr error) error {
	message := publishErr.Error()
	var destination publisher.Destination
	var destErr *publisher.DestinationError
	if errors.As(publishErr, &destErr) {
		destination = destErr.Destination
		message = destErr.Err.Error()
	}

	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ContentProject{}).Where("id = ?", project.ID).
			Update("status", models.ProjectStatusFailed).Error; err != nil {
			return fmt.Errorf("failed to mark project failed: %w", err)
		}
		if err := tx.Model(&models.Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":       models.JobStatusFailed,
			"error":        message,
			"completed_at": now,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark job failed: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record publish failure", zap.String("job_id", job.ID), zap.Error(err))
		return errors.Join(publishErr, err)
	}

	job.Status = models.JobStatusFailed
	job.Error = &message
	job.CompletedAt = &now

	s.logger.Error("Project publish failed",
		zap.String("job_id", job.ID),
		zap.String("project_id", project.ID),
		zap.String("destination", string(destination)),
		zap.Int("attempt", job.Attempts),
		zap.Error(publishErr))

	if err := s.monitoringService.RecordError(ctx, "ERROR", "publisher",
		fmt.Sprintf("Failed to publish %s project to %s", project.Type, destination), message,
		WithTenant(project.TenantID),
		WithDestination(string(destination)),
		WithProject(project.ID),
		WithJob(job.ID),
		WithContext(map[string]interface{}{
			"attempt":   job.Attempts,
			"completed": len(results),
			"title":     project.Title,
		})); err != nil {
		s.logger.Warn("Failed to record error log", zap.Error(err))
	}

	for _, r := range results {
		s.recordMetric(ctx, "publish_success", r.Destination, job)
	}
	if destination != "" {
		s.recordMetric(ctx, "publish_failure", destination, job)
	}
	s.emit(ctx, events.TypeJobFailed, job, message, results)

	return publishErr
}

// abandon fails jobID for an error no redelivery can fix and returns cause
func (s *PublisherService) abandon(ctx context.Context, jobID string, cause error) error {
	if err := s.FailJob(context.WithoutCancel(ctx), jobID, cause); err != nil {
		s.logger.Error("Failed to settle job", zap.String("job_id", jobID), zap.Error(err))
	}
	return cause
}

// FailJob moves a job that will not run again to FAILED with cause as its
// error. Missing and already terminal jobs are left alone. A job caught mid
// attempt also releases its project from PUBLISHING.
func (s *PublisherService) FailJob(ctx context.Context, jobID string, cause error) error {
	message := cause.Error()
	now := s.now()

	var job models.Job
	settled := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", jobID).First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}
		if job.Status.Terminal() {
			return nil
		}

		if job.Status == models.JobStatusProcessing {
			if err := tx.Model(&models.ContentProject{}).
				Where("id = ? AND status = ?", job.ProjectID, models.ProjectStatusPublishing).
				Update("status", models.ProjectStatusFailed).Error; err != nil {
				return fmt.Errorf("failed to mark project failed: %w", err)
			}
		}
		res := tx.Model(&models.Job{}).Where("id = ? AND status = ?", jobID, job.Status).Updates(map[string]interface{}{
			"status":       models.JobStatusFailed,
			"error":        message,
			"completed_at": now,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to mark job failed: %w", res.Error)
		}
		settled = res.RowsAffected > 0
		return nil
	})
	if err != nil || !settled {
		return err
	}

	job.Status = models.JobStatusFailed
	job.Error = &message
	job.CompletedAt = &now

	s.logger.Warn("Job abandoned",
		zap.String("job_id", job.ID),
		zap.String("project_id", job.ProjectID),
		zap.Int("attempt", job.Attempts),
		zap.Error(cause))

	if err := s.monitoringService.RecordError(ctx, "ERROR", "publisher",
		fmt.Sprintf("Gave up on %s job", job.Type), message,
		WithTenant(job.TenantID),
		WithProject(job.ProjectID),
		WithJob(job.ID),
		WithContext(map[string]interface{}{"attempt": job.Attempts})); err != nil {
		s.logger.Warn("Failed to record error log", zap.Error(err))
	}
	s.emit(ctx, events.TypeJobFailed, &job, message, nil)
	return nil
}

func (s *PublisherService) recordMetric(ctx context.Context, name string, destination publisher.Destination, job *models.Job) {
	err := s.monitoringService.RecordMetric(ctx, name, "counter", 1, map[string]interface{}{
		"destination": string(destination),
		"job_type":    string(job.Type),
		"tenant_id":   job.TenantID,
	})
	if err != nil {
		s.logger.Warn("Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}

func (s *PublisherService) recordDuration(ctx context.Context, job *models.Job, completedAt time.Time) {
	if job.StartedAt == nil {
		return
	}
	err := s.monitoringService.RecordMetric(ctx, "publish_duration_seconds", "histogram",
		completedAt.Sub(*job.StartedAt).Seconds(), map[string]interface{}{"job_type": string(job.Type)})
	if err != nil {
		s.logger.Warn("Failed to record metric", zap.String("metric", "publish_duration_seconds"), zap.Error(err))
	}
}

func (s *PublisherService) emit(ctx context.Context, eventType string, job *models.Job, message string, results []publisher.DestinationResult) {
	event := events.Event{
		Type:       eventType,
		JobID:      job.ID,
		JobType:    string(job.Type),
		ProjectID:  job.ProjectID,
		TenantID:   job.TenantID,
		Status:     string(job.Status),
		Attempt:    job.Attempts,
		Error:      message,
		OccurredAt: s.now(),
	}
	if results != nil {
		event.Results = results
	}
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.logger.Warn("Failed to emit job event", zap.String("type", eventType), zap.String("job_id", job.ID), zap.Error(err))
	}
}

// GetProject loads a project owned by tenantID
func (s *PublisherService) GetProject(ctx context.Context, tenantID, projectID string, projectType models.ProjectType) (*models.ContentProject, error) {
	var project models.ContentProject
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND type = ?", projectID, tenantID, projectType).
		First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("%s project %s", projectType, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return &project, nil
}

// GetJob loads a job owned by tenantID
func (s *PublisherService) GetJob(ctx context.Context, tenantID, jobID string) (*models.Job, error) {
	var job models.Job
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", jobID, tenantID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("job %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return &job, nil
}
