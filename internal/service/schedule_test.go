package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/pressline/internal/config"
	"github.com/ifuryst/pressline/internal/models"
	"github.com/ifuryst/pressline/internal/queue"
	"github.com/ifuryst/pressline/internal/service/publisher"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func (fx *fixture) freeze(at time.Time) {
	fx.schedules.now = func() time.Time { return at }
}

func (fx *fixture) schedule(t *testing.T, id string) models.Schedule {
	t.Helper()
	var s models.Schedule
	require.NoError(t, fx.db.First(&s, "id = ?", id).Error)
	return s
}

func TestScheduleCreate(t *testing.T) {
	fx := newFixture(t)
	fx.seedProject(t, "P1", "T1", models.ProjectTypeVideo, models.ProjectStatusReady)
	at := baseTime.Add(time.Hour)

	s, err := fx.schedules.Create(context.Background(), "T1", "P1", models.ProjectTypeVideo, at,
		destinations(publisher.DestinationSocial, publisher.DestinationEmail))
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusPending, s.Status)

	stored := fx.schedule(t, s.ID)
	var req publisher.PublishRequest
	require.NoError(t, json.Unmarshal(stored.PublishMetadata, &req))
	assert.Equal(t, []publisher.Destination{publisher.DestinationSocial, publisher.DestinationEmail}, req.Destinations)

	tasks := fx.enqueuer.ofType(queue.TypeSchedulePublish)
	require.Len(t, tasks, 1)
	assert.Equal(t, at, tasks[0].opts[asynq.ProcessAtOpt])
}

func TestScheduleCreate_Validation(t *testing.T) {
	fx := newFixture(t)
	fx.seedProject(t, "P1", "T1", models.ProjectTypeVideo, models.ProjectStatusReady)
	ctx := context.Background()

	_, err := fx.schedules.Create(ctx, "T1", "P404", models.ProjectTypeVideo, baseTime, destinations(publisher.DestinationSocial))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fx.schedules.Create(ctx, "T1", "P1", models.ProjectTypeVideo, baseTime, destinations())
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = fx.schedules.Create(ctx, "T1", "P1", models.ProjectTypeVideo, time.Time{}, destinations(publisher.DestinationSocial))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.Equal(t, int64(0), fx.count(t, &models.Schedule{}))
}

func TestTrigger_FutureScheduleIsDeferred(t *testing.T) {
	fx := newFixture(t)
	fx.seedProject(t, "P1", "T1", models.ProjectTypeVideo, models.ProjectStatusReady)
	s, err := fx.schedules.Create(context.Background(), "T1", "P1", models.ProjectTypeVideo,
		baseTime.Add(90*time.Minute), destinations(publisher.DestinationSocial))
	require.NoError(t, err)

	fx.freeze(baseTime)
	job, err := fx.schedules.Trigger(context.Background(), "T1", s.ID)
	require.NoError(t, err)
	assert.Nil(t, job)

	assert.Equal(t, int64(0), fx.count(t, &models.Job{}))
	stored := fx.schedule(t, s.ID)
	assert.Equal(t, models.ScheduleStatusPending, stored.Status)
	assert.Nil(t, stored.ExecutedAt)

	tasks := fx.enqueuer.ofType(queue.TypeSchedulePublish)
	require.Len(t, tasks, 2)
	assert.Equal(t, 90*time.Minute, tasks[1].opts[asynq.ProcessInOpt])
}

func TestTrigger_DueScheduleCreatesOneJob(t *testing.T) {
	fx := newFixture(t)
	fx.seedProject(t, "P7", "T1", models.ProjectTypePrint, models.ProjectStatusReady)
	s, err := fx.schedules.Create(context.Background(), "T1", "P7", models.ProjectTypePrint,
		baseTime.Add(-time.Minute), destinations(publisher.DestinationEmail))
	require.NoError(t, err)

	fx.freeze(baseTime)
	job, err := fx.schedules.Trigger(context.Background(), "T1", s.ID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, ScheduleJobID(s.ID), job.ID)
	assert.Equal(t, models.JobTypePrintPublish, job.Type)
	assert.Equal(t, models.JobStatusPending, job.Status)

	stored := fx.schedule(t, s.ID)
	assert.Equal(t, models.ScheduleStatusExecuted, stored.Status)
	require.NotNil(t, stored.ExecutedAt)
	assert.True(t, stored.ExecutedAt.Equal(baseTime))
	require.NotNil(t, stored.JobID)
	assert.Equal(t, job.ID, *stored.JobID)

	publishTasks := fx.enqueuer.ofType(queue.TypePublishPrint)
	require.Len(t, publishTasks, 1)
	assert.Equal(t, job.ID, publishTasks[0].opts[asynq.TaskIDOpt])

	payload, err := queue.DecodePublishPayload(publishTasks[0].task)
	require.NoError(t, err)
	assert.Equal(t, []publisher.Destination{publisher.DestinationEmail}, payload.PublishRequest.Destinations)

	// a second delivery must not create another job
	again, err := fx.schedules.Trigger(context.Background(), "T1", s.ID)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, int64(1), fx.count(t, &models.Job{}))
	assert.Len(t, fx.enqueuer.ofType(queue.TypePublishPrint), 1)

	// the job created by the schedule runs through the orchestrator
	require.NoError(t, fx.publishers.Publish(context.Background(), job.ID, payload))
	assert.Equal(t, models.JobStatusCompleted, fx.job(t, job.ID).Status)
	assert.Equal(t, models.ProjectStatusPublished, fx.project(t, "P7").Status)

	done, err := fx.schedules.Trigger(context.Background(), "T1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
}

func TestTrigger_ReenqueuesPendingJobAfterLostEnqueue(t *testing.T) {
	fx := newFixture(t)
	fx.seedProject(t, "P1", "T1", models.ProjectTypeVideo, models.ProjectStatusReady)
	s, err := fx.schedules.Create(context.Background(), "T1", "P1", models.ProjectTypeVideo,
		baseTime, destinations(publisher.DestinationSocial))
	require.NoError(t, err)
	fx.freeze(baseTime)

	fx.enqueuer.err = assert.AnError
	_, err = fx.schedules.Trigger(context.Background(), "T1", s.ID)
	require.Error(t, err)
	assert.Equal(t, models.ScheduleStatusExecuted, fx.schedule(t, s.ID).Status)

	fx.enqueuer.err = nil
	job, err := fx.schedules.Trigger(context.Background(), "T1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, ScheduleJobID(s.ID), job.ID)
	assert.Len(t, fx.enqueuer.ofType(queue.TypePublishVideo), 1)
	assert.Equal(t, int64(1), fx.count(t, &models.Job{}))
}

func TestTrigger_MissingSchedule(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.schedules.Trigger(context.Background(), "T1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	task, err := queue.NewScheduleTask(queue.SchedulePayload{ScheduleID: "nope", TenantID: "T1"})
	require.NoError(t, err)
	err = fx.schedules.HandleScheduleTask(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestTrigger_OtherTenantCannotSeeSchedule(t *testing.T) {
	fx := newFixture(t)
	fx.seedProject(t, "P1", "T1", models.ProjectTypeVideo, models.ProjectStatusReady)
	s, err := fx.schedules.Create(context.Background(), "T1", "P1", models.ProjectTypeVideo,
		baseTime, destinations(publisher.DestinationSocial))
	require.NoError(t, err)

	_, err = fx.schedules.Trigger(context.Background(), "T2", s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, models.ScheduleStatusPending, fx.schedule(t, s.ID).Status)
}

func TestScheduleJobID_IsStable(t *testing.T) {
	assert.Equal(t, ScheduleJobID("S1"), ScheduleJobID("S1"))
	assert.NotEqual(t, ScheduleJobID("S1"), ScheduleJobID("S2"))
}

func TestSchedulerSweep_RearmsOverdueSchedules(t *testing.T) {
	fx := newFixture(t)
	fx.seedProject(t, "P1", "T1", models.ProjectTypeVideo, models.ProjectStatusReady)
	ctx := context.Background()
	req := destinations(publisher.DestinationSocial)

	overdue, err := fx.schedules.Create(ctx, "T1", "P1", models.ProjectTypeVideo, baseTime.Add(-time.Hour), req)
	require.NoError(t, err)
	_, err = fx.schedules.Create(ctx, "T1", "P1", models.ProjectTypeVideo, baseTime.Add(-time.Minute), req)
	require.NoError(t, err)
	_, err = fx.schedules.Create(ctx, "T1", "P1", models.ProjectTypeVideo, baseTime.Add(time.Hour), req)
	require.NoError(t, err)
	fx.freeze(baseTime)

	sched := NewScheduler(&config.SchedulerConfig{GracePeriod: "2m", BatchSize: 10}, zap.NewNop(), fx.schedules)
	count, err := sched.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	tasks := fx.enqueuer.ofType(queue.TypeSchedulePublish)
	require.Len(t, tasks, 4)
	payload, err := queue.DecodeSchedulePayload(tasks[3].task)
	require.NoError(t, err)
	assert.Equal(t, overdue.ID, payload.ScheduleID)
	assert.Equal(t, baseTime, tasks[3].opts[asynq.ProcessAtOpt])
}

func TestScheduler_Disabled(t *testing.T) {
	disabled := false
	sched := NewScheduler(&config.SchedulerConfig{Enabled: &disabled}, zap.NewNop(), nil)
	require.NoError(t, sched.Start(context.Background()))
	sched.Stop()
}
