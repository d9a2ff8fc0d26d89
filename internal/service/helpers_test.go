package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ifuryst/pressline/internal/config"
	"github.com/ifuryst/pressline/internal/models"
	"github.com/ifuryst/pressline/internal/queue"
	"github.com/ifuryst/pressline/internal/service/events"
	"github.com/ifuryst/pressline/internal/service/publisher"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := NewDatabase(&config.DatabaseConfig{Type: "sqlite", Database: dsn})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type enqueuedTask struct {
	task *asynq.Task
	opts map[asynq.OptionType]interface{}
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []enqueuedTask
	ids   map[string]bool
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.ids == nil {
		f.ids = make(map[string]bool)
	}

	e := enqueuedTask{task: task, opts: make(map[asynq.OptionType]interface{})}
	for _, o := range opts {
		e.opts[o.Type()] = o.Value()
	}
	id, ok := e.opts[asynq.TaskIDOpt].(string)
	if !ok {
		id = uuid.NewString()
	}
	if f.ids[id] {
		return nil, asynq.ErrTaskIDConflict
	}
	f.ids[id] = true
	f.tasks = append(f.tasks, e)
	return &asynq.TaskInfo{ID: id, Type: task.Type(), NextProcessAt: time.Now()}, nil
}

func (f *fakeEnqueuer) ofType(taskType string) []enqueuedTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []enqueuedTask
	for _, e := range f.tasks {
		if e.task.Type() == taskType {
			out = append(out, e)
		}
	}
	return out
}

type stubPublisher struct {
	destination publisher.Destination
	fx          *fixture
}

func (p *stubPublisher) Destination() publisher.Destination { return p.destination }

func (p *stubPublisher) Publish(ctx context.Context, content publisher.PublishContent, _ publisher.PublishRequest) (*publisher.PublishResult, error) {
	p.fx.mu.Lock()
	p.fx.calls = append(p.fx.calls, p.destination)
	err := p.fx.failures[p.destination]
	p.fx.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &publisher.PublishResult{
		Success:   true,
		Message:   fmt.Sprintf("Published %s to %s", content.ProjectID, p.destination),
		Timestamp: time.Now().UTC(),
	}, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEmitter) Close() error { return nil }

func (r *recordingEmitter) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	db         *gorm.DB
	enqueuer   *fakeEnqueuer
	emitter    *recordingEmitter
	monitoring *MonitoringService
	publishers *PublisherService
	schedules  *ScheduleService

	mu       sync.Mutex
	calls    []publisher.Destination
	failures map[publisher.Destination]error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	fx := &fixture{
		db:       newTestDB(t),
		enqueuer: &fakeEnqueuer{},
		emitter:  &recordingEmitter{},
		failures: map[publisher.Destination]error{},
	}

	manager := publisher.NewPublishManager(logger, time.Second)
	for _, d := range []publisher.Destination{publisher.DestinationSocial, publisher.DestinationWebsite, publisher.DestinationEmail} {
		require.NoError(t, manager.RegisterPublisher(&stubPublisher{destination: d, fx: fx}))
	}

	client := queue.NewClient(fx.enqueuer, logger, queue.ClientOptions{MaxRetry: 3})
	fx.monitoring = NewMonitoringService(fx.db, logger)
	fx.publishers = NewPublisherService(fx.db, logger, manager, fx.monitoring, fx.emitter, client)
	fx.schedules = NewScheduleService(fx.db, logger, client, fx.publishers)
	return fx
}

func (fx *fixture) fail(d publisher.Destination, err error) {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	if err == nil {
		delete(fx.failures, d)
		return
	}
	fx.failures[d] = err
}

func (fx *fixture) called() []publisher.Destination {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return append([]publisher.Destination(nil), fx.calls...)
}

func (fx *fixture) seedProject(t *testing.T, id, tenantID string, projectType models.ProjectType, status models.ProjectStatus) {
	t.Helper()
	require.NoError(t, fx.db.Create(&models.ContentProject{
		ID:       id,
		TenantID: tenantID,
		Type:     projectType,
		Title:    "Spring launch " + id,
		BrandID:  "brand-1",
		Variants: datatypes.JSONSlice[string]{"16:9", "9:16"},
		Status:   status,
	}).Error)
}

func (fx *fixture) project(t *testing.T, id string) models.ContentProject {
	t.Helper()
	var p models.ContentProject
	require.NoError(t, fx.db.First(&p, "id = ?", id).Error)
	return p
}

func (fx *fixture) job(t *testing.T, id string) models.Job {
	t.Helper()
	var j models.Job
	require.NoError(t, fx.db.First(&j, "id = ?", id).Error)
	return j
}

func (fx *fixture) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, fx.db.Model(model).Count(&n).Error)
	return n
}

func destinations(ds ...publisher.Destination) publisher.PublishRequest {
	return publisher.PublishRequest{Destinations: ds}
}

func (fx *fixture) seedJob(t *testing.T, id, projectID, tenantID string, status models.JobStatus) {
	t.Helper()
	require.NoError(t, fx.db.Create(&models.Job{
		ID:        id,
		Type:      models.JobTypeVideoPublish,
		Status:    status,
		ProjectID: projectID,
		TenantID:  tenantID,
	}).Error)
}
