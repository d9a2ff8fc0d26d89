package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer is the part of *asynq.Client the services depend on
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type ClientOptions struct {
	Queue       string
	MaxRetry    int
	TaskTimeout time.Duration
}

// Client enqueues pipeline tasks with the configured queue and retry policy
type Client struct {
	enqueuer Enqueuer
	logger   *zap.Logger
	queue    string
	maxRetry int
	timeout  time.Duration
}

func NewClient(enqueuer Enqueuer, logger *zap.Logger, opts ClientOptions) *Client {
	q := opts.Queue
	if q == "" {
		q = "default"
	}
	return &Client{
		enqueuer: enqueuer,
		logger:   logger,
		queue:    q,
		maxRetry: opts.MaxRetry,
		timeout:  opts.TaskTimeout,
	}
}

func (c *Client) baseOptions() []asynq.Option {
	opts := []asynq.Option{asynq.Queue(c.queue), asynq.MaxRetry(c.maxRetry)}
	if c.timeout > 0 {
		opts = append(opts, asynq.Timeout(c.timeout))
	}
	return opts
}

// EnqueuePublish enqueues a publish task whose task id is jobID. Enqueueing
// an id that is already queued is not an error.
func (c *Client) EnqueuePublish(ctx context.Context, jobID string, payload PublishPayload) error {
	task, err := NewPublishTask(payload)
	if err != nil {
		return err
	}

	opts := append(c.baseOptions(), asynq.TaskID(jobID))
	info, err := c.enqueuer.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		c.logger.Info("Publish task already enqueued", zap.String("job_id", jobID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue publish task: %w", err)
	}

	c.logger.Info("Publish task enqueued",
		zap.String("job_id", info.ID),
		zap.String("type", task.Type()),
		zap.String("project_id", payload.ProjectID))
	return nil
}

// EnqueueScheduleCheck arms a schedule-publish task to run at processAt.
// A processAt in the past runs immediately.
func (c *Client) EnqueueScheduleCheck(ctx context.Context, payload SchedulePayload, processAt time.Time) error {
	return c.enqueueSchedule(ctx, payload, asynq.ProcessAt(processAt))
}

// DeferScheduleCheck re-arms a schedule-publish task after delay
func (c *Client) DeferScheduleCheck(ctx context.Context, payload SchedulePayload, delay time.Duration) error {
	return c.enqueueSchedule(ctx, payload, asynq.ProcessIn(delay))
}

func (c *Client) enqueueSchedule(ctx context.Context, payload SchedulePayload, when asynq.Option) error {
	task, err := NewScheduleTask(payload)
	if err != nil {
		return err
	}

	info, err := c.enqueuer.EnqueueContext(ctx, task, append(c.baseOptions(), when)...)
	if err != nil {
		return fmt.Errorf("failed to enqueue schedule task: %w", err)
	}

	c.logger.Info("Schedule check enqueued",
		zap.String("schedule_id", payload.ScheduleID),
		zap.String("task_id", info.ID),
		zap.Time("next_process_at", info.NextProcessAt))
	return nil
}
