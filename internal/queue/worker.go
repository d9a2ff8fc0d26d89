package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type WorkerConfig struct {
	Concurrency     int
	Queues          map[string]int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	ShutdownTimeout time.Duration
	// OnArchived runs once a task has failed for the last time
	OnArchived func(ctx context.Context, t *asynq.Task, err error)
}

// Worker consumes pipeline tasks. The handler map is fixed at construction.
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	logger     *zap.Logger
	locker     *Locker
	types      []string
	onArchived func(ctx context.Context, t *asynq.Task, err error)
}

// NewWorker builds a worker serving exactly the task types in handlers.
// locker may be nil, which disables duplicate delivery protection.
func NewWorker(redisOpt asynq.RedisConnOpt, cfg WorkerConfig, handlers map[string]asynq.Handler, logger *zap.Logger, locker *Locker) (*Worker, error) {
	if len(handlers) == 0 {
		return nil, errors.New("worker needs at least one task handler")
	}

	con := cfg.Concurrency
	if con <= 0 {
		con = 10
	}
	qs := cfg.Queues
	if len(qs) == 0 {
		qs = map[string]int{"default": 1}
	}

	w := &Worker{
		mux:        asynq.NewServeMux(),
		logger:     logger,
		locker:     locker,
		onArchived: cfg.OnArchived,
	}

	for taskType, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("handler for %s is nil", taskType)
		}
		w.mux.Handle(taskType, h)
		w.types = append(w.types, taskType)
	}
	sort.Strings(w.types)

	w.mux.Use(w.loggingMiddleware)
	if locker != nil {
		w.mux.Use(w.lockMiddleware)
	}

	w.server = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     con,
		Queues:          qs,
		RetryDelayFunc:  RetryDelay(cfg.BaseBackoff, cfg.MaxBackoff),
		IsFailure:       IsFailure,
		ErrorHandler:    asynq.ErrorHandlerFunc(w.handleError),
		Logger:          NewLogger(logger),
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	return w, nil
}

// TaskTypes lists the registered task types in name order
func (w *Worker) TaskTypes() []string {
	return append([]string(nil), w.types...)
}

// Handler returns the full middleware chain, mostly for tests
func (w *Worker) Handler() asynq.Handler {
	return w.mux
}

// Start begins processing in the background
func (w *Worker) Start() error {
	w.logger.Info("Starting worker", zap.Strings("task_types", w.types))
	return w.server.Start(w.mux)
}

func (w *Worker) Shutdown() {
	w.logger.Info("Stopping worker")
	w.server.Shutdown()
}

func (w *Worker) loggingMiddleware(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		taskID, _ := asynq.GetTaskID(ctx)
		retried, _ := asynq.GetRetryCount(ctx)
		start := time.Now()

		err := next.ProcessTask(ctx, t)

		fields := []zap.Field{
			zap.String("type", t.Type()),
			zap.String("task_id", taskID),
			zap.Int("retried", retried),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			w.logger.Warn("Task failed", append(fields, zap.Error(err))...)
		} else {
			w.logger.Info("Task processed", fields...)
		}
		return err
	})
}

func (w *Worker) lockMiddleware(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		taskID, ok := asynq.GetTaskID(ctx)
		if !ok {
			return next.ProcessTask(ctx, t)
		}

		ttl := time.Minute
		if deadline, ok := ctx.Deadline(); ok {
			ttl = time.Until(deadline) + time.Second
		}

		release, err := w.locker.Acquire(ctx, taskID, ttl)
		if err != nil {
			return err
		}
		defer release()

		return next.ProcessTask(ctx, t)
	})
}

func (w *Worker) handleError(ctx context.Context, t *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	taskID, _ := asynq.GetTaskID(ctx)

	// asynq requeues non-failures without touching the retry count
	if !IsFailure(err) {
		return
	}
	if errors.Is(err, asynq.SkipRetry) || retried >= maxRetry {
		w.logger.Error("Task archived",
			zap.String("type", t.Type()),
			zap.String("task_id", taskID),
			zap.Int("retried", retried),
			zap.Error(err))
		if w.onArchived != nil {
			w.onArchived(context.WithoutCancel(ctx), t, err)
		}
	}
}

// RetryDelay returns exponential backoff base*2^n capped at max
func RetryDelay(base, max time.Duration) asynq.RetryDelayFunc {
	if base <= 0 {
		base = 10 * time.Second
	}
	if max <= 0 {
		max = 10 * time.Minute
	}
	return func(n int, err error, t *asynq.Task) time.Duration {
		if errors.Is(err, ErrTaskLocked) {
			return base
		}
		d := float64(base) * math.Pow(2, float64(n))
		if d > float64(max) {
			return max
		}
		return time.Duration(d)
	}
}

// IsFailure reports whether err counts against the task's retry budget.
// Losing the dedup lock to another consumer is not a failure.
func IsFailure(err error) bool {
	return !errors.Is(err, ErrTaskLocked)
}
