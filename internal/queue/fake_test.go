package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type enqueued struct {
	task *asynq.Task
	opts map[asynq.OptionType]interface{}
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []enqueued
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

	e := enqueued{task: task, opts: make(map[asynq.OptionType]interface{})}
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

	next := time.Now()
	if at, ok := e.opts[asynq.ProcessAtOpt].(time.Time); ok {
		next = at
	}
	if in, ok := e.opts[asynq.ProcessInOpt].(time.Duration); ok {
		next = next.Add(in)
	}
	return &asynq.TaskInfo{ID: id, Type: task.Type(), NextProcessAt: next}, nil
}

func (f *fakeEnqueuer) all() []enqueued {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]enqueued(nil), f.tasks...)
}
