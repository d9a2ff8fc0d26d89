package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTaskLocked means another consumer currently holds the task
var ErrTaskLocked = errors.New("task is being processed by another worker")

const lockPrefix = "pressline:lock:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a per-task Redis lock guarding against duplicate delivery
type Locker struct {
	rdb redis.UniversalClient
}

func NewLocker(rdb redis.UniversalClient) *Locker {
	return &Locker{rdb: rdb}
}

// Acquire takes the lock for taskID. It returns ErrTaskLocked when the lock
// is held. The returned release func only deletes a lock this call owns.
func (l *Locker) Acquire(ctx context.Context, taskID string, ttl time.Duration) (func(), error) {
	key := lockPrefix + taskID
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire task lock: %w", err)
	}
	if !ok {
		return nil, ErrTaskLocked
	}

	return func() {
		// the task context may already be cancelled
		_ = releaseScript.Run(context.Background(), l.rdb, []string{key}, token).Err()
	}, nil
}
