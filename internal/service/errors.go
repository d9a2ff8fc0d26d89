package service

import (
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

var (
	// ErrNotFound means the project, job or schedule does not exist for the tenant
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest means the input can never succeed as given
	ErrInvalidRequest = errors.New("invalid request")
	// ErrProjectBusy means another job is publishing the same project
	ErrProjectBusy = errors.New("project is already publishing")
)

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// taskError marks errors that redelivery cannot fix so asynq archives the
// task instead of retrying it.
func taskError(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidRequest) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
