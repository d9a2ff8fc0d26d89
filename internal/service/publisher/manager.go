package publisher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Manager owns the destination registry and dispatches publish requests
type Manager struct {
	publishers map[Destination]Publisher
	logger     *zap.Logger
	timeout    time.Duration
}

// NewPublishManager creates an empty manager. timeout bounds each destination
// call; zero disables the per-call deadline.
func NewPublishManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{
		publishers: make(map[Destination]Publisher),
		logger:     logger,
		timeout:    timeout,
	}
}

func (m *Manager) RegisterPublisher(publisher Publisher) error {
	destination := publisher.Destination()
	if !destination.Valid() {
		return fmt.Errorf("publisher has unknown destination %q", destination)
	}
	if _, exists := m.publishers[destination]; exists {
		return fmt.Errorf("publisher for destination %s already registered", destination)
	}

	m.publishers[destination] = publisher
	m.logger.Info("Publisher registered", zap.String("destination", string(destination)))
	return nil
}

func (m *Manager) GetPublisher(destination Destination) (Publisher, error) {
	publisher, exists := m.publishers[destination]
	if !exists {
		return nil, fmt.Errorf("publisher for destination %s not found", destination)
	}
	return publisher, nil
}

// Destinations lists the registered destinations in name order
func (m *Manager) Destinations() []Destination {
	out := make([]Destination, 0, len(m.publishers))
	for d := range m.publishers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Publish invokes the requested destinations one at a time in request order.
// The first failing destination stops the run: its error is returned as a
// *DestinationError together with the results collected before it, and the
// destinations after it are never called.
func (m *Manager) Publish(ctx context.Context, content PublishContent, req PublishRequest) ([]DestinationResult, error) {
	results := make([]DestinationResult, 0, len(req.Destinations))

	for _, destination := range req.Destinations {
		if err := ctx.Err(); err != nil {
			return results, &DestinationError{Destination: destination, Err: err}
		}

		publisher, err := m.GetPublisher(destination)
		if err != nil {
			return results, &DestinationError{Destination: destination, Err: err}
		}

		start := time.Now()
		result, err := m.invoke(ctx, publisher, content, req)
		if err != nil {
			m.logger.Error("Destination publish failed",
				zap.String("destination", string(destination)),
				zap.String("project_id", content.ProjectID),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			return results, &DestinationError{Destination: destination, Err: err}
		}

		m.logger.Info("Destination published",
			zap.String("destination", string(destination)),
			zap.String("project_id", content.ProjectID),
			zap.String("publish_id", result.PublishID),
			zap.Duration("duration", time.Since(start)))

		results = append(results, DestinationResult{Destination: destination, PublishResult: *result})
	}

	return results, nil
}

func (m *Manager) invoke(ctx context.Context, publisher Publisher, content PublishContent, req PublishRequest) (*PublishResult, error) {
	callCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	type outcome struct {
		result *PublishResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := publisher.Publish(callCtx, content, req)
		done <- outcome{result: result, err: err}
	}()

	// A publisher that ignores its context still cannot hold the job past the deadline
	var result *PublishResult
	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		result = o.result
	case <-callCtx.Done():
		return nil, callCtx.Err()
	}

	if result == nil {
		return nil, errors.New("publisher returned no result")
	}
	if !result.Success {
		if result.Message == "" {
			return nil, errors.New("publish reported failure")
		}
		return nil, errors.New(result.Message)
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}
	return result, nil
}
