package simulated

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/pressline/internal/service/publisher"
)

// SimulatedPublisher stands in for a destination that has no live
// integration. It waits for delay and always succeeds.
type SimulatedPublisher struct {
	logger      *zap.Logger
	destination publisher.Destination
	delay       time.Duration
}

func NewSimulatedPublisher(logger *zap.Logger, destination publisher.Destination, delay time.Duration) publisher.Publisher {
	return &SimulatedPublisher{
		logger:      logger,
		destination: destination,
		delay:       delay,
	}
}

func (p *SimulatedPublisher) Destination() publisher.Destination {
	return p.destination
}

func (p *SimulatedPublisher) Publish(ctx context.Context, content publisher.PublishContent, _ publisher.PublishRequest) (*publisher.PublishResult, error) {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.logger.Debug("Simulated publish",
		zap.String("destination", string(p.destination)),
		zap.String("project_id", content.ProjectID))

	return &publisher.PublishResult{
		Success:   true,
		Message:   fmt.Sprintf("Published to %s", p.destination),
		Timestamp: time.Now().UTC(),
	}, nil
}
