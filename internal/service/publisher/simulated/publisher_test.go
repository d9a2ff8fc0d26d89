package simulated

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/pressline/internal/service/publisher"
)

func TestSimulatedPublisher_AlwaysSucceeds(t *testing.T) {
	p := NewSimulatedPublisher(zap.NewNop(), publisher.DestinationEmail, time.Millisecond)
	res, err := p.Publish(context.Background(), publisher.PublishContent{ProjectID: "P1"}, publisher.PublishRequest{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Published to email", res.Message)
	assert.Equal(t, publisher.DestinationEmail, p.Destination())
}

func TestSimulatedPublisher_HonoursCancellation(t *testing.T) {
	p := NewSimulatedPublisher(zap.NewNop(), publisher.DestinationSocial, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Publish(ctx, publisher.PublishContent{}, publisher.PublishRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
