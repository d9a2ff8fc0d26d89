package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu    sync.Mutex
	calls []Destination
}

func (r *recorder) add(d Destination) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, d)
}

func (r *recorder) list() []Destination {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Destination(nil), r.calls...)
}

type fakePublisher struct {
	destination Destination
	rec         *recorder
	err         error
	result      *PublishResult
	block       bool
}

func (f *fakePublisher) Destination() Destination { return f.destination }

func (f *fakePublisher) Publish(ctx context.Context, _ PublishContent, _ PublishRequest) (*PublishResult, error) {
	f.rec.add(f.destination)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &PublishResult{Success: true, Message: "ok " + string(f.destination), Timestamp: time.Now()}, nil
}

func newTestManager(t *testing.T, timeout time.Duration, pubs ...*fakePublisher) *Manager {
	t.Helper()
	m := NewPublishManager(zap.NewNop(), timeout)
	for _, p := range pubs {
		require.NoError(t, m.RegisterPublisher(p))
	}
	return m
}

func TestManager_PublishInRequestOrder(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t, time.Second,
		&fakePublisher{destination: DestinationSocial, rec: rec},
		&fakePublisher{destination: DestinationWebsite, rec: rec},
		&fakePublisher{destination: DestinationEmail, rec: rec},
	)

	req := PublishRequest{Destinations: []Destination{DestinationEmail, DestinationSocial, DestinationWebsite}}
	results, err := m.Publish(context.Background(), PublishContent{ProjectID: "P1"}, req)
	require.NoError(t, err)

	assert.Equal(t, req.Destinations, rec.list())
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, req.Destinations[i], r.Destination)
		assert.True(t, r.Success)
	}
}

func TestManager_StopsAtFirstFailure(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t, time.Second,
		&fakePublisher{destination: DestinationSocial, rec: rec},
		&fakePublisher{destination: DestinationWebsite, rec: rec, err: errors.New("rate limited")},
		&fakePublisher{destination: DestinationEmail, rec: rec},
	)

	req := PublishRequest{Destinations: []Destination{DestinationSocial, DestinationWebsite, DestinationEmail}}
	results, err := m.Publish(context.Background(), PublishContent{}, req)

	var destErr *DestinationError
	require.ErrorAs(t, err, &destErr)
	assert.Equal(t, DestinationWebsite, destErr.Destination)
	assert.EqualError(t, destErr.Err, "rate limited")
	assert.Equal(t, []Destination{DestinationSocial, DestinationWebsite}, rec.list())
	require.Len(t, results, 1)
	assert.Equal(t, DestinationSocial, results[0].Destination)
}

func TestManager_UnsuccessfulResultIsFailure(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t, time.Second,
		&fakePublisher{destination: DestinationEmail, rec: rec, result: &PublishResult{Success: false, Message: "list suspended"}},
	)

	_, err := m.Publish(context.Background(), PublishContent{}, PublishRequest{Destinations: []Destination{DestinationEmail}})
	var destErr *DestinationError
	require.ErrorAs(t, err, &destErr)
	assert.EqualError(t, destErr.Err, "list suspended")
}

func TestManager_PerCallTimeout(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t, 20*time.Millisecond,
		&fakePublisher{destination: DestinationSocial, rec: rec, block: true},
		&fakePublisher{destination: DestinationEmail, rec: rec},
	)

	_, err := m.Publish(context.Background(), PublishContent{}, PublishRequest{Destinations: []Destination{DestinationSocial, DestinationEmail}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []Destination{DestinationSocial}, rec.list())
}

func TestManager_CancelledContextSkipsRemaining(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t, 0, &fakePublisher{destination: DestinationSocial, rec: rec})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Publish(ctx, PublishContent{}, PublishRequest{Destinations: []Destination{DestinationSocial}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.list())
}

func TestManager_UnregisteredDestination(t *testing.T) {
	m := newTestManager(t, 0)
	_, err := m.Publish(context.Background(), PublishContent{}, PublishRequest{Destinations: []Destination{DestinationWebsite}})
	var destErr *DestinationError
	require.ErrorAs(t, err, &destErr)
	assert.Equal(t, DestinationWebsite, destErr.Destination)
}

func TestManager_RegisterRejectsDuplicates(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t, 0, &fakePublisher{destination: DestinationSocial, rec: rec})
	assert.Error(t, m.RegisterPublisher(&fakePublisher{destination: DestinationSocial, rec: rec}))
	assert.Error(t, m.RegisterPublisher(&fakePublisher{destination: "fax", rec: rec}))
	assert.Equal(t, []Destination{DestinationSocial}, m.Destinations())
}

func TestParseDestinations(t *testing.T) {
	ds, err := ParseDestinations([]string{"social", "email"})
	require.NoError(t, err)
	assert.Equal(t, []Destination{DestinationSocial, DestinationEmail}, ds)

	_, err = ParseDestinations(nil)
	assert.Error(t, err)
	_, err = ParseDestinations([]string{"social", "fax"})
	assert.Error(t, err)
	_, err = ParseDestinations([]string{"email", "email"})
	assert.Error(t, err)
}
