package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaEmitter_Emit(t *testing.T) {
	w := &fakeWriter{}
	e := NewKafkaEmitterWithWriter(w, zap.NewNop())

	err := e.Emit(context.Background(), Event{
		Type:      TypeJobFailed,
		JobID:     "job-1",
		ProjectID: "P1",
		TenantID:  "T1",
		Status:    "FAILED",
		Error:     "rate limited",
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "job-1", string(msg.Key))
	assert.False(t, msg.Time.IsZero())
	assert.Contains(t, msg.Headers, kafka.Header{Key: "type", Value: []byte(TypeJobFailed)})

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "rate limited", decoded.Error)
	assert.Equal(t, "T1", decoded.TenantID)

	require.NoError(t, e.Close())
	assert.True(t, w.closed)
}

func TestKafkaEmitter_WriteError(t *testing.T) {
	e := NewKafkaEmitterWithWriter(&fakeWriter{err: errors.New("no brokers")}, zap.NewNop())
	assert.ErrorContains(t, e.Emit(context.Background(), Event{JobID: "job-1"}), "no brokers")
}

func TestNewKafkaEmitter_DoesNotHoldSingleEvents(t *testing.T) {
	e := NewKafkaEmitter([]string{"localhost:9092"}, "pressline.jobs", zap.NewNop())
	defer e.Close()

	w, ok := e.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "pressline.jobs", w.Topic)
	// kafka-go waits a full second for a batch to fill by default
	assert.Equal(t, 10*time.Millisecond, w.BatchTimeout)
}
