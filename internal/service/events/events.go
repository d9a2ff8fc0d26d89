package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TypeJobStarted   = "job.started"
	TypeJobCompleted = "job.completed"
	TypeJobFailed    = "job.failed"
)

// Event is a job lifecycle notification
type Event struct {
	Type       string    `json:"type"`
	JobID      string    `json:"job_id"`
	JobType    string    `json:"job_type"`
	ProjectID  string    `json:"project_id"`
	TenantID   string    `json:"tenant_id"`
	Status     string    `json:"status"`
	Attempt    int       `json:"attempt"`
	Error      string    `json:"error,omitempty"`
	Results    any       `json:"results,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Emitter interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}

// MessageWriter is the part of *kafka.Writer used by KafkaEmitter
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaEmitter struct {
	writer MessageWriter
	logger *zap.Logger
}

func NewKafkaEmitter(brokers []string, topic string, logger *zap.Logger) *KafkaEmitter {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaEmitterWithWriter(writer, logger)
}

func NewKafkaEmitterWithWriter(writer MessageWriter, logger *zap.Logger) *KafkaEmitter {
	return &KafkaEmitter{writer: writer, logger: logger}
}

// Emit writes the event keyed by job id so one job's events stay in order
func (k *KafkaEmitter) Emit(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.JobID),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
			{Key: "tenant_id", Value: []byte(event.TenantID)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	k.logger.Debug("Event emitted", zap.String("type", event.Type), zap.String("job_id", event.JobID))
	return nil
}

func (k *KafkaEmitter) Close() error {
	return k.writer.Close()
}

// NopEmitter drops every event
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) error { return nil }
func (NopEmitter) Close() error                      { return nil }
