package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/ifuryst/pressline/internal/models"
	"github.com/ifuryst/pressline/internal/service/publisher"
)

// Task type names registered with the worker
const (
	TypePublishVideo    = "publish-video"
	TypePublishPrint    = "publish-print"
	TypeSchedulePublish = "schedule-publish"
)

// PublishPayload is carried by publish-video and publish-print tasks. The
// job id is the task id and is not repeated here.
type PublishPayload struct {
	ProjectID      string                   `json:"project_id"`
	TenantID       string                   `json:"tenant_id"`
	ProjectType    models.ProjectType       `json:"project_type"`
	PublishRequest publisher.PublishRequest `json:"publish_request"`
}

// SchedulePayload is carried by schedule-publish tasks
type SchedulePayload struct {
	ScheduleID string `json:"schedule_id"`
	TenantID   string `json:"tenant_id"`
}

// PublishTaskType returns the task name for a project type
func PublishTaskType(t models.ProjectType) (string, error) {
	switch t {
	case models.ProjectTypeVideo:
		return TypePublishVideo, nil
	case models.ProjectTypePrint:
		return TypePublishPrint, nil
	}
	return "", fmt.Errorf("unknown project type %q", t)
}

func NewPublishTask(payload PublishPayload) (*asynq.Task, error) {
	taskType, err := PublishTaskType(payload.ProjectType)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal publish payload: %w", err)
	}
	return asynq.NewTask(taskType, data), nil
}

func NewScheduleTask(payload SchedulePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schedule payload: %w", err)
	}
	return asynq.NewTask(TypeSchedulePublish, data), nil
}

// DecodePublishPayload parses a publish task and checks that the payload
// agrees with the task type.
func DecodePublishPayload(t *asynq.Task) (PublishPayload, error) {
	var payload PublishPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("invalid publish payload: %w", err)
	}
	taskType, err := PublishTaskType(payload.ProjectType)
	if err != nil {
		return payload, err
	}
	if taskType != t.Type() {
		return payload, fmt.Errorf("task %s carries a %s project", t.Type(), payload.ProjectType)
	}
	return payload, nil
}

func DecodeSchedulePayload(t *asynq.Task) (SchedulePayload, error) {
	var payload SchedulePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("invalid schedule payload: %w", err)
	}
	if payload.ScheduleID == "" {
		return payload, fmt.Errorf("schedule payload has no schedule id")
	}
	return payload, nil
}
