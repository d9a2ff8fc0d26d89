package service

import (
	"github.com/hibiken/asynq"

	"github.com/ifuryst/pressline/internal/queue"
)

// TaskHandlers is the worker's handler table
func TaskHandlers(publisherService *PublisherService, scheduleService *ScheduleService) map[string]asynq.Handler {
	return map[string]asynq.Handler{
		queue.TypePublishVideo:    asynq.HandlerFunc(publisherService.HandlePublishTask),
		queue.TypePublishPrint:    asynq.HandlerFunc(publisherService.HandlePublishTask),
		queue.TypeSchedulePublish: asynq.HandlerFunc(scheduleService.HandleScheduleTask),
	}
}
