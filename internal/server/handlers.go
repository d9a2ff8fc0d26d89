package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ifuryst/pressline/internal/models"
	"github.com/ifuryst/pressline/internal/service/publisher"
)

type publishRequest struct {
	Type         models.ProjectType `json:"type" binding:"required"`
	Destinations []string           `json:"destinations" binding:"required"`
	Options      map[string]string  `json:"options"`
}

type scheduleRequest struct {
	ProjectID    string             `json:"project_id" binding:"required"`
	ProjectType  models.ProjectType `json:"project_type" binding:"required"`
	ScheduledAt  time.Time          `json:"scheduled_at" binding:"required"`
	Destinations []string           `json:"destinations" binding:"required"`
	Options      map[string]string  `json:"options"`
}

func tenant(c *gin.Context) string {
	return c.GetString(tenantKey)
}

func buildPublishRequest(names []string, options map[string]string) (publisher.PublishRequest, error) {
	destinations, err := publisher.ParseDestinations(names)
	if err != nil {
		return publisher.PublishRequest{}, err
	}
	return publisher.PublishRequest{Destinations: destinations, Options: options}, nil
}

func (s *Server) handlePublishProject(c *gin.Context) {
	var body publishRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := buildPublishRequest(body.Destinations, body.Options)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.PublisherService.RequestPublish(c.Request.Context(), tenant(c), c.Param("id"), body.Type, req)
	if err != nil {
		s.respondError(c, err, "Failed to enqueue publish")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
}

func (s *Server) handleGetProject(c *gin.Context) {
	projectType := models.ProjectType(c.Query("type"))
	if !projectType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be VIDEO or PRINT"})
		return
	}

	project, err := s.PublisherService.GetProject(c.Request.Context(), tenant(c), c.Param("id"), projectType)
	if err != nil {
		s.respondError(c, err, "Failed to get project")
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.PublisherService.GetJob(c.Request.Context(), tenant(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err, "Failed to get job")
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (s *Server) handleCreateSchedule(c *gin.Context) {
	var body scheduleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := buildPublishRequest(body.Destinations, body.Options)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule, err := s.ScheduleService.Create(c.Request.Context(), tenant(c), body.ProjectID, body.ProjectType, body.ScheduledAt, req)
	if err != nil {
		s.respondError(c, err, "Failed to create schedule")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"schedule": schedule})
}

func (s *Server) handleGetSchedule(c *gin.Context) {
	schedule, err := s.ScheduleService.Get(c.Request.Context(), tenant(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err, "Failed to get schedule")
		return
	}

	c.JSON(http.StatusOK, gin.H{"schedule": schedule})
}

func (s *Server) handleGetSummary(c *gin.Context) {
	summary, err := s.MonitoringService.GetDashboardSummary(c.Request.Context(), tenant(c))
	if err != nil {
		s.respondError(c, err, "Failed to get dashboard summary")
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (s *Server) handleGetErrors(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	errorLogs, err := s.MonitoringService.GetRecentErrors(c.Request.Context(), tenant(c), limit)
	if err != nil {
		s.respondError(c, err, "Failed to get errors")
		return
	}

	c.JSON(http.StatusOK, gin.H{"errors": errorLogs})
}

func (s *Server) handleResolveError(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid error id"})
		return
	}

	if err := s.MonitoringService.ResolveError(c.Request.Context(), tenant(c), uint(id)); err != nil {
		s.respondError(c, err, "Failed to resolve error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Error resolved"})
}

func (s *Server) handleGetJobStats(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 {
		days = 7
	}

	stats, err := s.MonitoringService.GetJobStats(c.Request.Context(), tenant(c), days)
	if err != nil {
		s.respondError(c, err, "Failed to get job stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
