package server

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ifuryst/pressline/internal/service"
)

const (
	tenantHeader = "X-Tenant-ID"
	tenantKey    = "tenant_id"
)

func (s *Server) setupMiddleware() {
	s.Router.Use(gin.Recovery())
	s.Router.Use(s.requestLogger())

	corsConfig := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", tenantHeader, service.OTPHeader},
		MaxAge:       12 * time.Hour,
	}
	origins := s.Config.Server.AllowOrigins
	if len(origins) == 0 || slices.Contains(origins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	s.Router.Use(cors.New(corsConfig))
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.Logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("tenant_id", c.GetHeader(tenantHeader)))
	}
}

func requireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(tenantHeader)
		if tenantID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": tenantHeader + " header is required"})
			c.Abort()
			return
		}
		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	api := s.Router.Group("/api/v1", s.AuthService.AuthMiddleware(), requireTenant())
	{
		projects := api.Group("/projects")
		{
			projects.GET("/:id", s.handleGetProject)
			projects.POST("/:id/publish", s.handlePublishProject)
		}

		api.GET("/jobs/:id", s.handleGetJob)

		schedules := api.Group("/schedules")
		{
			schedules.POST("", s.handleCreateSchedule)
			schedules.GET("/:id", s.handleGetSchedule)
		}

		monitoring := api.Group("/monitoring")
		{
			monitoring.GET("/summary", s.handleGetSummary)
			monitoring.GET("/errors", s.handleGetErrors)
			monitoring.POST("/errors/:id/resolve", s.handleResolveError)
			monitoring.GET("/job-stats", s.handleGetJobStats)
		}
	}
}

// respondError maps service errors onto HTTP status codes
func (s *Server) respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrProjectBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.Logger.Error(message, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
