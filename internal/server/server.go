package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ifuryst/pressline/internal/config"
	"github.com/ifuryst/pressline/internal/queue"
	"github.com/ifuryst/pressline/internal/service"
	"github.com/ifuryst/pressline/internal/service/events"
	"github.com/ifuryst/pressline/internal/service/publisher"
)

// Mode selects which parts of the process run
type Mode int

const (
	// ModeAll serves the API and consumes the queue
	ModeAll Mode = iota
	ModeAPI
	ModeWorker
)

func (m Mode) api() bool    { return m == ModeAll || m == ModeAPI }
func (m Mode) worker() bool { return m == ModeAll || m == ModeWorker }

// Dependencies are the external resources the services run on
type Dependencies struct {
	DB       *gorm.DB
	Enqueuer queue.Enqueuer
	Manager  *publisher.Manager
	Emitter  events.Emitter
}

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server
	Mode   Mode

	// Services
	PublisherService  *service.PublisherService
	ScheduleService   *service.ScheduleService
	MonitoringService *service.MonitoringService
	AuthService       *service.AuthService
	Scheduler         *service.Scheduler
	StatsUpdater      *service.StatsUpdater
	Worker            *queue.Worker

	closers []func() error
}

func NewServer(cfg *config.Config, logger *zap.Logger, mode Mode) (*Server, error) {
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	manager, err := service.NewPublishManager(&cfg.Publisher, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize publishers: %w", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	client := asynq.NewClient(redisOpt)

	var emitter events.Emitter = events.NopEmitter{}
	if cfg.Kafka.Enabled {
		emitter = events.NewKafkaEmitter(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.Info("Kafka job events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	srv := NewServerWithDependencies(cfg, logger, mode, Dependencies{
		DB:       db,
		Enqueuer: client,
		Manager:  manager,
		Emitter:  emitter,
	})
	srv.closers = append(srv.closers, client.Close, emitter.Close, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if mode.worker() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		srv.closers = append(srv.closers, rdb.Close)

		worker, err := queue.NewWorker(redisOpt, queue.WorkerConfig{
			Concurrency:     cfg.Queue.Concurrency,
			Queues:          cfg.Queue.Queues,
			BaseBackoff:     config.Duration(cfg.Queue.BaseBackoff, 10*time.Second),
			MaxBackoff:      config.Duration(cfg.Queue.MaxBackoff, 10*time.Minute),
			ShutdownTimeout: 30 * time.Second,
			OnArchived:      srv.PublisherService.HandleArchivedTask,
		}, service.TaskHandlers(srv.PublisherService, srv.ScheduleService), logger, queue.NewLocker(rdb))
		if err != nil {
			_ = srv.close()
			return nil, fmt.Errorf("failed to initialize worker: %w", err)
		}
		srv.Worker = worker
	}

	return srv, nil
}

// NewServerWithDependencies wires services and routes on the given resources.
// It does not create a queue worker.
func NewServerWithDependencies(cfg *config.Config, logger *zap.Logger, mode Mode, deps Dependencies) *Server {
	gin.SetMode(cfg.Server.Mode)

	queueClient := queue.NewClient(deps.Enqueuer, logger, queue.ClientOptions{
		Queue:       cfg.Queue.Name,
		MaxRetry:    cfg.Queue.MaxRetry,
		TaskTimeout: config.Duration(cfg.Queue.TaskTimeout, 10*time.Minute),
	})

	monitoringService := service.NewMonitoringService(deps.DB, logger)
	publisherService := service.NewPublisherService(deps.DB, logger, deps.Manager, monitoringService, deps.Emitter, queueClient)
	scheduleService := service.NewScheduleService(deps.DB, logger, queueClient, publisherService)

	srv := &Server{
		Config:            cfg,
		DB:                deps.DB,
		Router:            gin.New(),
		Logger:            logger,
		Mode:              mode,
		PublisherService:  publisherService,
		ScheduleService:   scheduleService,
		MonitoringService: monitoringService,
		AuthService:       service.NewAuthService(logger, cfg.Auth.TOTPSecret),
		Scheduler:         service.NewScheduler(&cfg.Scheduler, logger, scheduleService),
		StatsUpdater: service.NewStatsUpdater(monitoringService, logger,
			config.Duration(cfg.Monitoring.StatsInterval, 5*time.Minute), cfg.Monitoring.RetentionDays),
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	if mode.api() {
		srv.Server = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: srv.Router,
		}
	}

	return srv
}

// Start runs the configured parts and blocks until ctx is done or the HTTP
// server stops.
func (s *Server) Start(ctx context.Context) error {
	if s.Mode.worker() {
		if s.Worker != nil {
			if err := s.Worker.Start(); err != nil {
				return fmt.Errorf("failed to start worker: %w", err)
			}
		}
		if err := s.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		s.StatsUpdater.Start(ctx)
	}

	if !s.Mode.api() {
		<-ctx.Done()
		return nil
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", s.Server.Addr))

	var err error
	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		err = s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	} else {
		err = s.Server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.Scheduler.Stop()
	s.StatsUpdater.Stop()
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	var err error
	if s.Server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		err = s.Server.Shutdown(shutdownCtx)
	}

	return errors.Join(err, s.close())
}

func (s *Server) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
