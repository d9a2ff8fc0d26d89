package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/pressline/internal/config"
)

// Scheduler periodically re-arms schedules whose trigger task went missing
type Scheduler struct {
	config          *config.SchedulerConfig
	logger          *zap.Logger
	scheduleService *ScheduleService
	ticker          *time.Ticker
	stopCh          chan struct{}
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, scheduleService *ScheduleService) *Scheduler {
	return &Scheduler{
		config:          cfg,
		logger:          logger,
		scheduleService: scheduleService,
		stopCh:          make(chan struct{}),
	}
}

func (s *Scheduler) enabled() bool {
	return s.config.Enabled == nil || *s.config.Enabled
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.enabled() {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	interval := config.Duration(s.config.SweepInterval, 5*time.Minute)
	s.logger.Info("Starting scheduler", zap.Duration("sweep_interval", interval))

	s.ticker = time.NewTicker(interval)

	go func() {
		s.logger.Info("Running initial sweep")
		s.runSweep(ctx)

		for {
			select {
			case <-s.ticker.C:
				s.runSweep(ctx)
			case <-s.stopCh:
				s.logger.Info("Scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
	s.logger.Info("Scheduler shutdown completed")
}

// Sweep re-arms overdue schedules once
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	grace := config.Duration(s.config.GracePeriod, 2*time.Minute)
	cutoff := s.scheduleService.now().Add(-grace)
	return s.scheduleService.RearmOverdue(ctx, cutoff, s.config.BatchSize)
}

func (s *Scheduler) runSweep(ctx context.Context) {
	start := time.Now()
	count, err := s.Sweep(ctx)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("Sweep failed",
			zap.Error(err),
			zap.Duration("duration", duration))
		return
	}

	if count > 0 {
		s.logger.Info("Re-armed overdue schedules",
			zap.Int("count", count),
			zap.Duration("duration", duration))
	}
}
