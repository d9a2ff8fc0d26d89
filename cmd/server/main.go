package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ifuryst/pressline/internal/config"
	"github.com/ifuryst/pressline/internal/models"
	"github.com/ifuryst/pressline/internal/server"
	"github.com/ifuryst/pressline/internal/service"
	"github.com/ifuryst/pressline/internal/service/publisher"
	"github.com/ifuryst/pressline/pkg/logger"
	"github.com/ifuryst/pressline/pkg/util"
)

var (
	configPath string
	version    = "0.1.0"
	gitCommit  = "unknown"
	buildTime  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pressline",
	Short: "Pressline - publish pipeline for video and print projects",
	Long:  `Pressline serves the publish API and consumes publish-video, publish-print and schedule-publish tasks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(server.ModeAll)
	},
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the HTTP API only",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(server.ModeAPI)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queue tasks only",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(server.ModeWorker)
	},
}

var (
	publishTenant       string
	publishType         string
	publishDestinations string
	publishAt           string
)

var publishCmd = &cobra.Command{
	Use:   "publish <project-id>",
	Short: "Enqueue a publish, or schedule one with --at",
	Args:  cobra.ExactArgs(1),
	RunE:  runPublish,
}

var totpCmd = &cobra.Command{
	Use:   "totp-secret",
	Short: "Generate a TOTP secret for the admin API",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, url, err := service.GenerateSecret("Pressline", "admin")
		if err != nil {
			return err
		}
		fmt.Printf("Secret: %s\n", secret)
		fmt.Printf("URL:    %s\n", url)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Pressline %s\n", version)
		fmt.Printf("Git commit: %s\n", gitCommit)
		fmt.Printf("Build time: %s\n", buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/server.yaml", "config file path")

	publishCmd.Flags().StringVarP(&publishTenant, "tenant", "t", "", "tenant id")
	publishCmd.Flags().StringVar(&publishType, "type", string(models.ProjectTypeVideo), "project type (VIDEO or PRINT)")
	publishCmd.Flags().StringVarP(&publishDestinations, "destinations", "d", "", "comma separated destinations, in call order")
	publishCmd.Flags().StringVar(&publishAt, "at", "", "RFC3339 time to schedule the publish for")
	_ = publishCmd.MarkFlagRequired("tenant")
	_ = publishCmd.MarkFlagRequired("destinations")

	rootCmd.AddCommand(apiCmd, workerCmd, publishCmd, totpCmd, versionCmd)
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, appLogger, nil
}

func run(mode server.Mode) error {
	cfg, appLogger, err := setup()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Pressline", zap.String("version", version), zap.Int("mode", int(mode)))

	srv, err := server.NewServer(cfg, appLogger, mode)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(gctx); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down...")
		if err := srv.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Server stopped with error", zap.Error(err))
		return err
	}

	appLogger.Info("Server exited")
	return nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, appLogger, err := setup()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	destinations, err := publisher.ParseDestinations(util.SplitList(publishDestinations))
	if err != nil {
		return err
	}
	req := publisher.PublishRequest{Destinations: destinations}
	projectType := models.ProjectType(publishType)

	srv, err := server.NewServer(cfg, appLogger, server.ModeAPI)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Shutdown(context.Background())

	ctx := cmd.Context()
	if publishAt != "" {
		at, err := time.Parse(time.RFC3339, publishAt)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		schedule, err := srv.ScheduleService.Create(ctx, publishTenant, args[0], projectType, at, req)
		if err != nil {
			return err
		}
		fmt.Printf("Scheduled %s for %s\n", schedule.ID, schedule.ScheduledAt.Format(time.RFC3339))
		return nil
	}

	job, err := srv.PublisherService.RequestPublish(ctx, publishTenant, args[0], projectType, req)
	if err != nil {
		return err
	}
	fmt.Printf("Enqueued job %s\n", job.ID)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
