package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/pressline/internal/config"
	"github.com/ifuryst/pressline/internal/service/publisher"
	"github.com/ifuryst/pressline/internal/service/publisher/email"
	"github.com/ifuryst/pressline/internal/service/publisher/simulated"
	"github.com/ifuryst/pressline/internal/service/publisher/social"
	"github.com/ifuryst/pressline/internal/service/publisher/website"
	"github.com/ifuryst/pressline/pkg/git"
)

// NewPublishManager registers one publisher per enabled destination
func NewPublishManager(cfg *config.PublisherConfig, logger *zap.Logger) (*publisher.Manager, error) {
	manager := publisher.NewPublishManager(logger, config.Duration(cfg.Timeout, 30*time.Second))

	destinations := []struct {
		destination publisher.Destination
		cfg         config.DestinationConfig
		build       func(config.DestinationConfig) publisher.Publisher
	}{
		{publisher.DestinationSocial, cfg.Social, func(c config.DestinationConfig) publisher.Publisher {
			return social.NewSocialPublisher(logger, c.Endpoint, c.Token, c.Accounts)
		}},
		{publisher.DestinationWebsite, cfg.Website, func(c config.DestinationConfig) publisher.Publisher {
			if c.Git.RepoURL != "" {
				repo := git.NewRepository(git.RepositoryConfig{
					URL:          c.Git.RepoURL,
					Branch:       c.Git.Branch,
					WorkspaceDir: c.Git.WorkspaceDir,
					GitUsername:  c.Git.Username,
					GitEmail:     c.Git.Email,
				}, logger)
				return website.NewGitPublisher(logger, repo, c.Git.ContentDir, c.BaseURL)
			}
			return website.NewWebsitePublisher(logger, c.Endpoint, c.Token, c.BaseURL)
		}},
		{publisher.DestinationEmail, cfg.Email, func(c config.DestinationConfig) publisher.Publisher {
			return email.NewEmailPublisher(logger, c.Endpoint, c.Token, c.FromEmail, c.ListID)
		}},
	}

	for _, d := range destinations {
		if !d.cfg.Enabled {
			logger.Info("Destination disabled", zap.String("destination", string(d.destination)))
			continue
		}

		var p publisher.Publisher
		if d.cfg.Simulate || (d.cfg.Endpoint == "" && d.cfg.Git.RepoURL == "") {
			p = simulated.NewSimulatedPublisher(logger, d.destination, config.Duration(d.cfg.SimulateDelay, time.Second))
		} else {
			p = d.build(d.cfg)
		}

		if err := manager.RegisterPublisher(p); err != nil {
			return nil, err
		}
	}

	return manager, nil
}
