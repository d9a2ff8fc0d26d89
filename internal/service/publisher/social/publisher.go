package social

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/pressline/internal/service/publisher"
)

// SocialPublisher posts a project to every configured social account
type SocialPublisher struct {
	logger   *zap.Logger
	client   *publisher.APIClient
	accounts []string
}

type createPostRequest struct {
	Account   string   `json:"account"`
	Text      string   `json:"text"`
	ProjectID string   `json:"project_id"`
	BrandID   string   `json:"brand_id,omitempty"`
	Media     []string `json:"media,omitempty"`
	Hashtags  []string `json:"hashtags,omitempty"`
}

type createPostResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func NewSocialPublisher(logger *zap.Logger, endpoint, token string, accounts []string) publisher.Publisher {
	return &SocialPublisher{
		logger:   logger,
		client:   publisher.NewAPIClient(endpoint, token),
		accounts: accounts,
	}
}

func (p *SocialPublisher) Destination() publisher.Destination {
	return publisher.DestinationSocial
}

func (p *SocialPublisher) Publish(ctx context.Context, content publisher.PublishContent, req publisher.PublishRequest) (*publisher.PublishResult, error) {
	if len(p.accounts) == 0 {
		return nil, fmt.Errorf("no social accounts configured")
	}

	text := req.Options["caption"]
	if text == "" {
		text = content.Title
	}

	var hashtags []string
	if raw := req.Options["hashtags"]; raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				hashtags = append(hashtags, strings.TrimPrefix(tag, "#"))
			}
		}
	}

	postIDs := make([]string, 0, len(p.accounts))
	metadata := make(map[string]string, len(p.accounts))
	for _, account := range p.accounts {
		body := createPostRequest{
			Account:   account,
			Text:      text,
			ProjectID: content.ProjectID,
			BrandID:   content.BrandID,
			Media:     content.Variants,
			Hashtags:  hashtags,
		}

		var resp createPostResponse
		if err := p.client.Do(ctx, http.MethodPost, "/posts", body, &resp); err != nil {
			return nil, fmt.Errorf("post to %s: %w", account, err)
		}

		postIDs = append(postIDs, resp.ID)
		metadata[account] = resp.URL
		p.logger.Debug("Social post created",
			zap.String("account", account),
			zap.String("post_id", resp.ID))
	}

	return &publisher.PublishResult{
		Success:   true,
		Message:   fmt.Sprintf("posted to %d social accounts", len(postIDs)),
		Timestamp: time.Now().UTC(),
		PublishID: strings.Join(postIDs, ","),
		Metadata:  metadata,
	}, nil
}
