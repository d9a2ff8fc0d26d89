package website

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/pressline/internal/service/publisher"
	"github.com/ifuryst/pressline/pkg/util"
)

// WebsitePublisher upserts a page for the project in the site CMS
type WebsitePublisher struct {
	logger  *zap.Logger
	client  *publisher.APIClient
	baseURL string
}

type upsertPageRequest struct {
	Path      string   `json:"path"`
	Title     string   `json:"title"`
	ProjectID string   `json:"project_id"`
	Type      string   `json:"type"`
	BrandID   string   `json:"brand_id,omitempty"`
	Assets    []string `json:"assets,omitempty"`
	Publish   bool     `json:"publish"`
}

type upsertPageResponse struct {
	ID string `json:"id"`
}

func NewWebsitePublisher(logger *zap.Logger, endpoint, token, baseURL string) publisher.Publisher {
	return &WebsitePublisher{
		logger:  logger,
		client:  publisher.NewAPIClient(endpoint, token),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (p *WebsitePublisher) Destination() publisher.Destination {
	return publisher.DestinationWebsite
}

func (p *WebsitePublisher) Publish(ctx context.Context, content publisher.PublishContent, req publisher.PublishRequest) (*publisher.PublishResult, error) {
	now := time.Now().UTC()

	path := req.Options["path"]
	if path == "" {
		path = util.GeneratePostPath(content.Title, content.ProjectID, now)
	}

	body := upsertPageRequest{
		Path:      path,
		Title:     content.Title,
		ProjectID: content.ProjectID,
		Type:      strings.ToLower(string(content.Type)),
		BrandID:   content.BrandID,
		Assets:    content.Variants,
		Publish:   true,
	}

	var resp upsertPageResponse
	if err := p.client.Do(ctx, http.MethodPut, "/pages", body, &resp); err != nil {
		return nil, fmt.Errorf("upsert page: %w", err)
	}

	url := fmt.Sprintf("%s/%s", p.baseURL, path)
	p.logger.Debug("Website page published", zap.String("page_id", resp.ID), zap.String("url", url))

	return &publisher.PublishResult{
		Success:   true,
		Message:   "page published",
		Timestamp: now,
		PublishID: resp.ID,
		URL:       url,
	}, nil
}
