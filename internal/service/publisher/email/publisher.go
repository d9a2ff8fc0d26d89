package email

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/pressline/internal/service/publisher"
)

// EmailPublisher creates a campaign on the mailing service and sends it
type EmailPublisher struct {
	logger    *zap.Logger
	client    *publisher.APIClient
	fromEmail string
	listID    string
}

type createCampaignRequest struct {
	From      string   `json:"from"`
	ListID    string   `json:"list_id"`
	Subject   string   `json:"subject"`
	Preheader string   `json:"preheader,omitempty"`
	ProjectID string   `json:"project_id"`
	Assets    []string `json:"assets,omitempty"`
}

type campaignResponse struct {
	ID         string `json:"id"`
	Recipients int    `json:"recipients"`
}

func NewEmailPublisher(logger *zap.Logger, endpoint, token, fromEmail, listID string) publisher.Publisher {
	return &EmailPublisher{
		logger:    logger,
		client:    publisher.NewAPIClient(endpoint, token),
		fromEmail: fromEmail,
		listID:    listID,
	}
}

func (p *EmailPublisher) Destination() publisher.Destination {
	return publisher.DestinationEmail
}

func (p *EmailPublisher) Publish(ctx context.Context, content publisher.PublishContent, req publisher.PublishRequest) (*publisher.PublishResult, error) {
	if p.fromEmail == "" || p.listID == "" {
		return nil, fmt.Errorf("email sender and list must be configured")
	}

	subject := req.Options["subject"]
	if subject == "" {
		subject = content.Title
	}

	var campaign campaignResponse
	if err := p.client.Do(ctx, http.MethodPost, "/campaigns", createCampaignRequest{
		From:      p.fromEmail,
		ListID:    p.listID,
		Subject:   subject,
		Preheader: req.Options["preheader"],
		ProjectID: content.ProjectID,
		Assets:    content.Variants,
	}, &campaign); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	var sent campaignResponse
	if err := p.client.Do(ctx, http.MethodPost, "/campaigns/"+campaign.ID+"/send", nil, &sent); err != nil {
		return nil, fmt.Errorf("send campaign %s: %w", campaign.ID, err)
	}

	p.logger.Debug("Email campaign sent",
		zap.String("campaign_id", campaign.ID),
		zap.Int("recipients", sent.Recipients))

	return &publisher.PublishResult{
		Success:   true,
		Message:   fmt.Sprintf("campaign sent to %d recipients", sent.Recipients),
		Timestamp: time.Now().UTC(),
		PublishID: campaign.ID,
	}, nil
}
