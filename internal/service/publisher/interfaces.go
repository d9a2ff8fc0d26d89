package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/ifuryst/pressline/internal/models"
)

// Destination names one outbound publishing channel
type Destination string

const (
	DestinationSocial  Destination = "social"
	DestinationWebsite Destination = "website"
	DestinationEmail   Destination = "email"
)

func (d Destination) Valid() bool {
	switch d {
	case DestinationSocial, DestinationWebsite, DestinationEmail:
		return true
	}
	return false
}

// ParseDestinations validates a caller supplied destination list. Order is
// preserved and duplicates are rejected.
func ParseDestinations(names []string) ([]Destination, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one destination is required")
	}

	seen := make(map[Destination]struct{}, len(names))
	out := make([]Destination, 0, len(names))
	for _, name := range names {
		d := Destination(name)
		if !d.Valid() {
			return nil, fmt.Errorf("unknown destination %q", name)
		}
		if _, dup := seen[d]; dup {
			return nil, fmt.Errorf("duplicate destination %q", name)
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out, nil
}

// PublishRequest is the caller's instruction for one publish attempt
type PublishRequest struct {
	Destinations []Destination    `json:"destinations"`
	Options      map[string]string `json:"options,omitempty"`
}

// Validate checks the destination list
func (r PublishRequest) Validate() error {
	names := make([]string, len(r.Destinations))
	for i, d := range r.Destinations {
		names[i] = string(d)
	}
	_, err := ParseDestinations(names)
	return err
}

// PublishContent is the read-only view of a project handed to publishers
type PublishContent struct {
	ProjectID string             `json:"project_id"`
	TenantID  string             `json:"tenant_id"`
	Type      models.ProjectType `json:"type"`
	Title     string             `json:"title"`
	BrandID   string             `json:"brand_id"`
	Variants  []string           `json:"variants"`
}

// PublishResult is what a destination reports back for one delivery
type PublishResult struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	PublishID string            `json:"publish_id,omitempty"`
	URL       string            `json:"url,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// DestinationResult tags a PublishResult with the destination that produced it
type DestinationResult struct {
	Destination Destination `json:"destination"`
	PublishResult
}

// Publisher delivers content to one destination. Implementations must not
// touch ContentProject or Job records.
type Publisher interface {
	Destination() Destination
	Publish(ctx context.Context, content PublishContent, req PublishRequest) (*PublishResult, error)
}

// DestinationError reports which destination stopped a publish attempt
type DestinationError struct {
	Destination Destination
	Err         error
}

func (e *DestinationError) Error() string {
	return fmt.Sprintf("destination %s: %v", e.Destination, e.Err)
}

func (e *DestinationError) Unwrap() error { return e.Err }

// FromProject converts a ContentProject to PublishContent
func FromProject(project *models.ContentProject) PublishContent {
	return PublishContent{
		ProjectID: project.ID,
		TenantID:  project.TenantID,
		Type:      project.Type,
		Title:     project.Title,
		BrandID:   project.BrandID,
		Variants:  []string(project.Variants),
	}
}
