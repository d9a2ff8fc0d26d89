package website

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ifuryst/pressline/internal/service/publisher"
	"github.com/ifuryst/pressline/pkg/git"
	"github.com/ifuryst/pressline/pkg/util"
)

// GitPublisher publishes a page by committing a markdown file to a static
// site repository. The site's own build turns the push into a live page.
type GitPublisher struct {
	logger     *zap.Logger
	repo       *git.Repository
	contentDir string
	baseURL    string
}

type pageFrontMatter struct {
	Layout    string    `yaml:"layout"`
	Title     string    `yaml:"title"`
	Date      time.Time `yaml:"date"`
	ProjectID string    `yaml:"project_id"`
	Type      string    `yaml:"type"`
	Brand     string    `yaml:"brand,omitempty"`
	Assets    []string  `yaml:"assets,omitempty"`
}

func NewGitPublisher(logger *zap.Logger, repo *git.Repository, contentDir, baseURL string) publisher.Publisher {
	return &GitPublisher{
		logger:     logger,
		repo:       repo,
		contentDir: strings.Trim(contentDir, "/"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (p *GitPublisher) Destination() publisher.Destination {
	return publisher.DestinationWebsite
}

func (p *GitPublisher) Publish(ctx context.Context, content publisher.PublishContent, req publisher.PublishRequest) (*publisher.PublishResult, error) {
	now := time.Now().UTC()

	pagePath := req.Options["path"]
	if pagePath == "" {
		pagePath = util.GeneratePostPath(content.Title, content.ProjectID, now)
	}
	pagePath = strings.Trim(pagePath, "/")

	page, err := renderPage(content, now)
	if err != nil {
		return nil, err
	}

	file := path.Join(p.contentDir, pagePath+".md")
	message := fmt.Sprintf("Publish %s %s (%s)", strings.ToLower(string(content.Type)), content.ProjectID, content.TenantID)
	commit, err := p.repo.Publish(ctx, map[string][]byte{file: page}, message)
	if err != nil {
		return nil, fmt.Errorf("commit page: %w", err)
	}

	url := fmt.Sprintf("%s/%s", p.baseURL, pagePath)
	p.logger.Debug("Website page committed",
		zap.String("file", file),
		zap.String("commit", commit),
		zap.String("url", url))

	return &publisher.PublishResult{
		Success:   true,
		Message:   "page committed",
		Timestamp: now,
		PublishID: commit,
		URL:       url,
		Metadata:  map[string]string{"file": file, "branch": p.repo.Branch()},
	}, nil
}

func renderPage(content publisher.PublishContent, date time.Time) ([]byte, error) {
	fm, err := yaml.Marshal(pageFrontMatter{
		Layout:    "page",
		Title:     content.Title,
		Date:      date,
		ProjectID: content.ProjectID,
		Type:      strings.ToLower(string(content.Type)),
		Brand:     content.BrandID,
		Assets:    content.Variants,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	fmt.Fprintf(&buf, "# %s\n", content.Title)
	for _, asset := range content.Variants {
		fmt.Fprintf(&buf, "\n![%s](%s)\n", content.Title, asset)
	}
	return buf.Bytes(), nil
}
