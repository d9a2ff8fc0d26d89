package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Repository is a local working copy of a remote repository. All operations
// are serialized; a working copy cannot be shared between concurrent commits.
type Repository struct {
	mu           sync.Mutex
	logger       *zap.Logger
	repoURL      string
	localPath    string
	branch       string
	workspaceDir string
	gitUsername  string
	gitEmail     string
}

// RepositoryConfig contains configuration for git repository
type RepositoryConfig struct {
	URL          string `yaml:"url"`
	Branch       string `yaml:"branch"`
	WorkspaceDir string `yaml:"workspace_dir"`
	GitUsername  string `yaml:"git_username"`
	GitEmail     string `yaml:"git_email"`
}

func NewRepository(config RepositoryConfig, logger *zap.Logger) *Repository {
	branch := config.Branch
	if branch == "" {
		branch = "main"
	}

	return &Repository{
		logger:       logger,
		repoURL:      config.URL,
		localPath:    filepath.Join(config.WorkspaceDir, extractRepoName(config.URL)),
		branch:       branch,
		workspaceDir: config.WorkspaceDir,
		gitUsername:  config.GitUsername,
		gitEmail:     config.GitEmail,
	}
}

// LocalPath returns the working copy directory
func (r *Repository) LocalPath() string {
	return r.localPath
}

func (r *Repository) Branch() string {
	return r.branch
}

// Publish brings the working copy up to date, writes files (relative path to
// content) and pushes a single commit. It returns the new HEAD, or the current
// one when the files were already identical.
func (r *Repository) Publish(ctx context.Context, files map[string][]byte, message string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.sync(ctx); err != nil {
		return "", err
	}

	paths := make([]string, 0, len(files))
	for name, content := range files {
		rel, err := r.writeFile(name, content)
		if err != nil {
			return "", err
		}
		paths = append(paths, rel)
	}

	if _, err := r.run(ctx, append([]string{"add", "--"}, paths...)...); err != nil {
		return "", fmt.Errorf("failed to add files: %w", err)
	}

	committed, err := r.commit(ctx, message)
	if err != nil {
		return "", err
	}
	if committed {
		if _, err := r.run(ctx, "push", "origin", r.branch); err != nil {
			return "", fmt.Errorf("failed to push: %w", err)
		}
		r.logger.Info("Pushed to remote", zap.String("branch", r.branch), zap.Strings("files", paths))
	}

	head, err := r.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get commit hash: %w", err)
	}
	return strings.TrimSpace(head), nil
}

// sync clones the repository or fast-forwards an existing working copy. A
// working copy that cannot be pulled is removed and cloned again.
func (r *Repository) sync(ctx context.Context) error {
	if err := os.MkdirAll(r.workspaceDir, 0755); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	if r.exists(ctx) {
		if _, err := r.run(ctx, "checkout", r.branch); err == nil {
			if _, err = r.run(ctx, "pull", "--ff-only", "origin", r.branch); err == nil {
				return nil
			}
		}
		r.logger.Warn("Working copy is unusable, re-cloning", zap.String("path", r.localPath))
	}

	if err := os.RemoveAll(r.localPath); err != nil {
		return fmt.Errorf("failed to remove directory: %w", err)
	}

	cmd := r.command(ctx, r.workspaceDir, "clone", "-b", r.branch, r.repoURL, filepath.Base(r.localPath))
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to clone repository: %s, output: %s", err, string(output))
	}

	r.logger.Info("Repository cloned",
		zap.String("branch", r.branch),
		zap.String("path", r.localPath))
	return nil
}

func (r *Repository) exists(ctx context.Context) bool {
	if _, err := os.Stat(filepath.Join(r.localPath, ".git")); err != nil {
		return false
	}
	_, err := r.run(ctx, "status", "--porcelain")
	return err == nil
}

// writeFile writes below the working copy root and returns the cleaned
// relative path; ".." segments cannot climb out of it.
func (r *Repository) writeFile(relativePath string, content []byte) (string, error) {
	rel := strings.TrimPrefix(filepath.Clean("/"+relativePath), "/")
	if rel == "" {
		return "", fmt.Errorf("invalid file path %q", relativePath)
	}

	fullPath := filepath.Join(r.localPath, rel)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return rel, nil
}

// commit reports false when there was nothing to commit
func (r *Repository) commit(ctx context.Context, message string) (bool, error) {
	status, err := r.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to get git status: %w", err)
	}
	if strings.TrimSpace(status) == "" {
		r.logger.Info("No changes to commit")
		return false, nil
	}

	args := []string{}
	if r.gitUsername != "" && r.gitEmail != "" {
		args = append(args, "-c", "user.name="+r.gitUsername, "-c", "user.email="+r.gitEmail)
	}
	args = append(args, "commit", "-m", message)
	if _, err := r.run(ctx, args...); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

func (r *Repository) run(ctx context.Context, args ...string) (string, error) {
	output, err := r.command(ctx, r.localPath, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %s, output: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

func (r *Repository) command(ctx context.Context, dir string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	if isSSHURL(r.repoURL) {
		cmd.Env = append(os.Environ(), "GIT_SSH_COMMAND=ssh -o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no")
	}
	return cmd
}

func extractRepoName(url string) string {
	url = strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	if i := strings.LastIndexAny(url, "/:"); i >= 0 {
		url = url[i+1:]
	}
	if url == "" {
		return "repo"
	}
	return url
}

func isSSHURL(url string) bool {
	return strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://")
}
