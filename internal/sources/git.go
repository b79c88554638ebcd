package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/config"
	"github.com/fyrsmithlabs/portfolio-rag/internal/ingest"
)

// GitSource clones a repository into a temporary directory and loads its
// documents the same way as a local docs directory.
type GitSource struct {
	// URL is anything go-git can clone: https, ssh or a local path.
	URL string

	// Ref is a branch name. Empty selects the remote HEAD.
	Ref string

	// Subdir limits loading to a directory inside the repository.
	Subdir string

	// Depth limits history. Zero clones everything.
	Depth int

	// Token authenticates https clones.
	Token config.Secret

	Logger *zap.Logger
}

// Name identifies the source in ingestion reports.
func (s *GitSource) Name() string {
	if s.Subdir != "" {
		return s.URL + "//" + s.Subdir
	}
	return s.URL
}

// Load clones the repository and returns its documents. The clone is
// removed before returning.
func (s *GitSource) Load(ctx context.Context) ([]schema.Document, []string, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.URL == "" {
		return nil, nil, fmt.Errorf("git url is required")
	}
	sub := filepath.Clean(filepath.FromSlash(s.Subdir))
	if filepath.IsAbs(sub) || sub == ".." || strings.HasPrefix(sub, ".."+string(filepath.Separator)) {
		return nil, nil, fmt.Errorf("subdirectory %q must stay inside the repository", s.Subdir)
	}

	dir, err := os.MkdirTemp("", "portfolio-rag-git-*")
	if err != nil {
		return nil, nil, fmt.Errorf("creating clone directory: %w", err)
	}
	defer os.RemoveAll(dir)

	opts := &git.CloneOptions{
		URL:          s.URL,
		Depth:        s.Depth,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if s.Ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(s.Ref)
	}
	if s.Token.IsSet() {
		opts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: s.Token.Value()}
	}

	logger.Info("cloning documents repository", zap.String("url", s.URL), zap.String("ref", s.Ref))
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		return nil, nil, fmt.Errorf("cloning %s: %w", s.URL, err)
	}

	return ingest.Load(ctx, filepath.Join(dir, sub), logger)
}
