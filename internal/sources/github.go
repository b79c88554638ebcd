// Package sources fetches portfolio documents from outside the local docs
// directory: a person's public GitHub repositories and git repositories
// holding their documents.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/portfolio-rag/internal/config"
	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
)

// DefaultMaxRepos bounds how many repositories GitHubSource indexes.
const DefaultMaxRepos = 50

// NewGitHubClient creates a GitHub client, authenticated when token is set.
// baseURL overrides the API endpoint for GitHub Enterprise.
func NewGitHubClient(ctx context.Context, token config.Secret, baseURL string) (*github.Client, error) {
	var hc *http.Client
	if token.IsSet() {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.Value()})
		hc = oauth2.NewClient(ctx, ts)
	}
	client := github.NewClient(hc)

	if baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// GitHubConfig configures GitHubSource.
type GitHubConfig struct {
	User string

	// IncludeForks indexes forked repositories too.
	IncludeForks bool

	// MaxRepos bounds the repositories indexed, most recently pushed first.
	MaxRepos int

	Retry RetryConfig
}

// GitHubSource turns a user's public repositories into one document each:
// name, description, language, topics and the README.
type GitHubSource struct {
	client *github.Client
	cfg    GitHubConfig
	logger *zap.Logger
}

// NewGitHubSource creates a source for cfg.User.
func NewGitHubSource(client *github.Client, cfg GitHubConfig, logger *zap.Logger) (*GitHubSource, error) {
	if client == nil {
		return nil, fmt.Errorf("github client is required")
	}
	if strings.TrimSpace(cfg.User) == "" {
		return nil, fmt.Errorf("github user is required")
	}
	if cfg.MaxRepos <= 0 {
		cfg.MaxRepos = DefaultMaxRepos
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitHubSource{client: client, cfg: cfg, logger: logger}, nil
}

// Name identifies the source in ingestion reports.
func (s *GitHubSource) Name() string {
	return "github.com/" + s.cfg.User
}

// Load lists the user's repositories and fetches their READMEs. A
// repository without a README is still indexed from its metadata. Skipped
// forks are reported by full name.
func (s *GitHubSource) Load(ctx context.Context) ([]schema.Document, []string, error) {
	repos, err := s.listRepos(ctx)
	if err != nil {
		return nil, nil, err
	}

	var (
		docs    []schema.Document
		skipped []string
	)
	for _, repo := range repos {
		if repo.GetFork() && !s.cfg.IncludeForks {
			skipped = append(skipped, repo.GetFullName())
			continue
		}
		if len(docs) == s.cfg.MaxRepos {
			skipped = append(skipped, repo.GetFullName())
			continue
		}

		readme, err := s.readme(ctx, repo)
		if err != nil {
			return nil, nil, fmt.Errorf("fetching README for %s: %w", repo.GetFullName(), err)
		}
		docs = append(docs, schema.Document{
			PageContent: repoDocument(repo, readme),
			Metadata:    map[string]any{vectorstore.MetadataSource: "github.com/" + repo.GetFullName()},
		})
	}

	s.logger.Info("loaded GitHub repositories",
		zap.String("user", s.cfg.User),
		zap.Int("documents", len(docs)),
		zap.Int("skipped", len(skipped)))
	return docs, skipped, nil
}

func (s *GitHubSource) listRepos(ctx context.Context) ([]*github.Repository, error) {
	opts := &github.RepositoryListByUserOptions{
		Type:        "owner",
		Sort:        "pushed",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var all []*github.Repository
	for {
		var page []*github.Repository
		resp, err := withRetry(ctx, s.cfg.Retry, s.logger, func() (*github.Response, error) {
			var (
				resp *github.Response
				err  error
			)
			page, resp, err = s.client.Repositories.ListByUser(ctx, s.cfg.User, opts)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("listing repositories for %s: %w", s.cfg.User, err)
		}
		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 || len(all) >= s.cfg.MaxRepos*2 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

func (s *GitHubSource) readme(ctx context.Context, repo *github.Repository) (string, error) {
	var content *github.RepositoryContent
	resp, err := withRetry(ctx, s.cfg.Retry, s.logger, func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		content, resp, err = s.client.Repositories.GetReadme(ctx, repo.GetOwner().GetLogin(), repo.GetName(), nil)
		return resp, err
	})
	if statusCode(resp) == http.StatusNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return content.GetContent()
}

// repoDocument renders a repository as markdown for embedding.
func repoDocument(repo *github.Repository, readme string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", repo.GetName())
	if d := repo.GetDescription(); d != "" {
		fmt.Fprintf(&b, "%s\n\n", d)
	}
	fmt.Fprintf(&b, "Repository: %s\n", repo.GetHTMLURL())
	if l := repo.GetLanguage(); l != "" {
		fmt.Fprintf(&b, "Language: %s\n", l)
	}
	if len(repo.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(repo.Topics, ", "))
	}
	if h := repo.GetHomepage(); h != "" {
		fmt.Fprintf(&b, "Homepage: %s\n", h)
	}
	fmt.Fprintf(&b, "Stars: %d\n", repo.GetStargazersCount())
	if readme = strings.TrimSpace(readme); readme != "" {
		fmt.Fprintf(&b, "\n%s\n", readme)
	}
	return b.String()
}
