package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/portfolio-rag/internal/ingest"
	"github.com/fyrsmithlabs/portfolio-rag/internal/secrets"
	"github.com/fyrsmithlabs/portfolio-rag/internal/sources"
)

var (
	ingestDocs     string
	ingestReset    bool
	ingestGitleaks bool
	ingestNoScrub  bool
	ingestJSON     bool
	ingestAllow    string
	ingestWatch    bool

	ingestGitHubUser   string
	ingestIncludeForks bool
	ingestMaxRepos     int
	ingestGitURL       string
	ingestGitRef       string
	ingestGitSubdir    string
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestDocs, "docs", "d", "", "documents directory (default from config: docs)")
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "clear the collection before indexing")
	ingestCmd.Flags().BoolVar(&ingestGitleaks, "gitleaks", false, "also scan chunks with the gitleaks rule set")
	ingestCmd.Flags().BoolVar(&ingestNoScrub, "no-scrub", false, "index documents without redacting secrets")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the report as JSON")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep running and rebuild the collection when documents change")
	ingestCmd.Flags().StringVar(&ingestAllow, "allowlist", "", "extra TOML allowlist merged with <docs>/"+secrets.AllowlistFile)

	ingestCmd.Flags().StringVar(&ingestGitHubUser, "github-user", "", "also index this GitHub user's public repositories")
	ingestCmd.Flags().BoolVar(&ingestIncludeForks, "include-forks", false, "index forked repositories too")
	ingestCmd.Flags().IntVar(&ingestMaxRepos, "max-repos", sources.DefaultMaxRepos, "maximum repositories to index")
	ingestCmd.Flags().StringVar(&ingestGitURL, "git", "", "also index documents from this git repository")
	ingestCmd.Flags().StringVar(&ingestGitRef, "git-ref", "", "branch to clone (default: remote HEAD)")
	ingestCmd.Flags().StringVar(&ingestGitSubdir, "git-subdir", "", "directory inside the git repository holding the documents")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the vector store from portfolio documents",
	Long: `Load .txt, .md and .pdf files from a directory, split them into
overlapping chunks, redact secrets and index the chunks into the
configured vector store.

Paths listed in a .ragignore file at the top of the directory are
skipped. Secrets are redacted unless an allowlist in
<docs>/.ragsecrets.toml or --allowlist exempts them. With --reset the collection is cleared first, but only after
every document has been read and split.

--github-user adds one document per public repository (metadata and
README) and --git adds the documents of a shallow clone. When only
remote sources are given and --docs is not set, the local directory is
skipped. GITHUB_TOKEN raises API rate limits and authenticates clones.

Examples:
  # Index ./docs into the default store
  portfolio-rag ingest

  # Rebuild the collection from another directory
  portfolio-rag ingest --docs ~/portfolio --reset

  # Index the local docs plus GitHub repositories
  portfolio-rag ingest --github-user jane --reset

  # Rebuild whenever a document is added, edited or removed
  portfolio-rag ingest --reset --watch`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ingestWatch && (ingestGitHubUser != "" || ingestGitURL != "") {
		return fmt.Errorf("--watch only supports a local documents directory")
	}

	d, err := bootstrap(ctx, false)
	if err != nil {
		return err
	}
	defer d.Close(ctx)
	logger := d.logger.Underlying()

	store, err := d.openStore(ctx, false)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}

	docsDir := ingestDocs
	if docsDir == "" {
		docsDir = d.cfg.Ingest.DocsDir
	}

	var scrubber *secrets.Scrubber
	if d.cfg.Ingest.ScrubSecrets && !ingestNoScrub {
		allowlist, err := secrets.LoadAllowlists(docsDir, ingestAllow)
		if err != nil {
			return fmt.Errorf("loading secret allowlist: %w", err)
		}
		opts, err := allowlist.Options()
		if err != nil {
			return err
		}
		if ingestGitleaks {
			detector, err := secrets.NewGitleaksDetector()
			if err != nil {
				return fmt.Errorf("loading gitleaks rules: %w", err)
			}
			opts = append(opts, secrets.WithGitleaks(detector))
		}
		scrubber, err = secrets.New(nil, opts...)
		if err != nil {
			return fmt.Errorf("creating secret scrubber: %w", err)
		}
	}

	srcs, err := ingestSources(cmd, d, docsDir)
	if err != nil {
		return err
	}

	ingester := ingest.New(store, scrubber, d.cfg.Ingest, logger.Named("ingest"))
	report, err := ingester.RunSources(ctx, ingestReset, srcs...)
	if err != nil {
		if report != nil {
			printReport(cmd, report)
		}
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if err := writeReport(cmd, report); err != nil {
		return err
	}
	if !ingestWatch {
		return nil
	}

	// a failed rebuild is reported and the next change retried
	return ingester.Watch(ctx, docsDir, ingest.DefaultDebounce, func(r *ingest.Report, err error) {
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "ingestion failed: %v\n", err)
			return
		}
		_ = writeReport(cmd, r)
	})
}

// ingestSources lists the document sources selected by flags.
func ingestSources(cmd *cobra.Command, d *deps, docsDir string) ([]ingest.Source, error) {
	ctx := cmd.Context()
	logger := d.logger.Underlying()
	remote := ingestGitHubUser != "" || ingestGitURL != ""

	var srcs []ingest.Source
	if !remote || cmd.Flags().Changed("docs") {
		srcs = append(srcs, ingest.DirSource{Dir: docsDir, Logger: logger.Named("load")})
	}
	if ingestGitHubUser != "" {
		client, err := sources.NewGitHubClient(ctx, d.cfg.Ingest.GitHubToken, "")
		if err != nil {
			return nil, err
		}
		gh, err := sources.NewGitHubSource(client, sources.GitHubConfig{
			User:         ingestGitHubUser,
			IncludeForks: ingestIncludeForks,
			MaxRepos:     ingestMaxRepos,
		}, logger.Named("github"))
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, gh)
	}
	if ingestGitURL != "" {
		srcs = append(srcs, &sources.GitSource{
			URL:    ingestGitURL,
			Ref:    ingestGitRef,
			Subdir: ingestGitSubdir,
			Depth:  1,
			Token:  d.cfg.Ingest.GitHubToken,
			Logger: logger.Named("git"),
		})
	}
	return srcs, nil
}

func writeReport(cmd *cobra.Command, r *ingest.Report) error {
	if ingestJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	printReport(cmd, r)
	return nil
}

func printReport(cmd *cobra.Command, r *ingest.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Directory:  %s\n", r.Dir)
	fmt.Fprintf(out, "Documents:  %d\n", r.Documents)
	fmt.Fprintf(out, "Chunks:     %d\n", r.Chunks)
	fmt.Fprintf(out, "Indexed:    %d\n", r.Indexed)
	fmt.Fprintf(out, "Reset:      %t\n", r.Reset)
	fmt.Fprintf(out, "Duration:   %s\n", r.Duration)
	for _, s := range r.Skipped {
		fmt.Fprintf(out, "Skipped:    %s\n", s)
	}
	if r.Redactions > 0 {
		fmt.Fprintf(out, "Redactions: %d\n", r.Redactions)
		rules := make([]string, 0, len(r.ByRule))
		for id := range r.ByRule {
			rules = append(rules, id)
		}
		sort.Strings(rules)
		for _, id := range rules {
			fmt.Fprintf(out, "  %-28s %d\n", id, r.ByRule[id])
		}
	}
}
