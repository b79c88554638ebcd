// Package ingest builds the vector store from a directory of portfolio
// documents: load, split, scrub, index.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/config"
	"github.com/fyrsmithlabs/portfolio-rag/internal/secrets"
	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
)

// Report summarizes one ingestion run.
type Report struct {
	Dir        string         `json:"dir"`
	Documents  int            `json:"documents"`
	Skipped    []string       `json:"skipped,omitempty"`
	Chunks     int            `json:"chunks"`
	Redactions int            `json:"redactions"`
	ByRule     map[string]int `json:"by_rule,omitempty"`
	Reset      bool           `json:"reset"`
	Indexed    int            `json:"indexed"`
	Duration   time.Duration  `json:"duration"`
}

// Ingester indexes documents into a store.
type Ingester struct {
	store    vectorstore.Store
	scrubber *secrets.Scrubber
	cfg      config.IngestConfig
	logger   *zap.Logger
}

// New creates an Ingester. A nil scrubber disables redaction.
func New(store vectorstore.Store, scrubber *secrets.Scrubber, cfg config.IngestConfig, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	return &Ingester{store: store, scrubber: scrubber, cfg: cfg, logger: logger}
}

// Source yields documents to index. Each document's metadata must carry
// vectorstore.MetadataSource.
type Source interface {
	// Name identifies the source in reports.
	Name() string

	// Load returns the documents and the names of entries it skipped.
	Load(ctx context.Context) ([]schema.Document, []string, error)
}

// DirSource reads documents from a local directory with Load.
type DirSource struct {
	Dir    string
	Logger *zap.Logger
}

func (s DirSource) Name() string { return s.Dir }

func (s DirSource) Load(ctx context.Context) ([]schema.Document, []string, error) {
	return Load(ctx, s.Dir, s.Logger)
}

// Run ingests the documents under dir. See RunSources.
func (i *Ingester) Run(ctx context.Context, dir string, reset bool) (*Report, error) {
	if dir == "" {
		dir = i.cfg.DocsDir
	}
	return i.RunSources(ctx, reset, DirSource{Dir: dir, Logger: i.logger})
}

// RunSources loads every source, splits and scrubs the documents,
// optionally clears the collection and indexes the chunks. The collection
// is only reset once every source has been read and split.
func (i *Ingester) RunSources(ctx context.Context, reset bool, sources ...Source) (*Report, error) {
	start := time.Now()
	if len(sources) == 0 {
		return nil, fmt.Errorf("no document sources")
	}

	var (
		docs    []schema.Document
		skipped []string
		names   = make([]string, 0, len(sources))
	)
	for _, src := range sources {
		d, s, err := src.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", src.Name(), err)
		}
		docs = append(docs, d...)
		skipped = append(skipped, s...)
		names = append(names, src.Name())
	}
	dir := strings.Join(names, ", ")

	chunks, err := Split(docs, i.cfg.ChunkSize, i.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Dir:       dir,
		Documents: len(docs),
		Skipped:   skipped,
		Chunks:    len(chunks),
		ByRule:    map[string]int{},
	}
	if i.scrubber != nil {
		report.Redactions, report.ByRule = Scrub(i.scrubber, chunks)
		if report.Redactions > 0 {
			i.logger.Warn("redacted secrets from documents",
				zap.Int("redactions", report.Redactions),
				zap.Any("by_rule", report.ByRule))
		}
	}

	if reset {
		if err := i.store.Reset(ctx); err != nil {
			return nil, fmt.Errorf("resetting collection: %w", err)
		}
		report.Reset = true
		i.logger.Info("collection reset")
	}

	report.Indexed, err = Index(ctx, i.store, chunks, i.cfg.BatchSize, i.logger)
	report.Duration = time.Since(start)
	if err != nil {
		return report, err
	}

	i.logger.Info("ingestion complete",
		zap.Int("documents", report.Documents),
		zap.Int("chunks", report.Chunks),
		zap.Int("indexed", report.Indexed),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// Scrub redacts secrets from each chunk in place and returns the total
// redaction count and the count per rule.
func Scrub(scrubber *secrets.Scrubber, chunks []schema.Document) (int, map[string]int) {
	total := 0
	byRule := map[string]int{}
	for j := range chunks {
		source, _ := chunks[j].Metadata[vectorstore.MetadataSource].(string)
		res := scrubber.ScrubSource(source, chunks[j].PageContent)
		if res.Redactions == 0 {
			continue
		}
		chunks[j].PageContent = res.Text
		total += res.Redactions
		for id, n := range res.ByRule {
			byRule[id] += n
		}
	}
	return total, byRule
}

// Index stores chunks in batches of batch and returns how many were
// stored. Each chunk gets a random UUID. Whitespace-only chunks are
// dropped. On error the count covers the batches stored before it.
func Index(ctx context.Context, store vectorstore.Store, chunks []schema.Document, batch int, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batch <= 0 {
		batch = len(chunks)
	}

	docs := make([]vectorstore.Document, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.PageContent) == "" {
			continue
		}
		docs = append(docs, toStoreDocument(c))
	}

	indexed := 0
	for start := 0; start < len(docs); start += batch {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		end := min(start+batch, len(docs))
		if _, err := store.AddDocuments(ctx, docs[start:end]); err != nil {
			return indexed, fmt.Errorf("indexing chunks %d-%d: %w", start, end-1, err)
		}
		indexed += end - start
		logger.Debug("indexed batch", zap.Int("indexed", indexed), zap.Int("total", len(docs)))
	}
	return indexed, nil
}

func toStoreDocument(c schema.Document) vectorstore.Document {
	md := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		md[k] = fmt.Sprint(v)
	}
	return vectorstore.Document{
		ID:       uuid.NewString(),
		Content:  c.PageContent,
		Metadata: md,
	}
}
