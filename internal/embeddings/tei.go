package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TEIConfig configures the Text Embeddings Inference client.
type TEIConfig struct {
	// BaseURL is the TEI server root, e.g. http://localhost:8080.
	BaseURL string

	// Model names the model the server hosts. Used for the dimension and metric labels.
	Model string

	// Timeout bounds each HTTP call. Default: 30s.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c TEIConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("%w: base URL must be http(s): %s", ErrInvalidConfig, c.BaseURL)
	}
	return nil
}

// TEIProvider calls a TEI server's /embed endpoint.
type TEIProvider struct {
	config    TEIConfig
	client    *http.Client
	dimension int
	metrics   *Metrics
}

// NewTEIProvider creates a TEI client. It does not contact the server.
func NewTEIProvider(cfg TEIConfig, logger *zap.Logger) (*TEIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TEIProvider{
		config:    cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		dimension: DimensionForModel(cfg.Model),
		metrics:   NewMetrics("tei", cfg.Model, logger),
	}, nil
}

type teiRequest struct {
	Inputs   any  `json:"inputs"`
	Truncate bool `json:"truncate"`
}

// EmbedDocuments embeds texts in one request.
func (p *TEIProvider) EmbedDocuments(ctx context.Context, texts []string) (_ [][]float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.observe(ctx, opDocuments, len(texts), time.Since(start), err)
	}()

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	vectors, err := p.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery embeds a single query.
func (p *TEIProvider) EmbedQuery(ctx context.Context, text string) (_ []float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.observe(ctx, opQuery, 1, time.Since(start), err)
	}()

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vectors, err := p.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
	}
	return vectors[0], nil
}

func (p *TEIProvider) embed(ctx context.Context, inputs any) ([][]float32, error) {
	body, err := json.Marshal(teiRequest{Inputs: inputs, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return vectors, nil
}

// Dimension returns the embedding dimension of the configured model.
func (p *TEIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op.
func (p *TEIProvider) Close() error {
	return nil
}

var _ Provider = (*TEIProvider)(nil)
