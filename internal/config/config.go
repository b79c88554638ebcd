// Package config provides configuration loading for portfolio-rag.
//
// Configuration is layered: hardcoded defaults, then an optional YAML file,
// then environment variables (a .env file in the working directory is
// loaded into the environment first).
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete portfolio-rag configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	VectorStore   VectorStoreConfig   `koanf:"vectorstore"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	LLM           LLMConfig           `koanf:"llm"`
	Retrieval     RetrievalConfig     `koanf:"retrieval"`
	Ingest        IngestConfig        `koanf:"ingest"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// AllowOrigins feeds the CORS middleware. Defaults to "*".
	AllowOrigins []string `koanf:"allow_origins"`
}

// VectorStoreConfig selects and configures the vector store.
type VectorStoreConfig struct {
	Provider   string       `koanf:"provider"` // "chromem" or "qdrant"
	Path       string       `koanf:"path"`
	Collection string       `koanf:"collection"`
	Compress   bool         `koanf:"compress"`
	VectorSize int          `koanf:"vector_size"`
	Qdrant     QdrantConfig `koanf:"qdrant"`
}

// QdrantConfig holds connection settings for the qdrant provider.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	Provider string `koanf:"provider"` // "fastembed" or "tei"
	Model    string `koanf:"model"`
	URL      string `koanf:"url"`
	CacheDir string `koanf:"cache_dir"`
}

// LLMConfig holds answer generation settings.
type LLMConfig struct {
	Provider    string   `koanf:"provider"` // "groq", "openai" or "anthropic"
	Model       string   `koanf:"model"`
	BaseURL     string   `koanf:"base_url"`
	APIKey      Secret   `koanf:"api_key"`
	Temperature float64  `koanf:"temperature"`
	MaxTokens   int      `koanf:"max_tokens"`
	Timeout     Duration `koanf:"timeout"`
	// RateLimit is requests per second sent to the provider. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
}

// RetrievalConfig holds the fallback chain parameters.
type RetrievalConfig struct {
	Threshold  float32 `koanf:"threshold"`
	ThresholdK int     `koanf:"threshold_k"`
	FallbackK  int     `koanf:"fallback_k"`
	DirectK    int     `koanf:"direct_k"`
}

// IngestConfig holds document ingestion settings.
type IngestConfig struct {
	DocsDir      string `koanf:"docs_dir"`
	ChunkSize    int    `koanf:"chunk_size"`
	ChunkOverlap int    `koanf:"chunk_overlap"`
	BatchSize    int    `koanf:"batch_size"`
	ScrubSecrets bool   `koanf:"scrub_secrets"`

	// GitHubToken authenticates GitHub API calls and git clones. Public
	// sources work without it at a lower rate limit.
	GitHubToken Secret `koanf:"github_token"`
}

// ObservabilityConfig holds logging and OpenTelemetry configuration.
type ObservabilityConfig struct {
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	OTLPProtocol    string `koanf:"otlp_protocol"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unsupported vectorstore provider: %q", c.VectorStore.Provider)
	}
	if c.VectorStore.Collection == "" {
		return errors.New("vectorstore collection is required")
	}

	switch c.Embeddings.Provider {
	case "fastembed", "tei":
	default:
		return fmt.Errorf("unsupported embeddings provider: %q", c.Embeddings.Provider)
	}

	switch c.LLM.Provider {
	case "groq", "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider: %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature out of range: %v", c.LLM.Temperature)
	}

	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("retrieval threshold must be within [0,1], got %v", c.Retrieval.Threshold)
	}
	if c.Retrieval.ThresholdK <= 0 || c.Retrieval.FallbackK <= 0 || c.Retrieval.DirectK <= 0 {
		return errors.New("retrieval k values must be positive")
	}

	if c.Ingest.ChunkSize <= 0 {
		return errors.New("ingest chunk size must be positive")
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest chunk overlap must be within [0,%d)", c.Ingest.ChunkSize)
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

const (
	defaultTemperature         = 0.2
	defaultThreshold   float32 = 0.2
)

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{
		LLM:       LLMConfig{Temperature: defaultTemperature},
		Retrieval: RetrievalConfig{Threshold: defaultThreshold},
		Ingest:    IngestConfig{ScrubSecrets: true},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if len(cfg.Server.AllowOrigins) == 0 {
		cfg.Server.AllowOrigins = []string{"*"}
	}

	// chromem is the default: embedded, persisted next to the binary
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = DefaultVectorStorePath
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "portfolio"
	}
	if cfg.VectorStore.VectorSize == 0 {
		cfg.VectorStore.VectorSize = 384 // all-MiniLM-L6-v2
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "fastembed"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Embeddings.URL == "" {
		cfg.Embeddings.URL = "http://localhost:8080"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "groq"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModels[cfg.LLM.Provider]
	}
	if cfg.LLM.BaseURL == "" && cfg.LLM.Provider == "groq" {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(60 * time.Second)
	}

	if cfg.Retrieval.ThresholdK == 0 {
		cfg.Retrieval.ThresholdK = 5
	}
	if cfg.Retrieval.FallbackK == 0 {
		cfg.Retrieval.FallbackK = 3
	}
	if cfg.Retrieval.DirectK == 0 {
		cfg.Retrieval.DirectK = 3
	}

	if cfg.Ingest.DocsDir == "" {
		cfg.Ingest.DocsDir = "docs"
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 64
	}

	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "portfolio-rag"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = "grpc"
	}
}

var defaultModels = map[string]string{
	"groq":      "llama-3.1-8b-instant",
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
}
