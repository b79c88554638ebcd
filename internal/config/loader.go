package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is stripped from environment variables before mapping them to config keys.
	EnvPrefix = "PORTFOLIO_RAG_"

	// DefaultVectorStorePath is where ingestion persists the collection.
	DefaultVectorStorePath = "db/chroma_db"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// nested sections whose fields are addressed as SECTION_SUB_FIELD in env vars.
var nestedSections = map[string][]string{
	"vectorstore": {"qdrant"},
}

// zeroableDefaults are seeded before any provider loads, so an explicit
// false or 0 from the file or environment survives applyDefaults.
var zeroableDefaults = map[string]any{
	"ingest.scrub_secrets": true,
	"llm.temperature":      defaultTemperature,
	"retrieval.threshold":  defaultThreshold,
}

// envShortcuts are single-word variables kept for existing deployments.
var envShortcuts = map[string]string{
	"port":       "server.port",
	"host":       "server.host",
	"collection": "vectorstore.collection",
}

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (PORTFOLIO_RAG_SERVER_PORT, GROQ_API_KEY, ...)
//  2. YAML config file, if configPath is non-empty
//  3. Hardcoded defaults
//
// A .env file in the working directory is read into the process
// environment before anything else; variables already set win.
//
// Environment variables map to keys by stripping the prefix and splitting
// on the first underscore:
//
//	PORTFOLIO_RAG_SERVER_PORT           -> server.port
//	PORTFOLIO_RAG_LLM_BASE_URL          -> llm.base_url
//	PORTFOLIO_RAG_VECTORSTORE_QDRANT_HOST -> vectorstore.qdrant.host
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	// defaults whose zero value is a valid setting
	for key, v := range zeroableDefaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("failed to set defaults: %w", err)
		}
	}

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyWellKnownEnv(&cfg)
	applyDefaults(&cfg)
	cfg.VectorStore.Path = ResolveVectorStorePath(cfg.VectorStore.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps PORTFOLIO_RAG_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if key, ok := envShortcuts[lower]; ok {
		return key
	}
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	section, field := parts[0], parts[1]
	for _, sub := range nestedSections[section] {
		if strings.HasPrefix(field, sub+"_") {
			return section + "." + sub + "." + strings.TrimPrefix(field, sub+"_")
		}
	}
	return section + "." + field
}

// applyWellKnownEnv fills values from conventional, unprefixed variables
// that other tooling already sets.
func applyWellKnownEnv(cfg *Config) {
	if !cfg.LLM.APIKey.IsSet() {
		provider := cfg.LLM.Provider
		if provider == "" {
			provider = "groq"
		}
		if v := os.Getenv(strings.ToUpper(provider) + "_API_KEY"); v != "" {
			cfg.LLM.APIKey = Secret(v)
		}
	}
	if !cfg.VectorStore.Qdrant.APIKey.IsSet() {
		if v := os.Getenv("QDRANT_API_KEY"); v != "" {
			cfg.VectorStore.Qdrant.APIKey = Secret(v)
		}
	}
	if !cfg.Ingest.GitHubToken.IsSet() {
		if v := os.Getenv("GITHUB_TOKEN"); v != "" {
			cfg.Ingest.GitHubToken = Secret(v)
		}
	}
	if v := os.Getenv("OTEL_ENABLE"); v == "true" || v == "1" {
		cfg.Observability.EnableTelemetry = true
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" && cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = v
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" && cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = v
	}
}

// readConfigFile opens the file once and validates it through the same
// descriptor it reads from.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// ResolveVectorStorePath locates an existing store directory for relative
// paths, trying the working directory, then the executable's directory and
// its parent. If none exists the working-directory candidate is returned so
// ingestion can create it.
func ResolveVectorStorePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if filepath.IsAbs(path) {
		return path
	}

	var candidates []string
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, path))
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates, filepath.Join(dir, path), filepath.Join(dir, "..", path))
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return path
}
