// Package logging wraps zap with request correlation, secret redaction,
// level-aware sampling and an optional OpenTelemetry log bridge.
//
// Components below the HTTP layer take a plain *zap.Logger (see
// Logger.Underlying); the wrapper adds context-aware methods that pull the
// trace and request IDs out of a context.Context.
package logging

import (
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/portfolio-rag/internal/config"
)

// Config holds logging configuration.
type Config struct {
	Level     zapcore.Level
	Format    string // "json" or "console"
	Stdout    bool
	Stderr    bool // console output goes to stderr instead of stdout
	OTEL      bool
	Sampling  SamplingConfig
	Fields    map[string]string
	Redaction RedactionConfig
}

// SamplingConfig controls log volume reduction below Error.
type SamplingConfig struct {
	Enabled    bool
	Tick       time.Duration
	Initial    int
	Thereafter int
}

// RedactionConfig controls sensitive data redaction. Fields match keys
// by case-insensitive substring.
type RedactionConfig struct {
	Enabled  bool
	Fields   []string
	Patterns []string
}

// NewDefaultConfig returns config with production defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Stdout: true,
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 10,
		},
		Fields: map[string]string{"service": "portfolio-rag"},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"password", "secret", "token", "api_key",
				"authorization", "credential",
			},
			// Added to the document scrubber's rules, which already
			// cover provider keys and forge tokens.
			Patterns: []string{
				`(?i)bearer\s+[A-Za-z0-9._~+/-]+=*`,
			},
		},
	}
}

// ConfigFrom derives logging configuration from the application config.
func ConfigFrom(obs config.ObservabilityConfig) (*Config, error) {
	cfg := NewDefaultConfig()
	level, err := LevelFromString(obs.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", obs.LogLevel, err)
	}
	cfg.Level = level
	if obs.LogFormat != "" {
		cfg.Format = obs.LogFormat
	}
	if obs.ServiceName != "" {
		cfg.Fields["service"] = obs.ServiceName
	}
	cfg.OTEL = obs.EnableTelemetry
	return cfg, cfg.Validate()
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Stdout && !c.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout or otel)")
	}
	if c.Sampling.Enabled && c.Sampling.Tick <= 0 {
		return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
	}
	if c.Redaction.Enabled {
		for _, pattern := range c.Redaction.Patterns {
			if len(pattern) > 200 {
				return fmt.Errorf("redaction pattern too long (max 200 chars): %q", pattern)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("invalid redaction pattern %q: %w", pattern, err)
			}
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("constant field %q must have a non-empty key and value", k)
		}
	}
	return nil
}
