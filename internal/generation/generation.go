// Package generation asks a hosted LLM to answer a question from retrieved
// context.
//
// Generate never returns an error. A missing credential or a failed call is
// turned into an answer string so that the chat endpoint can still respond
// 200; callers that need to distinguish these cases compare against
// MissingCredentialAnswer or check for GenerationErrorPrefix.
package generation

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/portfolio-rag/internal/config"
)

var tracer = otel.Tracer("portfolio-rag.generation")

const (
	// NoInformationAnswer is what the assistant says when the documents do
	// not cover the question.
	NoInformationAnswer = "I don't have enough information based on the provided documents."

	// SystemPrompt restricts the model to the supplied context.
	SystemPrompt = "You are a RAG-based portfolio assistant. " +
		"Answer ONLY using the provided context. " +
		"If the answer is not in the context, say " +
		"'" + NoInformationAnswer + "'"

	// MissingCredentialAnswer is returned when no LLM API key is configured.
	MissingCredentialAnswer = "Error: LLM API key is not configured."

	// GenerationErrorPrefix starts the answer returned when the LLM call fails.
	GenerationErrorPrefix = "Error generating answer: "
)

// ChatClient sends a single, non-streaming chat completion.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// UserMessage formats the context and question for the model.
func UserMessage(contextText, query string) string {
	return "Context:\n" + contextText + "\n\nQuestion:\n" + query
}

// Generator produces answers through a ChatClient. It is safe for
// concurrent use.
type Generator struct {
	client  ChatClient
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithRateLimit caps outgoing calls per second. Zero or negative disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(g *Generator) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithModel records the model name in spans and logs.
func WithModel(model string) Option {
	return func(g *Generator) { g.model = model }
}

// New creates a Generator. A nil client yields a generator that always
// answers MissingCredentialAnswer.
func New(client ChatClient, logger *zap.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{client: client, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewFromConfig builds the client for cfg.Provider. Without an API key the
// generator is created unconfigured rather than failing.
func NewFromConfig(cfg config.LLMConfig, logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []Option{WithModel(cfg.Model), WithRateLimit(cfg.RateLimit)}

	if !cfg.APIKey.IsSet() {
		logger.Warn("LLM API key not set, answers will report the missing credential",
			zap.String("provider", cfg.Provider))
		return New(nil, logger, opts...), nil
	}

	var (
		client ChatClient
		err    error
	)
	switch cfg.Provider {
	case "groq", "openai", "":
		client, err = NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.APIKey.Value(),
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout.Duration(),
		})
	case "anthropic":
		client, err = NewAnthropicClient(AnthropicConfig{
			APIKey:      cfg.APIKey.Value(),
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout.Duration(),
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Provider, err)
	}

	logger.Info("LLM client configured",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model))
	return New(client, logger, opts...), nil
}

// Configured reports whether a credential was supplied.
func (g *Generator) Configured() bool {
	return g.client != nil
}

// Generate answers query from contextText with exactly one LLM call.
func (g *Generator) Generate(ctx context.Context, contextText, query string) string {
	if g.client == nil {
		g.logger.Warn("generation skipped: LLM API key is not configured")
		return MissingCredentialAnswer
	}

	ctx, span := tracer.Start(ctx, "generation.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", g.model),
		attribute.Int("context_length", len(contextText)),
	)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limit wait")
			return GenerationErrorPrefix + err.Error()
		}
	}

	answer, err := g.client.Complete(ctx, SystemPrompt, UserMessage(contextText, query))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Error("LLM call failed", zap.String("model", g.model), zap.Error(err))
		return GenerationErrorPrefix + err.Error()
	}

	span.SetStatus(codes.Ok, "success")
	return strings.TrimSpace(answer)
}

// IsFailure reports whether answer came from a missing credential or a failed call.
func IsFailure(answer string) bool {
	return answer == MissingCredentialAnswer || strings.HasPrefix(answer, GenerationErrorPrefix)
}
