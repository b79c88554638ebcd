package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures the Anthropic Messages client.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string // empty means api.anthropic.com
	Model       string
	Temperature float64
	MaxTokens   int // required by the API; 1024 when zero
	Timeout     time.Duration
}

// AnthropicClient implements ChatClient with the Messages API.
type AnthropicClient struct {
	client anthropicsdk.Client
	config AnthropicConfig
}

// NewAnthropicClient creates a client with SDK retries disabled.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: missing api key")
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic: missing model")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &AnthropicClient{client: anthropicsdk.NewClient(opts...), config: cfg}, nil
}

// Complete sends one message and concatenates the text blocks of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, system, user string) (string, error) {
	msg, err := c.client.Messages.New(ctx, c.params(system, user))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyCompletion
	}
	return sb.String(), nil
}

func (c *AnthropicClient) params(system, user string) anthropicsdk.MessageNewParams {
	return anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		System: []anthropicsdk.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(user)),
		},
		Temperature: anthropicsdk.Float(c.config.Temperature),
	}
}

var _ ChatClient = (*AnthropicClient)(nil)
