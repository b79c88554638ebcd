package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

// DefaultGroqBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultGroqBaseURL = "https://api.groq.com/openai/v1"

// ErrEmptyCompletion is returned when the API answers without any choice.
var ErrEmptyCompletion = errors.New("completion has no choices")

// OpenAIConfig configures a client for any OpenAI-compatible chat API,
// Groq included.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // empty means api.openai.com
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIClient implements ChatClient with the Chat Completions API.
type OpenAIClient struct {
	client openaisdk.Client
	config OpenAIConfig
}

// NewOpenAIClient creates a client. The SDK's automatic retries are
// disabled so each Generate makes exactly one request.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing api key")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai: missing model")
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

	return &OpenAIClient{client: openaisdk.NewClient(opts...), config: cfg}, nil
}

// Complete sends one chat completion.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(system, user))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) params(system, user string) openaisdk.ChatCompletionNewParams {
	params := openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(c.config.Model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(system),
			openaisdk.UserMessage(user),
		},
		Temperature: param.NewOpt(c.config.Temperature),
	}
	if c.config.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(c.config.MaxTokens))
	}
	return params
}

var _ ChatClient = (*OpenAIClient)(nil)
