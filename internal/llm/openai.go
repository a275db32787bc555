package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/hyperjump/ragbase/internal/models"
)

const (
	// DefaultChatModel is used when no chat model is configured.
	DefaultChatModel = "gpt-3.5-turbo"
	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 60 * time.Second
)

// ErrAPIKeyNotSet is returned when the OpenAI client is built without a key.
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

// OpenAIConfig configures OpenAIClient.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint (OpenAI-compatible servers, tests).
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient completes prompts with the OpenAI chat completions API.
type OpenAIClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClient creates a chat completion client. SDK retries are disabled:
// a failed call fails the enclosing request.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Complete sends prompt as a single user message and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai chat completion: %w", models.ErrRemoteCall, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: openai chat completion: no choices returned", models.ErrRemoteCall)
	}
	return completion.Choices[0].Message.Content, nil
}

// ModelName returns the chat model identifier.
func (c *OpenAIClient) ModelName() string {
	return c.model
}

var _ Completer = (*OpenAIClient)(nil)
