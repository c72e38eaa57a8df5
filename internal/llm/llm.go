// Package llm talks to an OpenAI-compatible chat completion provider.
package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/jarvis-chat/internal/config"
	"github.com/comigor/jarvis-chat/internal/domain"
)

// ErrMissingAPIKey is returned when no provider credential is configured.
var ErrMissingAPIKey = errors.New("llm api key is not configured")

// Stream yields completion chunks until io.EOF.
type Stream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// Client is the subset of the provider API used by the relay; it is easy to mock in tests.
type Client interface {
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (Stream, error)
}

type openAIClient struct {
	client *openai.Client
	apiKey string
}

// NewClient creates a new OpenAI client. A missing API key is reported on
// the first call, not here, so the server can still serve history.
func NewClient(cfg config.LLMConfig) Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &openAIClient{client: openai.NewClientWithConfig(oc), apiKey: cfg.APIKey}
}

func (c *openAIClient) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (Stream, error) {
	if c.apiKey == "" {
		return nil, domain.Upstream("missing_api_key", ErrMissingAPIKey)
	}
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, Classify(err)
	}
	return stream, nil
}

// BuildRequest assembles a streaming request: the system prompt first, then
// the conversation in order.
func BuildRequest(cfg config.LLMConfig, systemPrompt string, history []domain.NewMessage) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    msgs,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Stream:      true,
	}
}

// Classify maps a provider or transport failure to an upstream error code.
// Errors that are already classified pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.Upstream("timeout", err)
	case errors.Is(err, context.Canceled):
		return domain.Upstream("canceled", err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == 401 || status == 403:
		return domain.Upstream("provider_auth", err)
	case status == 429:
		return domain.Upstream("rate_limited", err)
	case status >= 500:
		return domain.Upstream("provider_unavailable", err)
	case status >= 400:
		return domain.Upstream("invalid_request", err)
	default:
		return domain.Upstream("provider_error", err)
	}
}
