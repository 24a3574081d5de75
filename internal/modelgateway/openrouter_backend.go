package modelgateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// OpenRouterBackend calls an OpenAI-compatible chat completion endpoint,
// the second tier of the gateway's fallback chain.
type OpenRouterBackend struct {
	apiKey  string
	baseURL string
	model   string

	mu     sync.RWMutex
	client *openai.Client
}

func NewOpenRouterBackend(apiKey, baseURL, model string) *OpenRouterBackend {
	if model == "" {
		model = "gpt-oss-20b:free"
	}
	return &OpenRouterBackend{apiKey: apiKey, baseURL: baseURL, model: model}
}

func (b *OpenRouterBackend) ID() string { return "openrouter" }

func (b *OpenRouterBackend) getClient() (*openai.Client, error) {
	b.mu.RLock()
	c := b.client
	b.mu.RUnlock()
	if c != nil {
		return c, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}
	if b.apiKey == "" {
		return nil, fmt.Errorf("openrouter: no API key configured")
	}

	cfg := openai.DefaultConfig(b.apiKey)
	if b.baseURL != "" {
		cfg.BaseURL = b.baseURL
	}
	b.client = openai.NewClientWithConfig(cfg)
	return b.client, nil
}

func (b *OpenRouterBackend) Generate(ctx context.Context, system, prompt string) (string, error) {
	client, err := b.getClient()
	if err != nil {
		return "", err
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", classifyOpenAIErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openrouter: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *OpenRouterBackend) Ping(ctx context.Context) error {
	client, err := b.getClient()
	if err != nil {
		return err
	}
	_, err = client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     b.model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	return err
}

func classifyOpenAIErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if StatusRetriable(apiErr.HTTPStatusCode) {
			return Retriable(err)
		}
		if apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden {
			return err
		}
		return err
	}
	// Network-level errors with no structured status are treated as
	// transient.
	return Retriable(err)
}
