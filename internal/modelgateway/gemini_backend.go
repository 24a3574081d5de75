package modelgateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiBackend calls the Gemini generative API. Its client is built
// lazily under a double-checked lock; a failed construction is attempted
// again on the next call, but a built client is kept after failed calls.
type GeminiBackend struct {
	apiKey string
	model  string

	mu     sync.RWMutex
	client *genai.Client
}

func NewGeminiBackend(apiKey, model string) *GeminiBackend {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiBackend{apiKey: apiKey, model: model}
}

func (b *GeminiBackend) ID() string { return "gemini" }

func (b *GeminiBackend) getClient(ctx context.Context) (*genai.Client, error) {
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
		return nil, fmt.Errorf("gemini: no API key configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(b.apiKey))
	if err != nil {
		return nil, Retriable(fmt.Errorf("gemini: new client: %w", err))
	}
	b.client = client
	return client, nil
}

func (b *GeminiBackend) Generate(ctx context.Context, system, prompt string) (string, error) {
	client, err := b.getClient(ctx)
	if err != nil {
		return "", err
	}

	model := client.GenerativeModel(b.model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	temp := float32(0.2)
	topP := float32(0.8)
	topK := int32(40)
	model.Temperature = &temp
	model.TopP = &topP
	model.TopK = &topK
	model.MaxOutputTokens = intPtr(1024)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyGeminiErr(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("gemini: unexpected response part type")
	}
	return string(text), nil
}

func (b *GeminiBackend) Ping(ctx context.Context) error {
	client, err := b.getClient(ctx)
	if err != nil {
		return err
	}
	_, err = client.GenerativeModel(b.model).GenerateContent(ctx, genai.Text("ping"))
	return err
}

func intPtr(v int32) *int32 { return &v }

// classifyGeminiErr marks every GenerateContent failure as retriable, so
// the gateway's retry policy retries it. Auth and malformed-request
// failures are not told apart from network or 5xx failures and are
// retried the same way.
func classifyGeminiErr(err error) error {
	if err == nil {
		return nil
	}
	// The genai client does not expose a typed status in all versions;
	// treat every transport-level failure here as retriable, since a
	// successful call already returned above.
	return Retriable(err)
}
