package embedding

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// OpenRouterDimension is the output width of OpenAI/OpenRouter's
// text-embedding-3-small model.
const OpenRouterDimension = 1536

// OpenRouterProvider uses go-openai pointed at the OpenRouter-compatible
// endpoint, the second tier of the embedding fallback chain.
type OpenRouterProvider struct {
	apiKey  string
	baseURL string
	model   string

	mu     sync.RWMutex
	client *openai.Client
}

func NewOpenRouterProvider(apiKey, baseURL, model string) *OpenRouterProvider {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenRouterProvider{apiKey: apiKey, baseURL: baseURL, model: model}
}

func (p *OpenRouterProvider) ID() string     { return "openrouter" }
func (p *OpenRouterProvider) Dimension() int { return OpenRouterDimension }

func (p *OpenRouterProvider) getClient() (*openai.Client, error) {
	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()
	if c != nil {
		return c, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	if p.apiKey == "" {
		return nil, fmt.Errorf("openrouter: no API key configured")
	}

	cfg := openai.DefaultConfig(p.apiKey)
	if p.baseURL != "" {
		cfg.BaseURL = p.baseURL
	}
	p.client = openai.NewClientWithConfig(cfg)
	return p.client, nil
}

func (p *OpenRouterProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmpty{}
	}

	client, err := p.getClient()
	if err != nil {
		return nil, err
	}

	resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter: create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openrouter: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openrouter: embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("openrouter: missing embedding for input %d", i)
		}
	}
	return out, nil
}
