package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiDimension is the output width of Gemini's text-embedding-004 model.
const GeminiDimension = 768

// GeminiProvider wraps the Gemini embedding API behind the Provider
// interface. The underlying client is built lazily and rebuilt under a
// double-checked lock if it is ever torn down, the same pattern the
// teacher's dynamic embedding client used for its remote backends.
type GeminiProvider struct {
	apiKey string
	model  string

	mu     sync.RWMutex
	client *genai.Client
}

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if model == "" {
		model = "models/text-embedding-004"
	}
	return &GeminiProvider{apiKey: apiKey, model: model}
}

func (p *GeminiProvider) ID() string     { return "gemini" }
func (p *GeminiProvider) Dimension() int { return GeminiDimension }

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
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
		return nil, fmt.Errorf("gemini: no API key configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	p.client = client
	return client, nil
}

func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmpty{}
	}

	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	em := client.EmbeddingModel(p.model)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		p.invalidateClient()
		return nil, fmt.Errorf("gemini: batch embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// invalidateClient drops the cached client so the next call rebuilds it;
// used after errors that might indicate a broken connection.
func (p *GeminiProvider) invalidateClient() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = nil
}
