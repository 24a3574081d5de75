package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OllamaDimension is the output width of the nomic-embed-text model.
const OllamaDimension = 768

// OllamaProvider calls a local Ollama daemon's embeddings endpoint, the
// on-host tier of the fallback chain used when no remote provider is
// reachable but a local model server is still available.
type OllamaProvider struct {
	endpoint string
	model    string
	client   *http.Client
}

func NewOllamaProvider(endpoint, model string) *OllamaProvider {
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaProvider{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *OllamaProvider) ID() string     { return "ollama" }
func (p *OllamaProvider) Dimension() int { return OllamaDimension }

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed calls Ollama once per text, since its embeddings endpoint does not
// support batched input; a failure on any call fails the whole batch
// atomically rather than returning a partial slice.
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmpty{}
	}
	if p.endpoint == "" {
		return nil, fmt.Errorf("ollama: no endpoint configured")
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := p.embedOne(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("ollama: item %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (p *OllamaProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var decoded ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	return decoded.Embedding, nil
}
