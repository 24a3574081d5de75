package modelgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OllamaBackend calls a local Ollama daemon's generate endpoint, the
// always-available local tier used when FORCE_OFFLINE_MODE is set or every
// remote backend has failed.
type OllamaBackend struct {
	endpoint string
	model    string
	client   *http.Client
}

func NewOllamaBackend(endpoint, model string) *OllamaBackend {
	if model == "" {
		model = "mistral"
	}
	return &OllamaBackend{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (b *OllamaBackend) ID() string { return "ollama" }

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (b *OllamaBackend) Generate(ctx context.Context, system, prompt string) (string, error) {
	if b.endpoint == "" {
		return "", fmt.Errorf("ollama: no endpoint configured")
	}

	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:  b.model,
		Prompt: prompt,
		System: system,
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", Retriable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if StatusRetriable(resp.StatusCode) {
			return "", Retriable(fmt.Errorf("ollama: status %d", resp.StatusCode))
		}
		return "", fmt.Errorf("ollama: status %d", resp.StatusCode)
	}

	var decoded ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	return decoded.Response, nil
}

func (b *OllamaBackend) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: status %d", resp.StatusCode)
	}
	return nil
}
