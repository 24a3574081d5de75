// Package embedding implements C2: converting text into vectors, with a
// fallback chain across remote and local providers. Unlike the original
// implementation's per-item embedding loop, every provider here embeds a
// batch atomically — either every input gets a vector, in order, or the
// whole batch fails and the chain falls through to the next provider.
package embedding

import "context"

// Provider is one tier of the embedding fallback chain.
type Provider interface {
	// ID identifies the provider for collection metadata and logging
	// (e.g. "gemini", "openrouter", "ollama", "local").
	ID() string

	// Dimension is the fixed vector width this provider produces.
	Dimension() int

	// Embed returns one vector per element of texts, in the same order.
	// Implementations must not return a partial result: a failure partway
	// through a batch is reported as an error, not a short slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrEmpty is returned by Embed when texts is empty; callers should not
// invoke providers with nothing to embed.
type ErrEmpty struct{}

func (ErrEmpty) Error() string { return "embedding: no texts supplied" }
