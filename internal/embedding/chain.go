package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Result is the outcome of a chain-wide Embed call: the vectors, and the
// identity of the provider that actually produced them (collections record
// this for provider-mismatch detection on query, per the data model).
type Result struct {
	Vectors    [][]float32
	ProviderID string
	Dimension  int
}

// Chain tries providers in order, falling through to the next on any
// failure from the current one. A batch is never split across providers:
// each attempt is atomic, so a caller either gets every vector from a
// single provider or moves on entirely.
type Chain struct {
	providers []Provider
	log       *slog.Logger
}

func NewChain(log *slog.Logger, providers ...Provider) *Chain {
	if log == nil {
		log = slog.Default()
	}
	return &Chain{providers: providers, log: log}
}

// Embed runs the fallback chain over texts, returning the first provider's
// successful result. If every provider fails, it returns a joined error
// describing each attempt.
func (c *Chain) Embed(ctx context.Context, texts []string) (Result, error) {
	if len(texts) == 0 {
		return Result{}, ErrEmpty{}
	}

	var errs []error
	for _, p := range c.providers {
		vectors, err := p.Embed(ctx, texts)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.ID(), err))
			c.log.Warn("embedding provider failed, falling back",
				"provider", p.ID(), "error", err)
			continue
		}
		if len(vectors) != len(texts) {
			errs = append(errs, fmt.Errorf("%s: partial batch result (%d of %d)", p.ID(), len(vectors), len(texts)))
			c.log.Warn("embedding provider returned partial batch, falling back",
				"provider", p.ID(), "got", len(vectors), "want", len(texts))
			continue
		}
		if len(c.providers) > 1 && p != c.providers[0] {
			c.log.Warn("degraded embedding: using fallback provider", "provider", p.ID())
		}
		return Result{Vectors: vectors, ProviderID: p.ID(), Dimension: p.Dimension()}, nil
	}

	return Result{}, fmt.Errorf("all embedding providers failed: %w", errors.Join(errs...))
}

// EmbedWith runs a single named provider directly, with no fallback to the
// rest of the chain. Used to re-embed a query against the specific
// provider a vector collection was written under (§4.2), when that
// provider differs from whichever one is first in the chain right now.
func (c *Chain) EmbedWith(ctx context.Context, providerID string, texts []string) (Result, error) {
	if len(texts) == 0 {
		return Result{}, ErrEmpty{}
	}
	for _, p := range c.providers {
		if p.ID() != providerID {
			continue
		}
		vectors, err := p.Embed(ctx, texts)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", p.ID(), err)
		}
		if len(vectors) != len(texts) {
			return Result{}, fmt.Errorf("%s: partial batch result (%d of %d)", p.ID(), len(vectors), len(texts))
		}
		return Result{Vectors: vectors, ProviderID: p.ID(), Dimension: p.Dimension()}, nil
	}
	return Result{}, fmt.Errorf("embedding: provider %q not configured", providerID)
}
