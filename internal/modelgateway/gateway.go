// Package modelgateway implements C7: a strictly sequential fallback chain
// of LLM backends with retry, per-backend deadlines, and a periodic health
// sampler whose process-local status map feeds the /health endpoint. The
// verification engine does not consult that map; Generate walks the chain
// regardless of the sampled status.
package modelgateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Backend is one LLM tier in the gateway's fallback chain.
type Backend interface {
	ID() string
	Generate(ctx context.Context, system, prompt string) (string, error)
	Ping(ctx context.Context) error
}

// Generation is the result of a successful call through the gateway.
type Generation struct {
	Text       string
	ModelUsed  string
	Mode       string // "online" or "offline"
	LatencyMS  int64
}

// ErrAllBackendsDown is returned when every backend in the chain fails.
var ErrAllBackendsDown = errors.New("modelgateway: all backends down")

// Gateway holds an ordered backend chain, a retry policy, and a health
// sampler. It never probes backends in parallel: paid API quota is not
// spent speculatively.
type Gateway struct {
	backends      []Backend
	retry         RetryPolicy
	perCallDeadline time.Duration
	forceOffline  bool
	health        *HealthTracker
	log           *slog.Logger
}

type Option func(*Gateway)

func WithPerCallDeadline(d time.Duration) Option {
	return func(g *Gateway) { g.perCallDeadline = d }
}

func WithForceOffline(forceOffline bool) Option {
	return func(g *Gateway) { g.forceOffline = forceOffline }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(g *Gateway) { g.retry = p }
}

func New(log *slog.Logger, health *HealthTracker, backends []Backend, opts ...Option) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	g := &Gateway{
		backends:        backends,
		retry:           DefaultRetryPolicy(),
		perCallDeadline: 30 * time.Second,
		health:          health,
		log:             log,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// isLocal reports whether a backend ID names the on-host tier that stays
// available under FORCE_OFFLINE_MODE.
func isLocal(id string) bool { return id == "ollama" || id == "local" }

// Backends returns the configured backend chain, in preference order, so
// the health sampler can ping the same set the gateway dispatches to.
func (g *Gateway) Backends() []Backend { return g.backends }

// Generate walks the backend chain in order. Each backend gets its own
// bounded sub-context and up to retry.MaxAttempts tries for transient
// failures; a non-retriable error (bad input, auth, malformed response)
// falls through to the next backend immediately.
func (g *Gateway) Generate(ctx context.Context, system, prompt string) (Generation, error) {
	start := time.Now()
	var errs []error

	for _, b := range g.backends {
		if g.forceOffline && !isLocal(b.ID()) {
			continue
		}

		text, err := g.callWithRetry(ctx, b, system, prompt)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.ID(), err))
			g.log.Warn("model backend failed, falling back", "backend", b.ID(), "error", err)
			if g.health != nil {
				g.health.recordFailure(b.ID())
			}
			continue
		}

		if g.health != nil {
			g.health.recordSuccess(b.ID())
		}
		return Generation{
			Text:      text,
			ModelUsed: b.ID(),
			Mode:      g.mode(),
			LatencyMS: time.Since(start).Milliseconds(),
		}, nil
	}

	return Generation{}, fmt.Errorf("%w: %w", ErrAllBackendsDown, errors.Join(errs...))
}

func (g *Gateway) mode() string {
	if g.forceOffline {
		return "offline"
	}
	return "online"
}

func (g *Gateway) callWithRetry(ctx context.Context, b Backend, system, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.perCallDeadline)
	defer cancel()

	return g.retry.Do(callCtx, func(ctx context.Context) (string, error) {
		return b.Generate(ctx, system, prompt)
	})
}
