package modelgateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Status is the health of a single backend as of the last sample.
type Status struct {
	Backend   string
	Healthy   bool
	CheckedAt time.Time
	LastError string
}

// HealthTracker periodically pings every backend and records the result in
// a process-local status map, which the /health handler reads through
// Snapshot. The verification engine does not read this map; it reaches
// backends only through Gateway.Generate.
type HealthTracker struct {
	mu       sync.RWMutex
	statuses map[string]Status

	recent *gocache.Cache
	log    *slog.Logger
}

func NewHealthTracker(log *slog.Logger) *HealthTracker {
	if log == nil {
		log = slog.Default()
	}
	return &HealthTracker{
		statuses: make(map[string]Status),
		recent:   gocache.New(5*time.Minute, 10*time.Minute),
		log:      log,
	}
}

// Snapshot returns the current status map, keyed by backend ID. Used to
// build the /health response's "models" field.
func (h *HealthTracker) Snapshot() map[string]Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]Status, len(h.statuses))
	for k, v := range h.statuses {
		out[k] = v
	}
	return out
}

func (h *HealthTracker) recordSuccess(backendID string) {
	h.set(Status{Backend: backendID, Healthy: true, CheckedAt: time.Now()})
}

func (h *HealthTracker) recordFailure(backendID string) {
	h.set(Status{Backend: backendID, Healthy: false, CheckedAt: time.Now()})
}

func (h *HealthTracker) set(s Status) {
	h.mu.Lock()
	h.statuses[s.Backend] = s
	h.mu.Unlock()
	h.recent.Set(s.Backend, s, gocache.DefaultExpiration)
}

// RunSampler pings every backend on the given interval until ctx is
// cancelled. It is meant to be started once in a background goroutine at
// bootstrap.
func (h *HealthTracker) RunSampler(ctx context.Context, backends []Backend, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.sampleOnce(ctx, backends)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sampleOnce(ctx, backends)
		}
	}
}

func (h *HealthTracker) sampleOnce(ctx context.Context, backends []Backend) {
	for _, b := range backends {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := b.Ping(pingCtx)
		cancel()

		status := Status{Backend: b.ID(), CheckedAt: time.Now()}
		if err != nil {
			status.LastError = err.Error()
			h.log.Debug("health sample failed", "backend", b.ID(), "error", err)
		} else {
			status.Healthy = true
		}
		h.set(status)
	}
}
