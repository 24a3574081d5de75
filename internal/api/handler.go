// Package api implements C9: a thin HTTP adapter over the verification
// engine, ingestion orchestrator, and document store, exposing the
// operations named in the external interface.
package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ramaverify/backend/internal/docstore"
	"github.com/ramaverify/backend/internal/ingest"
	"github.com/ramaverify/backend/internal/middleware"
	"github.com/ramaverify/backend/internal/modelgateway"
	"github.com/ramaverify/backend/internal/verify"
)

// Handler wires the engine, orchestrator, and stores into HTTP endpoints.
type Handler struct {
	engine          *verify.Engine
	orchestrator    *ingest.Orchestrator
	docs            *docstore.Store
	health          *modelgateway.HealthTracker
	logEnqueue      func(docstore.ClaimLog)
	adminToken      string
	forceOffline    bool
	requestDeadline time.Duration
	log             *slog.Logger
}

func NewHandler(
	engine *verify.Engine,
	orchestrator *ingest.Orchestrator,
	docs *docstore.Store,
	health *modelgateway.HealthTracker,
	logEnqueue func(docstore.ClaimLog),
	adminToken string,
	forceOffline bool,
	requestDeadline time.Duration,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if requestDeadline <= 0 {
		requestDeadline = 15 * time.Second
	}
	return &Handler{
		engine: engine, orchestrator: orchestrator, docs: docs, health: health,
		logEnqueue: logEnqueue, adminToken: adminToken, forceOffline: forceOffline,
		requestDeadline: requestDeadline, log: log,
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		h.log.Error("api: failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]interface{}{
		"error":         map[string]string{"code": code, "message": message},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("api: failed to encode error response", "error", err)
	}
}

// fingerprintOf derives a caller identity for /verify logging and
// /user/history scoping: the X-User-Id header if the caller supplies one,
// otherwise a truncated hash of the remote IP.
func fingerprintOf(r *http.Request) string {
	if id := r.Header.Get("X-User-Id"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	sum := sha256.Sum256([]byte(host))
	return hex.EncodeToString(sum[:])[:16]
}

func limitFromQuery(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
