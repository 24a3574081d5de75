package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ramaverify/backend/internal/apperr"
	"github.com/ramaverify/backend/internal/ingest"
)

type ingestRequest struct {
	Force bool `json:"force"`
}

type ingestCounts struct {
	News       int `json:"news"`
	Gov        int `json:"gov"`
	Factchecks int `json:"factchecks"`
	Social     int `json:"social"`
}

type ingestResponse struct {
	Status     string       `json:"status"`
	Ingested   ingestCounts `json:"ingested"`
	LastSynced time.Time    `json:"last_synced"`
	Errors     []string     `json:"errors"`
}

// requireAdmin checks the X-Admin-Token header against the configured
// shared secret, writing a 401 and returning false if it doesn't match.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	token := r.Header.Get("X-Admin-Token")
	if h.adminToken == "" || token != h.adminToken {
		h.writeError(r.Context(), w, string(apperr.Unauthorized), "missing or invalid admin token", apperr.Unauthorized.HTTPStatus())
		return false
	}
	return true
}

// AdminIngest handles POST /admin/ingest: triggers an ingestion run and
// blocks until it resolves to ok, partial, already_running, or cooldown.
func (h *Handler) AdminIngest(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req ingestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(r.Context(), w, string(apperr.InputInvalid), "request body must be valid JSON", apperr.InputInvalid.HTTPStatus())
			return
		}
	}

	report := h.orchestrator.Run(r.Context(), req.Force)

	resp := ingestResponse{
		Status:     strings.ToLower(report.Status),
		LastSynced: report.LastSynced,
		Errors:     report.Errors,
	}
	if report.Status == ingest.StatusFailed {
		resp.Status = "partial"
	}
	if report.ByKind != nil {
		resp.Ingested = ingestCounts{
			News: report.ByKind["news"], Gov: report.ByKind["gov"],
			Factchecks: report.ByKind["factcheck"], Social: report.ByKind["social"],
		}
	}

	h.writeData(w, http.StatusOK, resp)
}

type adminLogResponse struct {
	ID                 string    `json:"id"`
	ClaimText          string    `json:"claim_text"`
	Verdict            string    `json:"verdict"`
	Confidence         float64   `json:"confidence"`
	ContradictionScore float64   `json:"contradiction_score"`
	Mode               string    `json:"mode"`
	ModelUsed          string    `json:"model_used"`
	SourcesUsed        []string  `json:"sources_used"`
	ClientFingerprint  string    `json:"client_fingerprint"`
	LatencyMS          int64     `json:"latency_ms"`
	CreatedAt          time.Time `json:"created_at"`
}

// AdminLogs handles GET /admin/logs?limit=N: the most recent ClaimLog rows.
func (h *Handler) AdminLogs(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	logs, err := h.docs.RecentClaimLogs(r.Context(), limitFromQuery(r, 20))
	if err != nil {
		h.writeError(r.Context(), w, string(apperr.StorageFault), "failed to load claim logs", apperr.StorageFault.HTTPStatus())
		return
	}

	resp := make([]adminLogResponse, len(logs))
	for i, l := range logs {
		resp[i] = adminLogResponse{
			ID: l.ID, ClaimText: l.ClaimText, Verdict: l.Verdict, Confidence: l.Confidence,
			ContradictionScore: l.ContradictionScore, Mode: l.Mode, ModelUsed: l.ModelUsed,
			SourcesUsed: l.SourcesUsed, ClientFingerprint: l.ClientFingerprint,
			LatencyMS: l.LatencyMS, CreatedAt: l.CreatedAt,
		}
	}

	h.writeData(w, http.StatusOK, resp)
}
