package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ramaverify/backend/internal/apperr"
	"github.com/ramaverify/backend/internal/docstore"
	"github.com/ramaverify/backend/internal/middleware"
	"github.com/ramaverify/backend/internal/verify"
)

type verifyRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Category string `json:"category"`
}

type sourceResponse struct {
	Type             string  `json:"type"`
	Source           string  `json:"source"`
	URL              string  `json:"url"`
	Snippet          string  `json:"snippet"`
	CredibilityScore float64 `json:"credibility_score"`
	CredibilityLevel string  `json:"credibility_level"`
	IsVerifiedSource bool    `json:"is_verified_source"`
}

type verifyResponse struct {
	Mode               string           `json:"mode"`
	Verdict            string           `json:"verdict"`
	Confidence         float64          `json:"confidence"`
	ContradictionScore float64          `json:"contradiction_score"`
	Explanation        string           `json:"explanation"`
	RawAnswer          string           `json:"raw_answer"`
	SourcesUsed        []sourceResponse `json:"sources_used"`
	Timestamp          time.Time        `json:"timestamp"`
}

// Verify handles POST /verify: validate the claim text, run the two-phase
// verification engine, log the request asynchronously, and respond.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, string(apperr.InputInvalid), "request body must be valid JSON", apperr.InputInvalid.HTTPStatus())
		return
	}
	if utf8.RuneCountInString(req.Text) < 10 {
		h.writeError(ctx, w, string(apperr.InputInvalid), "text must be at least 10 characters", apperr.InputInvalid.HTTPStatus())
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, h.requestDeadline)
	defer cancel()

	result, err := h.engine.Verify(deadlineCtx, req.Text, req.Language, req.Category)
	if err != nil {
		h.writeError(ctx, w, string(apperr.StorageFault), "verification failed", apperr.StorageFault.HTTPStatus())
		return
	}

	if result.Mode == verify.ModeRefused {
		h.writeError(ctx, w, string(apperr.AllBackendsDown), result.RefusalReason, apperr.AllBackendsDown.HTTPStatus())
		h.enqueueLog(req, result, fingerprintOf(r), middleware.GetCorrelationID(ctx), time.Since(start))
		return
	}

	resp := verifyResponse{
		Mode: result.Mode, Verdict: result.Verdict, Confidence: result.Confidence,
		ContradictionScore: result.ContradictionScore, Explanation: result.Explanation,
		RawAnswer: result.RawAnswer, Timestamp: result.Timestamp,
	}
	for _, s := range result.SourcesUsed {
		resp.SourcesUsed = append(resp.SourcesUsed, sourceResponse{
			Type: s.Type, Source: s.SourceName, URL: s.URL, Snippet: s.Snippet,
			CredibilityScore: s.CredibilityScore, CredibilityLevel: s.CredibilityLevel,
			IsVerifiedSource: s.IsVerifiedSource,
		})
	}

	h.writeData(w, http.StatusOK, resp)
	h.enqueueLog(req, result, fingerprintOf(r), middleware.GetCorrelationID(ctx), time.Since(start))
}

// enqueueLog hands a ClaimLog off to the fire-and-forget queue so request
// latency never includes the write.
func (h *Handler) enqueueLog(req verifyRequest, result verify.Result, fingerprint, correlationID string, latency time.Duration) {
	if h.logEnqueue == nil {
		return
	}
	sources := make([]string, len(result.SourcesUsed))
	for i, s := range result.SourcesUsed {
		sources[i] = s.URL
	}
	h.logEnqueue(docstore.ClaimLog{
		ID: uuid.New().String(), ClaimText: req.Text, Verdict: result.Verdict,
		Confidence: result.Confidence, ContradictionScore: result.ContradictionScore,
		Mode: result.Mode, ModelUsed: result.ModelUsed, SourcesUsed: sources,
		ClientFingerprint: fingerprint, LatencyMS: latency.Milliseconds(),
		CorrelationID: correlationID, CreatedAt: time.Now(),
	})
}
