package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ramaverify/backend/internal/apperr"
	"github.com/ramaverify/backend/internal/docstore"
)

type feedbackRequest struct {
	ClaimText       string `json:"claim_text"`
	VerdictReturned string `json:"verdict_returned"`
	Comment         string `json:"comment"`
	ScreenshotURL   string `json:"screenshot_url"`
}

// Feedback handles POST /feedback: appends a user-submitted correction or
// comment on a verdict. It has no auth and no effect on anything else the
// engine does — feedback is reviewed out of band.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClaimText == "" {
		h.writeError(r.Context(), w, string(apperr.InputInvalid), "claim_text is required", apperr.InputInvalid.HTTPStatus())
		return
	}

	f := docstore.Feedback{
		ID: uuid.New().String(), ClaimText: req.ClaimText, VerdictReturned: req.VerdictReturned,
		Comment: req.Comment, ScreenshotURL: req.ScreenshotURL, CreatedAt: time.Now(),
	}
	if err := h.docs.InsertFeedback(r.Context(), f); err != nil {
		h.writeError(r.Context(), w, string(apperr.StorageFault), "failed to record feedback", apperr.StorageFault.HTTPStatus())
		return
	}

	h.writeData(w, http.StatusOK, map[string]string{"feedback_id": f.ID})
}

type historyEntryResponse struct {
	ID                 string    `json:"id"`
	ClaimText          string    `json:"claim_text"`
	Verdict            string    `json:"verdict"`
	Confidence         float64   `json:"confidence"`
	ContradictionScore float64   `json:"contradiction_score"`
	Mode               string    `json:"mode"`
	CreatedAt          time.Time `json:"created_at"`
}

// UserHistory handles GET /user/history?limit=N: claim logs scoped to the
// caller's fingerprint, newest first.
func (h *Handler) UserHistory(w http.ResponseWriter, r *http.Request) {
	logs, err := h.docs.UserHistory(r.Context(), fingerprintOf(r), limitFromQuery(r, 20))
	if err != nil {
		h.writeError(r.Context(), w, string(apperr.StorageFault), "failed to load history", apperr.StorageFault.HTTPStatus())
		return
	}

	resp := make([]historyEntryResponse, len(logs))
	for i, l := range logs {
		resp[i] = historyEntryResponse{
			ID: l.ID, ClaimText: l.ClaimText, Verdict: l.Verdict, Confidence: l.Confidence,
			ContradictionScore: l.ContradictionScore, Mode: l.Mode, CreatedAt: l.CreatedAt,
		}
	}

	h.writeData(w, http.StatusOK, resp)
}
