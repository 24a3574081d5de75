package api

import (
	"net/http"
	"time"
)

type lastIngestResponse struct {
	Status     string    `json:"status"`
	FinishedAt time.Time `json:"finished_at"`
	Ingested   int       `json:"ingested"`
}

type healthResponse struct {
	Status     string              `json:"status"`
	Mode       string              `json:"mode"`
	LastIngest *lastIngestResponse `json:"last_ingest"`
	Models     map[string]string   `json:"models"`
}

// Health handles GET /health: liveness, offline-mode, per-backend health,
// and the outcome of the last ingestion run. It never touches the model
// gateway directly — it reads the health tracker's process-local snapshot,
// same as the verification engine does, so a slow or wedged backend can
// never make /health itself slow.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	mode := "online"
	if h.forceOffline {
		mode = "offline"
	}

	status := "ok"
	models := map[string]string{}
	if h.health != nil {
		for id, s := range h.health.Snapshot() {
			if s.Healthy {
				models[id] = "ok"
			} else {
				models[id] = "down"
				status = "degraded"
			}
		}
	}

	var lastIngest *lastIngestResponse
	if h.docs != nil {
		if run, err := h.docs.LastFinishedRun(r.Context()); err == nil && run != nil {
			finishedAt := run.StartedAt
			if run.FinishedAt != nil {
				finishedAt = *run.FinishedAt
			}
			lastIngest = &lastIngestResponse{Status: run.Status, FinishedAt: finishedAt, Ingested: run.Ingested}
			if run.Status == "FAILED" {
				status = "degraded"
			}
		}
	}

	h.writeData(w, http.StatusOK, healthResponse{Status: status, Mode: mode, LastIngest: lastIngest, Models: models})
}
