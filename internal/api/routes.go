package api

import (
	"net/http"

	"github.com/ramaverify/backend/internal/middleware"
)

// NewMux builds the HTTP surface for every operation in the external
// interface, wrapping each route in correlation-ID tracking and CORS
// method/header handling. Access-Control-Allow-Origin is not set here; the
// app-level origin allowlist that wraps the returned mux sets it.
func (h *Handler) NewMux() *http.ServeMux {
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-Token, X-User-Id, X-Correlation-ID")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()

	mux.Handle("POST /verify", middleware.CorrelationID(enableCORS(h.Verify)))
	mux.Handle("POST /admin/ingest", middleware.CorrelationID(enableCORS(h.AdminIngest)))
	mux.Handle("GET /admin/logs", middleware.CorrelationID(enableCORS(h.AdminLogs)))
	mux.Handle("GET /health", middleware.CorrelationID(enableCORS(h.Health)))
	mux.Handle("POST /feedback", middleware.CorrelationID(enableCORS(h.Feedback)))
	mux.Handle("GET /user/history", middleware.CorrelationID(enableCORS(h.UserHistory)))

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"service":"ramaverify-backend","status":"ok"}`))
	})

	return mux
}
