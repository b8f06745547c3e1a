package control

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) CreateBaseRouter() *chi.Mux {
	return chi.NewRouter()
}

func (s *Server) AddMiddleware(cr *chi.Mux) *chi.Mux {
	cr.Use(middleware.RequestID)
	cr.Use(middleware.Logger)
	cr.Use(middleware.Recoverer)
	return cr
}

func (s *Server) AddRoutes(cr *chi.Mux) *chi.Mux {
	cr.Get("/healthz", s.Healthz)

	cr.Route("/checkpoint", func(cr chi.Router) {
		cr.Get("/{hubID}", s.GetCheckpoint)
	})

	cr.Route("/reconcile", func(cr chi.Router) {
		cr.Post("/{fid}", s.TriggerReconcile)
	})

	return cr
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.checkpoint.Load(r.Context(), s.hubID); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}

	if s.hub != nil && !s.hub.Ready(r.Context(), healthzHubTimeout) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": "hub transport not ready"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) GetCheckpoint(w http.ResponseWriter, r *http.Request) {
	hubID := chi.URLParam(r, "hubID")

	eventID, err := s.checkpoint.Load(r.Context(), hubID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"hub_id": hubID, "last_event_id": eventID})
}

// TriggerReconcile kicks off a synchronous reconciliation run for one fid.
// A real deployment would enqueue this rather than block the request, but
// the control surface itself stays a thin trigger: scheduling reconciliation
// is left entirely up to the caller.
func (s *Server) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	fid, err := strconv.ParseUint(chi.URLParam(r, "fid"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid fid"})
		return
	}

	if s.reconciler == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "reconciler not configured"})
		return
	}

	if err := s.reconciler.ReconcileFid(r.Context(), fid, nil); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"fid": fid, "status": "reconciled"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
