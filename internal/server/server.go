// Package server exposes the HTTP surface: the raw VNC websocket relay,
// the managed console channel, and Prism passthrough endpoints for VM
// power operations.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nutanixed/prism-vnc-proxy/internal/audit"
	"github.com/nutanixed/prism-vnc-proxy/internal/prism"
)

// Server holds the handler dependencies and builds the router.
type Server struct {
	prism    *prism.Client
	auditor  *audit.Auditor
	sessions *SessionManager
}

func New(client *prism.Client, auditor *audit.Auditor) *Server {
	return &Server{
		prism:    client,
		auditor:  auditor,
		sessions: NewSessionManager(),
	}
}

// Sessions exposes the session manager for shutdown teardown.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Router builds the chi router with all endpoints mounted.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", s.HealthCheck)

	r.Get("/proxy/{vmUUID}", s.VNCRelay)
	r.Get("/console/ws/{vmUUID}", s.ConsoleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/vms/{vmUUID}/power_state", s.SetPowerState)
		r.Get("/tasks/{taskUUID}", s.GetTask)
		r.Get("/sessions", s.ListSessions)
	})

	return r
}

// HealthCheck reports process liveness.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
