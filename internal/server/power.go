package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nutanixed/prism-vnc-proxy/internal/audit"
	"github.com/nutanixed/prism-vnc-proxy/internal/prism"
)

// validTransitions mirrors the transitions Prism's v2 API accepts.
var validTransitions = map[string]bool{
	"ON":            true,
	"OFF":           true,
	"POWERCYCLE":    true,
	"RESET":         true,
	"PAUSE":         true,
	"RESUME":        true,
	"ACPI_SHUTDOWN": true,
	"ACPI_REBOOT":   true,
}

type powerStateRequest struct {
	Transition string `json:"transition"`
}

// SetPowerState forwards a power transition request to Prism and returns
// the task UUID tracking it.
func (s *Server) SetPowerState(w http.ResponseWriter, r *http.Request) {
	vmUUID := chi.URLParam(r, "vmUUID")
	if _, err := uuid.Parse(vmUUID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid VM UUID")
		return
	}

	var req powerStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validTransitions[req.Transition] {
		writeError(w, http.StatusBadRequest, "invalid power transition")
		return
	}

	ctx := r.Context()
	if err := s.prism.Authenticate(ctx); err != nil {
		writeError(w, http.StatusBadGateway, "prism authentication failed")
		return
	}

	task, err := s.prism.SetPowerState(ctx, vmUUID, req.Transition)
	if err != nil {
		if errors.Is(err, prism.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "prism session expired")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.auditor.Log(audit.Entry{
		SessionID: task.TaskUUID,
		VMUUID:    vmUUID,
		EventType: audit.EventPowerStateChange,
		SourceIP:  r.RemoteAddr,
		Details:   req.Transition,
	})

	writeJSON(w, http.StatusAccepted, task)
}

// GetTask reports the progress of a Prism task.
func (s *Server) GetTask(w http.ResponseWriter, r *http.Request) {
	taskUUID := chi.URLParam(r, "taskUUID")
	if _, err := uuid.Parse(taskUUID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task UUID")
		return
	}

	status, err := s.prism.GetTaskStatus(r.Context(), taskUUID)
	if err != nil {
		if errors.Is(err, prism.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "prism session expired")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type sessionSummary struct {
	ID        string    `json:"id"`
	VMUUID    string    `json:"vm_uuid"`
	SourceIP  string    `json:"source_ip"`
	StartedAt time.Time `json:"started_at"`
	State     string    `json:"state"`
}

// ListSessions reports active managed console sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.List()
	out := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		state, _ := sess.Controller.State()
		out = append(out, sessionSummary{
			ID:        sess.ID,
			VMUUID:    sess.VMUUID,
			SourceIP:  sess.SourceIP,
			StartedAt: sess.StartedAt,
			State:     state.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
