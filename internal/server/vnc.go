package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nutanixed/prism-vnc-proxy/internal/audit"
	"github.com/nutanixed/prism-vnc-proxy/internal/proxy"
)

// VNCRelay serves the unmanaged byte-for-byte websocket relay to the VM's
// VNC endpoint. Browser-side RFB clients (noVNC) connect here; the server
// does not interpret the stream.
func (s *Server) VNCRelay(w http.ResponseWriter, r *http.Request) {
	vmUUID := chi.URLParam(r, "vmUUID")
	if _, err := uuid.Parse(vmUUID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid VM UUID")
		return
	}

	relayID := uuid.NewString()
	started := time.Now()
	s.auditor.Log(audit.Entry{
		SessionID: relayID,
		VMUUID:    vmUUID,
		EventType: audit.EventRelayOpened,
		SourceIP:  r.RemoteAddr,
	})

	proxy.Relay(w, r, s.prism, vmUUID)

	s.auditor.Log(audit.Entry{
		SessionID:  relayID,
		VMUUID:     vmUUID,
		EventType:  audit.EventRelayClosed,
		SourceIP:   r.RemoteAddr,
		DurationMs: time.Since(started).Milliseconds(),
	})
}
