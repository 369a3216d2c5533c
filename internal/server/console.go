package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nutanixed/prism-vnc-proxy/internal/audit"
	"github.com/nutanixed/prism-vnc-proxy/internal/config"
	"github.com/nutanixed/prism-vnc-proxy/internal/console"
	"github.com/nutanixed/prism-vnc-proxy/internal/keyboard"
	"github.com/nutanixed/prism-vnc-proxy/internal/proxy"
)

// consoleWriteTimeout bounds a single outbound websocket write so one
// stalled client cannot wedge the state callback path.
const consoleWriteTimeout = 10 * time.Second

// clientMessage is the envelope for inbound console channel messages.
type clientMessage struct {
	Type     string          `json:"type"`
	Event    json.RawMessage `json:"event,omitempty"`
	Password string          `json:"password,omitempty"`
}

// stateMessage is pushed to the client on every session state change.
type stateMessage struct {
	Type     string `json:"type"`
	State    string `json:"state"`
	Previous string `json:"previous"`
	Message  string `json:"message,omitempty"`
}

// sessionMessage announces the assigned session ID after the channel opens.
type sessionMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	VMUUID    string `json:"vm_uuid"`
}

// consoleWriter serializes JSON writes to one websocket connection.
// State callbacks and the session announcement race otherwise.
type consoleWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (cw *consoleWriter) send(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	cw.mu.Lock()
	defer cw.mu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, consoleWriteTimeout)
	defer cancel()
	return cw.conn.Write(wctx, websocket.MessageText, data)
}

// ConsoleWS serves the managed console channel: the browser sends raw
// KeyboardEvent payloads and lifecycle commands as JSON, and this side
// translates them into RFB key events on a dedicated Prism websocket.
//
// Inbound message types: "key" (carries the keyboard event), "blur"
// (release all held keys), "password" (answer a password challenge),
// "reconnect" (connect now instead of waiting out the delay), and "end".
// Outbound: "session" once on open, then "state" for every transition.
func (s *Server) ConsoleWS(w http.ResponseWriter, r *http.Request) {
	vmUUID := chi.URLParam(r, "vmUUID")
	if _, err := uuid.Parse(vmUUID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid VM UUID")
		return
	}

	viewOnly := r.URL.Query().Get("view_only") == "true"

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("console: websocket accept for vm %s: %v", vmUUID, err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	writer := &consoleWriter{conn: conn}

	transport := proxy.NewVNCTransport(s.prism, vmUUID)

	// The decoder feeds the controller, and the controller calls back into
	// the decoder for release-all on teardown. Build the decoder against a
	// late-bound controller pointer to close the loop.
	var ctrl *console.Controller
	mods := keyboard.NewModifierState()
	resolver := keyboard.NewResolver(mods, config.Cfg.USKeyboardFallback)
	decoder := keyboard.NewDecoder(mods, resolver, func(key keyboard.ResolvedKey) {
		if ctrl == nil {
			return
		}
		forwardKey(ctrl, key)
	})

	ctrl = console.NewController(console.SessionConfig{
		Host:     config.Cfg.PrismHostname,
		Port:     config.Cfg.PrismPort,
		Path:     fmt.Sprintf("/vnc/vm/%s/proxy", vmUUID),
		Encrypt:  true,
		ViewOnly: viewOnly,
	}, transport, console.Options{
		ReconnectDelay:   parseDurationOr(config.Cfg.ReconnectDelay, console.DefaultReconnectDelay),
		LivenessInterval: parseDurationOr(config.Cfg.LivenessInterval, console.DefaultLivenessInterval),
		Auth:             s.prism,
		Keys:             decoder,
	})

	sourceIP := r.RemoteAddr
	sess := s.sessions.Add(vmUUID, sourceIP, ctrl)
	started := time.Now()

	ctrl.OnStateChange(func(state, previous console.State, message string) {
		s.auditStateChange(sess, state, message)
		msg := stateMessage{
			Type:     "state",
			State:    state.String(),
			Previous: previous.String(),
			Message:  message,
		}
		if err := writer.send(ctx, msg); err != nil {
			log.Printf("console: push state to client: %v", err)
		}
	})

	s.auditor.Log(audit.Entry{
		SessionID: sess.ID,
		VMUUID:    vmUUID,
		EventType: audit.EventSessionStarted,
		SourceIP:  sourceIP,
	})

	defer func() {
		ctrl.EndSession()
		s.sessions.Remove(sess.ID)
		s.auditor.Log(audit.Entry{
			SessionID:  sess.ID,
			VMUUID:     vmUUID,
			EventType:  audit.EventSessionEnded,
			SourceIP:   sourceIP,
			DurationMs: time.Since(started).Milliseconds(),
		})
	}()

	if err := writer.send(ctx, sessionMessage{Type: "session", SessionID: sess.ID, VMUUID: vmUUID}); err != nil {
		return
	}

	if err := ctrl.StartSession(); err != nil {
		log.Printf("console: start session for vm %s: %v", vmUUID, err)
		conn.Close(4500, "failed to start session")
		return
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("console: bad client message: %v", err)
			continue
		}

		switch msg.Type {
		case "key":
			var ev keyboard.KeyEvent
			if err := json.Unmarshal(msg.Event, &ev); err != nil {
				log.Printf("console: bad key event: %v", err)
				continue
			}
			decoder.HandleEvent(ev)
		case "blur":
			decoder.ReleaseAll()
		case "password":
			if err := ctrl.SendPassword(msg.Password); err != nil {
				log.Printf("console: send password: %v", err)
			}
		case "reconnect":
			s.auditor.Log(audit.Entry{
				SessionID: sess.ID,
				VMUUID:    vmUUID,
				EventType: audit.EventReconnect,
				SourceIP:  sourceIP,
				Details:   "client requested",
			})
			ctrl.Reconnect()
		case "end":
			conn.Close(websocket.StatusNormalClosure, "session ended")
			return
		default:
			log.Printf("console: unknown message type %q", msg.Type)
		}
	}
}

// forwardKey writes one resolved key to the session. The US-layout fallback
// keysym goes out without the scancode: the scancode already went with the
// primary keysym, and repeating it would double the physical press on
// scancode-driven guests.
func forwardKey(ctrl *console.Controller, key keyboard.ResolvedKey) {
	if err := ctrl.SendKeyEvent(key.Scancode, key.Keysym, key.Down); err != nil {
		if err != console.ErrViewOnly && err != console.ErrNotConnected {
			log.Printf("console: send key event: %v", err)
		}
		return
	}
	if key.USKeysym != 0 && key.USKeysym != key.Keysym {
		if err := ctrl.SendKeyEvent(0, key.USKeysym, key.Down); err != nil && err != console.ErrViewOnly && err != console.ErrNotConnected {
			log.Printf("console: send fallback key event: %v", err)
		}
	}
}

// auditStateChange records the terminal authentication expiry. Other
// transitions are visible through the session list and stay out of the
// audit trail.
func (s *Server) auditStateChange(sess *ConsoleSession, state console.State, message string) {
	if state != console.StateFatal {
		return
	}
	s.auditor.Log(audit.Entry{
		SessionID: sess.ID,
		VMUUID:    sess.VMUUID,
		EventType: audit.EventAuthExpired,
		SourceIP:  sess.SourceIP,
		Details:   message,
	})
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
