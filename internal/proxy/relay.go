// Package proxy bridges browser websockets to the VNC websocket endpoints
// the Prism gateway exposes per VM: a raw byte relay for clients that run
// their own RFB stack, and a console.Transport implementation for sessions
// the server drives itself.
package proxy

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/nutanixed/prism-vnc-proxy/internal/prism"
)

const (
	dialTimeout = 10 * time.Second
	readLimit   = 4 * 1024 * 1024
)

// Relay upgrades the request to a websocket and shuttles frames between the
// browser and the VM's VNC websocket behind Prism until either side closes.
// The websocket is only responsive while the VM is powered on.
func Relay(w http.ResponseWriter, r *http.Request, client *prism.Client, vmUUID string) {
	if err := client.Authenticate(r.Context()); err != nil {
		log.Printf("relay: prism auth failed: %v", err)
		http.Error(w, "failed to obtain authenticated session from Prism", http.StatusUnauthorized)
		return
	}

	// Negotiate subprotocols from the client request; noVNC asks for
	// "binary".
	subprotocols := splitProtocols(r.Header.Get("Sec-WebSocket-Protocol"))

	clientConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       subprotocols,
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("relay: websocket accept error: %v", err)
		return
	}
	defer clientConn.CloseNow()

	dialCtx, cancel := context.WithTimeout(r.Context(), dialTimeout)
	defer cancel()

	upstreamURL := client.VNCWebsocketURL(vmUUID)
	log.Printf("relay: opening websocket %s", upstreamURL)

	upstreamConn, _, err := websocket.Dial(dialCtx, upstreamURL, &websocket.DialOptions{
		Subprotocols: subprotocols,
		HTTPClient:   client.WebsocketHTTPClient(),
		HTTPHeader: http.Header{
			"Cookie": []string{client.SessionCookie()},
		},
	})
	if err != nil {
		log.Printf("relay: upstream dial error for %s: %v", upstreamURL, err)
		clientConn.Close(websocket.StatusBadGateway, "cannot connect to VM console")
		return
	}
	defer upstreamConn.CloseNow()

	clientConn.SetReadLimit(readLimit)
	upstreamConn.SetReadLimit(readLimit)

	relayCtx, relayCancel := context.WithCancel(r.Context())
	defer relayCancel()

	// Client -> VM
	go func() {
		defer relayCancel()
		pump(relayCtx, clientConn, upstreamConn)
	}()

	// VM -> Client
	func() {
		defer relayCancel()
		pump(relayCtx, upstreamConn, clientConn)
	}()

	clientConn.Close(websocket.StatusNormalClosure, "")
	upstreamConn.Close(websocket.StatusNormalClosure, "")
}

// splitProtocols parses a Sec-WebSocket-Protocol header value. Clients may
// send the comma-separated list with or without whitespace.
func splitProtocols(header string) []string {
	if header == "" {
		return nil
	}
	var protocols []string
	for _, p := range strings.Split(header, ",") {
		if p = strings.TrimSpace(p); p != "" {
			protocols = append(protocols, p)
		}
	}
	return protocols
}

// pump copies frames from src to dst until either side fails.
func pump(ctx context.Context, src, dst *websocket.Conn) {
	for {
		msgType, data, err := src.Read(ctx)
		if err != nil {
			return
		}
		if err := dst.Write(ctx, msgType, data); err != nil {
			return
		}
	}
}
