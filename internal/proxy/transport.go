// transport.go implements console.Transport over the Prism VNC websocket.
// Key events are framed as RFB client messages: the classic KeyEvent plus,
// when a scancode is known, the QEMU extended key event that carries the
// physical position. The RFB handshake and pixel pipeline stay with the
// browser-side display library; this transport only owns the connection
// lifecycle and key injection.

package proxy

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/nutanixed/prism-vnc-proxy/internal/console"
	"github.com/nutanixed/prism-vnc-proxy/internal/prism"
)

// RFB client message types.
const (
	msgKeyEvent     = 4
	msgQEMUExt      = 255
	qemuSubKeyEvent = 0
)

var errNotConnected = errors.New("proxy: transport not connected")

// VNCTransport is a console.Transport backed by the VM's VNC websocket.
// One instance per session.
type VNCTransport struct {
	client *prism.Client
	vmUUID string

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	stateCb func(console.State, string)
}

// NewVNCTransport builds a transport for one VM console.
func NewVNCTransport(client *prism.Client, vmUUID string) *VNCTransport {
	return &VNCTransport{client: client, vmUUID: vmUUID}
}

// OnStateChange installs the lifecycle callback. At most one; installed by
// the controller before the first Connect.
func (t *VNCTransport) OnStateChange(cb func(console.State, string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateCb = cb
}

// Connect authenticates with Prism, dials the VM's VNC websocket and starts
// the read pump that detects drops. Reports Normal on success; the caller
// is also told of failures through the returned error.
func (t *VNCTransport) Connect(ctx context.Context) error {
	if err := t.client.Authenticate(ctx); err != nil {
		return fmt.Errorf("prism auth: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	upstreamURL := t.client.VNCWebsocketURL(t.vmUUID)
	conn, _, err := websocket.Dial(dialCtx, upstreamURL, &websocket.DialOptions{
		Subprotocols: []string{"binary"},
		HTTPClient:   t.client.WebsocketHTTPClient(),
		HTTPHeader: http.Header{
			"Cookie": []string{t.client.SessionCookie()},
		},
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", upstreamURL, err)
	}
	conn.SetReadLimit(readLimit)

	pumpCtx, pumpCancel := context.WithCancel(context.WithoutCancel(ctx))

	t.mu.Lock()
	if t.conn != nil {
		// Stale connection from a previous attempt; drop it silently.
		t.conn.CloseNow()
		t.cancel()
	}
	t.conn = conn
	t.cancel = pumpCancel
	t.mu.Unlock()

	t.notify(console.StateNormal, "")

	go t.readPump(pumpCtx, conn)
	return nil
}

// readPump drains server frames (framebuffer data is consumed by the
// browser path, not here) and reports Disconnected when the socket dies.
func (t *VNCTransport) readPump(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			t.mu.Lock()
			current := t.conn == conn
			if current {
				t.conn = nil
			}
			t.mu.Unlock()

			// Only the live connection's death is a session event.
			if current && ctx.Err() == nil {
				t.notify(console.StateDisconnected, fmt.Sprintf("connection lost: %v", err))
			}
			return
		}
	}
}

// Disconnect closes the upstream connection. Idempotent.
func (t *VNCTransport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	cancel := t.cancel
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	cancel()
	return conn.Close(websocket.StatusNormalClosure, "session ended")
}

// SendKeyEvent writes the RFB KeyEvent message, followed by the QEMU
// extended key event when a scancode is available so position-sensitive
// guests see the physical key too.
func (t *VNCTransport) SendKeyEvent(scancode, keysym uint32, down bool) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}

	return conn.Write(context.Background(), websocket.MessageBinary, encodeKeyEvent(scancode, keysym, down))
}

// encodeKeyEvent frames the classic KeyEvent and, when a scancode is
// present, the QEMU extended key event into one write.
func encodeKeyEvent(scancode, keysym uint32, down bool) []byte {
	var downFlag byte
	if down {
		downFlag = 1
	}

	msg := make([]byte, 0, 20)
	key := [8]byte{0: msgKeyEvent, 1: downFlag}
	binary.BigEndian.PutUint32(key[4:], keysym)
	msg = append(msg, key[:]...)

	if scancode != 0 {
		var ext [12]byte
		ext[0] = msgQEMUExt
		ext[1] = qemuSubKeyEvent
		binary.BigEndian.PutUint16(ext[2:], uint16(downFlag))
		binary.BigEndian.PutUint32(ext[4:], keysym)
		binary.BigEndian.PutUint32(ext[8:], rfbKeycode(scancode))
		msg = append(msg, ext[:]...)
	}

	return msg
}

// rfbKeycode folds the XT extended prefix into the high bit, the encoding
// QEMU expects for extended keys.
func rfbKeycode(scancode uint32) uint32 {
	if scancode&0xe000 == 0xe000 {
		return (scancode & 0xff) | 0x80
	}
	return scancode
}

// SendPassword acknowledges a password challenge. The Prism path
// authenticates with the session cookie, so there is no inline VNC password
// exchange to answer and the value is discarded; transports for directly
// exposed VNC servers would write it into the handshake here.
func (t *VNCTransport) SendPassword(password string) error {
	log.Printf("proxy: password challenge acknowledged for vm %s", t.vmUUID)
	return nil
}

// notify invokes the state callback if one is installed.
func (t *VNCTransport) notify(state console.State, message string) {
	t.mu.Lock()
	cb := t.stateCb
	t.mu.Unlock()
	if cb != nil {
		cb(state, message)
	}
}
