// controller.go drives the console session lifecycle. The state machine is
// Loaded → Normal ⇄ Disconnected (scheduled reconnect) with Failed/Fatal as
// terminal detours; an authentication liveness poll runs once the first
// connection succeeds and ends the session on expiry.

package console

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Default timing; overridable via Options for tests and deployments.
const (
	DefaultReconnectDelay   = 30 * time.Second
	DefaultLivenessInterval = 30 * time.Second
)

// ErrSessionStarted is returned when StartSession is called twice on the
// same controller.
var ErrSessionStarted = errors.New("console: session already started")

// ErrViewOnly is returned for input sent on a view-only session.
var ErrViewOnly = errors.New("console: session is view-only")

// ErrNotConnected is returned for input sent while the session is not in
// StateNormal.
var ErrNotConnected = errors.New("console: session not connected")

// Transport is the RFB collaborator. Connect may block; the controller
// always invokes it from its own goroutine. Implementations report
// lifecycle changes through the callback registered with OnStateChange
// (at most one, installed by StartSession before Connect is first called).
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	SendKeyEvent(scancode, keysym uint32, down bool) error
	SendPassword(password string) error
	OnStateChange(func(state State, message string))
}

// AuthChecker answers the liveness poll. SessionAlive returns false when
// the authenticating backend reports the session unauthorized; errors are
// transient and leave the poll running.
type AuthChecker interface {
	SessionAlive(ctx context.Context) (bool, error)
}

// Releaser releases all held keys; satisfied by keyboard.Decoder.
type Releaser interface {
	ReleaseAll()
}

// StateCallback observes session state changes. Callbacks run synchronously
// on the transition path; long handlers should spawn goroutines.
type StateCallback func(state, previous State, message string)

// Options tunes a Controller. Zero values select the defaults; Auth and
// Keys are optional.
type Options struct {
	ReconnectDelay   time.Duration
	LivenessInterval time.Duration
	Auth             AuthChecker
	Keys             Releaser
}

// Controller owns one console session.
type Controller struct {
	mu sync.Mutex

	cfg       SessionConfig
	transport Transport
	auth      AuthChecker
	keys      Releaser

	reconnectDelay time.Duration
	pollInterval   time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	state           State
	lastMessage     string
	started         bool
	ended           bool
	passwordPending bool
	pollStarted     bool

	// Single outstanding reconnect timer; scheduling is idempotent and the
	// timer re-checks state at fire time so a manual reconnect racing the
	// schedule never doubles up.
	reconnectTimer *time.Timer

	transitions []Transition
	callbacks   []StateCallback
}

// NewController builds a controller for one session. The transport is not
// touched until StartSession.
func NewController(cfg SessionConfig, transport Transport, opts Options) *Controller {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.LivenessInterval <= 0 {
		opts.LivenessInterval = DefaultLivenessInterval
	}
	return &Controller{
		cfg:            cfg,
		transport:      transport,
		auth:           opts.Auth,
		keys:           opts.Keys,
		reconnectDelay: opts.ReconnectDelay,
		pollInterval:   opts.LivenessInterval,
		state:          StateLoaded,
	}
}

// OnStateChange registers a session state observer. Register before
// StartSession to observe the very first transition.
func (c *Controller) OnStateChange(cb StateCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

// StartSession wires the transport callback and issues the first connect.
// Calling it twice is a programming error and returns ErrSessionStarted.
func (c *Controller) StartSession() error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrSessionStarted
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	c.transport.OnStateChange(c.handleTransportState)
	c.connect()
	return nil
}

// connect launches an asynchronous connection attempt. Transport failures
// surface as a Disconnected transition, which schedules the next attempt.
func (c *Controller) connect() {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	c.mu.Unlock()

	go func() {
		if err := c.transport.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.handleTransportState(StateDisconnected, fmt.Sprintf("connect failed: %v", err))
		}
	}()
}

// Reconnect triggers an immediate manual connection attempt. The scheduled
// timer, if any, finds the session Normal at fire time and stands down.
func (c *Controller) Reconnect() {
	c.mu.Lock()
	if c.ended || c.state == StateNormal {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.connect()
}

// handleTransportState is the transport's state callback.
func (c *Controller) handleTransportState(state State, message string) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}

	// A password challenge is not a session state: note that it is
	// outstanding and let the UI prompt.
	if state == StatePassword {
		c.passwordPending = true
		prev := c.state
		cbs := c.callbacksLocked()
		c.mu.Unlock()
		for _, cb := range cbs {
			cb(StatePassword, prev, message)
		}
		return
	}

	prev := c.state
	if prev == state {
		// A failed reconnect attempt reports Disconnected again; keep the
		// retry cycle alive even though the state did not change.
		if state == StateDisconnected {
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
		return
	}
	c.state = state
	c.lastMessage = message
	c.recordLocked(prev, state, message)

	switch state {
	case StateNormal:
		c.passwordPending = false
		if c.reconnectTimer != nil {
			c.reconnectTimer.Stop()
			c.reconnectTimer = nil
		}
		c.startLivenessLocked()
	case StateDisconnected:
		c.scheduleReconnectLocked()
	}

	cbs := c.callbacksLocked()
	c.mu.Unlock()

	log.Printf("console: %s -> %s (%s)", prev, state, message)
	for _, cb := range cbs {
		cb(state, prev, message)
	}
}

// scheduleReconnectLocked arms the reconnect timer unless one is already
// pending. The timer only fires a connect if the session has not returned
// to Normal in the meantime.
func (c *Controller) scheduleReconnectLocked() {
	if c.reconnectTimer != nil {
		return
	}
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		if c.ended || c.state == StateNormal {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		log.Printf("console: reconnecting after %s", c.reconnectDelay)
		c.connect()
	})
}

// startLivenessLocked begins the authentication poll after the first
// successful connection. Runs once per session.
func (c *Controller) startLivenessLocked() {
	if c.pollStarted || c.auth == nil {
		return
	}
	c.pollStarted = true
	ctx := c.ctx

	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			alive, err := c.auth.SessionAlive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("console: liveness check error: %v", err)
				continue
			}
			if !alive {
				log.Printf("console: authentication expired, ending session")
				c.expire("authentication session expired")
				return
			}
		}
	}()
}

// expire marks the session fatally dead and tears it down.
func (c *Controller) expire(message string) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = StateFatal
	c.lastMessage = message
	c.recordLocked(prev, StateFatal, message)
	cbs := c.callbacksLocked()
	c.mu.Unlock()

	for _, cb := range cbs {
		cb(StateFatal, prev, message)
	}
	c.EndSession()
}

// SendKeyEvent forwards a resolved key event to the transport. Input is
// only accepted while the session is interactive.
func (c *Controller) SendKeyEvent(scancode, keysym uint32, down bool) error {
	c.mu.Lock()
	if c.cfg.ViewOnly {
		c.mu.Unlock()
		return ErrViewOnly
	}
	if c.state != StateNormal {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.mu.Unlock()
	return c.transport.SendKeyEvent(scancode, keysym, down)
}

// SendPassword forwards a password only while a challenge is outstanding;
// otherwise it is a no-op.
func (c *Controller) SendPassword(password string) error {
	c.mu.Lock()
	if !c.passwordPending || c.ended {
		c.mu.Unlock()
		return nil
	}
	c.passwordPending = false
	c.mu.Unlock()
	return c.transport.SendPassword(password)
}

// EndSession releases held keys, disconnects the transport and cancels all
// timers. Safe to call multiple times; only the first call has effects.
func (c *Controller) EndSession() {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	keys := c.keys
	c.mu.Unlock()

	if keys != nil {
		keys.ReleaseAll()
	}
	if err := c.transport.Disconnect(); err != nil {
		log.Printf("console: disconnect: %v", err)
	}
	log.Printf("console: session ended")
}

// State returns the current session state and the last transition message.
func (c *Controller) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.lastMessage
}

// Config returns the immutable session parameters.
func (c *Controller) Config() SessionConfig {
	return c.cfg
}

// Transitions returns the recorded state history, oldest first.
func (c *Controller) Transitions() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Transition, len(c.transitions))
	copy(out, c.transitions)
	return out
}

func (c *Controller) recordLocked(from, to State, message string) {
	c.transitions = append(c.transitions, Transition{
		From:      from,
		To:        to,
		Timestamp: time.Now(),
		Message:   message,
	})
	if len(c.transitions) > transitionBufferSize {
		c.transitions = c.transitions[1:]
	}
}

func (c *Controller) callbacksLocked() []StateCallback {
	cbs := make([]StateCallback, len(c.callbacks))
	copy(cbs, c.callbacks)
	return cbs
}
