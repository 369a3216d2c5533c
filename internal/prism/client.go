// Package prism is a minimal REST client for the Prism gateway: session
// cookie login, session liveness, VM power state and task polling, plus
// construction of the VNC websocket URL the proxy dials.
package prism

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrUnauthorized is returned when the gateway rejects the session or the
// credentials. The console liveness poll treats it as session expiry.
var ErrUnauthorized = errors.New("prism: unauthorized")

const (
	loginPath       = "/PrismGateway/j_spring_security_check"
	sessionInfoPath = "/PrismGateway/services/rest/v1/users/session_info"
	vmsPathV2       = "/PrismGateway/services/rest/v2.0/vms"
	tasksPathV2     = "/PrismGateway/services/rest/v2.0/tasks"
)

// Client talks to one Prism gateway. Safe for concurrent use.
type Client struct {
	baseURL  string // https://host:port
	wsURL    string // wss://host:port
	username string
	password string
	hc       *http.Client

	mu     sync.Mutex
	cookie string // "JSESSIONID=..." after a successful login
}

// Config for a Client. VerifyTLS is off by default in deployments because
// Prism appliances ship self-signed certificates.
type Config struct {
	Hostname  string
	Port      int
	Username  string
	Password  string
	VerifyTLS bool
	Timeout   time.Duration
}

// NewClient builds a Prism client. No network traffic happens until the
// first call.
func NewClient(cfg Config) *Client {
	if cfg.Port == 0 {
		cfg.Port = 9440
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS},
		},
	}
	host := fmt.Sprintf("%s:%d", cfg.Hostname, cfg.Port)
	return &Client{
		baseURL:  "https://" + host,
		wsURL:    "wss://" + host,
		username: cfg.Username,
		password: cfg.Password,
		hc:       hc,
	}
}

// Authenticate logs into Prism and stores the session cookie. The gateway
// answers a successful form login with 200 and the literal body "Success".
func (c *Client) Authenticate(ctx context.Context) error {
	log.Printf("prism: authenticating with %s", c.baseURL)

	form := url.Values{
		"j_username": {c.username},
		"j_password": {c.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+loginPath+"?"+form.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK || text != "Success" {
		return fmt.Errorf("%w: login returned %d %q", ErrUnauthorized, resp.StatusCode, text)
	}

	for _, ck := range resp.Cookies() {
		if ck.Name == "JSESSIONID" {
			c.mu.Lock()
			c.cookie = "JSESSIONID=" + ck.Value
			c.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("%w: login succeeded but no JSESSIONID", ErrUnauthorized)
}

// SessionCookie returns the stored cookie header value, or an empty string
// before the first successful Authenticate.
func (c *Client) SessionCookie() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cookie
}

// SessionInfo is the subset of the session-info response the proxy reads.
type SessionInfo struct {
	Status   string `json:"status"`
	Username string `json:"username"`
}

// GetSessionInfo queries the authenticated session. A 401 maps to
// ErrUnauthorized.
func (c *Client) GetSessionInfo(ctx context.Context) (SessionInfo, error) {
	var info SessionInfo
	if err := c.getJSON(ctx, sessionInfoPath, &info); err != nil {
		return SessionInfo{}, err
	}
	return info, nil
}

// SessionAlive implements the console liveness check: false exactly when
// the gateway reports the session unauthorized.
func (c *Client) SessionAlive(ctx context.Context) (bool, error) {
	_, err := c.GetSessionInfo(ctx)
	if errors.Is(err, ErrUnauthorized) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Task is a Prism task reference returned by mutating calls.
type Task struct {
	TaskUUID string `json:"task_uuid"`
}

// TaskStatus is the subset of task state the proxy surfaces.
type TaskStatus struct {
	UUID            string `json:"uuid"`
	ProgressStatus  string `json:"progress_status"`
	PercentComplete int    `json:"percentage_complete"`
}

// SetPowerState transitions a VM's power state ("on", "off", "acpi_reboot",
// ...) and returns the resulting task.
func (c *Client) SetPowerState(ctx context.Context, vmUUID, transition string) (Task, error) {
	payload, err := json.Marshal(map[string]string{"transition": transition})
	if err != nil {
		return Task{}, fmt.Errorf("marshal power state: %w", err)
	}

	path := fmt.Sprintf("%s/%s/set_power_state", vmsPathV2, vmUUID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, strings.NewReader(string(payload)))
	if err != nil {
		return Task{}, fmt.Errorf("build power state request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var task Task
	if err := c.doJSON(req, &task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// GetTaskStatus polls a task by UUID.
func (c *Client) GetTaskStatus(ctx context.Context, taskUUID string) (TaskStatus, error) {
	var st TaskStatus
	if err := c.getJSON(ctx, tasksPathV2+"/"+taskUUID, &st); err != nil {
		return TaskStatus{}, err
	}
	return st, nil
}

// WebsocketHTTPClient returns an HTTP client for websocket dials, sharing
// the REST client's TLS configuration but without its request timeout;
// websockets are long-lived.
func (c *Client) WebsocketHTTPClient() *http.Client {
	return &http.Client{Transport: c.hc.Transport}
}

// VNCWebsocketURL returns the upstream websocket endpoint for a VM console.
func (c *Client) VNCWebsocketURL(vmUUID string) string {
	return fmt.Sprintf("%s/vnc/vm/%s/proxy", c.wsURL, vmUUID)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	if cookie := c.SessionCookie(); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s %s", ErrUnauthorized, req.Method, req.URL.Path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: unexpected status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
