// ABOUTME: Gate-control collaborator: health check and open commands for gate hardware
// ABOUTME: HTTP controller plus composition with an alternate health probe

package gatectl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoAck means the gate did not acknowledge a ping in time.
var ErrNoAck = errors.New("no acknowledgement from gate")

// Prober checks that a gate is reachable.
type Prober interface {
	Ping(ctx context.Context, gateID string) error
}

// Controller pings and opens gates. Ping must succeed before Open is tried.
type Controller interface {
	Prober
	Open(ctx context.Context, gateID string) error
}

// HTTPController talks to the gate controller's REST endpoints.
type HTTPController struct {
	baseURL     string
	httpClient  *http.Client
	pingTimeout time.Duration
	openTimeout time.Duration
}

var _ Controller = (*HTTPController)(nil)

// NewHTTPController creates a controller for baseURL (e.g. "http://gates.local:8080").
func NewHTTPController(baseURL string, pingTimeout, openTimeout time.Duration) *HTTPController {
	return &HTTPController{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{},
		pingTimeout: pingTimeout,
		openTimeout: openTimeout,
	}
}

// Ping sends GET /gates/{id}/ping. Any failure to get a 2xx acknowledgement,
// including a timeout, is reported as ErrNoAck.
func (c *HTTPController) Ping(ctx context.Context, gateID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	status, body, err := c.do(ctx, http.MethodGet, gateID, "ping")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoAck, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: HTTP %d", ErrNoAck, status)
	}

	// Controllers that answer with a body may report ack=false.
	var ack struct {
		Ack *bool `json:"ack"`
	}
	if json.Unmarshal(body, &ack) == nil && ack.Ack != nil && !*ack.Ack {
		return ErrNoAck
	}
	return nil
}

// Open sends POST /gates/{id}/open.
func (c *HTTPController) Open(ctx context.Context, gateID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.openTimeout)
	defer cancel()

	status, body, err := c.do(ctx, http.MethodPost, gateID, "open")
	if err != nil {
		return fmt.Errorf("sending open: %w", err)
	}
	if status < 200 || status > 299 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(status)
		}
		return fmt.Errorf("open rejected: HTTP %d: %s", status, msg)
	}
	return nil
}

func (c *HTTPController) do(ctx context.Context, method, gateID, action string) (int, []byte, error) {
	u := c.baseURL + "/gates/" + url.PathEscape(gateID) + "/" + action
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// WithProbe returns a Controller that pings through probe and opens through opener.
func WithProbe(probe Prober, opener Controller) Controller {
	return &probed{probe: probe, Controller: opener}
}

type probed struct {
	probe Prober
	Controller
}

func (p *probed) Ping(ctx context.Context, gateID string) error {
	return p.probe.Ping(ctx, gateID)
}
