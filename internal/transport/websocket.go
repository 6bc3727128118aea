// ABOUTME: WebSocket implementation of the transport channel using coder/websocket
// ABOUTME: JSON frames {"event","data"}; reconnects with exponential backoff

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// frame is one socket message.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WebSocketConfig configures the WebSocket transport.
type WebSocketConfig struct {
	URL        string
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// WebSocket keeps one socket open to the event server, redialing on loss.
type WebSocket struct {
	cfg     WebSocketConfig
	handler Handler
	logger  *slog.Logger

	mu   sync.RWMutex
	conn *websocket.Conn
}

var _ Transport = (*WebSocket)(nil)

// NewWebSocket creates a WebSocket transport. Pass nil logger for default.
func NewWebSocket(cfg WebSocketConfig, h Handler, logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &WebSocket{
		cfg:     cfg,
		handler: h,
		logger:  logger.With("component", "transport", "kind", "websocket"),
	}
}

// Run dials and reads frames until ctx is cancelled. Every established
// connection produces exactly one connected and, when it ends, one
// disconnected callback.
func (t *WebSocket) Run(ctx context.Context) error {
	d := &dispatcher{handler: t.handler, logger: t.logger}
	backoff := t.cfg.MinBackoff

	for {
		conn, _, err := websocket.Dial(ctx, t.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.logger.Warn("dial failed, retrying", "url", t.cfg.URL, "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, t.cfg.MaxBackoff)
			continue
		}
		backoff = t.cfg.MinBackoff

		t.setConn(conn)
		t.logger.Info("connected", "url", t.cfg.URL)
		d.dispatch(ctx, event{kind: kindConnected})

		err = t.readLoop(ctx, conn, d)
		t.setConn(nil)
		conn.CloseNow()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.logger.Warn("disconnected", "error", err)
		d.dispatch(ctx, event{kind: kindDisconnected})

		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
	}
}

func (t *WebSocket) readLoop(ctx context.Context, conn *websocket.Conn, d *dispatcher) error {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return err
		}
		switch f.Event {
		case EventGateStatus:
			evt, err := decodeGateStatus(f.Data)
			if err != nil {
				t.logger.Warn("dropping malformed gate status", "error", err)
				continue
			}
			d.dispatch(ctx, event{kind: kindGateStatus, call: evt})
		default:
			t.logger.Debug("ignoring frame", "event", f.Event)
		}
	}
}

func (t *WebSocket) setConn(c *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn = c
}

// Connected reports whether a socket is currently open.
func (t *WebSocket) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn != nil
}

// Register sends a register frame.
func (t *WebSocket) Register(ctx context.Context, agentID int) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(registerPayload{AgentID: agentID})
	if err != nil {
		return fmt.Errorf("marshaling register: %w", err)
	}
	if err := wsjson.Write(ctx, conn, frame{Event: EventRegister, Data: data}); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("sending register: %w", err)
	}
	return nil
}

// sleep waits d or until ctx is done. It reports whether the wait completed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
