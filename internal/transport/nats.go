// ABOUTME: NATS implementation of the transport channel
// ABOUTME: Subscribes to gate status, publishes register, maps reconnects to handler events

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	natsEventBuffer      = 64
	registerFlushTimeout = 5 * time.Second
)

// NATSConfig configures the NATS transport.
type NATSConfig struct {
	URL             string
	GateSubject     string
	RegisterSubject string
	ReconnectWait   time.Duration
}

// NATS delivers gate events from a NATS subject. Callbacks from the client
// library are funnelled through one channel and handled on Run's goroutine.
type NATS struct {
	cfg     NATSConfig
	handler Handler
	events  chan event
	logger  *slog.Logger

	mu   sync.RWMutex
	conn *nats.Conn
}

var _ Transport = (*NATS)(nil)

// NewNATS creates a NATS transport. Pass nil logger for default.
func NewNATS(cfg NATSConfig, h Handler, logger *slog.Logger) *NATS {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = time.Second
	}
	return &NATS{
		cfg:     cfg,
		handler: h,
		events:  make(chan event, natsEventBuffer),
		logger:  logger.With("component", "transport", "kind", "nats"),
	}
}

// Run connects, retrying until the first connection succeeds, then handles
// events until ctx is cancelled.
func (t *NATS) Run(ctx context.Context) error {
	nc, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer nc.Close()

	sub, err := nc.Subscribe(t.cfg.GateSubject, func(msg *nats.Msg) {
		evt, err := decodeGateStatus(msg.Data)
		if err != nil {
			t.logger.Warn("dropping malformed gate status", "subject", msg.Subject, "error", err)
			return
		}
		t.emit(ctx, event{kind: kindGateStatus, call: evt})
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", t.cfg.GateSubject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()
	if err := nc.Flush(); err != nil {
		return fmt.Errorf("flushing subscription: %w", err)
	}

	t.mu.Lock()
	t.conn = nc
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
	}()

	t.logger.Info("connected", "url", nc.ConnectedUrlRedacted(), "subject", t.cfg.GateSubject)

	d := &dispatcher{handler: t.handler, logger: t.logger}
	d.dispatch(ctx, event{kind: kindConnected})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-t.events:
			d.dispatch(ctx, e)
		}
	}
}

func (t *NATS) connect(ctx context.Context) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("gate-console"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(t.cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			t.logger.Warn("disconnected", "error", err)
			t.emit(ctx, event{kind: kindDisconnected})
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			t.logger.Info("reconnected", "url", c.ConnectedUrlRedacted())
			t.emit(ctx, event{kind: kindConnected})
		}),
	}

	wait := t.cfg.ReconnectWait
	for {
		nc, err := nats.Connect(t.cfg.URL, opts...)
		if err == nil {
			return nc, nil
		}
		t.logger.Warn("connect failed, retrying", "url", t.cfg.URL, "error", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, 30*time.Second)
	}
}

func (t *NATS) emit(ctx context.Context, e event) {
	select {
	case t.events <- e:
	case <-ctx.Done():
	}
}

// Connected reports whether the client currently has a live connection.
func (t *NATS) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn != nil && t.conn.IsConnected()
}

// Register publishes {"agentId": n} on the register subject.
func (t *NATS) Register(ctx context.Context, agentID int) error {
	t.mu.RLock()
	nc := t.conn
	t.mu.RUnlock()
	if nc == nil || !nc.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(registerPayload{AgentID: agentID})
	if err != nil {
		return fmt.Errorf("marshaling register: %w", err)
	}
	if err := nc.Publish(t.cfg.RegisterSubject, data); err != nil {
		return fmt.Errorf("publishing register: %w", err)
	}
	fctx, cancel := context.WithTimeout(ctx, registerFlushTimeout)
	defer cancel()
	if err := nc.FlushWithContext(fctx); err != nil {
		return fmt.Errorf("flushing register: %w", err)
	}
	return nil
}
