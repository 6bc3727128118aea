// ABOUTME: Transport channel contract shared by the NATS and WebSocket implementations
// ABOUTME: Defines the handler callbacks and the gate-status and register payloads

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/gate-console/internal/session"
)

// ErrNotConnected is returned when sending while the channel is down.
var ErrNotConnected = errors.New("transport not connected")

// Event names on the wire.
const (
	EventGateStatus = "gate-status-update"
	EventRegister   = "register"
)

// Handler receives transport events. Calls are made from a single goroutine.
// Gate status is only delivered between OnConnected and OnDisconnected.
type Handler interface {
	OnConnected(ctx context.Context)
	OnDisconnected(ctx context.Context)
	OnGateStatus(ctx context.Context, evt session.CallEvent)
}

// Transport is a persistent, auto-reconnecting channel to the gate network.
type Transport interface {
	// Run connects and delivers events to the handler until ctx is cancelled.
	Run(ctx context.Context) error
	Connected() bool
	// Register announces the operator's agent id.
	Register(ctx context.Context, agentID int) error
}

type registerPayload struct {
	AgentID int `json:"agentId"`
}

// looseString accepts a JSON string or number. Gates in the field send ids
// both ways.
type looseString string

func (l *looseString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = looseString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*l = looseString(n.String())
	return nil
}

// looseLocation accepts a location object or a bare location name.
type looseLocation session.Location

func (l *looseLocation) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*l = looseLocation{Name: name}
		return nil
	}
	var obj struct {
		ID      looseString `json:"id"`
		Name    looseString `json:"name"`
		Address looseString `json:"address"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	*l = looseLocation{ID: string(obj.ID), Name: string(obj.Name), Address: string(obj.Address)}
	return nil
}

// gateStatusWire is the gate-status-update payload as gates send it.
type gateStatusWire struct {
	GateID   looseString   `json:"gateId"`
	Gate     looseString   `json:"gate"`
	Location looseLocation `json:"location"`
	PhotoIn  looseString   `json:"photoIn"`
	PhotoOut looseString   `json:"photoOut"`
	Capture  looseString   `json:"capture"`
}

// decodeGateStatus parses a gate-status-update payload. Only a missing
// gateId is fatal; everything else is normalized.
func decodeGateStatus(data []byte) (session.CallEvent, error) {
	var w gateStatusWire
	if err := json.Unmarshal(data, &w); err != nil {
		return session.CallEvent{}, fmt.Errorf("decoding gate status: %w", err)
	}
	evt := session.CallEvent{
		GateID:   strings.TrimSpace(string(w.GateID)),
		Gate:     strings.TrimSpace(string(w.Gate)),
		Location: session.Location(w.Location),
		PhotoIn:  string(w.PhotoIn),
		PhotoOut: string(w.PhotoOut),
		Capture:  string(w.Capture),
	}
	if evt.GateID == "" {
		return session.CallEvent{}, errors.New("gate status without gateId")
	}
	return evt, nil
}

type eventKind int

const (
	kindConnected eventKind = iota + 1
	kindDisconnected
	kindGateStatus
)

type event struct {
	kind eventKind
	call session.CallEvent
}

// dispatcher forwards events to a Handler and drops repeated
// connected/disconnected notifications so each edge is reported once.
type dispatcher struct {
	handler   Handler
	logger    *slog.Logger
	connected bool
}

func (d *dispatcher) dispatch(ctx context.Context, e event) {
	switch e.kind {
	case kindConnected:
		if d.connected {
			return
		}
		d.connected = true
		d.handler.OnConnected(ctx)
	case kindDisconnected:
		if !d.connected {
			return
		}
		d.connected = false
		d.handler.OnDisconnected(ctx)
	case kindGateStatus:
		// Messages buffered before a disconnect can arrive after it.
		if !d.connected {
			if d.logger != nil {
				d.logger.Debug("dropping gate status received while disconnected", "gate_id", e.call.GateID)
			}
			return
		}
		d.handler.OnGateStatus(ctx, e.call)
	}
}
