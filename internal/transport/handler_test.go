// ABOUTME: Shared test helpers for transport tests
// ABOUTME: A recording Handler that exposes callbacks as channels

package transport

import (
	"context"
	"testing"
	"time"

	"github.com/2389/gate-console/internal/session"
)

// recordingHandler forwards every callback to a channel.
type recordingHandler struct {
	connected    chan struct{}
	disconnected chan struct{}
	gates        chan session.CallEvent
	// onConnected runs inside OnConnected when set.
	onConnected func(ctx context.Context)
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		connected:    make(chan struct{}, 8),
		disconnected: make(chan struct{}, 8),
		gates:        make(chan session.CallEvent, 8),
	}
}

func (h *recordingHandler) OnConnected(ctx context.Context) {
	if h.onConnected != nil {
		h.onConnected(ctx)
	}
	h.connected <- struct{}{}
}

func (h *recordingHandler) OnDisconnected(context.Context) {
	h.disconnected <- struct{}{}
}

func (h *recordingHandler) OnGateStatus(_ context.Context, evt session.CallEvent) {
	h.gates <- evt
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

func expectNone[T any](t *testing.T, ch <-chan T, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("unexpected %s", what)
	case <-time.After(100 * time.Millisecond):
	}
}

// runTransport runs tr in the background and stops it on cleanup.
func runTransport(t *testing.T, tr Transport) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tr.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}
