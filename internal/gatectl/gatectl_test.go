// ABOUTME: Tests for the HTTP gate controller and probe composition
// ABOUTME: Gate hardware is faked with an httptest server

package gatectl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGate answers the gate endpoints for a single gate id.
type fakeGate struct {
	pingStatus int
	pingBody   string
	pingDelay  time.Duration
	openStatus int
	pings      atomic.Int32
	opens      atomic.Int32
}

func (g *fakeGate) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gates/{id}/ping", func(w http.ResponseWriter, r *http.Request) {
		g.pings.Add(1)
		if g.pingDelay > 0 {
			select {
			case <-time.After(g.pingDelay):
			case <-r.Context().Done():
				return
			}
		}
		if g.pingStatus != 0 {
			w.WriteHeader(g.pingStatus)
		}
		_, _ = w.Write([]byte(g.pingBody))
	})
	mux.HandleFunc("POST /gates/{id}/open", func(w http.ResponseWriter, r *http.Request) {
		g.opens.Add(1)
		if g.openStatus != 0 {
			http.Error(w, "barrier jammed", g.openStatus)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newTestController(t *testing.T, g *fakeGate) *HTTPController {
	t.Helper()
	srv := httptest.NewServer(g.handler())
	t.Cleanup(srv.Close)
	return NewHTTPController(srv.URL, 200*time.Millisecond, time.Second)
}

func TestPing_Ack(t *testing.T) {
	g := &fakeGate{}
	c := newTestController(t, g)

	require.NoError(t, c.Ping(context.Background(), "G1"))
	assert.Equal(t, int32(1), g.pings.Load())
}

func TestPing_AckFalse(t *testing.T) {
	c := newTestController(t, &fakeGate{pingBody: `{"ack":false}`})

	err := c.Ping(context.Background(), "G1")
	assert.ErrorIs(t, err, ErrNoAck)
}

func TestPing_Timeout(t *testing.T) {
	c := newTestController(t, &fakeGate{pingDelay: 2 * time.Second})

	start := time.Now()
	err := c.Ping(context.Background(), "G1")
	assert.ErrorIs(t, err, ErrNoAck)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPing_ServerError(t *testing.T) {
	c := newTestController(t, &fakeGate{pingStatus: http.StatusServiceUnavailable})

	err := c.Ping(context.Background(), "G1")
	assert.ErrorIs(t, err, ErrNoAck)
}

func TestPing_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewHTTPController(url, time.Second, time.Second).Ping(context.Background(), "G1")
	assert.ErrorIs(t, err, ErrNoAck)
}

func TestOpen(t *testing.T) {
	g := &fakeGate{}
	c := newTestController(t, g)

	require.NoError(t, c.Open(context.Background(), "G1"))
	assert.Equal(t, int32(1), g.opens.Load())
}

func TestOpen_Rejected(t *testing.T) {
	c := newTestController(t, &fakeGate{openStatus: http.StatusConflict})

	err := c.Open(context.Background(), "G1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoAck)
	assert.Contains(t, err.Error(), "barrier jammed")
}

type stubProber struct {
	err   error
	calls int
}

func (s *stubProber) Ping(context.Context, string) error {
	s.calls++
	return s.err
}

func TestWithProbe(t *testing.T) {
	g := &fakeGate{pingStatus: http.StatusInternalServerError}
	probe := &stubProber{}
	c := WithProbe(probe, newTestController(t, g))

	require.NoError(t, c.Ping(context.Background(), "G1"))
	assert.Equal(t, 1, probe.calls)
	assert.Zero(t, g.pings.Load())

	require.NoError(t, c.Open(context.Background(), "G1"))
	assert.Equal(t, int32(1), g.opens.Load())

	probe.err = errors.New("probe down")
	assert.Error(t, c.Ping(context.Background(), "G1"))
}
