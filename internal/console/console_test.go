// ABOUTME: End-to-end scenarios for the console core
// ABOUTME: Drives transport events and operator operations against fakes

package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/gate-console/internal/apiclient"
	"github.com/2389/gate-console/internal/callerr"
	"github.com/2389/gate-console/internal/dedupe"
	"github.com/2389/gate-console/internal/gatectl"
	"github.com/2389/gate-console/internal/identity"
	"github.com/2389/gate-console/internal/notify"
	"github.com/2389/gate-console/internal/resolve"
	"github.com/2389/gate-console/internal/session"
	"github.com/2389/gate-console/internal/store"
)

// fakeTransport runs handler callbacks on its Run goroutine, like the real ones.
type fakeTransport struct {
	handler *Console
	steps   chan func(ctx context.Context)

	mu         sync.Mutex
	connected  bool
	registered []int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{steps: make(chan func(ctx context.Context))}
}

func (f *fakeTransport) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case step := <-f.steps:
			step(ctx)
		}
	}
}

// do runs step on the transport goroutine and waits for it.
func (f *fakeTransport) do(t *testing.T, step func(ctx context.Context)) {
	t.Helper()
	done := make(chan struct{})
	select {
	case f.steps <- func(ctx context.Context) { step(ctx); close(done) }:
	case <-time.After(5 * time.Second):
		t.Fatal("transport not running")
	}
	<-done
}

func (f *fakeTransport) connect(t *testing.T) {
	f.do(t, func(ctx context.Context) {
		f.mu.Lock()
		f.connected = true
		f.mu.Unlock()
		f.handler.OnConnected(ctx)
	})
}

func (f *fakeTransport) disconnect(t *testing.T) {
	f.do(t, func(ctx context.Context) {
		f.mu.Lock()
		f.connected = false
		f.mu.Unlock()
		f.handler.OnDisconnected(ctx)
	})
}

func (f *fakeTransport) gateStatus(t *testing.T, evt session.CallEvent) {
	f.do(t, func(ctx context.Context) { f.handler.OnGateStatus(ctx, evt) })
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Register(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return errors.New("not connected")
	}
	f.registered = append(f.registered, id)
	return nil
}

func (f *fakeTransport) registrations() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.registered...)
}

type fakeGates struct {
	mu      sync.Mutex
	pingErr error
	opened  []string
}

func (g *fakeGates) Ping(context.Context, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pingErr
}

func (g *fakeGates) Open(_ context.Context, gateID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.opened = append(g.opened, gateID)
	return nil
}

type fakeIssues struct {
	mu    sync.Mutex
	count int
}

func (f *fakeIssues) CreateIssue(context.Context, apiclient.IssueRecord) (apiclient.IssueRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return apiclient.IssueRef{ID: "1"}, nil
}

// countingNotifier counts deliveries per kind.
type countingNotifier struct {
	mu      sync.Mutex
	kinds   []notify.Kind
	reasons []session.Reason
}

func (n *countingNotifier) Name() string { return "counting" }

func (n *countingNotifier) Notify(_ context.Context, evt notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, evt.Kind)
	if evt.Kind == notify.KindCleared {
		n.reasons = append(n.reasons, evt.Reason)
	}
	return nil
}

func (n *countingNotifier) snapshot() ([]notify.Kind, []session.Reason) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Kind(nil), n.kinds...), append([]session.Reason(nil), n.reasons...)
}

type harness struct {
	console   *Console
	transport *fakeTransport
	gates     *fakeGates
	issues    *fakeIssues
	store     *store.MockStore
	notes     *countingNotifier
	dispatch  *notify.Dispatcher
}

func newHarness(t *testing.T, persisted int) *harness {
	t.Helper()

	st := store.NewMockStore()
	if persisted != 0 {
		require.NoError(t, st.SetAgentID(context.Background(), persisted))
	}

	dispatch := notify.NewDispatcher(nil, 0)
	notes := &countingNotifier{}
	require.NoError(t, dispatch.Register(notes))
	require.NoError(t, dispatch.Register(notify.NewCallLog(st)))

	window := dedupe.New(time.Minute, 100)
	t.Cleanup(window.Close)

	coord := session.NewCoordinator(session.Options{
		Observers: []session.Observer{dispatch},
		Window:    window,
	})
	tr := newFakeTransport()
	ident := identity.New([]int{1, 2, 3}, st, tr, nil)
	gates := &fakeGates{}
	issues := &fakeIssues{}
	wf := resolve.New(resolve.Config{
		Coordinator: coord,
		Issues:      issues,
		Gates:       gates,
		Journal:     st,
	})

	c := New(Deps{Coordinator: coord, Identity: ident, Workflows: wf})
	tr.handler = c

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, tr) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	return &harness{console: c, transport: tr, gates: gates, issues: issues, store: st, notes: notes, dispatch: dispatch}
}

// settle flushes the notification workers.
func (h *harness) settle() {
	h.dispatch.Close()
}

func TestScenario_EndCallWhenIdle(t *testing.T) {
	h := newHarness(t, 0)

	require.NoError(t, h.console.EndCall(context.Background()))
	_, ok := h.console.Current()
	assert.False(t, ok)
}

func TestScenario_AdmitAndReplace(t *testing.T) {
	h := newHarness(t, 0)
	h.transport.connect(t)

	h.transport.gateStatus(t, session.CallEvent{GateID: "G1"})
	cur, ok := h.console.Current()
	require.True(t, ok)
	assert.Equal(t, "G1", cur.Event.GateID)
	assert.Equal(t, session.StatusActive, cur.Status)

	h.transport.gateStatus(t, session.CallEvent{GateID: "G2"})
	cur, ok = h.console.Current()
	require.True(t, ok)
	assert.Equal(t, "G2", cur.Event.GateID)
	assert.Empty(t, h.gates.opened, "no resolution attempted on replaced call")

	h.settle()
	kinds, reasons := h.notes.snapshot()
	assert.Equal(t, []notify.Kind{notify.KindAdmitted, notify.KindCleared, notify.KindAdmitted}, kinds)
	assert.Equal(t, []session.Reason{session.ReasonReplaced}, reasons)
}

func TestScenario_DuplicateGateEventNotifiesOnce(t *testing.T) {
	h := newHarness(t, 0)

	evt := session.CallEvent{GateID: "G1", PhotoIn: "in.jpg"}
	h.transport.gateStatus(t, evt)
	h.transport.gateStatus(t, evt)

	h.settle()
	kinds, _ := h.notes.snapshot()
	assert.Equal(t, []notify.Kind{notify.KindAdmitted}, kinds)
}

func TestScenario_LogIssueValidation(t *testing.T) {
	h := newHarness(t, 0)
	h.transport.gateStatus(t, session.CallEvent{GateID: "G1"})
	before, _ := h.console.Current()

	_, err := h.console.LogIssue(context.Background(), resolve.Form{CategoryID: "", Description: "x"})
	assert.True(t, callerr.IsValidation(err))
	assert.Zero(t, h.issues.count)

	after, ok := h.console.Current()
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestScenario_PingTimeoutKeepsCall(t *testing.T) {
	h := newHarness(t, 0)
	h.gates.pingErr = gatectl.ErrNoAck
	h.transport.gateStatus(t, session.CallEvent{GateID: "G2"})

	err := h.console.ActuateGate(context.Background(), "3")
	var herr *callerr.HardwareUnreachableError
	require.ErrorAs(t, err, &herr)

	cur, ok := h.console.Current()
	require.True(t, ok)
	assert.Equal(t, "G2", cur.Event.GateID)
	assert.Empty(t, h.gates.opened)
}

func TestScenario_ActuationEndsCall(t *testing.T) {
	h := newHarness(t, 0)
	h.transport.gateStatus(t, session.CallEvent{GateID: "G2", Gate: "South Exit"})

	require.NoError(t, h.console.ActuateGate(context.Background(), "3"))
	_, ok := h.console.Current()
	assert.False(t, ok)
	assert.Equal(t, []string{"G2"}, h.gates.opened)

	h.settle()
	calls, err := h.store.ListCalls(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "actuation", calls[0].Reason)
	assert.Equal(t, "South Exit", calls[0].Gate)
}

func TestActuateSession_ReplacedCallIsNotOpened(t *testing.T) {
	h := newHarness(t, 0)
	h.transport.gateStatus(t, session.CallEvent{GateID: "G1"})
	seen, ok := h.console.Current()
	require.True(t, ok)

	// A newer call lands before the operator confirms.
	h.transport.gateStatus(t, session.CallEvent{GateID: "G2"})

	err := h.console.ActuateSession(context.Background(), seen.ID, "3")
	assert.ErrorIs(t, err, session.ErrNoActiveCall)
	assert.Empty(t, h.gates.opened)

	cur, ok := h.console.Current()
	require.True(t, ok)
	assert.Equal(t, "G2", cur.Event.GateID)
}

func TestDisconnectDiscardsCall(t *testing.T) {
	h := newHarness(t, 0)
	h.transport.connect(t)
	h.transport.gateStatus(t, session.CallEvent{GateID: "G1"})

	h.transport.disconnect(t)
	_, ok := h.console.Current()
	assert.False(t, ok)

	h.settle()
	_, reasons := h.notes.snapshot()
	assert.Equal(t, []session.Reason{session.ReasonDisconnect}, reasons)
}

func TestReconnectKeepsCallAndRegistersOnce(t *testing.T) {
	h := newHarness(t, 2)

	h.transport.connect(t)
	assert.Equal(t, []int{2}, h.transport.registrations())

	h.transport.gateStatus(t, session.CallEvent{GateID: "G1"})

	// A reconnect that never reported a disconnect keeps the call.
	h.transport.connect(t)
	assert.Equal(t, []int{2, 2}, h.transport.registrations())

	cur, ok := h.console.Current()
	require.True(t, ok)
	assert.Equal(t, "G1", cur.Event.GateID)
}

func TestNoRegisterWithoutAgent(t *testing.T) {
	h := newHarness(t, 0)

	h.transport.connect(t)
	assert.Empty(t, h.transport.registrations())

	require.NoError(t, h.console.SetAgent(context.Background(), 1))
	assert.Equal(t, []int{1}, h.transport.registrations())

	id, ok := h.console.Agent()
	assert.True(t, ok)
	assert.Equal(t, 1, id)
}

func TestSetAgentOutOfRange(t *testing.T) {
	h := newHarness(t, 0)

	err := h.console.SetAgent(context.Background(), 7)
	assert.True(t, callerr.IsValidation(err))
	_, ok := h.console.Agent()
	assert.False(t, ok)
}

func TestRestoresPersistedAgent(t *testing.T) {
	h := newHarness(t, 3)

	// Run restores before the transport starts; connecting proves it.
	h.transport.connect(t)
	id, ok := h.console.Agent()
	assert.True(t, ok)
	assert.Equal(t, 3, id)
}

func TestEndCallByOperator(t *testing.T) {
	h := newHarness(t, 0)
	h.transport.gateStatus(t, session.CallEvent{GateID: "G1"})

	require.NoError(t, h.console.EndCall(context.Background()))
	require.NoError(t, h.console.EndCall(context.Background()))

	h.settle()
	_, reasons := h.notes.snapshot()
	assert.Equal(t, []session.Reason{session.ReasonOperator}, reasons)
}
