// ABOUTME: Owns the single live call slot and arbitrates every transition.
// ABOUTME: All slot mutation happens on one loop goroutine fed by a request channel.

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/2389/gate-console/internal/dedupe"
)

var (
	// ErrNoActiveCall indicates the slot is idle.
	ErrNoActiveCall = errors.New("no active call")

	// ErrResolutionInFlight indicates the current call is already resolving.
	ErrResolutionInFlight = errors.New("resolution already in progress")

	// ErrStopped indicates the coordinator loop is not running anymore.
	ErrStopped = errors.New("coordinator stopped")
)

type op int

const (
	opAdmit op = iota
	opBegin
	opBeginFor
	opAbort
	opEndCurrent
	opEndSession
)

type request struct {
	op     op
	event  CallEvent
	id     string
	reason Reason
	reply  chan reply
}

type reply struct {
	session Session
	changed bool
	err     error
}

// Options configures a Coordinator.
type Options struct {
	// Observers are notified of admissions and clears.
	Observers []Observer
	// Window recognizes re-raised events. Nil disables re-raise detection.
	Window *dedupe.Window
	Logger *slog.Logger
	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Coordinator holds at most one Session. Idle is the zero state.
type Coordinator struct {
	requests  chan request
	done      chan struct{}
	running   atomic.Bool
	observers []Observer
	window    *dedupe.Window
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger

	// slot is owned by the loop; snapshot mirrors it for lock-free reads.
	slot     *Session
	snapshot atomic.Pointer[Session]
}

// NewCoordinator creates an idle Coordinator. Run must be started before
// any operation other than Current.
func NewCoordinator(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Coordinator{
		requests:  make(chan request),
		done:      make(chan struct{}),
		observers: opts.Observers,
		window:    opts.Window,
		now:       now,
		newID:     newID,
		logger:    logger.With("component", "coordinator"),
	}
}

// Run processes requests until ctx is cancelled. It must be called once.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("coordinator already running")
	}
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-c.requests:
			req.reply <- c.step(req)
		}
	}
}

// Admit installs evt as the live call, replacing any existing one, and
// notifies observers once. A re-raise of the call already in the slot is not
// re-admitted; the existing session is returned with admitted=false.
func (c *Coordinator) Admit(ctx context.Context, evt CallEvent) (s Session, admitted bool, err error) {
	r, err := c.send(ctx, request{op: opAdmit, event: evt})
	return r.session, r.changed, err
}

// BeginResolution marks the current call Resolving and returns it. The
// returned session ID is what the resolution must target when it finishes.
func (c *Coordinator) BeginResolution(ctx context.Context) (Session, error) {
	r, err := c.send(ctx, request{op: opBegin})
	if err != nil {
		return Session{}, err
	}
	return r.session, r.err
}

// BeginResolutionFor is BeginResolution restricted to session id. It returns
// ErrNoActiveCall if the slot is idle or now holds another call.
func (c *Coordinator) BeginResolutionFor(ctx context.Context, id string) (Session, error) {
	r, err := c.send(ctx, request{op: opBeginFor, id: id})
	if err != nil {
		return Session{}, err
	}
	return r.session, r.err
}

// AbortResolution returns session id to Active if it still owns the slot.
// It reports whether anything changed.
func (c *Coordinator) AbortResolution(ctx context.Context, id string) (bool, error) {
	r, err := c.send(ctx, request{op: opAbort, id: id})
	return r.changed, err
}

// EndCall clears whatever call is live. Ending an idle slot is a no-op.
func (c *Coordinator) EndCall(ctx context.Context, reason Reason) (bool, error) {
	r, err := c.send(ctx, request{op: opEndCurrent, reason: reason})
	return r.changed, err
}

// End clears the call only if session id still owns the slot, so a stale
// resolution can never close a newer call.
func (c *Coordinator) End(ctx context.Context, id string, reason Reason) (bool, error) {
	r, err := c.send(ctx, request{op: opEndSession, id: id, reason: reason})
	return r.changed, err
}

// Current returns a snapshot of the live call, if any.
func (c *Coordinator) Current() (Session, bool) {
	s := c.snapshot.Load()
	if s == nil {
		return Session{}, false
	}
	return *s, true
}

func (c *Coordinator) send(ctx context.Context, req request) (reply, error) {
	req.reply = make(chan reply, 1)
	select {
	case c.requests <- req:
	case <-c.done:
		return reply{}, ErrStopped
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
	// The loop always answers a request it has accepted.
	return <-req.reply, nil
}

// step is the transition function. It runs only on the loop goroutine.
func (c *Coordinator) step(req request) reply {
	switch req.op {
	case opAdmit:
		return c.admit(req.event)

	case opBegin, opBeginFor:
		if c.slot == nil || (req.op == opBeginFor && c.slot.ID != req.id) {
			return reply{err: ErrNoActiveCall}
		}
		if c.slot.Status == StatusResolving {
			return reply{session: *c.slot, err: ErrResolutionInFlight}
		}
		c.slot.Status = StatusResolving
		c.publish()
		c.logger.Debug("resolution started", "session_id", c.slot.ID, "gate_id", c.slot.Event.GateID)
		return reply{session: *c.slot, changed: true}

	case opAbort:
		if c.slot == nil || c.slot.ID != req.id || c.slot.Status != StatusResolving {
			return reply{}
		}
		c.slot.Status = StatusActive
		c.publish()
		return reply{session: *c.slot, changed: true}

	case opEndCurrent:
		if c.slot == nil {
			return reply{}
		}
		return reply{session: c.end(req.reason), changed: true}

	case opEndSession:
		if c.slot == nil || c.slot.ID != req.id {
			if c.slot != nil {
				c.logger.Debug("ignoring close for superseded call",
					"session_id", req.id,
					"current_session_id", c.slot.ID,
					"reason", req.reason,
				)
			}
			return reply{}
		}
		return reply{session: c.end(req.reason), changed: true}
	}
	return reply{}
}

func (c *Coordinator) admit(evt CallEvent) reply {
	fp := evt.Fingerprint()
	if c.window != nil {
		repeat := c.window.CheckAndMark(fp)
		if repeat && c.slot != nil && c.slot.Event.Fingerprint() == fp {
			c.logger.Debug("gate re-raised live call", "session_id", c.slot.ID, "gate_id", evt.GateID)
			return reply{session: *c.slot}
		}
	}

	if c.slot != nil {
		c.logger.Warn("call replaced by newer admission",
			"session_id", c.slot.ID,
			"gate_id", c.slot.Event.GateID,
			"new_gate_id", evt.GateID,
		)
		c.clear(ReasonReplaced)
	}

	s := &Session{
		ID:         c.newID(),
		Event:      evt,
		AdmittedAt: c.now(),
		Status:     StatusActive,
	}
	c.slot = s
	c.publish()

	c.logger.Info("=== CALL ADMITTED ===",
		"session_id", s.ID,
		"gate_id", evt.GateID,
		"gate", evt.Label(),
		"location", evt.Location.Name,
	)
	for _, o := range c.observers {
		o.OnAdmitted(*s)
	}
	return reply{session: *s, changed: true}
}

// end closes the live call and forgets its fingerprint, so the gate raising
// again after the close is a new call. Replacement goes through clear only:
// the incoming event's mark must survive.
func (c *Coordinator) end(reason Reason) Session {
	closed := c.clear(reason)
	if c.window != nil {
		c.window.Forget(closed.Event.Fingerprint())
	}
	return closed
}

func (c *Coordinator) clear(reason Reason) Session {
	closed := *c.slot
	c.slot = nil
	c.publish()

	c.logger.Info("=== CALL CLEARED ===",
		"session_id", closed.ID,
		"gate_id", closed.Event.GateID,
		"reason", reason,
		"duration", c.now().Sub(closed.AdmittedAt).Round(time.Second),
	)
	for _, o := range c.observers {
		o.OnCleared(closed, reason)
	}
	return closed
}

func (c *Coordinator) publish() {
	if c.slot == nil {
		c.snapshot.Store(nil)
		return
	}
	cp := *c.slot
	c.snapshot.Store(&cp)
}
