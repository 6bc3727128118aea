// ABOUTME: Wires the coordinator, identity, and resolution workflows behind one surface
// ABOUTME: Handles transport events and exposes the operator operations

package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/2389/gate-console/internal/apiclient"
	"github.com/2389/gate-console/internal/identity"
	"github.com/2389/gate-console/internal/resolve"
	"github.com/2389/gate-console/internal/session"
	"github.com/2389/gate-console/internal/transport"
)

// Console is the operator-facing core. It implements transport.Handler.
type Console struct {
	coord     *session.Coordinator
	identity  *identity.Store
	workflows *resolve.Workflows
	logger    *slog.Logger
}

var _ transport.Handler = (*Console)(nil)

// Deps are the collaborators a Console drives.
type Deps struct {
	Coordinator *session.Coordinator
	Identity    *identity.Store
	Workflows   *resolve.Workflows
	Logger      *slog.Logger
}

// New creates a Console.
func New(d Deps) *Console {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		coord:     d.Coordinator,
		identity:  d.Identity,
		workflows: d.Workflows,
		logger:    logger.With("component", "console"),
	}
}

// Run restores the agent identity, then runs the coordinator and the
// transport until ctx is cancelled or either fails.
func (c *Console) Run(ctx context.Context, tr transport.Transport) error {
	if id, ok := c.identity.Restore(ctx); ok {
		c.logger.Info("operating as agent", "agent_id", id)
	} else {
		c.logger.Warn("no agent id set; choose one before taking calls", "allowed", c.identity.Allowed())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.coord.Run(gctx)
	})
	g.Go(func() error {
		return tr.Run(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// OnConnected re-announces the agent. The live call, if any, is kept.
func (c *Console) OnConnected(ctx context.Context) {
	c.logger.Info("transport connected")
	c.identity.OnConnected(ctx)
}

// OnDisconnected force-closes the live call without resolving it.
func (c *Console) OnDisconnected(ctx context.Context) {
	closed, err := c.coord.EndCall(ctx, session.ReasonDisconnect)
	if err != nil {
		c.logger.Debug("could not clear call on disconnect", "error", err)
		return
	}
	if closed {
		c.logger.Warn("transport lost; live call discarded")
	} else {
		c.logger.Info("transport disconnected")
	}
}

// OnGateStatus admits a gate's help request.
func (c *Console) OnGateStatus(ctx context.Context, evt session.CallEvent) {
	if _, _, err := c.coord.Admit(ctx, evt); err != nil {
		c.logger.Warn("could not admit call", "gate_id", evt.GateID, "error", err)
	}
}

// Current returns the live call.
func (c *Console) Current() (session.Session, bool) {
	return c.coord.Current()
}

// EndCall closes the live call on the operator's request. Closing an idle
// console is a no-op.
func (c *Console) EndCall(ctx context.Context) error {
	_, err := c.coord.EndCall(ctx, session.ReasonOperator)
	return err
}

// LogIssue submits an issue for the live call. It never closes the call.
func (c *Console) LogIssue(ctx context.Context, form resolve.Form) (apiclient.IssueRef, error) {
	return c.workflows.LogIssue(ctx, form)
}

// ActuateGate pings and opens the live call's gate, ending the call on success.
func (c *Console) ActuateGate(ctx context.Context, categoryID string) error {
	return c.workflows.ActuateGate(ctx, categoryID)
}

// ActuateSession is ActuateGate for the call the operator was looking at. It
// fails with session.ErrNoActiveCall if that call has been replaced.
func (c *Console) ActuateSession(ctx context.Context, id, categoryID string) error {
	return c.workflows.ActuateSession(ctx, id, categoryID)
}

// Agent returns the operator's agent id.
func (c *Console) Agent() (int, bool) {
	return c.identity.Get()
}

// SetAgent changes the operator's agent id.
func (c *Console) SetAgent(ctx context.Context, id int) error {
	if err := c.identity.Set(ctx, id); err != nil {
		return fmt.Errorf("setting agent: %w", err)
	}
	return nil
}
