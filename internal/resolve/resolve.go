// ABOUTME: Resolution workflows that close out a call: issue logging and gate actuation
// ABOUTME: Network work runs outside the coordinator loop and targets the session it started with

package resolve

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/2389/gate-console/internal/apiclient"
	"github.com/2389/gate-console/internal/callerr"
	"github.com/2389/gate-console/internal/dedupe"
	"github.com/2389/gate-console/internal/gatectl"
	"github.com/2389/gate-console/internal/session"
	"github.com/2389/gate-console/internal/store"
)

// Placeholder fills optional issue fields the operator left blank.
const Placeholder = "-"

// Coordinator is the slice of session.Coordinator the workflows drive.
type Coordinator interface {
	Current() (session.Session, bool)
	BeginResolution(ctx context.Context) (session.Session, error)
	BeginResolutionFor(ctx context.Context, id string) (session.Session, error)
	AbortResolution(ctx context.Context, id string) (bool, error)
	End(ctx context.Context, id string, reason session.Reason) (bool, error)
}

// Journal keeps a local record of submitted issues.
type Journal interface {
	RecordIssue(ctx context.Context, entry *store.IssueEntry) error
}

// Form is what the operator fills in to log an issue.
type Form struct {
	CategoryID    string
	GateID        string
	Description   string
	Action        string
	Photo         string
	Plate         string
	TransactionNo string
}

// Config wires the workflows to their collaborators.
type Config struct {
	Coordinator Coordinator
	Issues      apiclient.IssueClient
	Gates       gatectl.Controller
	// Journal is optional.
	Journal Journal
	// Timeout bounds each workflow's network work. Zero means no extra bound.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Workflows runs issue logging and gate actuation.
type Workflows struct {
	coord   Coordinator
	issues  apiclient.IssueClient
	gates   gatectl.Controller
	journal Journal
	timeout time.Duration
	submits singleflight.Group
	logger  *slog.Logger
}

// New creates the workflows.
func New(cfg Config) *Workflows {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflows{
		coord:   cfg.Coordinator,
		issues:  cfg.Issues,
		gates:   cfg.Gates,
		journal: cfg.Journal,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "resolve"),
	}
}

// LogIssue validates form and submits it. The live call, if any, is never
// touched. Identical submissions already in flight share one request.
func (w *Workflows) LogIssue(ctx context.Context, form Form) (apiclient.IssueRef, error) {
	rec, err := w.buildRecord(form)
	if err != nil {
		return apiclient.IssueRef{}, err
	}

	var sessionID string
	if s, ok := w.coord.Current(); ok && s.Event.GateID == rec.GateID {
		sessionID = s.ID
	}

	// The shared request must outlive any single caller; each caller only
	// stops waiting when its own ctx ends.
	detached := context.WithoutCancel(ctx)
	key := dedupe.Fingerprint(rec.CategoryID, rec.GateID, rec.Description, rec.Action,
		rec.Photo, rec.Plate, rec.TransactionNo)
	flight := w.submits.DoChan(key, func() (any, error) {
		fctx, cancel := w.bound(detached)
		defer cancel()
		ref, err := w.issues.CreateIssue(fctx, rec)
		if err != nil {
			return nil, err
		}
		w.journalIssue(fctx, ref, rec, sessionID)
		return ref, nil
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		res = singleflight.Result{Err: ctx.Err()}
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		w.logger.Warn("issue submission failed", "gate_id", rec.GateID, "category_id", rec.CategoryID, "error", err)
		return apiclient.IssueRef{}, &callerr.SubmissionError{Err: err}
	}
	ref := v.(apiclient.IssueRef)

	w.logger.Info("issue logged",
		"issue_id", ref.ID,
		"gate_id", rec.GateID,
		"session_id", sessionID,
		"category_id", rec.CategoryID,
		"shared", shared,
	)
	return ref, nil
}

func (w *Workflows) journalIssue(ctx context.Context, ref apiclient.IssueRef, rec apiclient.IssueRecord, sessionID string) {
	if w.journal == nil {
		return
	}
	entry := &store.IssueEntry{
		RemoteID:      string(ref.ID),
		SessionID:     sessionID,
		GateID:        rec.GateID,
		CategoryID:    rec.CategoryID,
		Description:   rec.Description,
		Action:        rec.Action,
		Photo:         rec.Photo,
		Plate:         rec.Plate,
		TransactionNo: rec.TransactionNo,
	}
	if err := w.journal.RecordIssue(context.WithoutCancel(ctx), entry); err != nil {
		w.logger.Warn("failed to journal issue", "issue_id", ref.ID, "error", err)
	}
}

func (w *Workflows) buildRecord(form Form) (apiclient.IssueRecord, error) {
	rec := apiclient.IssueRecord{
		CategoryID:    strings.TrimSpace(form.CategoryID),
		GateID:        strings.TrimSpace(form.GateID),
		Description:   strings.TrimSpace(form.Description),
		Action:        orPlaceholder(form.Action),
		Photo:         orPlaceholder(form.Photo),
		Plate:         orPlaceholder(form.Plate),
		TransactionNo: orPlaceholder(form.TransactionNo),
	}
	if rec.CategoryID == "" {
		return rec, callerr.Invalid("category", "is required")
	}
	if rec.Description == "" {
		return rec, callerr.Invalid("description", "is required")
	}
	if rec.GateID == "" {
		if s, ok := w.coord.Current(); ok {
			rec.GateID = s.Event.GateID
		} else {
			rec.GateID = Placeholder
		}
	}
	return rec, nil
}

// ActuateGate opens the gate of the live call. A category must be selected.
// The gate is pinged first; open is only sent after an acknowledgement. On
// success the call is ended, unless a newer call has taken the slot.
func (w *Workflows) ActuateGate(ctx context.Context, categoryID string) error {
	if strings.TrimSpace(categoryID) == "" {
		return callerr.Invalid("category", "must be selected before opening the gate")
	}
	s, err := w.coord.BeginResolution(ctx)
	if err != nil {
		return err
	}
	return w.actuate(ctx, s)
}

// ActuateSession is ActuateGate pinned to session id. It returns
// session.ErrNoActiveCall if that call is no longer live.
func (w *Workflows) ActuateSession(ctx context.Context, id, categoryID string) error {
	if strings.TrimSpace(categoryID) == "" {
		return callerr.Invalid("category", "must be selected before opening the gate")
	}
	s, err := w.coord.BeginResolutionFor(ctx, id)
	if err != nil {
		return err
	}
	return w.actuate(ctx, s)
}

func (w *Workflows) actuate(ctx context.Context, s session.Session) error {
	gateID := s.Event.GateID
	logger := w.logger.With("session_id", s.ID, "gate_id", gateID)

	// Releasing the slot must happen even if the caller gave up.
	release := context.WithoutCancel(ctx)

	netCtx, cancel := w.bound(ctx)
	defer cancel()

	if err := w.gates.Ping(netCtx, gateID); err != nil {
		w.abort(release, s.ID, logger)
		logger.Warn("gate did not answer ping", "error", err)
		return &callerr.HardwareUnreachableError{GateID: gateID, Err: err}
	}

	if err := w.gates.Open(netCtx, gateID); err != nil {
		w.abort(release, s.ID, logger)
		logger.Warn("gate open failed", "error", err)
		return &callerr.ActuationFailedError{GateID: gateID, Err: err}
	}

	logger.Info("gate opened")
	changed, err := w.coord.End(release, s.ID, session.ReasonActuation)
	if err != nil {
		// The gate is open; only the slot bookkeeping failed.
		logger.Error("failed to end call after actuation", "error", err)
		return nil
	}
	if !changed {
		logger.Info("call superseded during actuation; newer call left open")
	}
	return nil
}

func (w *Workflows) abort(ctx context.Context, id string, logger *slog.Logger) {
	if _, err := w.coord.AbortResolution(ctx, id); err != nil && !errors.Is(err, session.ErrStopped) {
		logger.Error("failed to return call to active", "error", err)
	}
}

func (w *Workflows) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.timeout)
}

func orPlaceholder(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Placeholder
	}
	return s
}
