// ABOUTME: Writes every cleared call to the local audit log
// ABOUTME: Registered with the dispatcher like any other notifier

package notify

import (
	"context"

	"github.com/2389/gate-console/internal/store"
)

// CallLogWriter is the slice of store.Store the audit log needs.
type CallLogWriter interface {
	RecordCall(ctx context.Context, rec *store.CallRecord) error
}

// CallLog records closures. Admissions are ignored.
type CallLog struct {
	w CallLogWriter
}

// NewCallLog creates a CallLog backed by w.
func NewCallLog(w CallLogWriter) *CallLog {
	return &CallLog{w: w}
}

func (c *CallLog) Name() string { return "call-log" }

// Durable keeps every closure in the audit log even when the store is slow.
func (c *CallLog) Durable() bool { return true }

func (c *CallLog) Notify(ctx context.Context, evt Event) error {
	if evt.Kind != KindCleared {
		return nil
	}
	s := evt.Session
	return c.w.RecordCall(ctx, &store.CallRecord{
		SessionID:  s.ID,
		GateID:     s.Event.GateID,
		Gate:       s.Event.Label(),
		Location:   s.Event.Location.Name,
		Reason:     string(evt.Reason),
		AdmittedAt: s.AdmittedAt,
		ClosedAt:   evt.At,
	})
}
