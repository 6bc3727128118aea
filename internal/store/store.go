// ABOUTME: Store interface and record types for local console persistence
// ABOUTME: Covers the agent id setting, the call audit log and the issue journal

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Setting keys
const (
	SettingAgentID = "agent_id"
)

// CallRecord is one closed call in the audit log
type CallRecord struct {
	SessionID  string
	GateID     string
	Gate       string
	Location   string
	Reason     string // operator, actuation, disconnect, replaced
	AdmittedAt time.Time
	ClosedAt   time.Time
}

// Duration is how long the call was live.
func (r *CallRecord) Duration() time.Duration {
	return r.ClosedAt.Sub(r.AdmittedAt)
}

// IssueEntry is a local journal line for an issue submitted to the backend
type IssueEntry struct {
	ID            string
	RemoteID      string // id assigned by the issue backend
	SessionID     string
	GateID        string
	CategoryID    string
	Description   string
	Action        string
	Photo         string
	Plate         string
	TransactionNo string
	CreatedAt     time.Time
}

// Store defines local persistence for the console
type Store interface {
	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Agent identity (backed by settings)
	GetAgentID(ctx context.Context) (int, error)
	SetAgentID(ctx context.Context, id int) error

	// Call audit log
	RecordCall(ctx context.Context, rec *CallRecord) error
	ListCalls(ctx context.Context, limit int) ([]*CallRecord, error)

	// Issue journal
	RecordIssue(ctx context.Context, entry *IssueEntry) error
	ListIssues(ctx context.Context, sessionID string) ([]*IssueEntry, error)

	// Close releases any resources held by the store
	Close() error
}
