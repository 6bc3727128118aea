// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject write failures

package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	settings map[string]string
	calls    []*CallRecord
	issues   []*IssueEntry

	// FailWrites makes every write return this error when set.
	FailWrites error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		settings: make(map[string]string),
	}
}

// GetSetting returns a setting or ErrNotFound.
func (m *MockStore) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.settings[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// SetSetting stores a setting.
func (m *MockStore) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.settings[key] = value
	return nil
}

// GetAgentID returns the stored agent id or ErrNotFound.
func (m *MockStore) GetAgentID(ctx context.Context) (int, error) {
	raw, err := m.GetSetting(ctx, SettingAgentID)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

// SetAgentID stores the agent id.
func (m *MockStore) SetAgentID(ctx context.Context, id int) error {
	return m.SetSetting(ctx, SettingAgentID, strconv.Itoa(id))
}

// RecordCall appends a copy of rec.
func (m *MockStore) RecordCall(ctx context.Context, rec *CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return m.FailWrites
	}
	r := *rec
	m.calls = append(m.calls, &r)
	return nil
}

// ListCalls returns calls newest first.
func (m *MockStore) ListCalls(ctx context.Context, limit int) ([]*CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*CallRecord, len(m.calls))
	for i, c := range m.calls {
		r := *c
		out[i] = &r
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClosedAt.After(out[j].ClosedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordIssue appends a copy of e, filling ID and CreatedAt.
func (m *MockStore) RecordIssue(ctx context.Context, e *IssueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return m.FailWrites
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	c := *e
	m.issues = append(m.issues, &c)
	return nil
}

// ListIssues returns entries for sessionID in insertion order.
func (m *MockStore) ListIssues(ctx context.Context, sessionID string) ([]*IssueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*IssueEntry
	for _, e := range m.issues {
		if e.SessionID == sessionID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// Close is a no-op.
func (m *MockStore) Close() error { return nil }

// Compile-time interface checks
var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
