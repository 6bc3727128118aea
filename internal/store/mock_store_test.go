// ABOUTME: Tests for MockStore to ensure it behaves like SQLiteStore
// ABOUTME: Covers not-found semantics, copies, ordering and injected failures

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_AgentID(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	_, err := m.GetAgentID(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SetAgentID(ctx, 1))
	id, err := m.GetAgentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
}

func TestMockStore_FailWrites(t *testing.T) {
	m := NewMockStore()
	m.FailWrites = errors.New("disk full")
	ctx := context.Background()

	assert.EqualError(t, m.SetAgentID(ctx, 1), "disk full")
	assert.EqualError(t, m.RecordCall(ctx, &CallRecord{SessionID: "s"}), "disk full")
	assert.EqualError(t, m.RecordIssue(ctx, &IssueEntry{}), "disk full")
}

func TestMockStore_ListCallsNewestFirst(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, m.RecordCall(ctx, &CallRecord{SessionID: "old", ClosedAt: base}))
	require.NoError(t, m.RecordCall(ctx, &CallRecord{SessionID: "new", ClosedAt: base.Add(time.Minute)}))

	calls, err := m.ListCalls(ctx, 1)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "new", calls[0].SessionID)

	// Returned records are copies.
	calls[0].SessionID = "mutated"
	again, _ := m.ListCalls(ctx, 0)
	assert.Equal(t, "new", again[0].SessionID)
}

func TestMockStore_Issues(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	e := &IssueEntry{SessionID: "s-1", RemoteID: "1"}
	require.NoError(t, m.RecordIssue(ctx, e))
	assert.NotEmpty(t, e.ID)

	require.NoError(t, m.RecordIssue(ctx, &IssueEntry{SessionID: "s-2", RemoteID: "2"}))

	got, err := m.ListIssues(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].RemoteID)
}
