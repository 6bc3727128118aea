// Package store provides local persistence for the console using SQLite.
//
// # Tables
//
//   - settings: key/value pairs; holds the operator's agent id so it survives
//     restarts
//   - call_log: one row per closed call with the path that closed it
//     (operator, actuation, disconnect, replaced)
//   - issue_journal: issues this console submitted, with the id the backend
//     assigned
//
// The admin backend owns the real issue records; the journal is a local trail
// for the operator and for audits.
//
// # SQLite Configuration
//
// WAL mode, a single pooled connection. Schema is created on open and later
// columns are added by idempotent migrations.
//
// # Testing
//
// Use NewMockStore() for unit tests. Set FailWrites to simulate a broken disk.
// Use NewSQLiteStore(filepath.Join(t.TempDir(), "test.db")) for real SQLite.
package store
