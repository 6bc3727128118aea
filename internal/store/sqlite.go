// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Creates the schema on open and applies idempotent column migrations

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection keeps :memory: databases coherent and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS call_log (
			session_id  TEXT PRIMARY KEY,
			gate_id     TEXT NOT NULL,
			gate        TEXT NOT NULL,
			reason      TEXT NOT NULL,
			admitted_at TEXT NOT NULL,
			closed_at   TEXT NOT NULL,

			CHECK (reason IN ('operator', 'actuation', 'disconnect', 'replaced'))
		);

		CREATE INDEX IF NOT EXISTS idx_call_log_closed ON call_log(closed_at DESC);
		CREATE INDEX IF NOT EXISTS idx_call_log_gate ON call_log(gate_id);

		CREATE TABLE IF NOT EXISTS issue_journal (
			id             TEXT PRIMARY KEY,
			remote_id      TEXT NOT NULL,
			session_id     TEXT NOT NULL,
			gate_id        TEXT NOT NULL,
			category_id    TEXT NOT NULL,
			description    TEXT NOT NULL,
			action         TEXT NOT NULL,
			created_at     TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_issue_journal_session ON issue_journal(session_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations adds columns introduced after the first schema.
// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so each one is checked first.
func (s *SQLiteStore) runMigrations() error {
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{"call_log", "location", `ALTER TABLE call_log ADD COLUMN location TEXT NOT NULL DEFAULT ''`},
		{"issue_journal", "plate", `ALTER TABLE issue_journal ADD COLUMN plate TEXT NOT NULL DEFAULT '-'`},
		{"issue_journal", "transaction_no", `ALTER TABLE issue_journal ADD COLUMN transaction_no TEXT NOT NULL DEFAULT '-'`},
		{"issue_journal", "photo", `ALTER TABLE issue_journal ADD COLUMN photo TEXT NOT NULL DEFAULT '-'`},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking %s.%s: %w", m.table, m.column, err)
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}
	return nil
}

// GetSetting returns the value stored under key, or ErrNotFound.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts a setting.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// GetAgentID returns the persisted agent id, or ErrNotFound.
func (s *SQLiteStore) GetAgentID(ctx context.Context) (int, error) {
	raw, err := s.GetSetting(ctx, SettingAgentID)
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing stored agent id %q: %w", raw, err)
	}
	return id, nil
}

// SetAgentID persists the agent id.
func (s *SQLiteStore) SetAgentID(ctx context.Context, id int) error {
	return s.SetSetting(ctx, SettingAgentID, strconv.Itoa(id))
}

// RecordCall appends a closed call to the audit log.
func (s *SQLiteStore) RecordCall(ctx context.Context, rec *CallRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_log (session_id, gate_id, gate, location, reason, admitted_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.SessionID, rec.GateID, rec.Gate, rec.Location, rec.Reason,
		formatTime(rec.AdmittedAt), formatTime(rec.ClosedAt))
	if err != nil {
		return fmt.Errorf("recording call %s: %w", rec.SessionID, err)
	}
	return nil
}

// ListCalls returns the most recently closed calls, newest first.
func (s *SQLiteStore) ListCalls(ctx context.Context, limit int) ([]*CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, gate_id, gate, location, reason, admitted_at, closed_at
		FROM call_log
		ORDER BY closed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing calls: %w", err)
	}
	defer rows.Close()

	var calls []*CallRecord
	for rows.Next() {
		var rec CallRecord
		var admittedAt, closedAt string
		if err := rows.Scan(&rec.SessionID, &rec.GateID, &rec.Gate, &rec.Location, &rec.Reason, &admittedAt, &closedAt); err != nil {
			return nil, fmt.Errorf("scanning call: %w", err)
		}
		if rec.AdmittedAt, err = parseTime(admittedAt); err != nil {
			return nil, err
		}
		if rec.ClosedAt, err = parseTime(closedAt); err != nil {
			return nil, err
		}
		calls = append(calls, &rec)
	}
	return calls, rows.Err()
}

// RecordIssue appends a submitted issue to the journal. ID and CreatedAt are
// generated if not set.
func (s *SQLiteStore) RecordIssue(ctx context.Context, e *IssueEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issue_journal (id, remote_id, session_id, gate_id, category_id, description, action, photo, plate, transaction_no, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.RemoteID, e.SessionID, e.GateID, e.CategoryID, e.Description, e.Action,
		e.Photo, e.Plate, e.TransactionNo, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("recording issue: %w", err)
	}
	return nil
}

// ListIssues returns journal entries for a call, oldest first.
func (s *SQLiteStore) ListIssues(ctx context.Context, sessionID string) ([]*IssueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, remote_id, session_id, gate_id, category_id, description, action, photo, plate, transaction_no, created_at
		FROM issue_journal
		WHERE session_id = ?
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	defer rows.Close()

	var entries []*IssueEntry
	for rows.Next() {
		var e IssueEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.RemoteID, &e.SessionID, &e.GateID, &e.CategoryID,
			&e.Description, &e.Action, &e.Photo, &e.Plate, &e.TransactionNo, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning issue: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
