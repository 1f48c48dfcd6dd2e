// Package audit keeps an optional append-only trail of sessions and the
// commands they issue, in a local sqlite database. The agent treats audit
// failures as log-worthy, never session-fatal.
package audit

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"

	"github.com/semiotic/agentium/internal/errx"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{1, "create sessions", `
CREATE TABLE sessions (
  id TEXT PRIMARY KEY,
  peer TEXT NOT NULL,
  opened_at TEXT NOT NULL,
  closed_at TEXT,
  close_reason TEXT
)`},
	{2, "create commands", `
CREATE TABLE commands (
  session_id TEXT NOT NULL REFERENCES sessions(id),
  seq INTEGER NOT NULL,
  kind INTEGER NOT NULL,
  at TEXT NOT NULL,
  detail BLOB,
  PRIMARY KEY (session_id, seq)
)`},
}

// execDetail is the CBOR payload stored for exec commands.
type execDetail struct {
	Background bool     `cbor:"background"`
	Argv       [][]byte `cbor:"argv"`
	Envp       [][]byte `cbor:"envp,omitempty"`
	Pid        int64    `cbor:"pid"`
}

// Store is an open audit database. Safe for concurrent use; sqlite access is
// serialized through a single connection.
type Store struct {
	db *sql.DB
}

// Open creates or opens the audit database at path and applies any pending
// schema migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errx.Wrap(ErrOpen, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errx.Wrap(ErrOpen, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SessionOpened records a new session.
func (s *Store) SessionOpened(id, peer string) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions(id, peer, opened_at) VALUES (?, ?, ?)`,
		id, peer, now())
	if err != nil {
		return errx.Wrap(ErrRecord, err)
	}
	return nil
}

// SessionClosed marks a session done, with the reason the loop ended.
func (s *Store) SessionClosed(id, reason string) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET closed_at = ?, close_reason = ? WHERE id = ?`,
		now(), reason, id)
	if err != nil {
		return errx.Wrap(ErrRecord, err)
	}
	return nil
}

// Command records one dispatched command for a session.
func (s *Store) Command(sessionID string, seq uint64, kind uint32) error {
	_, err := s.db.Exec(
		`INSERT INTO commands(session_id, seq, kind, at) VALUES (?, ?, ?, ?)`,
		sessionID, seq, kind, now())
	if err != nil {
		return errx.Wrap(ErrRecord, err)
	}
	return nil
}

// Exec records a spawn request with its full argv/envp and resulting pid
// (or the spawn-failure sentinel).
func (s *Store) Exec(sessionID string, seq uint64, background bool, argv, envp [][]byte, pid int64) error {
	detail, err := cbor.Marshal(execDetail{
		Background: background,
		Argv:       argv,
		Envp:       envp,
		Pid:        pid,
	})
	if err != nil {
		return errx.Wrap(ErrEncodeDetail, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO commands(session_id, seq, kind, at, detail) VALUES (?, ?, 0, ?, ?)`,
		sessionID, seq, now(), detail)
	if err != nil {
		return errx.Wrap(ErrRecord, err)
	}
	return nil
}

// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	ID          string
	Peer        string
	OpenedAt    string
	ClosedAt    string
	CloseReason string
}

// Sessions returns all recorded sessions, oldest first.
func (s *Store) Sessions() ([]SessionRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, peer, opened_at, closed_at, close_reason FROM sessions ORDER BY opened_at`)
	if err != nil {
		return nil, errx.Wrap(ErrRecord, err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var closedAt, reason sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Peer, &rec.OpenedAt, &closedAt, &reason); err != nil {
			return nil, errx.Wrap(ErrRecord, err)
		}
		rec.ClosedAt = closedAt.String
		rec.CloseReason = reason.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.Wrap(ErrRecord, err)
	}
	return out, nil
}

func configure(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 15000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errx.With(ErrConfigure, ": %s: %w", pragma, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at TEXT NOT NULL
)`); err != nil {
		return errx.Wrap(ErrMigrate, err)
	}

	applied := make(map[int]bool)
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return errx.Wrap(ErrMigrate, err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return errx.Wrap(ErrMigrate, err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return errx.Wrap(ErrMigrate, err)
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return errx.With(ErrMigrate, ": begin %d %s: %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return errx.With(ErrMigrate, ": %d %s: %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations(version, name, applied_at) VALUES (?, ?, ?)`,
			m.version, m.name, now()); err != nil {
			tx.Rollback()
			return errx.With(ErrMigrate, ": record %d %s: %w", m.version, m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return errx.With(ErrMigrate, ": commit %d %s: %w", m.version, m.name, err)
		}
	}
	return nil
}

func now() string {
	// Fixed-width fraction so that text order matches time order.
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
