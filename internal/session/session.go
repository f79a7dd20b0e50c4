// Package session provides the SQLite-backed, bounded conversation history.
// Each session holds an ordered sequence of (role, text) turns capped at a
// configurable maximum; once the cap is exceeded the oldest turns are
// evicted — strict FIFO truncation, no summarization. Histories survive
// process restarts and are injected into the model context on later queries.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// DefaultMaxTurns is the history cap applied when none is configured.
const DefaultMaxTurns = 20

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser is a turn sent by the human.
	RoleUser Role = "user"
	// RoleAssistant is a turn produced by the generation engine.
	RoleAssistant Role = "assistant"
)

// Turn is a single entry in a session's history.
type Turn struct {
	// Role is the author of the turn.
	Role Role
	// Content is the text of the turn.
	Content string
	// CreatedAt is when the turn was persisted.
	CreatedAt time.Time
}

// Manager persists and retrieves bounded per-session history. The single
// write connection serialises appends, which gives each session the
// single-writer discipline concurrent callers would otherwise need to
// arrange themselves.
type Manager struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// maxTurns is the history cap per session.
	maxTurns int
}

// DefaultDBPath returns the default path for the session database,
// ~/.coursechat/sessions.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("session: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".coursechat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("session: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// Open opens (or creates) a Manager at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests. maxTurns <= 0
// selects DefaultMaxTurns.
func Open(path string, maxTurns int) (*Manager, error) {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	m := &Manager{db: db, maxTurns: maxTurns}
	if err := m.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// migrate creates the schema if it does not already exist.
func (m *Manager) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id   TEXT    PRIMARY KEY,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS turns (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id   TEXT    NOT NULL,
    role         TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content      TEXT    NOT NULL,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session
    ON turns (session_id, id);
`
	if _, err := m.db.Exec(ddl); err != nil {
		return fmt.Errorf("session: migrate: %w", err)
	}
	return nil
}

// CreateSession allocates a new opaque session ID and records it.
func (m *Manager) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	const q = `INSERT INTO sessions (session_id, created_at) VALUES (?, ?)`
	if _, err := m.db.ExecContext(ctx, q, id, time.Now().Unix()); err != nil {
		return "", fmt.Errorf("session: create: %w", err)
	}
	return id, nil
}

// AppendTurn persists one turn for the session, creating the session record
// on first contact, then evicts the oldest turns past the cap.
func (m *Manager) AppendTurn(ctx context.Context, sessionID string, role Role, content string) error {
	now := time.Now().Unix()

	const ensure = `INSERT OR IGNORE INTO sessions (session_id, created_at) VALUES (?, ?)`
	if _, err := m.db.ExecContext(ctx, ensure, sessionID, now); err != nil {
		return fmt.Errorf("session: ensure session: %w", err)
	}

	const ins = `INSERT INTO turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := m.db.ExecContext(ctx, ins, sessionID, string(role), content, now); err != nil {
		return fmt.Errorf("session: append: %w", err)
	}

	// FIFO eviction: drop everything older than the newest maxTurns rows.
	const evict = `
DELETE FROM turns
WHERE  session_id = ?
AND    id NOT IN (
    SELECT id FROM turns WHERE session_id = ? ORDER BY id DESC LIMIT ?
)`
	if _, err := m.db.ExecContext(ctx, evict, sessionID, sessionID, m.maxTurns); err != nil {
		return fmt.Errorf("session: evict: %w", err)
	}
	return nil
}

// History returns the session's turns oldest-first, capped at the configured
// maximum. An unknown session yields an empty history, not an error.
func (m *Manager) History(ctx context.Context, sessionID string) ([]Turn, error) {
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   turns
    WHERE  session_id = ?
    ORDER  BY id DESC
    LIMIT  ?
) ORDER BY id ASC`

	rows, err := m.db.QueryContext(ctx, q, sessionID, m.maxTurns)
	if err != nil {
		return nil, fmt.Errorf("session: history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var ts int64
		var role string
		if err := rows.Scan(&role, &t.Content, &ts); err != nil {
			return nil, fmt.Errorf("session: history scan: %w", err)
		}
		t.Role = Role(role)
		t.CreatedAt = time.Unix(ts, 0)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: history rows: %w", err)
	}
	return turns, nil
}

// Close releases the database connection pool.
func (m *Manager) Close() error {
	if err := m.db.Close(); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}
	return nil
}
