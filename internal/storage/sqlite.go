// Package storage implements the session.Store persistence contract on
// two backends: an embedded SQLite database (the default) and Postgres.
// Both persist the same data; the agent treats them interchangeably.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sakha-labs/sakha/internal/log"
	"github.com/sakha-labs/sakha/internal/memory"
	"github.com/sakha-labs/sakha/internal/session"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id               TEXT PRIMARY KEY,
	first_message    TEXT NOT NULL DEFAULT '',
	summary          TEXT NOT NULL DEFAULT '',
	entities         TEXT NOT NULL DEFAULT '[]',
	total_turns      INTEGER NOT NULL DEFAULT 0,
	summarized_turns INTEGER NOT NULL DEFAULT 0,
	started_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	ordinal    INTEGER NOT NULL,
	role       TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (session_id, ordinal)
);

CREATE TABLE IF NOT EXISTS mood_checkins (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	ordinal    INTEGER NOT NULL,
	mood       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, ordinal);
`

// SQLite implements session.Store on an embedded database file.
type SQLite struct {
	db     *sql.DB
	logger log.Logger
}

// NewSQLite opens (creating if needed) the database at path and applies
// the schema.
func NewSQLite(path string, logger log.Logger) (*SQLite, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &SQLite{db: db, logger: logger}, nil
}

// SaveTurn appends one turn, upserting the session row.
func (s *SQLite) SaveTurn(ctx context.Context, sessionID string, turn memory.Turn) error {
	now := time.Now().UTC()

	firstMessage := ""
	if turn.Role == memory.RoleUser && turn.Ordinal == 1 {
		firstMessage = turn.Text
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, first_message, total_turns, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_message = CASE WHEN sessions.first_message = '' THEN excluded.first_message ELSE sessions.first_message END,
			total_turns   = MAX(sessions.total_turns, excluded.total_turns),
			updated_at    = excluded.updated_at`,
		sessionID, firstMessage, turn.Ordinal, now, now)
	if err != nil {
		return fmt.Errorf("%w: upserting session %s: %v", session.ErrPersistence, sessionID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO turns (session_id, ordinal, role, text, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, ordinal) DO NOTHING`,
		sessionID, turn.Ordinal, turn.Role, turn.Text, turn.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: saving turn %d of session %s: %v", session.ErrPersistence, turn.Ordinal, sessionID, err)
	}
	return nil
}

// SaveMood records a mood check-in.
func (s *SQLite) SaveMood(ctx context.Context, sessionID string, ordinal int, mood string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mood_checkins (session_id, ordinal, mood, created_at)
		VALUES (?, ?, ?, ?)`,
		sessionID, ordinal, mood, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: saving mood for session %s: %v", session.ErrPersistence, sessionID, err)
	}
	return nil
}

// SaveState upserts the derived summary and entities. The count of
// turns the summary already digests is persisted alongside it, so a
// restore knows where the retained window starts.
func (s *SQLite) SaveState(ctx context.Context, sessionID string, snap memory.Snapshot) error {
	entities, err := json.Marshal(snap.Entities)
	if err != nil {
		return fmt.Errorf("%w: encoding entities: %v", session.ErrPersistence, err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, summary, entities, total_turns, summarized_turns, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			summary          = excluded.summary,
			entities         = excluded.entities,
			total_turns      = MAX(sessions.total_turns, excluded.total_turns),
			summarized_turns = excluded.summarized_turns,
			updated_at       = excluded.updated_at`,
		sessionID, snap.Summary, string(entities), snap.Total, summarizedTurns(snap), now, now)
	if err != nil {
		return fmt.Errorf("%w: saving state for session %s: %v", session.ErrPersistence, sessionID, err)
	}
	return nil
}

// summarizedTurns is the length of the conversation prefix the
// snapshot's summary has already digested.
func summarizedTurns(snap memory.Snapshot) int {
	n := snap.Total - len(snap.Turns)
	if n < 0 {
		return 0
	}
	return n
}

// LoadSnapshot restores a session from its persisted state. Only turns
// past the summarized prefix are returned; the summary already digests
// the rest.
func (s *SQLite) LoadSnapshot(ctx context.Context, sessionID string) (memory.Snapshot, bool, error) {
	var snap memory.Snapshot
	var entitiesJSON string
	var summarized int

	err := s.db.QueryRowContext(ctx,
		"SELECT summary, entities, total_turns, summarized_turns FROM sessions WHERE id = ?",
		sessionID,
	).Scan(&snap.Summary, &entitiesJSON, &snap.Total, &summarized)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.Snapshot{}, false, nil
	}
	if err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("%w: loading session %s: %v", session.ErrPersistence, sessionID, err)
	}

	if err := json.Unmarshal([]byte(entitiesJSON), &snap.Entities); err != nil {
		s.logger.Warn("discarding unreadable entity state", "session", sessionID, "error", err)
		snap.Entities = nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, role, text, created_at
		FROM turns WHERE session_id = ? AND ordinal > ? ORDER BY ordinal ASC`,
		sessionID, summarized)
	if err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("%w: loading turns for session %s: %v", session.ErrPersistence, sessionID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var t memory.Turn
		if err := rows.Scan(&t.Ordinal, &t.Role, &t.Text, &t.Timestamp); err != nil {
			return memory.Snapshot{}, false, fmt.Errorf("%w: scanning turn: %v", session.ErrPersistence, err)
		}
		snap.Turns = append(snap.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("%w: iterating turns: %v", session.ErrPersistence, err)
	}
	return snap, true, nil
}

// ListSessions returns persisted session summaries, newest first.
func (s *SQLite) ListSessions(ctx context.Context) ([]session.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, first_message, total_turns, started_at, updated_at
		FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing sessions: %v", session.ErrPersistence, err)
	}
	defer rows.Close()

	var out []session.Summary
	for rows.Next() {
		var sum session.Summary
		if err := rows.Scan(&sum.ID, &sum.FirstMessage, &sum.TurnCount, &sum.StartedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning session: %v", session.ErrPersistence, err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating sessions: %v", session.ErrPersistence, err)
	}
	return out, nil
}

// DeleteSession removes all data for the session. Unknown sessions are
// a no-op.
func (s *SQLite) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("%w: deleting session %s: %v", session.ErrPersistence, sessionID, err)
	}
	return nil
}

// MoodHistory returns recorded mood check-ins for a session, oldest
// first.
func (s *SQLite) MoodHistory(ctx context.Context, sessionID string) ([]session.MoodCheckin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, mood, created_at
		FROM mood_checkins WHERE session_id = ? ORDER BY id ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading mood history: %v", session.ErrPersistence, err)
	}
	defer rows.Close()

	var out []session.MoodCheckin
	for rows.Next() {
		var m session.MoodCheckin
		if err := rows.Scan(&m.Ordinal, &m.Mood, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning mood: %v", session.ErrPersistence, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
