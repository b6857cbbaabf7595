package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/sakha-labs/sakha/db"
	"github.com/sakha-labs/sakha/internal/index"
	"github.com/sakha-labs/sakha/internal/log"
	"github.com/sakha-labs/sakha/internal/memory"
	"github.com/sakha-labs/sakha/internal/session"
)

// Postgres implements session.Store on a pgx connection pool. It also
// mirrors chunk embeddings into a pgvector table so index rebuilds over
// an unchanged corpus can warm-start.
type Postgres struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewPostgres runs migrations and opens a pool against connURL.
func NewPostgres(ctx context.Context, connURL string, logger log.Logger) (*Postgres, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	if err := db.Migrate(connURL, logger); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Postgres{pool: pool, logger: logger}, nil
}

// SaveTurn appends one turn, upserting the session row.
func (p *Postgres) SaveTurn(ctx context.Context, sessionID string, turn memory.Turn) error {
	now := time.Now().UTC()

	firstMessage := ""
	if turn.Role == memory.RoleUser && turn.Ordinal == 1 {
		firstMessage = turn.Text
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO sessions (id, first_message, total_turns, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE SET
			first_message = CASE WHEN sessions.first_message = '' THEN excluded.first_message ELSE sessions.first_message END,
			total_turns   = GREATEST(sessions.total_turns, excluded.total_turns),
			updated_at    = excluded.updated_at`,
		sessionID, firstMessage, turn.Ordinal, now)
	if err != nil {
		return fmt.Errorf("%w: upserting session %s: %v", session.ErrPersistence, sessionID, err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO turns (session_id, ordinal, role, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, ordinal) DO NOTHING`,
		sessionID, turn.Ordinal, turn.Role, turn.Text, turn.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: saving turn %d of session %s: %v", session.ErrPersistence, turn.Ordinal, sessionID, err)
	}
	return nil
}

// SaveMood records a mood check-in.
func (p *Postgres) SaveMood(ctx context.Context, sessionID string, ordinal int, mood string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO mood_checkins (session_id, ordinal, mood, created_at)
		VALUES ($1, $2, $3, $4)`,
		sessionID, ordinal, mood, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: saving mood for session %s: %v", session.ErrPersistence, sessionID, err)
	}
	return nil
}

// SaveState upserts the derived summary and entities. The count of
// turns the summary already digests is persisted alongside it, so a
// restore knows where the retained window starts.
func (p *Postgres) SaveState(ctx context.Context, sessionID string, snap memory.Snapshot) error {
	entities, err := json.Marshal(snap.Entities)
	if err != nil {
		return fmt.Errorf("%w: encoding entities: %v", session.ErrPersistence, err)
	}

	now := time.Now().UTC()
	_, err = p.pool.Exec(ctx, `
		INSERT INTO sessions (id, summary, entities, total_turns, summarized_turns, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (id) DO UPDATE SET
			summary          = excluded.summary,
			entities         = excluded.entities,
			total_turns      = GREATEST(sessions.total_turns, excluded.total_turns),
			summarized_turns = excluded.summarized_turns,
			updated_at       = excluded.updated_at`,
		sessionID, snap.Summary, entities, snap.Total, summarizedTurns(snap), now)
	if err != nil {
		return fmt.Errorf("%w: saving state for session %s: %v", session.ErrPersistence, sessionID, err)
	}
	return nil
}

// LoadSnapshot restores a session from its persisted state. Only turns
// past the summarized prefix are returned; the summary already digests
// the rest.
func (p *Postgres) LoadSnapshot(ctx context.Context, sessionID string) (memory.Snapshot, bool, error) {
	var snap memory.Snapshot
	var entitiesJSON []byte
	var summarized int

	err := p.pool.QueryRow(ctx,
		"SELECT summary, entities, total_turns, summarized_turns FROM sessions WHERE id = $1",
		sessionID,
	).Scan(&snap.Summary, &entitiesJSON, &snap.Total, &summarized)
	if errors.Is(err, pgx.ErrNoRows) {
		return memory.Snapshot{}, false, nil
	}
	if err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("%w: loading session %s: %v", session.ErrPersistence, sessionID, err)
	}

	if err := json.Unmarshal(entitiesJSON, &snap.Entities); err != nil {
		p.logger.Warn("discarding unreadable entity state", "session", sessionID, "error", err)
		snap.Entities = nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT ordinal, role, text, created_at
		FROM turns WHERE session_id = $1 AND ordinal > $2 ORDER BY ordinal ASC`,
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
func (p *Postgres) ListSessions(ctx context.Context) ([]session.Summary, error) {
	rows, err := p.pool.Query(ctx, `
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
func (p *Postgres) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM sessions WHERE id = $1", sessionID); err != nil {
		return fmt.Errorf("%w: deleting session %s: %v", session.ErrPersistence, sessionID, err)
	}
	return nil
}

// MoodHistory returns recorded mood check-ins for a session, oldest
// first.
func (p *Postgres) MoodHistory(ctx context.Context, sessionID string) ([]session.MoodCheckin, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT ordinal, mood, created_at
		FROM mood_checkins WHERE session_id = $1 ORDER BY id ASC`,
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

// SaveChunkVectors replaces the embedding mirror with the given chunk
// vectors. vectors must be parallel to chunks.
func (p *Postgres) SaveChunkVectors(ctx context.Context, embedderModel string, chunks []index.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", session.ErrPersistence, len(chunks), len(vectors))
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: starting transaction: %v", session.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM chunk_vectors"); err != nil {
		return fmt.Errorf("%w: clearing chunk vectors: %v", session.ErrPersistence, err)
	}
	for i, c := range chunks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chunk_vectors (chunk_id, embedder_model, embedding)
			VALUES ($1, $2, $3)`,
			c.ID, embedderModel, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("%w: saving vector for chunk %s: %v", session.ErrPersistence, c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing chunk vectors: %v", session.ErrPersistence, err)
	}
	p.logger.Info("chunk vector mirror updated", "chunks", len(chunks), "model", embedderModel)
	return nil
}

// LoadChunkVectors returns mirrored vectors for exactly the given
// chunks and embedder model. Any gap or mismatch returns ok=false and
// the caller re-embeds.
func (p *Postgres) LoadChunkVectors(ctx context.Context, embedderModel string, chunks []index.Chunk) ([][]float32, bool) {
	rows, err := p.pool.Query(ctx,
		"SELECT chunk_id, embedding FROM chunk_vectors WHERE embedder_model = $1",
		embedderModel)
	if err != nil {
		p.logger.Warn("loading chunk vector mirror failed", "error", err)
		return nil, false
	}
	defer rows.Close()

	byID := make(map[string][]float32)
	for rows.Next() {
		var id string
		var vec pgvector.Vector
		if err := rows.Scan(&id, &vec); err != nil {
			p.logger.Warn("scanning chunk vector failed", "error", err)
			return nil, false
		}
		byID[id] = vec.Slice()
	}
	if rows.Err() != nil {
		return nil, false
	}

	out := make([][]float32, len(chunks))
	for i, c := range chunks {
		v, ok := byID[c.ID]
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
