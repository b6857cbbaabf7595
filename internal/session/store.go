package session

import (
	"context"
	"errors"
	"time"

	"github.com/sakha-labs/sakha/internal/memory"
)

var (
	// ErrSessionNotFound indicates a strict lookup for an unknown session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrPersistence indicates the storage backend failed. Callers
	// degrade rather than fail the turn.
	ErrPersistence = errors.New("persistence failed")
)

// Summary describes one session for listings.
type Summary struct {
	ID           string    `json:"id"`
	FirstMessage string    `json:"first_message"`
	TurnCount    int       `json:"turn_count"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MoodCheckin is one persisted mood observation.
type MoodCheckin struct {
	Ordinal   int       `json:"ordinal"`
	Mood      string    `json:"mood"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence contract the registry consumes. The sqlite
// and postgres backends in internal/storage implement it; tests use
// in-memory fakes. All methods must be safe for concurrent use.
type Store interface {
	// SaveTurn appends one turn to the session, creating the session
	// row on first write.
	SaveTurn(ctx context.Context, sessionID string, turn memory.Turn) error

	// SaveMood records a mood check-in for a turn.
	SaveMood(ctx context.Context, sessionID string, ordinal int, mood string) error

	// SaveState upserts the derived state: rolling summary and
	// tracked entities.
	SaveState(ctx context.Context, sessionID string, snap memory.Snapshot) error

	// LoadSnapshot restores a session. ok is false when the session
	// has never been persisted.
	LoadSnapshot(ctx context.Context, sessionID string) (snap memory.Snapshot, ok bool, err error)

	// ListSessions returns summaries of persisted sessions, most
	// recently updated first.
	ListSessions(ctx context.Context) ([]Summary, error)

	// DeleteSession removes all persisted data for the session.
	// Deleting an unknown session is not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// MoodHistory returns recorded mood check-ins for the session,
	// oldest first.
	MoodHistory(ctx context.Context, sessionID string) ([]MoodCheckin, error)

	// Close releases the backend.
	Close() error
}

// NopStore is a Store that persists nothing. Used when no backend is
// configured and in tests.
type NopStore struct{}

func (NopStore) SaveTurn(context.Context, string, memory.Turn) error        { return nil }
func (NopStore) SaveMood(context.Context, string, int, string) error        { return nil }
func (NopStore) SaveState(context.Context, string, memory.Snapshot) error   { return nil }
func (NopStore) ListSessions(context.Context) ([]Summary, error)            { return nil, nil }
func (NopStore) DeleteSession(context.Context, string) error                { return nil }
func (NopStore) MoodHistory(context.Context, string) ([]MoodCheckin, error) { return nil, nil }
func (NopStore) Close() error                                               { return nil }

func (NopStore) LoadSnapshot(context.Context, string) (memory.Snapshot, bool, error) {
	return memory.Snapshot{}, false, nil
}
