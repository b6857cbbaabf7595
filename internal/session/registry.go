// Package session tracks conversations: resolving identifiers to live
// state, restoring persisted sessions, and resetting them.
//
// Concurrency model: the registry map is guarded by its own mutex;
// each Handle carries a per-session mutex the agent holds for a whole
// turn, so a session processes at most one message at a time while
// different sessions proceed in parallel.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sakha-labs/sakha/internal/log"
	"github.com/sakha-labs/sakha/internal/memory"
)

// Handle is one live session. Lock it for the duration of a turn.
type Handle struct {
	mu sync.Mutex

	ID        string
	State     *memory.State
	StartedAt time.Time
	UpdatedAt time.Time
}

// Lock acquires the per-session lock.
func (h *Handle) Lock() { h.mu.Lock() }

// Unlock releases the per-session lock.
func (h *Handle) Unlock() { h.mu.Unlock() }

// Touch updates the last-activity time. Call with the handle locked.
func (h *Handle) Touch() { h.UpdatedAt = time.Now().UTC() }

// Registry maps session IDs to live handles, backed by a Store for
// restore across restarts.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Handle

	store  Store
	window int
	logger log.Logger
}

// NewRegistry creates a registry. A nil store disables persistence.
func NewRegistry(store Store, window int, logger log.Logger) *Registry {
	if store == nil {
		store = NopStore{}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Handle),
		store:    store,
		window:   window,
		logger:   logger,
	}
}

// Resolve returns the handle for id, restoring it from the store when
// possible and creating a fresh session otherwise. An empty id always
// creates a new session. Resolve is lenient: an unknown id becomes a
// new session under that id rather than an error.
func (r *Registry) Resolve(ctx context.Context, id string) (*Handle, error) {
	if id == "" {
		return r.create(uuid.NewString()), nil
	}

	r.mu.Lock()
	if h, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return h, nil
	}
	r.mu.Unlock()

	// Miss: try persistence before minting new state. Outside the
	// registry lock so a slow backend does not stall other sessions.
	snap, ok, err := r.store.LoadSnapshot(ctx, id)
	if err != nil {
		r.logger.Warn("session restore failed, starting fresh", "session", id, "error", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, exists := r.sessions[id]; exists { // lost the race
		return h, nil
	}

	h := &Handle{
		ID:        id,
		State:     memory.NewState(r.window),
		StartedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if ok {
		h.State = memory.Restore(snap, r.window)
		r.logger.Info("session restored", "session", id, "turns", h.State.TotalTurns())
	}
	r.sessions[id] = h
	return h, nil
}

func (r *Registry) create(id string) *Handle {
	h := &Handle{
		ID:        id,
		State:     memory.NewState(r.window),
		StartedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	r.mu.Lock()
	r.sessions[id] = h
	r.mu.Unlock()
	return h
}

// Reset discards a session and returns a fresh one with a new ID and
// zero carried-over state. When strict is true, resetting an unknown
// session fails with ErrSessionNotFound; otherwise it just creates the
// fresh session.
func (r *Registry) Reset(ctx context.Context, id string, strict bool) (*Handle, error) {
	r.mu.Lock()
	_, known := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !known && id != "" {
		if _, persisted, err := r.store.LoadSnapshot(ctx, id); err == nil && persisted {
			known = true
		}
	}
	if strict && !known {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	if known {
		if err := r.store.DeleteSession(ctx, id); err != nil {
			r.logger.Warn("deleting persisted session failed", "session", id, "error", err)
		}
	}

	h := r.create(uuid.NewString())
	r.logger.Info("session reset", "old", id, "new", h.ID)
	return h, nil
}

// List returns summaries of all known sessions, live and persisted,
// most recently updated first.
func (r *Registry) List(ctx context.Context) ([]Summary, error) {
	persisted, err := r.store.ListSessions(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("listing persisted sessions failed", "error", err)
	}

	byID := make(map[string]Summary, len(persisted))
	for _, s := range persisted {
		byID[s.ID] = s
	}

	r.mu.Lock()
	for id, h := range r.sessions {
		byID[id] = Summary{
			ID:           id,
			FirstMessage: h.State.FirstUserMessage(),
			TurnCount:    h.State.TotalTurns(),
			StartedAt:    h.StartedAt,
			UpdatedAt:    h.UpdatedAt,
		}
	}
	r.mu.Unlock()

	out := make([]Summary, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Store exposes the backing store for the agent's persistence calls.
func (r *Registry) Store() Store {
	return r.store
}
