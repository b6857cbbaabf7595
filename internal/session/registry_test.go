package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/sakha-labs/sakha/internal/log"
	"github.com/sakha-labs/sakha/internal/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeStore is an in-memory Store for registry tests.
type fakeStore struct {
	NopStore

	mu        sync.Mutex
	snapshots map[string]memory.Snapshot
	deleted   []string
	loadErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshots: make(map[string]memory.Snapshot)}
}

func (f *fakeStore) LoadSnapshot(_ context.Context, id string) (memory.Snapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return memory.Snapshot{}, false, f.loadErr
	}
	snap, ok := f.snapshots[id]
	return snap, ok, nil
}

func (f *fakeStore) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snapshots, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) ListSessions(context.Context) ([]Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Summary
	for id, snap := range f.snapshots {
		out = append(out, Summary{ID: id, TurnCount: snap.Total})
	}
	return out, nil
}

func TestResolve_EmptyIDCreatesSession(t *testing.T) {
	r := NewRegistry(newFakeStore(), 4, log.NewNop())

	h, err := r.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if h.ID == "" {
		t.Error("new session should get a generated ID")
	}
	if h.State.TotalTurns() != 0 {
		t.Error("new session should start empty")
	}
}

func TestResolve_SameIDSameHandle(t *testing.T) {
	r := NewRegistry(newFakeStore(), 4, log.NewNop())
	ctx := context.Background()

	a, _ := r.Resolve(ctx, "s1")
	b, _ := r.Resolve(ctx, "s1")
	if a != b {
		t.Error("resolving the same id twice should return the same handle")
	}
}

func TestResolve_UnknownIDIsLenient(t *testing.T) {
	r := NewRegistry(newFakeStore(), 4, log.NewNop())

	h, err := r.Resolve(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("Resolve() error = %v, lenient resolve should not fail", err)
	}
	if h.ID != "never-seen" {
		t.Errorf("handle ID = %q, want the requested id", h.ID)
	}
}

func TestResolve_RestoresFromStore(t *testing.T) {
	store := newFakeStore()
	seed := memory.NewState(4)
	seed.Append(memory.RoleUser, "an earlier question")
	seed.Append(memory.RoleAssistant, "an earlier answer")
	store.snapshots["old"] = seed.Snapshot()

	r := NewRegistry(store, 4, log.NewNop())
	h, err := r.Resolve(context.Background(), "old")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if h.State.TotalTurns() != 2 {
		t.Errorf("restored session has %d turns, want 2", h.State.TotalTurns())
	}
}

func TestResolve_StoreFailureStartsFresh(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("db down")

	r := NewRegistry(store, 4, log.NewNop())
	h, err := r.Resolve(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Resolve() error = %v, store failure should degrade", err)
	}
	if h.State.TotalTurns() != 0 {
		t.Error("failed restore should yield a fresh session")
	}
}

func TestReset(t *testing.T) {
	store := newFakeStore()
	r := NewRegistry(store, 4, log.NewNop())
	ctx := context.Background()

	old, _ := r.Resolve(ctx, "s1")
	old.State.Append(memory.RoleUser, "I am sad about Arjuna")
	store.snapshots["s1"] = old.State.Snapshot()

	fresh, err := r.Reset(ctx, "s1", false)
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if fresh.ID == "s1" {
		t.Error("reset must mint a new session ID")
	}
	if fresh.State.TotalTurns() != 0 || fresh.State.Summary() != "" ||
		len(fresh.State.Entities()) != 0 || fresh.State.Mood() != memory.MoodNeutral {
		t.Error("reset session must carry no state over")
	}

	store.mu.Lock()
	deleted := len(store.deleted) == 1 && store.deleted[0] == "s1"
	store.mu.Unlock()
	if !deleted {
		t.Error("reset should delete the persisted session")
	}

	// The old id resolves to a brand-new session now.
	again, _ := r.Resolve(ctx, "s1")
	if again.State.TotalTurns() != 0 {
		t.Error("old id should not resurrect the discarded state")
	}
}

func TestReset_StrictUnknownSession(t *testing.T) {
	r := NewRegistry(newFakeStore(), 4, log.NewNop())

	if _, err := r.Reset(context.Background(), "ghost", true); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("strict Reset() error = %v, want ErrSessionNotFound", err)
	}
}

func TestReset_LenientUnknownSession(t *testing.T) {
	r := NewRegistry(newFakeStore(), 4, log.NewNop())

	fresh, err := r.Reset(context.Background(), "ghost", false)
	if err != nil {
		t.Fatalf("lenient Reset() error = %v", err)
	}
	if fresh.ID == "" || fresh.ID == "ghost" {
		t.Errorf("fresh session ID = %q", fresh.ID)
	}
}

func TestList_MergesLiveAndPersisted(t *testing.T) {
	store := newFakeStore()
	store.snapshots["persisted"] = memory.Snapshot{Total: 6}

	r := NewRegistry(store, 4, log.NewNop())
	ctx := context.Background()

	live, _ := r.Resolve(ctx, "live")
	live.Lock()
	live.State.Append(memory.RoleUser, "hello")
	live.Touch()
	live.Unlock()

	list, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	ids := make(map[string]Summary, len(list))
	for _, s := range list {
		ids[s.ID] = s
	}
	if _, ok := ids["persisted"]; !ok {
		t.Error("persisted session missing from listing")
	}
	if got, ok := ids["live"]; !ok || got.TurnCount != 1 {
		t.Errorf("live session listing = %+v", got)
	}
}

func TestHandle_SerializesTurns(t *testing.T) {
	r := NewRegistry(newFakeStore(), 8, log.NewNop())
	h, _ := r.Resolve(context.Background(), "s1")

	const workers = 8
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Lock()
			defer h.Unlock()
			n := h.State.TotalTurns()
			time.Sleep(time.Millisecond)
			h.State.Append(memory.RoleUser, "concurrent message")
			if h.State.TotalTurns() != n+1 {
				t.Error("turn appended concurrently under the session lock")
			}
		}()
	}
	wg.Wait()

	if h.State.TotalTurns() != workers {
		t.Errorf("TotalTurns() = %d, want %d", h.State.TotalTurns(), workers)
	}
}
