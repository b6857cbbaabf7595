package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sakha-labs/sakha/internal/index"
	"github.com/sakha-labs/sakha/internal/log"
	"github.com/sakha-labs/sakha/internal/memory"
)

// newTestPostgres connects to the database named by
// SAKHA_TEST_POSTGRES_URL, skipping when unset.
func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	connURL := os.Getenv("SAKHA_TEST_POSTGRES_URL")
	if connURL == "" {
		t.Skip("SAKHA_TEST_POSTGRES_URL not set, skipping postgres integration test")
	}

	p, err := NewPostgres(context.Background(), connURL, log.NewNop())
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPostgres_TurnRoundTrip(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()
	t.Cleanup(func() { _ = p.DeleteSession(ctx, "it-s1") })

	if err := p.SaveTurn(ctx, "it-s1", turn(1, memory.RoleUser, "integration hello")); err != nil {
		t.Fatalf("SaveTurn() error = %v", err)
	}
	if err := p.SaveMood(ctx, "it-s1", 1, memory.MoodNeutral); err != nil {
		t.Fatalf("SaveMood() error = %v", err)
	}

	snap, ok, err := p.LoadSnapshot(ctx, "it-s1")
	if err != nil || !ok {
		t.Fatalf("LoadSnapshot() = ok %v, err %v", ok, err)
	}
	if len(snap.Turns) != 1 || snap.Turns[0].Text != "integration hello" {
		t.Errorf("snapshot turns = %+v", snap.Turns)
	}
}

func TestPostgres_RestoreAfterEviction(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()
	t.Cleanup(func() { _ = p.DeleteSession(ctx, "it-s2") })

	const window = 2
	live := memory.NewState(window)
	for _, text := range []string{"one here", "two here", "three here", "four here"} {
		tn := live.Append(memory.RoleUser, text)
		if err := p.SaveTurn(ctx, "it-s2", tn); err != nil {
			t.Fatalf("SaveTurn() error = %v", err)
		}
		if err := p.SaveState(ctx, "it-s2", live.Snapshot()); err != nil {
			t.Fatalf("SaveState() error = %v", err)
		}
	}

	snap, ok, err := p.LoadSnapshot(ctx, "it-s2")
	if err != nil || !ok {
		t.Fatalf("LoadSnapshot() = ok %v, err %v", ok, err)
	}
	restored := memory.Restore(snap, window)

	if got, want := restored.Summary(), live.Summary(); got != want {
		t.Errorf("restored summary = %q, want %q (evicted turns must not fold twice)", got, want)
	}
	if len(snap.Turns) != window {
		t.Errorf("snapshot carries %d turns, want the retained window of %d", len(snap.Turns), window)
	}
}

func TestPostgres_ChunkVectorMirror(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()

	chunks := []index.Chunk{
		{ID: "it:0001-0002", DocID: "it", Text: "alpha beta"},
		{ID: "it:0002-0003", DocID: "it", Text: "beta gamma"},
	}
	vectors := [][]float32{{0.6, 0.8}, {1, 0}}

	if err := p.SaveChunkVectors(ctx, "test-model", chunks, vectors); err != nil {
		t.Fatalf("SaveChunkVectors() error = %v", err)
	}

	loaded, ok := p.LoadChunkVectors(ctx, "test-model", chunks)
	if !ok {
		t.Fatal("LoadChunkVectors() should find the mirrored vectors")
	}
	if diff := cmp.Diff(vectors, loaded); diff != "" {
		t.Errorf("vectors differ (-saved +loaded):\n%s", diff)
	}

	if _, ok := p.LoadChunkVectors(ctx, "other-model", chunks); ok {
		t.Error("mirror for a different embedder model should miss")
	}

	changed := append([]index.Chunk{}, chunks...)
	changed[0].ID = "it:9999-9999"
	if _, ok := p.LoadChunkVectors(ctx, "test-model", changed); ok {
		t.Error("mirror should miss when the chunk universe changed")
	}
}
