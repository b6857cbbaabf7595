package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sakha-labs/sakha/internal/log"
	"github.com/sakha-labs/sakha/internal/scripture"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	chunks := ChunkCorpus([]*scripture.Document{
		testDoc(t, "bgita", "perform your duty", "the soul is eternal"),
	}, 1, 0)
	idx := Build(ctx, &mockEmbedder{}, chunks, log.NewNop())

	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := SaveSnapshot(ctx, path, "gemini-embedding-001", idx, log.NewNop()); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	vectors, ok := LoadSnapshot(ctx, path, "gemini-embedding-001", chunks, log.NewNop())
	if !ok {
		t.Fatal("LoadSnapshot() should succeed for matching model and chunks")
	}
	if diff := cmp.Diff(idx.Vectors(), vectors); diff != "" {
		t.Errorf("vectors changed across save/load (-saved +loaded):\n%s", diff)
	}

	warm := BuildFromVectors(&mockEmbedder{}, chunks, vectors, log.NewNop())
	if warm.Degraded() {
		t.Error("warm-started index should not be degraded")
	}
}

func TestSnapshot_ModelMismatch(t *testing.T) {
	ctx := context.Background()
	chunks := ChunkCorpus([]*scripture.Document{testDoc(t, "doc", "one")}, 1, 0)
	idx := Build(ctx, &mockEmbedder{}, chunks, log.NewNop())

	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := SaveSnapshot(ctx, path, "model-a", idx, log.NewNop()); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	if _, ok := LoadSnapshot(ctx, path, "model-b", chunks, log.NewNop()); ok {
		t.Error("LoadSnapshot() should reject a different embedder model")
	}
}

func TestSnapshot_ChunkMismatch(t *testing.T) {
	ctx := context.Background()
	chunks := ChunkCorpus([]*scripture.Document{testDoc(t, "doc", "one", "two")}, 1, 0)
	idx := Build(ctx, &mockEmbedder{}, chunks, log.NewNop())

	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := SaveSnapshot(ctx, path, "m", idx, log.NewNop()); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	changed := ChunkCorpus([]*scripture.Document{testDoc(t, "doc", "one", "changed", "extra")}, 1, 0)
	if _, ok := LoadSnapshot(ctx, path, "m", changed, log.NewNop()); ok {
		t.Error("LoadSnapshot() should reject a changed chunk universe")
	}
}

func TestSnapshot_MissingFile(t *testing.T) {
	ctx := context.Background()
	chunks := ChunkCorpus([]*scripture.Document{testDoc(t, "doc", "one")}, 1, 0)

	path := filepath.Join(t.TempDir(), "missing.json")
	if _, ok := LoadSnapshot(ctx, path, "m", chunks, log.NewNop()); ok {
		t.Error("LoadSnapshot() should fail for a missing file")
	}
}

func TestSnapshot_CorruptFile(t *testing.T) {
	ctx := context.Background()
	chunks := ChunkCorpus([]*scripture.Document{testDoc(t, "doc", "one")}, 1, 0)

	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := LoadSnapshot(ctx, path, "m", chunks, log.NewNop()); ok {
		t.Error("LoadSnapshot() should fail for a corrupt file")
	}
}

func TestSnapshot_DegradedIndexSavesNothing(t *testing.T) {
	ctx := context.Background()
	chunks := ChunkCorpus([]*scripture.Document{testDoc(t, "doc", "one")}, 1, 0)
	idx := BuildFromVectors(&mockEmbedder{}, chunks, nil, log.NewNop())

	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := SaveSnapshot(ctx, path, "m", idx, log.NewNop()); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("degraded index should not write a snapshot")
	}
}
