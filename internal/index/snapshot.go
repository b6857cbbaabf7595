package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/sakha-labs/sakha/internal/log"
)

const lockRetryInterval = 100 * time.Millisecond

// snapshotFile is the on-disk embedding cache. A rebuild over an
// unchanged corpus loads vectors from here instead of calling the
// embedding service again.
type snapshotFile struct {
	EmbedderModel string      `json:"embedder_model"`
	ChunkIDs      []string    `json:"chunk_ids"`
	Vectors       [][]float32 `json:"vectors"`
}

// SaveSnapshot writes the index vectors to path, guarded by a file lock
// so concurrent reindex runs cannot interleave writes. A degraded index
// saves nothing.
func SaveSnapshot(ctx context.Context, path, embedderModel string, idx *Index, logger log.Logger) error {
	if logger == nil {
		logger = log.NewNop()
	}
	if idx == nil || idx.Degraded() {
		return nil
	}

	chunks := idx.Chunks()
	snap := snapshotFile{
		EmbedderModel: embedderModel,
		ChunkIDs:      make([]string, len(chunks)),
		Vectors:       idx.Vectors(),
	}
	for i, c := range chunks {
		snap.ChunkIDs[i] = c.ID
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquiring snapshot lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("snapshot lock held by another process")
	}
	defer lock.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	logger.Info("embedding snapshot saved", "path", path, "chunks", len(chunks))
	return nil
}

// LoadSnapshot returns cached vectors when the snapshot matches the
// current embedder model and chunk IDs exactly. Any mismatch or read
// failure returns ok=false; the caller re-embeds.
func LoadSnapshot(ctx context.Context, path, embedderModel string, chunks []Chunk, logger log.Logger) ([][]float32, bool) {
	if logger == nil {
		logger = log.NewNop()
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryRLockContext(ctx, lockRetryInterval)
	if err != nil || !locked {
		return nil, false
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("discarding unreadable embedding snapshot", "path", path, "error", err)
		return nil, false
	}

	if snap.EmbedderModel != embedderModel {
		return nil, false
	}
	if len(snap.ChunkIDs) != len(chunks) || len(snap.Vectors) != len(chunks) {
		return nil, false
	}
	for i, c := range chunks {
		if snap.ChunkIDs[i] != c.ID {
			return nil, false
		}
	}

	logger.Info("embedding snapshot loaded", "path", path, "chunks", len(chunks))
	return snap.Vectors, true
}
