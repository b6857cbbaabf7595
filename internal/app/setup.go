package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/sakha-labs/sakha/internal/agent"
	"github.com/sakha-labs/sakha/internal/config"
	"github.com/sakha-labs/sakha/internal/index"
	"github.com/sakha-labs/sakha/internal/scripture"
	"github.com/sakha-labs/sakha/internal/session"
	"github.com/sakha-labs/sakha/internal/storage"
)

// Setup builds the application from config. On failure everything
// already initialized is released.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		Logger: newLogger(cfg),
	}
	defer func() {
		if retErr != nil {
			_ = a.Close()
		}
	}()

	if err := a.setupStorage(ctx); err != nil {
		return nil, err
	}
	a.Registry = session.NewRegistry(a.sessions, cfg.MemoryWindow, a.Logger)

	if err := a.setupCorpus(); err != nil {
		return nil, err
	}

	if err := a.setupGenkit(ctx); err != nil {
		return nil, err
	}

	a.Provider = index.NewProvider(a.Logger)
	a.setupIndex(ctx)

	ag, err := agent.New(agent.Options{
		Genkit:     a.Genkit,
		Config:     cfg,
		Registry:   a.Registry,
		Retriever:  a.Provider,
		Scriptures: a.Scriptures,
		Logger:     a.Logger,
	})
	if err != nil {
		return nil, err
	}
	a.Agent = ag

	a.Logger.Info("application ready",
		"backend", cfg.StorageBackend,
		"documents", len(a.Scriptures.List()),
		"chunks", len(a.chunks),
		"degraded", a.Provider.Current() == nil || a.Provider.Current().Degraded())
	return a, nil
}

// setupStorage opens the configured session store.
func (a *App) setupStorage(ctx context.Context) error {
	switch a.Config.StorageBackend {
	case config.BackendPostgres:
		pg, err := storage.NewPostgres(ctx, a.Config.PostgresURL, a.Logger)
		if err != nil {
			return fmt.Errorf("opening postgres store: %w", err)
		}
		a.pg = pg
		a.sessions = pg
	default:
		st, err := storage.NewSQLite(a.Config.SQLitePath, a.Logger)
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		a.sessions = st
	}
	return nil
}

// setupCorpus loads the scripture documents and chunks them.
func (a *App) setupCorpus() error {
	store := scripture.NewStore(a.Logger)
	if err := store.Load(a.Config.CorpusDir); err != nil {
		return fmt.Errorf("loading corpus from %s: %w", a.Config.CorpusDir, err)
	}
	a.Scriptures = store
	a.chunks = index.ChunkCorpus(store.Documents(), a.Config.ChunkVerses, a.Config.ChunkOverlap)
	return nil
}

// setupGenkit initializes Genkit with the Google AI plugin and resolves
// the embedder.
func (a *App) setupGenkit(ctx context.Context) error {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return errors.New("initializing genkit")
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, a.Config.EmbedderModel)
	if embedder == nil {
		return fmt.Errorf("embedder %q not found", a.Config.EmbedderModel)
	}
	a.embedder = embedder
	return nil
}

// setupIndex builds the retrieval index, reusing persisted vectors when
// they match the current corpus and embedder. A failed embedding run
// degrades to lexical retrieval rather than failing startup.
func (a *App) setupIndex(ctx context.Context) {
	if vectors, ok := a.loadVectors(ctx); ok {
		a.Logger.Info("reusing persisted embeddings", "chunks", len(a.chunks))
		a.Provider.Swap(index.BuildFromVectors(a.embedder, a.chunks, vectors, a.Logger))
		return
	}

	idx := index.Build(ctx, a.embedder, a.chunks, a.Logger)
	a.Provider.Swap(idx)
	if !idx.Degraded() {
		a.saveVectors(ctx, idx)
	}
}

// RebuildIndex re-embeds the corpus aside and swaps the fresh index in.
// Queries keep being served from the old index while the rebuild runs.
func (a *App) RebuildIndex(ctx context.Context) error {
	idx := index.Build(ctx, a.embedder, a.chunks, a.Logger)
	if idx.Degraded() {
		a.Provider.Swap(idx)
		return fmt.Errorf("%w: rebuild produced no embeddings, serving lexical retrieval", index.ErrEmbeddingService)
	}
	a.Provider.Swap(idx)
	a.saveVectors(ctx, idx)
	return nil
}

// snapshotPath is where the sqlite backend persists embeddings, next to
// the database file.
func (a *App) snapshotPath() string {
	return filepath.Join(filepath.Dir(a.Config.SQLitePath), "index_snapshot.json")
}

func (a *App) loadVectors(ctx context.Context) ([][]float32, bool) {
	if len(a.chunks) == 0 {
		return nil, false
	}
	if a.pg != nil {
		return a.pg.LoadChunkVectors(ctx, a.Config.EmbedderModel, a.chunks)
	}
	return index.LoadSnapshot(ctx, a.snapshotPath(), a.Config.EmbedderModel, a.chunks, a.Logger)
}

func (a *App) saveVectors(ctx context.Context, idx *index.Index) {
	var err error
	if a.pg != nil {
		err = a.pg.SaveChunkVectors(ctx, a.Config.EmbedderModel, idx.Chunks(), idx.Vectors())
	} else {
		err = index.SaveSnapshot(ctx, a.snapshotPath(), a.Config.EmbedderModel, idx, a.Logger)
	}
	if err != nil {
		a.Logger.Warn("persisting embeddings failed, next start will re-embed", "error", err)
	}
}
