// Package app assembles the application: configuration, logging,
// storage, the scripture corpus, the retrieval index, and the agent.
package app

import (
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/sakha-labs/sakha/internal/agent"
	"github.com/sakha-labs/sakha/internal/config"
	"github.com/sakha-labs/sakha/internal/index"
	"github.com/sakha-labs/sakha/internal/log"
	"github.com/sakha-labs/sakha/internal/scripture"
	"github.com/sakha-labs/sakha/internal/session"
	"github.com/sakha-labs/sakha/internal/storage"
)

// App is the application container. Build one with Setup and release
// it with Close.
type App struct {
	Config     *config.Config
	Logger     log.Logger
	Genkit     *genkit.Genkit
	Agent      *agent.Agent
	Registry   *session.Registry
	Provider   *index.Provider
	Scriptures *scripture.Store

	embedder ai.Embedder
	chunks   []index.Chunk
	sessions session.Store
	pg       *storage.Postgres // non-nil only on the postgres backend
}

// Close releases storage resources. Safe to call on a partially
// initialized App.
func (a *App) Close() error {
	if a.sessions == nil {
		return nil
	}
	if err := a.sessions.Close(); err != nil {
		a.Logger.Warn("closing session store", "error", err)
		return err
	}
	return nil
}

// Chunks returns the corpus chunks backing the index.
func (a *App) Chunks() []index.Chunk {
	return a.chunks
}

// logLevel maps the config's level string onto slog levels, defaulting
// to info.
func logLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger builds the application logger from config.
func newLogger(cfg *config.Config) log.Logger {
	return log.New(log.Config{
		Level: logLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
}
