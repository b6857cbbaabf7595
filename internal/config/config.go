// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (SAKHA_* runtime override)
//  2. Config file (~/.sakha/config.yaml)
//  3. Default values
//
// Security: sensitive fields (database passwords, API keys) are masked in
// MarshalJSON. Validation uses sentinel errors so callers can check with
// errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidMemoryWindow indicates the memory window size is out of range.
	ErrInvalidMemoryWindow = errors.New("invalid memory window")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidChunking indicates the chunk window/overlap combination is invalid.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidStorageBackend indicates an unsupported storage backend.
	ErrInvalidStorageBackend = errors.New("invalid storage backend")

	// ErrMissingPostgresURL indicates the postgres backend is selected without a URL.
	ErrMissingPostgresURL = errors.New("missing postgres URL")
)

// Storage backend identifiers used in Config.StorageBackend.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Retrieval bounds. TopK is validated against MaxTopK at query time as well;
// see the index package.
const (
	MinTopK = 1
	MaxTopK = 10
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON().
type Config struct {
	// Generation model configuration
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Embedding configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Corpus
	CorpusDir string `mapstructure:"corpus_dir" json:"corpus_dir"`

	// Retrieval
	TopK         int `mapstructure:"top_k" json:"top_k"`
	ChunkVerses  int `mapstructure:"chunk_verses" json:"chunk_verses"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Conversation memory
	MemoryWindow int `mapstructure:"memory_window" json:"memory_window"`

	// Storage
	StorageBackend string `mapstructure:"storage_backend" json:"storage_backend"` // "sqlite" (default) or "postgres"
	SQLitePath     string `mapstructure:"sqlite_path" json:"sqlite_path"`
	PostgresURL    string `mapstructure:"postgres_url" json:"-"` // masked: may embed credentials

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// MarshalJSON masks sensitive fields so configs can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	return json.Marshal(struct {
		alias
		PostgresURL string `json:"postgres_url"`
	}{alias: alias(c), PostgresURL: maskIf(c.PostgresURL)})
}

func maskIf(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// Default returns a Config populated with default values.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dir := filepath.Join(home, ".sakha")

	return &Config{
		ModelName:      "googleai/gemini-2.5-flash",
		Temperature:    0.6,
		MaxTokens:      500,
		EmbedderModel:  "gemini-embedding-001",
		CorpusDir:      filepath.Join(dir, "scriptures"),
		TopK:           3,
		ChunkVerses:    8,
		ChunkOverlap:   2,
		MemoryWindow:   20,
		StorageBackend: BackendSQLite,
		SQLitePath:     filepath.Join(dir, "sakha.db"),
		LogLevel:       "info",
	}
}

// Load reads configuration from file and environment.
// Missing config file is not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("model_name", def.ModelName)
	v.SetDefault("temperature", def.Temperature)
	v.SetDefault("max_tokens", def.MaxTokens)
	v.SetDefault("embedder_model", def.EmbedderModel)
	v.SetDefault("corpus_dir", def.CorpusDir)
	v.SetDefault("top_k", def.TopK)
	v.SetDefault("chunk_verses", def.ChunkVerses)
	v.SetDefault("chunk_overlap", def.ChunkOverlap)
	v.SetDefault("memory_window", def.MemoryWindow)
	v.SetDefault("storage_backend", def.StorageBackend)
	v.SetDefault("sqlite_path", def.SQLitePath)
	v.SetDefault("postgres_url", "")
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_json", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".sakha"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("SAKHA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks all configuration values against their allowed ranges.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %.2f not in [0, 2]", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens <= 0 || c.MaxTokens > 65536 {
		return fmt.Errorf("%w: %d not in (0, 65536]", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.MemoryWindow < 2 || c.MemoryWindow > 1000 {
		return fmt.Errorf("%w: %d not in [2, 1000]", ErrInvalidMemoryWindow, c.MemoryWindow)
	}
	if c.TopK < MinTopK || c.TopK > MaxTopK {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidTopK, c.TopK, MinTopK, MaxTopK)
	}
	if c.ChunkVerses < 1 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkVerses {
		return fmt.Errorf("%w: verses=%d overlap=%d", ErrInvalidChunking, c.ChunkVerses, c.ChunkOverlap)
	}
	switch c.StorageBackend {
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite path must not be empty", ErrInvalidStorageBackend)
		}
	case BackendPostgres:
		if strings.TrimSpace(c.PostgresURL) == "" {
			return ErrMissingPostgresURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStorageBackend, c.StorageBackend)
	}
	return nil
}
