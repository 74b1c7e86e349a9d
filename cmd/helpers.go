package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hkhalifa/versemind/internal/config"
	"github.com/hkhalifa/versemind/internal/db"
	"github.com/hkhalifa/versemind/internal/embeddings"
	"github.com/hkhalifa/versemind/internal/llm"
	"github.com/hkhalifa/versemind/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `versemind init` to create a config file", err)
	}
	return cfg, nil
}

// newEmbedder creates the OpenAI embedder from config and environment.
func newEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	apiKey := os.Getenv(config.APIKeyEnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is required for embeddings", config.APIKeyEnvVar)
	}
	return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.EmbeddingModel), embeddings.Options{
		RequestsPerMinute: cfg.Embedding.RequestsPerMinute,
		Timeout:           time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		MaxRetries:        cfg.Embedding.MaxRetries,
	}), nil
}

// newProvider creates the rerank judge provider, or nil when no API key
// is available. Search still works without it.
func newProvider(cfg *config.Config) llm.Provider {
	apiKey := os.Getenv(config.APIKeyEnvVar)
	if apiKey == "" {
		return nil
	}
	return llm.NewOpenAIProvider(apiKey, cfg.RerankModel)
}

// openStores opens the SQLite database and the vector store under the
// configured data directory, loading persisted vectors when present.
func openStores(cfg *config.Config) (*db.DB, *vectordb.ChromemStore, error) {
	database, err := db.Open(filepath.Join(cfg.DataDir, "versemind.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	vectors, err := vectordb.NewChromemStore()
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("creating vector store: %w", err)
	}

	if err := vectors.Load(context.Background(), cfg.DataDir); err != nil {
		// A fresh data directory has no vector snapshot yet.
		if verbose {
			fmt.Fprintf(os.Stderr, "no vector snapshot loaded from %s: %v\n", cfg.DataDir, err)
		}
	}

	return database, vectors, nil
}
