package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (VERSEMIND_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: VERSEMIND_PORT -> port,
	// VERSEMIND_SEARCH__RRF_K -> search.rrf_k, etc.
	if err := k.Load(env.Provider("VERSEMIND_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "VERSEMIND_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("embedding_model is required")
	}
	if c.Chunking.Window < 1 {
		return fmt.Errorf("chunking.window must be at least 1")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Window {
		return fmt.Errorf("chunking.overlap must be in [0, window)")
	}
	if c.Chunking.ChunkSize < 1 {
		return fmt.Errorf("chunking.chunk_size must be at least 1")
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Search.RRFK < 1 {
		return fmt.Errorf("search.rrf_k must be at least 1")
	}
	if c.Search.FullTextWeight < 0 || c.Search.SemanticWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}
	if c.Search.MaxResults < 1 {
		return fmt.Errorf("search.max_results must be at least 1")
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be at least 1")
	}
	if c.Jobs.EmbedConcurrency < 1 {
		return fmt.Errorf("jobs.embed_concurrency must be at least 1")
	}
	if c.Embedding.MaxRetries < 0 {
		return fmt.Errorf("embedding.max_retries must be non-negative")
	}
	return nil
}
