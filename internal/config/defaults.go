package config

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:           8476,
		DataDir:        ".versemind",
		EmbeddingModel: "text-embedding-3-small",
		RerankModel:    "gpt-4o-mini",
		Chunking: Chunking{
			Window:           5,
			Overlap:          1,
			ChunkSize:        1000,
			ChunkOverlap:     0,
			BoundaryLookback: 100,
		},
		Search: SearchConfig{
			RRFK:           50,
			FullTextWeight: 1.0,
			SemanticWeight: 1.0,
			MaxResults:     30,
			Rerank:         false,
		},
		Jobs: JobsConfig{
			Workers:          4,
			EmbedConcurrency: 4,
		},
		Embedding: Embedding{
			RequestsPerMinute: 300,
			TimeoutSeconds:    30,
			MaxRetries:        3,
		},
	}
}

// APIKeyEnvVar is the environment variable holding the OpenAI API key
// used for both embeddings and the rerank judge.
const APIKeyEnvVar = "OPENAI_API_KEY"
