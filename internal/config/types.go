package config

// Config is the top-level versemind configuration, corresponding to .versemind.yml.
type Config struct {
	Port           int          `yaml:"port" koanf:"port"`
	DataDir        string       `yaml:"data_dir" koanf:"data_dir"`
	AllowAllCORS   bool         `yaml:"allow_all_cors" koanf:"allow_all_cors"`
	EmbeddingModel string       `yaml:"embedding_model" koanf:"embedding_model"`
	RerankModel    string       `yaml:"rerank_model" koanf:"rerank_model"`
	Chunking       Chunking     `yaml:"chunking" koanf:"chunking"`
	Search         SearchConfig `yaml:"search" koanf:"search"`
	Jobs           JobsConfig   `yaml:"jobs" koanf:"jobs"`
	Embedding      Embedding    `yaml:"embedding" koanf:"embedding"`
}

// Chunking controls how source documents are split into fragments.
type Chunking struct {
	// Window is the number of verses per fragment for versed documents.
	Window int `yaml:"window" koanf:"window"`
	// Overlap is the number of verses shared between adjacent fragments.
	Overlap int `yaml:"overlap" koanf:"overlap"`
	// ChunkSize is the character window for free-form documents.
	ChunkSize int `yaml:"chunk_size" koanf:"chunk_size"`
	// ChunkOverlap is the character overlap for free-form documents.
	ChunkOverlap int `yaml:"chunk_overlap" koanf:"chunk_overlap"`
	// BoundaryLookback is how far back to search for a sentence or
	// paragraph break before hard-cutting a free-form chunk.
	BoundaryLookback int `yaml:"boundary_lookback" koanf:"boundary_lookback"`
}

// SearchConfig holds hybrid search and rank-fusion parameters.
type SearchConfig struct {
	// RRFK is the K constant in the reciprocal rank fusion formula 1/(K+rank).
	RRFK int `yaml:"rrf_k" koanf:"rrf_k"`
	// FullTextWeight scales the lexical signal's contribution.
	FullTextWeight float64 `yaml:"full_text_weight" koanf:"full_text_weight"`
	// SemanticWeight scales the embedding signal's contribution.
	SemanticWeight float64 `yaml:"semantic_weight" koanf:"semantic_weight"`
	// MaxResults caps the number of results returned from a search.
	MaxResults int `yaml:"max_results" koanf:"max_results"`
	// Rerank enables the LLM relevance-judge pass over the fused top results.
	Rerank bool `yaml:"rerank" koanf:"rerank"`
}

// JobsConfig controls background pipeline execution.
type JobsConfig struct {
	// Workers is the number of documents processed concurrently.
	Workers int `yaml:"workers" koanf:"workers"`
	// EmbedConcurrency bounds concurrent embedding batches within one job.
	EmbedConcurrency int `yaml:"embed_concurrency" koanf:"embed_concurrency"`
}

// Embedding holds external embedding service settings.
type Embedding struct {
	// RequestsPerMinute rate-limits calls to the embedding API.
	RequestsPerMinute int `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	// TimeoutSeconds is the per-call timeout.
	TimeoutSeconds int `yaml:"timeout_seconds" koanf:"timeout_seconds"`
	// MaxRetries is the retry budget per embedding batch.
	MaxRetries int `yaml:"max_retries" koanf:"max_retries"`
}
