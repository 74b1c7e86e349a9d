package search

// Request is one hybrid search query.
type Request struct {
	Query string `json:"query"`
	// Limit caps the number of hits. Zero means the configured default.
	Limit int `json:"limit,omitempty"`
	// Rerank overrides the configured rerank setting when non-nil.
	Rerank *bool `json:"rerank,omitempty"`
}

// Hit is one search result.
type Hit struct {
	DocumentID  string  `json:"document_id"`
	Seq         int     `json:"seq"`
	Content     string  `json:"content"`
	Citation    string  `json:"citation"`
	DocName     string  `json:"doc_name"`
	DocCategory string  `json:"doc_category"`
	DocSize     int64   `json:"doc_size,omitempty"`
	Score       float64 `json:"score"`
	// LexicalScore and SemanticScore are the per-signal scores that fed
	// the fusion: negated bm25 for the lexical list, cosine similarity
	// for the semantic list. Zero when the hit was absent from that list.
	LexicalScore  float64 `json:"lexical_score,omitempty"`
	SemanticScore float64 `json:"semantic_score,omitempty"`
	RerankScore   float64 `json:"rerank_score,omitempty"`
	// Missing marks a hit whose fragment row vanished between ranking
	// and enrichment. The identifiers remain usable; the content fields
	// are empty.
	Missing bool `json:"missing,omitempty"`
}

// Response is the result of one search.
type Response struct {
	Query    string `json:"query"`
	Hits     []Hit  `json:"hits"`
	Reranked bool   `json:"reranked"`
}
