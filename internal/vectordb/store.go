package vectordb

import (
	"context"

	"github.com/hkhalifa/versemind/internal/fragments"
)

// SemanticHit is one vector-similarity match, best first.
type SemanticHit struct {
	DocumentID string
	Seq        int
	Similarity float32
}

// Key returns the hit's fragment identifier.
func (h SemanticHit) Key() string {
	return fragments.Key(h.DocumentID, h.Seq)
}

// VectorStore stores fragment embeddings and serves nearest-neighbour
// queries. Embeddings are always precomputed by the pipeline; the store
// never calls the embedding service itself.
type VectorStore interface {
	// Upsert adds or replaces the vectors for a fragment generation.
	// Fragments and embeddings are parallel slices.
	Upsert(ctx context.Context, frags []fragments.Fragment, embeddings [][]float32) error

	// Query returns the top matches for a query embedding.
	Query(ctx context.Context, embedding []float32, limit int) ([]SemanticHit, error)

	// DeleteByDocument removes all vectors for the given document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Persist saves the store's data to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the store's data from the given directory.
	Load(ctx context.Context, dir string) error

	// Count returns the total number of stored vectors.
	Count() int
}
