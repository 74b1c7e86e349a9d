package vectordb

import (
	"context"
	"fmt"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/hkhalifa/versemind/internal/fragments"
)

const collectionName = "fragments"

// errNoEmbedFunc guards against chromem ever being asked to embed on
// its own; all embeddings flow through the pipeline's embed stage.
func errNoEmbedFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("vectordb: embeddings must be precomputed")
}

// ChromemStore implements VectorStore using chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore() (*ChromemStore, error) {
	db := chromem.NewDB()

	col, err := db.GetOrCreateCollection(collectionName, nil, errNoEmbedFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{db: db, collection: col}, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, frags []fragments.Fragment, embeddings [][]float32) error {
	if len(frags) != len(embeddings) {
		return fmt.Errorf("vectordb: %d fragments but %d embeddings", len(frags), len(embeddings))
	}
	if len(frags) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(frags))
	for i, f := range frags {
		docs[i] = chromem.Document{
			ID:        f.Key(),
			Content:   f.Content,
			Embedding: embeddings[i],
			Metadata: map[string]string{
				"document_id": f.DocumentID,
				"seq":         strconv.Itoa(f.Seq),
				"citation":    f.Citation.Display(),
			},
		}
	}

	return s.collection.AddDocuments(ctx, docs, 1)
}

func (s *ChromemStore) Query(ctx context.Context, embedding []float32, limit int) ([]SemanticHit, error) {
	if limit <= 0 {
		limit = 10
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	hits := make([]SemanticHit, len(results))
	for i, r := range results {
		seq, err := strconv.Atoi(r.Metadata["seq"])
		if err != nil {
			return nil, fmt.Errorf("malformed seq metadata on %q: %w", r.ID, err)
		}
		hits[i] = SemanticHit{
			DocumentID: r.Metadata["document_id"],
			Seq:        seq,
			Similarity: r.Similarity,
		}
	}
	return hits, nil
}

func (s *ChromemStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if s.collection.Count() == 0 {
		return nil
	}
	where := map[string]string{"document_id": documentID}
	return s.collection.Delete(ctx, where, nil)
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(dir+"/chromem.gob.gz", true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	err := s.db.ImportFromFile(dir+"/chromem.gob.gz", "")
	if err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, errNoEmbedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}
