package search

import (
	"context"
	"errors"
	"testing"

	"github.com/hkhalifa/versemind/internal/config"
	"github.com/hkhalifa/versemind/internal/db"
	"github.com/hkhalifa/versemind/internal/embeddings"
	"github.com/hkhalifa/versemind/internal/fragments"
	"github.com/hkhalifa/versemind/internal/llm"
	"github.com/hkhalifa/versemind/internal/vectordb"
)

// fakeEmbedder returns a fixed query vector so tests control the
// semantic signal exactly.
type fakeEmbedder struct {
	queryVec []float32
	fail     bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, errors.New("service unavailable")
	}
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = f.queryVec
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }
func (f *fakeEmbedder) Name() string    { return "fake" }

type fakeProvider struct {
	content string
	err     error
}

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

type engineEnv struct {
	engine   *Engine
	frags    *fragments.Store
	vectors  *vectordb.ChromemStore
	embedder *fakeEmbedder
	provider *fakeProvider
	cfg      *config.Config
}

// newEngineEnv seeds three fragments with orthogonal embeddings:
//
//	d1:0 "In the beginning God created the heaven and the earth"  [1,0,0]
//	d1:1 "And the earth was without form, and void"               [0,1,0]
//	d1:2 "And God said, Let there be light"                       [0,0,1]
func newEngineEnv(t *testing.T) *engineEnv {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if _, err := database.Exec(
		`INSERT INTO documents (id, name, category, size) VALUES ('d1', 'Genesis', 'versed', 2048)`,
	); err != nil {
		t.Fatalf("inserting parent document: %v", err)
	}

	frags := fragments.NewStore(database)
	seed := []fragments.Fragment{
		{DocumentID: "d1", Seq: 0, Content: "In the beginning God created the heaven and the earth",
			Citation: fragments.Citation{Book: "Genesis", Chapter: "1", VerseStart: 1, VerseEnd: 1}},
		{DocumentID: "d1", Seq: 1, Content: "And the earth was without form, and void",
			Citation: fragments.Citation{Book: "Genesis", Chapter: "1", VerseStart: 2, VerseEnd: 2}},
		{DocumentID: "d1", Seq: 2, Content: "And God said, Let there be light",
			Citation: fragments.Citation{Book: "Genesis", Chapter: "1", VerseStart: 3, VerseEnd: 3}},
	}
	if err := frags.Upsert(context.Background(), seed, "Genesis", "versed"); err != nil {
		t.Fatalf("seeding fragments: %v", err)
	}

	vectors, err := vectordb.NewChromemStore()
	if err != nil {
		t.Fatalf("creating vector store: %v", err)
	}
	err = vectors.Upsert(context.Background(), seed, [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	})
	if err != nil {
		t.Fatalf("seeding vectors: %v", err)
	}

	cfg := config.DefaultConfig()
	env := &engineEnv{
		frags:    frags,
		vectors:  vectors,
		embedder: &fakeEmbedder{queryVec: []float32{0, 1, 0}},
		provider: &fakeProvider{},
		cfg:      cfg,
	}
	env.engine = NewEngine(frags, vectors, env.embedder,
		NewReranker(env.provider, "judge"), cfg)
	return env
}

func TestSearchFusesLexicalAndSemantic(t *testing.T) {
	env := newEngineEnv(t)

	// "light" matches d1:2 lexically; the query vector points at d1:1.
	resp, err := env.engine.Search(context.Background(), Request{Query: "light"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.Reranked {
		t.Error("rerank is off by default")
	}
	if len(resp.Hits) == 0 {
		t.Fatal("expected hits")
	}

	// d1:2 carries both a lexical rank and a semantic rank, so it must
	// come out on top of single-signal hits.
	top := resp.Hits[0]
	if top.DocumentID != "d1" || top.Seq != 2 {
		t.Errorf("expected d1:2 first, got %s:%d", top.DocumentID, top.Seq)
	}
	if top.Citation != "Genesis 1:3" {
		t.Errorf("unexpected citation %q", top.Citation)
	}
	if top.DocName != "Genesis" || top.DocCategory != "versed" {
		t.Errorf("enrichment fields missing: %+v", top)
	}
	if top.Score <= 0 {
		t.Errorf("expected positive fused score, got %v", top.Score)
	}
}

func TestSearchCarriesComponentScores(t *testing.T) {
	env := newEngineEnv(t)

	resp, err := env.engine.Search(context.Background(), Request{Query: "light"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	byKey := make(map[string]Hit, len(resp.Hits))
	for _, h := range resp.Hits {
		byKey[fragments.Key(h.DocumentID, h.Seq)] = h
	}

	// d1:2 is the lexical match for "light".
	lexHit, ok := byKey["d1:2"]
	if !ok {
		t.Fatal("expected d1:2 in the results")
	}
	if lexHit.LexicalScore <= 0 {
		t.Errorf("expected a positive lexical score on d1:2, got %v", lexHit.LexicalScore)
	}

	// The query vector points straight at d1:1, which "light" does not
	// match lexically.
	semHit, ok := byKey["d1:1"]
	if !ok {
		t.Fatal("expected d1:1 in the results")
	}
	if semHit.SemanticScore < 0.99 {
		t.Errorf("expected near-1 similarity on d1:1, got %v", semHit.SemanticScore)
	}
	if semHit.LexicalScore != 0 {
		t.Errorf("d1:1 is not a lexical match, got score %v", semHit.LexicalScore)
	}

	for key, h := range byKey {
		if h.DocSize != 2048 {
			t.Errorf("expected enriched document size 2048 on %s, got %d", key, h.DocSize)
		}
	}
}

func TestSearchDegradesToLexicalOnEmbeddingFailure(t *testing.T) {
	env := newEngineEnv(t)
	env.embedder.fail = true

	resp, err := env.engine.Search(context.Background(), Request{Query: "light"})
	if err != nil {
		t.Fatalf("Search should not fail when the embedder is down: %v", err)
	}
	if len(resp.Hits) != 1 {
		t.Fatalf("expected 1 lexical hit, got %d", len(resp.Hits))
	}
	if resp.Hits[0].Seq != 2 {
		t.Errorf("expected the lexical match, got %+v", resp.Hits[0])
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	env := newEngineEnv(t)

	_, err := env.engine.Search(context.Background(), Request{Query: "   "})
	if !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestSearchLimitCapsResults(t *testing.T) {
	env := newEngineEnv(t)

	resp, err := env.engine.Search(context.Background(), Request{Query: "earth", Limit: 1})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(resp.Hits) != 1 {
		t.Errorf("expected 1 hit with limit 1, got %d", len(resp.Hits))
	}
}

func TestSearchMissingFragmentBecomesPlaceholder(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	// A vector whose row store entry is gone: ranked, then found
	// missing during enrichment.
	orphan := []fragments.Fragment{{DocumentID: "ghost", Seq: 0, Content: "orphan"}}
	if err := env.vectors.Upsert(ctx, orphan, [][]float32{{0, 1, 0}}); err != nil {
		t.Fatalf("seeding orphan vector: %v", err)
	}

	resp, err := env.engine.Search(ctx, Request{Query: "zzzunmatched light"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	var placeholder *Hit
	for i := range resp.Hits {
		if resp.Hits[i].DocumentID == "ghost" {
			placeholder = &resp.Hits[i]
		}
	}
	if placeholder == nil {
		t.Fatal("expected a placeholder hit for the orphaned vector")
	}
	if !placeholder.Missing || placeholder.Content != "" {
		t.Errorf("placeholder should be marked missing with no content: %+v", placeholder)
	}
}

func TestSearchRerankReorders(t *testing.T) {
	env := newEngineEnv(t)
	rerank := true

	// The judge inverts the fused order.
	env.provider.content = `{"scores": [{"index": 0, "score": 0.1}, {"index": 1, "score": 0.9}, {"index": 2, "score": 0.5}]}`

	resp, err := env.engine.Search(context.Background(), Request{Query: "light", Rerank: &rerank})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !resp.Reranked {
		t.Fatal("expected a reranked response")
	}
	if len(resp.Hits) < 2 {
		t.Fatalf("expected multiple hits, got %d", len(resp.Hits))
	}
	if resp.Hits[0].RerankScore != 0.9 {
		t.Errorf("expected the judge's top pick first, got score %v", resp.Hits[0].RerankScore)
	}
}

func TestSearchRerankFailureFallsBack(t *testing.T) {
	env := newEngineEnv(t)
	rerank := true
	env.provider.err = errors.New("judge unavailable")

	resp, err := env.engine.Search(context.Background(), Request{Query: "light", Rerank: &rerank})
	if err != nil {
		t.Fatalf("Search should fall back when the judge fails: %v", err)
	}
	if resp.Reranked {
		t.Error("fallback response must not claim to be reranked")
	}
	if len(resp.Hits) == 0 {
		t.Error("fallback should keep the fused hits")
	}
	if resp.Hits[0].Seq != 2 {
		t.Errorf("fallback should keep fused order, got %+v", resp.Hits[0])
	}
}

func TestSearchRerankMalformedResponseFallsBack(t *testing.T) {
	env := newEngineEnv(t)
	rerank := true

	for _, content := range []string{
		"not json",
		`{"scores": []}`,
		`{"scores": [{"index": 99, "score": 0.5}]}`,
	} {
		env.provider.content = content
		resp, err := env.engine.Search(context.Background(), Request{Query: "light", Rerank: &rerank})
		if err != nil {
			t.Fatalf("Search failed on %q: %v", content, err)
		}
		if resp.Reranked {
			t.Errorf("response %q should not count as reranked", content)
		}
	}
}

var _ embeddings.Embedder = (*fakeEmbedder)(nil)
var _ llm.Provider = (*fakeProvider)(nil)
