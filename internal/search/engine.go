// Package search answers queries against the fragment corpus by fusing
// a lexical full-text signal with a semantic vector signal, optionally
// followed by an LLM rerank pass.
package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/hkhalifa/versemind/internal/config"
	"github.com/hkhalifa/versemind/internal/embeddings"
	"github.com/hkhalifa/versemind/internal/fragments"
	"github.com/hkhalifa/versemind/internal/vectordb"
)

// ErrEmptyQuery rejects searches with no query text.
var ErrEmptyQuery = errors.New("query is required")

// Engine runs hybrid retrieval over the fragment stores.
type Engine struct {
	frags    *fragments.Store
	vectors  vectordb.VectorStore
	embedder embeddings.Embedder
	reranker *Reranker
	cfg      *config.Config
}

// NewEngine creates an Engine. reranker may be nil to disable the
// rerank pass entirely.
func NewEngine(
	frags *fragments.Store,
	vectors vectordb.VectorStore,
	embedder embeddings.Embedder,
	reranker *Reranker,
	cfg *config.Config,
) *Engine {
	return &Engine{
		frags:    frags,
		vectors:  vectors,
		embedder: embedder,
		reranker: reranker,
		cfg:      cfg,
	}
}

// Search answers one query. The lexical signal is local and always
// consulted; a failing embedding service degrades the search to
// lexical-only rather than failing it.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	limit := req.Limit
	if limit <= 0 || limit > e.cfg.Search.MaxResults {
		limit = e.cfg.Search.MaxResults
	}

	// Each signal contributes up to twice the final limit so fusion has
	// genuine overlap to work with.
	poolSize := limit * 2

	lexHits, err := e.frags.SearchLexical(ctx, query, poolSize)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	lexical := rankedList{weight: e.cfg.Search.FullTextWeight}
	lexScores := make(map[string]float64, len(lexHits))
	for _, h := range lexHits {
		key := h.Key()
		lexical.keys = append(lexical.keys, key)
		lexScores[key] = h.Score
	}

	semantic := rankedList{weight: e.cfg.Search.SemanticWeight}
	semScores := make(map[string]float64)
	if vecs, err := e.embedder.Embed(ctx, []string{query}); err != nil {
		log.Printf("search: query embedding failed, using lexical only: %v", err)
	} else if len(vecs) == 1 {
		semHits, err := e.vectors.Query(ctx, vecs[0], poolSize)
		if err != nil {
			log.Printf("search: vector query failed, using lexical only: %v", err)
		} else {
			for _, h := range semHits {
				key := h.Key()
				semantic.keys = append(semantic.keys, key)
				semScores[key] = float64(h.Similarity)
			}
		}
	}

	fused := fuse([]rankedList{lexical, semantic}, e.cfg.Search.RRFK)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	hits, err := e.enrich(ctx, fused, lexScores, semScores)
	if err != nil {
		return nil, err
	}

	resp := &Response{Query: query, Hits: hits}

	wantRerank := e.cfg.Search.Rerank
	if req.Rerank != nil {
		wantRerank = *req.Rerank
	}
	if wantRerank && e.reranker != nil && len(hits) > 1 {
		reranked, err := e.reranker.Rerank(ctx, query, hits)
		if err != nil {
			// Fusion order is already useful; keep it.
			log.Printf("search: rerank failed, returning fused order: %v", err)
		} else {
			resp.Hits = reranked
			resp.Reranked = true
		}
	}

	return resp, nil
}

// enrich resolves fused keys into full hits, attaching the per-signal
// scores that fed the fusion. A key whose fragment row is gone (deleted
// mid-query) becomes a placeholder hit instead of sinking the whole
// response.
func (e *Engine) enrich(ctx context.Context, fused []fusedScore, lexScores, semScores map[string]float64) ([]Hit, error) {
	keys := make([]string, len(fused))
	for i, f := range fused {
		keys[i] = f.key
	}

	stored, err := e.frags.GetByKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("enrich hits: %w", err)
	}

	hits := make([]Hit, 0, len(fused))
	for _, f := range fused {
		sf, ok := stored[f.key]
		if !ok {
			docID, seq, perr := fragments.ParseKey(f.key)
			if perr != nil {
				continue
			}
			log.Printf("search: fragment %s missing during enrichment", f.key)
			hits = append(hits, Hit{
				DocumentID:    docID,
				Seq:           seq,
				Score:         f.score,
				LexicalScore:  lexScores[f.key],
				SemanticScore: semScores[f.key],
				Missing:       true,
			})
			continue
		}
		hits = append(hits, Hit{
			DocumentID:    sf.DocumentID,
			Seq:           sf.Seq,
			Content:       sf.Content,
			Citation:      sf.Citation.Display(),
			DocName:       sf.DocName,
			DocCategory:   sf.DocCategory,
			DocSize:       sf.DocSize,
			Score:         f.score,
			LexicalScore:  lexScores[f.key],
			SemanticScore: semScores[f.key],
		})
	}
	return hits, nil
}
