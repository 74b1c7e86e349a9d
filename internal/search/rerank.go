package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hkhalifa/versemind/internal/fragments"
	"github.com/hkhalifa/versemind/internal/llm"
)

const rerankSystemPrompt = `You judge how relevant text passages are to a query.
Score each passage from 0.0 (irrelevant) to 1.0 (directly answers the query).
Respond with JSON only, in the form:
{"scores": [{"index": 0, "score": 0.9}, {"index": 1, "score": 0.2}]}
Include every passage index exactly once.`

// Reranker reorders fused hits with an LLM relevance judgment.
type Reranker struct {
	provider llm.Provider
	model    string
}

// NewReranker creates a Reranker using the given provider and model.
func NewReranker(provider llm.Provider, model string) *Reranker {
	return &Reranker{provider: provider, model: model}
}

type rerankResponse struct {
	Scores []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"scores"`
}

// Rerank returns the hits reordered by judged relevance, best first.
// Any failure is returned to the caller, which keeps the fused order.
func (r *Reranker) Rerank(ctx context.Context, query string, hits []Hit) ([]Hit, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nPassages:\n", query)
	for i, h := range hits {
		content := h.Content
		if h.Missing {
			content = "(content unavailable)"
		}
		fmt.Fprintf(&b, "[%d] %s\n", i, content)
	}

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: rerankSystemPrompt},
			{Role: llm.RoleUser, Content: b.String()},
		},
		MaxTokens:   2048,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("rerank completion: %w", err)
	}

	var parsed rerankResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return nil, fmt.Errorf("rerank response is not valid JSON: %w", err)
	}
	if len(parsed.Scores) == 0 {
		return nil, fmt.Errorf("rerank response contains no scores")
	}

	scores := make(map[int]float64, len(parsed.Scores))
	for _, s := range parsed.Scores {
		if s.Index < 0 || s.Index >= len(hits) {
			return nil, fmt.Errorf("rerank response references passage %d of %d", s.Index, len(hits))
		}
		scores[s.Index] = s.Score
	}

	reranked := make([]Hit, len(hits))
	copy(reranked, hits)
	for i := range reranked {
		reranked[i].RerankScore = scores[i]
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		if reranked[i].RerankScore != reranked[j].RerankScore {
			return reranked[i].RerankScore > reranked[j].RerankScore
		}
		ki := fragments.Key(reranked[i].DocumentID, reranked[i].Seq)
		kj := fragments.Key(reranked[j].DocumentID, reranked[j].Seq)
		return ki < kj
	})
	return reranked, nil
}
