package search

import "sort"

// rankedList is one retrieval signal's result list, best first, as
// fragment keys.
type rankedList struct {
	keys   []string
	weight float64
}

// fusedScore is a fragment's combined reciprocal-rank score.
type fusedScore struct {
	key   string
	score float64
}

// fuse combines ranked lists with reciprocal rank fusion. Each list
// contributes weight/(k+rank) for every key it holds, with rank
// starting at 1. Ties break by key ascending so results are stable
// across runs regardless of map iteration or input order.
func fuse(lists []rankedList, k int) []fusedScore {
	if k <= 0 {
		k = 50
	}

	scores := make(map[string]float64)
	for _, list := range lists {
		for i, key := range list.keys {
			rank := i + 1
			scores[key] += list.weight / float64(k+rank)
		}
	}

	fused := make([]fusedScore, 0, len(scores))
	for key, score := range scores {
		fused = append(fused, fusedScore{key: key, score: score})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].key < fused[j].key
	})
	return fused
}
