package search

import (
	"math"
	"reflect"
	"testing"
)

func TestFuseSingleListScores(t *testing.T) {
	fused := fuse([]rankedList{
		{keys: []string{"a", "b"}, weight: 1.0},
	}, 50)

	if len(fused) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(fused))
	}
	if fused[0].key != "a" {
		t.Errorf("expected first-ranked key first, got %q", fused[0].key)
	}
	if got, want := fused[0].score, 1.0/51.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("rank-1 score: got %v, want %v", got, want)
	}
	if got, want := fused[1].score, 1.0/52.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("rank-2 score: got %v, want %v", got, want)
	}
}

func TestFuseCombinesSignals(t *testing.T) {
	// "both" appears mid-list in two signals; it must outrank keys that
	// lead a single signal.
	fused := fuse([]rankedList{
		{keys: []string{"lex-only", "both"}, weight: 1.0},
		{keys: []string{"sem-only", "both"}, weight: 1.0},
	}, 50)

	if fused[0].key != "both" {
		t.Errorf("expected the shared key first, got %q", fused[0].key)
	}
	if got, want := fused[0].score, 2.0/52.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("shared key score: got %v, want %v", got, want)
	}
}

func TestFuseTieBreakByKeyAscending(t *testing.T) {
	// Same rank in lists of equal weight: identical scores, so order
	// falls back to the key.
	fused := fuse([]rankedList{
		{keys: []string{"zebra"}, weight: 1.0},
		{keys: []string{"aardvark"}, weight: 1.0},
	}, 50)

	if fused[0].key != "aardvark" || fused[1].key != "zebra" {
		t.Errorf("tie should break by key ascending, got %q then %q",
			fused[0].key, fused[1].key)
	}
}

func TestFuseIsDeterministic(t *testing.T) {
	lists := []rankedList{
		{keys: []string{"a", "b", "c", "d"}, weight: 1.0},
		{keys: []string{"d", "c", "b", "a"}, weight: 1.0},
	}

	first := fuse(lists, 50)
	for i := 0; i < 20; i++ {
		if again := fuse(lists, 50); !reflect.DeepEqual(first, again) {
			t.Fatal("fusion order varies between runs")
		}
	}
}

func TestFuseRespectsWeights(t *testing.T) {
	fused := fuse([]rankedList{
		{keys: []string{"lex"}, weight: 3.0},
		{keys: []string{"sem"}, weight: 1.0},
	}, 50)

	if fused[0].key != "lex" {
		t.Errorf("heavier signal should win, got %q first", fused[0].key)
	}
	if got, want := fused[0].score, 3.0/51.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("weighted score: got %v, want %v", got, want)
	}
}

func TestFuseDefaultK(t *testing.T) {
	fused := fuse([]rankedList{{keys: []string{"a"}, weight: 1.0}}, 0)
	if got, want := fused[0].score, 1.0/51.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("expected default k of 50, score %v want %v", got, want)
	}
}

func TestFuseEmptyInput(t *testing.T) {
	if fused := fuse(nil, 50); len(fused) != 0 {
		t.Errorf("expected no entries, got %d", len(fused))
	}
}
