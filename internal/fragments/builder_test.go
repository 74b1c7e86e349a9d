package fragments

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/hkhalifa/versemind/internal/documents"
)

// nineVerses builds a single-chapter input with nine verses in each of
// the four supported shapes.
func nineVerses(t *testing.T, shape string) []byte {
	t.Helper()

	verses := make([]string, 9)
	for i := range verses {
		verses[i] = fmt.Sprintf("verse text %d", i+1)
	}

	switch shape {
	case "nested":
		return mustJSON(t, map[string]map[string][]string{
			"Genesis": {"1": verses},
		})
	case "groups":
		return mustJSON(t, []map[string]interface{}{
			{
				"name": "Genesis",
				"chapters": []map[string]interface{}{
					{"number": 1, "verses": verses},
				},
			},
		})
	case "flat":
		var records []map[string]interface{}
		for i, v := range verses {
			records = append(records, map[string]interface{}{
				"book": "Genesis", "chapter": 1, "verse": i + 1, "text": v,
			})
		}
		return mustJSON(t, records)
	case "indexed":
		indexed := make(map[string]string, len(verses))
		for i, v := range verses {
			indexed[fmt.Sprintf("%d", i+1)] = v
		}
		return mustJSON(t, map[string]map[string]map[string]string{
			"Genesis": {"1": indexed},
		})
	default:
		t.Fatalf("unknown shape %q", shape)
		return nil
	}
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshalling fixture: %v", err)
	}
	return data
}

func TestVersedWindowing(t *testing.T) {
	// 9 verses, window 5, overlap 1: two fragments, 1-5 and 5-9. The
	// second is shorter than a full window but still emitted.
	for _, shape := range []string{"nested", "groups", "flat", "indexed"} {
		t.Run(shape, func(t *testing.T) {
			frags, err := Build(documents.CategoryVersed, nineVerses(t, shape), "doc1", "Genesis", DefaultOptions())
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			if len(frags) != 2 {
				t.Fatalf("expected 2 fragments, got %d", len(frags))
			}

			first, second := frags[0].Citation, frags[1].Citation
			if first.VerseStart != 1 || first.VerseEnd != 5 {
				t.Errorf("first window: got %d-%d, want 1-5", first.VerseStart, first.VerseEnd)
			}
			if second.VerseStart != 5 || second.VerseEnd != 9 {
				t.Errorf("second window: got %d-%d, want 5-9", second.VerseStart, second.VerseEnd)
			}
			if first.Display() != "Genesis 1:1-5" {
				t.Errorf("citation display: got %q", first.Display())
			}
		})
	}
}

func TestFragmentContiguity(t *testing.T) {
	// Sequence indices must be exactly 0..N-1 for every input shape.
	for _, shape := range []string{"nested", "groups", "flat", "indexed"} {
		frags, err := Build(documents.CategoryVersed, nineVerses(t, shape), "doc1", "Genesis", DefaultOptions())
		if err != nil {
			t.Fatalf("shape %s: %v", shape, err)
		}
		for i, f := range frags {
			if f.Seq != i {
				t.Errorf("shape %s: fragment %d has seq %d", shape, i, f.Seq)
			}
		}
	}
}

func TestAllShapesNormalizeIdentically(t *testing.T) {
	var reference []Fragment
	for _, shape := range []string{"nested", "groups", "flat", "indexed"} {
		frags, err := Build(documents.CategoryVersed, nineVerses(t, shape), "doc1", "Genesis", DefaultOptions())
		if err != nil {
			t.Fatalf("shape %s: %v", shape, err)
		}
		if reference == nil {
			reference = frags
			continue
		}
		if !reflect.DeepEqual(frags, reference) {
			t.Errorf("shape %s produced different fragments than the nested shape", shape)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	input := nineVerses(t, "indexed")
	first, err := Build(documents.CategoryVersed, input, "doc1", "Genesis", DefaultOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Build(documents.CategoryVersed, input, "doc1", "Genesis", DefaultOptions())
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatal("repeated builds produced different fragments")
		}
	}
}

func TestWindowsNeverSpanChapters(t *testing.T) {
	// Two chapters of 3 verses each with window 5: windows must not
	// merge across the chapter break.
	input := mustJSON(t, map[string]map[string][]string{
		"Genesis": {
			"1": {"a", "b", "c"},
			"2": {"d", "e", "f"},
		},
	})

	frags, err := Build(documents.CategoryVersed, input, "doc1", "Genesis", DefaultOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments (one per chapter), got %d", len(frags))
	}
	if frags[0].Citation.Chapter != "1" || frags[1].Citation.Chapter != "2" {
		t.Errorf("chapter boundaries not respected: %+v", frags)
	}
	if frags[0].Citation.VerseEnd != 3 {
		t.Errorf("first chapter window should end at verse 3, got %d", frags[0].Citation.VerseEnd)
	}
}

func TestEmptyChapterYieldsNoFragments(t *testing.T) {
	input := mustJSON(t, map[string]map[string][]string{
		"Genesis": {
			"1": {},
			"2": {"a", "b"},
		},
	})

	frags, err := Build(documents.CategoryVersed, input, "doc1", "Genesis", DefaultOptions())
	if err != nil {
		t.Fatalf("empty chapter should not error: %v", err)
	}
	if len(frags) != 1 {
		t.Fatalf("expected 1 fragment from the non-empty chapter, got %d", len(frags))
	}
	if frags[0].Citation.Chapter != "2" {
		t.Errorf("expected chapter 2, got %q", frags[0].Citation.Chapter)
	}
}

func TestNumericChapterOrdering(t *testing.T) {
	// Chapters 1, 2, 10 must flatten in numeric order, not "1", "10", "2".
	input := mustJSON(t, map[string]map[string][]string{
		"Psalms": {
			"1":  {"a"},
			"2":  {"b"},
			"10": {"c"},
		},
	})

	frags, err := Build(documents.CategoryVersed, input, "doc1", "Psalms", DefaultOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	var order []string
	for _, f := range frags {
		order = append(order, f.Citation.Chapter)
	}
	want := []string{"1", "2", "10"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("chapter order: got %v, want %v", order, want)
	}
}

func TestMalformedVersedInput(t *testing.T) {
	cases := map[string]string{
		"not json":          "in the beginning",
		"scalar":            `42`,
		"empty object":      `{}`,
		"empty array":       `[]`,
		"bad verse value":   `{"Genesis": {"1": 42}}`,
		"bad verse key":     `{"Genesis": {"1": {"one": "text"}}}`,
		"unlabeled records": `[{"foo": "bar"}]`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build(documents.CategoryVersed, []byte(input), "doc1", "x", DefaultOptions())
			if err == nil {
				t.Fatal("expected a validation error, got nil")
			}
			if _, ok := err.(*ValidationError); !ok {
				t.Errorf("expected *ValidationError, got %T: %v", err, err)
			}
		})
	}
}

func TestUnknownCategory(t *testing.T) {
	_, err := Build("parchment", []byte("x"), "doc1", "x", DefaultOptions())
	if err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestOverlapZero(t *testing.T) {
	opts := DefaultOptions()
	opts.Overlap = 0

	frags, err := Build(documents.CategoryVersed, nineVerses(t, "nested"), "doc1", "Genesis", opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// 9 verses, window 5, no overlap: 1-5 and 6-9.
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(frags))
	}
	if frags[1].Citation.VerseStart != 6 || frags[1].Citation.VerseEnd != 9 {
		t.Errorf("second window: got %d-%d, want 6-9",
			frags[1].Citation.VerseStart, frags[1].Citation.VerseEnd)
	}
}

func TestKeyRoundTrip(t *testing.T) {
	key := Key("doc-with:colon", 7)
	docID, seq, err := ParseKey(key)
	if err != nil {
		t.Fatalf("ParseKey failed: %v", err)
	}
	if docID != "doc-with:colon" || seq != 7 {
		t.Errorf("round-trip: got (%q, %d)", docID, seq)
	}

	if _, _, err := ParseKey("no-separator"); err == nil {
		t.Error("expected error for key without separator")
	}
}
