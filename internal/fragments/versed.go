package fragments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// unit is one atomic verse in flattened reading order. All supported
// input shapes normalize to a []unit before windowing, so the windowing
// logic never sees the original structure.
type unit struct {
	Major string // book
	Minor string // chapter
	Index int    // 1-based position within the minor unit
	Text  string
}

// namedGroup is the array-of-named-groups input shape:
// [{"name": "Genesis", "chapters": [{"number": 1, "verses": [...]}]}].
type namedGroup struct {
	Name     string       `json:"name"`
	Chapters []namedMinor `json:"chapters"`
}

type namedMinor struct {
	Number json.Number `json:"number"`
	Verses []string    `json:"verses"`
}

// flatRecord is the flat-array-of-labeled-records input shape:
// [{"book": "Genesis", "chapter": 1, "verse": 1, "text": "..."}].
type flatRecord struct {
	Book    string      `json:"book"`
	Chapter json.Number `json:"chapter"`
	Verse   int         `json:"verse"`
	Text    string      `json:"text"`
}

// parseVersed detects which of the four supported shapes the input uses
// and normalizes it into the flat unit sequence. Any new input shape
// must reduce to the same intermediate form.
func parseVersed(raw []byte) ([]unit, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, invalidf("versed document is empty")
	}

	switch trimmed[0] {
	case '{':
		return parseNestedObject(trimmed)
	case '[':
		return parseArrayShape(trimmed)
	default:
		return nil, invalidf("versed document must be a JSON object or array, got %q", trimmed[0])
	}
}

// parseNestedObject handles the two map-based shapes: major -> minor ->
// verse list (shape 1), and major -> minor -> index-keyed verse map
// (shape 4). The two can be mixed per minor unit.
func parseNestedObject(raw []byte) ([]unit, error) {
	var majors map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &majors); err != nil {
		return nil, invalidf("versed document is not a nested object of books and chapters: %v", err)
	}
	if len(majors) == 0 {
		return nil, invalidf("versed document contains no books")
	}

	var units []unit
	for _, major := range sortedKeys(majorKeys(majors)) {
		minors := majors[major]
		for _, minor := range sortedKeys(rawKeys(minors)) {
			minorUnits, err := parseMinorValue(major, minor, minors[minor])
			if err != nil {
				return nil, err
			}
			units = append(units, minorUnits...)
		}
	}
	return units, nil
}

// parseMinorValue normalizes one chapter value, which is either an
// ordered verse array or an index-keyed verse map.
func parseMinorValue(major, minor string, raw json.RawMessage) ([]unit, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, invalidf("book %q chapter %q is empty", major, minor)
	}

	switch trimmed[0] {
	case '[':
		var verses []string
		if err := json.Unmarshal(trimmed, &verses); err != nil {
			return nil, invalidf("book %q chapter %q: verse list must be an array of strings: %v", major, minor, err)
		}
		units := make([]unit, 0, len(verses))
		for i, text := range verses {
			units = append(units, unit{Major: major, Minor: minor, Index: i + 1, Text: text})
		}
		return units, nil

	case '{':
		var indexed map[string]string
		if err := json.Unmarshal(trimmed, &indexed); err != nil {
			return nil, invalidf("book %q chapter %q: verse map must map indices to strings: %v", major, minor, err)
		}
		units := make([]unit, 0, len(indexed))
		for _, key := range sortedKeys(stringKeys(indexed)) {
			idx, err := strconv.Atoi(key)
			if err != nil {
				return nil, invalidf("book %q chapter %q: verse key %q is not a number", major, minor, key)
			}
			units = append(units, unit{Major: major, Minor: minor, Index: idx, Text: indexed[key]})
		}
		return units, nil

	default:
		return nil, invalidf("book %q chapter %q: expected verse array or verse map", major, minor)
	}
}

// parseArrayShape handles the two array-based shapes: named groups and
// flat labeled records. The first element's keys decide which one.
func parseArrayShape(raw []byte) ([]unit, error) {
	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, invalidf("versed document array must contain objects: %v", err)
	}
	if len(probe) == 0 {
		return nil, invalidf("versed document array is empty")
	}

	first := probe[0]
	if _, ok := first["chapters"]; ok {
		return parseNamedGroups(raw)
	}
	if _, ok := first["text"]; ok {
		return parseFlatRecords(raw)
	}
	return nil, invalidf("versed document array elements must carry either %q or %q fields", "chapters", "text")
}

func parseNamedGroups(raw []byte) ([]unit, error) {
	var groups []namedGroup
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, invalidf("named-group document: %v", err)
	}

	var units []unit
	for _, g := range groups {
		if g.Name == "" {
			return nil, invalidf("named-group document: group without a name")
		}
		for _, ch := range g.Chapters {
			minor := ch.Number.String()
			if minor == "" {
				return nil, invalidf("named-group document: book %q has a chapter without a number", g.Name)
			}
			for i, text := range ch.Verses {
				units = append(units, unit{Major: g.Name, Minor: minor, Index: i + 1, Text: text})
			}
		}
	}
	return units, nil
}

func parseFlatRecords(raw []byte) ([]unit, error) {
	var records []flatRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, invalidf("flat-record document: %v", err)
	}

	units := make([]unit, 0, len(records))
	for i, r := range records {
		if r.Book == "" || r.Chapter.String() == "" || r.Verse == 0 {
			return nil, invalidf("flat-record document: record %d is missing book, chapter or verse", i)
		}
		units = append(units, unit{Major: r.Book, Minor: r.Chapter.String(), Index: r.Verse, Text: r.Text})
	}
	return units, nil
}

// buildVersed windows the flattened unit sequence into fragments.
// Windows never span a chapter boundary; the final partial window of a
// chapter is emitted even when shorter than the full window; a chapter
// with zero verses contributes zero fragments.
func buildVersed(units []unit, documentID string, opts Options) []Fragment {
	step := opts.Window - opts.Overlap
	if step < 1 {
		step = 1
	}

	var frags []Fragment
	for _, group := range groupByMinor(units) {
		for start := 0; start < len(group); start += step {
			end := start + opts.Window
			if end > len(group) {
				end = len(group)
			}
			window := group[start:end]

			lines := make([]string, len(window))
			for i, u := range window {
				lines[i] = fmt.Sprintf("%d. %s", u.Index, u.Text)
			}

			frags = append(frags, Fragment{
				DocumentID: documentID,
				Seq:        len(frags),
				Content:    strings.Join(lines, "\n"),
				Citation: Citation{
					Book:       window[0].Major,
					Chapter:    window[0].Minor,
					VerseStart: window[0].Index,
					VerseEnd:   window[len(window)-1].Index,
				},
			})

			if end == len(group) {
				break
			}
		}
	}
	return frags
}

// groupByMinor splits the flat sequence into per-chapter runs,
// preserving order.
func groupByMinor(units []unit) [][]unit {
	var groups [][]unit
	var current []unit
	for _, u := range units {
		if len(current) > 0 &&
			(current[0].Major != u.Major || current[0].Minor != u.Minor) {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, u)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// sortedKeys orders keys numerically when all keys are numbers, and
// lexically otherwise, so map-shaped inputs flatten deterministically.
func sortedKeys(keys []string) []string {
	numeric := len(keys) > 0
	nums := make(map[string]int, len(keys))
	for _, k := range keys {
		n, err := strconv.Atoi(k)
		if err != nil {
			numeric = false
			break
		}
		nums[k] = n
	}

	sorted := append([]string(nil), keys...)
	if numeric {
		sort.Slice(sorted, func(i, j int) bool { return nums[sorted[i]] < nums[sorted[j]] })
	} else {
		sort.Strings(sorted)
	}
	return sorted
}

func majorKeys(m map[string]map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func rawKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func stringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
