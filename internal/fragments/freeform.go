package fragments

import "strings"

// charsPerPage approximates a printed page for free-form citations.
const charsPerPage = 2000

// buildFreeform splits prose into character windows, preferring to cut
// at a sentence or paragraph boundary found within the lookback budget
// before the window limit; otherwise it hard-cuts.
func buildFreeform(text, documentID, docName string, opts Options) []Fragment {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	step := opts.ChunkSize - opts.ChunkOverlap
	if step < 1 {
		step = 1
	}

	var frags []Fragment
	start := 0
	for start < len(text) {
		end := start + opts.ChunkSize
		if end >= len(text) {
			end = len(text)
		} else if cut := boundaryBefore(text, end, opts.BoundaryLookback); cut > start {
			end = cut
		}

		content := strings.TrimSpace(text[start:end])
		if content != "" {
			frags = append(frags, Fragment{
				DocumentID: documentID,
				Seq:        len(frags),
				Content:    content,
				Citation: Citation{
					Source:    docName,
					Page:      start/charsPerPage + 1,
					Paragraph: strings.Count(text[:start], "\n\n") + 1,
				},
			})
		}

		if end == len(text) {
			break
		}
		if opts.ChunkOverlap > 0 {
			next := end - opts.ChunkOverlap
			if next <= start {
				next = start + 1
			}
			start = next
		} else {
			start = end
		}
	}
	return frags
}

// boundaryBefore returns the position just after the latest sentence or
// paragraph break in text[limit-lookback:limit], or 0 when none exists.
func boundaryBefore(text string, limit, lookback int) int {
	floor := limit - lookback
	if floor < 0 {
		floor = 0
	}

	best := 0
	window := text[floor:limit]

	// Paragraph breaks take priority over sentence ends.
	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return floor + i + 2
	}
	for _, mark := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if i := strings.LastIndex(window, mark); i >= 0 {
			if cut := floor + i + len(mark); cut > best {
				best = cut
			}
		}
	}
	return best
}
