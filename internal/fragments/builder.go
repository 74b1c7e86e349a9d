// Package fragments converts uploaded documents into ordered,
// citation-bearing fragments and persists them for lexical search.
//
// Building is pure: the builder performs no I/O and is deterministic
// for a given input, so reprocessing a document always yields the same
// fragment set.
package fragments

import (
	"bytes"

	"github.com/hkhalifa/versemind/internal/documents"
)

// Options controls fragment construction.
type Options struct {
	// Window is the verse count per fragment for versed content.
	Window int
	// Overlap is the number of verses shared between adjacent windows.
	Overlap int
	// ChunkSize is the character window for free-form content.
	ChunkSize int
	// ChunkOverlap is the character overlap for free-form content.
	ChunkOverlap int
	// BoundaryLookback bounds the search for a sentence break before a
	// free-form hard cut.
	BoundaryLookback int
}

// DefaultOptions returns the standard chunking parameters.
func DefaultOptions() Options {
	return Options{
		Window:           5,
		Overlap:          1,
		ChunkSize:        1000,
		ChunkOverlap:     0,
		BoundaryLookback: 100,
	}
}

func (o Options) normalized() Options {
	if o.Window < 1 {
		o.Window = 5
	}
	if o.Overlap < 0 || o.Overlap >= o.Window {
		o.Overlap = 0
	}
	if o.ChunkSize < 1 {
		o.ChunkSize = 1000
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = 0
	}
	if o.BoundaryLookback < 0 {
		o.BoundaryLookback = 0
	}
	return o
}

// Validate checks that raw content parses for the declared category
// without building fragments. Upload handlers call it so malformed
// content is rejected before any document row or job exists.
func Validate(category documents.Category, raw []byte) error {
	switch category {
	case documents.CategoryVersed:
		_, err := parseVersed(raw)
		return err
	case documents.CategoryFreeform:
		if len(bytes.TrimSpace(raw)) == 0 {
			return invalidf("free-form content is empty")
		}
		return nil
	default:
		return invalidf("unknown document category %q", category)
	}
}

// Build converts raw document content into an ordered fragment list
// with contiguous sequence indices starting at 0. It returns a
// *ValidationError when the content does not match the declared
// category's structure.
func Build(category documents.Category, raw []byte, documentID, docName string, opts Options) ([]Fragment, error) {
	opts = opts.normalized()

	switch category {
	case documents.CategoryVersed:
		units, err := parseVersed(raw)
		if err != nil {
			return nil, err
		}
		return buildVersed(units, documentID, opts), nil
	case documents.CategoryFreeform:
		return buildFreeform(string(raw), documentID, docName, opts), nil
	default:
		return nil, invalidf("unknown document category %q", category)
	}
}
