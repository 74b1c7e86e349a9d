package pipeline

import (
	"time"

	"github.com/hkhalifa/versemind/internal/documents"
	"github.com/hkhalifa/versemind/internal/fragments"
)

// ProgressFunc is called as the pipeline advances. Progress is a value
// in [0, 1] covering the whole run, not just the current stage.
type ProgressFunc func(stage string, progress float64)

// Context carries the state of a single ingestion run between stages.
// Stages read the fields earlier stages filled in and add their own.
type Context struct {
	Document *documents.Document
	Raw      []byte

	// Filled by the build stage.
	Fragments []fragments.Fragment

	// Filled by the embed stage; parallel to Fragments.
	Embeddings [][]float32
}

// Result summarizes a completed ingestion run.
type Result struct {
	DocumentID    string
	FragmentCount int
	Duration      time.Duration
}
