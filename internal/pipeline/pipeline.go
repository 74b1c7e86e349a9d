// Package pipeline turns an uploaded document into searchable
// fragments: validate -> build -> embed -> store. Each stage runs its
// Prepare, Execute, and Finalize phases to completion before the next
// stage starts, and a run stops at the next phase boundary once its
// context is cancelled.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hkhalifa/versemind/internal/config"
	"github.com/hkhalifa/versemind/internal/documents"
	"github.com/hkhalifa/versemind/internal/embeddings"
	"github.com/hkhalifa/versemind/internal/fragments"
	"github.com/hkhalifa/versemind/internal/vectordb"
)

// Pipeline orchestrates the full ingestion workflow for one document.
type Pipeline struct {
	docs       *documents.Store
	frags      *fragments.Store
	vectors    vectordb.VectorStore
	embedder   embeddings.Embedder
	cfg        *config.Config
	onProgress ProgressFunc
}

// New creates a Pipeline.
func New(
	docs *documents.Store,
	frags *fragments.Store,
	vectors vectordb.VectorStore,
	embedder embeddings.Embedder,
	cfg *config.Config,
) *Pipeline {
	return &Pipeline{
		docs:     docs,
		frags:    frags,
		vectors:  vectors,
		embedder: embedder,
		cfg:      cfg,
	}
}

// SetProgressFunc sets the progress callback.
func (p *Pipeline) SetProgressFunc(fn ProgressFunc) {
	p.onProgress = fn
}

func (p *Pipeline) report(stage string, progress float64) {
	if p.onProgress != nil {
		p.onProgress(stage, progress)
	}
}

func (p *Pipeline) buildOptions() fragments.Options {
	c := p.cfg.Chunking
	return fragments.Options{
		Window:           c.Window,
		Overlap:          c.Overlap,
		ChunkSize:        c.ChunkSize,
		ChunkOverlap:     c.ChunkOverlap,
		BoundaryLookback: c.BoundaryLookback,
	}
}

// stageWeights is the share of overall progress each executed stage
// contributes. The embed stage dominates wall time so it gets most of
// the range; its batches interpolate within it.
var stageWeights = map[string]float64{
	"validate": 0.05,
	"build":    0.15,
	"embed":    0.60,
	"store":    0.20,
}

func (p *Pipeline) stages() []Stage {
	embed := embedStage{
		embedder:    p.embedder,
		concurrency: p.cfg.Jobs.EmbedConcurrency,
	}
	embedBase := stageWeights["validate"] + stageWeights["build"]
	embed.onBatch = func(done, total int) {
		if total > 0 {
			p.report("embed", embedBase+stageWeights["embed"]*float64(done)/float64(total))
		}
	}

	return []Stage{
		validateStage{},
		buildStage{frags: p.frags, vectors: p.vectors, opts: p.buildOptions()},
		embed,
		storeStage{frags: p.frags, vectors: p.vectors, dataDir: p.cfg.DataDir},
	}
}

// Run executes the full ingestion pipeline for one document. On any
// failure the document is marked failed with the error detail; on
// success it is marked completed.
func (p *Pipeline) Run(ctx context.Context, doc *documents.Document, raw []byte) (*Result, error) {
	start := time.Now()
	pc := &Context{Document: doc, Raw: raw}
	stages := p.stages()

	// Status writes must land even when the run itself is cancelled.
	bg := context.WithoutCancel(ctx)

	if err := p.docs.UpdateStatus(bg, doc.ID, documents.StatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("mark document processing: %w", err)
	}

	if err := p.runStages(ctx, stages, pc); err != nil {
		_ = p.docs.UpdateStatus(bg, doc.ID, documents.StatusFailed, err.Error())
		return nil, err
	}

	if err := p.docs.UpdateStatus(bg, doc.ID, documents.StatusCompleted, ""); err != nil {
		return nil, fmt.Errorf("mark document completed: %w", err)
	}
	p.report("done", 1.0)

	return &Result{
		DocumentID:    doc.ID,
		FragmentCount: len(pc.Fragments),
		Duration:      time.Since(start),
	}, nil
}

// runStages runs each stage's Prepare, Execute, and Finalize in turn
// before the next stage starts, so a Prepare can check preconditions
// established by everything upstream of it.
func (p *Pipeline) runStages(ctx context.Context, stages []Stage, pc *Context) error {
	var completed float64
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Prepare(ctx, pc); err != nil {
			return &StageError{Stage: s.Name(), Err: err}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		p.report(s.Name(), completed)
		if err := s.Execute(ctx, pc); err != nil {
			return &StageError{Stage: s.Name(), Err: err}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Finalize(ctx, pc); err != nil {
			return &StageError{Stage: s.Name(), Err: err}
		}
		completed += stageWeights[s.Name()]
		p.report(s.Name(), completed)
	}
	return nil
}
