package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/hkhalifa/versemind/internal/embeddings"
	"github.com/hkhalifa/versemind/internal/fragments"
	"github.com/hkhalifa/versemind/internal/vectordb"
)

const (
	// maxUploadBytes bounds the raw payload a single document may carry.
	maxUploadBytes = 10 << 20

	// embedBatchSize is the number of fragment texts per embedding call.
	embedBatchSize = 100
)

// validateStage rejects malformed runs before any state is touched.
type validateStage struct {
	baseStage
}

func (validateStage) Name() string { return "validate" }

func (validateStage) Prepare(ctx context.Context, pc *Context) error {
	if pc.Document == nil {
		return fmt.Errorf("no document")
	}
	if !pc.Document.Category.Valid() {
		return fmt.Errorf("unknown category %q", pc.Document.Category)
	}
	if len(pc.Raw) == 0 {
		return fmt.Errorf("empty payload")
	}
	if len(pc.Raw) > maxUploadBytes {
		return fmt.Errorf("payload exceeds %d bytes", maxUploadBytes)
	}
	return nil
}

func (validateStage) Execute(ctx context.Context, pc *Context) error { return nil }

// buildStage turns the raw payload into fragments. Prepare purges the
// previous fragment generation so a re-run never leaves stale rows or
// vectors behind.
type buildStage struct {
	baseStage
	frags   *fragments.Store
	vectors vectordb.VectorStore
	opts    fragments.Options
}

func (buildStage) Name() string { return "build" }

func (s buildStage) Prepare(ctx context.Context, pc *Context) error {
	if err := s.frags.DeleteByDocument(ctx, pc.Document.ID); err != nil {
		return fmt.Errorf("purge fragment rows: %w", err)
	}
	if err := s.vectors.DeleteByDocument(ctx, pc.Document.ID); err != nil {
		return fmt.Errorf("purge fragment vectors: %w", err)
	}
	return nil
}

func (s buildStage) Execute(ctx context.Context, pc *Context) error {
	frags, err := fragments.Build(pc.Document.Category, pc.Raw, pc.Document.ID, pc.Document.Name, s.opts)
	if err != nil {
		return err
	}
	pc.Fragments = frags
	return nil
}

// embedStage generates embeddings for all fragments, a bounded number
// of batches in flight at once.
type embedStage struct {
	baseStage
	embedder    embeddings.Embedder
	concurrency int
	onBatch     func(done, total int)
}

func (embedStage) Name() string { return "embed" }

func (s embedStage) Prepare(ctx context.Context, pc *Context) error {
	if s.embedder == nil {
		return fmt.Errorf("no embedder configured")
	}
	return nil
}

func (s embedStage) Execute(ctx context.Context, pc *Context) error {
	total := len(pc.Fragments)
	pc.Embeddings = make([][]float32, total)
	if total == 0 {
		return nil
	}

	concurrency := s.concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return fmt.Errorf("create embed pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)

	for start := 0; start < total; start += embedBatchSize {
		end := start + embedBatchSize
		if end > total {
			end = total
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed || ctx.Err() != nil {
				return
			}

			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = pc.Fragments[i].Content
			}

			vecs, err := s.embedder.Embed(ctx, texts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = &ExternalServiceError{Service: "embeddings", Err: err}
				}
				return
			}
			copy(pc.Embeddings[start:end], vecs)
			done += end - start
			if s.onBatch != nil {
				s.onBatch(done, total)
			}
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("submit embed batch: %w", submitErr)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// storeStage writes the fragment generation to the row store and the
// vector store, then persists the vector data on finalize.
type storeStage struct {
	baseStage
	frags   *fragments.Store
	vectors vectordb.VectorStore
	dataDir string
}

func (storeStage) Name() string { return "store" }

// Prepare runs once the embed stage has finished, so a count mismatch
// here is an upstream bug rather than bad input.
func (s storeStage) Prepare(ctx context.Context, pc *Context) error {
	if len(pc.Embeddings) != len(pc.Fragments) {
		return fmt.Errorf("have %d embeddings for %d fragments", len(pc.Embeddings), len(pc.Fragments))
	}
	return nil
}

func (s storeStage) Execute(ctx context.Context, pc *Context) error {
	doc := pc.Document
	if err := s.frags.Upsert(ctx, pc.Fragments, doc.Name, string(doc.Category)); err != nil {
		return fmt.Errorf("store fragment rows: %w", err)
	}
	if err := s.vectors.Upsert(ctx, pc.Fragments, pc.Embeddings); err != nil {
		return fmt.Errorf("store fragment vectors: %w", err)
	}
	return nil
}

func (s storeStage) Finalize(ctx context.Context, pc *Context) error {
	if s.dataDir == "" {
		return nil
	}
	if err := s.vectors.Persist(ctx, s.dataDir); err != nil {
		return fmt.Errorf("persist vector store: %w", err)
	}
	return nil
}
