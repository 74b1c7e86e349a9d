// Package jobs runs ingestion pipelines in the background and streams
// their progress to subscribers. A job's row in SQLite is the source of
// truth; broadcast events are a lossy convenience layer on top of it.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/hkhalifa/versemind/internal/config"
	"github.com/hkhalifa/versemind/internal/documents"
	"github.com/hkhalifa/versemind/internal/embeddings"
	"github.com/hkhalifa/versemind/internal/fragments"
	"github.com/hkhalifa/versemind/internal/pipeline"
	"github.com/hkhalifa/versemind/internal/vectordb"
)

type activeRun struct {
	jobID  string
	cancel context.CancelFunc
}

// Runner schedules pipeline runs on a bounded worker pool and enforces
// at most one active run per document.
type Runner struct {
	store    *Store
	docs     *documents.Store
	frags    *fragments.Store
	vectors  vectordb.VectorStore
	embedder embeddings.Embedder
	cfg      *config.Config
	hub      *Hub
	pool     *ants.Pool

	mu     sync.Mutex
	active map[string]activeRun // document ID -> in-flight run
	wg     sync.WaitGroup
}

// NewRunner creates a Runner with cfg.Jobs.Workers pipeline workers.
func NewRunner(
	store *Store,
	docs *documents.Store,
	frags *fragments.Store,
	vectors vectordb.VectorStore,
	embedder embeddings.Embedder,
	cfg *config.Config,
	hub *Hub,
) (*Runner, error) {
	workers := cfg.Jobs.Workers
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Runner{
		store:    store,
		docs:     docs,
		frags:    frags,
		vectors:  vectors,
		embedder: embedder,
		cfg:      cfg,
		hub:      hub,
		pool:     pool,
		active:   make(map[string]activeRun),
	}, nil
}

// Close cancels all in-flight runs and waits for them to finish.
func (r *Runner) Close() {
	r.mu.Lock()
	for _, run := range r.active {
		run.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()
	r.pool.Release()
}

// Enqueue schedules a pipeline run for the document and returns its job
// ID. It fails when a run is already active for the document.
func (r *Runner) Enqueue(ctx context.Context, doc *documents.Document, raw []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run, busy := r.active[doc.ID]; busy {
		return "", fmt.Errorf("document %s already has an active run (job %s)", doc.ID, run.jobID)
	}

	job, err := r.store.Create(ctx, doc.ID)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	// The run outlives the enqueuing request, so it gets its own
	// cancellable context rather than the request's.
	runCtx, cancel := context.WithCancel(context.Background())
	r.active[doc.ID] = activeRun{jobID: job.ID, cancel: cancel}

	r.wg.Add(1)
	submitErr := r.pool.Submit(func() {
		defer r.wg.Done()
		r.run(runCtx, job, doc, raw)
	})
	if submitErr != nil {
		r.wg.Done()
		cancel()
		delete(r.active, doc.ID)
		_ = r.store.UpdateStatus(ctx, job.ID, StatusFailed, submitErr.Error())
		return "", fmt.Errorf("submit job: %w", submitErr)
	}

	return job.ID, nil
}

// Cancel interrupts the in-flight run for the document, if any. The run
// marks its own job cancelled on the way out.
func (r *Runner) Cancel(documentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.active[documentID]; ok {
		run.cancel()
	}
}

func (r *Runner) run(ctx context.Context, job *Job, doc *documents.Document, raw []byte) {
	defer func() {
		r.mu.Lock()
		if run, ok := r.active[doc.ID]; ok && run.jobID == job.ID {
			delete(r.active, doc.ID)
		}
		r.mu.Unlock()
	}()

	bg := context.Background()
	log.Printf("jobs: starting job %s for document %s (%s)", job.ID, doc.ID, doc.Name)

	r.setStatus(bg, job, StatusRunning, "")

	p := pipeline.New(r.docs, r.frags, r.vectors, r.embedder, r.cfg)
	p.SetProgressFunc(func(stage string, progress float64) {
		// Persist first, publish second: a subscriber that misses the
		// event still finds at least this state in the job row.
		if err := r.store.UpdateProgress(bg, job.ID, stage, progress); err != nil {
			log.Printf("jobs: persist progress for job %s: %v", job.ID, err)
			return
		}
		job.Stage = stage
		job.Progress = progress
		r.hub.Publish(eventFromJob(job))
	})

	result, err := p.Run(ctx, doc, raw)
	switch {
	case err == nil:
		job.Progress = 1
		r.setStatus(bg, job, StatusCompleted, "")
		log.Printf("jobs: job %s completed with %d fragments in %s",
			job.ID, result.FragmentCount, result.Duration.Round(time.Millisecond))
	case errors.Is(err, context.Canceled):
		r.setStatus(bg, job, StatusCancelled, "")
		log.Printf("jobs: job %s cancelled", job.ID)
	default:
		r.setStatus(bg, job, StatusFailed, err.Error())
		log.Printf("jobs: job %s failed: %v", job.ID, err)
	}
}

// setStatus persists the transition and then broadcasts it.
func (r *Runner) setStatus(ctx context.Context, job *Job, status Status, errDetail string) {
	if err := r.store.UpdateStatus(ctx, job.ID, status, errDetail); err != nil {
		log.Printf("jobs: persist status for job %s: %v", job.ID, err)
		return
	}
	job.Status = status
	job.Error = errDetail
	if status != StatusFailed {
		job.Error = ""
	}
	r.hub.Publish(eventFromJob(job))
}
