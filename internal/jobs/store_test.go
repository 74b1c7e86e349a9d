package jobs

import (
	"context"
	"testing"

	"github.com/hkhalifa/versemind/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if _, err := database.Exec(
		`INSERT INTO documents (id, name, category) VALUES ('d1', 'Genesis', 'versed')`,
	); err != nil {
		t.Fatalf("inserting parent document: %v", err)
	}
	return NewStore(database)
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.Create(ctx, "d1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.Status != StatusQueued {
		t.Errorf("new job should be queued, got %q", job.Status)
	}
	if job.DocumentID != "d1" {
		t.Errorf("unexpected document ID %q", job.DocumentID)
	}

	got, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.ID != job.ID {
		t.Errorf("Get returned %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing job, got %+v", got)
	}
}

func TestUpdateProgressClamps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, _ := store.Create(ctx, "d1")

	if err := store.UpdateProgress(ctx, job.ID, "embed", 1.7); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	got, _ := store.Get(ctx, job.ID)
	if got.Progress != 1 {
		t.Errorf("progress should clamp to 1, got %v", got.Progress)
	}
	if got.Stage != "embed" {
		t.Errorf("stage not recorded: %q", got.Stage)
	}

	if err := store.UpdateProgress(ctx, job.ID, "embed", -0.5); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	got, _ = store.Get(ctx, job.ID)
	if got.Progress != 0 {
		t.Errorf("progress should clamp to 0, got %v", got.Progress)
	}
}

func TestUpdateStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, _ := store.Create(ctx, "d1")

	if err := store.UpdateStatus(ctx, job.ID, StatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ := store.Get(ctx, job.ID)
	if got.Status != StatusFailed || got.Error != "boom" {
		t.Errorf("unexpected state: %+v", got)
	}

	// Non-failed transitions drop the error detail.
	if err := store.UpdateStatus(ctx, job.ID, StatusCompleted, "stale"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ = store.Get(ctx, job.ID)
	if got.Status != StatusCompleted || got.Error != "" {
		t.Errorf("unexpected state: %+v", got)
	}

	if err := store.UpdateStatus(ctx, "nope", StatusRunning, ""); err == nil {
		t.Error("expected error for missing job")
	}
}

func TestListByDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, _ := store.Create(ctx, "d1")
	second, _ := store.Create(ctx, "d1")

	jobs, err := store.ListByDocument(ctx, "d1")
	if err != nil {
		t.Fatalf("ListByDocument failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	ids := map[string]bool{jobs[0].ID: true, jobs[1].ID: true}
	if !ids[first.ID] || !ids[second.ID] {
		t.Errorf("unexpected job IDs: %v", ids)
	}
}

func TestStatusTerminal(t *testing.T) {
	for status, terminal := range map[Status]bool{
		StatusQueued:    false,
		StatusRunning:   false,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	} {
		if status.Terminal() != terminal {
			t.Errorf("%s.Terminal() = %v, want %v", status, status.Terminal(), terminal)
		}
	}
}
