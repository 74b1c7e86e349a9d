package documents_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hkhalifa/versemind/internal/db"
	"github.com/hkhalifa/versemind/internal/documents"
	"github.com/hkhalifa/versemind/internal/fragments"
)

type fakeRunner struct {
	enqueueErr error
	enqueued   int
}

func (f *fakeRunner) Enqueue(ctx context.Context, doc *documents.Document, raw []byte) (string, error) {
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	f.enqueued++
	return "job-1", nil
}

func (f *fakeRunner) Cancel(documentID string) {}

type fakeVectors struct{}

func (fakeVectors) DeleteByDocument(ctx context.Context, documentID string) error { return nil }

func newDocRouter(t *testing.T, runner documents.Runner) (*documents.Store, http.Handler) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := documents.NewStore(database)
	r := chi.NewRouter()
	documents.RegisterRoutes(r, store, runner, fakeVectors{}, fragments.Validate)
	return store, r
}

func postUpload(t *testing.T, handler http.Handler, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshalling request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/documents", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestUploadRejectsMalformedContentBeforePersisting(t *testing.T) {
	runner := &fakeRunner{}
	store, handler := newDocRouter(t, runner)

	rec := postUpload(t, handler, map[string]string{
		"name":     "Broken",
		"category": "versed",
		"content":  "this is not json",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	// Rejection happens before any state exists: no document, no job.
	docs, err := store.List(context.Background(), documents.ListFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no documents after rejected upload, got %d", len(docs))
	}
	if runner.enqueued != 0 {
		t.Errorf("expected no runs enqueued, got %d", runner.enqueued)
	}
}

func TestUploadAcceptsWellFormedVersedContent(t *testing.T) {
	runner := &fakeRunner{}
	_, handler := newDocRouter(t, runner)

	rec := postUpload(t, handler, map[string]string{
		"name":     "Genesis",
		"category": "versed",
		"content":  `{"Genesis": {"1": ["In the beginning"]}}`,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if runner.enqueued != 1 {
		t.Errorf("expected one enqueued run, got %d", runner.enqueued)
	}
}

func TestUploadEnqueueFailureLeavesNoDocument(t *testing.T) {
	runner := &fakeRunner{enqueueErr: errors.New("worker pool is closed")}
	store, handler := newDocRouter(t, runner)

	rec := postUpload(t, handler, map[string]string{
		"name":     "Genesis",
		"category": "versed",
		"content":  `{"Genesis": {"1": ["In the beginning"]}}`,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	docs, err := store.List(context.Background(), documents.ListFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected the document removed after enqueue failure, got %d", len(docs))
	}
}

func TestReprocessRejectsMalformedContent(t *testing.T) {
	runner := &fakeRunner{}
	store, handler := newDocRouter(t, runner)

	doc, err := store.Create(context.Background(), documents.Document{
		Name: "Genesis", Category: documents.CategoryVersed,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	data, _ := json.Marshal(map[string]string{"content": "still not json"})
	req := httptest.NewRequest(http.MethodPost, "/api/documents/"+doc.ID+"/reprocess", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if runner.enqueued != 0 {
		t.Errorf("expected no runs enqueued, got %d", runner.enqueued)
	}
}
