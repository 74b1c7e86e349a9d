package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// maxUploadBytes caps the accepted document content size.
const maxUploadBytes = 10 << 20

// Runner enqueues pipeline runs for uploaded documents. Implemented by
// the jobs package.
type Runner interface {
	// Enqueue schedules a pipeline run and returns the job ID. It
	// returns an error if a run is already active for the document.
	Enqueue(ctx context.Context, doc *Document, raw []byte) (string, error)
	// Cancel interrupts any in-flight run for the document.
	Cancel(documentID string)
}

// Vectors removes a document's embedding vectors. Implemented by the
// vectordb package.
type Vectors interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

// ContentValidator checks that content parses for its category, so
// malformed uploads are rejected before a document row or job exists.
// Implemented by the fragments package.
type ContentValidator func(category Category, raw []byte) error

// RegisterRoutes mounts the document API routes.
func RegisterRoutes(r chi.Router, store *Store, runner Runner, vectors Vectors, validate ContentValidator) {
	r.Route("/api/documents", func(r chi.Router) {
		r.Post("/", handleUpload(store, runner, validate))
		r.Get("/", handleList(store))
		r.Get("/stats", handleStats(store))
		r.Get("/{id}", handleGet(store))
		r.Delete("/{id}", handleDelete(store, runner, vectors))
		r.Post("/{id}/reprocess", handleReprocess(store, runner, validate))
	})
}

// uploadRequest is the JSON body of a document upload.
type uploadRequest struct {
	Name     string            `json:"name"`
	Category Category          `json:"category"`
	Content  string            `json:"content"`
	Owner    string            `json:"owner"`
	Metadata map[string]string `json:"metadata"`
}

// uploadResponse pairs the created document with its pipeline job.
type uploadResponse struct {
	Document *Document `json:"document"`
	JobID    string    `json:"job_id"`
}

// validateUpload rejects malformed uploads before anything is persisted.
func validateUpload(req uploadRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !req.Category.Valid() {
		return fmt.Errorf("category must be %q or %q", CategoryVersed, CategoryFreeform)
	}
	if req.Content == "" {
		return fmt.Errorf("content is required")
	}
	if len(req.Content) > maxUploadBytes {
		return fmt.Errorf("content exceeds %d byte limit", maxUploadBytes)
	}
	return nil
}

func handleUpload(store *Store, runner Runner, validate ContentValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+4096)

		var req uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validateUpload(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validate(req.Category, []byte(req.Content)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		mediaType := "text/plain"
		if req.Category == CategoryVersed {
			mediaType = "application/json"
		}

		doc, err := store.Create(r.Context(), Document{
			Name:      req.Name,
			Category:  req.Category,
			Size:      int64(len(req.Content)),
			MediaType: mediaType,
			Owner:     req.Owner,
			Metadata:  req.Metadata,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		jobID, err := runner.Enqueue(r.Context(), doc, []byte(req.Content))
		if err != nil {
			// A document row without a run behind it is just clutter.
			if derr := store.Delete(r.Context(), doc.ID); derr != nil {
				log.Printf("documents: cleaning up document %s after enqueue failure: %v", doc.ID, derr)
			}
			writeError(w, http.StatusConflict, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(uploadResponse{Document: doc, JobID: jobID})
	}
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := ListFilter{}
		if v := r.URL.Query().Get("status"); v != "" {
			filter.Status = Status(v)
		}
		if v := r.URL.Query().Get("category"); v != "" {
			filter.Category = Category(v)
		}
		if v := r.URL.Query().Get("owner"); v != "" {
			filter.Owner = v
		}

		docs, err := store.List(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if docs == nil {
			docs = []Document{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(docs)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if doc == nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}
}

func handleDelete(store *Store, runner Runner, vectors Vectors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		// Interrupt any in-flight pipeline run before removing rows, so
		// the run does not keep writing fragments for a deleted document.
		runner.Cancel(id)

		if err := vectors.DeleteByDocument(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := store.Delete(r.Context(), id); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

// reprocessRequest carries the content for a fresh fragment generation.
type reprocessRequest struct {
	Content string `json:"content"`
}

func handleReprocess(store *Store, runner Runner, validate ContentValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req reprocessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Content == "" {
			writeError(w, http.StatusBadRequest, "content is required")
			return
		}

		doc, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if doc == nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if err := validate(doc.Category, []byte(req.Content)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		jobID, err := runner.Enqueue(r.Context(), doc, []byte(req.Content))
		if err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(uploadResponse{Document: doc, JobID: jobID})
	}
}

func handleStats(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := store.Stats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
