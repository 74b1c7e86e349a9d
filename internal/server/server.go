// Package server wires the feature packages into one HTTP API.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hkhalifa/versemind/internal/config"
	"github.com/hkhalifa/versemind/internal/db"
	"github.com/hkhalifa/versemind/internal/documents"
	"github.com/hkhalifa/versemind/internal/embeddings"
	"github.com/hkhalifa/versemind/internal/fragments"
	"github.com/hkhalifa/versemind/internal/jobs"
	"github.com/hkhalifa/versemind/internal/llm"
	"github.com/hkhalifa/versemind/internal/search"
	"github.com/hkhalifa/versemind/internal/vectordb"
)

// Server is the versemind API server.
type Server struct {
	cfg        *config.Config
	router     chi.Router
	httpServer *http.Server
	runner     *jobs.Runner
}

// New creates a server with all feature routes mounted. provider may be
// nil, which disables the rerank pass.
func New(
	cfg *config.Config,
	database *db.DB,
	vectors vectordb.VectorStore,
	embedder embeddings.Embedder,
	provider llm.Provider,
) (*Server, error) {
	docStore := documents.NewStore(database)
	fragStore := fragments.NewStore(database)
	jobStore := jobs.NewStore(database)
	hub := jobs.NewHub()

	runner, err := jobs.NewRunner(jobStore, docStore, fragStore, vectors, embedder, cfg, hub)
	if err != nil {
		return nil, fmt.Errorf("create runner: %w", err)
	}

	var reranker *search.Reranker
	if provider != nil {
		reranker = search.NewReranker(provider, cfg.RerankModel)
	}
	engine := search.NewEngine(fragStore, vectors, embedder, reranker, cfg)

	s := &Server{cfg: cfg, runner: runner}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if cfg.AllowAllCORS {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	documents.RegisterRoutes(r, docStore, runner, vectors, fragments.Validate)
	jobs.RegisterRoutes(r, jobStore, hub)
	search.RegisterRoutes(r, engine)

	s.router = r
	return s, nil
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("versemind server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests, then cancels in-flight pipeline
// runs and waits for them.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.runner.Close()
	return err
}
