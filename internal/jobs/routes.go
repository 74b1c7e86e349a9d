package jobs

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the server's CORS layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeTimeout = 10 * time.Second

// RegisterRoutes mounts the job API routes.
func RegisterRoutes(r chi.Router, store *Store, hub *Hub) {
	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/{id}", handleGet(store))
		r.Get("/{id}/ws", handleWatch(store, hub))
	})
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if job == nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(job)
	}
}

// handleWatch streams a job's progress over a websocket. The client
// first receives the persisted snapshot, then live events until the job
// reaches a terminal status.
func handleWatch(store *Store, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		job, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if job == nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		// Subscribe before reading the snapshot so no event falls in
		// the gap between the two.
		events, unsubscribe := hub.Subscribe(id)
		defer unsubscribe()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("jobs: websocket upgrade for job %s: %v", id, err)
			return
		}
		defer conn.Close()

		// Re-read after subscribing: the row is always at least as fresh
		// as the last published event.
		job, err = store.Get(r.Context(), id)
		if err != nil || job == nil {
			return
		}
		if writeEvent(conn, eventFromJob(job)) != nil {
			return
		}
		if job.Status.Terminal() {
			return
		}

		// Reader loop only detects the client going away.
		clientGone := make(chan struct{})
		go func() {
			defer close(clientGone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if writeEvent(conn, ev) != nil {
					return
				}
				if ev.Status.Terminal() {
					return
				}
			case <-clientGone:
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(ev)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
