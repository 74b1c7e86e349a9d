package jobs

import (
	"log"
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls further behind loses intermediate events; the final state
// is always recoverable from the job row.
const subscriberBuffer = 16

// Hub fans job events out to per-job subscribers. Delivery is
// best-effort: publishing never blocks the pipeline.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers for a job's events. The returned cancel func must
// be called exactly once; it closes the channel.
func (h *Hub) Subscribe(jobID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[chan Event]struct{})
	}
	h.subs[jobID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[jobID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, jobID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of its job. Slow
// subscribers are skipped rather than blocked on.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[ev.JobID] {
		select {
		case ch <- ev:
		default:
			log.Printf("jobs: dropping event for slow subscriber of job %s", ev.JobID)
		}
	}
}

// SubscriberCount returns the number of subscribers for a job.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}
