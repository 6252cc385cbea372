package notify

import (
	"log/slog"
	"sync"

	"github.com/openspool/printtrack/internal/domain"
)

// Listener receives one job record per committed change. Implementations
// must not block; the SSE layer hands the record off to a buffered channel.
type Listener func(domain.Job)

type registration struct {
	id       uint64
	listener Listener
}

// Hub fans committed job changes out to the live listeners of the job's
// owner. Registration and fan-out serialize on one mutex, but listeners are
// invoked outside it on a copied set, so a registering subscriber never waits
// on a slow callback.
type Hub struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID uint64
	owners map[string][]registration
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		owners: make(map[string][]registration),
	}
}

// Subscribe registers a listener for one owner's job updates and returns its
// unsubscribe function. Subscribing never blocks; unsubscribing is idempotent
// and removes exactly the one registration it belongs to.
func (h *Hub) Subscribe(ownerID string, listener Listener) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.owners[ownerID] = append(h.owners[ownerID], registration{id: id, listener: listener})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		regs := h.owners[ownerID]
		for i := range regs {
			if regs[i].id == id {
				h.owners[ownerID] = append(regs[:i], regs[i+1:]...)
				if len(h.owners[ownerID]) == 0 {
					delete(h.owners, ownerID)
				}
				return
			}
		}
	}
}

// Publish delivers the record to every listener currently registered for its
// owner. Delivery is best effort: a panicking listener is logged and skipped,
// never propagated to other listeners or the publisher.
func (h *Hub) Publish(job domain.Job) {
	h.mu.Lock()
	regs := h.owners[job.OwnerID]
	copied := make([]registration, len(regs))
	copy(copied, regs)
	h.mu.Unlock()

	for _, reg := range copied {
		h.deliver(reg, job)
	}
}

func (h *Hub) deliver(reg registration, job domain.Job) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("Job listener panicked",
				slog.String("job_id", job.ID),
				slog.Any("panic", rec),
			)
		}
	}()
	reg.listener(job)
}

// Subscribers reports how many listeners an owner currently has.
func (h *Hub) Subscribers(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.owners[ownerID])
}
