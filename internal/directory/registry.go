package directory

import (
	"log"
	"sync"
	"time"

	"github.com/mpratt/typerace/internal/domain"
)

// prober is one registered worker as matchmaking sees it: an address to hand
// out and a synchronous, bounded liveness/capacity probe.
type prober interface {
	Addr() string
	Probe(timeout time.Duration) (domain.GameState, error)
}

// Registry tracks registered workers in arrival order and routes joiners to
// an available one. The mutex guards only the slice; probes are always
// issued with the lock released so a slow worker never blocks registrations
// or concurrent lookups.
type Registry struct {
	probeTimeout time.Duration
	capacity     int

	mu      sync.Mutex
	workers []prober
}

// NewRegistry creates a registry. capacity is the per-worker roster limit a
// candidate must be under to count as available.
func NewRegistry(probeTimeout time.Duration, capacity int) *Registry {
	return &Registry{probeTimeout: probeTimeout, capacity: capacity}
}

// Add appends a worker to the tail of the registry.
func (r *Registry) Add(p prober) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers = append(r.workers, p)
	log.Printf("registry: worker %s registered (%d total)", p.Addr(), len(r.workers))
}

// Len reports the number of registered workers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// FindSession walks the registry from the current head looking for a worker
// that can take a joiner. Each candidate is probed synchronously: a probe
// failure evicts it, a full or in-progress worker rotates to the tail so the
// most recently busy worker is tried last, and an available worker is
// returned immediately. The walk examines at most one full rotation. No
// reservation is made on the returned worker; the worker's own admission
// check resolves joiner races.
func (r *Registry) FindSession() (string, bool) {
	r.mu.Lock()
	limit := len(r.workers)
	var first prober
	if limit > 0 {
		first = r.workers[0]
	}

	for i := 0; i < limit && len(r.workers) > 0; i++ {
		cand := r.workers[0]
		if i > 0 && cand == first {
			break // full rotation
		}

		r.mu.Unlock()
		state, err := cand.Probe(r.probeTimeout)
		r.mu.Lock()

		switch {
		case err != nil:
			log.Printf("registry: evicting worker %s: %v", cand.Addr(), err)
			r.remove(cand)
		case state.Finished && state.PlayerCount < r.capacity:
			r.mu.Unlock()
			return cand.Addr(), true
		default:
			r.rotate(cand)
		}
	}

	r.mu.Unlock()
	return "", false
}

// remove drops a worker wherever it currently sits. Callers must hold r.mu.
func (r *Registry) remove(p prober) {
	for i, w := range r.workers {
		if w == p {
			r.workers = append(r.workers[:i], r.workers[i+1:]...)
			return
		}
	}
}

// rotate moves a worker to the tail. Callers must hold r.mu.
func (r *Registry) rotate(p prober) {
	for i, w := range r.workers {
		if w == p {
			r.workers = append(r.workers[:i], r.workers[i+1:]...)
			r.workers = append(r.workers, p)
			return
		}
	}
}
