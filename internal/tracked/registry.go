package tracked

import (
	"sync"
	"time"
)

// Purgeable is satisfied by both Value[T] and Immediate[T], letting the
// Registry sweep every instance in the process without knowing T.
type Purgeable interface {
	Purge(maxAge time.Duration) int
}

// Registry is the session-scoped "all tracked values" set the staleness
// sweeper walks. It is owned by the session and passed explicitly to
// every tracked value constructor, never held as package-level state
// (spec §9 "Process-wide tracked-value registry").
type Registry struct {
	mu      sync.Mutex
	members []Purgeable
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Track registers p so it participates in PurgeAll sweeps, and returns p
// unchanged for convenient chaining at construction sites.
func Track[P Purgeable](r *Registry, p P) P {
	r.mu.Lock()
	r.members = append(r.members, p)
	r.mu.Unlock()
	return p
}

// PurgeAll sweeps every registered value, dropping requests older than
// maxAge, and returns the total count dropped across all of them.
func (r *Registry) PurgeAll(maxAge time.Duration) int {
	r.mu.Lock()
	members := make([]Purgeable, len(r.members))
	copy(members, r.members)
	r.mu.Unlock()

	total := 0
	for _, m := range members {
		total += m.Purge(maxAge)
	}
	return total
}
