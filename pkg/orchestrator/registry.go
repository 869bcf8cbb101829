package orchestrator

import (
	"fmt"
	"sync"

	"github.com/carriergate/slicepurchase/pkg/slice"
)

// Factory builds the orchestrator for a slot the first time it is needed.
type Factory func(slot int) (*Orchestrator, error)

// Registry owns one orchestrator per physical radio slot, constructed lazily
// on first use. The registry's owner manages its lifecycle; there is no
// hidden global state and no cross-slot locking beyond the registry map
// itself.
type Registry struct {
	mu        sync.Mutex
	factory   Factory
	instances map[int]*Orchestrator
}

// NewRegistry creates an empty registry with the given factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:   factory,
		instances: make(map[int]*Orchestrator),
	}
}

// Get returns the orchestrator for a slot, constructing it on first use.
func (r *Registry) Get(slot int) (*Orchestrator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o, ok := r.instances[slot]; ok {
		return o, nil
	}

	o, err := r.factory(slot)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator for slot %d: %w", slot, err)
	}
	r.instances[slot] = o
	return o, nil
}

// Lookup returns the orchestrator for a slot only if it already exists.
func (r *Registry) Lookup(slot int) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.instances[slot]
	return o, ok
}

// BroadcastSliceConfig pushes a snapshot to every constructed orchestrator.
func (r *Registry) BroadcastSliceConfig(snapshot *slice.Snapshot) {
	r.mu.Lock()
	instances := make([]*Orchestrator, 0, len(r.instances))
	for _, o := range r.instances {
		instances = append(instances, o)
	}
	r.mu.Unlock()

	for _, o := range instances {
		o.OnSliceConfigChanged(snapshot)
	}
}

// Close stops every constructed orchestrator.
func (r *Registry) Close() {
	r.mu.Lock()
	instances := make([]*Orchestrator, 0, len(r.instances))
	for slot, o := range r.instances {
		instances = append(instances, o)
		delete(r.instances, slot)
	}
	r.mu.Unlock()

	for _, o := range instances {
		o.Close()
	}
}
