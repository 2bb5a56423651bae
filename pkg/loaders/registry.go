package loaders

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps a backend kind to its configured loader
type Registry interface {
	// Register adds a loader for a backend kind
	Register(kind string, loader Loader) error
	// Resolve returns the loader registered for kind
	Resolve(kind string) (Loader, error)
	// Kinds returns the registered backend kinds, sorted
	Kinds() []string
}

type registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

// NewRegistry creates a registry, optionally pre-populated
func NewRegistry(initial map[string]Loader) (Registry, error) {
	r := &registry{
		loaders: make(map[string]Loader, len(initial)),
	}
	for kind, l := range initial {
		if err := r.Register(kind, l); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *registry) Register(kind string, loader Loader) error {
	if kind == "" {
		return fmt.Errorf("backend kind cannot be empty")
	}
	if loader == nil {
		return fmt.Errorf("loader cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.loaders[kind]; exists {
		return fmt.Errorf("backend %q is already registered", kind)
	}

	r.loaders[kind] = loader
	return nil
}

func (r *registry) Resolve(kind string) (Loader, error) {
	r.mu.RLock()
	loader, exists := r.loaders[kind]
	r.mu.RUnlock()

	if !exists {
		return nil, &UnconfiguredBackendError{Kind: kind}
	}
	return loader, nil
}

func (r *registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.loaders))
	for kind := range r.loaders {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
